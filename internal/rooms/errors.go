package rooms

import "errors"

var (
	// ErrNotFound is returned when a room or player does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRejected is returned when an operation breaks a game rule. The
	// stored room is left untouched.
	ErrRejected = errors.New("rejected")
)

type notFound string

func (e notFound) Error() string        { return string(e) }
func (e notFound) Is(target error) bool { return target == ErrNotFound }

type rejection string

func (e rejection) Error() string        { return string(e) }
func (e rejection) Is(target error) bool { return target == ErrRejected }

var (
	ErrRoomNotFound   error = notFound("room not found")
	ErrPlayerNotFound error = notFound("player not found")

	ErrRoomFull         error = rejection("room is full")
	ErrNameTaken        error = rejection("name already taken")
	ErrInvalidName      error = rejection("name is required")
	ErrTeamFull         error = rejection("team is full")
	ErrInvalidTeam      error = rejection("unknown team")
	ErrWrongPhase       error = rejection("not allowed in the current game state")
	ErrNotHost          error = rejection("only the host can do that")
	ErrNotEnoughPlayers error = rejection("at least two players are required")
	ErrTeamsUnbalanced  error = rejection("both teams need at least one player")
	ErrInvalidSettings  error = rejection("invalid settings")
	ErrInvalidValue     error = rejection("invalid value")
	ErrCardTaken        error = rejection("card already selected by another player")
	ErrTooManyCards     error = rejection("too many cards selected")
	ErrNotReady         error = rejection("wrong number of cards selected")
	ErrNotYourTurn      error = rejection("not your turn")
	ErrRoundActive      error = rejection("round already active")
	ErrTurnActive       error = rejection("turn already started")
	ErrTurnNotStarted   error = rejection("turn not started")
	ErrNoCard           error = rejection("no card in play")
	ErrSkipBudget       error = rejection("no skips left this turn")
	ErrScoresRewrite    error = rejection("scores can only be extended")
	ErrStaleSnapshot    error = rejection("snapshot older than local copy")
)
