package monikers

// MaxTeamSize is the most players one team may hold for the room's
// current head count.
func MaxTeamSize(r *Room) int {
	return (len(r.Players) + 1) / 2
}

func TeamCount(r *Room, team Team) int {
	n := 0
	for _, p := range r.Players {
		if p.Team == team {
			n++
		}
	}
	return n
}

// CanJoinTeam reports whether team has room for one more member.
// A player already on team is always accepted.
func CanJoinTeam(r *Room, playerID string, team Team) bool {
	if !team.Valid() {
		return false
	}
	if p, _ := r.PlayerByID(playerID); p != nil && p.Team == team {
		return true
	}
	return TeamCount(r, team) < MaxTeamSize(r)
}

func AvailableTeams(r *Room) []Team {
	limit := MaxTeamSize(r)
	var teams []Team
	for _, t := range Teams {
		if TeamCount(r, t) < limit {
			teams = append(teams, t)
		}
	}
	return teams
}

// SmallerTeam picks the team with fewer members, preferring team1 on ties.
func SmallerTeam(r *Room) Team {
	if TeamCount(r, Team2) < TeamCount(r, Team1) {
		return Team2
	}
	return Team1
}

// IsReady reports whether p has confirmed exactly the configured number of
// cards. A draft of the right length is not enough.
func IsReady(r *Room, p *Player) bool {
	return p.Confirmed && len(p.SelectedCards) == r.Settings.CardsPerPlayer
}

// AllReady is the card-selection barrier: every player must be ready.
func AllReady(r *Room) bool {
	if len(r.Players) == 0 {
		return false
	}
	for i := range r.Players {
		if !IsReady(r, &r.Players[i]) {
			return false
		}
	}
	return true
}

func ReadyCount(r *Room) int {
	n := 0
	for i := range r.Players {
		if IsReady(r, &r.Players[i]) {
			n++
		}
	}
	return n
}

// CardOwner returns the player holding a card with the given text
// (case-insensitive), or nil.
func CardOwner(r *Room, text string) *Player {
	key := NormalizeID(text)
	for i := range r.Players {
		for _, c := range r.Players[i].SelectedCards {
			if NormalizeID(c.Text) == key {
				return &r.Players[i]
			}
		}
	}
	return nil
}

// AllSelectedCards lists every selected card in join order.
func AllSelectedCards(r *Room) []Card {
	var cards []Card
	for _, p := range r.Players {
		cards = append(cards, p.SelectedCards...)
	}
	return cards
}

func teamCards(r *Room, team Team) []Card {
	var cards []Card
	for _, p := range r.Players {
		if p.Team == team {
			cards = append(cards, p.SelectedCards...)
		}
	}
	return cards
}

// DrawPool is the ordered list of cards still droppable for team: the
// team's selected cards minus usedCards. Order follows the persisted
// DrawOrder first, then any cards not yet ordered in join order.
func DrawPool(r *Room, team Team) []Card {
	byKey := make(map[string]Card)
	var natural []string
	for _, c := range teamCards(r, team) {
		k := c.Key()
		if _, dup := byKey[k]; dup || r.IsUsed(k) {
			continue
		}
		byKey[k] = c
		natural = append(natural, k)
	}

	pool := make([]Card, 0, len(byKey))
	seen := make(map[string]bool, len(byKey))
	for _, k := range r.DrawOrder[team] {
		if c, ok := byKey[k]; ok && !seen[k] {
			pool = append(pool, c)
			seen[k] = true
		}
	}
	for _, k := range natural {
		if !seen[k] {
			pool = append(pool, byKey[k])
			seen[k] = true
		}
	}
	return pool
}

// NextCard is the head of the team's draw pool.
func NextCard(r *Room, team Team) *Card {
	pool := DrawPool(r, team)
	if len(pool) == 0 {
		return nil
	}
	c := pool[0]
	return &c
}

// RotateToTail moves key to the end of the team's draw order and returns
// the new head. Used cards are never re-added.
func RotateToTail(r *Room, team Team, key string) *Card {
	pool := DrawPool(r, team)
	order := make([]string, 0, len(pool))
	var moved bool
	for _, c := range pool {
		if c.Key() == key {
			moved = true
			continue
		}
		order = append(order, c.Key())
	}
	if moved {
		order = append(order, key)
	}
	if r.DrawOrder == nil {
		r.DrawOrder = make(map[Team][]string)
	}
	r.DrawOrder[team] = order
	return NextCard(r, team)
}

func teamIndices(r *Room, team Team) []int {
	var idx []int
	for i, p := range r.Players {
		if p.Team == team {
			idx = append(idx, i)
		}
	}
	return idx
}

// FirstPlayerIndex returns the join-order index of team's first member, or -1.
func FirstPlayerIndex(r *Room, team Team) int {
	if idx := teamIndices(r, team); len(idx) > 0 {
		return idx[0]
	}
	return -1
}

// NextTurn computes who plays after the current player. Players of the
// active team go in join order; passing the team's last player hands
// control to the other team's first player. When the other team is empty
// play wraps to the active team's first player.
func NextTurn(r *Room) (Team, int) {
	team := r.CurrentTeam
	if !team.Valid() {
		team = Team1
	}
	idx := teamIndices(r, team)
	pos := -1
	for i, v := range idx {
		if v == r.CurrentPlayerIndex {
			pos = i
			break
		}
	}
	if len(idx) > 0 && pos+1 < len(idx) {
		return team, idx[pos+1]
	}

	other := team.Other()
	if first := FirstPlayerIndex(r, other); first >= 0 {
		return other, first
	}
	if len(idx) > 0 {
		return team, idx[0]
	}
	return team, r.CurrentPlayerIndex
}

// NextPlayableTurn is NextTurn restricted to teams that still have cards
// to draw. When the rotation lands on a team whose pool is empty, the
// other team's first player takes over.
func NextPlayableTurn(r *Room) (Team, int) {
	team, idx := NextTurn(r)
	if NextCard(r, team) != nil {
		return team, idx
	}
	other := team.Other()
	if NextCard(r, other) == nil {
		return team, idx
	}
	if first := FirstPlayerIndex(r, other); first >= 0 {
		return other, first
	}
	return team, idx
}

func TotalSelected(r *Room) int {
	return len(AllSelectedCards(r))
}

// RoundComplete reports whether usedCards covers every selected card.
func RoundComplete(r *Room) bool {
	total := TotalSelected(r)
	if total == 0 {
		return false
	}
	for _, c := range AllSelectedCards(r) {
		if !r.IsUsed(c.Key()) {
			return false
		}
	}
	return true
}

func TeamRoundScore(r *Room, team Team, round int) int {
	sum := 0
	for _, c := range r.Scores[team][round] {
		sum += c.Points()
	}
	return sum
}

func TeamRoundCardCount(r *Room, team Team, round int) int {
	return len(r.Scores[team][round])
}

// TotalTeamScore sums card levels for team across every round.
func TotalTeamScore(r *Room, team Team) int {
	sum := 0
	for round := 1; round <= TotalRounds; round++ {
		sum += TeamRoundScore(r, team, round)
	}
	return sum
}

// Winner returns the team with the strictly higher total, or TeamNone
// with tie=true when totals are equal.
func Winner(r *Room) (winner Team, tie bool) {
	t1, t2 := TotalTeamScore(r, Team1), TotalTeamScore(r, Team2)
	switch {
	case t1 > t2:
		return Team1, false
	case t2 > t1:
		return Team2, false
	}
	return TeamNone, true
}

func RoundName(round int) string {
	switch round {
	case 1:
		return "Free Talking"
	case 2:
		return "One Word"
	case 3:
		return "Expressions"
	}
	return ""
}
