// Package catalog holds the read-only card catalog players pick from.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/playperu/monikers/internal/monikers"
)

//go:embed cards.json
var defaultCards []byte

const maxLevel = 4

type Entry struct {
	Word        string `json:"word"`
	Description string `json:"description"`
	Level       int    `json:"level"`
}

// Card converts a catalog entry into a card drawn for round play. The
// word doubles as the card id.
func (e Entry) Card() monikers.Card {
	return monikers.Card{
		ID:          e.Word,
		Text:        e.Word,
		Round:       1,
		Description: e.Description,
		Level:       e.Level,
	}
}

type Catalog struct {
	entries []Entry
	byWord  map[string]Entry
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCards)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(entries)
}

func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{byWord: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		e.Word = strings.TrimSpace(e.Word)
		if e.Word == "" {
			return nil, fmt.Errorf("catalog entry with empty word")
		}
		if e.Level < 1 || e.Level > maxLevel {
			return nil, fmt.Errorf("card %q: level %d out of range", e.Word, e.Level)
		}
		key := strings.ToLower(e.Word)
		if _, dup := c.byWord[key]; dup {
			return nil, fmt.Errorf("duplicate card %q", e.Word)
		}
		c.byWord[key] = e
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) All() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Lookup finds a card by word, case-insensitively.
func (c *Catalog) Lookup(word string) (Entry, bool) {
	e, ok := c.byWord[strings.ToLower(strings.TrimSpace(word))]
	return e, ok
}

// Offer picks up to n untaken cards for one player. The result depends only
// on seed and the untaken set, and interleaves levels 1..4 so every offer
// mixes difficulties.
func (c *Catalog) Offer(seed string, taken map[string]bool, n int) []Entry {
	if n <= 0 {
		return nil
	}

	h := fnv.New64a()
	h.Write([]byte(seed))
	rng := rand.New(rand.NewPCG(h.Sum64(), uint64(len(seed))))

	var byLevel [maxLevel][]Entry
	for _, e := range c.entries {
		if taken[strings.ToLower(e.Word)] {
			continue
		}
		byLevel[e.Level-1] = append(byLevel[e.Level-1], e)
	}
	longest := 0
	for i := range byLevel {
		rng.Shuffle(len(byLevel[i]), func(a, b int) {
			byLevel[i][a], byLevel[i][b] = byLevel[i][b], byLevel[i][a]
		})
		longest = max(longest, len(byLevel[i]))
	}

	out := make([]Entry, 0, n)
	for i := 0; i < longest && len(out) < n; i++ {
		for lvl := range byLevel {
			if i < len(byLevel[lvl]) && len(out) < n {
				out = append(out, byLevel[lvl][i])
			}
		}
	}
	return out
}
