// Package quality picks which subchannel of a device a window plays.
//
// Rank 1 is the primary stream; larger ranks are alternative streams and are
// assumed to be of lower quality. "Down" means towards a larger rank.
package quality

import (
	"fmt"
	"sort"
	"strings"
)

// Mode is the configured stream quality policy.
type Mode int

const (
	Lowest Mode = iota
	Auto
	Highest
)

func (m Mode) String() string {
	switch m {
	case Lowest:
		return "lowest"
	case Auto:
		return "auto"
	case Highest:
		return "highest"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the names and the legacy integer values 0 (low),
// 1 (auto) and 2 (high).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowest", "low", "0":
		return Lowest, nil
	case "auto", "1", "":
		return Auto, nil
	case "highest", "high", "2":
		return Highest, nil
	}
	return Auto, fmt.Errorf("unknown stream quality %q", s)
}

// Selector holds the usable ranks of one window in ascending order.
type Selector struct {
	ranks []int
	mode  Mode
}

// New returns a Selector over ranks. Duplicates and non-positive ranks are
// dropped; order does not matter.
func New(ranks []int, mode Mode) *Selector {
	seen := make(map[int]bool, len(ranks))
	out := make([]int, 0, len(ranks))
	for _, r := range ranks {
		if r <= 0 || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	sort.Ints(out)
	return &Selector{ranks: out, mode: mode}
}

// Ranks returns a copy of the usable ranks.
func (s *Selector) Ranks() []int {
	out := make([]int, len(s.ranks))
	copy(out, s.ranks)
	return out
}

// Empty reports whether there is nothing to play.
func (s *Selector) Empty() bool { return len(s.ranks) == 0 }

// Initial returns the rank to start with, 0 when there is none.
func (s *Selector) Initial() int {
	if s.Empty() {
		return 0
	}
	if s.mode == Lowest {
		return s.ranks[len(s.ranks)-1]
	}
	return s.ranks[0]
}

// Down returns the next lower-quality rank after current, or current when it
// already is the lowest. A current rank that is not usable snaps to the
// nearest usable rank below it in quality.
func (s *Selector) Down(current int) int {
	for _, r := range s.ranks {
		if r > current {
			return r
		}
	}
	if s.Has(current) || s.Empty() {
		return current
	}
	return s.ranks[len(s.ranks)-1]
}

// Up returns the next higher-quality rank before current, or current when it
// already is the highest.
func (s *Selector) Up(current int) int {
	for i := len(s.ranks) - 1; i >= 0; i-- {
		if s.ranks[i] < current {
			return s.ranks[i]
		}
	}
	if s.Has(current) || s.Empty() {
		return current
	}
	return s.ranks[0]
}

// Lowest reports whether current is the lowest-quality usable rank.
func (s *Selector) Lowest(current int) bool {
	return !s.Empty() && current >= s.ranks[len(s.ranks)-1]
}

// Has reports whether rank is usable.
func (s *Selector) Has(rank int) bool {
	i := sort.SearchInts(s.ranks, rank)
	return i < len(s.ranks) && s.ranks[i] == rank
}
