// Package evaluator ranks 5-7 card sets into a totally ordered poker
// hand category plus a kicker sequence for tie-breaking. Evaluation is
// a pure function of its input: results are derived at showdown and
// never stored.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"cardtable/internal/deck"
)

// Category is the primary hand rank. Higher beats lower outright.
type Category int

const (
	HighCard Category = iota + 1
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c Category) String() string {
	switch c {
	case HighCard:
		return "high card"
	case Pair:
		return "pair"
	case TwoPair:
		return "two pair"
	case ThreeOfAKind:
		return "three of a kind"
	case Straight:
		return "straight"
	case Flush:
		return "flush"
	case FullHouse:
		return "full house"
	case FourOfAKind:
		return "four of a kind"
	case StraightFlush:
		return "straight flush"
	default:
		return "unknown"
	}
}

// Result is the outcome of evaluating a card set: the category plus an
// ordered kicker sequence compared element-by-element within the same
// category.
type Result struct {
	Category Category
	Kickers  []int
}

func (r Result) String() string {
	parts := make([]string, len(r.Kickers))
	for i, k := range r.Kickers {
		parts[i] = fmt.Sprintf("%d", k)
	}
	return fmt.Sprintf("%s [%s]", r.Category, strings.Join(parts, " "))
}

// Compare returns >0 if a beats b, <0 if b beats a, 0 for an exact tie
// (split pot). Categories compare first; equal categories compare
// kicker sequences element-by-element.
func Compare(a, b Result) int {
	if a.Category != b.Category {
		return int(a.Category) - int(b.Category)
	}
	n := len(a.Kickers)
	if len(b.Kickers) < n {
		n = len(b.Kickers)
	}
	for i := 0; i < n; i++ {
		if a.Kickers[i] != b.Kickers[i] {
			return a.Kickers[i] - b.Kickers[i]
		}
	}
	return 0
}

// Evaluate returns the best achievable 5-card ranking for a set of 5
// to 7 cards. A card count outside that range is a caller contract
// violation and panics; it is not a recoverable condition.
func Evaluate(cards []deck.Card) Result {
	if len(cards) < 5 || len(cards) > 7 {
		panic(fmt.Sprintf("evaluator: card count %d outside 5..7", len(cards)))
	}

	ranks := make([]int, len(cards))
	rankCount := make(map[int]int, len(cards))
	suitCount := make(map[deck.Suit]int, 4)
	for i, c := range cards {
		ranks[i] = c.Value()
		rankCount[c.Value()]++
		suitCount[c.Suit]++
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ranks)))

	// Flush detection. With at most 7 cards only one suit can reach
	// five, but guard against picking an arbitrary losing suit anyway.
	flushSuit := deck.Suit(-1)
	for suit, n := range suitCount {
		if n >= 5 {
			flushSuit = suit
			break
		}
	}

	// Straight flush: straight detection restricted to the flush suit.
	if flushSuit >= 0 {
		flushRanks := make([]int, 0, 7)
		for _, c := range cards {
			if c.Suit == flushSuit {
				flushRanks = append(flushRanks, c.Value())
			}
		}
		if high := straightHigh(flushRanks); high > 0 {
			return Result{Category: StraightFlush, Kickers: []int{high}}
		}
	}

	if quad := rankWithCount(rankCount, 4); quad > 0 {
		return Result{
			Category: FourOfAKind,
			Kickers:  append([]int{quad}, topExcluding(ranks, 1, quad)...),
		}
	}

	// Full house: two distinct ranks with count >= 3 (possible with 7
	// cards), or one triple plus a pair. The higher triple plays as the
	// triple, the next triple-or-better rank as the pair component.
	trips := ranksWithAtLeast(rankCount, 3)
	if len(trips) >= 2 {
		return Result{Category: FullHouse, Kickers: []int{trips[0], trips[1]}}
	}
	if len(trips) == 1 {
		if pair := bestPairExcluding(rankCount, trips[0]); pair > 0 {
			return Result{Category: FullHouse, Kickers: []int{trips[0], pair}}
		}
	}

	if flushSuit >= 0 {
		flushRanks := make([]int, 0, 7)
		for _, c := range cards {
			if c.Suit == flushSuit {
				flushRanks = append(flushRanks, c.Value())
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(flushRanks)))
		return Result{Category: Flush, Kickers: flushRanks[:5]}
	}

	if high := straightHigh(ranks); high > 0 {
		return Result{Category: Straight, Kickers: []int{high}}
	}

	if len(trips) == 1 {
		return Result{
			Category: ThreeOfAKind,
			Kickers:  append([]int{trips[0]}, topExcluding(ranks, 2, trips[0])...),
		}
	}

	pairs := ranksWithAtLeast(rankCount, 2)
	if len(pairs) >= 2 {
		// With 7 cards three pairs can exist; the two highest play.
		kickers := []int{pairs[0], pairs[1]}
		kickers = append(kickers, topExcluding(ranks, 1, pairs[0], pairs[1])...)
		return Result{Category: TwoPair, Kickers: kickers}
	}
	if len(pairs) == 1 {
		return Result{
			Category: Pair,
			Kickers:  append([]int{pairs[0]}, topExcluding(ranks, 3, pairs[0])...),
		}
	}

	return Result{Category: HighCard, Kickers: ranks[:5]}
}

// straightHigh returns the top card of the highest 5-long run among
// the given rank values, or 0 if none. An ace counts both high and low.
func straightHigh(ranks []int) int {
	seen := make(map[int]bool, len(ranks))
	unique := make([]int, 0, len(ranks)+1)
	for _, r := range ranks {
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	if seen[14] && !seen[1] {
		unique = append(unique, 1)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(unique)))
	for i := 0; i+4 < len(unique); i++ {
		if unique[i]-unique[i+4] == 4 {
			return unique[i]
		}
	}
	return 0
}

// rankWithCount returns the highest rank occurring exactly n times, or 0.
func rankWithCount(counts map[int]int, n int) int {
	best := 0
	for rank, c := range counts {
		if c == n && rank > best {
			best = rank
		}
	}
	return best
}

// ranksWithAtLeast returns ranks with count >= n, highest first.
func ranksWithAtLeast(counts map[int]int, n int) []int {
	var out []int
	for rank, c := range counts {
		if c >= n {
			out = append(out, rank)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// bestPairExcluding returns the highest rank with count >= 2 other than
// the excluded rank, or 0.
func bestPairExcluding(counts map[int]int, exclude int) int {
	best := 0
	for rank, c := range counts {
		if rank != exclude && c >= 2 && rank > best {
			best = rank
		}
	}
	return best
}

// topExcluding returns the n highest values from the descending-sorted
// ranks, skipping every occurrence of the excluded ranks.
func topExcluding(sortedDesc []int, n int, exclude ...int) []int {
	out := make([]int, 0, n)
	for _, r := range sortedDesc {
		skip := false
		for _, e := range exclude {
			if r == e {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}
