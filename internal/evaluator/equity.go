package evaluator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cardtable/internal/deck"
	"cardtable/internal/randutil"
)

// Equity is a Monte Carlo win estimate for one heads-up hole hand.
type Equity struct {
	Win     float64
	Tie     float64
	Samples int
}

type equityTally struct {
	wins int
	ties int
}

// EstimateEquity samples random opponent holdings and board runouts to
// estimate how often the given hole cards win at showdown. Community
// may hold 0, 3, 4 or 5 already-dealt cards. Work is split across
// GOMAXPROCS workers, each with its own generator.
func EstimateEquity(ctx context.Context, hole, community []deck.Card, samples int) (Equity, error) {
	if len(hole) != 2 {
		return Equity{}, fmt.Errorf("equity: need exactly 2 hole cards, got %d", len(hole))
	}
	if len(community) > 5 {
		return Equity{}, fmt.Errorf("equity: too many community cards: %d", len(community))
	}
	if samples <= 0 {
		return Equity{}, fmt.Errorf("equity: sample count must be positive")
	}

	dealt := make(map[deck.Card]bool, len(hole)+len(community))
	for _, c := range append(append([]deck.Card{}, hole...), community...) {
		if dealt[c] {
			return Equity{}, fmt.Errorf("equity: duplicate card %s", c.Code())
		}
		dealt[c] = true
	}

	remaining := make([]deck.Card, 0, 52-len(dealt))
	for _, c := range deck.New(nil).Cards() {
		if !dealt[c] {
			remaining = append(remaining, c)
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > samples {
		workers = samples
	}

	results := make([]equityTally, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := samples / workers
		if w < samples%workers {
			n++
		}
		g.Go(func() error {
			rng := randutil.New(rand.Int64())
			pool := make([]deck.Card, len(remaining))
			var tally equityTally
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				copy(pool, remaining)
				sampleOutcome(rng, pool, hole, community, &tally)
			}
			results[w] = tally
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Equity{}, err
	}

	var total equityTally
	for _, t := range results {
		total.wins += t.wins
		total.ties += t.ties
	}
	return Equity{
		Win:     float64(total.wins) / float64(samples),
		Tie:     float64(total.ties) / float64(samples),
		Samples: samples,
	}, nil
}

// sampleOutcome deals one random opponent holding plus runout from pool
// and scores the showdown. pool is consumed via partial Fisher-Yates.
func sampleOutcome(rng *rand.Rand, pool []deck.Card, hole, community []deck.Card, tally *equityTally) {
	need := 2 + (5 - len(community))
	for i := 0; i < need; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	oppHole := pool[:2]
	board := append(append([]deck.Card{}, community...), pool[2:need]...)

	ours := Evaluate(append(append([]deck.Card{}, hole...), board...))
	theirs := Evaluate(append(append([]deck.Card{}, oppHole...), board...))

	switch cmp := Compare(ours, theirs); {
	case cmp > 0:
		tally.wins++
	case cmp == 0:
		tally.ties++
	}
}
