// Package trick implements the authoritative state machine for the
// two-player compare-card game: each player leads or follows with a
// single card, the higher card (or any trump over a non-trump) takes
// the trick and scores a point, and the game ends when both hands are
// empty.
package trick

import (
	"errors"

	"cardtable/internal/deck"
)

// Seats is the fixed seat count of the game.
const Seats = 2

// DefaultHandSize deals each seat a quarter of the deck.
const DefaultHandSize = 13

// Recoverable action errors. A rejected action leaves the game
// untouched.
var (
	ErrNotYourTurn      = errors.New("not your turn")
	ErrCardNotInHand    = errors.New("card not in hand")
	ErrInvalidGameState = errors.New("game not in a state that accepts this action")
)

// Status is the game lifecycle state.
type Status int

const (
	Waiting Status = iota
	Playing
	Finished
)

func (s Status) String() string {
	return [...]string{"waiting", "playing", "finished"}[s]
}

// PlayedCard is a face-up card in the shared center slot, keyed by the
// seat that played it.
type PlayedCard struct {
	Card deck.Card `json:"card"`
	Seat int       `json:"seat"`
}

// Config holds the per-room game settings.
type Config struct {
	HandSize int
	Trump    deck.Suit
	HasTrump bool
}

// Game is the authoritative trick-game state for one room. It is a
// plain synchronous state machine; the caller serializes access.
type Game struct {
	Status   Status             `json:"status"`
	HandSize int                `json:"handSize"`
	Trump    deck.Suit          `json:"trump"`
	HasTrump bool               `json:"hasTrump"`
	Hands    [Seats][]deck.Card `json:"hands"`
	Scores   [Seats]int         `json:"scores"`
	Center   []PlayedCard       `json:"center"`
	Turn     int                `json:"turn"`
	Winner   int                `json:"winner"` // seat index, -1 until finished or on draw
	Draw     bool               `json:"draw"`
}

// Outcome describes what a single accepted play caused.
type Outcome struct {
	TrickComplete bool
	TrickWinner   int // seat index, -1 on a tied trick
	GameOver      bool
}

// New creates a game in the waiting state.
func New(cfg Config) *Game {
	if cfg.HandSize <= 0 {
		cfg.HandSize = DefaultHandSize
	}
	return &Game{
		HandSize: cfg.HandSize,
		Trump:    cfg.Trump,
		HasTrump: cfg.HasTrump,
		Winner:   -1,
	}
}

// Start deals both hands from the shuffled deck and opens play with
// seat 0 to act. It is called synchronously when the final seat fills.
func (g *Game) Start(d *deck.Deck) error {
	if g.Status != Waiting {
		return ErrInvalidGameState
	}
	for seat := 0; seat < Seats; seat++ {
		hand, err := d.Draw(g.HandSize)
		if err != nil {
			return err
		}
		g.Hands[seat] = hand
	}
	g.Center = nil
	g.Turn = 0
	g.Status = Playing
	return nil
}

// Redeal discards all game progress and starts a fresh game with new
// hands. Only callable while playing.
func (g *Game) Redeal(d *deck.Deck) error {
	if g.Status != Playing {
		return ErrInvalidGameState
	}
	g.Status = Waiting
	g.Scores = [Seats]int{}
	g.Winner = -1
	g.Draw = false
	return g.Start(d)
}

// Play applies a card play for the given seat. Exactly one matching
// card is removed from the hand, so a duplicate submission of the same
// play fails with ErrCardNotInHand instead of double-scoring.
func (g *Game) Play(seat int, card deck.Card) (Outcome, error) {
	if g.Status != Playing {
		return Outcome{}, ErrInvalidGameState
	}
	if seat != g.Turn {
		return Outcome{}, ErrNotYourTurn
	}
	if !g.removeFromHand(seat, card) {
		return Outcome{}, ErrCardNotInHand
	}

	g.Center = append(g.Center, PlayedCard{Card: card, Seat: seat})
	g.Turn = other(seat)

	if len(g.Center) < Seats {
		return Outcome{}, nil
	}
	return g.resolveTrick(), nil
}

// resolveTrick compares the two center cards, awards the trick, clears
// the center and finishes the game once both hands are empty. On a
// tied trick nobody scores and the original leader keeps the lead.
func (g *Game) resolveTrick() Outcome {
	out := Outcome{TrickComplete: true, TrickWinner: -1}

	first, second := g.Center[0], g.Center[1]
	if winner, decisive := g.compare(first, second); decisive {
		g.Scores[winner]++
		g.Turn = winner
		out.TrickWinner = winner
	}
	g.Center = nil

	if len(g.Hands[0]) == 0 && len(g.Hands[1]) == 0 {
		g.finish()
		out.GameOver = true
	}
	return out
}

// compare returns the winning seat of the trick, or decisive=false for
// a tie. A trump beats any non-trump regardless of rank; otherwise,
// and between equal trump status, higher rank wins.
func (g *Game) compare(a, b PlayedCard) (winner int, decisive bool) {
	if g.HasTrump {
		aTrump := a.Card.Suit == g.Trump
		bTrump := b.Card.Suit == g.Trump
		if aTrump != bTrump {
			if aTrump {
				return a.Seat, true
			}
			return b.Seat, true
		}
	}
	switch {
	case a.Card.Value() > b.Card.Value():
		return a.Seat, true
	case b.Card.Value() > a.Card.Value():
		return b.Seat, true
	default:
		return -1, false
	}
}

func (g *Game) finish() {
	g.Status = Finished
	switch {
	case g.Scores[0] > g.Scores[1]:
		g.Winner = 0
	case g.Scores[1] > g.Scores[0]:
		g.Winner = 1
	default:
		g.Winner = -1
		g.Draw = true
	}
}

// removeFromHand removes exactly one card equal to the given value.
func (g *Game) removeFromHand(seat int, card deck.Card) bool {
	hand := g.Hands[seat]
	for i, c := range hand {
		if c == card {
			g.Hands[seat] = append(hand[:i], hand[i+1:]...)
			return true
		}
	}
	return false
}

func other(seat int) int {
	return (seat + 1) % Seats
}
