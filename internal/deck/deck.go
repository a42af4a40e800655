package deck

import (
	"encoding/json"
	"errors"
	rand "math/rand/v2"
)

// ErrInsufficientCards is returned by Draw when the deck does not hold
// enough cards. Game state machines size their deals so this never
// happens during normal play.
var ErrInsufficientCards = errors.New("insufficient cards in deck")

// Deck is an ordered, mutable sequence of cards. A fresh deck holds all
// 52 unique cards in canonical order (suits Spades..Clubs, ranks
// Two..Ace within each suit). A deck is owned by exactly one hand and
// is never reused without a fresh shuffle.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// New creates a full 52-card deck in canonical order. The provided rng
// is used for shuffling; pass randutil.Secure() where the shuffle
// decides a bet, randutil.New(seed) for reproducible casual play.
func New(rng *rand.Rand) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	return d
}

// NewShuffled creates a full deck and shuffles it.
func NewShuffled(rng *rand.Rand) *Deck {
	d := New(rng)
	d.Shuffle()
	return d
}

// Shuffle performs an in-place Fisher-Yates shuffle. Every permutation
// of the deck is equally likely given an unbiased rng.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top n cards.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, ErrInsufficientCards
	}
	cards := make([]Card, n)
	copy(cards, d.cards[:n])
	d.cards = d.cards[n:]
	return cards, nil
}

// Remaining returns the number of cards left in the deck.
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards in order. For tests and
// persistence snapshots.
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Restore replaces the deck contents with the given cards, preserving
// order. Used when rehydrating a persisted hand.
func (d *Deck) Restore(cards []Card) {
	d.cards = make([]Card, len(cards))
	copy(d.cards, cards)
}

// MarshalJSON serializes the remaining cards in order. The rng is not
// part of the snapshot: a restored deck is only ever drawn from, never
// reshuffled.
func (d *Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.cards)
}

// UnmarshalJSON restores the remaining cards in order.
func (d *Deck) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.cards)
}
