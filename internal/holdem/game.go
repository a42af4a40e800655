// Package holdem implements the authoritative heads-up Texas Hold'em
// state machine: blind posting, the four betting streets, action
// validation, all-in runouts and showdown pot distribution. The state
// machine is synchronous; the caller serializes access and owns all
// pacing delays.
package holdem

import (
	"errors"
	"fmt"

	"cardtable/internal/deck"
	"cardtable/internal/evaluator"
)

// NumSeats is the fixed seat count: this table plays heads-up only.
const NumSeats = 2

const (
	// DefaultBaseBet is the big blind and the per-street minimum raise.
	DefaultBaseBet = 10
	// DefaultStartChips is the starting stack per seat.
	DefaultStartChips = 1000
)

// Recoverable action errors. A rejected action leaves the hand
// untouched.
var (
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidAction    = errors.New("action not legal in current betting state")
	ErrInvalidGameState = errors.New("hand not in a state that accepts this action")
)

// Status is the hand lifecycle state.
type Status int

const (
	Waiting Status = iota
	Playing
	Finished
)

func (s Status) String() string {
	return [...]string{"waiting", "playing", "finished"}[s]
}

// Street is the current betting round.
type Street int

const (
	Preflop Street = iota
	Flop
	Turn
	River
	Showdown
)

func (s Street) String() string {
	return [...]string{"pre-flop", "flop", "turn", "river", "showdown"}[s]
}

// SeatStatus describes a seat's interest in the current hand.
type SeatStatus int

const (
	Active SeatStatus = iota
	Folded
	AllIn
)

func (s SeatStatus) String() string {
	return [...]string{"active", "folded", "allin"}[s]
}

// ActionType is the tagged betting action variant, validated at the
// boundary before reaching the state machine.
type ActionType int

const (
	Fold ActionType = iota
	Check
	Call
	Raise
)

func (a ActionType) String() string {
	return [...]string{"fold", "check", "call", "raise"}[a]
}

// ParseAction parses a wire action name.
func ParseAction(s string) (ActionType, error) {
	switch s {
	case "fold":
		return Fold, nil
	case "check":
		return Check, nil
	case "call":
		return Call, nil
	case "raise":
		return Raise, nil
	default:
		return 0, fmt.Errorf("unknown action %q: %w", s, ErrInvalidAction)
	}
}

// Seat holds the per-seat mutable hand state.
type Seat struct {
	HoleCards []deck.Card `json:"holeCards"`
	Chips     int         `json:"chips"`
	Bet       int         `json:"bet"` // current-street contribution
	HasActed  bool        `json:"hasActed"`
	Status    SeatStatus  `json:"status"`
}

// Config holds the per-room game settings.
type Config struct {
	BaseBet    int
	StartChips int
}

// Game is the authoritative Hold'em state for one room.
type Game struct {
	Status     Status             `json:"status"`
	Street     Street             `json:"street"`
	Players    [NumSeats]*Seat    `json:"players"`
	Community  []deck.Card        `json:"community"`
	Pot        int                `json:"pot"`
	Dealer     int                `json:"dealer"`
	Turn       int                `json:"turn"`
	BaseBet    int                `json:"baseBet"`
	MinRaise   int                `json:"minRaise"`
	HandNumber int                `json:"handNumber"`
	Winner     int                `json:"winner"` // seat index, -1 until decided
	Draw       bool               `json:"draw"`
	Deck       *deck.Deck         `json:"deck"`
}

// Outcome describes what an accepted action caused.
type Outcome struct {
	HandOver bool
	FoldWin  bool
}

// New creates a game in the waiting state with full starting stacks.
func New(cfg Config) *Game {
	if cfg.BaseBet <= 0 {
		cfg.BaseBet = DefaultBaseBet
	}
	if cfg.StartChips <= 0 {
		cfg.StartChips = DefaultStartChips
	}
	g := &Game{
		BaseBet: cfg.BaseBet,
		Winner:  -1,
	}
	for i := range g.Players {
		g.Players[i] = &Seat{Chips: cfg.StartChips}
	}
	return g
}

// StartHand begins a hand from the provided freshly shuffled deck:
// hole cards are dealt, blinds posted (dealer posts the small blind
// heads-up) and the dealer acts first pre-flop.
func (g *Game) StartHand(d *deck.Deck) error {
	if g.Status == Playing {
		return ErrInvalidGameState
	}

	g.HandNumber++
	g.Deck = d
	g.Community = nil
	g.Pot = 0
	g.Street = Preflop
	g.MinRaise = g.BaseBet
	g.Winner = -1
	g.Draw = false

	for _, p := range g.Players {
		hole, err := d.Draw(2)
		if err != nil {
			return err
		}
		p.HoleCards = hole
		p.Bet = 0
		p.HasActed = false
		p.Status = Active
	}

	g.postBlind(g.Dealer, g.BaseBet/2)
	g.postBlind(otherSeat(g.Dealer), g.BaseBet)

	g.Turn = g.Dealer
	g.Status = Playing

	// A blind can put a short stack all-in before anyone acts; if the
	// other seat already has at least as much posted there is no
	// decision left and the hand runs out immediately.
	if g.bettingClosed() {
		g.runOut()
	}
	return nil
}

// NextHand rotates the dealer button and starts the following hand.
// The caller checks Eliminated first; starting a hand with a busted
// seat is a state error.
func (g *Game) NextHand(d *deck.Deck) error {
	if g.Status != Finished {
		return ErrInvalidGameState
	}
	if _, busted := g.Eliminated(); busted {
		return ErrInvalidGameState
	}
	g.Dealer = otherSeat(g.Dealer)
	return g.StartHand(d)
}

// Eliminated reports the seat that has run out of chips, if any. An
// eliminated seat ends the room: no further hands are dealt and the
// opponent is the match winner.
func (g *Game) Eliminated() (seat int, ok bool) {
	for i, p := range g.Players {
		if p.Chips <= 0 {
			return i, true
		}
	}
	return 0, false
}

func (g *Game) postBlind(seat, amount int) {
	p := g.Players[seat]
	if amount > p.Chips {
		amount = p.Chips
	}
	p.Chips -= amount
	p.Bet += amount
	g.Pot += amount
	if p.Chips == 0 {
		p.Status = AllIn
	}
}

// Apply validates and applies a betting action for the given seat.
func (g *Game) Apply(seat int, action ActionType, amount int) (Outcome, error) {
	if g.Status != Playing {
		return Outcome{}, ErrInvalidGameState
	}
	if seat != g.Turn {
		return Outcome{}, ErrNotYourTurn
	}
	p := g.Players[seat]
	if p.Status != Active {
		return Outcome{}, ErrInvalidGameState
	}

	mb := g.maxBet()

	switch action {
	case Fold:
		p.Status = Folded

	case Check:
		if p.Bet != mb {
			return Outcome{}, fmt.Errorf("cannot check facing a bet of %d: %w", mb-p.Bet, ErrInvalidAction)
		}

	case Call:
		g.pay(p, mb-p.Bet)

	case Raise:
		if amount <= 0 {
			return Outcome{}, fmt.Errorf("raise requires a positive amount: %w", ErrInvalidAction)
		}
		owed := mb + amount - p.Bet
		if owed < p.Chips && amount < g.MinRaise {
			// Enough chips to raise properly, so the minimum binds. A
			// short stack is downgraded to all-in instead of rejected.
			return Outcome{}, fmt.Errorf("raise of %d below minimum %d: %w", amount, g.MinRaise, ErrInvalidAction)
		}
		g.pay(p, owed)
		if raisedBy := p.Bet - mb; raisedBy > g.MinRaise {
			g.MinRaise = raisedBy
		}

	default:
		return Outcome{}, ErrInvalidAction
	}

	p.HasActed = true
	return g.afterAction(seat), nil
}

// pay moves up to amount from the seat's stack into the pot, capping at
// the stack and flipping the seat to all-in when it empties.
func (g *Game) pay(p *Seat, amount int) {
	if amount > p.Chips {
		amount = p.Chips
	}
	if amount < 0 {
		amount = 0
	}
	p.Chips -= amount
	p.Bet += amount
	g.Pot += amount
	if p.Chips == 0 {
		p.Status = AllIn
	}
}

// afterAction advances the hand: fold wins, all-in runouts, street
// settlement, or simply passing the turn.
func (g *Game) afterAction(seat int) Outcome {
	if w, only := g.lastNonFolded(); only {
		g.awardFoldWin(w)
		return Outcome{HandOver: true, FoldWin: true}
	}

	if g.bettingClosed() {
		g.runOut()
		return Outcome{HandOver: true}
	}

	if g.settled() {
		if g.Street == River {
			g.showdown()
			return Outcome{HandOver: true}
		}
		g.advanceStreet()
		// An all-in leaves at most one seat able to bet on the new
		// street: deal the remaining board and show down.
		if g.bettingClosed() {
			g.runOut()
			return Outcome{HandOver: true}
		}
		return Outcome{}
	}

	g.Turn = otherSeat(seat)
	return Outcome{}
}

// bettingClosed reports whether no betting decision remains in the
// hand: every seat is all-in, or the sole seat still able to act has
// already matched the table's max bet (an opponent all-in leaves it
// nothing to do).
func (g *Game) bettingClosed() bool {
	switch g.activeCount() {
	case 0:
		return true
	case 1:
		for _, p := range g.Players {
			if p.Status == Active {
				return p.Bet >= g.maxBet()
			}
		}
	}
	return false
}

// settled reports whether the current street is complete: every seat
// still active has matched the table's max bet and has acted since the
// last raise.
func (g *Game) settled() bool {
	mb := g.maxBet()
	for _, p := range g.Players {
		if p.Status != Active {
			continue
		}
		if p.Bet != mb || !p.HasActed {
			return false
		}
	}
	return true
}

// advanceStreet resets per-street state and reveals the next community
// cards. The dealer acts first on every street heads-up.
func (g *Game) advanceStreet() {
	for _, p := range g.Players {
		p.Bet = 0
		p.HasActed = false
	}
	g.MinRaise = g.BaseBet

	switch g.Street {
	case Preflop:
		g.dealCommunity(3)
		g.Street = Flop
	case Flop:
		g.dealCommunity(1)
		g.Street = Turn
	case Turn:
		g.dealCommunity(1)
		g.Street = River
	}

	g.Turn = g.firstToAct()
}

// firstToAct returns the dealer seat if it can still act, otherwise
// the other seat.
func (g *Game) firstToAct() int {
	if g.Players[g.Dealer].Status == Active {
		return g.Dealer
	}
	return otherSeat(g.Dealer)
}

func (g *Game) dealCommunity(n int) {
	cards, err := g.Deck.Draw(n)
	if err != nil {
		// Deck sizing is a state machine precondition: 52 cards cover
		// 4 hole cards plus a full board.
		panic("holdem: deck exhausted mid-hand: " + err.Error())
	}
	g.Community = append(g.Community, cards...)
}

// runOut deals any remaining community cards without further betting
// and shows down. Models a same-street all-in.
func (g *Game) runOut() {
	g.returnExcess()
	for g.Street != River {
		switch g.Street {
		case Preflop:
			g.dealCommunity(3)
			g.Street = Flop
		case Flop:
			g.dealCommunity(1)
			g.Street = Turn
		case Turn:
			g.dealCommunity(1)
			g.Street = River
		}
	}
	g.showdown()
}

// returnExcess refunds the unmatchable part of an oversized all-in bet
// before showdown: with one opponent the pot can only ever be contested
// up to the smaller total.
func (g *Game) returnExcess() {
	a, b := g.Players[0], g.Players[1]
	if a.Status == Folded || b.Status == Folded {
		return
	}
	var over *Seat
	diff := a.Bet - b.Bet
	if diff > 0 {
		over = a
	} else if diff < 0 {
		over = b
		diff = -diff
	}
	if over == nil {
		return
	}
	over.Chips += diff
	over.Bet -= diff
	g.Pot -= diff
	if over.Status == AllIn && over.Chips > 0 {
		over.Status = Active
	}
}

// awardFoldWin gives the whole pot to the last seat with a live hand.
// No cards are revealed and the evaluator never runs.
func (g *Game) awardFoldWin(seat int) {
	g.Players[seat].Chips += g.Pot
	g.Pot = 0
	g.Winner = seat
	g.Status = Finished
}

// showdown evaluates every non-folded seat's best hand and distributes
// the pot. Exact ties split evenly; the odd chip goes to the dealer
// seat.
func (g *Game) showdown() {
	g.Street = Showdown

	type contender struct {
		seat   int
		result evaluator.Result
	}
	var alive []contender
	for i, p := range g.Players {
		if p.Status == Folded {
			continue
		}
		cards := append(append([]deck.Card{}, p.HoleCards...), g.Community...)
		alive = append(alive, contender{seat: i, result: evaluator.Evaluate(cards)})
	}

	best := alive[0]
	tied := false
	for _, c := range alive[1:] {
		switch cmp := evaluator.Compare(c.result, best.result); {
		case cmp > 0:
			best = c
			tied = false
		case cmp == 0:
			tied = true
		}
	}

	if tied {
		share := g.Pot / len(alive)
		for _, c := range alive {
			g.Players[c.seat].Chips += share
		}
		if rem := g.Pot - share*len(alive); rem > 0 {
			g.Players[g.Dealer].Chips += rem
		}
		g.Draw = true
		g.Winner = -1
	} else {
		g.Players[best.seat].Chips += g.Pot
		g.Winner = best.seat
	}

	g.Pot = 0
	g.Status = Finished
}

// maxBet returns the table's highest current-street bet.
func (g *Game) maxBet() int {
	mb := 0
	for _, p := range g.Players {
		if p.Bet > mb {
			mb = p.Bet
		}
	}
	return mb
}

// activeCount counts seats that can still bet.
func (g *Game) activeCount() int {
	n := 0
	for _, p := range g.Players {
		if p.Status == Active {
			n++
		}
	}
	return n
}

// lastNonFolded reports the sole seat with a live hand, if the other
// seat has folded.
func (g *Game) lastNonFolded() (seat int, only bool) {
	seat = -1
	for i, p := range g.Players {
		if p.Status != Folded {
			if seat >= 0 {
				return -1, false
			}
			seat = i
		}
	}
	return seat, seat >= 0
}

func otherSeat(seat int) int {
	return (seat + 1) % NumSeats
}
