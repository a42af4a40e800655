package room

import (
	"cardtable/internal/deck"
	"cardtable/internal/holdem"
	"cardtable/internal/trick"
)

// View building derives broadcast payloads from authoritative state.
// Public views carry hand counts only; a private view is the public
// view plus the requesting seat's own cards, so no code path can leak
// an opponent's hand.

// HandView is the private portion appended for the owning seat.
type HandView struct {
	Seat  int      `json:"seat"`
	Cards []string `json:"cards"`
}

// TrickPlayerView is the public per-player trick-game state.
type TrickPlayerView struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	HandCount int    `json:"handCount"`
	Connected bool   `json:"connected"`
}

// CenterCardView is a face-up card in the center slot.
type CenterCardView struct {
	Card   string `json:"card"`
	UserID string `json:"playedBy"`
}

// TrickView is the trick-game room state as broadcast.
type TrickView struct {
	RoomID     string            `json:"roomId"`
	Status     string            `json:"status"`
	TurnUserID string            `json:"turn"`
	TrumpSuit  string            `json:"trumpSuit,omitempty"`
	Winner     string            `json:"winner,omitempty"`
	Draw       bool              `json:"isDraw"`
	Center     []CenterCardView  `json:"centerPile"`
	Players    []TrickPlayerView `json:"players"`
	You        *HandView         `json:"you,omitempty"`
}

// TrickPublic builds the view every room member may see.
func (r *Room) TrickPublic() TrickView {
	g := r.Trick
	v := TrickView{
		RoomID: r.ID,
		Status: g.Status.String(),
		Draw:   g.Draw,
		Center: make([]CenterCardView, 0, len(g.Center)),
	}
	if g.HasTrump {
		v.TrumpSuit = g.Trump.String()
	}
	if g.Status == trick.Playing && g.Turn < len(r.Members) {
		v.TurnUserID = r.Members[g.Turn].UserID
	}
	if g.Winner >= 0 && g.Winner < len(r.Members) {
		v.Winner = r.Members[g.Winner].UserID
	}
	for _, pc := range g.Center {
		entry := CenterCardView{Card: pc.Card.Code()}
		if pc.Seat < len(r.Members) {
			entry.UserID = r.Members[pc.Seat].UserID
		}
		v.Center = append(v.Center, entry)
	}
	for seat, m := range r.Members {
		v.Players = append(v.Players, TrickPlayerView{
			UserID:    m.UserID,
			Name:      m.Name,
			Score:     g.Scores[seat],
			HandCount: len(g.Hands[seat]),
			Connected: m.ConnID != "",
		})
	}
	return v
}

// TrickPrivate is the public view plus the seat's own hand.
func (r *Room) TrickPrivate(seat int) TrickView {
	v := r.TrickPublic()
	v.You = &HandView{Seat: seat, Cards: cardCodes(r.Trick.Hands[seat])}
	return v
}

// HoldemPlayerView is the public per-player Hold'em state.
type HoldemPlayerView struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	Chips      int    `json:"chips"`
	CurrentBet int    `json:"currentBet"`
	Status     string `json:"status"`
	HasActed   bool   `json:"hasActed"`
	HoleCount  int    `json:"holeCount"`
	Connected  bool   `json:"connected"`
}

// HoldemView is the Hold'em room state as broadcast.
type HoldemView struct {
	RoomID       string             `json:"roomId"`
	Status       string             `json:"status"`
	Street       string             `json:"street"`
	Pot          int                `json:"pot"`
	MinimumRaise int                `json:"minimumRaise"`
	Community    []string           `json:"communityCards"`
	Players      []HoldemPlayerView `json:"players"`
	TurnUserID   string             `json:"currentTurnUserId"`
	DealerUserID string             `json:"dealerUserId"`
	Winner       string             `json:"winner,omitempty"`
	Draw         bool               `json:"isDraw"`
	HandNumber   int                `json:"handNumber"`
	You          *HandView          `json:"you,omitempty"`
}

// HoldemPublic builds the view every room member may see.
func (r *Room) HoldemPublic() HoldemView {
	g := r.Holdem
	v := HoldemView{
		RoomID:       r.ID,
		Status:       g.Status.String(),
		Street:       g.Street.String(),
		Pot:          g.Pot,
		MinimumRaise: g.MinRaise,
		Community:    cardCodes(g.Community),
		Draw:         g.Draw,
		HandNumber:   g.HandNumber,
	}
	if g.Status == holdem.Playing && g.Turn < len(r.Members) {
		v.TurnUserID = r.Members[g.Turn].UserID
	}
	if g.Dealer < len(r.Members) {
		v.DealerUserID = r.Members[g.Dealer].UserID
	}
	if g.Winner >= 0 && g.Winner < len(r.Members) {
		v.Winner = r.Members[g.Winner].UserID
	}
	for seat, m := range r.Members {
		p := g.Players[seat]
		v.Players = append(v.Players, HoldemPlayerView{
			UserID:     m.UserID,
			Name:       m.Name,
			Chips:      p.Chips,
			CurrentBet: p.Bet,
			Status:     p.Status.String(),
			HasActed:   p.HasActed,
			HoleCount:  len(p.HoleCards),
			Connected:  m.ConnID != "",
		})
	}
	return v
}

// HoldemPrivate is the public view plus the seat's own hole cards.
func (r *Room) HoldemPrivate(seat int) HoldemView {
	v := r.HoldemPublic()
	v.You = &HandView{Seat: seat, Cards: cardCodes(r.Holdem.Players[seat].HoleCards)}
	return v
}

func cardCodes(cards []deck.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Code()
	}
	return out
}
