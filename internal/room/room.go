// Package room owns the unit of isolation of the engine: a room binds
// an ordered member list to exactly one game state machine, the
// registry serializes all mutations per room, and the store keeps a
// versioned snapshot so no action ever runs against stale state.
package room

import (
	"errors"
	"sync"

	"cardtable/internal/holdem"
	"cardtable/internal/trick"
)

// Recoverable admission errors.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomFinished = errors.New("room already finished")
	ErrNotSeated    = errors.New("user has no seat in this room")
)

// Kind selects which game a room plays.
type Kind string

const (
	KindTrick  Kind = "trick"
	KindHoldem Kind = "holdem"
)

// ParseKind validates a wire game kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTrick, KindHoldem:
		return Kind(s), nil
	default:
		return "", errors.New("unknown game kind " + s)
	}
}

// Status is the room lifecycle state as stored and listed.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Member is a seated player. Seat order is fixed at join time and
// defines turn rotation. ConnID is the live connection binding; empty
// means the player is known but currently disconnected. It is runtime
// state only and never persisted.
type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	ConnID string `json:"-"`
}

// Room is one isolated game. All mutation goes through Registry.With,
// which holds mu for the duration.
type Room struct {
	mu sync.Mutex

	ID      string
	Kind    Kind
	Members []*Member
	Version uint64

	Trick  *trick.Game
	Holdem *holdem.Game
}

// Capacity returns the seat count required to start; both games here
// are two-seat games.
func (r *Room) Capacity() int {
	if r.Kind == KindHoldem {
		return holdem.NumSeats
	}
	return trick.Seats
}

// Full reports whether every seat is taken.
func (r *Room) Full() bool {
	return len(r.Members) >= r.Capacity()
}

// Status derives the room lifecycle state from the game.
func (r *Room) Status() Status {
	switch r.Kind {
	case KindHoldem:
		switch r.Holdem.Status {
		case holdem.Playing:
			return StatusPlaying
		case holdem.Finished:
			// Between hands the room is still in play; only an
			// elimination ends it.
			if _, busted := r.Holdem.Eliminated(); busted {
				return StatusFinished
			}
			return StatusPlaying
		default:
			return StatusWaiting
		}
	default:
		switch r.Trick.Status {
		case trick.Playing:
			return StatusPlaying
		case trick.Finished:
			return StatusFinished
		default:
			return StatusWaiting
		}
	}
}

// SeatOf returns the seat index for a user.
func (r *Room) SeatOf(userID string) (int, bool) {
	for i, m := range r.Members {
		if m.UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// Admit seats a connecting identity. A userID matching an existing
// seat rebinds that seat's connection (the reconnect path) and never
// allocates a new one; hand and score state are untouched.
func (r *Room) Admit(userID, name, connID string) (seat int, rejoined bool, err error) {
	if s, ok := r.SeatOf(userID); ok {
		r.Members[s].ConnID = connID
		return s, true, nil
	}
	if r.Status() == StatusFinished {
		return 0, false, ErrRoomFinished
	}
	if r.Full() {
		return 0, false, ErrRoomFull
	}
	r.Members = append(r.Members, &Member{UserID: userID, Name: name, ConnID: connID})
	return len(r.Members) - 1, false, nil
}

// DropConn clears the connection binding for whichever seat holds it.
// Nothing else changes: a disconnect must never mutate hand, score or
// turn state.
func (r *Room) DropConn(connID string) bool {
	for _, m := range r.Members {
		if m.ConnID == connID {
			m.ConnID = ""
			return true
		}
	}
	return false
}

// HostSeat is the privileged seat allowed to trigger a re-deal.
const HostSeat = 0
