package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"cardtable/internal/deck"
	"cardtable/internal/holdem"
	"cardtable/internal/randutil"
	"cardtable/internal/room"
	"cardtable/internal/trick"
)

// Time to linger on a finished Hold'em hand before dealing the next one
const nextHandDelay = 2500 * time.Millisecond

// Publisher delivers messages to client connections. The WebSocket
// server implements it; tests substitute a recording fake.
type Publisher interface {
	SendTo(connID string, msg *Message) error
	Broadcast(msg *Message)
}

// DeckFunc produces a shuffled deck for a new game or hand
type DeckFunc func() *deck.Deck

// GameService coordinates rooms, game engines and message delivery
type GameService struct {
	registry *room.Registry
	pub      Publisher
	clock    quartz.Clock
	logger   *log.Logger

	// Overridable for deterministic tests
	TrickDeck  DeckFunc
	HoldemDeck DeckFunc
}

// NewGameService creates a game service backed by the given registry
func NewGameService(registry *room.Registry, pub Publisher, clock quartz.Clock, logger *log.Logger) *GameService {
	return &GameService{
		registry: registry,
		pub:      pub,
		clock:    clock,
		logger:   logger.WithPrefix("service"),
		TrickDeck: func() *deck.Deck {
			return deck.NewShuffled(randutil.New(time.Now().UnixNano()))
		},
		HoldemDeck: func() *deck.Deck {
			// Chip movement rides on these shuffles
			return deck.NewShuffled(randutil.Secure())
		},
	}
}

// CreateRoom creates a room of the given kind and seats the creator as host
func (s *GameService) CreateRoom(ctx context.Context, kindName, userID, name, connID string) (string, error) {
	kind, err := room.ParseKind(kindName)
	if err != nil {
		return "", err
	}

	r, err := s.registry.Create(ctx, kind)
	if err != nil {
		return "", err
	}

	err = s.registry.With(ctx, r.ID, func(r *room.Room) error {
		if _, _, err := r.Admit(userID, name, connID); err != nil {
			return err
		}
		s.publishState(r)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Room created", "roomId", r.ID, "kind", kind, "host", userID)
	s.publishRoomList(ctx)
	return r.ID, nil
}

// JoinRoom seats a user in a room, rebinding their seat if they are
// already a member. Dealing starts as soon as the room fills.
func (s *GameService) JoinRoom(ctx context.Context, roomID, userID, name, connID string) error {
	err := s.registry.With(ctx, roomID, func(r *room.Room) error {
		_, rejoined, err := r.Admit(userID, name, connID)
		if err != nil {
			return err
		}

		if rejoined {
			s.logger.Info("Player reconnected", "roomId", r.ID, "user", userID)
			s.publishState(r)
			return nil
		}

		if r.Full() {
			if err := s.startGame(r); err != nil {
				return err
			}
		}

		s.publishState(r)
		return nil
	})
	if err != nil {
		return err
	}

	s.publishRoomList(ctx)
	return nil
}

// startGame deals the opening hand once both seats are taken
func (s *GameService) startGame(r *room.Room) error {
	switch r.Kind {
	case room.KindTrick:
		if err := r.Trick.Start(s.TrickDeck()); err != nil {
			return err
		}
	case room.KindHoldem:
		if err := r.Holdem.StartHand(s.HoldemDeck()); err != nil {
			return err
		}
	}
	s.logger.Info("Game started", "roomId", r.ID, "kind", r.Kind)
	return nil
}

// PlayCard plays a card in a trick room on behalf of a user
func (s *GameService) PlayCard(ctx context.Context, roomID, userID, cardCode string) error {
	card, err := deck.ParseCard(cardCode)
	if err != nil {
		return err
	}

	return s.registry.With(ctx, roomID, func(r *room.Room) error {
		if r.Kind != room.KindTrick {
			return trick.ErrInvalidGameState
		}
		seat, ok := r.SeatOf(userID)
		if !ok {
			return room.ErrNotSeated
		}

		outcome, err := r.Trick.Play(seat, card)
		if err != nil {
			return err
		}

		s.publishState(r)

		if outcome.GameOver {
			s.publishGameOver(r, r.Trick.Winner, r.Trick.Draw)
		}
		return nil
	})
}

// HoldemAction applies a betting action in a Hold'em room
func (s *GameService) HoldemAction(ctx context.Context, roomID, userID, actionName string, amount int) error {
	action, err := holdem.ParseAction(actionName)
	if err != nil {
		return err
	}

	return s.registry.With(ctx, roomID, func(r *room.Room) error {
		if r.Kind != room.KindHoldem {
			return holdem.ErrInvalidGameState
		}
		seat, ok := r.SeatOf(userID)
		if !ok {
			return room.ErrNotSeated
		}

		outcome, err := r.Holdem.Apply(seat, action, amount)
		if err != nil {
			return err
		}

		s.publishState(r)

		if outcome.HandOver {
			s.finishHand(r)
		}
		return nil
	})
}

// finishHand publishes the hand result and schedules the next deal,
// or ends the room if a player has been felted.
func (s *GameService) finishHand(r *room.Room) {
	g := r.Holdem

	result := HandResultData{
		RoomID:     r.ID,
		HandNumber: g.HandNumber,
		Draw:       g.Draw,
	}
	if g.Winner >= 0 {
		result.Winner = r.Members[g.Winner].UserID
	}
	s.broadcast(r, MessageTypeHandResult, result)

	if busted, ok := g.Eliminated(); ok {
		s.publishGameOver(r, 1-busted, false)
		return
	}

	roomID := r.ID
	s.clock.AfterFunc(nextHandDelay, func() {
		if err := s.nextHand(context.Background(), roomID); err != nil {
			s.logger.Error("Failed to deal next hand", "roomId", roomID, "error", err)
		}
	})
}

// nextHand rotates the button and deals the following hand
func (s *GameService) nextHand(ctx context.Context, roomID string) error {
	return s.registry.With(ctx, roomID, func(r *room.Room) error {
		if r.Kind != room.KindHoldem {
			return holdem.ErrInvalidGameState
		}
		if err := r.Holdem.NextHand(s.HoldemDeck()); err != nil {
			return err
		}
		s.publishState(r)
		return nil
	})
}

// RequestDeal redeals a trick room. Only the host may request it.
func (s *GameService) RequestDeal(ctx context.Context, roomID, userID string) error {
	return s.registry.With(ctx, roomID, func(r *room.Room) error {
		if r.Kind != room.KindTrick {
			return trick.ErrInvalidGameState
		}
		seat, ok := r.SeatOf(userID)
		if !ok {
			return room.ErrNotSeated
		}
		if seat != room.HostSeat {
			return trick.ErrNotYourTurn
		}

		if err := r.Trick.Redeal(s.TrickDeck()); err != nil {
			return err
		}

		s.logger.Info("Room redealt", "roomId", r.ID, "host", userID)
		s.publishState(r)
		return nil
	})
}

// ListRooms returns summaries of rooms still waiting for players
func (s *GameService) ListRooms(ctx context.Context) ([]room.Summary, error) {
	return s.registry.ListOpen(ctx)
}

// Disconnect unbinds a dropped connection from its seats and tells the
// remaining players. Seats and hands are preserved for reconnection.
func (s *GameService) Disconnect(ctx context.Context, connID string) {
	for _, r := range s.registry.DropConnection(connID) {
		err := s.registry.With(ctx, r.ID, func(r *room.Room) error {
			s.publishState(r)
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to publish disconnect state", "roomId", r.ID, "error", err)
		}
	}
}

// publishState broadcasts the public view and sends each seated player
// their private view. Callers must hold the room via Registry.With.
func (s *GameService) publishState(r *room.Room) {
	switch r.Kind {
	case room.KindTrick:
		s.broadcast(r, MessageTypeGameState, r.TrickPublic())
		for seat, m := range r.Members {
			if m.ConnID == "" {
				continue
			}
			s.sendTo(m.ConnID, MessageTypePrivateState, r.TrickPrivate(seat))
		}
	case room.KindHoldem:
		s.broadcast(r, MessageTypeGameState, r.HoldemPublic())
		for seat, m := range r.Members {
			if m.ConnID == "" {
				continue
			}
			s.sendTo(m.ConnID, MessageTypePrivateState, r.HoldemPrivate(seat))
		}
	}
}

// publishRoomList pushes the open-room list to every connected client,
// so lobbies learn about new and filled rooms without polling.
func (s *GameService) publishRoomList(ctx context.Context) {
	rooms, err := s.registry.ListOpen(ctx)
	if err != nil {
		s.logger.Error("Failed to list open rooms", "error", err)
		return
	}

	msg, err := NewMessage(MessageTypeRoomList, RoomListData{Rooms: rooms})
	if err != nil {
		s.logger.Error("Failed to encode message", "type", MessageTypeRoomList, "error", err)
		return
	}
	s.pub.Broadcast(msg)
}

func (s *GameService) publishGameOver(r *room.Room, winner int, draw bool) {
	data := GameOverData{RoomID: r.ID, Draw: draw}
	if winner >= 0 && winner < len(r.Members) {
		data.Winner = r.Members[winner].UserID
	}
	s.broadcast(r, MessageTypeGameOver, data)
	s.logger.Info("Game over", "roomId", r.ID, "winner", data.Winner, "draw", draw)
}

// broadcast sends a message to every connected member of a room
func (s *GameService) broadcast(r *room.Room, msgType MessageType, data interface{}) {
	for _, m := range r.Members {
		if m.ConnID == "" {
			continue
		}
		s.sendTo(m.ConnID, msgType, data)
	}
}

func (s *GameService) sendTo(connID string, msgType MessageType, data interface{}) {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		s.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	if err := s.pub.SendTo(connID, msg); err != nil {
		s.logger.Debug("Failed to deliver message", "connId", connID, "type", msgType, "error", err)
	}
}

// errorCode maps a game error onto a stable wire code
func errorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, room.ErrRoomFull):
		return "room_full"
	case errors.Is(err, room.ErrRoomFinished):
		return "room_finished"
	case errors.Is(err, room.ErrNotSeated):
		return "not_seated"
	case errors.Is(err, trick.ErrNotYourTurn), errors.Is(err, holdem.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, trick.ErrCardNotInHand):
		return "card_not_in_hand"
	case errors.Is(err, holdem.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, trick.ErrInvalidGameState), errors.Is(err, holdem.ErrInvalidGameState):
		return "invalid_game_state"
	default:
		return "internal_error"
	}
}
