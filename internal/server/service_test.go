package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtable/internal/deck"
	"cardtable/internal/holdem"
	"cardtable/internal/room"
	"cardtable/internal/trick"
)

// fakePublisher records every message per connection for assertions.
type fakePublisher struct {
	mu         sync.Mutex
	sent       map[string][]*Message
	broadcasts []*Message
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{sent: make(map[string][]*Message)}
}

func (p *fakePublisher) SendTo(connID string, msg *Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent[connID] = append(p.sent[connID], msg)
	return nil
}

func (p *fakePublisher) Broadcast(msg *Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts = append(p.broadcasts, msg)
}

func (p *fakePublisher) lastBroadcastOfType(msgType MessageType) *Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found *Message
	for _, m := range p.broadcasts {
		if m.Type == msgType {
			found = m
		}
	}
	return found
}

func (p *fakePublisher) lastOfType(connID string, msgType MessageType) *Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found *Message
	for _, m := range p.sent[connID] {
		if m.Type == msgType {
			found = m
		}
	}
	return found
}

func (p *fakePublisher) countOfType(connID string, msgType MessageType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.sent[connID] {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func stackedDeckFunc(codes string) DeckFunc {
	return func() *deck.Deck {
		d := deck.New(nil)
		d.Restore(deck.MustParseCards(codes))
		return d
	}
}

func newTestService(t *testing.T, cfg room.Config) (*GameService, *fakePublisher, *quartz.Mock) {
	t.Helper()
	logger := log.New(io.Discard)
	registry := room.NewRegistry(room.NewMemoryStore(), cfg, logger)
	pub := newFakePublisher()
	clock := quartz.NewMock(t)
	return NewGameService(registry, pub, clock, logger), pub, clock
}

func decodeTrickView(t *testing.T, msg *Message) room.TrickView {
	t.Helper()
	require.NotNil(t, msg)
	var v room.TrickView
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

func decodeHoldemView(t *testing.T, msg *Message) room.HoldemView {
	t.Helper()
	require.NotNil(t, msg)
	var v room.HoldemView
	require.NoError(t, json.Unmarshal(msg.Data, &v))
	return v
}

const trickScript = "AsKsQsJdTd9d" // seat 0: As Ks Qs, seat 1: Jd Td 9d

func startTrickPair(t *testing.T, svc *GameService) string {
	t.Helper()
	ctx := context.Background()
	roomID, err := svc.CreateRoom(ctx, "trick", "alice", "Alice", "conn-a")
	require.NoError(t, err)
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))
	return roomID
}

func TestCreateRoomRejectsUnknownKind(t *testing.T) {
	svc, _, _ := newTestService(t, room.Config{})
	_, err := svc.CreateRoom(context.Background(), "chess", "alice", "Alice", "conn-a")
	assert.Error(t, err)
}

func TestJoinFillingRoomStartsGame(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 3}})
	svc.TrickDeck = stackedDeckFunc(trickScript)

	roomID := startTrickPair(t, svc)

	// Both members got the public broadcast and their own private view
	public := decodeTrickView(t, pub.lastOfType("conn-b", MessageTypeGameState))
	assert.Equal(t, roomID, public.RoomID)
	assert.Equal(t, "playing", public.Status)
	assert.Equal(t, "alice", public.TurnUserID)
	assert.Nil(t, public.You)
	require.Len(t, public.Players, 2)
	assert.Equal(t, 3, public.Players[0].HandCount)

	private := decodeTrickView(t, pub.lastOfType("conn-a", MessageTypePrivateState))
	require.NotNil(t, private.You)
	assert.Equal(t, []string{"As", "Ks", "Qs"}, private.You.Cards)

	// Seat 1's cards never reach seat 0's connection
	pub.mu.Lock()
	for _, m := range pub.sent["conn-a"] {
		assert.NotContains(t, string(m.Data), "Jd")
	}
	pub.mu.Unlock()
}

func TestPlayCardToGameOver(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 1}})
	svc.TrickDeck = stackedDeckFunc("KsAh")
	ctx := context.Background()

	roomID := startTrickPair(t, svc)

	require.NoError(t, svc.PlayCard(ctx, roomID, "alice", "Ks"))
	require.NoError(t, svc.PlayCard(ctx, roomID, "bob", "Ah"))

	over := pub.lastOfType("conn-a", MessageTypeGameOver)
	require.NotNil(t, over)
	var data GameOverData
	require.NoError(t, json.Unmarshal(over.Data, &data))
	assert.Equal(t, "bob", data.Winner)
	assert.False(t, data.Draw)
}

func TestPlayCardValidation(t *testing.T) {
	svc, _, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 1}})
	svc.TrickDeck = stackedDeckFunc("KsAh")
	ctx := context.Background()

	roomID := startTrickPair(t, svc)

	err := svc.PlayCard(ctx, roomID, "bob", "Ah")
	assert.ErrorIs(t, err, trick.ErrNotYourTurn)

	err = svc.PlayCard(ctx, roomID, "alice", "Qd")
	assert.ErrorIs(t, err, trick.ErrCardNotInHand)

	err = svc.PlayCard(ctx, roomID, "alice", "banana")
	assert.Error(t, err)

	err = svc.PlayCard(ctx, roomID, "mallory", "Ks")
	assert.ErrorIs(t, err, room.ErrNotSeated)

	err = svc.PlayCard(ctx, "missing", "alice", "Ks")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRequestDealHostOnly(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 1}})
	svc.TrickDeck = stackedDeckFunc("KsAh")
	ctx := context.Background()

	roomID := startTrickPair(t, svc)

	err := svc.RequestDeal(ctx, roomID, "bob")
	assert.ErrorIs(t, err, trick.ErrNotYourTurn)

	svc.TrickDeck = stackedDeckFunc("QdJc")
	require.NoError(t, svc.RequestDeal(ctx, roomID, "alice"))

	private := decodeTrickView(t, pub.lastOfType("conn-a", MessageTypePrivateState))
	require.NotNil(t, private.You)
	assert.Equal(t, []string{"Qd"}, private.You.Cards)
}

func TestListRooms(t *testing.T) {
	svc, _, _ := newTestService(t, room.Config{})
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, "holdem", "alice", "Alice", "conn-a")
	require.NoError(t, err)

	rooms, err := svc.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].RoomID)
	assert.Equal(t, room.KindHoldem, rooms[0].Kind)
	assert.Equal(t, "Alice", rooms[0].Host)
	assert.Equal(t, 1, rooms[0].Players)

	// A full room is playing and no longer listed
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))
	rooms, err = svc.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestRoomListPushedOnCreateAndJoin(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 3}})
	svc.TrickDeck = stackedDeckFunc(trickScript)
	ctx := context.Background()

	// Creating a room announces it to every connected client
	roomID, err := svc.CreateRoom(ctx, "trick", "alice", "Alice", "conn-a")
	require.NoError(t, err)

	var list RoomListData
	msg := pub.lastBroadcastOfType(MessageTypeRoomList)
	require.NotNil(t, msg)
	require.NoError(t, json.Unmarshal(msg.Data, &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, roomID, list.Rooms[0].RoomID)

	// Filling the room pushes an updated list without it
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))

	msg = pub.lastBroadcastOfType(MessageTypeRoomList)
	require.NotNil(t, msg)
	list = RoomListData{}
	require.NoError(t, json.Unmarshal(msg.Data, &list))
	assert.Empty(t, list.Rooms)

	// A reconnect pushes the list as well
	svc.Disconnect(ctx, "conn-b")
	before := len(pub.broadcasts)
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b2"))
	assert.Greater(t, len(pub.broadcasts), before)
}

const holdemScript = "AsAd7c2h" + "3s5d9hJcQs"

func TestHoldemFoldSchedulesNextHand(t *testing.T) {
	svc, pub, clock := newTestService(t, room.Config{})
	svc.HoldemDeck = stackedDeckFunc(holdemScript)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, "holdem", "alice", "Alice", "conn-a")
	require.NoError(t, err)
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))

	view := decodeHoldemView(t, pub.lastOfType("conn-a", MessageTypeGameState))
	assert.Equal(t, 1, view.HandNumber)
	assert.Equal(t, "alice", view.DealerUserID)
	assert.Equal(t, "alice", view.TurnUserID)

	require.NoError(t, svc.HoldemAction(ctx, roomID, "alice", "fold", 0))

	result := pub.lastOfType("conn-b", MessageTypeHandResult)
	require.NotNil(t, result)
	var hr HandResultData
	require.NoError(t, json.Unmarshal(result.Data, &hr))
	assert.Equal(t, 1, hr.HandNumber)
	assert.Equal(t, "bob", hr.Winner)

	// No game over: both stacks are alive and the next hand is pending
	assert.Nil(t, pub.lastOfType("conn-a", MessageTypeGameOver))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	clock.Advance(2500 * time.Millisecond).MustWait(waitCtx)

	view = decodeHoldemView(t, pub.lastOfType("conn-a", MessageTypeGameState))
	assert.Equal(t, 2, view.HandNumber)
	assert.Equal(t, "bob", view.DealerUserID, "button rotates between hands")
}

func TestHoldemEliminationEndsRoom(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Holdem: holdem.Config{StartChips: 50}})
	svc.HoldemDeck = stackedDeckFunc(holdemScript)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, "holdem", "alice", "Alice", "conn-a")
	require.NoError(t, err)
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))

	require.NoError(t, svc.HoldemAction(ctx, roomID, "alice", "raise", 40))
	require.NoError(t, svc.HoldemAction(ctx, roomID, "bob", "call", 0))

	over := pub.lastOfType("conn-b", MessageTypeGameOver)
	require.NotNil(t, over)
	var data GameOverData
	require.NoError(t, json.Unmarshal(over.Data, &data))
	assert.Equal(t, "alice", data.Winner)

	// The room is finished; nobody can act and no seat reopens
	err = svc.HoldemAction(ctx, roomID, "bob", "check", 0)
	assert.ErrorIs(t, err, holdem.ErrInvalidGameState)
	err = svc.JoinRoom(ctx, roomID, "carol", "Carol", "conn-c")
	assert.ErrorIs(t, err, room.ErrRoomFinished)
}

func TestHoldemActionValidation(t *testing.T) {
	svc, _, _ := newTestService(t, room.Config{})
	svc.HoldemDeck = stackedDeckFunc(holdemScript)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, "holdem", "alice", "Alice", "conn-a")
	require.NoError(t, err)
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b"))

	err = svc.HoldemAction(ctx, roomID, "alice", "levitate", 0)
	assert.ErrorIs(t, err, holdem.ErrInvalidAction)

	err = svc.HoldemAction(ctx, roomID, "bob", "check", 0)
	assert.ErrorIs(t, err, holdem.ErrNotYourTurn)

	err = svc.HoldemAction(ctx, roomID, "alice", "check", 0)
	assert.ErrorIs(t, err, holdem.ErrInvalidAction)
}

func TestDisconnectAndReconnectKeepsHand(t *testing.T) {
	svc, pub, _ := newTestService(t, room.Config{Trick: trick.Config{HandSize: 3}})
	svc.TrickDeck = stackedDeckFunc(trickScript)
	ctx := context.Background()

	roomID := startTrickPair(t, svc)

	svc.Disconnect(ctx, "conn-b")

	public := decodeTrickView(t, pub.lastOfType("conn-a", MessageTypeGameState))
	require.Len(t, public.Players, 2)
	assert.True(t, public.Players[0].Connected)
	assert.False(t, public.Players[1].Connected)

	// Bob returns on a fresh connection and gets his hand back
	require.NoError(t, svc.JoinRoom(ctx, roomID, "bob", "Bob", "conn-b2"))

	private := decodeTrickView(t, pub.lastOfType("conn-b2", MessageTypePrivateState))
	require.NotNil(t, private.You)
	assert.Equal(t, 1, private.You.Seat)
	assert.Equal(t, []string{"Jd", "Td", "9d"}, private.You.Cards)
	assert.Equal(t, "playing", private.Status)

	public = decodeTrickView(t, pub.lastOfType("conn-a", MessageTypeGameState))
	assert.True(t, public.Players[1].Connected)
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{room.ErrRoomNotFound, "room_not_found"},
		{room.ErrRoomFull, "room_full"},
		{room.ErrRoomFinished, "room_finished"},
		{room.ErrNotSeated, "not_seated"},
		{trick.ErrNotYourTurn, "not_your_turn"},
		{holdem.ErrNotYourTurn, "not_your_turn"},
		{trick.ErrCardNotInHand, "card_not_in_hand"},
		{holdem.ErrInvalidAction, "invalid_action"},
		{trick.ErrInvalidGameState, "invalid_game_state"},
		{holdem.ErrInvalidGameState, "invalid_game_state"},
		{io.EOF, "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorCode(tt.err), tt.err)
	}
}
