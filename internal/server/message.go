package server

import (
	"encoding/json"
	"time"

	"cardtable/internal/room"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeAuth         MessageType = "auth"
	MessageTypeCreateRoom   MessageType = "create_room"
	MessageTypeJoinRoom     MessageType = "join_room"
	MessageTypePlayCard     MessageType = "play_card"
	MessageTypeHoldemAction MessageType = "holdem_action"
	MessageTypeRequestDeal  MessageType = "request_deal"
	MessageTypeListRooms    MessageType = "list_rooms"

	// Server to client messages
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeRoomCreated  MessageType = "room_created"
	MessageTypeGameState    MessageType = "game_state"
	MessageTypePrivateState MessageType = "private_state"
	MessageTypeRoomList     MessageType = "room_list"
	MessageTypeHandResult   MessageType = "hand_result"
	MessageTypeGameOver     MessageType = "game_over"
	MessageTypeError        MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type AuthData struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type CreateRoomData struct {
	Kind string `json:"kind"`
}

type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// PlayCardData names a card in compact form, e.g. "As" or "Th".
type PlayCardData struct {
	RoomID string `json:"roomId"`
	Card   string `json:"card"`
}

type HoldemActionData struct {
	RoomID string `json:"roomId"`
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
}

type RequestDealData struct {
	RoomID string `json:"roomId"`
}

// Server → Client Messages

type AuthResponseData struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RoomCreatedData struct {
	RoomID string `json:"roomId"`
	Kind   string `json:"kind"`
}

type RoomListData struct {
	Rooms []room.Summary `json:"rooms"`
}

// HandResultData signals the end of one Hold'em hand. The room deals
// the next hand unless a player was eliminated.
type HandResultData struct {
	RoomID     string `json:"roomId"`
	HandNumber int    `json:"handNumber"`
	Winner     string `json:"winner,omitempty"`
	Draw       bool   `json:"isDraw"`
}

// GameOverData signals a terminal room state.
type GameOverData struct {
	RoomID string `json:"roomId"`
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"isDraw"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
