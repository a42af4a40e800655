package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	id          string
	conn        *websocket.Conn
	send        chan *Message
	userID      string
	userName    string
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	closeOnce   sync.Once
	gameService *GameService
	onClose     func(*Connection)
}

// NewConnection creates a new connection wrapper
func NewConnection(id string, conn *websocket.Conn, logger *log.Logger, gameService *GameService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		id:          id,
		conn:        conn,
		send:        make(chan *Message, 256),
		logger:      logger.WithPrefix("conn"),
		ctx:         ctx,
		cancel:      cancel,
		gameService: gameService,
	}
}

// ID returns the connection's stable identifier
func (c *Connection) ID() string {
	return c.id
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, this is expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetUser associates this connection with an authenticated user
func (c *Connection) SetUser(userID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.userName = name
}

// UserID returns the associated user ID
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// UserName returns the associated display name
func (c *Connection) UserName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userName
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "user", c.UserID())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse create room data")
			return
		}
		c.handleCreateRoom(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypePlayCard:
		var data PlayCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse play card data")
			return
		}
		c.handlePlayCard(data)

	case MessageTypeHoldemAction:
		var data HoldemActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse action data")
			return
		}
		c.handleHoldemAction(data)

	case MessageTypeRequestDeal:
		var data RequestDealData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse deal request data")
			return
		}
		c.handleRequestDeal(data)

	case MessageTypeListRooms:
		c.handleListRooms()

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}

// sendServiceError maps a game error onto the wire error taxonomy
func (c *Connection) sendServiceError(err error) {
	c.sendError(errorCode(err), err.Error())
}

func (c *Connection) handleAuth(data AuthData) {
	c.logger.Info("Auth request", "userId", data.UserID, "name", data.Name)

	if data.UserID == "" || data.Name == "" {
		c.sendError("invalid_auth", "User ID and name required")
		return
	}

	c.SetUser(data.UserID, data.Name)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success: true,
		UserID:  data.UserID,
	})
	_ = c.SendMessage(response) // Ignore send errors
}

// requireUser returns the authenticated user ID, erroring the client if absent
func (c *Connection) requireUser() (string, bool) {
	userID := c.UserID()
	if userID == "" {
		c.sendError("not_authenticated", "Must authenticate first")
		return "", false
	}
	return userID, true
}

func (c *Connection) handleCreateRoom(data CreateRoomData) {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	c.logger.Info("Create room request", "user", userID, "kind", data.Kind)

	roomID, err := c.gameService.CreateRoom(c.ctx, data.Kind, userID, c.UserName(), c.id)
	if err != nil {
		c.sendServiceError(err)
		return
	}

	response, _ := NewMessage(MessageTypeRoomCreated, RoomCreatedData{
		RoomID: roomID,
		Kind:   data.Kind,
	})
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	c.logger.Info("Join room request", "roomId", data.RoomID, "user", userID)

	if err := c.gameService.JoinRoom(c.ctx, data.RoomID, userID, c.UserName(), c.id); err != nil {
		c.sendServiceError(err)
		return
	}

	// No direct response needed - the service publishes the room state
}

func (c *Connection) handlePlayCard(data PlayCardData) {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	c.logger.Info("Play card", "roomId", data.RoomID, "user", userID, "card", data.Card)

	if err := c.gameService.PlayCard(c.ctx, data.RoomID, userID, data.Card); err != nil {
		c.sendServiceError(err)
		return
	}
}

func (c *Connection) handleHoldemAction(data HoldemActionData) {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	c.logger.Info("Holdem action", "roomId", data.RoomID, "user", userID, "action", data.Action, "amount", data.Amount)

	if err := c.gameService.HoldemAction(c.ctx, data.RoomID, userID, data.Action, data.Amount); err != nil {
		c.sendServiceError(err)
		return
	}
}

func (c *Connection) handleRequestDeal(data RequestDealData) {
	userID, ok := c.requireUser()
	if !ok {
		return
	}

	c.logger.Info("Deal request", "roomId", data.RoomID, "user", userID)

	if err := c.gameService.RequestDeal(c.ctx, data.RoomID, userID); err != nil {
		c.sendServiceError(err)
		return
	}
}

func (c *Connection) handleListRooms() {
	if _, ok := c.requireUser(); !ok {
		return
	}

	rooms, err := c.gameService.ListRooms(c.ctx)
	if err != nil {
		c.sendServiceError(err)
		return
	}

	response, _ := NewMessage(MessageTypeRoomList, RoomListData{
		Rooms: rooms,
	})
	_ = c.SendMessage(response) // Ignore send errors
}
