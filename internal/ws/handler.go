package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"qarena-service/internal/service/auth"
	"qarena-service/internal/service/matchmaking"
	"qarena-service/internal/service/room"
	pkgAuth "qarena-service/pkg/auth"
	appErr "qarena-service/pkg/errors"
	"qarena-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	authSvc  *auth.Service
	matchSvc *matchmaking.Service
	roomSvc  *room.Service
}

func NewHandler(authSvc *auth.Service, matchSvc *matchmaking.Service, roomSvc *room.Service) *Handler {
	return &Handler{authSvc: authSvc, matchSvc: matchSvc, roomSvc: roomSvc}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

type outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// HandleLobbyWS serves the matchmaking lobby socket: queue/dequeue inbound,
// queued/match_found outbound.
func (h *Handler) HandleLobbyWS(c *gin.Context) {
	userID, err := h.authenticate(c)
	if err != nil {
		return
	}

	user, err := h.authSvc.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown player"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	logger.Log.Info("New lobby connection", zap.Int64("playerID", userID))

	client := &lobbyClient{
		handler:  h,
		conn:     conn,
		userID:   userID,
		name:     user.DisplayName,
		level:    user.EducationLevel,
		rating:   user.SkillRating,
		outbound: make(chan outgoing, 8),
		done:     make(chan struct{}),
	}
	client.run()
}

// HandleRoomWS attaches a player's transport to a live room actor.
func (h *Handler) HandleRoomWS(c *gin.Context) {
	roomID := strings.TrimSpace(c.Param("roomId"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID, err := h.authenticate(c)
	if err != nil {
		return
	}

	actor, err := h.roomSvc.GetActor(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	outbound, err := actor.Attach(userID)
	if err != nil {
		reason := "room closed"
		if errors.Is(err, appErr.ErrRoomAccessDenied) {
			reason = "room access denied"
		}
		conn.WriteJSON(outgoing{Type: "error", Data: gin.H{"reason": reason}})
		conn.Close()
		return
	}

	logger.Log.Info("New room connection",
		zap.String("roomID", roomID),
		zap.Int64("playerID", userID),
	)

	client := newRoomClient(conn, userID, roomID, actor, outbound)
	client.run()
}

func (h *Handler) authenticate(c *gin.Context) (int64, error) {
	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return 0, err
	}
	claims, err := pkgAuth.ParseToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return 0, err
	}
	return claims.SubjectID, nil
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type lobbyClient struct {
	handler *Handler
	conn    *websocket.Conn
	userID  int64
	name    string
	level   string
	rating  int

	outbound chan outgoing
	done     chan struct{}
}

func (c *lobbyClient) run() {
	go c.writePump()
	c.readPump()
}

func (c *lobbyClient) readPump() {
	defer func() {
		close(c.done)
		c.handler.matchSvc.Dequeue(context.Background(), c.userID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 16)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("Lobby read error", zap.Error(err), zap.Int64("playerID", c.userID))
			return
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.push(outgoing{Type: "error", Data: gin.H{"reason": "invalid payload"}})
			continue
		}

		switch incoming.Type {
		case "queue":
			c.handleQueue(incoming.Data)
		case "dequeue":
			c.handler.matchSvc.Dequeue(context.Background(), c.userID)
		case "ping":
			c.push(outgoing{Type: "pong", Data: gin.H{"message": "pong"}})
		case "":
		default:
			c.push(outgoing{Type: "error", Data: gin.H{"reason": "unsupported message"}})
		}
	}
}

func (c *lobbyClient) handleQueue(data json.RawMessage) {
	var payload struct {
		GameID int64 `json:"gameId,string"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			// gameId may also arrive as a bare number
			var alt struct {
				GameID int64 `json:"gameId"`
			}
			if err := json.Unmarshal(data, &alt); err != nil {
				c.push(outgoing{Type: "error", Data: gin.H{"reason": "invalid payload"}})
				return
			}
			payload.GameID = alt.GameID
		}
	}

	// Identity fields (name, level, rating) come from the authenticated User
	// row, never from the client payload.
	ticket, err := c.handler.matchSvc.Enqueue(context.Background(), matchmaking.EnqueueRequest{
		PlayerID:       c.userID,
		DisplayName:    c.name,
		GameID:         payload.GameID,
		EducationLevel: c.level,
		SkillRating:    c.rating,
	}, c.notify)
	if err != nil {
		c.push(outgoing{Type: "error", Data: gin.H{"reason": err.Error()}})
		return
	}
	c.push(outgoing{Type: "queued", Data: gin.H{
		"position":        ticket.Position,
		"estimatedWaitMs": ticket.EstimatedWaitMs,
	}})
}

// notify is invoked from the matchmaking actor goroutine.
func (c *lobbyClient) notify(n matchmaking.Notification) {
	c.push(outgoing{Type: n.Type, Data: n.Data})
}

func (c *lobbyClient) push(msg outgoing) {
	select {
	case c.outbound <- msg:
	case <-c.done:
	default:
		logger.Log.Warn("lobby channel full", zap.Int64("playerID", c.userID))
	}
}

func (c *lobbyClient) writePump() {
	ticker := time.NewTicker(25 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outbound:
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("Lobby write error", zap.Error(err), zap.Int64("playerID", c.userID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

type roomClient struct {
	conn      *websocket.Conn
	userID    int64
	roomID    string
	actor     *room.Actor
	outbound  <-chan room.OutgoingMessage
	done      chan struct{}
	pingEvery time.Duration
}

func newRoomClient(conn *websocket.Conn, userID int64, roomID string, actor *room.Actor, outbound <-chan room.OutgoingMessage) *roomClient {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	return &roomClient{
		conn:      conn,
		userID:    userID,
		roomID:    roomID,
		actor:     actor,
		outbound:  outbound,
		done:      make(chan struct{}),
		pingEvery: 25 * time.Second,
	}
}

func (c *roomClient) run() {
	go c.writePump()
	c.readPump()
}

func (c *roomClient) readPump() {
	defer func() {
		close(c.done)
		// Transport loss, not an intentional leave: the actor keeps the seat
		// and opens the grace window.
		c.actor.Detach(c.userID)
		c.conn.Close()
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("Room read error", zap.Error(err), zap.Int64("playerID", c.userID), zap.String("roomID", c.roomID))
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var incoming struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(message, &incoming); err != nil {
			c.safeWrite(room.OutgoingMessage{Type: "error", Data: gin.H{"reason": "invalid payload"}})
			continue
		}
		if incoming.Type == "" {
			continue
		}

		if err := c.actor.HandleMessage(c.userID, incoming.Type, incoming.Data); err != nil {
			c.safeWrite(room.OutgoingMessage{Type: "error", Data: gin.H{"reason": err.Error()}})
		}
	}
}

func (c *roomClient) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("Room write error", zap.Error(err), zap.Int64("playerID", c.userID), zap.String("roomID", c.roomID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *roomClient) safeWrite(msg room.OutgoingMessage) {
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Log.Info("Room write error", zap.Error(err), zap.Int64("playerID", c.userID), zap.String("roomID", c.roomID))
	}
}

