package websocket

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
	"github.com/satriahrh/rapat/internal/audio"
	"github.com/satriahrh/rapat/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 2 * 1024 * 1024 // 2MB for audio chunks and frames

	chatTimeout = 60 * time.Second
	repoTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active meeting clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	transport repositories.LiveTransport
	chatModel repositories.ChatModel
	roomRepo  repositories.RoomRepository
	clk       clock.Clock

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	transport repositories.LiveTransport,
	chatModel repositories.ChatModel,
	roomRepo repositories.RoomRepository,
	clk clock.Clock,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		transport:  transport,
		chatModel:  chatModel,
		roomRepo:   roomRepo,
		clk:        clk,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("clientID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			client.teardownBot(false)
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is one meeting participant's connection, holding the AI session
// state for that meeting.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id     string
	logger *zap.Logger

	mutex        sync.Mutex
	userName     string
	room         *entities.Room
	muted        bool
	orchestrator *usecase.Orchestrator
	chat         *usecase.ChatService
	sampler      *usecase.FrameSampler
	frames       *ScreenFrameSource
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan WriteData, 256),
		id:     uuid.New().String(),
		logger: logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendJSON(v any) {
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: marshalMessage(v)}:
	default:
		c.logger.Warn("Dropping outbound message, send buffer full", zap.String("clientID", c.id))
	}
}

func (c *Client) sendBinary(payload []byte) {
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping outbound audio, send buffer full", zap.String("clientID", c.id))
	}
}

func (c *Client) sendError(message string) {
	c.sendJSON(CreateErrorMessage(message))
}

// processMessage processes incoming control messages from the participant
func (c *Client) processMessage(message []byte) {
	var base BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.sendError("invalid message")
		return
	}

	switch base.Type {
	case MessageTypeJoin:
		c.handleJoin(message)
	case MessageTypeAddBot:
		c.handleAddBot(message)
	case MessageTypeRemoveBot:
		c.handleRemoveBot()
	case MessageTypeLeave:
		c.handleLeave()
	case MessageTypeChat:
		c.handleChat(message)
	case MessageTypeMute:
		c.handleMute(message)
	case MessageTypeScreenShare:
		c.handleScreenShare(message)
	case MessageTypeScreenFrame:
		c.handleScreenFrame(message)
	default:
		c.logger.Warn("Unknown message type", zap.String("type", string(base.Type)))
	}
}

// processAudio forwards one binary microphone buffer (PCM16 LE, 16kHz) into
// the live session, split into fixed-size chunks.
func (c *Client) processAudio(data []byte) {
	c.mutex.Lock()
	orchestrator := c.orchestrator
	muted := c.muted
	c.mutex.Unlock()
	if orchestrator == nil || muted {
		return
	}

	samples := audio.DecodePCM16(data)
	for len(samples) > 0 {
		n := entities.AudioChunkSize
		if n > len(samples) {
			n = len(samples)
		}
		orchestrator.SendAudio(samples[:n])
		samples = samples[n:]
	}
}

func (c *Client) handleJoin(message []byte) {
	var msg JoinMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid join message")
		return
	}
	if msg.UserName == "" {
		c.sendError("user_name is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	defer cancel()

	room, err := c.hub.roomRepo.GetByID(ctx, msg.RoomID)
	if err != nil {
		c.logger.Error("Failed to load room", zap.String("roomID", msg.RoomID), zap.Error(err))
		c.sendError("failed to load room")
		return
	}
	if room == nil {
		c.sendError("room not found")
		return
	}

	c.mutex.Lock()
	c.userName = msg.UserName
	c.room = room
	c.mutex.Unlock()

	c.logger.Info("Participant joined",
		zap.String("clientID", c.id),
		zap.String("roomID", room.ID),
		zap.String("userName", msg.UserName))
	c.sendJSON(&ConnectionStateMessage{BaseMessage: newBase(MessageTypeConnectionState), State: entities.ConnectionIdle})
}

// previousMeetingContext derives the prior-meeting transcript carried into a
// fresh session. Reports are appended in chronological order, so the last one
// is the most recent meeting.
func previousMeetingContext(room *entities.Room) string {
	if room == nil || len(room.Reports) == 0 {
		return ""
	}
	return room.Reports[len(room.Reports)-1].Transcript
}

func (c *Client) handleAddBot(message []byte) {
	var msg AddBotMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid add_bot message")
		return
	}

	c.mutex.Lock()
	if c.userName == "" || c.room == nil {
		c.mutex.Unlock()
		c.sendError("join a room first")
		return
	}
	if c.orchestrator != nil {
		c.mutex.Unlock()
		c.sendError("an AI expert is already in the meeting")
		return
	}
	room := c.room
	userName := c.userName
	c.mutex.Unlock()

	// re-read the room so reports saved by an earlier session are seen
	ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
	if fresh, err := c.hub.roomRepo.GetByID(ctx, room.ID); err == nil && fresh != nil {
		room = fresh
	}
	cancel()

	persona, ok := entities.PersonaByID(msg.PersonaID)
	if !ok {
		c.sendError("unknown persona")
		return
	}
	if persona.ID == entities.CustomPersonaID {
		persona = persona.Clone(msg.CustomName)
	}

	cfg := entities.MeetingConfig{
		ParticipantName: userName,
		Room:            room,
		PreviousContext: previousMeetingContext(room),
	}
	saveReport := func(ctx context.Context, report entities.RoomReport) error {
		return c.hub.roomRepo.AppendReport(ctx, room.ID, report)
	}
	events := usecase.OrchestratorEvents{
		OnConnectionState: func(state entities.ConnectionState) {
			c.sendJSON(&ConnectionStateMessage{BaseMessage: newBase(MessageTypeConnectionState), State: state})
		},
		OnBotState: func(state entities.BotState) {
			c.sendJSON(&BotStateMessage{BaseMessage: newBase(MessageTypeBotState), State: state})
		},
		OnConversation: func(entries []entities.ConversationEntry) {
			c.sendJSON(&ConversationMessage{BaseMessage: newBase(MessageTypeConversation), Entries: entries})
		},
		OnRealtimeInput: func(text string) {
			c.sendJSON(&CaptionMessage{BaseMessage: newBase(MessageTypeRealtimeInput), Text: text})
		},
		OnSmoothedOutput: func(text string) {
			c.sendJSON(&CaptionMessage{BaseMessage: newBase(MessageTypeSmoothOutput), Text: text})
		},
		OnAudio: func(samples []float32) {
			c.sendBinary(audio.MarshalPCM16(samples))
		},
		OnReportSaved: func(report entities.RoomReport) {
			c.sendJSON(&ReportMessage{BaseMessage: newBase(MessageTypeReport), Report: report})
		},
	}

	orchestrator := usecase.NewOrchestrator(c.hub.transport, cfg, persona, saveReport, events, c.hub.clk, c.logger)
	frames := NewScreenFrameSource()
	sampler := usecase.NewFrameSampler(frames, orchestrator, c.hub.clk, c.logger)
	chat := usecase.NewChatService(c.hub.chatModel, orchestrator, c.logger)

	c.mutex.Lock()
	c.orchestrator = orchestrator
	c.frames = frames
	c.sampler = sampler
	c.chat = chat
	c.mutex.Unlock()

	go func() {
		if err := orchestrator.Connect(context.Background()); err != nil {
			c.logger.Error("Failed to start live session", zap.Error(err))
			c.sendError("failed to start the AI session")
		}
	}()
}

func (c *Client) handleRemoveBot() {
	c.teardownBot(true)
}

func (c *Client) handleLeave() {
	c.teardownBot(true)
	c.conn.Close()
}

// teardownBot ends the AI session. When report is true the meeting summary
// is persisted and pushed to the client.
func (c *Client) teardownBot(report bool) {
	c.mutex.Lock()
	orchestrator := c.orchestrator
	sampler := c.sampler
	c.orchestrator = nil
	c.sampler = nil
	c.chat = nil
	c.frames = nil
	c.mutex.Unlock()

	if sampler != nil {
		sampler.Stop()
	}
	if orchestrator == nil {
		return
	}
	if report {
		ctx, cancel := context.WithTimeout(context.Background(), repoTimeout)
		defer cancel()
		summary := orchestrator.Leave(ctx)
		c.sendJSON(&ReportMessage{BaseMessage: newBase(MessageTypeReport), Report: summary})
	} else {
		orchestrator.Disconnect(true)
	}
}

func (c *Client) handleChat(message []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid chat message")
		return
	}

	c.mutex.Lock()
	chat := c.chat
	c.mutex.Unlock()
	if chat == nil {
		c.sendError("no AI expert in the meeting")
		return
	}

	var attachment *usecase.ChatAttachment
	if msg.Attachment != nil {
		if !entities.AcceptedUpload(msg.Attachment.Name, msg.Attachment.MimeType) {
			c.sendError("unsupported attachment type")
			return
		}
		attachment = &usecase.ChatAttachment{
			Name:     msg.Attachment.Name,
			MimeType: msg.Attachment.MimeType,
			Data:     msg.Attachment.Data,
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()
		if err := chat.Send(ctx, msg.Text, attachment); err != nil {
			c.logger.Error("Chat turn failed", zap.Error(err))
		}
	}()
}

func (c *Client) handleMute(message []byte) {
	var msg MuteMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid mute message")
		return
	}
	c.mutex.Lock()
	c.muted = msg.Muted
	c.mutex.Unlock()
	c.logger.Info("Mute toggled", zap.String("clientID", c.id), zap.Bool("muted", msg.Muted))
}

func (c *Client) handleScreenShare(message []byte) {
	var msg ScreenShareMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid screen_share message")
		return
	}

	c.mutex.Lock()
	sampler := c.sampler
	c.mutex.Unlock()
	if sampler == nil {
		return
	}
	if msg.Active {
		sampler.Start()
	} else {
		sampler.Stop()
	}
}

func (c *Client) handleScreenFrame(message []byte) {
	var msg ScreenFrameMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid screen_frame message")
		return
	}

	c.mutex.Lock()
	frames := c.frames
	c.mutex.Unlock()
	if frames == nil {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		c.logger.Warn("Undecodable screen frame", zap.Error(err))
		return
	}
	frame, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		c.logger.Warn("Unreadable screen frame", zap.Error(err))
		return
	}
	frames.Push(frame)
}
