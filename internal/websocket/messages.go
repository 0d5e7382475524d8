package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriahrh/rapat/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeJoin        MessageType = "join"
	MessageTypeAddBot      MessageType = "add_bot"
	MessageTypeRemoveBot   MessageType = "remove_bot"
	MessageTypeLeave       MessageType = "leave"
	MessageTypeChat        MessageType = "chat"
	MessageTypeMute        MessageType = "mute"
	MessageTypeScreenShare MessageType = "screen_share"
	MessageTypeScreenFrame MessageType = "screen_frame"
)

// Server to client message types
const (
	MessageTypeConnectionState MessageType = "connection_state"
	MessageTypeBotState        MessageType = "bot_state"
	MessageTypeConversation    MessageType = "conversation"
	MessageTypeRealtimeInput   MessageType = "realtime_input"
	MessageTypeSmoothOutput    MessageType = "smooth_output"
	MessageTypeReport          MessageType = "report"
	MessageTypeError           MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// JoinMessage admits a participant into a room's meeting
type JoinMessage struct {
	BaseMessage
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
}

// AddBotMessage summons an AI expert into the meeting
type AddBotMessage struct {
	BaseMessage
	PersonaID string `json:"persona_id"`
	// CustomName overrides the display name for the custom persona
	CustomName string `json:"custom_name,omitempty"`
}

// ChatMessage carries one typed chat turn, optionally with a file
type ChatMessage struct {
	BaseMessage
	Text       string          `json:"text"`
	Attachment *ChatAttachment `json:"attachment,omitempty"`
}

// ChatAttachment is an inline file on a chat message
type ChatAttachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64 encoded
}

// MuteMessage toggles forwarding of the participant's microphone
type MuteMessage struct {
	BaseMessage
	Muted bool `json:"muted"`
}

// ScreenShareMessage starts or stops screen-share frame sampling
type ScreenShareMessage struct {
	BaseMessage
	Active bool `json:"active"`
}

// ScreenFrameMessage carries one captured screen frame from the client
type ScreenFrameMessage struct {
	BaseMessage
	Data string `json:"data"` // base64 encoded image
}

// ConnectionStateMessage reports the live session lifecycle to the client
type ConnectionStateMessage struct {
	BaseMessage
	State entities.ConnectionState `json:"state"`
}

// BotStateMessage reports the AI participant's presence indicator
type BotStateMessage struct {
	BaseMessage
	State entities.BotState `json:"state"`
}

// ConversationMessage carries a transcript snapshot
type ConversationMessage struct {
	BaseMessage
	Entries []entities.ConversationEntry `json:"entries"`
}

// CaptionMessage carries an in-flight speech caption
type CaptionMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ReportMessage delivers a persisted report to the client
type ReportMessage struct {
	BaseMessage
	Report entities.RoomReport `json:"report"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

func marshalMessage(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		return []byte(fmt.Sprintf(`{"type":"error","message":%q}`, err.Error()))
	}
	return payload
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError), Message: message}
}
