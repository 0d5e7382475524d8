package repositories

import "context"

// ChatModel abstracts the text chat channel that runs beside the live voice
// session.
type ChatModel interface {
	// StreamMessage sends one user turn with optional inline attachments
	// and streams the reply text. onChunk receives accumulated-safe
	// fragments in order.
	StreamMessage(ctx context.Context, req ChatRequest, onChunk func(text string)) error
}

// ChatRequest is one user turn for the chat channel.
type ChatRequest struct {
	SystemInstruction string
	History           []ChatMessage
	Text              string
	Attachments       []ChatAttachment
}

// ChatMessage is a single prior message in the chat channel.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies the sender of a chat message.
type Role string

const (
	UserRole  Role = "user"
	ModelRole Role = "model"
)

// ChatAttachment is an inline file sent with a chat turn.
type ChatAttachment struct {
	MimeType string
	// Data is the raw payload, already decoded from base64.
	Data []byte
}
