package repositories

import "context"

// LiveTransport dials a realtime bidirectional session against the model
// endpoint.
type LiveTransport interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// LiveConfig shapes the session setup frame.
type LiveConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
	// Tools lists function declarations exposed to the model alongside
	// search grounding.
	Tools []FunctionDeclaration
}

// LiveSession is one open realtime session. Events() is closed when the
// session ends; Close is safe to call more than once.
type LiveSession interface {
	// SendAudioChunk streams one base64 PCM chunk with its MIME type.
	SendAudioChunk(mimeType, data string) error
	// SendImageFrame streams one base64 encoded image frame.
	SendImageFrame(mimeType, data string) error
	// SendToolResponse acknowledges a tool call by id.
	SendToolResponse(resp FunctionResponse) error
	Events() <-chan ServerEvent
	Close() error
}

// ServerEventKind tags the realtime events surfaced by a live session.
type ServerEventKind string

const (
	EventInputTranscript  ServerEventKind = "input_transcript"
	EventOutputTranscript ServerEventKind = "output_transcript"
	EventAudioChunk       ServerEventKind = "audio_chunk"
	EventToolCall         ServerEventKind = "tool_call"
	EventTurnComplete     ServerEventKind = "turn_complete"
	EventInterrupted      ServerEventKind = "interrupted"
	EventClosed           ServerEventKind = "closed"
)

// ServerEvent is the union of messages a live session emits. Only the fields
// relevant to Kind are set.
type ServerEvent struct {
	Kind ServerEventKind
	// Text carries transcript fragments.
	Text string
	// Audio carries raw PCM16 bytes for audio chunks.
	Audio []byte
	// Call is set for tool call events.
	Call *FunctionCall
	// Err is set on closed events when the session ended abnormally.
	Err error
}

// FunctionDeclaration describes a callable tool offered to the model.
type FunctionDeclaration struct {
	Name        string
	Description string
	// Parameters maps parameter names to their descriptions. All declared
	// parameters are required strings.
	Parameters map[string]string
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse acknowledges a tool invocation.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}
