package entities

// Live and chat model identifiers plus audio rates for the realtime pipeline.
const (
	LiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	ChatModel = "gemini-2.5-flash"
	LiveVoice = "Puck"

	InputSampleRate  = 16000
	OutputSampleRate = 24000
	AudioChunkSize   = 4096
)

// MeetingConfig carries everything needed to admit the AI participant into a
// meeting.
type MeetingConfig struct {
	ParticipantName string
	Room            *Room
	// PreviousContext is the transcript of the room's most recent prior
	// meeting, seeded when the AI joins so it can pick up where that
	// session ended.
	PreviousContext string
}
