package entities

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EntryKind distinguishes live-voice transcriptions from typed chat messages.
type EntryKind string

const (
	EntryTranscription EntryKind = "transcription"
	EntryChat          EntryKind = "chat"
)

// Speaker identifies who produced a conversation entry.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// ConversationEntry is one turn of the meeting transcript.
type ConversationEntry struct {
	Kind    EntryKind `json:"kind"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
}

// BotState is the AI participant's presence indicator.
type BotState string

const (
	BotListening BotState = "listening"
	BotSpeaking  BotState = "speaking"
	// BotHandRaised is accepted by clients but never produced by the server.
	BotHandRaised BotState = "hand_raised"
)

// ConnectionState tracks the live session lifecycle.
type ConnectionState string

const (
	ConnectionIdle         ConnectionState = "idle"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// Capitalize upper-cases the first letter of a finalized utterance.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
