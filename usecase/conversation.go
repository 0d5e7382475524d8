package usecase

import (
	"strings"
	"sync"

	"github.com/satriahrh/rapat/domain/entities"
)

// Conversation accumulates the meeting transcript: streaming voice
// transcriptions buffered per turn plus typed chat messages. All methods are
// safe for concurrent use.
type Conversation struct {
	mu        sync.Mutex
	entries   []entities.ConversationEntry
	inputBuf  string
	outputBuf string
	onUpdate  func([]entities.ConversationEntry)
}

// NewConversation builds a transcript. onUpdate, if non-nil, is invoked with
// a snapshot after every change to the entry list.
func NewConversation(onUpdate func([]entities.ConversationEntry)) *Conversation {
	return &Conversation{onUpdate: onUpdate}
}

func (c *Conversation) notifyLocked() {
	if c.onUpdate == nil {
		return
	}
	snapshot := make([]entities.ConversationEntry, len(c.entries))
	copy(snapshot, c.entries)
	c.onUpdate(snapshot)
}

// AddInputTranscript buffers a fragment of the user's speech for the current
// turn and returns the accumulated text.
func (c *Conversation) AddInputTranscript(fragment string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputBuf += fragment
	return c.inputBuf
}

// AddOutputTranscript buffers a fragment of the model's speech for the
// current turn and returns the accumulated text.
func (c *Conversation) AddOutputTranscript(fragment string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputBuf += fragment
	return c.outputBuf
}

// CompleteTurn flushes the buffered transcriptions into the entry list. The
// user's utterance is capitalized; empty buffers produce no entry.
func (c *Conversation) CompleteTurn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if input := entities.Capitalize(c.inputBuf); input != "" {
		c.entries = append(c.entries, entities.ConversationEntry{
			Kind:    entities.EntryTranscription,
			Speaker: entities.SpeakerUser,
			Text:    input,
		})
	}
	if output := strings.TrimSpace(c.outputBuf); output != "" {
		c.entries = append(c.entries, entities.ConversationEntry{
			Kind:    entities.EntryTranscription,
			Speaker: entities.SpeakerModel,
			Text:    output,
		})
	}
	c.inputBuf = ""
	c.outputBuf = ""
	c.notifyLocked()
}

// Interrupt discards the model's in-flight output. The user's buffered input
// is kept so the turn can still complete.
func (c *Conversation) Interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputBuf = ""
}

// AddChat appends a typed chat message.
func (c *Conversation) AddChat(speaker entities.Speaker, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entities.ConversationEntry{
		Kind:    entities.EntryChat,
		Speaker: speaker,
		Text:    text,
	})
	c.notifyLocked()
}

// UpdateStreamingChat replaces the text of the trailing model chat entry,
// creating it when the stream has just started.
func (c *Conversation) UpdateStreamingChat(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.entries); n > 0 {
		last := &c.entries[n-1]
		if last.Kind == entities.EntryChat && last.Speaker == entities.SpeakerModel {
			last.Text = text
			c.notifyLocked()
			return
		}
	}
	c.entries = append(c.entries, entities.ConversationEntry{
		Kind:    entities.EntryChat,
		Speaker: entities.SpeakerModel,
		Text:    text,
	})
	c.notifyLocked()
}

// Entries returns a snapshot of the transcript.
func (c *Conversation) Entries() []entities.ConversationEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]entities.ConversationEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// PendingInput returns the user's buffered, not-yet-flushed speech.
func (c *Conversation) PendingInput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputBuf
}

// PendingOutput returns the model's buffered, not-yet-flushed speech.
func (c *Conversation) PendingOutput() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputBuf
}
