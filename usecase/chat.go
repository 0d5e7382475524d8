package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
)

const chatErrorMessage = "Sorry, I encountered an error processing your message."

// ChatAttachment is a file sent alongside a typed chat message.
type ChatAttachment struct {
	Name     string
	MimeType string
	// Data is the base64-encoded payload as received from the client.
	Data string
}

// ChatService runs the typed chat channel next to the live voice session.
// Image attachments are fanned out to the live session so the voice model
// shares the visual context.
type ChatService struct {
	model        repositories.ChatModel
	orchestrator *Orchestrator
	logger       *zap.Logger

	mu      sync.Mutex
	busy    bool
	history []repositories.ChatMessage
}

// NewChatService wires the chat channel to the meeting's orchestrator.
func NewChatService(model repositories.ChatModel, orchestrator *Orchestrator, logger *zap.Logger) *ChatService {
	return &ChatService{model: model, orchestrator: orchestrator, logger: logger}
}

// Send processes one chat turn: records the user entry, streams the model
// reply into the transcript, and forwards image attachments to the live
// session. One turn runs at a time.
func (s *ChatService) Send(ctx context.Context, text string, attachment *ChatAttachment) error {
	text = strings.TrimSpace(text)
	if text == "" && attachment == nil {
		return nil
	}
	if s.model == nil {
		// no chat credentials configured
		s.logger.Warn("Chat model unavailable, message dropped")
		return nil
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return fmt.Errorf("a chat message is already being processed")
	}
	s.busy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	conversation := s.orchestrator.Conversation()

	displayText := text
	if attachment != nil {
		displayText = fmt.Sprintf("[Attached: %s]\n%s", attachment.Name, text)
	}
	conversation.AddChat(entities.SpeakerUser, displayText)

	req := repositories.ChatRequest{
		SystemInstruction: s.orchestrator.persona.SystemPrompt,
		History:           s.snapshotHistory(),
		Text:              text,
	}

	if attachment != nil {
		raw, err := base64.StdEncoding.DecodeString(attachment.Data)
		if err != nil {
			s.logger.Error("Undecodable chat attachment", zap.String("name", attachment.Name), zap.Error(err))
			conversation.AddChat(entities.SpeakerModel, chatErrorMessage)
			return err
		}
		req.Attachments = append(req.Attachments, repositories.ChatAttachment{
			MimeType: attachment.MimeType,
			Data:     raw,
		})

		if strings.HasPrefix(attachment.MimeType, "image/") && s.orchestrator.Connected() {
			if err := s.orchestrator.SendImageFrame(attachment.MimeType, attachment.Data); err != nil {
				s.logger.Error("Failed to fan attachment out to live session", zap.Error(err))
			}
		}
	}

	conversation.UpdateStreamingChat("...")

	var reply string
	err := s.model.StreamMessage(ctx, req, func(accumulated string) {
		reply = accumulated
		conversation.UpdateStreamingChat(accumulated)
	})
	if err != nil {
		conversation.UpdateStreamingChat(chatErrorMessage)
		return err
	}

	s.mu.Lock()
	s.history = append(s.history,
		repositories.ChatMessage{Role: repositories.UserRole, Content: text},
		repositories.ChatMessage{Role: repositories.ModelRole, Content: reply},
	)
	s.mu.Unlock()
	return nil
}

func (s *ChatService) snapshotHistory() []repositories.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repositories.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}
