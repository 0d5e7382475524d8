package gemini

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
)

// ChatClient streams text replies for the side chat channel, grounded with
// Google Search.
type ChatClient struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewChatClient creates a chat client backed by the Gemini API.
func NewChatClient(ctx context.Context, apiKey string, logger *zap.Logger) (*ChatClient, error) {
	if apiKey == "" {
		return nil, errors.New("Google AI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &ChatClient{client: client, logger: logger, model: entities.ChatModel}, nil
}

// StreamMessage sends one user turn and streams the accumulated reply text
// through onChunk.
func (c *ChatClient) StreamMessage(ctx context.Context, req repositories.ChatRequest, onChunk func(text string)) error {
	var contents []*genai.Content
	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == repositories.ModelRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Text)}
	for _, att := range req.Attachments {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MimeType))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	var accumulated string
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			c.logger.Error("Chat stream failed", zap.Error(err))
			return fmt.Errorf("chat stream failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			accumulated += part.Text
			onChunk(accumulated)
		}
	}

	c.logger.Info("Chat message processed",
		zap.Int("attachments", len(req.Attachments)),
		zap.Int("response_length", len(accumulated)))
	return nil
}
