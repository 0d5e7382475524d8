package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/repositories"
)

const (
	defaultLiveHost    = "generativelanguage.googleapis.com"
	livePath           = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	liveConnectTimeout = 15 * time.Second
	eventBuffer        = 256
)

// LiveTransport dials realtime sessions against the Gemini live endpoint.
type LiveTransport struct {
	apiKey string
	host   string
	logger *zap.Logger
	dialer *websocket.Dialer
}

// NewLiveTransport creates a transport for the given API key.
func NewLiveTransport(apiKey string, logger *zap.Logger) (*LiveTransport, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	return &LiveTransport{
		apiKey: apiKey,
		host:   defaultLiveHost,
		logger: logger,
		dialer: websocket.DefaultDialer,
	}, nil
}

// Connect dials the endpoint, sends the setup frame, and waits for the
// setupComplete acknowledgement before handing back a live session.
func (t *LiveTransport) Connect(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveSession, error) {
	u := url.URL{
		Scheme:   "wss",
		Host:     t.host,
		Path:     livePath,
		RawQuery: url.Values{"key": {t.apiKey}}.Encode(),
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, liveConnectTimeout)
		defer cancel()
	}

	conn, resp, err := t.dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("live dial failed: %w", err)
	}

	if err := conn.WriteJSON(buildSetupFrame(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(liveConnectTimeout))
	var first serverFrame
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read setup ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if first.SetupComplete == nil {
		_ = conn.Close()
		return nil, errors.New("expected setupComplete as first frame")
	}

	t.logger.Info("Live session established", zap.String("model", cfg.Model))

	s := &liveSession{
		conn:   conn,
		logger: t.logger,
		events: make(chan repositories.ServerEvent, eventBuffer),
		stop:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func buildSetupFrame(cfg repositories.LiveConfig) setupFrame {
	setup := setupPayload{
		Model: "models/" + cfg.Model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	if cfg.SystemInstruction != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}

	combined := tool{GoogleSearch: &struct{}{}}
	for _, fd := range cfg.Tools {
		decl := functionDeclaration{Name: fd.Name, Description: fd.Description}
		if len(fd.Parameters) > 0 {
			props := make(map[string]schemaProperty, len(fd.Parameters))
			required := make([]string, 0, len(fd.Parameters))
			for name, desc := range fd.Parameters {
				props[name] = schemaProperty{Type: "STRING", Description: desc}
				required = append(required, name)
			}
			decl.Parameters = &schema{Type: "OBJECT", Properties: props, Required: required}
		}
		combined.FunctionDeclarations = append(combined.FunctionDeclarations, decl)
	}
	setup.Tools = []tool{combined}

	return setupFrame{Setup: setup}
}

type liveSession struct {
	conn   *websocket.Conn
	logger *zap.Logger

	events chan repositories.ServerEvent
	stop   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func (s *liveSession) SendAudioChunk(mimeType, data string) error {
	return s.sendJSON(realtimeInputFrame{
		RealtimeInput: realtimeInput{MediaChunks: []inlineData{{MimeType: mimeType, Data: data}}},
	})
}

func (s *liveSession) SendImageFrame(mimeType, data string) error {
	return s.sendJSON(realtimeInputFrame{
		RealtimeInput: realtimeInput{MediaChunks: []inlineData{{MimeType: mimeType, Data: data}}},
	})
}

func (s *liveSession) SendToolResponse(resp repositories.FunctionResponse) error {
	return s.sendJSON(toolResponseFrame{
		ToolResponse: toolResponsePayload{
			FunctionResponses: []functionResponsePayload{{
				ID:       resp.ID,
				Name:     resp.Name,
				Response: resp.Response,
			}},
		},
	})
}

func (s *liveSession) Events() <-chan repositories.ServerEvent {
	return s.events
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}

func (s *liveSession) sendJSON(v any) error {
	if s.closed.Load() {
		return errors.New("live session is closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *liveSession) readLoop() {
	defer close(s.events)

	for {
		var frame serverFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(repositories.ServerEvent{Kind: repositories.EventClosed})
			} else {
				s.emit(repositories.ServerEvent{Kind: repositories.EventClosed, Err: err})
			}
			return
		}

		if frame.ToolCall != nil {
			for _, fc := range frame.ToolCall.FunctionCalls {
				s.emit(repositories.ServerEvent{
					Kind: repositories.EventToolCall,
					Call: &repositories.FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args},
				})
			}
		}

		if frame.GoAway != nil {
			s.logger.Warn("Live endpoint announced shutdown", zap.String("timeLeft", frame.GoAway.TimeLeft))
		}

		sc := frame.ServerContent
		if sc == nil {
			continue
		}
		if sc.OutputTranscription != nil {
			s.emit(repositories.ServerEvent{Kind: repositories.EventOutputTranscript, Text: sc.OutputTranscription.Text})
		} else if sc.InputTranscription != nil {
			s.emit(repositories.ServerEvent{Kind: repositories.EventInputTranscript, Text: sc.InputTranscription.Text})
		}
		if sc.Interrupted {
			s.emit(repositories.ServerEvent{Kind: repositories.EventInterrupted})
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || p.InlineData.Data == "" {
					continue
				}
				raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					s.logger.Warn("Dropping undecodable audio part", zap.Error(err))
					continue
				}
				s.emit(repositories.ServerEvent{Kind: repositories.EventAudioChunk, Audio: raw})
			}
		}
		if sc.TurnComplete {
			s.emit(repositories.ServerEvent{Kind: repositories.EventTurnComplete})
		}
	}
}

// emit delivers one event, giving up when the session is being torn down so
// the read loop never deadlocks against a stalled consumer.
func (s *liveSession) emit(ev repositories.ServerEvent) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}
