package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
)

type fakeSession struct {
	mu         sync.Mutex
	events     chan repositories.ServerEvent
	closed     bool
	closeCount int
	audio      []string
	images     []string
	toolResps  []repositories.FunctionResponse
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan repositories.ServerEvent, 64)}
}

func (f *fakeSession) SendAudioChunk(mimeType, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, data)
	return nil
}

func (f *fakeSession) SendImageFrame(mimeType, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images = append(f.images, data)
	return nil
}

func (f *fakeSession) SendToolResponse(resp repositories.FunctionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolResps = append(f.toolResps, resp)
	return nil
}

func (f *fakeSession) Events() <-chan repositories.ServerEvent { return f.events }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeSession) emit(ev repositories.ServerEvent) {
	f.events <- ev
}

// drop simulates the endpoint closing the connection.
func (f *fakeSession) drop(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.events <- repositories.ServerEvent{Kind: repositories.EventClosed, Err: err}
	close(f.events)
}

func (f *fakeSession) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *fakeSession) sentAudio() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.audio...)
}

func (f *fakeSession) sentToolResponses() []repositories.FunctionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repositories.FunctionResponse(nil), f.toolResps...)
}

type fakeTransport struct {
	mu       sync.Mutex
	sessions []*fakeSession
	configs  []repositories.LiveConfig
	fail     bool
	gate     chan struct{} // when set, Connect blocks until it is closed
}

func (t *fakeTransport) Connect(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveSession, error) {
	if t.gate != nil {
		<-t.gate
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.configs = append(t.configs, cfg)
	if t.fail {
		return nil, errors.New("dial refused")
	}
	s := newFakeSession()
	t.sessions = append(t.sessions, s)
	return s, nil
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.configs)
}

func (t *fakeTransport) session(i int) *fakeSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[i]
}

func (t *fakeTransport) config(i int) repositories.LiveConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configs[i]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestOrchestrator(t *testing.T, transport *fakeTransport, mock *clock.Mock, events OrchestratorEvents, save func(context.Context, entities.RoomReport) error) *Orchestrator {
	t.Helper()
	persona, _ := entities.PersonaByID("senior_qa_engineer")
	cfg := entities.MeetingConfig{ParticipantName: "Dana"}
	return NewOrchestrator(transport, cfg, persona, save, events, mock, zap.NewNop())
}

func TestConnectEstablishesSingleSession(t *testing.T) {
	transport := &fakeTransport{}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if o.State() != entities.ConnectionConnected {
		t.Errorf("expected connected state, got %q", o.State())
	}

	cfg := transport.config(0)
	if cfg.Model != entities.LiveModel || cfg.Voice != "Puck" {
		t.Errorf("unexpected live config: %+v", cfg)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "create_report" {
		t.Errorf("expected create_report tool, got %+v", cfg.Tools)
	}
	if !strings.Contains(cfg.SystemInstruction, "named Dana") {
		t.Error("system instruction must carry the participant name")
	}
}

func TestConnectTearsDownPreviousSession(t *testing.T) {
	transport := &fakeTransport{}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}

	if transport.connectCount() != 2 {
		t.Fatalf("expected 2 dials, got %d", transport.connectCount())
	}
	if transport.session(0).closes() == 0 {
		t.Error("first session must be closed before the second is dialed")
	}
	if transport.session(1).closes() != 0 {
		t.Error("second session must stay open")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	transport := &fakeTransport{}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	o.Disconnect(true)
	o.Disconnect(true)

	if o.State() != entities.ConnectionIdle {
		t.Errorf("expected idle, got %q", o.State())
	}
	if got := transport.session(0).closes(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestConnectFailureEndsDisconnected(t *testing.T) {
	transport := &fakeTransport{fail: true}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if o.State() != entities.ConnectionDisconnected {
		t.Errorf("expected disconnected after dial failure, got %q", o.State())
	}
}

func TestAutoReconnectCarriesResumeContext(t *testing.T) {
	transport := &fakeTransport{}
	mock := clock.NewMock()
	o := newTestOrchestrator(t, transport, mock, OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)
	session.emit(repositories.ServerEvent{Kind: repositories.EventInputTranscript, Text: "hello there"})
	session.emit(repositories.ServerEvent{Kind: repositories.EventTurnComplete})
	waitFor(t, func() bool { return len(o.Conversation().Entries()) == 1 })

	session.drop(errors.New("connection reset"))
	waitFor(t, func() bool { return o.State() == entities.ConnectionConnecting })

	mock.Add(retryDelay)
	waitFor(t, func() bool { return transport.connectCount() == 2 })
	waitFor(t, func() bool { return o.State() == entities.ConnectionConnected })

	si := transport.config(1).SystemInstruction
	if !strings.Contains(si, "[SYSTEM UPDATE] The conversation is resuming.") {
		t.Error("reconnect must carry the resume block")
	}
	if !strings.Contains(si, "[RECENT_DISCONNECTION_CONTEXT]\nUser: Hello there") {
		t.Errorf("reconnect must embed the transcript tail, got %q", si)
	}
}

func TestReconnectGivesUpAfterMaxRetries(t *testing.T) {
	transport := &fakeTransport{}
	mock := clock.NewMock()
	o := newTestOrchestrator(t, transport, mock, OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	transport.mu.Lock()
	transport.fail = true
	transport.mu.Unlock()

	transport.session(0).drop(errors.New("reset"))
	waitFor(t, func() bool { return o.State() == entities.ConnectionConnecting })

	// the drop consumes one retry; each failed redial consumes another
	for i := 0; i < maxRetries; i++ {
		mock.Add(retryDelay)
		waitFor(t, func() bool { return transport.connectCount() == i+2 })
	}
	waitFor(t, func() bool { return o.State() == entities.ConnectionDisconnected })

	mock.Add(time.Minute)
	if transport.connectCount() != maxRetries+1 {
		t.Errorf("no further dials expected, got %d", transport.connectCount())
	}
}

func TestIntentionalDisconnectSuppressesRetry(t *testing.T) {
	transport := &fakeTransport{}
	mock := clock.NewMock()
	o := newTestOrchestrator(t, transport, mock, OrchestratorEvents{}, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	o.Disconnect(true)

	mock.Add(time.Minute)
	if transport.connectCount() != 1 {
		t.Errorf("intentional disconnect must not redial, got %d dials", transport.connectCount())
	}
	if o.State() != entities.ConnectionIdle {
		t.Errorf("expected idle, got %q", o.State())
	}
}

func TestDisconnectDuringDialDiscardsLateSession(t *testing.T) {
	gate := make(chan struct{})
	transport := &fakeTransport{gate: gate}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	done := make(chan error, 1)
	go func() { done <- o.Connect(context.Background()) }()
	waitFor(t, func() bool { return o.State() == entities.ConnectionConnecting })

	o.Disconnect(true)
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if o.State() != entities.ConnectionIdle {
		t.Errorf("late dial must not revive the session, got %q", o.State())
	}
	waitFor(t, func() bool { return transport.session(0).closes() == 1 })
	o.SendAudio([]float32{0.1})
	if got := len(transport.session(0).sentAudio()); got != 0 {
		t.Errorf("discarded session received %d audio chunks", got)
	}
}

func TestStateCallbackMayReenterOrchestrator(t *testing.T) {
	transport := &fakeTransport{}
	var o *Orchestrator
	var mu sync.Mutex
	var observed []entities.ConnectionState
	events := OrchestratorEvents{
		OnConnectionState: func(entities.ConnectionState) {
			mu.Lock()
			observed = append(observed, o.State())
			mu.Unlock()
		},
	}
	o = newTestOrchestrator(t, transport, clock.NewMock(), events, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	o.Disconnect(true)

	mu.Lock()
	defer mu.Unlock()
	if len(observed) == 0 || observed[len(observed)-1] != entities.ConnectionIdle {
		t.Errorf("callbacks observed %v, want trailing idle", observed)
	}
}

func TestSendAudioGatedOnConnection(t *testing.T) {
	transport := &fakeTransport{}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, nil)

	o.SendAudio([]float32{0.1, 0.2}) // not connected yet, dropped

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	o.SendAudio([]float32{0.1, 0.2})
	if got := len(transport.session(0).sentAudio()); got != 1 {
		t.Errorf("expected 1 audio chunk, got %d", got)
	}

	o.Disconnect(true)
	o.SendAudio([]float32{0.1, 0.2})
	if got := len(transport.session(0).sentAudio()); got != 1 {
		t.Errorf("audio after disconnect must be dropped, got %d chunks", got)
	}
}

func TestTurnCompleteFlushesAndResetsCaptions(t *testing.T) {
	transport := &fakeTransport{}
	var mu sync.Mutex
	var inputs []string
	var botStates []entities.BotState
	events := OrchestratorEvents{
		OnRealtimeInput: func(text string) {
			mu.Lock()
			inputs = append(inputs, text)
			mu.Unlock()
		},
		OnBotState: func(s entities.BotState) {
			mu.Lock()
			botStates = append(botStates, s)
			mu.Unlock()
		},
	}
	o := newTestOrchestrator(t, transport, clock.NewMock(), events, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)
	session.emit(repositories.ServerEvent{Kind: repositories.EventInputTranscript, Text: "what "})
	session.emit(repositories.ServerEvent{Kind: repositories.EventInputTranscript, Text: "now?"})
	session.emit(repositories.ServerEvent{Kind: repositories.EventOutputTranscript, Text: "Next steps."})
	session.emit(repositories.ServerEvent{Kind: repositories.EventTurnComplete})

	waitFor(t, func() bool { return len(o.Conversation().Entries()) == 2 })
	entries := o.Conversation().Entries()
	if entries[0].Text != "What now?" {
		t.Errorf("unexpected user entry %q", entries[0].Text)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(inputs) == 0 || inputs[len(inputs)-1] != "" {
		t.Errorf("realtime caption must be cleared at turn end, got %v", inputs)
	}
	sawSpeaking := false
	for _, s := range botStates {
		if s == entities.BotSpeaking {
			sawSpeaking = true
		}
	}
	if !sawSpeaking {
		t.Error("bot must report speaking during model output")
	}
	if botStates[len(botStates)-1] != entities.BotListening {
		t.Errorf("bot must end the turn listening, got %q", botStates[len(botStates)-1])
	}
}

func TestInterruptionCancelsPendingAudio(t *testing.T) {
	transport := &fakeTransport{}
	mock := clock.NewMock()
	var mu sync.Mutex
	var delivered int
	events := OrchestratorEvents{
		OnAudio: func([]float32) {
			mu.Lock()
			delivered++
			mu.Unlock()
		},
	}
	o := newTestOrchestrator(t, transport, mock, events, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)

	chunk := make([]byte, 48000) // 1s at 24kHz PCM16
	for i := 0; i < 3; i++ {
		session.emit(repositories.ServerEvent{Kind: repositories.EventAudioChunk, Audio: chunk})
	}
	session.emit(repositories.ServerEvent{Kind: repositories.EventOutputTranscript, Text: "marker"})
	waitFor(t, func() bool { return o.Conversation().PendingOutput() == "marker" })

	session.emit(repositories.ServerEvent{Kind: repositories.EventInterrupted})
	waitFor(t, func() bool { return o.Conversation().PendingOutput() == "" })

	mock.Add(10 * time.Second)
	mu.Lock()
	defer mu.Unlock()
	if delivered != 0 {
		t.Errorf("interrupted audio must never play, got %d chunks", delivered)
	}
}

func TestAudioDeliveredWhenUninterrupted(t *testing.T) {
	transport := &fakeTransport{}
	mock := clock.NewMock()
	var mu sync.Mutex
	var delivered int
	events := OrchestratorEvents{
		OnAudio: func([]float32) {
			mu.Lock()
			delivered++
			mu.Unlock()
		},
	}
	o := newTestOrchestrator(t, transport, mock, events, nil)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)
	session.emit(repositories.ServerEvent{Kind: repositories.EventAudioChunk, Audio: make([]byte, 4800)})
	session.emit(repositories.ServerEvent{Kind: repositories.EventOutputTranscript, Text: "m"})
	waitFor(t, func() bool { return o.Conversation().PendingOutput() == "m" })

	mock.Add(time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if delivered != 1 {
		t.Errorf("expected 1 delivered chunk, got %d", delivered)
	}
}

func TestToolCallIsIdempotentPerID(t *testing.T) {
	transport := &fakeTransport{}
	var mu sync.Mutex
	var saved []entities.RoomReport
	save := func(_ context.Context, r entities.RoomReport) error {
		mu.Lock()
		saved = append(saved, r)
		mu.Unlock()
		return nil
	}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, save)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)
	call := &repositories.FunctionCall{
		ID:   "call-1",
		Name: "create_report",
		Args: map[string]any{"title": "Summary", "content": "# Body"},
	}
	session.emit(repositories.ServerEvent{Kind: repositories.EventToolCall, Call: call})
	session.emit(repositories.ServerEvent{Kind: repositories.EventToolCall, Call: call})

	waitFor(t, func() bool { return len(session.sentToolResponses()) == 2 })

	mu.Lock()
	if len(saved) != 1 {
		t.Errorf("duplicate call IDs must persist one report, got %d", len(saved))
	} else {
		if saved[0].Title != "Summary" || saved[0].Transcript != "Generated via Live Tool" {
			t.Errorf("unexpected report %+v", saved[0])
		}
	}
	mu.Unlock()

	entries := o.Conversation().Entries()
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Text, "# 📄 Report Generated: Summary") {
		t.Errorf("expected one report chat entry, got %+v", entries)
	}

	resp := session.sentToolResponses()[0]
	if resp.ID != "call-1" || resp.Name != "create_report" {
		t.Errorf("unexpected ack %+v", resp)
	}
}

func TestLeavePersistsMeetingReport(t *testing.T) {
	transport := &fakeTransport{}
	var mu sync.Mutex
	var saved []entities.RoomReport
	save := func(_ context.Context, r entities.RoomReport) error {
		mu.Lock()
		saved = append(saved, r)
		mu.Unlock()
		return nil
	}
	o := newTestOrchestrator(t, transport, clock.NewMock(), OrchestratorEvents{}, save)

	if err := o.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	session := transport.session(0)
	session.emit(repositories.ServerEvent{Kind: repositories.EventInputTranscript, Text: "wrap it up"})
	session.emit(repositories.ServerEvent{Kind: repositories.EventTurnComplete})
	waitFor(t, func() bool { return len(o.Conversation().Entries()) == 1 })

	report := o.Leave(context.Background())
	if o.State() != entities.ConnectionIdle {
		t.Errorf("leave must return the session to idle, got %q", o.State())
	}
	if !strings.Contains(report.Summary, "# Meeting Summary - Senior QA Engineer") {
		t.Errorf("unexpected summary %q", report.Summary)
	}
	if !strings.Contains(report.Transcript, "Wrap it up") {
		t.Errorf("transcript must carry the conversation, got %q", report.Transcript)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 {
		t.Errorf("leave must persist exactly one report, got %d", len(saved))
	}
}
