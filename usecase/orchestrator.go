package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/rapat/domain/entities"
	"github.com/satriahrh/rapat/domain/repositories"
	"github.com/satriahrh/rapat/internal/audio"
)

const (
	maxRetries     = 3
	retryDelay     = 2 * time.Second
	imageSendDelay = 200 * time.Millisecond
)

// createReportTool is the function declaration exposed to the live model.
var createReportTool = repositories.FunctionDeclaration{
	Name:        "create_report",
	Description: "Creates a formal report, document, or summary file based on the conversation. Use this when the user asks to generate a report or document.",
	Parameters: map[string]string{
		"title":   "The title of the report.",
		"content": "The full content of the report in Markdown format.",
	},
}

// OrchestratorEvents receives state changes and media from the live session.
// Nil callbacks are skipped.
type OrchestratorEvents struct {
	OnConnectionState func(entities.ConnectionState)
	OnBotState        func(entities.BotState)
	OnConversation    func([]entities.ConversationEntry)
	// OnRealtimeInput carries the user's in-flight speech caption.
	OnRealtimeInput func(text string)
	// OnSmoothedOutput carries the typewriter-paced model speech caption.
	OnSmoothedOutput func(text string)
	// OnAudio delivers paced model audio for playback.
	OnAudio func(samples []float32)
	// OnReportSaved fires after a report generated mid-session is persisted.
	OnReportSaved func(entities.RoomReport)
}

// Orchestrator owns the live session lifecycle: connect, stream, tool calls,
// bounded reconnects, and teardown. At most one session is live at a time.
type Orchestrator struct {
	transport  repositories.LiveTransport
	saveReport func(ctx context.Context, report entities.RoomReport) error
	clk        clock.Clock
	logger     *zap.Logger

	cfg          entities.MeetingConfig
	persona      entities.Persona
	conversation *Conversation
	scheduler    *audio.Scheduler
	typewriter   *Typewriter
	events       OrchestratorEvents

	mu           sync.Mutex
	state        entities.ConnectionState
	botState     entities.BotState
	session      repositories.LiveSession
	generation   int
	intentional  bool
	retryCount   int
	handledCalls map[string]bool
	retryTimer   *clock.Timer
}

// NewOrchestrator wires up a meeting's live session manager. saveReport
// persists reports produced by the create_report tool and the leave summary.
func NewOrchestrator(
	transport repositories.LiveTransport,
	cfg entities.MeetingConfig,
	persona entities.Persona,
	saveReport func(ctx context.Context, report entities.RoomReport) error,
	events OrchestratorEvents,
	clk clock.Clock,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		transport:    transport,
		saveReport:   saveReport,
		clk:          clk,
		logger:       logger,
		cfg:          cfg,
		persona:      persona,
		events:       events,
		state:        entities.ConnectionIdle,
		botState:     entities.BotListening,
		handledCalls: map[string]bool{},
	}
	o.conversation = NewConversation(events.OnConversation)
	sink := func(samples []float32) {
		if events.OnAudio != nil {
			events.OnAudio(samples)
		}
	}
	o.scheduler = audio.NewScheduler(clk, entities.OutputSampleRate, sink)
	o.typewriter = NewTypewriter(clk, func(text string) {
		if events.OnSmoothedOutput != nil {
			events.OnSmoothedOutput(text)
		}
	})
	return o
}

// State returns the current connection state.
func (o *Orchestrator) State() entities.ConnectionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Conversation exposes the meeting transcript.
func (o *Orchestrator) Conversation() *Conversation {
	return o.conversation
}

// setStateLocked records the state and returns the callback invocation,
// which must run after o.mu is released so callbacks may re-enter the
// orchestrator.
func (o *Orchestrator) setStateLocked(state entities.ConnectionState) func() {
	o.state = state
	cb := o.events.OnConnectionState
	if cb == nil {
		return func() {}
	}
	return func() { cb(state) }
}

// setBotStateLocked behaves like setStateLocked for the presence indicator.
func (o *Orchestrator) setBotStateLocked(state entities.BotState) func() {
	if o.botState == state {
		return func() {}
	}
	o.botState = state
	cb := o.events.OnBotState
	if cb == nil {
		return func() {}
	}
	return func() { cb(state) }
}

func fire(notes []func()) {
	for _, n := range notes {
		n()
	}
}

// Connect establishes a fresh live session. Any existing session is torn
// down first.
func (o *Orchestrator) Connect(ctx context.Context) error {
	return o.connect(ctx, "", false)
}

func (o *Orchestrator) connect(ctx context.Context, resumeContext string, isRetry bool) error {
	if o.transport == nil {
		// no live credentials configured; stay idle
		o.logger.Warn("Live transport unavailable, connect skipped")
		return nil
	}

	o.mu.Lock()
	var notes []func()
	if o.session != nil {
		notes = o.teardownLocked()
	}
	o.intentional = false
	notes = append(notes, o.setStateLocked(entities.ConnectionConnecting))
	gen := o.generation + 1
	o.generation = gen
	o.mu.Unlock()
	fire(notes)

	prompt := BuildSystemInstruction(o.cfg, o.persona.SystemPrompt, resumeContext)

	session, err := o.transport.Connect(ctx, repositories.LiveConfig{
		Model:             entities.LiveModel,
		Voice:             entities.LiveVoice,
		SystemInstruction: prompt.SystemInstruction,
		Tools:             []repositories.FunctionDeclaration{createReportTool},
	})
	if err != nil {
		o.logger.Error("Failed to initiate live session", zap.Error(err))
		o.mu.Lock()
		note := func() {}
		if o.generation == gen {
			// failed reconnect attempts keep consuming the retry budget;
			// a failed first dial ends the session immediately
			if isRetry && !o.intentional && o.retryCount < maxRetries {
				o.retryCount++
				note = o.setStateLocked(entities.ConnectionConnecting)
				o.retryTimer = o.clk.AfterFunc(retryDelay, o.reconnect)
			} else {
				note = o.setStateLocked(entities.ConnectionDisconnected)
			}
		}
		o.mu.Unlock()
		note()
		return err
	}

	o.mu.Lock()
	if o.generation != gen {
		// a competing connect or teardown won; drop this session
		o.mu.Unlock()
		_ = session.Close()
		return nil
	}
	o.session = session
	o.retryCount = 0
	note := o.setStateLocked(entities.ConnectionConnected)
	o.mu.Unlock()
	note()

	o.typewriter.Start()
	o.logger.Info("Live session connected", zap.String("participant", o.cfg.ParticipantName))

	if !isRetry && prompt.LoadedResourceCount > 0 {
		o.conversation.AddChat(entities.SpeakerModel, ResourceLoadedNote(prompt.LoadedResourceCount))
	}

	go o.sendImageResources(session, prompt.ImageResources)
	go o.eventLoop(session, gen)
	return nil
}

// sendImageResources streams the room's image attachments into the session,
// spaced out so the endpoint is not flooded right after setup.
func (o *Orchestrator) sendImageResources(session repositories.LiveSession, images []entities.RoomResource) {
	for _, img := range images {
		if err := session.SendImageFrame(img.MimeType, img.Content); err != nil {
			o.logger.Error("Failed to send image context", zap.String("resource", img.Name), zap.Error(err))
			continue
		}
		o.clk.Sleep(imageSendDelay)
	}
}

// SendAudio encodes and forwards one microphone chunk. Chunks are dropped
// while no session is connected.
func (o *Orchestrator) SendAudio(samples []float32) {
	o.mu.Lock()
	session := o.session
	connected := o.state == entities.ConnectionConnected
	o.mu.Unlock()
	if !connected || session == nil {
		return
	}
	if err := session.SendAudioChunk(audio.InputMimeType, audio.EncodeChunk(samples)); err != nil {
		o.logger.Debug("Dropping audio chunk", zap.Error(err))
	}
}

// SendImageFrame forwards one base64 image to the live session, used for
// screen-share frames and chat image fan-out.
func (o *Orchestrator) SendImageFrame(mimeType, data string) error {
	o.mu.Lock()
	session := o.session
	connected := o.state == entities.ConnectionConnected
	o.mu.Unlock()
	if !connected || session == nil {
		return nil
	}
	return session.SendImageFrame(mimeType, data)
}

// Connected reports whether a live session is currently established.
func (o *Orchestrator) Connected() bool {
	return o.State() == entities.ConnectionConnected
}

// Disconnect tears the session down. An intentional disconnect suppresses
// auto-reconnect and returns the orchestrator to idle; a session lost any
// other way ends disconnected. The generation advances even when no session
// is installed yet, so an in-flight dial that completes later is discarded.
func (o *Orchestrator) Disconnect(intentional bool) {
	o.mu.Lock()
	if intentional {
		o.intentional = true
	}
	notes := o.teardownLocked()
	target := entities.ConnectionDisconnected
	if intentional {
		target = entities.ConnectionIdle
	}
	notes = append(notes, o.setStateLocked(target))
	o.mu.Unlock()
	fire(notes)
}

// teardownLocked releases every session resource and advances the
// generation. Safe to call repeatedly. The returned callbacks must run after
// o.mu is released.
func (o *Orchestrator) teardownLocked() []func() {
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.scheduler.StopAll()
	o.typewriter.Stop()
	if o.session != nil {
		_ = o.session.Close()
		o.session = nil
	}
	o.generation++
	notes := []func(){o.setBotStateLocked(entities.BotListening)}
	if cb := o.events.OnRealtimeInput; cb != nil {
		notes = append(notes, func() { cb("") })
	}
	return notes
}

// Leave ends the meeting: a summary report is built from the transcript,
// persisted, and returned after the session is torn down.
func (o *Orchestrator) Leave(ctx context.Context) entities.RoomReport {
	report := BuildMeetingReport(o.persona.Name, o.cfg.ParticipantName, o.conversation.Entries(), o.clk.Now())
	o.Disconnect(true)
	if o.saveReport != nil {
		if err := o.saveReport(ctx, report); err != nil {
			o.logger.Error("Failed to persist meeting report", zap.Error(err))
		}
	}
	return report
}

func (o *Orchestrator) eventLoop(session repositories.LiveSession, gen int) {
	for ev := range session.Events() {
		o.mu.Lock()
		stale := o.generation != gen
		o.mu.Unlock()
		if stale {
			return
		}

		switch ev.Kind {
		case repositories.EventInputTranscript:
			accumulated := o.conversation.AddInputTranscript(ev.Text)
			if o.events.OnRealtimeInput != nil {
				o.events.OnRealtimeInput(accumulated)
			}

		case repositories.EventOutputTranscript:
			o.mu.Lock()
			note := o.setBotStateLocked(entities.BotSpeaking)
			o.mu.Unlock()
			note()
			o.typewriter.SetTarget(o.conversation.AddOutputTranscript(ev.Text))

		case repositories.EventAudioChunk:
			o.scheduler.Schedule(audio.DecodePCM16(ev.Audio))

		case repositories.EventToolCall:
			o.handleToolCall(session, ev.Call)

		case repositories.EventTurnComplete:
			o.conversation.CompleteTurn()
			o.typewriter.SetTarget("")
			o.mu.Lock()
			note := o.setBotStateLocked(entities.BotListening)
			o.mu.Unlock()
			note()
			if o.events.OnRealtimeInput != nil {
				o.events.OnRealtimeInput("")
			}

		case repositories.EventInterrupted:
			o.scheduler.StopAll()
			o.conversation.Interrupt()
			o.typewriter.SetTarget("")

		case repositories.EventClosed:
			o.handleClose(gen, ev.Err)
			return
		}
	}
}

// handleClose runs the bounded reconnect policy when a session drops.
func (o *Orchestrator) handleClose(gen int, cause error) {
	o.mu.Lock()
	if o.generation != gen {
		o.mu.Unlock()
		return
	}
	o.session = nil
	o.scheduler.StopAll()
	o.typewriter.Stop()

	if !o.intentional && o.retryCount < maxRetries {
		o.retryCount++
		o.logger.Warn("Live session dropped, scheduling reconnect",
			zap.Int("attempt", o.retryCount),
			zap.Int("maxRetries", maxRetries),
			zap.Error(cause))
		note := o.setStateLocked(entities.ConnectionConnecting)
		o.retryTimer = o.clk.AfterFunc(retryDelay, o.reconnect)
		o.mu.Unlock()
		note()
		return
	}

	note := func() {}
	if o.state == entities.ConnectionConnected || o.state == entities.ConnectionConnecting {
		note = o.setStateLocked(entities.ConnectionDisconnected)
	}
	intentional := o.intentional
	o.mu.Unlock()
	note()
	o.logger.Info("Live session closed", zap.Bool("intentional", intentional), zap.Error(cause))
}

// reconnect re-dials with the transcript tail as resume context.
func (o *Orchestrator) reconnect() {
	resume := BuildResumeContext(o.conversation.Entries())
	if err := o.connect(context.Background(), resume, true); err != nil {
		o.logger.Error("Reconnect attempt failed", zap.Error(err))
	}
}

// handleToolCall executes create_report requests. Calls already handled are
// acknowledged without generating a second report.
func (o *Orchestrator) handleToolCall(session repositories.LiveSession, call *repositories.FunctionCall) {
	if call == nil {
		return
	}
	if call.Name != "create_report" {
		o.logger.Warn("Ignoring unknown tool call", zap.String("name", call.Name))
		return
	}

	o.mu.Lock()
	duplicate := call.ID != "" && o.handledCalls[call.ID]
	if call.ID != "" {
		o.handledCalls[call.ID] = true
	}
	o.mu.Unlock()

	if !duplicate {
		title, _ := call.Args["title"].(string)
		content, _ := call.Args["content"].(string)
		report := BuildToolReport(title, content, o.clk.Now())

		if o.saveReport != nil {
			if err := o.saveReport(context.Background(), report); err != nil {
				o.logger.Error("Failed to persist tool report", zap.Error(err))
			}
		}
		if o.events.OnReportSaved != nil {
			o.events.OnReportSaved(report)
		}
		o.conversation.AddChat(entities.SpeakerModel, ToolReportChatEntry(title, content))
	}

	err := session.SendToolResponse(repositories.FunctionResponse{
		ID:   call.ID,
		Name: call.Name,
		Response: map[string]any{
			"result": map[string]any{
				"success": true,
				"message": "Report saved and displayed to user.",
			},
		},
	})
	if err != nil {
		o.logger.Error("Failed to acknowledge tool call", zap.Error(err))
	}
}
