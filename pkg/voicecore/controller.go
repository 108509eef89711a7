package voicecore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	handshakeTimeout  = 5 * time.Second
	disconnectGrace   = 5 * time.Second
)

// TextInputFlags controls SendTextInput's interaction with an in-progress
// agent response, per §4.1.
type TextInputFlags struct {
	// InterruptResponse requests that an ongoing agent response be cut
	// short in favour of this text turn.
	InterruptResponse bool
}

// TextInputPayload is the opaque payload of an add_text_input-style event a
// caller's agent loop consumes; the core never generates a response to it
// itself (LLM generation is an explicit non-goal).
type TextInputPayload struct {
	Text  string
	Flags TextInputFlags
}

// Controller is the Session Controller (§4.1): it owns the full lifecycle
// of one conversation, composing a Transport, an EventEmitter, a
// FragmentReconciler, a SegmentBuilder, a TurnDetector and its
// TurnTaskProcessor, and an optional RollingAudioBuffer — composition, not
// the teacher's inheritance-from-a-base-realtime-client shape (§9).
type Controller struct {
	cfg       Config
	transport Transport
	emitter   *EventEmitter
	metrics   *Metrics
	logger    Logger

	reconciler *FragmentReconciler
	segBuilder *SegmentBuilder
	audioBuf   *RollingAudioBuffer
	turnTasks  *TurnTaskProcessor
	detector   *TurnDetector

	mu              sync.Mutex
	state           SessionState
	turn            TurnState
	lastView        *SegmentView
	languagePack    LanguagePack
	focus           DiarizationFocusConfig
	audioSeq        uint64
	pendingFinalize bool

	readyCh        chan struct{}
	readyClosed    bool
	disconnectOnce sync.Once
	recvCtx    context.Context
	recvCancel context.CancelFunc
	recvDone   chan struct{}

	disconnected atomic.Bool
}

// NewController constructs a Controller bound to transport, applying
// cfg.validate(). Zero-valued cfg fields are not replaced with
// DefaultConfig's values; only a nil Logger falls back to NoOpLogger.
// predicate is only consulted in EOUSmartTurn mode and may be nil.
func NewController(cfg Config, transport Transport, predicate TurnPredicate) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.logger()

	audioBuf, err := NewRollingAudioBuffer(cfg.SampleRate, cfg.SampleWidth, cfg.AudioBufferFrameSize, cfg.AudioBufferSeconds)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		transport:  transport,
		emitter:    NewEventEmitter(logger),
		metrics:    NewMetrics(cfg.Registry),
		logger:     logger,
		reconciler: NewFragmentReconciler(cfg.DiarizationFocus),
		audioBuf:   audioBuf,
		focus:      cfg.DiarizationFocus,
	}
	c.turnTasks = NewTurnTaskProcessor(c.onTurnDone)
	c.detector = NewTurnDetector(cfg, c.turnTasks, audioBuf, predicate)

	candidates := cfg.LanguageCandidates
	if len(candidates) == 0 {
		candidates = []string{cfg.Language}
	}
	c.segBuilder = NewSegmentBuilder(" ", cfg.EmitSentences, NewLinguaLanguageDetector(candidates...))
	c.state.SessionID = uuid.NewString()
	return c, nil
}

// On registers a persistent handler for event.
func (c *Controller) On(event EventName, handler Handler) uint64 { return c.emitter.On(event, handler) }

// Once registers a one-shot handler for event.
func (c *Controller) Once(event EventName, handler Handler) uint64 {
	return c.emitter.Once(event, handler)
}

// Off removes a single subscription.
func (c *Controller) Off(event EventName, id uint64) { c.emitter.Off(event, id) }

// SessionID returns the UUID generated at construction time.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SessionID
}

// Connect dials the transport, sends start-recognition, and blocks until
// recognition-started arrives (or handshakeTimeout elapses), per §4.1.
func (c *Controller) Connect(ctx context.Context, headers HeaderProducer) error {
	c.mu.Lock()
	if c.state.Connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state.Connected = true
	c.state.ReadyForAudio = false
	c.state.TotalAudioBytesSent = 0
	c.state.TotalAudioSecondsSent = 0
	c.state.TrimWatermark = 0
	c.readyCh = make(chan struct{})
	c.readyClosed = false
	c.disconnectOnce = sync.Once{}
	c.disconnected.Store(false)
	c.mu.Unlock()

	if err := c.transport.Connect(ctx, headers); err != nil {
		c.mu.Lock()
		c.state.Connected = false
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	payload := StartRecognitionPayload{AudioEncoding: c.cfg.AudioEncoding, SampleRate: c.cfg.SampleRate, Config: c.cfg}
	if err := c.transport.SendControl(ctx, MsgStartRecognition, payload); err != nil {
		c.mu.Lock()
		c.state.Connected = false
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}

	c.recvCtx, c.recvCancel = context.WithCancel(context.Background())
	c.recvDone = make(chan struct{})
	go c.receiveLoop()

	select {
	case <-c.readyCh:
		return nil
	case <-time.After(handshakeTimeout):
		c.mu.Lock()
		c.state.Connected = false
		c.mu.Unlock()
		c.recvCancel()
		return ErrHandshakeTimeout
	case <-ctx.Done():
		c.mu.Lock()
		c.state.Connected = false
		c.mu.Unlock()
		c.recvCancel()
		return ctx.Err()
	}
}

// SendAudio forwards data to the transport once ready_for_audio, updating
// the byte-counter audio-time accounting. Calls made before the handshake
// completes are silently dropped (§4.1, §9 Open Question resolved as
// drop-with-reason).
func (c *Controller) SendAudio(ctx context.Context, data []byte) error {
	c.mu.Lock()
	if !c.state.ReadyForAudio {
		c.mu.Unlock()
		return nil
	}
	c.state.TotalAudioBytesSent += uint64(len(data))
	c.state.TotalAudioSecondsSent = float64(c.state.TotalAudioBytesSent) / float64(c.cfg.SampleRate) / float64(c.cfg.SampleWidth)
	c.audioSeq++
	seq := c.audioSeq
	c.mu.Unlock()

	c.audioBuf.PutBytes(data)
	return c.transport.SendAudio(ctx, seq, data)
}

// SendTextInput emits an immediate text turn into the agent's logical input
// channel without producing transcription output, per §4.1.
func (c *Controller) SendTextInput(text string, flags TextInputFlags) {
	c.emitter.Emit(EventInfo, TextInputPayload{Text: text, Flags: flags})
}

// UpdateDiarizationConfig updates the focus policy applied to subsequent
// reconciler updates and segment builds.
func (c *Controller) UpdateDiarizationConfig(focus DiarizationFocusConfig) {
	c.mu.Lock()
	c.focus = focus
	c.mu.Unlock()
	c.reconciler.SetDiarizationFocus(focus)
}

// Finalize requests the current partial prefix be resolved to a final
// segment as soon as the STT has committed available words. It sends a
// finalize-hint control message and arms the turn so that the genuine
// final transcript the STT service sends back (not the possibly-stale
// view at call time) is what actually resolves end-of-turn. It is a hint,
// not a guarantee of immediate emission (§4.1).
func (c *Controller) Finalize(ctx context.Context) error {
	c.mu.Lock()
	c.pendingFinalize = true
	c.mu.Unlock()
	return c.transport.SendControl(ctx, MsgFinalizeHint, nil)
}

// Disconnect sends an end-of-stream terminator, waits up to a 5 second
// grace for outstanding per-turn tasks, then closes the transport. Safe to
// call multiple times.
func (c *Controller) Disconnect(ctx context.Context) error {
	var retErr error
	c.disconnectOnce.Do(func() {
		c.disconnected.Store(true)

		c.mu.Lock()
		seq := c.audioSeq
		c.mu.Unlock()

		_ = c.transport.SendControl(ctx, MsgEndOfStream, map[string]interface{}{"last_seq_no": seq})

		deadline := time.After(disconnectGrace)
		for c.turnTasks.Pending() {
			select {
			case <-deadline:
				goto closeTransport
			case <-time.After(10 * time.Millisecond):
			}
		}

	closeTransport:
		if c.recvCancel != nil {
			c.recvCancel()
		}
		retErr = c.transport.Close()

		c.mu.Lock()
		c.state.Connected = false
		c.state.ReadyForAudio = false
		c.mu.Unlock()

		c.emitter.RemoveAllListeners()
	})
	return retErr
}

// terminate forces the session into disconnected state without sending
// end-of-stream, used on connection_error/error: it clears the connected
// and ready flags and cancels the current turn's pending tasks. The
// reconciler's fragment list and watermark, the last view, and the turn
// id and Active flag are left as they are. No automatic reconnection is
// attempted.
func (c *Controller) terminate() {
	c.mu.Lock()
	c.state.Connected = false
	c.state.ReadyForAudio = false
	c.mu.Unlock()
	c.turnTasks.Reset()
}

func (c *Controller) receiveLoop() {
	defer close(c.recvDone)
	for {
		msg, err := c.transport.Receive(c.recvCtx)
		if err != nil {
			if c.disconnected.Load() {
				return
			}
			if errors.Is(err, ErrUnknownMessage) || errors.Is(err, ErrMalformedPayload) {
				c.logger.Warn("voicecore: discarding unparseable message", "error", err)
				continue
			}
			c.emitter.Emit(EventConnectionError, err)
			c.terminate()
			return
		}
		if c.handleMessage(c.recvCtx, msg) {
			return
		}
	}
}

// handleMessage processes one inbound Message, returning true if the
// session should terminate (a fatal error or the server closed cleanly).
func (c *Controller) handleMessage(ctx context.Context, msg Message) bool {
	switch msg.Kind {
	case MsgRecognitionStarted:
		c.mu.Lock()
		c.state.ReadyForAudio = true
		c.state.SessionStartWallClock = time.Now()
		c.languagePack = msg.LanguagePack
		c.segBuilder.Delimiter = msg.LanguagePack.WordDelimiter
		ready := !c.readyClosed
		c.readyClosed = true
		ch := c.readyCh
		c.mu.Unlock()
		if ready {
			close(ch)
		}
		c.emitter.Emit(EventRecognitionStarted, msg)

	case MsgAddPartialTranscript:
		c.mu.Lock()
		total := c.state.TotalAudioSecondsSent
		c.mu.Unlock()
		res := c.reconciler.ApplyPartial(total, msg.Results)
		for range msg.Results {
			c.metrics.IncFragments(c.state.SessionID, false)
		}
		c.emitter.Emit(EventAddPartialTranscript, msg.Results)
		if res.HasTTFB {
			ms := res.TTFBSeconds * 1000
			c.mu.Lock()
			c.state.LastTTFBMillis = ms
			c.mu.Unlock()
			c.metrics.ObserveTTFB(c.state.SessionID, ms)
			c.emitter.Emit(EventTTFBMetrics, ms)
		}
		c.onFragmentsUpdated(ctx, res.List)

	case MsgAddTranscript:
		res := c.reconciler.ApplyFinal(msg.Results)
		for range msg.Results {
			c.metrics.IncFragments(c.state.SessionID, true)
		}
		c.emitter.Emit(EventAddTranscript, msg.Results)
		c.onFragmentsUpdated(ctx, res.List)

		c.mu.Lock()
		armed := c.pendingFinalize
		c.pendingFinalize = false
		c.mu.Unlock()
		if armed {
			c.detector.Finalize()
		}

	case MsgEndOfUtterance:
		c.detector.OnServerEndOfUtterance()

	case MsgSpeakersResult:
		c.emitter.Emit(EventSpeakersResult, msg.Speakers)

	case MsgInfo:
		c.emitter.Emit(EventInfo, msg.Text)

	case MsgWarning:
		c.emitter.Emit(EventWarning, msg.Text)

	case MsgError:
		c.emitter.Emit(EventError, msg.Text)
		c.terminate()
		return true

	default:
		c.logger.Warn("voicecore: unknown message kind", "kind", msg.Kind)
	}
	return false
}

// onFragmentsUpdated rebuilds the segment view, diffs it against the
// previous view, classifies segments for emission, advances the trim
// watermark, and feeds the Turn Detector — the data-flow cycle of §2.
func (c *Controller) onFragmentsUpdated(ctx context.Context, list *FragmentList) {
	c.mu.Lock()
	focus := c.focus
	c.mu.Unlock()

	view := c.segBuilder.Build(list.Fragments, focus)
	diff := CompareViews(view, c.lastView, c.segBuilder.Delimiter)
	prevView := c.lastView
	c.lastView = &view

	c.mu.Lock()
	if !c.turn.Active {
		for _, s := range view.Segments {
			if s.IsActive {
				c.turn.Active = true
				c.turn.StartedAt = time.Now()
				break
			}
		}
	}
	c.mu.Unlock()

	finals, interims := ClassifySegments(view)
	if len(finals) > 0 {
		c.emitter.Emit(EventAddSegment, finals)
		c.metrics.IncSegments(c.state.SessionID, true, len(finals))
		c.advanceWatermark(finals)
	}
	if len(interims) > 0 {
		c.emitter.Emit(EventAddInterimSegment, interims)
		c.metrics.IncSegments(c.state.SessionID, false, len(interims))
	}

	c.emitSpeakerVAD(prevView, view)
	c.detector.OnViewUpdate(ctx, view, diff)
}

// advanceWatermark raises the trim watermark to the latest emitted final's
// end_time, per §4.5: "the trim watermark is advanced to the last final's
// end_time and the fragment list is trimmed accordingly."
func (c *Controller) advanceWatermark(finals []SpeakerSegment) {
	watermark := 0.0
	for _, seg := range finals {
		if len(seg.Fragments) == 0 {
			continue
		}
		end := seg.Fragments[len(seg.Fragments)-1].EndTime
		if end > watermark {
			watermark = end
		}
	}
	if watermark > 0 {
		c.reconciler.AdvanceWatermark(watermark)
		c.mu.Lock()
		c.state.TrimWatermark = watermark
		c.mu.Unlock()
	}
}

// emitSpeakerVAD emits speaker_started/speaker_ended for any active
// speaker appearing or disappearing between consecutive views.
func (c *Controller) emitSpeakerVAD(prev *SegmentView, next SegmentView) {
	before := activeSpeakers(prev)
	after := activeSpeakers(&next)
	for speaker := range after {
		if !before[speaker] {
			c.emitter.Emit(EventSpeakerStarted, speaker)
		}
	}
	for speaker := range before {
		if !after[speaker] {
			c.emitter.Emit(EventSpeakerEnded, speaker)
		}
	}
}

func activeSpeakers(v *SegmentView) map[string]bool {
	out := make(map[string]bool)
	if v == nil {
		return out
	}
	for _, s := range v.Segments {
		if s.IsActive {
			out[s.Speaker] = true
		}
	}
	return out
}

// onTurnDone is the Turn Task Processor's callback (§4.6), invoked once
// every turn-scoped task has settled: the entire current view is emitted
// as finals regardless of annotation, end_of_turn is issued, and the turn
// counter increments.
func (c *Controller) onTurnDone(turnID int64) {
	c.mu.Lock()
	if turnID != c.turn.TurnID {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	list := c.reconciler.Snapshot()
	c.mu.Lock()
	focus := c.focus
	c.mu.Unlock()
	view := c.segBuilder.Build(list.Fragments, focus)

	if len(view.Segments) > 0 {
		c.emitter.Emit(EventAddSegment, view.Segments)
		c.metrics.IncSegments(c.state.SessionID, true, len(view.Segments))
		c.advanceWatermark(view.Segments)
	}

	c.mu.Lock()
	started := c.turn.StartedAt
	c.mu.Unlock()
	if !started.IsZero() {
		c.metrics.ObserveTurnDuration(c.state.SessionID, time.Since(started).Seconds())
	}

	c.emitter.Emit(EventEndOfTurn, turnID)
	c.lastView = nil

	next := c.turnTasks.Increment()
	c.mu.Lock()
	c.turn.TurnID = next
	c.turn.Active = false
	c.turn.StartedAt = time.Time{}
	c.mu.Unlock()
}
