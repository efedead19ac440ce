package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Bonniface/TeachTap/internal/audio"
)

// MaxTranscripts caps the retained transcript history; the oldest
// entries are evicted first.
const MaxTranscripts = 50

var (
	// ErrMicrophoneUnavailable means no capture source could be
	// acquired; the session never reaches connected.
	ErrMicrophoneUnavailable = errors.New("live: microphone unavailable")

	// ErrAlreadyConnected means Connect was called on an active
	// session; a full Disconnect must happen first.
	ErrAlreadyConnected = errors.New("live: session already connected")
)

// Transcript is one finished conversational turn entry.
type Transcript struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// State is a point-in-time snapshot of the session observable state.
type State struct {
	Connected   bool         `json:"connected"`
	Speaking    bool         `json:"speaking"`
	Transcripts []Transcript `json:"transcripts"`
	Error       string       `json:"error,omitempty"`
}

// SourceOpener acquires the capture source for a session.
type SourceOpener interface {
	OpenSource(ctx context.Context) (audio.Source, error)
}

// SourceOpenerFunc adapts a function to a SourceOpener.
type SourceOpenerFunc func(ctx context.Context) (audio.Source, error)

func (f SourceOpenerFunc) OpenSource(ctx context.Context) (audio.Source, error) {
	return f(ctx)
}

// SchedulerFactory builds a fresh playback scheduler per session, so a
// reconnect never inherits stale playback state.
type SchedulerFactory func() *audio.Scheduler

// Controller owns the full lifecycle of one live bidirectional session:
// connect, inbound message handling, transcript accumulation and
// teardown. All shared session state is guarded by one mutex since
// capture, inbound messages and caller operations interleave freely.
type Controller struct {
	dialer       Dialer
	opener       SourceOpener
	newScheduler SchedulerFactory
	cfg          SessionConfig
	logger       *slog.Logger

	mu          sync.Mutex
	res         *Resources
	connected   bool
	speaking    bool
	transcripts []Transcript
	lastErr     string

	// Per-turn transcript accumulation buffers.
	curInput  string
	curOutput string

	loopWG sync.WaitGroup
}

// NewController creates a session controller.
func NewController(dialer Dialer, opener SourceOpener, newScheduler SchedulerFactory, cfg SessionConfig, logger *slog.Logger) *Controller {
	return &Controller{
		dialer:       dialer,
		opener:       opener,
		newScheduler: newScheduler,
		cfg:          cfg,
		logger:       logger,
	}
}

// Connect acquires the capture source, opens the remote channel, wires
// capture into it and starts handling inbound messages. Exactly one
// active session is allowed; reconnecting requires Disconnect first.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.res != nil {
		return ErrAlreadyConnected
	}

	c.lastErr = ""

	res := NewResources(c.logger)

	src, err := c.opener.OpenSource(ctx)
	if err != nil {
		c.lastErr = "microphone unavailable"
		return fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}
	res.Source = src

	ch, err := c.dialer.DialContext(ctx, c.cfg)
	if err != nil {
		res.Release()
		c.lastErr = "failed to connect"
		return fmt.Errorf("open live channel: %w", err)
	}
	res.Channel = ch

	res.Playback = c.newScheduler()
	res.Capture = audio.NewCaptureProcessor(src, ch.SendRealtimeInput, c.logger)
	res.Capture.Start()

	c.res = res
	c.connected = true
	c.speaking = false
	c.curInput = ""
	c.curOutput = ""

	c.loopWG.Add(1)
	go c.messageLoop(res)

	c.logger.Info("Live session connected", slog.String("model", c.cfg.Model))

	return nil
}

// Disconnect tears the active session down. Idempotent and re-entrant;
// calling it on a never-connected controller is a no-op.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.res == nil {
		return
	}

	c.teardownLocked("")
	c.logger.Info("Live session disconnected")
}

// State returns a snapshot of the observable session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	transcripts := make([]Transcript, len(c.transcripts))
	copy(transcripts, c.transcripts)

	return State{
		Connected:   c.connected,
		Speaking:    c.speaking,
		Transcripts: transcripts,
		Error:       c.lastErr,
	}
}

// Wait blocks until the inbound message loop of the last session has
// finished. Mainly for tests and shutdown sequencing.
func (c *Controller) Wait() {
	c.loopWG.Wait()
}

// messageLoop consumes decoded inbound events until the channel ends,
// then tears down if this session is still the active one.
func (c *Controller) messageLoop(res *Resources) {
	defer c.loopWG.Done()

	for msg := range res.Channel.Messages() {
		c.handleMessage(res, msg)
	}

	err := res.Channel.Err()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Disconnect already swapped this session out.
	if c.res != res {
		return
	}

	if err != nil {
		c.logger.Error("Live channel failed", slog.String("error", err.Error()))
		c.teardownLocked("connection error")
	} else {
		c.teardownLocked("")
	}
}

func (c *Controller) handleMessage(res *Resources, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.res != res {
		return
	}

	switch m := msg.(type) {
	case TranscriptFragment:
		if m.Role == RoleModel {
			c.curOutput += m.Text
		} else {
			c.curInput += m.Text
		}

	case TurnComplete:
		c.flushTranscriptsLocked()
		c.speaking = false

	case AudioChunk:
		c.speaking = true
		if err := res.Playback.Schedule(m.PCM); err != nil {
			c.logger.Warn("Failed to schedule playback chunk", slog.String("error", err.Error()))
		}

	case Interrupted:
		res.Playback.Interrupt()
		c.speaking = false
	}
}

// flushTranscriptsLocked appends the accumulated per-turn buffers as at
// most two entries, evicting the oldest beyond MaxTranscripts.
func (c *Controller) flushTranscriptsLocked() {
	if c.curInput != "" {
		c.transcripts = append(c.transcripts, Transcript{Role: RoleUser, Text: c.curInput})
	}
	if c.curOutput != "" {
		c.transcripts = append(c.transcripts, Transcript{Role: RoleModel, Text: c.curOutput})
	}

	if excess := len(c.transcripts) - MaxTranscripts; excess > 0 {
		c.transcripts = append([]Transcript(nil), c.transcripts[excess:]...)
	}

	c.curInput = ""
	c.curOutput = ""
}

// teardownLocked releases the active resource bundle and resets the
// session flags. Caller holds c.mu.
func (c *Controller) teardownLocked(errMsg string) {
	res := c.res
	c.res = nil
	c.connected = false
	c.speaking = false
	c.curInput = ""
	c.curOutput = ""
	if errMsg != "" {
		c.lastErr = errMsg
	}

	res.Release()
}
