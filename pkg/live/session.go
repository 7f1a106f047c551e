package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
	"github.com/chinkilabs/go-chinki/pkg/playback"
	"github.com/chinkilabs/go-chinki/pkg/tools"
)

// Status is the session lifecycle state surfaced to the user.
type Status string

const (
	StatusIdle        Status = "IDLE"
	StatusConnecting  Status = "CONNECTING"
	StatusActive      Status = "ACTIVE"
	StatusStabilizing Status = "STABILIZING"
	StatusError       Status = "ERROR"
)

// MaxRetries is how many automatic reconnects are attempted before the
// session gives up and surfaces an error.
const MaxRetries = 3

const maxBackoff = 8 * time.Second

// Conn is what the controller needs from one live connection.
type Conn interface {
	SendAudioFrame(audioio.MediaFrame) error
	SendVideoFrame(audioio.MediaFrame) error
	SendToolResponses([]tools.Result) error
	Close() error
}

// Dialer opens a connection with its inbound events wired to h.
type Dialer func(ctx context.Context, h Handlers) (Conn, error)

// afterFunc schedules f after d and returns a stop function, injectable
// so reconnect backoff is testable.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func stdAfter(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// Controller keeps one conversation alive across transport drops. A
// dropped connection is redialed with exponential backoff while the
// conversation state (transcripts, camera, recorder) stays put; each
// redial gets a fresh playback scheduler so stale audio from the dead
// connection never plays.
type Controller struct {
	dialer       Dialer
	registry     *tools.Registry
	newScheduler func() *playback.Scheduler
	after        afterFunc
	maxRetries   int

	mu          sync.Mutex
	ctx         context.Context
	status      Status
	conn        Conn
	sched       *playback.Scheduler
	gen         int
	retry       int
	intentional bool
	cancelRetry func() bool
	speaking    bool
	user        string
	assistant   string

	onStatus     func(Status)
	onTranscript func(user, assistant string)
	onSpeaking   func(bool)
}

// ControllerOption tunes a Controller.
type ControllerOption func(*Controller)

// WithAfter replaces the backoff timer source.
func WithAfter(after afterFunc) ControllerOption {
	return func(c *Controller) { c.after = after }
}

// WithMaxRetries overrides the automatic reconnect budget.
func WithMaxRetries(n int) ControllerOption {
	return func(c *Controller) { c.maxRetries = n }
}

// NewController builds a session controller. newScheduler is called once
// per connection attempt.
func NewController(dialer Dialer, registry *tools.Registry, newScheduler func() *playback.Scheduler, opts ...ControllerOption) *Controller {
	c := &Controller{
		dialer:       dialer,
		registry:     registry,
		newScheduler: newScheduler,
		after:        stdAfter,
		maxRetries:   MaxRetries,
		status:       StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnStatus registers a status-change observer.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStatus = fn
}

// OnTranscript registers an observer for transcript updates. It receives
// the accumulated user and assistant text.
func (c *Controller) OnTranscript(fn func(user, assistant string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscript = fn
}

// OnSpeaking registers an observer for assistant speech activity.
func (c *Controller) OnSpeaking(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSpeaking = fn
}

// Start opens the session. It returns immediately; progress is reported
// through the status observer.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusIdle && c.status != StatusError {
		c.mu.Unlock()
		return fmt.Errorf("live: session already running (%s)", c.status)
	}
	c.ctx = ctx
	c.intentional = false
	c.retry = 0
	c.mu.Unlock()

	go c.connect()
	return nil
}

// Close tears the session down. The camera and recorder are not touched;
// hardware outlives the session by design.
func (c *Controller) Close() {
	c.mu.Lock()
	c.intentional = true
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	conn := c.conn
	sched := c.sched
	c.conn = nil
	c.sched = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if sched != nil {
		sched.Close()
	}
	c.setStatus(StatusIdle)
	c.setSpeaking(false)
}

// ManualReconnect abandons the current connection and redials with a
// fresh retry budget. It is the escape hatch once automatic retries are
// exhausted.
func (c *Controller) ManualReconnect() {
	c.mu.Lock()
	ctx := c.ctx
	if ctx == nil {
		c.mu.Unlock()
		return
	}
	c.intentional = false
	c.retry = 0
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	conn := c.conn
	sched := c.sched
	c.conn = nil
	c.sched = nil
	c.gen++
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if sched != nil {
		sched.Close()
	}
	go c.connect()
}

// Status returns the current session state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Speaking reports whether assistant audio is currently scheduled.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Transcripts returns the accumulated user and assistant text.
func (c *Controller) Transcripts() (user, assistant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, c.assistant
}

// SendMicBlock streams one block of microphone samples. Blocks arriving
// while the session is not active are dropped; microphone capture never
// pauses for a reconnect.
func (c *Controller) SendMicBlock(samples []float32, deviceRate int) {
	c.mu.Lock()
	conn := c.conn
	active := c.status == StatusActive
	c.mu.Unlock()

	if !active || conn == nil {
		return
	}
	if err := conn.SendAudioFrame(audioio.PCMFrame(samples, deviceRate)); err != nil {
		log.Debug("mic frame dropped", "err", err)
	}
}

// SendCameraFrame streams one JPEG camera frame. Frames arriving while
// the session is not active are dropped.
func (c *Controller) SendCameraFrame(jpeg []byte) {
	c.mu.Lock()
	conn := c.conn
	active := c.status == StatusActive
	c.mu.Unlock()

	if !active || conn == nil {
		return
	}
	if err := conn.SendVideoFrame(audioio.JPEGFrame(jpeg)); err != nil {
		log.Debug("camera frame dropped", "err", err)
	}
}

// connect performs one connection attempt for the current generation.
func (c *Controller) connect() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	ctx := c.ctx
	c.mu.Unlock()

	c.setStatus(StatusConnecting)

	sched := c.newScheduler()
	sched.OnIdle(func() { c.setSpeaking(false) })

	conn, err := c.dialer(ctx, c.handlersFor(gen, sched))
	if err != nil {
		log.Warn("session connect failed", "err", err)
		sched.Close()
		c.handleDisconnect(gen, err)
		return
	}

	c.mu.Lock()
	if c.intentional || gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		sched.Close()
		return
	}
	c.conn = conn
	c.sched = sched
	c.retry = 0
	c.mu.Unlock()

	c.setStatus(StatusActive)
	log.Info("session active")
}

// handlersFor binds inbound events to one connection generation so a
// late close from a dead connection cannot disturb its replacement.
func (c *Controller) handlersFor(gen int, sched *playback.Scheduler) Handlers {
	return Handlers{
		OnAudio: func(payload string) {
			c.setSpeaking(true)
			sched.Enqueue(payload)
		},
		OnInputTranscription:  c.appendUserTranscript,
		OnOutputTranscription: c.appendAssistantTranscript,
		OnToolCalls: func(calls []tools.Call) {
			go c.dispatchTools(gen, calls)
		},
		OnInterrupted: func() {
			sched.Flush()
			c.clearTranscripts()
			c.setSpeaking(false)
		},
		OnTurnComplete: func() {
			log.Debug("assistant turn complete")
		},
		OnClose: func(err error) {
			c.handleDisconnect(gen, err)
		},
	}
}

// handleDisconnect runs the retry ladder for an unexpected connection
// loss: 2s, 4s, 8s, then error out.
func (c *Controller) handleDisconnect(gen int, cause error) {
	c.mu.Lock()
	if c.intentional || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	conn := c.conn
	sched := c.sched
	c.conn = nil
	c.sched = nil

	c.retry++
	if c.retry > c.maxRetries {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if sched != nil {
			sched.Close()
		}
		log.Error("session lost, retries exhausted", "cause", cause)
		c.setStatus(StatusError)
		c.setSpeaking(false)
		return
	}

	delay := backoffDelay(c.retry)
	c.cancelRetry = c.after(delay, c.connect)
	attempt := c.retry
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if sched != nil {
		sched.Close()
	}
	log.Warn("session dropped, reconnecting", "attempt", attempt, "delay", delay, "cause", cause)
	c.setStatus(StatusStabilizing)
	c.setSpeaking(false)
}

// dispatchTools answers a tool-call batch with exactly one result per
// call, in order.
func (c *Controller) dispatchTools(gen int, calls []tools.Call) {
	results := c.registry.Dispatch(calls)

	c.mu.Lock()
	conn := c.conn
	stale := gen != c.gen
	c.mu.Unlock()

	if stale || conn == nil {
		log.Warn("tool results dropped, connection gone", "count", len(results))
		return
	}
	if err := conn.SendToolResponses(results); err != nil {
		log.Warn("tool response send failed", "err", err)
	}
}

func backoffDelay(retry int) time.Duration {
	d := time.Second << retry
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// appendUserTranscript accumulates user speech. The first user fragment
// after an assistant turn clears the assistant text, marking the turn
// boundary.
func (c *Controller) appendUserTranscript(text string) {
	c.mu.Lock()
	if c.assistant != "" {
		c.assistant = ""
	}
	c.user = strings.TrimSpace(c.user + " " + text)
	fn := c.onTranscript
	user, assistant := c.user, c.assistant
	c.mu.Unlock()

	if fn != nil {
		fn(user, assistant)
	}
}

func (c *Controller) appendAssistantTranscript(text string) {
	c.mu.Lock()
	c.assistant += text
	fn := c.onTranscript
	user, assistant := c.user, c.assistant
	c.mu.Unlock()

	if fn != nil {
		fn(user, assistant)
	}
}

func (c *Controller) clearTranscripts() {
	c.mu.Lock()
	c.user = ""
	c.assistant = ""
	fn := c.onTranscript
	c.mu.Unlock()

	if fn != nil {
		fn("", "")
	}
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fn := c.onStatus
	c.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (c *Controller) setSpeaking(speaking bool) {
	c.mu.Lock()
	if c.speaking == speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = speaking
	fn := c.onSpeaking
	c.mu.Unlock()

	if fn != nil {
		fn(speaking)
	}
}

// UserTranscript returns the accumulated user text.
func (c *Controller) UserTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// AssistantTranscript returns the accumulated assistant text.
func (c *Controller) AssistantTranscript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assistant
}
