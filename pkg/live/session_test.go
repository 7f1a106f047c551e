package live

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chinkilabs/go-chinki/pkg/audioio"
	"github.com/chinkilabs/go-chinki/pkg/playback"
	"github.com/chinkilabs/go-chinki/pkg/tools"
)

type fakeConn struct {
	mu       sync.Mutex
	audio    []audioio.MediaFrame
	video    []audioio.MediaFrame
	results  [][]tools.Result
	closed   bool
	sendErr  error
	closeErr error
}

func (f *fakeConn) SendAudioFrame(frame audioio.MediaFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.audio = append(f.audio, frame)
	return nil
}

func (f *fakeConn) SendVideoFrame(frame audioio.MediaFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.video = append(f.video, frame)
	return nil
}

func (f *fakeConn) SendToolResponses(results []tools.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeConn) audioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audio)
}

// fakeDialer hands out one attempt per queued outcome and records the
// handlers bound to each connection.
type fakeDialer struct {
	mu       sync.Mutex
	errs     []error
	conns    []*fakeConn
	handlers []Handlers
}

func (d *fakeDialer) dial(ctx context.Context, h Handlers) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	attempt := len(d.handlers)
	d.handlers = append(d.handlers, h)
	if attempt < len(d.errs) && d.errs[attempt] != nil {
		return nil, d.errs[attempt]
	}
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) lastHandlers() Handlers {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handlers[len(d.handlers)-1]
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

// fakeTimers captures backoff timers so tests fire them explicitly.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (f *fakeTimers) after(d time.Duration, fn func()) func() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays = append(f.delays, d)
	f.fns = append(f.fns, fn)
	return func() bool { return true }
}

func (f *fakeTimers) fireLast() {
	f.mu.Lock()
	fn := f.fns[len(f.fns)-1]
	f.mu.Unlock()
	fn()
}

type nopSink struct{}

func (nopSink) Play([]int16, int) {}

func newTestScheduler() *playback.Scheduler {
	return playback.New(24000, nopSink{})
}

type controllerHarness struct {
	ctrl     *Controller
	dialer   *fakeDialer
	timers   *fakeTimers
	statuses chan Status
}

func newHarness(t *testing.T, reg *tools.Registry) *controllerHarness {
	t.Helper()
	h := &controllerHarness{
		dialer:   &fakeDialer{},
		timers:   &fakeTimers{},
		statuses: make(chan Status, 32),
	}
	if reg == nil {
		reg = tools.NewRegistry()
	}
	h.ctrl = NewController(h.dialer.dial, reg, newTestScheduler, WithAfter(h.timers.after))
	h.ctrl.OnStatus(func(s Status) { h.statuses <- s })
	return h
}

func (h *controllerHarness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.statuses:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s (now %s)", want, h.ctrl.Status())
		}
	}
}

func TestController_ConnectsToActive(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusConnecting)
	h.waitStatus(t, StatusActive)
}

func TestController_StartTwiceFails(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	if err := h.ctrl.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
}

func TestController_ReconnectBackoffLadder(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)

	// Fail every redial so the retry counter never resets.
	h.dialer.mu.Lock()
	h.dialer.errs = make([]error, 16)
	for i := range h.dialer.errs {
		h.dialer.errs[i] = errors.New("refused")
	}
	h.dialer.mu.Unlock()

	h.dialer.lastHandlers().OnClose(errors.New("transport lost"))
	h.waitStatus(t, StatusStabilizing)

	// Consecutive failures walk the 2s, 4s, 8s ladder, then error out.
	wantDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, want := range wantDelays {
		h.timers.mu.Lock()
		if len(h.timers.delays) != i+1 {
			t.Fatalf("attempt %d: %d timers scheduled", i+1, len(h.timers.delays))
		}
		if got := h.timers.delays[i]; got != want {
			t.Fatalf("attempt %d: delay = %v, want %v", i+1, got, want)
		}
		h.timers.mu.Unlock()

		h.timers.fireLast()
		if i < len(wantDelays)-1 {
			h.waitStatus(t, StatusStabilizing)
		}
	}
	h.waitStatus(t, StatusError)
}

func TestController_SuccessfulReconnectResetsBudget(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)

	// Each drop reconnects cleanly, so the delay stays at the first rung
	// no matter how many times the connection dies.
	for i := 0; i < MaxRetries+2; i++ {
		h.dialer.lastHandlers().OnClose(errors.New("transport lost"))
		h.waitStatus(t, StatusStabilizing)

		h.timers.mu.Lock()
		got := h.timers.delays[len(h.timers.delays)-1]
		h.timers.mu.Unlock()
		if got != 2*time.Second {
			t.Fatalf("drop %d: delay = %v, want 2s", i+1, got)
		}

		h.timers.fireLast()
		h.waitStatus(t, StatusActive)
	}
}

func TestController_CloseSuppressesReconnect(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	conn := h.dialer.lastConn()
	handlers := h.dialer.lastHandlers()

	h.ctrl.Close()
	h.waitStatus(t, StatusIdle)
	if !conn.closed {
		t.Fatal("close should shut the connection")
	}

	// A straggling transport close must not trigger a redial.
	handlers.OnClose(errors.New("late close"))
	time.Sleep(10 * time.Millisecond)
	h.timers.mu.Lock()
	scheduled := len(h.timers.fns)
	h.timers.mu.Unlock()
	if scheduled != 0 {
		t.Fatal("intentional close scheduled a reconnect")
	}
	if got := h.ctrl.Status(); got != StatusIdle {
		t.Fatalf("status = %s, want IDLE", got)
	}
}

func TestController_ManualReconnectResetsBudget(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)

	h.dialer.mu.Lock()
	h.dialer.errs = make([]error, 16)
	for i := range h.dialer.errs {
		h.dialer.errs[i] = errors.New("refused")
	}
	h.dialer.mu.Unlock()

	h.dialer.lastHandlers().OnClose(errors.New("transport lost"))
	for i := 0; i < MaxRetries; i++ {
		h.waitStatus(t, StatusStabilizing)
		h.timers.fireLast()
	}
	h.waitStatus(t, StatusError)

	// Let dials succeed again; a manual reconnect starts from scratch.
	h.dialer.mu.Lock()
	h.dialer.errs = nil
	h.dialer.mu.Unlock()

	h.ctrl.ManualReconnect()
	h.waitStatus(t, StatusActive)
}

func TestController_MicDroppedUnlessActive(t *testing.T) {
	h := newHarness(t, nil)
	samples := make([]float32, 160)

	// Idle: nothing to send to.
	h.ctrl.SendMicBlock(samples, 16000)

	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	conn := h.dialer.lastConn()

	h.ctrl.SendMicBlock(samples, 16000)
	if got := conn.audioCount(); got != 1 {
		t.Fatalf("audio frames = %d, want 1", got)
	}

	// Stabilizing: frames are dropped.
	h.dialer.lastHandlers().OnClose(errors.New("transport lost"))
	h.waitStatus(t, StatusStabilizing)
	h.ctrl.SendMicBlock(samples, 16000)
	if got := conn.audioCount(); got != 1 {
		t.Fatalf("audio frames after drop = %d, want 1", got)
	}
}

func TestController_CameraFrameOnlyWhenActive(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	conn := h.dialer.lastConn()

	h.ctrl.SendCameraFrame([]byte{0xff, 0xd8})
	conn.mu.Lock()
	if len(conn.video) != 1 {
		t.Fatalf("video frames = %d, want 1", len(conn.video))
	}
	if conn.video[0].MimeType != audioio.MimeJPEG {
		t.Fatalf("mime = %q", conn.video[0].MimeType)
	}
	conn.mu.Unlock()
}

func TestController_ToolBatchAnsweredWhole(t *testing.T) {
	reg := tools.NewRegistry(
		tools.Tool{Name: "requestCamera", Handler: func(map[string]any) (string, error) {
			return "ok, permission dialog displayed", nil
		}},
	)
	h := newHarness(t, reg)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	conn := h.dialer.lastConn()

	h.dialer.lastHandlers().OnToolCalls([]tools.Call{
		{ID: "a", Name: "requestCamera"},
		{ID: "b", Name: "missing"},
	})

	deadline := time.After(2 * time.Second)
	for {
		conn.mu.Lock()
		n := len(conn.results)
		conn.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("tool responses never sent")
		case <-time.After(time.Millisecond):
		}
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	batch := conn.results[0]
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	if batch[0].CallID != "a" || batch[1].CallID != "b" {
		t.Fatalf("batch order = %q, %q", batch[0].CallID, batch[1].CallID)
	}
	if batch[1].Output != "Function not found" {
		t.Fatalf("missing tool output = %q", batch[1].Output)
	}
}

func TestController_TranscriptTurnBoundary(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	handlers := h.dialer.lastHandlers()

	handlers.OnInputTranscription("kya hai")
	handlers.OnInputTranscription("yeh")
	handlers.OnOutputTranscription("Yeh ek mug hai.")

	user, assistant := h.ctrl.Transcripts()
	if user != "kya hai yeh" {
		t.Fatalf("user = %q", user)
	}
	if assistant != "Yeh ek mug hai." {
		t.Fatalf("assistant = %q", assistant)
	}

	// The next user fragment starts a new turn and clears assistant text.
	handlers.OnInputTranscription("aur")
	user, assistant = h.ctrl.Transcripts()
	if assistant != "" {
		t.Fatalf("assistant after new turn = %q", assistant)
	}
	if user != "kya hai yeh aur" {
		t.Fatalf("user = %q", user)
	}
}

func TestController_InterruptFlushesAndClears(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	h.waitStatus(t, StatusActive)
	handlers := h.dialer.lastHandlers()

	payload := base64.StdEncoding.EncodeToString(make([]byte, 48000))
	handlers.OnAudio(payload)
	if !h.ctrl.Speaking() {
		t.Fatal("should be speaking after audio")
	}
	handlers.OnInputTranscription("hello")
	handlers.OnOutputTranscription("hi")

	handlers.OnInterrupted()
	if h.ctrl.Speaking() {
		t.Fatal("interrupt should stop speech")
	}
	user, assistant := h.ctrl.Transcripts()
	if user != "" || assistant != "" {
		t.Fatalf("transcripts after interrupt = %q, %q", user, assistant)
	}
}
