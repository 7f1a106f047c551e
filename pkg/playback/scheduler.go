// Package playback schedules gapless playout of streamed response audio.
//
// Payloads arrive as base64 PCM16 mono at the wire output rate, in order.
// Each decoded buffer is scheduled at max(now, cursor) against a monotonic
// output clock and the cursor advances by the buffer's duration, so
// consecutive buffers play back to back with no gap or overlap. A barge-in
// flush stops everything and resets the cursor to zero.
package playback

import (
	"sync"
	"time"

	"github.com/chinkilabs/go-chinki/pkg/audioio"
)

// Clock supplies the monotonic output time base.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Sink receives decoded samples when their scheduled start time arrives.
type Sink interface {
	Play(samples []int16, rate int)
}

// Flusher is implemented by sinks that buffer samples internally. On
// barge-in the scheduler flushes such sinks so audio that has already
// been handed over is cut off mid-buffer, not played to completion.
type Flusher interface {
	Flush()
}

// cancelable timer hook. The default uses time.AfterFunc; tests substitute
// one that fires on demand.
type afterFunc func(d time.Duration, f func()) (stop func() bool)

func stdAfter(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

type unit struct {
	samples  []int16
	duration float64
	stopPlay func() bool
	stopEnd  func() bool
}

// Scheduler owns the playback queue for one session. It is recreated fresh
// on every reconnect so a stale cursor can never leak into a new session.
type Scheduler struct {
	rate  int
	clock Clock
	after afterFunc

	mu      sync.Mutex
	origin  time.Time
	cursor  float64
	active  map[*unit]struct{}
	closed  bool
	sink    Sink
	tap     Sink
	onIdle  func()
	started bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock substitutes the output clock (tests).
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithAfter substitutes the timer hook (tests).
func WithAfter(after func(d time.Duration, f func()) func() bool) Option {
	return func(s *Scheduler) { s.after = after }
}

// WithTap mirrors every played buffer into an additional sink, used by the
// session recorder to capture the assistant's voice.
func WithTap(tap Sink) Option {
	return func(s *Scheduler) { s.tap = tap }
}

// New creates a scheduler playing into sink at the given sample rate.
func New(rate int, sink Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		rate:   rate,
		clock:  systemClock{},
		after:  stdAfter,
		active: make(map[*unit]struct{}),
		sink:   sink,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.origin = s.clock.Now()
	return s
}

// OnIdle sets the callback fired when the last pending unit finishes.
// Drives the speaking indicator.
func (s *Scheduler) OnIdle(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onIdle = fn
}

// now returns seconds elapsed on the output clock.
func (s *Scheduler) now() float64 {
	return s.clock.Now().Sub(s.origin).Seconds()
}

// Enqueue decodes a base64 PCM16 payload and schedules it after everything
// already queued. Malformed payloads and payloads arriving after Close are
// dropped silently; the session loop must never unwind over a bad chunk.
func (s *Scheduler) Enqueue(payload string) {
	samples := audioio.DecodePCM16(payload)
	if samples == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := s.now()
	start := s.cursor
	if now > start {
		start = now
	}
	duration := float64(len(samples)) / float64(s.rate)
	s.cursor = start + duration

	u := &unit{samples: samples, duration: duration}
	s.active[u] = struct{}{}

	delay := time.Duration((start - now) * float64(time.Second))
	u.stopPlay = s.after(delay, func() { s.play(u) })
	u.stopEnd = s.after(delay+time.Duration(duration*float64(time.Second)), func() { s.finish(u) })
	s.mu.Unlock()
}

func (s *Scheduler) play(u *unit) {
	s.mu.Lock()
	if _, ok := s.active[u]; !ok {
		s.mu.Unlock()
		return
	}
	sink, tap := s.sink, s.tap
	s.mu.Unlock()

	if sink != nil {
		sink.Play(u.samples, s.rate)
	}
	if tap != nil {
		tap.Play(u.samples, s.rate)
	}
}

func (s *Scheduler) finish(u *unit) {
	s.mu.Lock()
	if _, ok := s.active[u]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, u)
	idle := len(s.active) == 0
	onIdle := s.onIdle
	s.mu.Unlock()

	if idle && onIdle != nil {
		onIdle()
	}
}

// Flush stops every pending unit and resets the cursor to zero so the next
// turn starts immediately instead of waiting out stale scheduled time.
// Sinks that buffer are flushed too, cutting off units already started.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	for u := range s.active {
		if u.stopPlay != nil {
			u.stopPlay()
		}
		if u.stopEnd != nil {
			u.stopEnd()
		}
		delete(s.active, u)
	}
	s.cursor = 0
	sink := s.sink
	s.mu.Unlock()

	if f, ok := sink.(Flusher); ok {
		f.Flush()
	}
}

// Close flushes and marks the scheduler dead; further payloads are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush()
}

// Pending returns the number of scheduled-but-unfinished units.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the next start time in output-clock seconds.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
