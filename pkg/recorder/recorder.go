// Package recorder captures session audio: a long-form recording that
// mixes the user's microphone with the assistant's playback, and short
// mic-only clips attached to saved memories.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/youpy/go-wav"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
)

// DefaultRate is the sample rate recordings are written at.
const DefaultRate = 24000

// DefaultClipWindow is how long a memory clip listens to the microphone.
const DefaultClipWindow = 3 * time.Second

// Recording is a finished WAV capture.
type Recording struct {
	ID       string
	Data     []byte
	Duration time.Duration
}

// Recorder accumulates session audio into a mixed mono WAV. It is fed
// from two taps: FeedMic for raw microphone blocks and FeedPlayback for
// samples handed to the speaker.
type Recorder struct {
	rate int

	mu        sync.Mutex
	mixer     *Mixer
	recording bool
	startedAt time.Time
	clips     []*clip
}

type clip struct {
	rate int
	want int
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	samples []int16
}

// New creates a recorder writing at rate (DefaultRate when zero).
func New(rate int) *Recorder {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Recorder{rate: rate}
}

// Recording reports whether a long-form capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins a long-form capture. Starting twice is a warned no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		log.Warn("recording already in progress")
		return
	}
	r.mixer = NewMixer(r.rate)
	r.recording = true
	r.startedAt = time.Now()
	log.Info("recording started", "rate", r.rate)
}

// Stop finalizes the capture and returns the WAV. Stopping when idle
// returns an error rather than an empty file.
func (r *Recorder) Stop() (Recording, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Recording{}, fmt.Errorf("no recording in progress")
	}
	mixer := r.mixer
	started := r.startedAt
	r.mixer = nil
	r.recording = false
	r.mu.Unlock()

	samples := mixer.Drain()
	data, err := EncodeWAV(samples, r.rate)
	if err != nil {
		return Recording{}, err
	}

	rec := Recording{
		ID:       uuid.NewString(),
		Data:     data,
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(r.rate),
	}
	log.Info("recording stopped", "id", rec.ID, "duration", rec.Duration, "elapsed", time.Since(started).Round(time.Millisecond))
	return rec, nil
}

// FeedMic adds a block of microphone samples at the given rate. It feeds
// the long-form mix and any clip captures in flight.
func (r *Recorder) FeedMic(samples []int16, rate int) {
	r.mu.Lock()
	mixer := r.mixer
	clips := r.clips
	r.mu.Unlock()

	if mixer != nil {
		mixer.PushPrimary(samples, rate)
	}
	for _, c := range clips {
		c.feed(samples, rate)
	}
}

// FeedPlayback adds a block of assistant playback samples at the given
// rate to the long-form mix.
func (r *Recorder) FeedPlayback(samples []int16, rate int) {
	r.mu.Lock()
	mixer := r.mixer
	r.mu.Unlock()

	if mixer != nil {
		mixer.PushSecondary(samples, rate)
	}
}

// Clip records the microphone for the given window and returns it as a
// WAV. It blocks until the window elapses or ctx is cancelled, whichever
// comes first; a cancelled clip returns what was captured so far.
func (r *Recorder) Clip(ctx context.Context, window time.Duration) (Recording, error) {
	if window <= 0 {
		window = DefaultClipWindow
	}

	c := &clip{
		rate: r.rate,
		want: int(float64(r.rate) * window.Seconds()),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.clips = append(r.clips, c)
	r.mu.Unlock()

	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	r.mu.Lock()
	for i, other := range r.clips {
		if other == c {
			r.clips = append(r.clips[:i], r.clips[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	samples := c.take()
	data, err := EncodeWAV(samples, r.rate)
	if err != nil {
		return Recording{}, err
	}
	return Recording{
		ID:       uuid.NewString(),
		Data:     data,
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(r.rate),
	}, nil
}

func (c *clip) feed(samples []int16, rate int) {
	samples = audioio.Resample(samples, rate, c.rate)

	c.mu.Lock()
	room := c.want - len(c.samples)
	if room <= 0 {
		c.mu.Unlock()
		return
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	c.samples = append(c.samples, samples...)
	full := len(c.samples) >= c.want
	c.mu.Unlock()

	if full {
		c.once.Do(func() { close(c.done) })
	}
}

func (c *clip) take() []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.samples
	c.samples = nil
	return out
}

// EncodeWAV renders mono 16-bit PCM samples as a WAV file.
func EncodeWAV(samples []int16, rate int) ([]byte, error) {
	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(len(samples)), 1, uint32(rate), 16)

	wavSamples := make([]wav.Sample, len(samples))
	for i, s := range samples {
		wavSamples[i] = wav.Sample{Values: [2]int{int(s), 0}}
	}
	if err := writer.WriteSamples(wavSamples); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	return buf.Bytes(), nil
}
