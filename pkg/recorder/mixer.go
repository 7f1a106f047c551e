package recorder

import (
	"sync"

	"github.com/chinkilabs/go-chinki/pkg/audioio"
)

// Mixer folds two sample lanes into one mono timeline: the primary lane
// (microphone) defines the clock and the timeline length, while the
// secondary lane (assistant playback) is summed in at its own cursor.
// Both lanes are resampled to the mixer rate on the way in.
type Mixer struct {
	rate int

	mu        sync.Mutex
	timeline  []int32
	primary   int // samples written by the primary lane
	secondary int // samples written by the secondary lane
}

// NewMixer creates a mixer producing mono samples at the given rate.
func NewMixer(rate int) *Mixer {
	return &Mixer{rate: rate}
}

// Rate returns the mixer's output sample rate.
func (m *Mixer) Rate() int {
	return m.rate
}

// PushPrimary appends microphone samples. The primary lane extends the
// timeline; everything up to the primary cursor is considered elapsed.
func (m *Mixer) PushPrimary(samples []int16, rate int) {
	samples = audioio.Resample(samples, rate, m.rate)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		if m.primary < len(m.timeline) {
			m.timeline[m.primary] += int32(s)
		} else {
			m.timeline = append(m.timeline, int32(s))
		}
		m.primary++
	}
}

// PushSecondary sums playback samples into the timeline at the secondary
// cursor, extending the timeline when playback runs ahead of the mic.
func (m *Mixer) PushSecondary(samples []int16, rate int) {
	samples = audioio.Resample(samples, rate, m.rate)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		if m.secondary < len(m.timeline) {
			m.timeline[m.secondary] += int32(s)
		} else {
			m.timeline = append(m.timeline, int32(s))
		}
		m.secondary++
	}
}

// Drain returns the mixed timeline accumulated so far and resets the
// mixer. Summed values are clamped to the int16 range.
func (m *Mixer) Drain() []int16 {
	m.mu.Lock()
	timeline := m.timeline
	m.timeline = nil
	m.primary = 0
	m.secondary = 0
	m.mu.Unlock()

	out := make([]int16, len(timeline))
	for i, v := range timeline {
		out[i] = clamp16(v)
	}
	return out
}

// Len reports the current timeline length in samples.
func (m *Mixer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timeline)
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
