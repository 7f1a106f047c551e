package audioio

import (
	"context"
	"sync"
)

// Source captures mono float32 audio blocks from a microphone or other
// input device. Implementations live with the device code (malgo in
// pkg/audio, Mock below for tests).
type Source interface {
	// Start begins capture. Blocks are delivered on Stream until Close.
	Start(ctx context.Context) error

	// Stream returns the channel of captured blocks.
	// The channel is closed when the source stops.
	Stream() <-chan []float32

	// SampleRate returns the device capture rate in Hz.
	SampleRate() int

	// Close stops capture and releases the device.
	Close() error
}

// MockSource is an in-memory Source for tests: blocks pushed with Push are
// delivered to the stream in order.
type MockSource struct {
	rate int

	mu      sync.Mutex
	ch      chan []float32
	started bool
	closed  bool
}

// NewMockSource creates a mock source reporting the given sample rate.
func NewMockSource(rate int) *MockSource {
	return &MockSource{
		rate: rate,
		ch:   make(chan []float32, 64),
	}
}

func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

func (m *MockSource) Stream() <-chan []float32 { return m.ch }

func (m *MockSource) SampleRate() int { return m.rate }

// Push delivers a block to the stream. Dropped when the source is closed.
func (m *MockSource) Push(block []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.ch <- block
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.ch)
	return nil
}
