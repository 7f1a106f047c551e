package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/chinkilabs/go-chinki/internal/log"
)

// micBlockSize is how many samples are batched per block handed to the
// session, roughly a quarter second at 16 kHz.
const micBlockSize = 4096

// Mic captures mono float32 samples from the default microphone. It
// implements the capture source consumed by the app's mic pump.
type Mic struct {
	actx *Context
	rate int

	mu      sync.Mutex
	device  *malgo.Device
	out     chan []float32
	pending []float32
}

// NewMic creates a capture source at the given sample rate.
func NewMic(actx *Context, rate int) *Mic {
	return &Mic{
		actx: actx,
		rate: rate,
		out:  make(chan []float32, 64),
	}
}

// SampleRate returns the capture rate.
func (m *Mic) SampleRate() int {
	return m.rate
}

// Stream returns the channel of captured blocks.
func (m *Mic) Stream() <-chan []float32 {
	return m.out
}

// Start opens the device and begins capturing.
func (m *Mic) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return fmt.Errorf("mic already started")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(m.rate)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(m.actx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: m.onFrames,
	})
	if err != nil {
		return fmt.Errorf("mic init: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("mic start: %w", err)
	}

	m.device = device
	log.Info("microphone capturing", "rate", m.rate)
	return nil
}

// onFrames batches raw device frames into fixed blocks. A full output
// channel drops the oldest pending block rather than stalling capture.
func (m *Mic) onFrames(_, pSample []byte, frameCount uint32) {
	if frameCount == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < int(frameCount); i++ {
		bits := binary.LittleEndian.Uint32(pSample[i*4:])
		m.pending = append(m.pending, math.Float32frombits(bits))
	}
	for len(m.pending) >= micBlockSize {
		block := make([]float32, micBlockSize)
		copy(block, m.pending[:micBlockSize])
		m.pending = append(m.pending[:0], m.pending[micBlockSize:]...)
		select {
		case m.out <- block:
		default:
			// Consumer is behind; this block is lost.
		}
	}
}

// Close stops capture and closes the stream.
func (m *Mic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	m.device.Uninit()
	m.device = nil
	close(m.out)
	return nil
}
