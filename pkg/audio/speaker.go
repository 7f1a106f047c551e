package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
)

// Speaker plays mono PCM16 through the default output device. It
// implements the playback sink driven by the scheduler.
type Speaker struct {
	actx *Context
	rate int

	mu     sync.Mutex
	device *malgo.Device
	queue  []int16
}

// NewSpeaker opens the output device at the given sample rate and starts
// it. The device idles on silence until samples are queued.
func NewSpeaker(actx *Context, rate int) (*Speaker, error) {
	s := &Speaker{actx: actx, rate: rate}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(rate)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(actx.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: s.onFrames,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("speaker start: %w", err)
	}

	s.device = device
	log.Info("speaker ready", "rate", rate)
	return s, nil
}

// Play queues samples for output, resampling to the device rate when
// they arrive at a different one.
func (s *Speaker) Play(samples []int16, rate int) {
	samples = audioio.Resample(samples, rate, s.rate)

	s.mu.Lock()
	s.queue = append(s.queue, samples...)
	s.mu.Unlock()
}

// Flush drops everything still queued. Called on barge-in so the
// assistant stops mid-buffer instead of finishing the handed-over audio.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// onFrames feeds the device from the queue, padding with silence when
// the queue runs dry.
func (s *Speaker) onFrames(pOutput, _ []byte, frameCount uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(frameCount)
	for i := 0; i < n; i++ {
		var sample int16
		if len(s.queue) > 0 {
			sample = s.queue[0]
			s.queue = s.queue[1:]
		}
		binary.LittleEndian.PutUint16(pOutput[i*2:], uint16(sample))
	}
}

// Close stops playback and releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return
	}
	s.device.Uninit()
	s.device = nil
	s.queue = nil
}
