// Package camera owns the camera capture resource and the periodic frame
// sampler that feeds still frames to a live session.
//
// The camera is a singly-owned hardware handle, independent of session
// lifetime: a session reconnect leaves it untouched, and only the explicit
// teardown path stops the device. Activation and deactivation run explicit
// entry/exit actions (acquire device + start sampler, stop sampler + release
// device) so hardware state is never inferred from a UI flag.
package camera

import (
	"errors"
	"sync"
	"time"

	"github.com/chinkilabs/go-chinki/internal/log"
)

// Common errors.
var (
	ErrNoFrame       = errors.New("camera: no frame ready")
	ErrNotActive     = errors.New("camera: not active")
	ErrAlreadyActive = errors.New("camera: already active")
)

// DefaultJPEGQuality matches the quality tier used for streamed frames.
const DefaultJPEGQuality = 50

// StillJPEGQuality is the higher tier used for one-shot memory captures.
const StillJPEGQuality = 80

// Grabber captures one JPEG-encoded frame from a video device.
// ErrNoFrame means the device has no decoded frame yet; callers skip and
// try again on the next tick.
type Grabber interface {
	Grab(quality int) ([]byte, error)
	Close() error
}

// Camera is the capture state machine. Off until Start, Active until Stop.
type Camera struct {
	open     func() (Grabber, error)
	interval time.Duration
	quality  int

	mu      sync.Mutex
	grabber Grabber
	sampler *Sampler
}

// Config tunes the camera and its frame sampler.
type Config struct {
	// Interval between sampled frames. Default 1s.
	Interval time.Duration

	// Quality is the JPEG quality tier for streamed frames. Default 50.
	Quality int
}

// New creates a camera over the given device opener (OpenDefault for real
// hardware, a fake for tests).
func New(open func() (Grabber, error), cfg Config) *Camera {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Quality <= 0 {
		cfg.Quality = DefaultJPEGQuality
	}
	return &Camera{
		open:     open,
		interval: cfg.Interval,
		quality:  cfg.Quality,
	}
}

// Active reports whether the camera hardware is currently held.
func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabber != nil
}

// Start enters the active state: acquires the device and begins sampling
// frames into send at the configured cadence.
func (c *Camera) Start(send func(jpeg []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.grabber != nil {
		return ErrAlreadyActive
	}

	grabber, err := c.open()
	if err != nil {
		return err
	}
	c.grabber = grabber
	c.sampler = NewSampler(grabber, c.quality, c.interval, send)
	c.sampler.Start()

	log.Info("camera active", "interval", c.interval, "quality", c.quality)
	return nil
}

// Stop exits the active state: cancels the sampler tick, then releases the
// device. Safe to call when already off.
func (c *Camera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sampler != nil {
		c.sampler.Stop()
		c.sampler = nil
	}
	if c.grabber != nil {
		if err := c.grabber.Close(); err != nil {
			log.Warn("camera release", "err", err)
		}
		c.grabber = nil
		log.Info("camera stopped")
	}
}

// Still captures one frame at the still-capture quality tier, for memory
// records. Returns ErrNotActive when the camera is off.
func (c *Camera) Still() ([]byte, error) {
	c.mu.Lock()
	grabber := c.grabber
	c.mu.Unlock()

	if grabber == nil {
		return nil, ErrNotActive
	}
	return grabber.Grab(StillJPEGQuality)
}
