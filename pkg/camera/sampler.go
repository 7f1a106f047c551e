package camera

import (
	"sync"
	"time"

	"github.com/chinkilabs/go-chinki/internal/log"
)

// Sampler periodically grabs a frame and hands it to send. Ticks where the
// device has no frame ready are skipped silently; send failures are the
// session's problem, not the sampler's.
type Sampler struct {
	grabber  Grabber
	quality  int
	interval time.Duration
	send     func(jpeg []byte)

	mu   sync.Mutex
	stop chan struct{}
}

// NewSampler builds a sampler; call Start to begin ticking.
func NewSampler(grabber Grabber, quality int, interval time.Duration, send func(jpeg []byte)) *Sampler {
	return &Sampler{
		grabber:  grabber,
		quality:  quality,
		interval: interval,
		send:     send,
	}
}

// Start begins the periodic tick. No-op when already running.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	go s.run(s.stop)
}

// Stop cancels the periodic tick. No further frames are sent after Stop
// returns. Safe to call when not running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}

func (s *Sampler) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick grabs and forwards exactly one frame, or skips when none is ready.
func (s *Sampler) tick() {
	jpeg, err := s.grabber.Grab(s.quality)
	if err != nil {
		if err != ErrNoFrame {
			log.Debug("frame grab failed", "err", err)
		}
		return
	}
	s.send(jpeg)
}
