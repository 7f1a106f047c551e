package camera

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeGrabber replays a fixed sequence of frames and errors.
type fakeGrabber struct {
	mu      sync.Mutex
	frames  [][]byte
	errs    []error
	idx     int
	grabs   []int
	closed  bool
	lastErr error
}

func (f *fakeGrabber) Grab(quality int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabs = append(f.grabs, quality)
	if f.idx < len(f.errs) && f.errs[f.idx] != nil {
		err := f.errs[f.idx]
		f.idx++
		return nil, err
	}
	if f.idx < len(f.frames) {
		frame := f.frames[f.idx]
		f.idx++
		return frame, nil
	}
	return nil, ErrNoFrame
}

func (f *fakeGrabber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.lastErr
}

func (f *fakeGrabber) qualities() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.grabs))
	copy(out, f.grabs)
	return out
}

func TestCamera_StartStop(t *testing.T) {
	fake := &fakeGrabber{}
	cam := New(func() (Grabber, error) { return fake, nil }, Config{Interval: time.Hour})

	if cam.Active() {
		t.Fatal("camera should start off")
	}
	if err := cam.Start(func([]byte) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !cam.Active() {
		t.Fatal("camera should be active after start")
	}
	if err := cam.Start(func([]byte) {}); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start: got %v, want ErrAlreadyActive", err)
	}

	cam.Stop()
	if cam.Active() {
		t.Fatal("camera should be off after stop")
	}
	if !fake.closed {
		t.Fatal("stop should release the device")
	}

	// Stop when already off is a no-op.
	cam.Stop()
}

func TestCamera_StartOpenError(t *testing.T) {
	boom := errors.New("device busy")
	cam := New(func() (Grabber, error) { return nil, boom }, Config{})

	if err := cam.Start(func([]byte) {}); !errors.Is(err, boom) {
		t.Fatalf("start: got %v, want %v", err, boom)
	}
	if cam.Active() {
		t.Fatal("failed start should leave camera off")
	}
}

func TestCamera_StillRequiresActive(t *testing.T) {
	fake := &fakeGrabber{frames: [][]byte{[]byte("jpeg")}}
	cam := New(func() (Grabber, error) { return fake, nil }, Config{Interval: time.Hour})

	if _, err := cam.Still(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("still while off: got %v, want ErrNotActive", err)
	}

	if err := cam.Start(func([]byte) {}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cam.Stop()

	frame, err := cam.Still()
	if err != nil {
		t.Fatalf("still: %v", err)
	}
	if string(frame) != "jpeg" {
		t.Fatalf("still frame = %q", frame)
	}

	quals := fake.qualities()
	if len(quals) != 1 || quals[0] != StillJPEGQuality {
		t.Fatalf("still quality = %v, want [%d]", quals, StillJPEGQuality)
	}
}

func TestSampler_SkipsMissingFrames(t *testing.T) {
	fake := &fakeGrabber{
		frames: [][]byte{nil, []byte("a"), nil, []byte("b")},
		errs:   []error{ErrNoFrame, nil, ErrNoFrame, nil},
	}

	var mu sync.Mutex
	var got []string
	send := func(jpeg []byte) {
		mu.Lock()
		got = append(got, string(jpeg))
		mu.Unlock()
	}

	s := NewSampler(fake, DefaultJPEGQuality, time.Millisecond, send)
	s.Start()

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for frames, got %d", n)
		case <-time.After(time.Millisecond):
		}
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("frames = %v, want [a b ...]", got)
	}
}

func TestSampler_StopHaltsTicks(t *testing.T) {
	fake := &fakeGrabber{}
	var mu sync.Mutex
	sent := 0
	s := NewSampler(fake, DefaultJPEGQuality, time.Millisecond, func([]byte) {
		mu.Lock()
		sent++
		mu.Unlock()
	})

	s.Start()
	s.Stop()
	// Stop again is safe.
	s.Stop()

	time.Sleep(20 * time.Millisecond)
	before := len(fake.qualities())
	time.Sleep(20 * time.Millisecond)
	if after := len(fake.qualities()); after != before {
		t.Fatalf("sampler kept ticking after stop: %d -> %d", before, after)
	}
}
