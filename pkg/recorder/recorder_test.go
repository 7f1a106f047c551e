package recorder

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/youpy/go-wav"
)

func TestMixer_PrimaryDefinesTimeline(t *testing.T) {
	m := NewMixer(24000)
	m.PushPrimary([]int16{100, 200, 300}, 24000)

	if m.Len() != 3 {
		t.Fatalf("len = %d, want 3", m.Len())
	}
	got := m.Drain()
	want := []int16{100, 200, 300}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
	if m.Len() != 0 {
		t.Fatal("drain should reset the mixer")
	}
}

func TestMixer_SecondarySumsIntoTimeline(t *testing.T) {
	m := NewMixer(24000)
	m.PushPrimary([]int16{100, 100, 100}, 24000)
	m.PushSecondary([]int16{50, -200}, 24000)

	got := m.Drain()
	want := []int16{150, -100, 100}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMixer_SecondaryExtendsWhenAhead(t *testing.T) {
	m := NewMixer(24000)
	m.PushSecondary([]int16{10, 20}, 24000)
	m.PushPrimary([]int16{1}, 24000)

	got := m.Drain()
	want := []int16{11, 20}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMixer_ClampsOverflow(t *testing.T) {
	m := NewMixer(24000)
	m.PushPrimary([]int16{30000, -30000}, 24000)
	m.PushSecondary([]int16{30000, -30000}, 24000)

	got := m.Drain()
	if got[0] != 32767 {
		t.Errorf("positive overflow = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow = %d, want -32768", got[1])
	}
}

func TestMixer_ResamplesLanes(t *testing.T) {
	m := NewMixer(24000)
	// 48k input halves in length at 24k.
	m.PushPrimary(make([]int16, 480), 48000)
	if m.Len() != 240 {
		t.Fatalf("len = %d, want 240", m.Len())
	}
}

func TestRecorder_StartStop(t *testing.T) {
	r := New(24000)
	if r.Recording() {
		t.Fatal("should start idle")
	}

	r.Start()
	if !r.Recording() {
		t.Fatal("should be recording after start")
	}
	// Double start is a no-op.
	r.Start()

	r.FeedMic(make([]int16, 24000), 24000)
	r.FeedPlayback(make([]int16, 12000), 24000)

	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if r.Recording() {
		t.Fatal("should be idle after stop")
	}
	if rec.ID == "" {
		t.Error("recording should carry an id")
	}
	if rec.Duration != time.Second {
		t.Errorf("duration = %v, want 1s", rec.Duration)
	}

	reader := wav.NewReader(bytes.NewReader(rec.Data))
	format, err := reader.Format()
	if err != nil {
		t.Fatal(err)
	}
	if format.SampleRate != 24000 || format.NumChannels != 1 || format.BitsPerSample != 16 {
		t.Errorf("format = %+v", format)
	}
}

func TestRecorder_StopWithoutStart(t *testing.T) {
	r := New(24000)
	if _, err := r.Stop(); err == nil {
		t.Fatal("expected error stopping an idle recorder")
	}
}

func TestRecorder_FeedWhileIdleIsDropped(t *testing.T) {
	r := New(24000)
	r.FeedMic(make([]int16, 100), 24000)
	r.FeedPlayback(make([]int16, 100), 24000)

	r.Start()
	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if rec.Duration != 0 {
		t.Errorf("duration = %v, want 0", rec.Duration)
	}
}

func TestClip_FinishesWhenWindowFills(t *testing.T) {
	r := New(24000)

	done := make(chan Recording, 1)
	go func() {
		rec, err := r.Clip(context.Background(), 10*time.Millisecond)
		if err != nil {
			t.Error(err)
		}
		done <- rec
	}()

	// Feed more than the window needs; the clip truncates at the window.
	deadline := time.After(time.Second)
	for {
		r.FeedMic(make([]int16, 240), 24000)
		select {
		case rec := <-done:
			want := 240 // 10ms at 24kHz
			wantDur := time.Duration(want) * time.Second / 24000
			if rec.Duration != wantDur {
				t.Fatalf("duration = %v, want %v", rec.Duration, wantDur)
			}
			return
		case <-deadline:
			t.Fatal("clip never completed")
		default:
		}
	}
}

func TestClip_CancelReturnsPartial(t *testing.T) {
	r := New(24000)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		r.FeedMic(make([]int16, 120), 24000)
		cancel()
	}()

	rec, err := r.Clip(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Duration > 10*time.Millisecond {
		t.Errorf("duration = %v, want partial capture", rec.Duration)
	}
}

func TestEncodeWAV_RoundTrip(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatal(err)
	}

	reader := wav.NewReader(bytes.NewReader(data))
	got, err := reader.ReadSamples(uint32(len(samples)))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if v := reader.IntValue(got[i], 0); v != int(s) {
			t.Errorf("sample %d = %d, want %d", i, v, s)
		}
	}
}
