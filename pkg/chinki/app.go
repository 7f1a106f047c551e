// Package chinki is the application layer: it wires the microphone, the
// camera, the playback scheduler, the session controller, the recorder,
// the memory backend and the dashboard into one running assistant.
package chinki

import (
	"context"
	"sync"
	"time"

	"github.com/chinkilabs/go-chinki/internal/config"
	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
	"github.com/chinkilabs/go-chinki/pkg/camera"
	"github.com/chinkilabs/go-chinki/pkg/live"
	"github.com/chinkilabs/go-chinki/pkg/memorystore"
	"github.com/chinkilabs/go-chinki/pkg/playback"
	"github.com/chinkilabs/go-chinki/pkg/recorder"
	"github.com/chinkilabs/go-chinki/pkg/web"
)

// App is the assembled assistant.
type App struct {
	cfg config.Config

	source  audioio.Source
	speaker playback.Sink

	camera   *camera.Camera
	recorder *recorder.Recorder
	memory   *memorystore.Client
	session  *live.Controller
	web      *web.Server

	captureWindow time.Duration

	mu           sync.Mutex
	cameraPrompt bool
}

// New assembles the app. source is the microphone, speaker plays the
// assistant's voice, openCamera acquires the webcam on demand.
func New(cfg config.Config, source audioio.Source, speaker playback.Sink, openCamera func() (camera.Grabber, error)) *App {
	a := &App{
		cfg:           cfg,
		source:        source,
		speaker:       speaker,
		captureWindow: cfg.CaptureWindow,
	}
	if a.captureWindow <= 0 {
		a.captureWindow = recorder.DefaultClipWindow
	}

	a.camera = camera.New(openCamera, camera.Config{
		Interval: cfg.FrameInterval,
		Quality:  cfg.JPEGQuality,
	})
	a.recorder = recorder.New(recorder.DefaultRate)
	a.memory = memorystore.New(cfg.MemoryStoreURL)

	registry := a.buildRegistry()
	dialer := func(ctx context.Context, h live.Handlers) (live.Conn, error) {
		return live.Dial(ctx, live.ClientConfig{
			APIKey:       cfg.GoogleAPIKey,
			Model:        cfg.Model,
			Voice:        cfg.Voice,
			SystemPrompt: SystemPrompt,
			Tools:        registry.Declarations(),
		}, h)
	}

	// Each connection gets a fresh scheduler; played audio is mirrored
	// into the recorder so session recordings carry both sides.
	newScheduler := func() *playback.Scheduler {
		return playback.New(audioio.WireOutputRate, a.speaker,
			playback.WithTap(playbackTap{a.recorder}))
	}

	a.session = live.NewController(dialer, registry, newScheduler,
		live.WithMaxRetries(cfg.MaxRetries))

	a.web = web.NewServer(cfg.WebPort, web.Controls{
		SessionStart: func() error { return a.session.Start(context.Background()) },
		SessionStop:  a.StopSession,
		Reconnect:    a.session.ManualReconnect,

		CameraApprove: a.ApproveCamera,
		CameraStop:    a.StopCamera,

		RecordStart: a.recorder.Start,
		RecordStop: func() (string, []byte, error) {
			rec, err := a.recorder.Stop()
			if err != nil {
				return "", nil, err
			}
			a.syncWebState()
			return rec.ID, rec.Data, nil
		},
	})

	a.session.OnStatus(func(live.Status) { a.syncWebState() })
	a.session.OnSpeaking(func(bool) { a.syncWebState() })
	a.session.OnTranscript(func(string, string) { a.syncWebState() })

	return a
}

// Run starts everything and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.web.StartAsync()

	if err := a.source.Start(ctx); err != nil {
		return err
	}
	go a.pumpMic(ctx)

	if err := a.session.Start(ctx); err != nil {
		return err
	}
	log.Info("chinki running", "dashboard", "http://localhost:"+a.cfg.WebPort)

	<-ctx.Done()
	a.Shutdown()
	return nil
}

// Shutdown tears the app down in dependency order: session first, then
// hardware, then the dashboard.
func (a *App) Shutdown() {
	a.session.Close()
	a.StopCamera()
	a.source.Close()
	if a.recorder.Recording() {
		if rec, err := a.recorder.Stop(); err == nil {
			log.Info("recording finalized on shutdown", "id", rec.ID, "duration", rec.Duration)
		}
	}
	a.web.Shutdown()
	log.Info("chinki stopped")
}

// pumpMic forwards microphone blocks to the session and the recorder.
// The pump runs for the life of the app; the session decides per block
// whether it can accept audio.
func (a *App) pumpMic(ctx context.Context) {
	rate := a.source.SampleRate()
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-a.source.Stream():
			if !ok {
				return
			}
			a.session.SendMicBlock(block, rate)
			a.recorder.FeedMic(audioio.QuantizePCM16(block), rate)
		}
	}
}

// StopSession is the explicit close from the dashboard: the session and
// the camera both shut down. Only transport drops leave the camera
// running, so a mid-call blip never makes video flicker off.
func (a *App) StopSession() {
	a.session.Close()
	a.StopCamera()
}

// ApproveCamera is the user granting the permission prompt: the camera
// starts and its frames begin streaming into the session.
func (a *App) ApproveCamera() error {
	err := a.camera.Start(a.session.SendCameraFrame)
	if err != nil {
		return err
	}
	a.setCameraPrompt(false)
	a.syncWebState()
	return nil
}

// StopCamera releases the camera. Safe when already off.
func (a *App) StopCamera() {
	a.camera.Stop()
	a.setCameraPrompt(false)
	a.syncWebState()
}

func (a *App) setCameraPrompt(active bool) {
	a.mu.Lock()
	changed := a.cameraPrompt != active
	a.cameraPrompt = active
	a.mu.Unlock()
	if changed {
		a.syncWebState()
	}
}

func (a *App) cameraPromptActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cameraPrompt
}

// syncWebState pushes a full snapshot to the dashboard.
func (a *App) syncWebState() {
	user, assistant := a.session.Transcripts()
	a.web.UpdateState(func(s *web.State) {
		s.Status = string(a.session.Status())
		s.Speaking = a.session.Speaking()
		s.CameraActive = a.camera.Active()
		s.CameraPrompt = a.cameraPromptActive()
		s.Recording = a.recorder.Recording()
		s.UserTranscript = user
		s.AssistantTranscript = assistant
	})
}

// playbackTap mirrors scheduled audio into the recorder.
type playbackTap struct {
	rec *recorder.Recorder
}

func (t playbackTap) Play(samples []int16, rate int) {
	t.rec.FeedPlayback(samples, rate)
}
