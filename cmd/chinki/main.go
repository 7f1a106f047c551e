// Command chinki runs the Dr. Chinki live assistant: microphone and
// camera in, Gemini Live audio out, with a local dashboard for control.
package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"

	"github.com/chinkilabs/go-chinki/internal/config"
	"github.com/chinkilabs/go-chinki/internal/log"
	"github.com/chinkilabs/go-chinki/pkg/audio"
	"github.com/chinkilabs/go-chinki/pkg/audioio"
	"github.com/chinkilabs/go-chinki/pkg/camera"
	"github.com/chinkilabs/go-chinki/pkg/chinki"
)

const version = "dev"

func printBanner() {
	tpl := "{{ .Title \"CHINKI\" \"\" 0 }}\nVersion: " + version + "\n"
	banner.Init(os.Stdout, true, true, bytes.NewBufferString(tpl))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	printBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	actx, err := audio.NewContext()
	if err != nil {
		log.Error("audio backend", "error", err)
		os.Exit(1)
	}
	defer actx.Close()

	mic := audio.NewMic(actx, audioio.WireInputRate)
	speaker, err := audio.NewSpeaker(actx, audioio.WireOutputRate)
	if err != nil {
		log.Error("speaker", "error", err)
		os.Exit(1)
	}
	defer speaker.Close()

	app := chinki.New(cfg, mic, speaker, camera.OpenDefault)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error("run", "error", err)
		os.Exit(1)
	}
}
