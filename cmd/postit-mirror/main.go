package main

import (
	"flag"
	"fmt"
	"os"

	"postit-mirror/internal/app"
	"postit-mirror/internal/config"
	"postit-mirror/internal/logger"

	"github.com/mattn/go-isatty"
)

func main() {
	configPath := flag.String("config", os.Getenv("POSTIT_CONFIG"), "path to a YAML or TOML config file")
	stream := flag.String("stream", "", "stream kind override: depth or color")
	source := flag.String("source", "", "frame source override: synthetic or capture")
	device := flag.Int("device", -1, "capture device index override")
	headless := flag.Bool("headless", false, "run without a window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	if *stream != "" {
		cfg.Stream.Kind = *stream
	}
	if *source != "" {
		cfg.Stream.Source = *source
	}
	if *device >= 0 {
		cfg.Stream.Device = *device
	}
	if *headless {
		cfg.Display.Headless = true
	}

	level := logger.LevelFromEnv(cfg.LogLevel)
	var log logger.Logger
	if isatty.IsTerminal(os.Stdout.Fd()) {
		log = logger.NewConsoleLogger(level)
	} else {
		log = logger.NewZerolog(os.Stdout, level)
	}

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		log.Error("Main", err, map[string]interface{}{"config": *configPath})
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		log.Error("Main", err, nil)
		os.Exit(1)
	}
}
