// pulsebar renders a status line for i3bar-compatible bars.
//
// It assembles the configured producers into an ordered registry, runs the
// wake-or-timeout render loop, and streams frames to stdout using the bar
// protocol (header, then an unterminated JSON array of frames). Click
// events arrive on stdin and are dispatched back to producers by
// positional index.
//
// Usage:
//
//	pulsebar [flags]
//
// Flags:
//
//	-config string  Path to configuration file (default: XDG search path)
//	-verbose        Enable verbose logging
//	-version        Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/frontend"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers"
	"gitlab.com/tinyland/lab/pulsebar/pkg/router"
	"gitlab.com/tinyland/lab/pulsebar/pkg/scheduler"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pulsebar %s (%s)\n", version, commit)
		os.Exit(0)
	}

	// Stdout carries the bar stream, so logging goes to stderr only.
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	wakeCh := wake.New()
	registry, err := producers.BuildRegistry(cfg, wakeCh, logger)
	if err != nil {
		logger.Error("failed to build producers", "error", err)
		os.Exit(1)
	}

	stream := frontend.NewBarStream(os.Stdout, cfg.Bar.StopSignal, cfg.Bar.ContSignal)
	if err := stream.WriteHeader(); err != nil {
		logger.Error("failed to write protocol header", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(registry, wakeCh, cfg.Bar.Interval.Duration, logger)
	sched.AddSink(stream)

	// Click events from the bar arrive on stdin.
	go func() {
		if err := router.New(registry, logger).Run(os.Stdin); err != nil {
			logger.Warn("event input closed", "error", err)
		}
	}()

	logger.Info("starting pulsebar",
		"producers", len(cfg.Bar.Producers),
		"interval", cfg.Bar.Interval.Duration,
	)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("render loop failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
