// pulsebar-waybar renders one producer as a waybar custom module.
//
// Output is one JSON object per line with waybar's text/tooltip keys;
// identical consecutive lines are suppressed. Waybar cannot deliver click
// events on stdin for exec modules, so clicks arrive as POSIX realtime
// signals instead: SIGRTMIN+1 left, SIGRTMIN+2 middle, SIGRTMIN+3 right.
//
// Usage:
//
//	pulsebar-waybar [flags] <producer>
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

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/frontend"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers"
	"gitlab.com/tinyland/lab/pulsebar/pkg/scheduler"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// sigrtmin is SIGRTMIN on Linux. The realtime click signals are
// SIGRTMIN+1 through SIGRTMIN+3.
const sigrtmin = 34

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pulsebar-waybar %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pulsebar-waybar [flags] <producer>")
		os.Exit(2)
	}
	name := flag.Arg(0)

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
	producer, err := producers.Build(name, cfg, wakeCh, logger)
	if err != nil {
		logger.Error("failed to build producer", "producer", name, "error", err)
		os.Exit(1)
	}

	// Clicks arrive as realtime signals; a signal wakes the scheduler so
	// the toggled state shows immediately.
	clickChan := make(chan os.Signal, 4)
	signal.Notify(clickChan,
		syscall.Signal(sigrtmin+1),
		syscall.Signal(sigrtmin+2),
		syscall.Signal(sigrtmin+3),
	)
	go func() {
		for sig := range clickChan {
			button := int(sig.(syscall.Signal)) - sigrtmin
			producer.Click(bar.Event{Button: button})
			wakeCh.Notify()
		}
	}()

	sched := scheduler.New(bar.NewRegistry(producer), wakeCh, cfg.Bar.Interval.Duration, logger)
	sched.AddSink(frontend.NewWaybar(os.Stdout))

	logger.Info("starting pulsebar-waybar", "producer", name)
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
