// pulsebar-server publishes one producer's output over a Unix socket.
//
// The named producer renders on a dedicated tick; each changed payload is
// fanned out to every connected client, late joiners immediately receive
// the current payload, and client events are dispatched back into the
// producer. The socket lives at $XDG_RUNTIME_DIR/pulsebar/<name>; a
// missing runtime directory is a fatal startup error.
//
// Usage:
//
//	pulsebar-server [flags] <producer>
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
	"gitlab.com/tinyland/lab/pulsebar/pkg/broadcast"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers"
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
		fmt.Printf("pulsebar-server %s (%s)\n", version, commit)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pulsebar-server [flags] <producer>")
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

	socketPath, err := broadcast.SocketPath(name)
	if err != nil {
		logger.Error("cannot resolve socket path", "error", err)
		os.Exit(1)
	}

	srv := broadcast.NewServer(socketPath, producer, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Stop()

	sched := scheduler.New(bar.NewRegistry(producer), wakeCh, cfg.Bar.Interval.Duration, logger)
	sched.AddSink(srv)

	logger.Info("starting pulsebar-server", "producer", name, "socket", socketPath)
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
