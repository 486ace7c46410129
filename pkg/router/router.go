// Package router dispatches inbound click events to producers. It consumes
// a line-oriented source (the host bar's stdin event stream, or a broadcast
// session's inbound side), parses each line as an event, resolves the
// event's name to a registry index, and invokes that producer's Click.
// Malformed input is logged and skipped; nothing terminates the loop short
// of EOF on the source.
package router

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// Router reads events from one source and dispatches them against one
// registry.
type Router struct {
	registry *bar.Registry
	logger   *slog.Logger
}

// New creates a router for the given registry.
func New(registry *bar.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger}
}

// Run reads r line by line until EOF. The bar's handshake line "[" and
// empty lines are skipped silently. Each remaining line is parsed as an
// event; parse failures, missing names, non-numeric names, and
// out-of-range indices are logged and discarded. Valid events dispatch
// Click synchronously on the target producer.
func (rt *Router) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || string(line) == "[" {
			continue
		}
		rt.Dispatch(line)
	}
	return scanner.Err()
}

// Dispatch handles a single event line.
func (rt *Router) Dispatch(line []byte) {
	ev, err := bar.ParseEvent(line)
	if err != nil {
		rt.logger.Warn("invalid event JSON", "line", string(line), "error", err)
		return
	}
	if ev.Name == "" {
		rt.logger.Warn("event without name")
		return
	}
	idx, err := strconv.Atoi(ev.Name)
	if err != nil || idx < 0 {
		rt.logger.Warn("invalid producer name in event", "name", ev.Name)
		return
	}
	p := rt.registry.At(idx)
	if p == nil {
		rt.logger.Warn("event for unknown producer", "name", ev.Name)
		return
	}
	p.Click(ev)
}
