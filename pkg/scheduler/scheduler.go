// Package scheduler implements the render loop at the heart of pulsebar.
// One goroutine owns the producer registry and repeatedly ticks: it renders
// every producer in registration order, assigns positional names, and hands
// the resulting frame to each registered sink. Between ticks it blocks
// until either the configured interval elapses or a wake notification
// arrives from a producer's background goroutine.
package scheduler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

// DefaultInterval is the tick cadence when none is configured.
const DefaultInterval = 2 * time.Second

// Sink consumes one rendered frame per tick. Implementations decide their
// own deduplication policy: the bar-stream adapter emits every frame, the
// broadcast server suppresses unchanged payloads.
type Sink interface {
	Emit(frame []bar.Snapshot) error
}

// Scheduler owns the registry and drives the wake-or-timeout render loop.
type Scheduler struct {
	registry *bar.Registry
	wakeCh   *wake.Channel
	interval time.Duration
	sinks    []Sink
	logger   *slog.Logger
}

// New creates a scheduler. A zero or negative interval falls back to
// DefaultInterval. The wake channel is shared with producers so their
// background updates can force an out-of-cycle tick.
func New(registry *bar.Registry, wakeCh *wake.Channel, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry: registry,
		wakeCh:   wakeCh,
		interval: interval,
		logger:   logger,
	}
}

// AddSink registers a frame consumer. Not safe to call once Run started.
func (s *Scheduler) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// Run executes the render loop until ctx is cancelled. The first tick
// happens immediately. Renders are strictly serialized: two ticks never
// overlap, and multiple wake notifications arriving during one tick
// coalesce into a single follow-up tick.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		s.Tick()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.wakeCh.C():
		}
	}
}

// Tick renders one frame and delivers it to every sink. Producers that
// return nil are omitted; the remaining snapshots keep registration order
// and carry their producer's index as Name.
func (s *Scheduler) Tick() {
	frame := make([]bar.Snapshot, 0, s.registry.Len())
	for i, p := range s.registry.Producers() {
		snap := p.Render()
		if snap == nil {
			continue
		}
		out := *snap
		out.Name = strconv.Itoa(i)
		frame = append(frame, out)
	}
	for _, sink := range s.sinks {
		if err := sink.Emit(frame); err != nil {
			s.logger.Error("sink emit failed", "error", err)
		}
	}
}
