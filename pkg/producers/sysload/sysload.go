// Package sysload provides the load-average producer. It reads the
// 1-minute load via gopsutil and turns red when the per-CPU load exceeds
// 1.0.
package sysload

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/load"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// loadReader abstracts gopsutil's load query for testability.
type loadReader func(ctx context.Context) (*load.AvgStat, error)

// Producer renders the 1-minute load average.
type Producer struct {
	read loadReader
	cpus int
}

// New creates a load producer backed by gopsutil.
func New() *Producer {
	return &Producer{
		read: load.AvgWithContext,
		cpus: runtime.NumCPU(),
	}
}

// Render implements bar.Producer. A read failure renders the error
// snapshot rather than omitting the producer, so a broken sensor is
// visible on the bar.
func (p *Producer) Render() *bar.Snapshot {
	avg, err := p.read(context.Background())
	if err != nil {
		return bar.ErrorSnapshot()
	}
	snap := &bar.Snapshot{
		FullText: fmt.Sprintf("%.2f", avg.Load1),
	}
	if p.cpus > 0 && avg.Load1/float64(p.cpus) > 1.0 {
		snap.Color = bar.ColorAlert
	}
	return snap
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}
