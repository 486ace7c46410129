// Package diskfree provides the free-disk-space producer for a single
// mount point (the root filesystem by default). It turns red when less
// than 10% of the filesystem remains free.
package diskfree

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

const gib = 1024 * 1024 * 1024

// usageReader abstracts gopsutil's disk usage query for testability.
type usageReader func(ctx context.Context, path string) (*disk.UsageStat, error)

// Producer renders free space on one mount point.
type Producer struct {
	mount string
	read  usageReader
}

// New creates a disk producer for the given mount point; empty means "/".
func New(mount string) *Producer {
	if mount == "" {
		mount = "/"
	}
	return &Producer{mount: mount, read: disk.UsageWithContext}
}

// Render implements bar.Producer.
func (p *Producer) Render() *bar.Snapshot {
	usage, err := p.read(context.Background(), p.mount)
	if err != nil {
		return nil
	}

	freeGB := float64(usage.Free) / gib
	var full string
	if usage.Free > gib {
		full = fmt.Sprintf("%.2f GB", freeGB)
	} else {
		full = fmt.Sprintf("%d MB", usage.Free/(1024*1024))
	}
	snap := &bar.Snapshot{
		FullText:  full,
		ShortText: fmt.Sprintf("%.0f GB", freeGB),
	}
	// Warn below 10% free.
	if usage.Total > 0 && usage.Free < usage.Total/10 {
		snap.Color = bar.ColorAlert
	}
	return snap
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}
