// Package memory provides the available-memory producer. It reads virtual
// memory statistics via gopsutil and turns red when less than 10% of
// physical memory remains available.
package memory

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

const gib = 1024 * 1024 * 1024

// memReader abstracts gopsutil's memory query for testability.
type memReader func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// Producer renders available memory.
type Producer struct {
	read memReader
}

// New creates a memory producer backed by gopsutil.
func New() *Producer {
	return &Producer{read: mem.VirtualMemoryWithContext}
}

// Render implements bar.Producer.
func (p *Producer) Render() *bar.Snapshot {
	vm, err := p.read(context.Background())
	if err != nil {
		return nil
	}

	availableGB := float64(vm.Available) / gib
	snap := &bar.Snapshot{
		FullText:  formatBytes(vm.Available),
		ShortText: fmt.Sprintf("%.2f GB", availableGB),
	}
	// Warn below 10% available.
	if vm.Total > 0 && vm.Available < vm.Total/10 {
		snap.Color = bar.ColorAlert
	}
	return snap
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}

// formatBytes renders GB with two decimals above 1 GiB, whole MB below.
func formatBytes(b uint64) string {
	if b > gib {
		return fmt.Sprintf("%.2f GB", float64(b)/gib)
	}
	return fmt.Sprintf("%d MB", b/(1024*1024))
}
