// Package thermal provides the temperature producer. It picks the hottest
// reading reported by gopsutil's sensor enumeration, preferring the CPU
// package sensor when present, and turns red at or above the configured
// high threshold.
package thermal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// sensorReader abstracts gopsutil's sensor enumeration for testability.
type sensorReader func(ctx context.Context) ([]sensors.TemperatureStat, error)

// Config controls the thermal producer.
type Config struct {
	// HighCelsius turns the reading red at or above this temperature.
	// Zero falls back to the sensor's own high mark when it reports one.
	HighCelsius float64
}

// Producer renders the current CPU temperature.
type Producer struct {
	cfg  Config
	read sensorReader
}

// New creates a thermal producer backed by gopsutil.
func New(cfg Config) *Producer {
	return &Producer{cfg: cfg, read: sensors.TemperaturesWithContext}
}

// Render implements bar.Producer. A sensor failure renders the error
// snapshot; a machine without sensors is omitted from the frame.
func (p *Producer) Render() *bar.Snapshot {
	stats, err := p.read(context.Background())
	if err != nil {
		return bar.ErrorSnapshot()
	}
	if len(stats) == 0 {
		return nil
	}

	stat := pick(stats)
	snap := &bar.Snapshot{
		FullText: fmt.Sprintf("%.0f°C", stat.Temperature),
	}
	high := p.cfg.HighCelsius
	if high <= 0 {
		high = stat.High
	}
	if high > 0 && stat.Temperature >= high {
		snap.Color = bar.ColorAlert
	}
	return snap
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}

// pick prefers the coretemp package sensor, then falls back to the hottest
// reading.
func pick(stats []sensors.TemperatureStat) sensors.TemperatureStat {
	best := stats[0]
	for _, s := range stats {
		if strings.Contains(s.SensorKey, "coretemp") {
			return s
		}
		if s.Temperature > best.Temperature {
			best = s
		}
	}
	return best
}
