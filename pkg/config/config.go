package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Bar       BarConfig       `toml:"bar"`
	Thermal   ThermalConfig   `toml:"thermal"`
	Timesheet TimesheetConfig `toml:"timesheet"`
}

// BarConfig controls the render loop and producer line-up.
type BarConfig struct {
	// Interval is the tick cadence of the scheduler.
	Interval Duration `toml:"interval"`

	// Producers lists enabled producers in display order. Valid entries:
	// clock, sysload, memory, diskfree, thermal, battery, netroute,
	// notify, timesheet, and "remote:<socket>" for a broadcast client.
	Producers []string `toml:"producers"`

	// StopSignal and ContSignal are advertised in the bar-stream header.
	StopSignal int `toml:"stop_signal"`
	ContSignal int `toml:"cont_signal"`
}

// ThermalConfig controls the temperature producer.
type ThermalConfig struct {
	// HighCelsius is the threshold at which the reading turns red.
	// Zero means "use the sensor's own high mark, or never".
	HighCelsius float64 `toml:"high_celsius"`
}

// TimesheetConfig holds Kimai API access for the timesheet producer. The
// producer is disabled when BaseURL or Token is empty.
type TimesheetConfig struct {
	BaseURL          string   `toml:"base_url"`
	Token            string   `toml:"token"`
	ProjectID        int64    `toml:"project_id"`
	ActivityID       int64    `toml:"activity_id"`
	NotifyDailyHours int      `toml:"notify_daily_hours"`
	PollInterval     Duration `toml:"poll_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bar: BarConfig{
			Interval:   Duration{2 * time.Second},
			Producers:  []string{"battery", "netroute", "sysload", "thermal", "clock"},
			StopSignal: 10,
			ContSignal: 12,
		},
		Timesheet: TimesheetConfig{
			PollInterval: Duration{5 * time.Minute},
		},
	}
}

// Validate checks the configuration for values the binaries cannot run
// with.
func (c *Config) Validate() error {
	if c.Bar.Interval.Duration < 0 {
		return fmt.Errorf("bar.interval must not be negative")
	}
	if len(c.Bar.Producers) == 0 {
		return fmt.Errorf("bar.producers must name at least one producer")
	}
	if c.Thermal.HighCelsius < 0 {
		return fmt.Errorf("thermal.high_celsius must not be negative")
	}
	return nil
}
