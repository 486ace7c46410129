// Package producers assembles the configured producer line-up. Each
// producer lives in its own sub-package; this package maps config names to
// constructors and builds the ordered registry the scheduler owns.
package producers

import (
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/broadcast"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/clock"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/diskfree"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/ipaddr"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/memory"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/netroute"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/notify"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/power"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/remote"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/sysload"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/thermal"
	"gitlab.com/tinyland/lab/pulsebar/pkg/producers/timesheet"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

// remotePrefix marks a broadcast-client entry in the producer list, e.g.
// "remote:battery".
const remotePrefix = "remote:"

// BuildRegistry constructs the registry for the configured producer names,
// in configuration order. Unknown names are an error so a typo in the
// config fails startup instead of silently shrinking the bar.
func BuildRegistry(cfg *config.Config, wakeCh *wake.Channel, logger *slog.Logger) (*bar.Registry, error) {
	built := make([]bar.Producer, 0, len(cfg.Bar.Producers))
	for _, name := range cfg.Bar.Producers {
		p, err := Build(name, cfg, wakeCh, logger)
		if err != nil {
			return nil, err
		}
		built = append(built, p)
	}
	return bar.NewRegistry(built...), nil
}

// Build constructs a single producer by config name.
func Build(name string, cfg *config.Config, wakeCh *wake.Channel, logger *slog.Logger) (bar.Producer, error) {
	if socket, ok := strings.CutPrefix(name, remotePrefix); ok {
		path, err := broadcast.SocketPath(socket)
		if err != nil {
			return nil, fmt.Errorf("producer %q: %w", name, err)
		}
		return remote.New(path, wakeCh, logger), nil
	}

	switch name {
	case "clock":
		return clock.New(), nil
	case "sysload":
		return sysload.New(), nil
	case "memory":
		return memory.New(), nil
	case "diskfree":
		return diskfree.New(""), nil
	case "thermal":
		return thermal.New(thermal.Config{HighCelsius: cfg.Thermal.HighCelsius}), nil
	case "battery":
		return power.New(), nil
	case "netroute":
		return netroute.New(), nil
	case "ipaddr":
		return ipaddr.New(), nil
	case "notify":
		return notify.New(wakeCh, logger), nil
	case "timesheet":
		if cfg.Timesheet.BaseURL == "" || cfg.Timesheet.Token == "" {
			return nil, fmt.Errorf("producer %q: timesheet.base_url and timesheet.token required", name)
		}
		var notifier timesheet.Notifier
		if cfg.Timesheet.NotifyDailyHours > 0 {
			n, err := timesheet.NewDBusNotifier()
			if err != nil {
				logger.Warn("desktop notifications unavailable", "error", err)
			} else {
				notifier = n
			}
		}
		return timesheet.New(timesheet.Config{
			BaseURL:          cfg.Timesheet.BaseURL,
			Token:            cfg.Timesheet.Token,
			ProjectID:        cfg.Timesheet.ProjectID,
			ActivityID:       cfg.Timesheet.ActivityID,
			NotifyDailyHours: cfg.Timesheet.NotifyDailyHours,
			PollInterval:     cfg.Timesheet.PollInterval.Duration,
		}, wakeCh, notifier, logger), nil
	default:
		return nil, fmt.Errorf("unknown producer %q", name)
	}
}
