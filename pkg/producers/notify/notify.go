// Package notify provides the notification-daemon producer. It mirrors
// dunst's paused property over the session D-Bus: a speaker glyph while
// notifications flow, a red "paused" while they are held back. A right
// click toggles the pause; property changes push a wake so the bar updates
// immediately.
package notify

import (
	"log/slog"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

const (
	busName       = "org.freedesktop.Notifications"
	objectPath    = "/org/freedesktop/Notifications"
	pausedProp    = "org.dunstproject.cmd0.paused"
	propInterface = "org.freedesktop.DBus.Properties"
)

// Producer mirrors the notification daemon's pause state.
type Producer struct {
	obj       dbus.BusObject
	paused    atomic.Bool
	available bool
	toggle    chan struct{}
	logger    *slog.Logger
}

// New creates the producer and starts its D-Bus watch. When the session
// bus or the daemon's pause property is unavailable the producer stays
// registered but renders nothing.
func New(wakeCh *wake.Channel, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		toggle: make(chan struct{}, 1),
		logger: logger,
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Warn("session bus unavailable, notify producer disabled", "error", err)
		return p
	}
	p.obj = conn.Object(busName, objectPath)

	variant, err := p.obj.GetProperty(pausedProp)
	if err != nil {
		logger.Warn("notification daemon does not expose pause state", "error", err)
		return p
	}
	paused, ok := variant.Value().(bool)
	if !ok {
		logger.Warn("unexpected pause property type", "value", variant.String())
		return p
	}
	p.paused.Store(paused)
	p.available = true

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface(propInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		logger.Warn("cannot watch pause property", "error", err)
	} else {
		signals := make(chan *dbus.Signal, 16)
		conn.Signal(signals)
		go p.watch(signals, wakeCh)
	}
	go p.toggleLoop()

	return p
}

// Render implements bar.Producer.
func (p *Producer) Render() *bar.Snapshot {
	if !p.available {
		return nil
	}
	if p.paused.Load() {
		return &bar.Snapshot{
			FullText: "paused",
			Color:    bar.ColorAlert,
		}
	}
	return &bar.Snapshot{FullText: "📢"}
}

// Click implements bar.Producer. A right click requests a pause toggle;
// the D-Bus call happens off the caller's goroutine.
func (p *Producer) Click(ev bar.Event) {
	if !p.available || ev.Button != bar.ButtonRight {
		return
	}
	select {
	case p.toggle <- struct{}{}:
	default:
	}
}

// watch tracks PropertiesChanged signals for the pause property.
func (p *Producer) watch(signals <-chan *dbus.Signal, wakeCh *wake.Channel) {
	for sig := range signals {
		if len(sig.Body) < 2 {
			continue
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			continue
		}
		variant, ok := changed["paused"]
		if !ok {
			continue
		}
		if paused, ok := variant.Value().(bool); ok {
			p.paused.Store(paused)
			wakeCh.Notify()
		}
	}
}

// toggleLoop applies pause toggles requested by Click.
func (p *Producer) toggleLoop() {
	for range p.toggle {
		if err := p.obj.SetProperty(pausedProp, dbus.MakeVariant(!p.paused.Load())); err != nil {
			p.logger.Warn("pause toggle failed", "error", err)
		}
	}
}
