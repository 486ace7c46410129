// Package power provides the battery producer. It enumerates system
// batteries via distatus/battery and renders one segment per battery with
// a charging marker and Pango-styled percentage: green while on AC, red at
// or below 15%.
package power

import (
	"fmt"
	"strings"

	"github.com/distatus/battery"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// lowPercent is the threshold for the red low-battery styling.
const lowPercent = 15

// batteryReader abstracts the battery enumeration for testability.
type batteryReader func() ([]*battery.Battery, error)

// Producer renders the state of all system batteries.
type Producer struct {
	read batteryReader
}

// New creates a battery producer backed by distatus/battery.
func New() *Producer {
	return &Producer{read: battery.GetAll}
}

// Render implements bar.Producer. Machines without batteries (or with an
// unreadable battery subsystem) are omitted from the frame.
func (p *Producer) Render() *bar.Snapshot {
	batteries, err := p.read()
	if err != nil || len(batteries) == 0 {
		return nil
	}

	var b strings.Builder
	for _, bat := range batteries {
		if bat.Full <= 0 {
			continue
		}
		percent := int(bat.Current / bat.Full * 100)
		switch {
		case bat.State == battery.Charging || bat.State == battery.Full:
			fmt.Fprintf(&b, "🔋<span foreground='%s'>%d%%</span>", bar.ColorOK, percent)
		case percent <= lowPercent:
			fmt.Fprintf(&b, "🪫<span foreground='%s'>%d%%</span>", bar.ColorAlert, percent)
		default:
			fmt.Fprintf(&b, "🔋%d%%", percent)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return &bar.Snapshot{
		FullText: b.String(),
		Markup:   bar.Pango,
	}
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}
