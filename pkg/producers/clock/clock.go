// Package clock provides the date/time producer: ISO week, day, month and
// time in the long form, bare time in the short form.
package clock

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// Producer renders the current local time. It holds no state and needs no
// background work.
type Producer struct {
	// now is replaceable for tests.
	now func() time.Time
}

// New creates a clock producer.
func New() *Producer {
	return &Producer{now: time.Now}
}

// Render implements bar.Producer.
func (p *Producer) Render() *bar.Snapshot {
	now := p.now()
	_, week := now.ISOWeek()
	return &bar.Snapshot{
		FullText:  fmt.Sprintf("(KW%02d) %s", week, now.Format("02.01. (Jan) 15:04")),
		ShortText: now.Format("15:04"),
	}
}

// Click implements bar.Producer. Clicks are ignored.
func (p *Producer) Click(bar.Event) {}
