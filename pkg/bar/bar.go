// Package bar defines the core data model for pulsebar: the Snapshot a
// producer renders, the Event a click generates, and the Producer interface
// all data sources implement. Producers live in sub-packages under
// pkg/producers and are assembled into an ordered Registry at startup.
package bar

import (
	"encoding/json"
	"fmt"
)

// Markup identifies the markup language of a Snapshot's text fields.
type Markup string

// Pango is the only supported markup. Snapshots that embed <span> styling
// must set it so the consuming bar interprets the tags.
const Pango Markup = "pango"

// Common colors used by producers for highlighted output.
const (
	ColorAlert = "#ff0202"
	ColorOK    = "#02ff02"
)

// Snapshot is one producer's renderable output for a single tick.
//
// FullText is always set. Name is assigned by the scheduler as the
// producer's positional index at render time; producers must leave it
// empty. The optional fields are omitted from the wire format when unset.
type Snapshot struct {
	FullText  string `json:"full_text"`
	ShortText string `json:"short_text,omitempty"`
	Color     string `json:"color,omitempty"`
	Name      string `json:"name"`
	Markup    Markup `json:"markup,omitempty"`
	Tooltip   string `json:"tooltip,omitempty"`
}

// ErrorSnapshot returns the conventional error output: red "ERROR" text.
// Producers use it to surface internal failures without propagating them.
func ErrorSnapshot() *Snapshot {
	return &Snapshot{FullText: "ERROR", Color: ColorAlert}
}

// Event is a click or scroll event routed back to a producer. Name, when
// present, is the stringified positional index of the target Snapshot.
type Event struct {
	Name   string `json:"name,omitempty"`
	Button int    `json:"button"`
}

// Mouse buttons as delivered by the bar.
const (
	ButtonLeft       = 1
	ButtonMiddle     = 2
	ButtonRight      = 3
	ButtonScrollUp   = 4
	ButtonScrollDown = 5
)

// Producer is the interface all data sources implement.
//
// Render must return promptly: slow work (network, device I/O, D-Bus)
// happens on producer-owned background goroutines that update private
// state under their own lock and then notify the wake channel. A nil
// return means "omit this producer from the current frame" and is not an
// error. Internal failures surface only as nil or an error Snapshot;
// neither Render nor Click may panic or block the caller.
type Producer interface {
	Render() *Snapshot
	Click(ev Event)
}

// Registry is the ordered, fixed set of producers for one run. The index
// of a producer is its stable identity for the process lifetime: event
// names encode it and the scheduler assigns it to Snapshot.Name. The
// registry is built once at startup and never mutated afterwards.
type Registry struct {
	producers []Producer
}

// NewRegistry builds a registry from producers in registration order.
func NewRegistry(producers ...Producer) *Registry {
	return &Registry{producers: producers}
}

// Len returns the number of registered producers.
func (r *Registry) Len() int {
	return len(r.producers)
}

// At returns the producer at index i, or nil if i is out of range.
func (r *Registry) At(i int) Producer {
	if i < 0 || i >= len(r.producers) {
		return nil
	}
	return r.producers[i]
}

// Producers returns the registration-ordered producer slice. Callers must
// treat it as read-only.
func (r *Registry) Producers() []Producer {
	return r.producers
}

// ParseEvent decodes one event line. A leading comma (the bar emits frames
// as array elements) is tolerated.
func ParseEvent(line []byte) (Event, error) {
	if len(line) > 0 && line[0] == ',' {
		line = line[1:]
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	return ev, nil
}
