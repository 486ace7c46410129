// Package frontend contains the format-specific serializers that turn
// rendered frames into wire output. Three adapters exist: BarStream speaks
// the i3bar streaming protocol on stdout, SingleContent produces the
// one-object-per-line payload fed into the broadcast server, and Waybar
// remaps snapshots into waybar's JSON shape with local deduplication.
package frontend

import (
	"encoding/json"
	"fmt"
	"io"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// Header is the protocol header emitted once at the start of a bar stream.
type Header struct {
	Version     int  `json:"version"`
	StopSignal  int  `json:"stop_signal"`
	ContSignal  int  `json:"cont_signal"`
	ClickEvents bool `json:"click_events"`
}

// BarStream writes the i3bar streaming protocol: one header object, the
// literal line "[", then every tick's frame as a JSON array followed by a
// trailing comma. The array of frames is never closed and frames are
// written unconditionally; unlike the broadcast server, this adapter
// performs no deduplication.
type BarStream struct {
	w      io.Writer
	header Header
}

// NewBarStream creates a bar-stream adapter writing to w. stopSignal and
// contSignal are advertised in the header so the host bar knows how to
// pause and resume the process.
func NewBarStream(w io.Writer, stopSignal, contSignal int) *BarStream {
	return &BarStream{
		w: w,
		header: Header{
			Version:     1,
			StopSignal:  stopSignal,
			ContSignal:  contSignal,
			ClickEvents: true,
		},
	}
}

// WriteHeader emits the header object and the opening "[" line. Call once
// before the first Emit.
func (b *BarStream) WriteHeader() error {
	data, err := json.Marshal(b.header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if _, err := fmt.Fprintf(b.w, "%s\n[\n", data); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Emit writes one frame as an array element of the endless stream.
func (b *BarStream) Emit(frame []bar.Snapshot) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if _, err := fmt.Fprintf(b.w, "%s,\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// emptyContent is the placeholder payload when the producer rendered
// nothing. Clients still receive a well-formed snapshot with empty text.
const emptyContent = `{"full_text":"", "name":""}`

// SingleContent serializes the first snapshot of a frame as a single JSON
// object line. It is the payload format of the broadcast server, which
// publishes exactly one producer.
type SingleContent struct{}

// Format returns the newline-terminated payload for a frame.
func (SingleContent) Format(frame []bar.Snapshot) (string, error) {
	if len(frame) == 0 {
		return emptyContent + "\n", nil
	}
	data, err := json.Marshal(frame[0])
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data) + "\n", nil
}

// waybarPayload is waybar's custom-module input shape.
type waybarPayload struct {
	Text    string `json:"text"`
	Tooltip string `json:"tooltip,omitempty"`
}

// Waybar remaps snapshots into waybar JSON. Color moves into a Pango span
// around the text. Identical consecutive lines are suppressed; this local
// comparison is independent of the broadcast server's content cache.
type Waybar struct {
	w    io.Writer
	last string
}

// NewWaybar creates a waybar adapter writing to w.
func NewWaybar(w io.Writer) *Waybar {
	return &Waybar{w: w}
}

// Emit writes the frame's first snapshot, or an empty text object when the
// frame is empty. Unchanged output is not re-written.
func (a *Waybar) Emit(frame []bar.Snapshot) error {
	var payload waybarPayload
	if len(frame) > 0 {
		snap := frame[0]
		payload.Text = snap.FullText
		payload.Tooltip = snap.Tooltip
		if snap.Color != "" {
			payload.Text = fmt.Sprintf("<span color='%s'>%s</span>", snap.Color, snap.FullText)
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal waybar payload: %w", err)
	}
	line := string(data)
	if line == a.last {
		return nil
	}
	if _, err := fmt.Fprintf(a.w, "%s\n", line); err != nil {
		return fmt.Errorf("write waybar line: %w", err)
	}
	a.last = line
	return nil
}
