package timesheet

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
)

// newTestProducer builds a producer without starting the poll goroutine.
func newTestProducer(cfg Config, now time.Time) *Producer {
	return &Producer{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return now },
	}
}

func TestFormatHM(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0:00"},
		{59, "0:01"},
		{60, "0:01"},
		{61, "0:02"},
		{3599, "1:00"},
		{3600, "1:00"},
		{7230, "2:01"},
	}
	for _, tt := range tests {
		if got := formatHM(tt.seconds); got != tt.want {
			t.Errorf("formatHM(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestRenderBeforeFirstSample(t *testing.T) {
	p := newTestProducer(Config{}, time.Now())
	if snap := p.Render(); snap != nil {
		t.Errorf("Render = %+v, want nil before first sample", snap)
	}
}

func TestRenderAfterPollFailure(t *testing.T) {
	p := newTestProducer(Config{}, time.Now())
	p.setFailed()
	snap := p.Render()
	if snap == nil || snap.FullText != "ERROR" || snap.Color != bar.ColorAlert {
		t.Errorf("got %+v, want red ERROR snapshot", snap)
	}
}

func TestRenderFinishedOnly(t *testing.T) {
	p := newTestProducer(Config{}, time.Now())
	p.st = &state{sampledAt: p.now(), finishedSeconds: 3660}

	snap := p.Render()
	if snap == nil {
		t.Fatal("Render returned nil")
	}
	if snap.FullText != "1:01" {
		t.Errorf("FullText = %q, want 1:01", snap.FullText)
	}
	if snap.Markup != "" {
		t.Errorf("Markup = %q, want unset without an active entry", snap.Markup)
	}
}

func TestRenderExtrapolatesActiveEntry(t *testing.T) {
	sampled := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	p := newTestProducer(Config{}, sampled.Add(time.Minute))
	p.st = &state{sampledAt: sampled, finishedSeconds: 3600, activeSeconds: 600}

	snap := p.Render()
	if snap == nil {
		t.Fatal("Render returned nil")
	}
	// 600s at sample time plus 60s since: 0:11 active, 1:11 total.
	want := fmt.Sprintf("<span foreground='%s'>0:11 (1:11)</span>", bar.ColorOK)
	if snap.FullText != want {
		t.Errorf("FullText = %q, want %q", snap.FullText, want)
	}
	if snap.Markup != bar.Pango {
		t.Errorf("Markup = %q, want %q", snap.Markup, bar.Pango)
	}
	if snap.ShortText != "1:11" {
		t.Errorf("ShortText = %q, want 1:11", snap.ShortText)
	}
}

func TestSample(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

	var gotBegin, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBegin = r.URL.Query().Get("begin")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `[
			{"duration": 3600, "begin": "2024-05-06T08:00:00+0000"},
			{"duration": 0, "begin": %q}
		]`, now.Add(-30*time.Minute).Format(beginLayout))
	}))
	defer srv.Close()

	p := newTestProducer(Config{BaseURL: srv.URL, Token: "sekrit"}, now)
	var notified bool
	p.sample(&notified)

	if gotBegin != "2024-05-05T23:00:00" {
		t.Errorf("begin = %q, want 2024-05-05T23:00:00", gotBegin)
	}
	if gotAuth != "Bearer sekrit" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if p.st == nil {
		t.Fatal("no state after successful sample")
	}
	if p.st.finishedSeconds != 3600 {
		t.Errorf("finishedSeconds = %d, want 3600", p.st.finishedSeconds)
	}
	if p.st.activeSeconds != 1800 {
		t.Errorf("activeSeconds = %d, want 1800", p.st.activeSeconds)
	}
	if p.failed {
		t.Error("failed flag set after successful sample")
	}
}

func TestSampleFailureSetsFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestProducer(Config{BaseURL: srv.URL}, time.Now())
	var notified bool
	p.sample(&notified)
	if !p.failed {
		t.Error("failed flag not set after 403")
	}

	// The flag clears on the next good sample.
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "[]")
	}))
	defer srv2.Close()
	p.cfg.BaseURL = srv2.URL
	p.sample(&notified)
	if p.failed {
		t.Error("failed flag still set after recovery")
	}
}

func TestStopActive(t *testing.T) {
	var stopped []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/timesheets/active":
			io.WriteString(w, `[{"id": 42}]`)
		case r.Method == http.MethodPatch && strings.HasSuffix(r.URL.Path, "/stop"):
			stopped = append(stopped, r.URL.Path)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := newTestProducer(Config{BaseURL: srv.URL}, time.Now())
	if err := p.stopActive(); err != nil {
		t.Fatalf("stopActive: %v", err)
	}
	if len(stopped) != 1 || stopped[0] != "/api/timesheets/42/stop" {
		t.Errorf("stop calls = %v, want [/api/timesheets/42/stop]", stopped)
	}
}

func TestStopActiveNothingRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, "[]")
	}))
	defer srv.Close()

	p := newTestProducer(Config{BaseURL: srv.URL}, time.Now())
	if err := p.stopActive(); err != nil {
		t.Fatalf("stopActive: %v", err)
	}
}

func TestRestart(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/timesheets/active":
			io.WriteString(w, `[{"id": 7}]`)
		case r.Method == http.MethodPatch && r.URL.Path == "/api/timesheets/7/stop":
		case r.Method == http.MethodPost && r.URL.Path == "/api/timesheets":
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Errorf("decode create body: %v", err)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := newTestProducer(Config{BaseURL: srv.URL, ProjectID: 12, ActivityID: 34}, time.Now())
	if err := p.restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if created == nil {
		t.Fatal("no timesheet created")
	}
	if got := created["project"]; got != float64(12) {
		t.Errorf("project = %v, want 12", got)
	}
	if got := created["activity"]; got != float64(34) {
		t.Errorf("activity = %v, want 34", got)
	}
}

func TestRestartWithoutDefaults(t *testing.T) {
	p := newTestProducer(Config{BaseURL: "http://unused"}, time.Now())
	if err := p.restart(); err == nil {
		t.Error("restart succeeded without a default project/activity")
	}
}

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) Notify(summary, body string) error {
	n.calls = append(n.calls, summary)
	return nil
}

func TestMaybeNotify(t *testing.T) {
	n := &recordingNotifier{}
	p := newTestProducer(Config{NotifyDailyHours: 8}, time.Now())
	p.notifier = n

	var notified bool
	over := &state{finishedSeconds: 8 * 3600, activeSeconds: 600}
	under := &state{finishedSeconds: 3600, activeSeconds: 600}
	idle := &state{finishedSeconds: 9 * 3600}

	p.maybeNotify(under, &notified)
	if len(n.calls) != 0 {
		t.Fatalf("notified below threshold: %v", n.calls)
	}
	p.maybeNotify(over, &notified)
	if len(n.calls) != 1 {
		t.Fatalf("notifications = %d, want 1 at crossing", len(n.calls))
	}
	// Repeated samples above the threshold stay quiet.
	p.maybeNotify(over, &notified)
	if len(n.calls) != 1 {
		t.Fatalf("notifications = %d, want still 1", len(n.calls))
	}
	// Dropping back under rearms the notification.
	p.maybeNotify(under, &notified)
	p.maybeNotify(over, &notified)
	if len(n.calls) != 2 {
		t.Fatalf("notifications = %d, want 2 after re-crossing", len(n.calls))
	}
	// Without an active entry nothing fires.
	notified = false
	p.maybeNotify(idle, &notified)
	if len(n.calls) != 2 {
		t.Fatalf("notified while idle: %v", n.calls)
	}
}
