// Package timesheet provides the Kimai time-tracking producer. A
// background goroutine polls the Kimai HTTP API for today's timesheets and
// caches an aggregate; Render extrapolates a running entry from the sample
// timestamp so the bar counts live without hitting the API every tick.
//
// Clicks: left refreshes immediately, middle stops the active entry, right
// restarts tracking on the configured default project and activity.
package timesheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/wake"
)

// beginLayout is Kimai's timestamp format for timesheet boundaries.
const beginLayout = "2006-01-02T15:04:05-0700"

// DefaultPollInterval is the API poll cadence when none is configured.
const DefaultPollInterval = 5 * time.Minute

// Config holds Kimai API access for the producer.
type Config struct {
	// BaseURL is the Kimai instance root, without trailing slash.
	BaseURL string

	// Token is the API token sent as a bearer credential.
	Token string

	// ProjectID and ActivityID identify the default booking target used
	// by the right-click restart action. Zero disables restart.
	ProjectID  int64
	ActivityID int64

	// NotifyDailyHours sends a desktop notification once tracking passes
	// this many hours in a day. Zero disables the notification.
	NotifyDailyHours int

	// PollInterval is how often the API is polled. Zero uses
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Notifier delivers the daily-hours desktop notification. A nil notifier
// disables it.
type Notifier interface {
	Notify(summary, body string) error
}

// state is one API sample.
type state struct {
	// sampledAt is when the data was fetched.
	sampledAt time.Time
	// finishedSeconds is the sum of completed entries since the day
	// boundary.
	finishedSeconds int64
	// activeSeconds is the running entry's elapsed time at sampledAt,
	// zero when nothing is being tracked.
	activeSeconds int64
}

// Producer renders today's tracked time from Kimai.
type Producer struct {
	cfg      Config
	client   *http.Client
	wakeCh   *wake.Channel
	refresh  *wake.Channel
	notifier Notifier
	logger   *slog.Logger

	mu     sync.RWMutex
	st     *state
	failed bool

	// now is replaceable for tests.
	now func() time.Time
}

// New creates the producer and starts its poll goroutine. wakeCh is the
// scheduler's wake channel, notified after every successful sample.
func New(cfg Config, wakeCh *wake.Channel, notifier Notifier, logger *slog.Logger) *Producer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Producer{
		cfg:      cfg,
		client:   &http.Client{Timeout: 30 * time.Second},
		wakeCh:   wakeCh,
		refresh:  wake.New(),
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	go p.pollLoop()
	return p
}

// Render implements bar.Producer. Before the first sample the producer is
// omitted; after a poll failure it renders the error snapshot until the
// next successful sample.
func (p *Producer) Render() *bar.Snapshot {
	p.mu.RLock()
	st, failed := p.st, p.failed
	p.mu.RUnlock()

	if failed {
		return bar.ErrorSnapshot()
	}
	if st == nil {
		return nil
	}

	// Extrapolate the running entry from the sample timestamp.
	var activeElapsed int64
	if st.activeSeconds > 0 {
		activeElapsed = st.activeSeconds + int64(p.now().Sub(st.sampledAt).Seconds())
	}
	total := formatHM(st.finishedSeconds + activeElapsed)

	snap := &bar.Snapshot{
		FullText:  total,
		ShortText: total,
	}
	if activeElapsed > 0 {
		snap.FullText = fmt.Sprintf("<span foreground='%s'>%s (%s)</span>",
			bar.ColorOK, formatHM(activeElapsed), total)
		snap.Markup = bar.Pango
	}
	return snap
}

// Click implements bar.Producer. API calls run off the caller's goroutine;
// every action ends with an immediate refresh.
func (p *Producer) Click(ev bar.Event) {
	switch ev.Button {
	case bar.ButtonLeft:
		p.refresh.Notify()
	case bar.ButtonMiddle:
		go func() {
			if err := p.stopActive(); err != nil {
				p.logger.Warn("stop timesheet failed", "error", err)
			}
			p.refresh.Notify()
		}()
	case bar.ButtonRight:
		go func() {
			if err := p.restart(); err != nil {
				p.logger.Warn("restart timesheet failed", "error", err)
			}
			p.refresh.Notify()
		}()
	}
}

// pollLoop samples the API until the process exits.
func (p *Producer) pollLoop() {
	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	var notified bool
	for {
		p.sample(&notified)
		p.wakeCh.Notify()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-p.refresh.C():
		}
	}
}

// sample fetches today's timesheets and updates the cached state.
func (p *Producer) sample(notified *bool) {
	sampledAt := p.now()

	// The working day starts at 23:00 yesterday so late-night entries
	// count toward the following day.
	y := sampledAt.AddDate(0, 0, -1)
	from := time.Date(y.Year(), y.Month(), y.Day(), 23, 0, 0, 0, sampledAt.Location())

	var sheets []struct {
		Duration int64  `json:"duration"`
		Begin    string `json:"begin"`
	}
	url := fmt.Sprintf("%s/api/timesheets?begin=%s&size=20000",
		p.cfg.BaseURL, from.Format("2006-01-02T15:04:05"))
	if err := p.getJSON(url, &sheets); err != nil {
		p.logger.Warn("kimai poll failed", "error", err)
		p.setFailed()
		return
	}

	st := state{sampledAt: sampledAt}
	for _, ts := range sheets {
		if ts.Duration != 0 {
			st.finishedSeconds += ts.Duration
			continue
		}
		begin, err := time.Parse(beginLayout, ts.Begin)
		if err != nil {
			continue
		}
		elapsed := int64(sampledAt.Sub(begin).Seconds())
		if elapsed < 0 {
			elapsed = -elapsed
		}
		st.activeSeconds += elapsed
	}

	p.mu.Lock()
	p.st = &st
	p.failed = false
	p.mu.Unlock()

	p.maybeNotify(&st, notified)
}

// maybeNotify fires the daily-hours notification once per crossing, only
// while something is actively tracked.
func (p *Producer) maybeNotify(st *state, notified *bool) {
	if p.cfg.NotifyDailyHours <= 0 || p.notifier == nil {
		return
	}
	hours := int((st.finishedSeconds + st.activeSeconds) / 3600)
	switch {
	case hours < p.cfg.NotifyDailyHours:
		*notified = false
	case !*notified && st.activeSeconds > 0:
		err := p.notifier.Notify("Enough work",
			fmt.Sprintf("You have reached your daily %dh", p.cfg.NotifyDailyHours))
		if err != nil {
			p.logger.Warn("daily-hours notification failed", "error", err)
		}
		*notified = true
	}
}

func (p *Producer) setFailed() {
	p.mu.Lock()
	p.failed = true
	p.mu.Unlock()
}

// stopActive stops the currently running timesheet, if any.
func (p *Producer) stopActive() error {
	var active []struct {
		ID int64 `json:"id"`
	}
	if err := p.getJSON(p.cfg.BaseURL+"/api/timesheets/active", &active); err != nil {
		return fmt.Errorf("query active timesheet: %w", err)
	}
	if len(active) == 0 {
		p.logger.Info("no active timesheet to stop")
		return nil
	}
	url := fmt.Sprintf("%s/api/timesheets/%d/stop", p.cfg.BaseURL, active[0].ID)
	return p.do(http.MethodPatch, url, nil)
}

// restart stops whatever is running and starts a fresh entry on the
// configured default project and activity.
func (p *Producer) restart() error {
	if p.cfg.ProjectID == 0 || p.cfg.ActivityID == 0 {
		return fmt.Errorf("no default project/activity configured")
	}
	if err := p.stopActive(); err != nil {
		return err
	}
	body, err := json.Marshal(map[string]any{
		"project":     p.cfg.ProjectID,
		"activity":    p.cfg.ActivityID,
		"description": "",
	})
	if err != nil {
		return err
	}
	return p.do(http.MethodPost, p.cfg.BaseURL+"/api/timesheets", body)
}

// getJSON performs an authorized GET and decodes the response body.
func (p *Producer) getJSON(url string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("kimai returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do performs an authorized request whose response body is irrelevant.
func (p *Producer) do(method, url string, body []byte) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("kimai returned %s", resp.Status)
	}
	return nil
}

// formatHM renders seconds as H:MM, rounding part minutes up.
func formatHM(seconds int64) string {
	hours := seconds / 3600
	minutes := seconds / 60 % 60
	if seconds%60 > 0 {
		minutes++
	}
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return fmt.Sprintf("%d:%02d", hours, minutes)
}
