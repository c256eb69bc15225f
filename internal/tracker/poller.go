package tracker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/runnerr0/dwell/internal/dockey"
	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
)

// Default poller settings.
const (
	DefaultInterval      = time.Second
	DefaultThreshold     = 10 * time.Second
	DefaultRecordTimeout = 5 * time.Second

	eventBuffer = 64
)

// SessionRecorder persists a recorded interval.
type SessionRecorder interface {
	RecordSession(ctx context.Context, in storage.NewSession) (*storage.Session, error)
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval is the tick period and the time credited per active tick.
	Interval time.Duration

	// Threshold is the accumulated time a tab needs before anything is
	// recorded for it.
	Threshold time.Duration

	// RecordTimeout bounds each RecordSession call.
	RecordTimeout time.Duration

	// UntrackedSchemes lists browser-internal URL schemes.
	UntrackedSchemes []string
}

// accumulator is the per-tab running total. recorded <= elapsed.
type accumulator struct {
	docKey   string
	elapsed  time.Duration
	recorded time.Duration
}

type eventKind int

const (
	eventActivated eventKind = iota
	eventRemoved
)

type tabEvent struct {
	kind  eventKind
	tabID int
}

// PollerStats counts poller activity since construction.
type PollerStats struct {
	Ticks    int64 `json:"ticks"`
	Recorded int64 `json:"recorded"`
	Failures int64 `json:"failures"`
}

// Poller samples the active tab every Interval and records active time.
//
// The accumulator map and the last-seen tab are touched only by the loop
// goroutine. Tab events reach it through a buffered channel.
type Poller struct {
	config  PollerConfig
	tabs    TabSource
	store   SessionRecorder
	filter  *Filter
	resolve func(string) string
	log     *slog.Logger
	now     func() time.Time

	events chan tabEvent

	acc     map[int]*accumulator
	lastTab int
	hasLast bool

	ticks    atomic.Int64
	recorded atomic.Int64
	failures atomic.Int64

	lifecycle
}

// NewPoller creates a Poller. excluder may be nil. A nil logger discards.
func NewPoller(tabs TabSource, store SessionRecorder, excluder Excluder, config PollerConfig, logger *slog.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.RecordTimeout <= 0 {
		config.RecordTimeout = DefaultRecordTimeout
	}

	return &Poller{
		config:  config,
		tabs:    tabs,
		store:   store,
		filter:  NewFilter(config.UntrackedSchemes, excluder),
		resolve: dockey.Resolve,
		log:     logging.OrDiscard(logger).With("component", "poller"),
		now:     time.Now,
		events:  make(chan tabEvent, eventBuffer),
		acc:     make(map[int]*accumulator),
	}
}

// Start begins polling in a background goroutine. It is safe to call
// Start again after Stop.
func (p *Poller) Start() {
	p.start(p.pollLoop)
}

// Stop halts polling and waits for the loop to exit. An in-flight record
// is cancelled and its transaction rolls back.
func (p *Poller) Stop() {
	p.stop()
}

// Done returns a channel that closes when the loop exits.
func (p *Poller) Done() <-chan struct{} {
	return p.done()
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	return p.isRunning()
}

// Stats returns a snapshot of the activity counters.
func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Ticks:    p.ticks.Load(),
		Recorded: p.recorded.Load(),
		Failures: p.failures.Load(),
	}
}

// TabActivated notes that the user switched to tabID.
func (p *Poller) TabActivated(tabID int) {
	p.send(tabEvent{kind: eventActivated, tabID: tabID})
}

// TabRemoved notes that tabID was closed.
func (p *Poller) TabRemoved(tabID int) {
	p.send(tabEvent{kind: eventRemoved, tabID: tabID})
}

func (p *Poller) send(ev tabEvent) {
	select {
	case p.events <- ev:
	default:
		// The next tick still notices a switch by tab id.
		p.log.Warn("tab event dropped; queue full", "tab_id", ev.tabID)
	}
}

func (p *Poller) pollLoop(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.resetAll()
	p.hasLast = false

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.log.Debug("poller started", "interval", p.config.Interval, "threshold", p.config.Threshold)
	for {
		select {
		case <-stop:
			p.log.Debug("poller stopped")
			return
		case ev := <-p.events:
			p.handleEvent(ev)
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) handleEvent(ev tabEvent) {
	p.resetAll()
	switch ev.kind {
	case eventActivated:
		p.lastTab = ev.tabID
		p.hasLast = true
	case eventRemoved:
		if p.hasLast && p.lastTab == ev.tabID {
			p.hasLast = false
		}
	}
}

func (p *Poller) resetAll() {
	for id := range p.acc {
		delete(p.acc, id)
	}
}

// tick runs one sampling step.
func (p *Poller) tick(ctx context.Context) {
	p.ticks.Add(1)

	tab, ok, err := p.tabs.ActiveTab(ctx)
	if err != nil {
		p.log.Warn("query active tab failed", "error", err)
		return
	}
	if !ok {
		return
	}

	if !p.hasLast || tab.ID != p.lastTab {
		p.resetAll()
		p.lastTab = tab.ID
		p.hasLast = true
	}

	if !p.filter.Trackable(tab.URL) {
		return
	}

	key := p.resolve(tab.URL)
	a := p.acc[tab.ID]
	if a == nil || a.docKey != key {
		// Navigating within a tab starts a fresh count for the new document.
		a = &accumulator{docKey: key}
		p.acc[tab.ID] = a
	}

	a.elapsed += p.config.Interval
	if a.elapsed < p.config.Threshold {
		return
	}

	delta := a.elapsed - a.recorded
	if delta <= 0 {
		return
	}

	now := p.now()
	rctx, cancel := context.WithTimeout(ctx, p.config.RecordTimeout)
	defer cancel()

	_, err = p.store.RecordSession(rctx, storage.NewSession{
		DocKey:     key,
		Title:      tab.Title,
		URL:        tab.URL,
		Date:       now.Format(storage.DateLayout),
		DurationMs: delta.Milliseconds(),
		Timestamp:  now,
	})
	if err != nil {
		p.failures.Add(1)
		p.log.Error("record session failed", "doc_key", key, "delta_ms", delta.Milliseconds(), "error", err)
		return
	}

	a.recorded = a.elapsed
	p.recorded.Add(1)
	p.log.Debug("recorded session", "doc_key", key, "duration_ms", delta.Milliseconds())
}
