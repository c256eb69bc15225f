package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/runnerr0/dwell/internal/logging"
	"github.com/runnerr0/dwell/internal/storage"
)

// Default sweeper settings.
const (
	DefaultSweepInterval = time.Hour
	DefaultRetentionDays = 60
	DefaultSweepTimeout  = 30 * time.Second
)

// SessionPruner deletes sessions dated on or before a cutoff date.
type SessionPruner interface {
	DeleteOldSessions(ctx context.Context, cutoff string) (int64, error)
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Interval      time.Duration
	RetentionDays int
	Timeout       time.Duration
}

// Sweeper periodically removes sessions older than the retention horizon.
// Document totals are left alone.
type Sweeper struct {
	config SweeperConfig
	store  SessionPruner
	log    *slog.Logger
	now    func() time.Time

	lifecycle
}

// NewSweeper creates a Sweeper. A nil logger discards.
func NewSweeper(store SessionPruner, config SweeperConfig, logger *slog.Logger) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = DefaultRetentionDays
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSweepTimeout
	}
	return &Sweeper{
		config: config,
		store:  store,
		log:    logging.OrDiscard(logger).With("component", "sweeper"),
		now:    time.Now,
	}
}

// Cutoff returns the local calendar date retentionDays before now.
// Sessions dated on or before it are expired.
func Cutoff(now time.Time, retentionDays int) string {
	return now.Local().AddDate(0, 0, -retentionDays).Format(storage.DateLayout)
}

// Cutoff returns the sweeper's current cutoff date.
func (s *Sweeper) Cutoff() string {
	return Cutoff(s.now(), s.config.RetentionDays)
}

// Sweep deletes expired sessions once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.Cutoff()

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	n, err := s.store.DeleteOldSessions(ctx, cutoff)
	if err != nil {
		s.log.Error("retention sweep failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if n > 0 {
		s.log.Info("retention sweep", "cutoff", cutoff, "deleted", n)
	} else {
		s.log.Debug("retention sweep", "cutoff", cutoff, "deleted", n)
	}
	return n, nil
}

// Start sweeps immediately and then every Interval until Stop.
func (s *Sweeper) Start() {
	s.start(s.sweepLoop)
}

// Stop halts sweeping and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.stop()
}

// Done returns a channel that closes when the loop exits.
func (s *Sweeper) Done() <-chan struct{} {
	return s.done()
}

func (s *Sweeper) sweepLoop(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.Sweep(ctx) //nolint:errcheck // logged; retried next period

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep(ctx) //nolint:errcheck
		}
	}
}
