package scheduler

import (
	"context"
	"log/slog"
	"time"

	"stock_news/internal/domain"
)

const (
	DefaultInterval = time.Hour
	DefaultTimeout  = 5 * time.Minute
)

// Runner executes one pipeline cycle.
type Runner interface {
	Run(ctx context.Context, query domain.Query) (*domain.RunResult, error)
}

type Config struct {
	Interval time.Duration
	// Timeout bounds every single query cycle.
	Timeout time.Duration
	// Lookback sets Query.From relative to now; zero leaves the window open.
	Lookback time.Duration
	Queries  []string
}

type Scheduler struct {
	runner Runner
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

func NewScheduler(runner Runner, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.cfg.Interval, "queries", len(s.cfg.Queries))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every watchlist query in order. Failures are logged and do
// not stop the remaining queries.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, text := range s.cfg.Queries {
		if ctx.Err() != nil {
			return
		}
		s.runQuery(ctx, text)
	}
}

func (s *Scheduler) runQuery(ctx context.Context, text string) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.runner.Run(runCtx, BuildQuery(text, s.now(), s.cfg.Lookback))
	if err != nil {
		s.logger.Error("run failed", "query", text, "error", err)
		return
	}
	if result.NoNews {
		s.logger.Info("no news for query", "query", text, "exhausted", result.Exhausted)
	}
}

// BuildQuery makes a listing query ending at now and reaching lookback back.
func BuildQuery(text string, now time.Time, lookback time.Duration) domain.Query {
	q := domain.Query{Text: text}
	if lookback > 0 {
		q.From = now.Add(-lookback)
		q.To = now
	}
	return q
}
