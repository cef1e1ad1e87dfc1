package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock_news/internal/domain"
	"stock_news/internal/retry"
)

// Pipeline runs one fetch, normalize, enrich and store cycle per query.
type Pipeline struct {
	source     Source
	normalizer Normalizer
	enricher   Enricher
	sinks      []Sink
	logger     *slog.Logger

	// runMu keeps cycles strictly one at a time.
	runMu sync.Mutex

	mu    sync.RWMutex
	state domain.State
}

// ErrRunInProgress is returned by TryRun while another cycle holds the pipeline.
var ErrRunInProgress = errors.New("run in progress")

func New(
	source Source,
	normalizer Normalizer,
	enricher Enricher,
	sinks []Sink,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		source:     source,
		normalizer: normalizer,
		enricher:   enricher,
		sinks:      sinks,
		logger:     logger.With("source", source.ID()),
		state:      domain.StateIdle,
	}
}

// State reports where the current or last cycle is.
func (p *Pipeline) State() domain.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Pipeline) setState(result *domain.RunResult, state domain.State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	result.State = state
}

// Run executes one cycle, waiting for any cycle already in progress. An empty
// listing or a listing that exhausted its retries ends Done with NoNews set;
// any other failure ends Failed and is returned.
func (p *Pipeline) Run(ctx context.Context, query domain.Query) (*domain.RunResult, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.run(ctx, query)
}

// TryRun is Run without waiting: it returns ErrRunInProgress when a cycle is
// already running.
func (p *Pipeline) TryRun(ctx context.Context, query domain.Query) (*domain.RunResult, error) {
	if !p.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.runMu.Unlock()
	return p.run(ctx, query)
}

func (p *Pipeline) run(ctx context.Context, query domain.Query) (*domain.RunResult, error) {
	result := &domain.RunResult{
		RunID:     uuid.NewString(),
		Query:     query.Text,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", result.RunID, "query", query.Text)
	p.setState(result, domain.StateIdle)

	logger.Info("starting run", "source_name", p.source.Name())

	p.setState(result, domain.StateFetching)
	raw, err := p.source.FetchArticles(ctx, query)
	if err != nil {
		if !errors.Is(err, retry.ErrExhausted) {
			return p.fail(result, logger, fmt.Errorf("fetch articles: %w", err))
		}
		result.Exhausted = true
		if len(raw) == 0 {
			return p.noNews(result, logger, "error", err), nil
		}
		logger.Warn("listing incomplete, continuing with partial results", "fetched", len(raw), "error", err)
	}
	result.Stats.Fetched = len(raw)
	if len(raw) == 0 {
		return p.noNews(result, logger), nil
	}
	logger.Info("fetched articles", "count", len(raw))

	p.setState(result, domain.StateNormalizing)
	articles := p.normalizer.Normalize(raw)
	result.Stats.Normalized = len(articles)
	if len(articles) == 0 {
		return p.noNews(result, logger), nil
	}
	logger.Debug("normalized articles", "count", len(articles))

	p.setState(result, domain.StateEnriching)
	articles, dropped := p.enricher.Enrich(ctx, articles)
	if err := ctx.Err(); err != nil {
		return p.fail(result, logger, fmt.Errorf("enrich articles: %w", err))
	}
	result.Articles = articles
	result.Stats.Enriched = len(articles)
	result.Stats.Dropped = dropped
	if len(articles) == 0 {
		return p.noNews(result, logger), nil
	}

	if len(p.sinks) > 0 {
		p.setState(result, domain.StateStoring)
		if err := p.store(ctx, result, logger); err != nil {
			return p.fail(result, logger, err)
		}
		result.Stats.Stored = len(articles)
	}

	p.setState(result, domain.StateDone)
	result.Duration = time.Since(result.StartedAt)

	logger.Info("run completed",
		"fetched", result.Stats.Fetched,
		"normalized", result.Stats.Normalized,
		"enriched", result.Stats.Enriched,
		"dropped", result.Stats.Dropped,
		"stored", result.Stats.Stored,
		"duration", result.Duration,
	)

	return result, nil
}

// store hands the result to every sink; one failing sink does not stop the
// others.
func (p *Pipeline) store(ctx context.Context, result *domain.RunResult, logger *slog.Logger) error {
	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Store(ctx, result); err != nil {
			logger.Error("sink failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", sink.Name(), err))
			continue
		}
		logger.Debug("sink stored", "sink", sink.Name(), "rows", len(result.Articles))
	}
	return errors.Join(errs...)
}

func (p *Pipeline) noNews(result *domain.RunResult, logger *slog.Logger, attrs ...any) *domain.RunResult {
	result.NoNews = true
	result.Articles = []domain.Article{}
	p.setState(result, domain.StateDone)
	result.Duration = time.Since(result.StartedAt)

	attrs = append(attrs, "exhausted", result.Exhausted)
	logger.Warn("no news found", attrs...)
	return result
}

func (p *Pipeline) fail(result *domain.RunResult, logger *slog.Logger, err error) (*domain.RunResult, error) {
	p.setState(result, domain.StateFailed)
	result.Duration = time.Since(result.StartedAt)
	logger.Error("run failed", "error", err)
	return result, err
}
