package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"stock_news/internal/domain"
)

const SinkName = "postgres"

// Sink writes a run's table, its query links and the per-query run state in
// one transaction.
type Sink struct {
	articles  *ArticleStore
	tags      *QueryTagStore
	runs      *RunStore
	txManager *TransactionManager
	logger    *slog.Logger
}

func NewSink(db *sqlx.DB, logger *slog.Logger) *Sink {
	return &Sink{
		articles:  NewArticleStore(db),
		tags:      NewQueryTagStore(db),
		runs:      NewRunStore(db),
		txManager: NewTransactionManager(db),
		logger:    logger.With("sink", SinkName),
	}
}

func (s *Sink) Name() string {
	return SinkName
}

func (s *Sink) Store(ctx context.Context, run *domain.RunResult) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		ids, err := s.articles.SaveBatch(txCtx, run.RunID, run.Articles)
		if err != nil {
			return fmt.Errorf("save articles: %w", err)
		}

		tagID, err := s.tags.Upsert(txCtx, run.Query)
		if err != nil {
			return fmt.Errorf("upsert query tag: %w", err)
		}
		if err := s.tags.LinkArticles(txCtx, tagID, ids); err != nil {
			return fmt.Errorf("link query tag: %w", err)
		}

		state, err := s.runs.Get(txCtx, run.Query)
		if err != nil {
			return fmt.Errorf("get run state: %w", err)
		}
		state.LastRunID = run.RunID
		state.LastRunAt = run.StartedAt
		state.TotalStored += int64(len(run.Articles))
		if err := s.runs.Update(txCtx, state); err != nil {
			return fmt.Errorf("update run state: %w", err)
		}

		s.logger.Debug("stored run", "run_id", run.RunID, "rows", len(ids))
		return nil
	})
}
