package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"stock_news/internal/domain"
)

type RunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) Get(ctx context.Context, query string) (*domain.RunState, error) {
	var state domain.RunState
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, `
		SELECT id, query, last_run_id, last_run_at, total_stored
		FROM run_state
		WHERE query = $1`, query)
	if errors.Is(err, sql.ErrNoRows) {
		// Never run before.
		return &domain.RunState{Query: query}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RunStore) Update(ctx context.Context, state *domain.RunState) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO run_state (query, last_run_id, last_run_at, total_stored)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (query) DO UPDATE SET
			last_run_id = EXCLUDED.last_run_id,
			last_run_at = EXCLUDED.last_run_at,
			total_stored = EXCLUDED.total_stored`,
		state.Query,
		state.LastRunID,
		state.LastRunAt,
		state.TotalStored,
	)
	return err
}
