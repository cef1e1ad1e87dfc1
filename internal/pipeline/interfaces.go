package pipeline

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"stock_news/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	FetchArticles(ctx context.Context, query domain.Query) ([]domain.RawArticle, error)
}

type Normalizer interface {
	Normalize(raw []domain.RawArticle) []domain.Article
}

type Enricher interface {
	Enrich(ctx context.Context, articles []domain.Article) ([]domain.Article, int)
}

// Sink receives the finished table of a cycle.
type Sink interface {
	Name() string
	Store(ctx context.Context, run *domain.RunResult) error
}
