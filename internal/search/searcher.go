package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"stock_news/internal/domain"
)

const DefaultLimit = 1

// searchFields are matched against the query; content dominates.
var searchFields = []string{"content^2", "title", "description"}

type Searcher struct {
	client    *elasticsearch.TypedClient
	indexName string
	logger    *slog.Logger
}

func NewSearcher(cfg Config, logger *slog.Logger) (*Searcher, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Searcher{
		client:    client,
		indexName: indexName(cfg),
		logger:    logger.With("component", "searcher", "index", indexName(cfg)),
	}, nil
}

// Search returns up to limit indexed articles ranked by relevance to text.
func (s *Searcher) Search(ctx context.Context, text string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	res, err := s.client.Search().
		Index(s.indexName).
		Query(&types.Query{
			MultiMatch: &types.MultiMatchQuery{
				Query:  text,
				Fields: searchFields,
			},
		}).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := make([]domain.Article, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc ArticleDocument
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
		out = append(out, doc.toDomain())
	}

	s.logger.Debug("search completed", "query", text, "hits", len(out))
	return out, nil
}
