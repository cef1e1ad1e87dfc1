package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"stock_news/internal/domain"
)

const SinkName = "elasticsearch"

// Indexer is the sink that makes a run's rows searchable.
type Indexer struct {
	client    *elasticsearch.TypedClient
	indexName string
	refresh   string
	logger    *slog.Logger
}

func NewIndexer(ctx context.Context, cfg Config, logger *slog.Logger) (*Indexer, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	idx := &Indexer{
		client:    client,
		indexName: indexName(cfg),
		refresh:   cfg.Refresh,
		logger:    logger.With("sink", SinkName, "index", indexName(cfg)),
	}

	if err := idx.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure index: %w", err)
	}

	return idx, nil
}

func (e *Indexer) Name() string {
	return SinkName
}

func (e *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := e.client.Indices.Exists(e.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	if exists {
		e.logger.Debug("index already exists")
		return nil
	}

	mappings := buildMapping()
	res, err := e.client.Indices.Create(e.indexName).
		Mappings(&mappings).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("index creation was not acknowledged")
	}

	e.logger.Info("index created")
	return nil
}

func (e *Indexer) Store(ctx context.Context, run *domain.RunResult) error {
	if len(run.Articles) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      e.indexName,
		Client:     e.client,
		NumWorkers: 1,
		Refresh:    e.refresh,
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	var failed atomic.Int64

	for _, a := range run.Articles {
		doc := toDocument(run, a)

		body, err := json.Marshal(doc)
		if err != nil {
			failed.Add(1)
			e.logger.Error("marshal document", "error", err, "url", a.URL)
			continue
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
				if err != nil {
					e.logger.Error("bulk index error", "error", err, "id", item.DocumentID)
					return
				}
				e.logger.Error("bulk index error",
					"status", res.Status,
					"type", res.Error.Type,
					"reason", res.Error.Reason,
					"id", item.DocumentID,
				)
			},
		})
		if err != nil {
			failed.Add(1)
			e.logger.Error("add document to bulk indexer", "error", err, "id", doc.ID)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("close bulk indexer: %w", err)
	}

	stats := bi.Stats()
	e.logger.Debug("bulk indexing completed",
		"run_id", run.RunID,
		"indexed", stats.NumIndexed,
		"failed", failed.Load(),
	)

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("failed to index %d of %d articles", n, len(run.Articles))
	}
	return nil
}
