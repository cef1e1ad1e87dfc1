package search

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultIndexName = "news_search"

type Config struct {
	Addresses []string
	Username  string
	Password  string
	IndexName string
	// Refresh is passed to bulk requests, e.g. "wait_for" when callers need
	// documents searchable as soon as Store returns.
	Refresh string
}

func newClient(cfg Config) (*elasticsearch.TypedClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

func indexName(cfg Config) string {
	if cfg.IndexName == "" {
		return DefaultIndexName
	}
	return cfg.IndexName
}
