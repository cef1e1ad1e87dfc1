package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"stock_news/internal/analysis"
	"stock_news/internal/api"
	"stock_news/internal/config"
	"stock_news/internal/domain"
	"stock_news/internal/enrich"
	"stock_news/internal/extractor"
	"stock_news/internal/normalizer"
	"stock_news/internal/pipeline"
	"stock_news/internal/publisher"
	"stock_news/internal/report"
	"stock_news/internal/retry"
	"stock_news/internal/scheduler"
	"stock_news/internal/search"
	"stock_news/internal/source/newsapi"
	"stock_news/internal/storage/mongodb"
	"stock_news/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	query := flag.String("query", "", "run a single cycle for this query and exit")
	focus := flag.String("focus", "", "topic to focus the summary on (defaults to -query)")
	format := flag.String("format", "json", "single-cycle output format: json or markdown")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, *query, *focus, *format, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("pipeline error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, query, focus, format string, logger *slog.Logger) error {
	sinks, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	ext, closeExtractor, err := buildExtractor(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeExtractor()

	source := newsapi.New(newsapi.Config{
		BaseURL:        cfg.NewsAPI.BaseURL,
		APIKey:         cfg.NewsAPI.APIKey,
		Language:       cfg.NewsAPI.Language,
		SortBy:         cfg.NewsAPI.SortBy,
		PageSize:       cfg.NewsAPI.PageSize,
		MaxPages:       cfg.NewsAPI.MaxPages,
		Timeout:        cfg.NewsAPI.Timeout,
		FilterRelevant: cfg.NewsAPI.FilterRelevant,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.InitialBackoff,
			MaxDelay:    cfg.Retry.MaxBackoff,
		},
	}, logger)

	p := pipeline.New(
		source,
		normalizer.New(cfg.Pipeline.MaxArticles, logger),
		enrich.New(ext, cfg.Pipeline.EnrichConcurrency, logger),
		sinks,
		logger,
	)

	lookback := time.Duration(cfg.NewsAPI.LookbackDays) * 24 * time.Hour
	buildQuery := func(text string) domain.Query {
		return scheduler.BuildQuery(text, time.Now(), lookback)
	}

	if query == "" {
		sched := scheduler.NewScheduler(p, scheduler.Config{
			Interval: cfg.Schedule.Interval,
			Timeout:  cfg.Schedule.Timeout,
			Lookback: lookback,
			Queries:  cfg.Schedule.Queries,
		}, logger)

		logger.Info("starting stock news pipeline",
			"source", source.Name(),
			"interval", cfg.Schedule.Interval,
			"queries", cfg.Schedule.Queries,
			"sinks", cfg.Sinks,
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return sched.Start(gctx) })
		if cfg.HTTP.Addr != "" {
			server, err := buildServer(cfg, p, buildQuery, logger)
			if err != nil {
				return err
			}
			g.Go(func() error { return server.ListenAndServe(gctx, cfg.HTTP.Addr) })
		}
		return g.Wait()
	}

	result, err := p.Run(ctx, buildQuery(query))
	if err != nil {
		return err
	}
	if err := printResult(os.Stdout, result, format); err != nil {
		return err
	}

	if focus == "" {
		focus = query
	}
	return analyze(ctx, cfg, result, focus, logger)
}

func buildExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (extractor.Extractor, func(), error) {
	var ext extractor.Extractor = extractor.NewDiffbot(extractor.DiffbotConfig{
		BaseURL: cfg.Extractor.BaseURL,
		Token:   cfg.Extractor.Token,
		Timeout: cfg.Extractor.Timeout,
	}, logger)

	if cfg.Redis.URL == "" {
		return ext, func() {}, nil
	}

	rdb, err := extractor.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("extraction cache enabled", "ttl", cfg.Redis.TTL)

	cached := extractor.NewCached(ext, extractor.NewRedisStore(rdb), cfg.Redis.TTL, logger)
	return cached, func() { rdb.Close() }, nil
}

func buildSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Sink, func(), error) {
	var (
		sinks   []pipeline.Sink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkPostgres:
			db, err := postgres.Open(ctx, cfg.Database.DSN())
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { db.Close() })
			logger.Info("connected to database")
			sinks = append(sinks, postgres.NewSink(db, logger))

		case config.SinkRabbitMQ:
			rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
				URL:        cfg.RabbitMQ.URL,
				Exchange:   cfg.RabbitMQ.Exchange,
				RoutingKey: cfg.RabbitMQ.RoutingKey,
				QueueName:  cfg.RabbitMQ.QueueName,
			}, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { rabbitMQ.Close() })
			sinks = append(sinks, rabbitMQ)

		case config.SinkElasticsearch:
			indexer, err := search.NewIndexer(ctx, esConfig(cfg), logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, indexer)

		case config.SinkMongoDB:
			client, err := mongodb.Connect(ctx, cfg.MongoDB.URI)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { _ = client.Disconnect(context.Background()) })
			sink, err := mongodb.NewSink(ctx, client.Database(cfg.MongoDB.Database), cfg.MongoDB.Collection, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, sink)
		}
	}

	return sinks, closeAll, nil
}

// buildServer wires the control API. Search is served only when the
// Elasticsearch sink is configured and /ask only with an LLM key.
func buildServer(cfg *config.Config, p *pipeline.Pipeline, buildQuery func(string) domain.Query, logger *slog.Logger) (*api.Server, error) {
	var searcher api.Searcher
	if cfg.HasSink(config.SinkElasticsearch) {
		s, err := search.NewSearcher(esConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		searcher = s
	}

	var assistant api.Assistant
	if cfg.LLM.APIKey != "" {
		assistant = newAnalyzer(cfg, logger).NewConversation()
	}

	return api.NewServer(p, searcher, assistant, buildQuery, logger), nil
}

func newAnalyzer(cfg *config.Config, logger *slog.Logger) *analysis.Analyzer {
	return analysis.New(analysis.Config{
		APIKey:               cfg.LLM.APIKey,
		BaseURL:              cfg.LLM.BaseURL,
		Model:                cfg.LLM.Model,
		SummaryTemperature:   cfg.LLM.SummaryTemperature,
		SentimentTemperature: cfg.LLM.SentimentTemperature,
	}, logger)
}

func esConfig(cfg *config.Config) search.Config {
	return search.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		IndexName: cfg.Elasticsearch.IndexName,
		Refresh:   "wait_for",
	}
}

// analyze retrieves the best indexed match for focus and asks the LLM for a
// summary and a sentiment call. It is skipped without an index or API key.
func analyze(ctx context.Context, cfg *config.Config, result *domain.RunResult, focus string, logger *slog.Logger) error {
	if result.NoNews || cfg.LLM.APIKey == "" || !cfg.HasSink(config.SinkElasticsearch) {
		return nil
	}

	searcher, err := search.NewSearcher(esConfig(cfg), logger)
	if err != nil {
		return err
	}
	hits, err := searcher.Search(ctx, focus, cfg.LLM.SearchLimit)
	if err != nil {
		return err
	}

	text := search.ConcatContent(hits)
	analyzer := newAnalyzer(cfg, logger)

	summary, err := analyzer.Summarize(ctx, focus, text)
	if errors.Is(err, analysis.ErrNoContent) {
		logger.Warn("no indexed content to analyze", "focus", focus)
		return nil
	}
	if err != nil {
		return err
	}
	sentiment, err := analyzer.Sentiment(ctx, text)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nSummary:\n%s\n\nSentiment:\n%s\n", summary, sentiment)
	return nil
}

func printResult(w io.Writer, result *domain.RunResult, format string) error {
	if format == "markdown" {
		_, err := fmt.Fprintf(w, "run %s query=%q state=%s rows=%d no_news=%t\n\n%s",
			result.RunID, result.Query, result.State, len(result.Articles), result.NoNews,
			report.Markdown(result.Table(), report.DefaultCellWidth))
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		RunID     string          `json:"run_id"`
		Query     string          `json:"query"`
		State     domain.State    `json:"state"`
		NoNews    bool            `json:"no_news"`
		Exhausted bool            `json:"exhausted"`
		Stats     domain.RunStats `json:"stats"`
		Table     domain.Table    `json:"table"`
	}{
		RunID:     result.RunID,
		Query:     result.Query,
		State:     result.State,
		NoNews:    result.NoNews,
		Exhausted: result.Exhausted,
		Stats:     result.Stats,
		Table:     result.Table(),
	})
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}
