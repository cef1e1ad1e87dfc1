package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock_news/internal/domain"
)

const (
	SinkName          = "mongodb"
	DefaultCollection = "news_articles"
)

// Document is the stored form of one article. URL is the natural key.
type Document struct {
	URL         string    `bson:"url"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Content     string    `bson:"content"`
	Source      string    `bson:"source"`
	Author      string    `bson:"author"`
	PublishedAt time.Time `bson:"publishedAt"`
	Queries     []string  `bson:"queries"`
	LastRunID   string    `bson:"lastRunId"`
	CreatedAt   time.Time `bson:"createdAt"`
	ModifiedAt  time.Time `bson:"modifiedAt"`
}

// Sink upserts each run's articles into a collection keyed by URL.
type Sink struct {
	col    *mongo.Collection
	now    func() time.Time
	logger *slog.Logger
}

func NewSink(ctx context.Context, db *mongo.Database, collection string, logger *slog.Logger) (*Sink, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	s := &Sink{
		col:    db.Collection(collection),
		now:    time.Now,
		logger: logger.With("sink", SinkName),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) Name() string {
	return SinkName
}

// ensureIndexes keeps one document per URL and orders reads by publish date.
func (s *Sink) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "publishedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "queries", Value: 1}},
		},
	}
	if _, err := s.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

func (s *Sink) Store(ctx context.Context, run *domain.RunResult) error {
	models := s.writeModels(run)
	if len(models) == 0 {
		return nil
	}

	res, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk upsert articles: %w", err)
	}

	s.logger.Debug("stored run",
		"run_id", run.RunID,
		"inserted", res.UpsertedCount,
		"modified", res.ModifiedCount,
	)
	return nil
}

func (s *Sink) writeModels(run *domain.RunResult) []mongo.WriteModel {
	now := s.now().UTC()
	seen := make(map[string]struct{}, len(run.Articles))
	models := make([]mongo.WriteModel, 0, len(run.Articles))

	for _, a := range run.Articles {
		if a.URL == "" {
			continue
		}
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}

		update := bson.M{
			"$set": bson.M{
				"title":       a.Title,
				"description": a.Description,
				"content":     a.Content,
				"source":      a.Source,
				"author":      a.Author,
				"publishedAt": a.Date,
				"lastRunId":   run.RunID,
				"modifiedAt":  now,
			},
			"$setOnInsert": bson.M{"createdAt": now},
			"$addToSet":    bson.M{"queries": run.Query},
		}

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": a.URL}).
			SetUpdate(update).
			SetUpsert(true))
	}

	return models
}

// FindByQuery returns the stored documents linked to query, newest first.
func (s *Sink) FindByQuery(ctx context.Context, query string, limit int64) ([]Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "publishedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.col.Find(ctx, bson.M{"queries": query}, opts)
	if err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}

	var docs []Document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	return docs, nil
}
