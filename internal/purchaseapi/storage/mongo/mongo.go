// internal/purchaseapi/storage/mongo/mongo.go
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/purchase-pipeline/internal/purchaseapi/storage"
	"github.com/YaganovValera/purchase-pipeline/pkg/backoff"
	"github.com/YaganovValera/purchase-pipeline/pkg/logger"
)

var (
	mongoMetrics = struct {
		InsertErrors prometheus.Counter
		QueryErrors  prometheus.Counter
		OpLatency    prometheus.Histogram
	}{
		InsertErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "mongo", Name: "insert_errors_total",
			Help: "Unexpected MongoDB insert errors (duplicates excluded)",
		}),
		QueryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "pipeline", Subsystem: "mongo", Name: "query_errors_total",
			Help: "MongoDB query errors",
		}),
		OpLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pipeline", Subsystem: "mongo", Name: "operation_latency_seconds",
			Help:    "Latency of MongoDB operations",
			Buckets: prometheus.DefBuckets,
		}),
	}
	tracer = otel.Tracer("mongo-store")
)

// Config хранит параметры подключения к MongoDB.
type Config struct {
	URI        string         `mapstructure:"uri"`
	Database   string         `mapstructure:"database"`
	Collection string         `mapstructure:"collection"`
	Timeout    time.Duration  `mapstructure:"timeout"`
	Backoff    backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "purchases_db"
	}
	if c.Collection == "" {
		c.Collection = "purchases"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c Config) validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongo: URI required")
	}
	return nil
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *logger.Logger
}

// New подключается к MongoDB (один клиент на процесс, с ретраями) и
// создаёт индекс (userId asc, timestamp desc) под выборку read-path'а:
// благодаря этому вставка и вторичный индекс видны читателям атомарно.
func New(ctx context.Context, cfg Config, log *logger.Logger) (storage.Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("mongo")

	var client *mongo.Client
	connect := func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		c, err := mongo.Connect(opCtx, options.Client().ApplyURI(cfg.URI))
		if err != nil {
			return err
		}
		if err := c.Ping(opCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(opCtx)
			return err
		}
		client = c
		return nil
	}

	ctxConn, span := tracer.Start(ctx, "Connect", trace.WithAttributes(attribute.String("database", cfg.Database)))
	if err := backoff.Execute(ctxConn, cfg.Backoff, log, connect); err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	span.End()

	coll := client.Database(cfg.Database).Collection(cfg.Collection)

	// Индекс под запрос «покупки пользователя, новые сверху».
	// Уникальность eventId обеспечивает сам _id.
	idxCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "userId", Value: 1},
			{Key: "timestamp", Value: -1},
		},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: create index: %w", err)
	}

	log.Info("mongo: connected",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)
	return &mongoStore{client: client, coll: coll, log: log}, nil
}

// InsertIfAbsent вставляет документ с _id = eventId.
// Дубликат ключа — штатный исход (AlreadyPresent), не ошибка.
func (s *mongoStore) InsertIfAbsent(ctx context.Context, doc storage.PurchaseDocument) (storage.Outcome, error) {
	ctxOp, span := tracer.Start(ctx, "InsertIfAbsent",
		trace.WithAttributes(attribute.String("event_id", doc.EventID)))
	defer span.End()

	start := time.Now()
	_, err := s.coll.InsertOne(ctxOp, doc)
	mongoMetrics.OpLatency.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		s.log.WithContext(ctx).Debug("purchase inserted", zap.String("event_id", doc.EventID))
		return storage.Inserted, nil
	case mongo.IsDuplicateKeyError(err):
		s.log.WithContext(ctx).Debug("duplicate event ignored", zap.String("event_id", doc.EventID))
		return storage.AlreadyPresent, nil
	default:
		mongoMetrics.InsertErrors.Inc()
		span.RecordError(err)
		s.log.WithContext(ctx).Error("insert failed",
			zap.String("event_id", doc.EventID),
			zap.Error(err),
		)
		return storage.Failed, fmt.Errorf("mongo: insert %s: %w", doc.EventID, err)
	}
}

// ListByUser возвращает покупки пользователя, новые сверху.
func (s *mongoStore) ListByUser(ctx context.Context, userID string) ([]storage.PurchaseDocument, error) {
	ctxOp, span := tracer.Start(ctx, "ListByUser",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cur, err := s.coll.Find(ctxOp, bson.D{{Key: "userId", Value: userID}}, opts)
	if err != nil {
		mongoMetrics.QueryErrors.Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("mongo: find by user: %w", err)
	}
	defer cur.Close(ctxOp)

	docs := make([]storage.PurchaseDocument, 0)
	if err := cur.All(ctxOp, &docs); err != nil {
		mongoMetrics.QueryErrors.Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("mongo: decode results: %w", err)
	}
	return docs, nil
}

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
