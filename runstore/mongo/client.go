// Package mongo hosts the MongoDB client used by the Run Store.
package mongo

import (
	"context"
	"errors"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"dagforge.dev/dagforge/run"
)

const (
	defaultRunsCollection = "dagforge_runs"
	defaultOpTimeout      = 5 * time.Second
)

// Client exposes Mongo-backed operations for run records.
type Client interface {
	Ping(ctx context.Context) error
	UpsertRun(ctx context.Context, rec run.Record) error
	LoadRun(ctx context.Context, runID string) (run.Record, error)
}

// Options configures the Mongo run client.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New returns a Client backed by MongoDB, ensuring a unique index on run_id.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultRunsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(coll)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	index := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := mcoll.Indexes().CreateOne(ctx, index); err != nil {
		return nil, err
	}
	return &client{mongo: opts.Client, coll: mcoll, timeout: timeout}, nil
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, nil)
}

func (c *client) UpsertRun(ctx context.Context, rec run.Record) error {
	if rec.RunID == "" {
		return errors.New("run id is required")
	}
	now := time.Now().UTC()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}
	doc := fromRecord(rec)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"run_id": rec.RunID}
	// started_at is written only on insert, so later upserts keep the
	// original start time; MongoDB rejects an update naming one path in
	// both $set and $setOnInsert.
	update := bson.M{
		"$set": bson.M{
			"run_id":   doc.RunID,
			"agent_id": doc.AgentID,
			"status":   doc.Status,
			"ended_at": doc.EndedAt,
			"labels":   doc.Labels,
			"error":    doc.Error,
		},
		"$setOnInsert": bson.M{
			"started_at": doc.StartedAt,
		},
	}
	_, err := c.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (c *client) LoadRun(ctx context.Context, runID string) (run.Record, error) {
	if runID == "" {
		return run.Record{}, errors.New("run id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var doc runDocument
	err := c.coll.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return run.Record{}, run.ErrNotFound
	}
	if err != nil {
		return run.Record{}, err
	}
	return doc.toRecord(), nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type runDocument struct {
	RunID     string            `bson:"run_id"`
	AgentID   string            `bson:"agent_id"`
	Status    run.Status        `bson:"status"`
	StartedAt time.Time         `bson:"started_at"`
	EndedAt   time.Time         `bson:"ended_at,omitempty"`
	Labels    map[string]string `bson:"labels,omitempty"`
	Error     string            `bson:"error,omitempty"`
}

func fromRecord(rec run.Record) runDocument {
	return runDocument{
		RunID:     rec.RunID,
		AgentID:   rec.AgentID,
		Status:    rec.Status,
		StartedAt: rec.StartedAt.UTC(),
		EndedAt:   rec.EndedAt.UTC(),
		Labels:    cloneLabels(rec.Labels),
		Error:     rec.Error,
	}
}

func (doc runDocument) toRecord() run.Record {
	return run.Record{
		RunID:     doc.RunID,
		AgentID:   doc.AgentID,
		Status:    doc.Status,
		StartedAt: doc.StartedAt,
		EndedAt:   doc.EndedAt,
		Labels:    cloneLabels(doc.Labels),
		Error:     doc.Error,
	}
}

func cloneLabels(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
