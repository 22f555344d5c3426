package mongo

import (
	"context"
	"errors"

	"dagforge.dev/dagforge/run"
)

// StoreOptions configures the Mongo-backed run.Store.
type StoreOptions struct {
	Client Client
}

// Store implements run.Store by delegating to the Mongo client.
type Store struct {
	client Client
}

// NewStore builds a Store using the provided client.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo instantiates the Store by constructing the underlying
// client from connection options.
func NewStoreFromMongo(opts Options) (*Store, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(StoreOptions{Client: c})
}

// Upsert implements run.Store.
func (s *Store) Upsert(ctx context.Context, rec run.Record) error {
	return s.client.UpsertRun(ctx, rec)
}

// Load implements run.Store.
func (s *Store) Load(ctx context.Context, runID string) (run.Record, error) {
	return s.client.LoadRun(ctx, runID)
}
