package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix     = "ingest:status:"
	collectionKeyPrefix = "ingest:collection:"
)

// RedisStatusStore keeps ingestion status in Redis so several API replicas
// can report progress for jobs running on any of them.
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusStore connects to Redis and verifies the connection.
// A zero ttl keeps entries forever.
func NewRedisStatusStore(ctx context.Context, addr, password string, ttl time.Duration) (*RedisStatusStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStatusStore{client: client, ttl: ttl}, nil
}

func statusKey(documentID string) string {
	return statusKeyPrefix + documentID
}

func collectionKey(collection string) string {
	return collectionKeyPrefix + collection
}

// Save stores the status as JSON and indexes it under its collection.
func (s *RedisStatusStore) Save(ctx context.Context, status *IngestStatus) error {
	if status.DocumentID == "" {
		return errors.New("document id is required")
	}
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode ingest status: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, statusKey(status.DocumentID), data, s.ttl)
	if status.Collection != "" {
		pipe.SAdd(ctx, collectionKey(status.Collection), status.DocumentID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save ingest status: %w", err)
	}
	return nil
}

// Get returns the status of a document.
func (s *RedisStatusStore) Get(ctx context.Context, documentID string) (*IngestStatus, error) {
	data, err := s.client.Get(ctx, statusKey(documentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest status: %w", err)
	}

	var status IngestStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode ingest status: %w", err)
	}
	return &status, nil
}

// ListByCollection returns the statuses indexed under a collection. Members
// whose status expired are skipped.
func (s *RedisStatusStore) ListByCollection(ctx context.Context, collection string) ([]*IngestStatus, error) {
	ids, err := s.client.SMembers(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest status: %w", err)
	}
	sort.Strings(ids)

	var out []*IngestStatus
	for _, id := range ids {
		status, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status.Collection != collection {
			continue
		}
		out = append(out, status)
	}
	return out, nil
}

// Close releases the Redis connection pool.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}
