package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/OdaNilseng/FLSworkflow/internal/config"
	"github.com/OdaNilseng/FLSworkflow/pkg/api"
)

type (
	// RedisSink writes run snapshots to Redis as JSON documents, indexed
	// by creation time
	RedisSink struct {
		client *redis.Client
		prefix string
		ttl    time.Duration
	}

	// NopSink discards every snapshot
	NopSink struct{}
)

const (
	runKeyPart   = "run"
	indexKeyPart = "runs"
)

var (
	ErrClientRequired = errors.New("redis client is required")
	ErrRunNotFound    = errors.New("run not found")
	ErrSnapshotEncode = errors.New("failed to encode run snapshot")
	ErrSnapshotDecode = errors.New("failed to decode run snapshot")
)

// NewRedisClient creates a client for the configured Redis server
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisSink creates a sink writing under prefix. Snapshots expire after
// ttl, or never when ttl is zero
func NewRedisSink(
	client *redis.Client, prefix string, ttl time.Duration,
) (*RedisSink, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	return &RedisSink{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

// Persist stores the snapshot, replacing any earlier snapshot of the run
func (s *RedisSink) Persist(ctx context.Context, snap *api.RunSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotEncode, err)
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.runKey(snap.ID), data, s.ttl)
		p.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(snap.CreatedAt.UnixMilli()),
			Member: string(snap.ID),
		})
		return nil
	})
	return err
}

// Load returns the last snapshot stored for the run
func (s *RedisSink) Load(
	ctx context.Context, id api.RunID,
) (*api.RunSnapshot, error) {
	data, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	var snap api.RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotDecode, err)
	}
	return &snap, nil
}

// List returns the IDs of stored runs, oldest first
func (s *RedisSink) List(ctx context.Context) ([]api.RunID, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]api.RunID, len(ids))
	for i, id := range ids {
		res[i] = api.RunID(id)
	}
	return res, nil
}

// Delete removes the run's snapshot and its index entry
func (s *RedisSink) Delete(ctx context.Context, id api.RunID) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.runKey(id))
		p.ZRem(ctx, s.indexKey(), string(id))
		return nil
	})
	return err
}

func (s *RedisSink) runKey(id api.RunID) string {
	return s.prefix + ":" + runKeyPart + ":" + string(id)
}

func (s *RedisSink) indexKey() string {
	return s.prefix + ":" + indexKeyPart
}

// Persist does nothing
func (NopSink) Persist(context.Context, *api.RunSnapshot) error {
	return nil
}
