package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xxxsen/bingio/internal/conversation"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
)

const defaultRedisKey = "bingio:conversation"

type redisConfig struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	TTLHours int64  `json:"ttl_hours"`
}

type redisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func init() {
	Register("redis", createRedisStore)
}

func createRedisStore(args interface{}) (conversation.SnapshotStorage, error) {
	cfg := &redisConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis snapshot store url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	key := cfg.Key
	if key == "" {
		key = defaultRedisKey
	}
	return NewRedis(redis.NewClient(opts), key, time.Duration(cfg.TTLHours)*time.Hour), nil
}

// NewRedis stores the snapshot under key. A zero ttl keeps it forever.
func NewRedis(client *redis.Client, key string, ttl time.Duration) conversation.SnapshotStorage {
	return &redisStore{client: client, key: key, ttl: ttl}
}

func (s *redisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *redisStore) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}
