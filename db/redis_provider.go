package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mezonai/simplewallet/logx"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisProvider implements IterableProvider for Redis. Batches run as
// MULTI/EXEC so a batch is applied all or nothing.
type RedisProvider struct {
	client *redis.Client
}

// NewRedisProvider connects to address and checks the connection
func NewRedisProvider(address string, database int) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr: address,
		DB:   database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisProvider{client: client}, nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (p *RedisProvider) Get(key []byte) ([]byte, error) {
	ctx, cancel := opContext()
	defer cancel()

	value, err := p.client.Get(ctx, string(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return value, nil
}

func (p *RedisProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	ctx, cancel := opContext()
	defer cancel()

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}
	values, err := p.client.MGet(ctx, names...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[names[i]] = []byte(s)
		}
	}
	return result, nil
}

func (p *RedisProvider) Put(key, value []byte) error {
	ctx, cancel := opContext()
	defer cancel()
	logx.Debug("REDIS", "Put key:", string(key), "value length:", len(value))
	return p.client.Set(ctx, string(key), value, 0).Err()
}

func (p *RedisProvider) Delete(key []byte) error {
	ctx, cancel := opContext()
	defer cancel()
	return p.client.Del(ctx, string(key)).Err()
}

func (p *RedisProvider) Has(key []byte) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()
	count, err := p.client.Exists(ctx, string(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

func (p *RedisProvider) Batch() DatabaseBatch {
	return &RedisBatch{
		client: p.client,
		pipe:   p.client.TxPipeline(),
	}
}

// IteratePrefix uses SCAN; ordering across keys is not guaranteed
func (p *RedisProvider) IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	ctx := context.Background()
	pattern := string(prefix) + "*"
	var cursor uint64
	for {
		keys, newCursor, err := p.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return err
		}
		cursor = newCursor
		for _, k := range keys {
			val, err := p.client.Get(ctx, k).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return err
			}
			if !fn([]byte(k), val) {
				return nil
			}
		}
		if cursor == 0 {
			break
		}
	}
	return nil
}

// RedisBatch implements DatabaseBatch on a MULTI/EXEC pipeline
type RedisBatch struct {
	client *redis.Client
	pipe   redis.Pipeliner
}

func (b *RedisBatch) Put(key, value []byte) {
	b.pipe.Set(context.Background(), string(key), value, 0)
}

func (b *RedisBatch) Delete(key []byte) {
	b.pipe.Del(context.Background(), string(key))
}

func (b *RedisBatch) Write() error {
	if b.pipe.Len() == 0 {
		return nil
	}
	ctx, cancel := opContext()
	defer cancel()
	_, err := b.pipe.Exec(ctx)
	return err
}

func (b *RedisBatch) Reset() {
	b.pipe.Discard()
	b.pipe = b.client.TxPipeline()
}

func (b *RedisBatch) Close() error {
	b.pipe.Discard()
	return nil
}
