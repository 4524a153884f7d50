package contingency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"facturasv/pkg/platform/sentinel"
)

const (
	// Per-taxpayer FIFO list of JSON entries.
	queueKeyPrefix = "contingency:queue:"
	// Sorted set of NITs with queued entries, scored by first-enqueue time so
	// Taxpayers drains the longest-waiting taxpayer first.
	taxpayerIndexKey = "contingency:taxpayers"
)

// RedisQueue is a Redis-backed contingency queue. Entries survive process
// restarts, which matters here more than anywhere else in the pipeline: the
// queue exists precisely because things are already going wrong.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode contingency entry: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, queueKeyPrefix+entry.TaxpayerNIT, raw)
	// NX keeps the original enqueue time when the taxpayer is already indexed.
	pipe.ZAddNX(ctx, taxpayerIndexKey, redis.Z{
		Score:  float64(entry.EnqueuedAt.UnixNano()),
		Member: entry.TaxpayerNIT,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue contingency entry: %w", err)
	}
	return nil
}

func (q *RedisQueue) Taxpayers(ctx context.Context) ([]string, error) {
	nits, err := q.client.ZRange(ctx, taxpayerIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list contingency taxpayers: %w", err)
	}
	return nits, nil
}

func (q *RedisQueue) Peek(ctx context.Context, nit string) (Entry, error) {
	raw, err := q.client.LIndex(ctx, queueKeyPrefix+nit, 0).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("peek contingency queue: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, fmt.Errorf("decode contingency entry: %w", err)
	}
	return entry, nil
}

func (q *RedisQueue) Ack(ctx context.Context, nit string) error {
	key := queueKeyPrefix + nit
	if _, err := q.client.LPop(ctx, key).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("ack contingency entry: %w", err)
	}

	// Drop the taxpayer from the index once its queue is empty.
	remaining, err := q.client.LLen(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check contingency queue length: %w", err)
	}
	if remaining == 0 {
		if err := q.client.ZRem(ctx, taxpayerIndexKey, nit).Err(); err != nil {
			return fmt.Errorf("unindex contingency taxpayer: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) Entries(ctx context.Context, nit string) ([]Entry, error) {
	raws, err := q.client.LRange(ctx, queueKeyPrefix+nit, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list contingency entries: %w", err)
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode contingency entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int, error) {
	nits, err := q.Taxpayers(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, nit := range nits {
		n, err := q.client.LLen(ctx, queueKeyPrefix+nit).Result()
		if err != nil {
			return 0, fmt.Errorf("contingency queue length: %w", err)
		}
		total += int(n)
	}
	return total, nil
}
