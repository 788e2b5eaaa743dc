package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/safar/sellanything/internal/config"
)

const (
	// doc:{collection}:{id} -> document json
	keyDoc = "doc:%s:%s"
	// docs:{collection}:order -> sorted set of ids scored by insertion sequence
	keyDocsOrder = "docs:%s:order"
	// idx:{name} -> sorted set of ids scored by insertion sequence
	keyIndex = "idx:%s"
	keySeq   = "docs:seq"

	defaultRedisPingTimeout = 2 * time.Second
	maxUpdateAttempts       = 5
)

func docKey(collection, id string) string {
	return fmt.Sprintf(keyDoc, collection, id)
}

func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultRedisPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Redis stores each document under its own key next to a per-collection
// sorted set that records insertion order.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	data, err := r.rdb.Get(ctx, docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return data, nil
}

func (r *Redis) Scan(ctx context.Context, collection string) ([]json.RawMessage, error) {
	ids, err := r.rdb.ZRange(ctx, fmt.Sprintf(keyDocsOrder, collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s order: %w", collection, err)
	}
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(collection, id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}

	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, json.RawMessage(s))
	}
	return out, nil
}

func (r *Redis) nextSeq(ctx context.Context) (float64, error) {
	n, err := r.rdb.Incr(ctx, keySeq).Result()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return float64(n), nil
}

func (r *Redis) write(ctx context.Context, collection, id string, data []byte) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, id), data, 0)
		pipe.ZAddNX(ctx, fmt.Sprintf(keyDocsOrder, collection), redis.Z{Score: seq, Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *Redis) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	data, err := withID(doc, id)
	if err != nil {
		return "", err
	}
	if err := r.write(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) Put(ctx context.Context, collection, id string, doc any) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	return r.write(ctx, collection, id, data)
}

// Update merges fields under WATCH on the document's own key, so writes to
// other documents never interfere. When the same document changes between
// the read and the write, the merge is retried on the newer version.
func (r *Redis) Update(ctx context.Context, collection, id string, fields Fields) error {
	key := docKey(collection, id)

	merge := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		merged, err := mergeFields(doc, fields)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = r.rdb.Watch(ctx, merge, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, collection, id string) error {
	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, docKey(collection, id))
		pipe.ZRem(ctx, fmt.Sprintf(keyDocsOrder, collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) AddToIndex(ctx context.Context, name, id string) error {
	seq, err := r.nextSeq(ctx)
	if err != nil {
		return err
	}
	if err := r.rdb.ZAddNX(ctx, fmt.Sprintf(keyIndex, name), redis.Z{Score: seq, Member: id}).Err(); err != nil {
		return fmt.Errorf("index %s add %s: %w", name, id, err)
	}
	return nil
}

func (r *Redis) RemoveFromIndex(ctx context.Context, name, id string) error {
	if err := r.rdb.ZRem(ctx, fmt.Sprintf(keyIndex, name), id).Err(); err != nil {
		return fmt.Errorf("index %s remove %s: %w", name, id, err)
	}
	return nil
}

func (r *Redis) IndexMembers(ctx context.Context, name string) ([]string, error) {
	ids, err := r.rdb.ZRange(ctx, fmt.Sprintf(keyIndex, name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("index %s members: %w", name, err)
	}
	return ids, nil
}
