package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

const (
	redisKeyPrefix    = "docstore:"
	redisWriteRetries = 5
)

// RedisStore keeps each collection in a hash (field = child key, value = JSON
// document) and announces changes on a per-collection pub/sub channel.
type RedisStore struct {
	redis  *redis.Client
	logger *logging.Logger
}

// NewRedisStore wraps a go-redis client.
func NewRedisStore(client *redis.Client, logger *logging.Logger) *RedisStore {
	if client == nil {
		panic("docstore: redis client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisStore{redis: client, logger: logger.Component("docstore.redis")}
}

func (s *RedisStore) hashKey(collection string) string {
	return redisKeyPrefix + collection
}

// NewKey implements Store.
func (s *RedisStore) NewKey(ctx context.Context, path string) (string, error) {
	return newKey(ctx, path)
}

// Set implements Store. Nested writes run inside WATCH/MULTI so a concurrent
// write to the same collection forces a retry instead of a lost update.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	loc, err := parseDocument(path)
	if err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	hash := s.hashKey(loc.collection)

	if len(loc.nested) == 0 {
		_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, loc.key, []byte(data))
			pipe.Publish(ctx, channelFor(loc.collection), loc.key)
			return nil
		})
		if err != nil {
			return fmt.Errorf("docstore: redis set %s: %w", path, err)
		}
		return nil
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hash, loc.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		merged, err := mergeAt(current, loc.nested, data)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hash, loc.key, []byte(merged))
			pipe.Publish(ctx, channelFor(loc.collection), loc.key)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisWriteRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, hash)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("nested write lost race, retrying", "path", path, "attempt", attempt+1)
			continue
		}
		return fmt.Errorf("docstore: redis set %s: %w", path, err)
	}
	return fmt.Errorf("docstore: redis set %s: %w", path, ErrConflict)
}

// Snapshot loads the whole collection.
func (s *RedisStore) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	raw, err := s.redis.HGetAll(ctx, s.hashKey(collection)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("docstore: redis load %s: %w", collection, err)
	}
	docs := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		docs[key] = json.RawMessage(value)
	}
	return snapshotOf(collection, docs), nil
}

// Subscribe implements Store. The channel subscription is confirmed before
// the initial snapshot is read so no write falls between the two. The watch
// ends on Unsubscribe or when ctx is cancelled.
func (s *RedisStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	collection, err := parseCollection(path)
	if err != nil {
		return nil, err
	}

	pubsub := s.redis.Subscribe(ctx, channelFor(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("docstore: redis subscribe %s: %w", collection, err)
	}

	snap, err := s.Snapshot(ctx, collection)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	fn(snap)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{pubsub: pubsub, cancel: cancel, done: make(chan struct{})}
	messages := pubsub.Channel()
	go func() {
		defer close(sub.done)
		defer pubsub.Close()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				snap, err := s.Snapshot(subCtx, collection)
				if err != nil {
					if subCtx.Err() == nil {
						s.logger.Error("reload after change failed", "collection", collection, "error", err)
					}
					continue
				}
				fn(snap)
			}
		}
	}()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (r *redisSubscription) Unsubscribe() {
	r.once.Do(func() {
		r.cancel()
		_ = r.pubsub.Close()
		<-r.done
	})
}

var _ Store = (*RedisStore)(nil)
