package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

const (
	documentsTable = "documents"
	// NotifyChannel is the LISTEN/NOTIFY channel carrying changed collection names.
	NotifyChannel = "docstore_changes"
)

var pg = goqu.Dialect("postgres")

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Notifier delivers NOTIFY payloads for a channel until ctx ends.
type Notifier interface {
	Listen(ctx context.Context, channel string, fn func(payload string)) error
}

// PostgresStore keeps documents as jsonb rows keyed by (collection, key) and
// announces every write with pg_notify.
type PostgresStore struct {
	pool     PgxPool
	notifier Notifier
	logger   *logging.Logger
	retry    time.Duration
}

// NewPostgresStore builds a store on a pgx pool. notifier may be nil, in
// which case subscriptions only receive their initial snapshot.
func NewPostgresStore(pool PgxPool, notifier Notifier, logger *logging.Logger) *PostgresStore {
	if pool == nil {
		panic("docstore: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{
		pool:     pool,
		notifier: notifier,
		logger:   logger.Component("docstore.postgres"),
		retry:    time.Second,
	}
}

// NewKey implements Store.
func (s *PostgresStore) NewKey(ctx context.Context, path string) (string, error) {
	return newKey(ctx, path)
}

// Set implements Store. The row is locked for nested writes so concurrent
// appends under the same document serialize.
func (s *PostgresStore) Set(ctx context.Context, path string, value any) error {
	loc, err := parseDocument(path)
	if err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("docstore: postgres begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	body := data
	if len(loc.nested) > 0 {
		current, err := s.lockDocument(ctx, tx, loc)
		if err != nil {
			return err
		}
		if body, err = mergeAt(current, loc.nested, data); err != nil {
			return err
		}
	}

	upsert, args, err := pg.Insert(documentsTable).
		Rows(goqu.Record{
			"collection": loc.collection,
			"key":        loc.key,
			"body":       string(body),
			"updated_at": goqu.L("now()"),
		}).
		OnConflict(goqu.DoUpdate("collection, key", goqu.Record{
			"body":       goqu.L("EXCLUDED.body"),
			"updated_at": goqu.L("now()"),
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("docstore: build upsert: %w", err)
	}
	if _, err := tx.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("docstore: postgres upsert %s: %w", path, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, loc.collection); err != nil {
		return fmt.Errorf("docstore: postgres notify %s: %w", loc.collection, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("docstore: postgres commit %s: %w", path, err)
	}
	return nil
}

func (s *PostgresStore) lockDocument(ctx context.Context, tx pgx.Tx, loc location) (json.RawMessage, error) {
	query, args, err := pg.From(documentsTable).
		Select("body").
		Where(goqu.Ex{"collection": loc.collection, "key": loc.key}).
		ForUpdate(exp.Wait).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("docstore: build lock query: %w", err)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: postgres lock %s/%s: %w", loc.collection, loc.key, err)
	}
	defer rows.Close()

	var body []byte
	if rows.Next() {
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("docstore: postgres scan %s/%s: %w", loc.collection, loc.key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: postgres lock %s/%s: %w", loc.collection, loc.key, err)
	}
	return body, nil
}

// Snapshot loads the whole collection ordered by key.
func (s *PostgresStore) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	query, args, err := pg.From(documentsTable).
		Select("key", "body").
		Where(goqu.Ex{"collection": collection}).
		Order(goqu.I("key").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return Snapshot{}, fmt.Errorf("docstore: build snapshot query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Snapshot{}, fmt.Errorf("docstore: postgres load %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var key string
		var body []byte
		if err := rows.Scan(&key, &body); err != nil {
			return Snapshot{}, fmt.Errorf("docstore: postgres scan %s: %w", collection, err)
		}
		docs[key] = json.RawMessage(body)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("docstore: postgres load %s: %w", collection, err)
	}
	return snapshotOf(collection, docs), nil
}

// Subscribe implements Store.
func (s *PostgresStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	collection, err := parseCollection(path)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	fn(snap)

	subCtx, cancel := context.WithCancel(ctx)
	sub := &cancelSubscription{cancel: cancel, done: make(chan struct{})}
	if s.notifier == nil {
		close(sub.done)
		return sub, nil
	}

	go func() {
		defer close(sub.done)
		for subCtx.Err() == nil {
			err := s.notifier.Listen(subCtx, NotifyChannel, func(payload string) {
				if payload != collection {
					return
				}
				snap, err := s.Snapshot(subCtx, collection)
				if err != nil {
					s.logger.Error("reload after change failed", "collection", collection, "error", err)
					return
				}
				fn(snap)
			})
			if err == nil || subCtx.Err() != nil {
				return
			}
			s.logger.Warn("listen interrupted, reconnecting", "collection", collection, "error", err)
			select {
			case <-subCtx.Done():
				return
			case <-time.After(s.retry):
			}
		}
	}()
	return sub, nil
}

// cancelSubscription stops a background watch goroutine and waits for it.
type cancelSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (c *cancelSubscription) Unsubscribe() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}

// PoolNotifier listens on a dedicated pooled connection.
type PoolNotifier struct {
	Pool *pgxpool.Pool
}

// Listen implements Notifier.
func (n PoolNotifier) Listen(ctx context.Context, channel string, fn func(payload string)) error {
	conn, err := n.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("docstore: acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("docstore: listen %s: %w", channel, err)
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("docstore: wait for notification: %w", err)
		}
		fn(notification.Payload)
	}
}

var _ Store = (*PostgresStore)(nil)
