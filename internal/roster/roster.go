// Package roster keeps read-only, last-snapshot-wins copies of store
// collections for the request path.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wolfman30/opd-frontdesk/internal/docstore"
	"github.com/wolfman30/opd-frontdesk/pkg/logging"
)

// Cell holds the latest snapshot. One writer replaces it wholesale; readers
// load it once per operation and must not mutate the returned slice.
type Cell[T any] struct {
	items atomic.Pointer[[]T]
}

// Load returns the current snapshot, or nil before the first Store.
func (c *Cell[T]) Load() []T {
	if p := c.items.Load(); p != nil {
		return *p
	}
	return nil
}

// Store replaces the snapshot.
func (c *Cell[T]) Store(items []T) {
	c.items.Store(&items)
}

// Decoder turns one collection child into a roster entry.
type Decoder[T any] func(child docstore.Child) (T, error)

// RefreshHook observes each applied snapshot.
type RefreshHook func(collection string, size int)

// Watcher subscribes to one collection and mirrors it into a Cell.
type Watcher[T any] struct {
	Cell[T]

	store   docstore.Store
	path    string
	decode  Decoder[T]
	logger  *logging.Logger
	onApply RefreshHook

	mu  sync.Mutex
	sub docstore.Subscription
}

// Option customizes a Watcher.
type Option func(*options)

type options struct {
	logger  *logging.Logger
	onApply RefreshHook
}

// WithLogger sets the watcher logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRefreshHook registers a callback run after each snapshot is applied.
func WithRefreshHook(fn RefreshHook) Option {
	return func(o *options) { o.onApply = fn }
}

// NewWatcher builds an idle watcher; call Start to begin mirroring.
func NewWatcher[T any](store docstore.Store, path string, decode Decoder[T], opts ...Option) *Watcher[T] {
	if store == nil {
		panic("roster: store required")
	}
	if decode == nil {
		panic("roster: decoder required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	return &Watcher[T]{
		store:   store,
		path:    path,
		decode:  decode,
		logger:  o.logger.Component("roster").With("collection", path),
		onApply: o.onApply,
	}
}

// ErrAlreadyStarted is returned when Start is called twice without Stop.
var ErrAlreadyStarted = errors.New("roster: watcher already started")

// Start subscribes to the collection. The initial snapshot is applied before
// Start returns.
func (w *Watcher[T]) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		return ErrAlreadyStarted
	}
	sub, err := w.store.Subscribe(ctx, w.path, w.apply)
	if err != nil {
		return fmt.Errorf("roster: subscribe %s: %w", w.path, err)
	}
	w.sub = sub
	w.logger.Info("roster watch started", "size", len(w.Load()))
	return nil
}

// Stop ends the subscription. The last snapshot stays readable.
func (w *Watcher[T]) Stop() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
		w.logger.Info("roster watch stopped")
	}
}

func (w *Watcher[T]) apply(snap docstore.Snapshot) {
	items := make([]T, 0, snap.Len())
	for _, child := range snap.Children {
		item, err := w.decode(child)
		if err != nil {
			w.logger.Warn("skipping undecodable entry", "key", child.Key, "error", err)
			continue
		}
		items = append(items, item)
	}
	w.Store(items)
	if w.onApply != nil {
		w.onApply(w.path, len(items))
	}
}
