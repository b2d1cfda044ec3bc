package docstore

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store. Listeners run synchronously on the
// writing goroutine after the write is visible, one delivery at a time and in
// write order. A listener must not write to the store.
type MemoryStore struct {
	deliver     sync.Mutex
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
	listeners   map[string]map[int]Listener
	nextID      int
	keyFunc     func(ctx context.Context, path string) (string, error)
}

// MemoryOption customizes a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithKeyFunc overrides key allocation.
func WithKeyFunc(fn func(ctx context.Context, path string) (string, error)) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.keyFunc = fn
		}
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		listeners:   make(map[string]map[int]Listener),
		keyFunc:     newKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error) {
	collection, err := parseCollection(path)
	if err != nil {
		return nil, err
	}

	s.deliver.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.listeners[collection] == nil {
		s.listeners[collection] = make(map[int]Listener)
	}
	s.listeners[collection][id] = fn
	snap := snapshotOf(collection, s.collections[collection])
	s.mu.Unlock()

	fn(snap)
	s.deliver.Unlock()
	sub := &memorySubscription{store: s, collection: collection, id: id, stop: make(chan struct{})}
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Unsubscribe()
			case <-sub.stop:
			}
		}()
	}
	return sub, nil
}

// NewKey implements Store.
func (s *MemoryStore) NewKey(ctx context.Context, path string) (string, error) {
	return s.keyFunc(ctx, path)
}

// Set implements Store.
func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	loc, err := parseDocument(path)
	if err != nil {
		return err
	}
	data, err := encode(value)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	docs := s.collections[loc.collection]
	if docs == nil {
		docs = make(map[string]json.RawMessage)
		s.collections[loc.collection] = docs
	}
	merged, err := mergeAt(docs[loc.key], loc.nested, data)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	docs[loc.key] = merged
	snap := snapshotOf(loc.collection, docs)
	listeners := make([]Listener, 0, len(s.listeners[loc.collection]))
	for _, fn := range s.listeners[loc.collection] {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// Get returns the document at path.
func (s *MemoryStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	loc, err := parseDocument(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[loc.collection][loc.key]
	if !ok {
		return nil, ErrNotFound
	}
	for _, seg := range loc.nested {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, ErrNotFound
		}
		if doc, ok = obj[seg]; !ok {
			return nil, ErrNotFound
		}
	}
	return append(json.RawMessage(nil), doc...), nil
}

type memorySubscription struct {
	store      *MemoryStore
	collection string
	id         int
	stop       chan struct{}
	once       sync.Once
}

func (m *memorySubscription) Unsubscribe() {
	m.once.Do(func() {
		m.store.mu.Lock()
		delete(m.store.listeners[m.collection], m.id)
		m.store.mu.Unlock()
		close(m.stop)
	})
}

var _ Store = (*MemoryStore)(nil)
