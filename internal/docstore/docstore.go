// Package docstore models the remote real-time document store the front desk
// persists doctors and patients in. A store holds collections of JSON
// documents addressed by slash separated paths ("patients/{id}/bookings/{id}"),
// pushes whole-collection snapshots to subscribers on every change, and
// allocates time-ordered child keys.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("docstore: invalid path")

	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrConflict is returned when a nested write keeps losing a concurrent update race.
	ErrConflict = errors.New("docstore: concurrent update conflict")
)

// Child is one direct child of a collection.
type Child struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Snapshot is the full contents of a collection at a point in time.
// Children are sorted by ascending key.
type Snapshot struct {
	Path     string  `json:"path"`
	Children []Child `json:"children"`
}

// Len returns the number of children.
func (s Snapshot) Len() int {
	return len(s.Children)
}

// Listener receives snapshots. It may be called from any goroutine.
type Listener func(Snapshot)

// Subscription is a live collection watch.
type Subscription interface {
	Unsubscribe()
}

// Store is the capability set the front desk depends on.
type Store interface {
	// Subscribe delivers the current snapshot of a collection and then a fresh
	// snapshot after every change to it, nested writes included. Only
	// top-level collections can be watched.
	Subscribe(ctx context.Context, path string, fn Listener) (Subscription, error)
	// NewKey allocates a new unique child key under path.
	NewKey(ctx context.Context, path string) (string, error)
	// Set overwrites the value at a fully specified path ("collection/key/...").
	Set(ctx context.Context, path string, value any) error
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// location is a parsed document path.
type location struct {
	collection string
	key        string
	nested     []string
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, ErrInvalidPath
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
		segments[i] = seg
	}
	return segments, nil
}

// parseCollection validates a collection-level path.
func parseCollection(path string) (string, error) {
	segments, err := splitPath(path)
	if err != nil {
		return "", err
	}
	if len(segments) != 1 {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, path)
	}
	return segments[0], nil
}

// parseDocument validates a path pointing at or inside a document.
func parseDocument(path string) (location, error) {
	segments, err := splitPath(path)
	if err != nil {
		return location{}, err
	}
	if len(segments) < 2 {
		return location{}, fmt.Errorf("%w: %q does not name a document", ErrInvalidPath, path)
	}
	return location{
		collection: segments[0],
		key:        segments[1],
		nested:     segments[2:],
	}, nil
}

// newKey allocates a UUIDv7. Its string form sorts in creation order, which
// keeps collection snapshots in insertion order.
func newKey(ctx context.Context, path string) (string, error) {
	if _, err := splitPath(path); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("docstore: allocate key: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("docstore: allocate key: %w", err)
	}
	return id.String(), nil
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("docstore: invalid raw json value")
		}
		return raw, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("docstore: marshal value: %w", err)
	}
	return data, nil
}

// mergeAt returns doc with value written at the nested path, creating
// intermediate objects as needed. An empty nested path replaces doc.
func mergeAt(doc json.RawMessage, nested []string, value json.RawMessage) (json.RawMessage, error) {
	if len(nested) == 0 {
		return value, nil
	}
	obj := map[string]json.RawMessage{}
	if len(doc) > 0 && string(doc) != "null" {
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("docstore: %q parent is not an object: %w", nested[0], err)
		}
	}
	child, err := mergeAt(obj[nested[0]], nested[1:], value)
	if err != nil {
		return nil, err
	}
	obj[nested[0]] = child
	return json.Marshal(obj)
}

func snapshotOf(collection string, docs map[string]json.RawMessage) Snapshot {
	children := make([]Child, 0, len(docs))
	for key, value := range docs {
		children = append(children, Child{Key: key, Value: append(json.RawMessage(nil), value...)})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Key < children[j].Key })
	return Snapshot{Path: collection, Children: children}
}

func channelFor(collection string) string {
	return "docstore:changed:" + collection
}
