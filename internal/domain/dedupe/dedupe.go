// Package dedupe tracks keys that already have work outstanding, so repeated
// triggers for the same employee coalesce into one pending sweep.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 10000

// Deduper records pending keys.
type Deduper interface {
	// SeenAndRecord reports whether id is already pending and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord releases id so a later trigger is accepted again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// InMemoryDeduper is a bounded pending set. When full, the oldest key is
// dropped; a dropped key only loses its coalescing, never its work.
type InMemoryDeduper struct {
	mu      sync.Mutex
	order   *list.List
	index   map[string]*list.Element
	maxSize int
}

var _ Deduper = (*InMemoryDeduper)(nil)

// NewInMemoryDeduper creates a pending set. A non-positive max size means unbounded.
func NewInMemoryDeduper(opts ...Option) *InMemoryDeduper {
	d := &InMemoryDeduper{
		order:   list.New(),
		index:   make(map[string]*list.Element),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *InMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
	d.index[id] = d.order.PushBack(id)
	return false
}

// Unrecord implements Deduper.
func (d *InMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[id]; ok {
		d.order.Remove(el)
		delete(d.index, id)
	}
}

// Size returns the number of pending keys.
func (d *InMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
