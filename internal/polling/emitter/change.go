package emitter

import (
	"context"
	"reflect"
	"sync"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// ChangeFilter wraps an Emitter and drops updates identical to the previous
// one for the same resource. Payloads are replaced wholesale on every
// successful refresh, so identity is enough to detect a change.
type ChangeFilter struct {
	inner Emitter

	mu   sync.Mutex
	last map[string]seen
}

type seen struct {
	available bool
	payload   any
}

// NewChangeFilter creates a filter in front of inner.
func NewChangeFilter(inner Emitter) *ChangeFilter {
	return &ChangeFilter{
		inner: inner,
		last:  make(map[string]seen),
	}
}

func (f *ChangeFilter) Emit(ctx context.Context, update domain.Update) error {
	key := update.Key()
	cur := seen{available: update.Available, payload: update.Payload}

	f.mu.Lock()
	prev, ok := f.last[key]
	if ok && same(prev, cur) {
		f.mu.Unlock()
		return nil
	}
	f.last[key] = cur
	f.mu.Unlock()

	if err := f.inner.Emit(ctx, update); err != nil {
		// Forget the state so the next notification retries.
		f.mu.Lock()
		delete(f.last, key)
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *ChangeFilter) Close() error {
	return f.inner.Close()
}

func same(a, b seen) bool {
	if a.available != b.available {
		return false
	}
	if a.payload == nil || b.payload == nil {
		return a.payload == nil && b.payload == nil
	}
	if !reflect.TypeOf(a.payload).Comparable() {
		return false
	}
	return a.payload == b.payload
}
