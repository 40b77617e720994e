package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/polling/metrics"
)

// Emitter defines the interface for publishing coordinator updates
type Emitter interface {
	// Emit delivers a single update
	Emit(ctx context.Context, update domain.Update) error

	// Close releases the emitter connection
	Close() error
}

// Message is the wire form of an update.
type Message struct {
	Resource  domain.Resource `json:"resource"`
	ID        string          `json:"id"`
	Available bool            `json:"available"`
	Payload   any             `json:"payload,omitempty"`
	At        int64           `json:"at"`
}

// Encode renders an update as JSON.
func Encode(update domain.Update) ([]byte, error) {
	data, err := json.Marshal(Message{
		Resource:  update.Resource,
		ID:        update.ID,
		Available: update.Available,
		Payload:   update.Payload,
		At:        update.At.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode update %s: %w", update.Key(), err)
	}
	return data, nil
}

// Fanout delivers every update to all registered emitters.
type Fanout struct {
	mu       sync.RWMutex
	names    []string
	emitters []Emitter
}

// NewFanout creates an empty fanout.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Add registers an emitter under a name used in logs and metrics.
func (f *Fanout) Add(name string, e Emitter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.emitters = append(f.emitters, e)
}

// Len returns the number of registered emitters.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.emitters)
}

// Emit delivers the update to every emitter. One failing emitter does not
// stop delivery to the others.
func (f *Fanout) Emit(ctx context.Context, update domain.Update) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for i, e := range f.emitters {
		if err := e.Emit(ctx, update); err != nil {
			metrics.PublishErrorsTotal.WithLabelValues(f.names[i]).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every emitter.
func (f *Fanout) Close() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for i, e := range f.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Listener adapts an emitter to a coordinator listener. Delivery errors are
// logged since listeners cannot fail a refresh cycle.
func Listener(ctx context.Context, e Emitter) func(domain.Update) {
	return func(update domain.Update) {
		if err := e.Emit(ctx, update); err != nil {
			slog.Warn("Failed to publish update", "key", update.Key(), "error", err)
		}
	}
}

// LogEmitter writes updates to the structured log.
type LogEmitter struct{}

func (e *LogEmitter) Emit(ctx context.Context, update domain.Update) error {
	slog.Debug("Update", "key", update.Key(), "available", update.Available, "has_payload", update.Payload != nil)
	return nil
}

func (e *LogEmitter) Close() error { return nil }
