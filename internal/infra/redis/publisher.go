package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/polling/emitter"
)

// DefaultChannel is the pub/sub channel updates are announced on.
const DefaultChannel = "fleetwatch:updates"

// Store is the subset of Client used by Emitter.
type Store interface {
	SetLatest(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message []byte) error
	Close() error
}

// LatestKey is where the latest update of a resource is kept.
func LatestKey(resource domain.Resource, id string) string {
	return fmt.Sprintf("fleetwatch:%s:%s", resource, id)
}

// Emitter stores each update under its resource key and announces it.
type Emitter struct {
	store   Store
	ttl     time.Duration
	channel string
}

// NewEmitter creates a Redis emitter.
func NewEmitter(store Store, ttl time.Duration, channel string) *Emitter {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{store: store, ttl: ttl, channel: channel}
}

func (e *Emitter) Emit(ctx context.Context, update domain.Update) error {
	msg, err := emitter.Encode(update)
	if err != nil {
		return err
	}
	if err := e.store.SetLatest(ctx, LatestKey(update.Resource, update.ID), msg, e.ttl); err != nil {
		return err
	}
	return e.store.Publish(ctx, e.channel, msg)
}

func (e *Emitter) Close() error {
	return e.store.Close()
}
