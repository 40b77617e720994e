package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// Publisher is the transport used by Emitter.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// StatusTopic is where the bridge reports its own connection state.
func StatusTopic(prefix string) string {
	return prefix + "/status"
}

// StateTopic carries the latest payload of a resource.
func StateTopic(prefix string, resource domain.Resource, id string) string {
	return fmt.Sprintf("%s/%s/%s/state", prefix, resource, id)
}

// AvailabilityTopic carries "online" or "offline" for a resource.
func AvailabilityTopic(prefix string, resource domain.Resource, id string) string {
	return fmt.Sprintf("%s/%s/%s/availability", prefix, resource, id)
}

// Emitter publishes updates as retained messages, so repeated identical
// notifications leave the broker state unchanged.
type Emitter struct {
	pub    Publisher
	prefix string
	qos    byte
}

// NewEmitter creates an MQTT emitter.
func NewEmitter(pub Publisher, prefix string, qos byte) *Emitter {
	if prefix == "" {
		prefix = "fleetwatch"
	}
	return &Emitter{pub: pub, prefix: prefix, qos: qos}
}

func (e *Emitter) Emit(ctx context.Context, update domain.Update) error {
	if update.Payload != nil {
		payload, err := json.Marshal(update.Payload)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", update.Key(), err)
		}
		topic := StateTopic(e.prefix, update.Resource, update.ID)
		if err := e.pub.Publish(topic, e.qos, true, payload); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	}

	availability := "offline"
	if update.Available {
		availability = "online"
	}
	topic := AvailabilityTopic(e.prefix, update.Resource, update.ID)
	if err := e.pub.Publish(topic, e.qos, true, []byte(availability)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (e *Emitter) Close() error {
	return e.pub.Close()
}
