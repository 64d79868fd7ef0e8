// Package events implements the core's event-emitter boundary: a typed
// CoreEvent published over Redis pub/sub, replacing the ad hoc callback
// Hub interface the rest of this corpus uses for delivery fan-out.
package events

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Kind discriminates the four events the core emits (spec §6, §9).
type Kind string

const (
	CredsUpdate     Kind = "creds.update"
	SessionStored   Kind = "session.stored"
	IdentityChanged Kind = "identity.changed"
	PreKeysLow      Kind = "prekeys.low"
)

// CoreEvent is the envelope published for every emitted event. Payload is
// kind-specific: CredsUpdate carries the full JSON-encoded credential set
// passed to authstate.Store.SaveCreds (not a field-level delta),
// SessionStored carries {jid, device}, IdentityChanged carries {jid},
// PreKeysLow carries {count}.
type CoreEvent struct {
	InstanceID string          `json:"instanceId"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
}

func channelFor(instanceID string) string {
	return "wasubstrate:events:" + instanceID
}

// Bus publishes and subscribes to CoreEvents over Redis. One Bus is shared
// process-wide; individual instances are distinguished by InstanceID on
// the published event and by the channel name.
type Bus struct {
	client *redis.Client
	logger *log.Logger
}

// NewBus wires a Bus to an already-connected Redis client.
func NewBus(client *redis.Client) *Bus {
	return &Bus{
		client: client,
		logger: log.New(os.Stdout, "[EVENTS] ", log.Ldate|log.Ltime|log.LUTC),
	}
}

// Emit publishes a CoreEvent for instanceID. Publish failures are logged,
// not returned: the event bus is an observability channel, never a path
// that can block or fail the core operation that triggered it.
func (b *Bus) Emit(ctx context.Context, instanceID string, kind Kind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.logger.Printf("failed to marshal payload for %s/%s: %v", instanceID, kind, err)
		return
	}
	evt := CoreEvent{InstanceID: instanceID, Kind: kind, Payload: raw}
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Printf("failed to marshal event %s/%s: %v", instanceID, kind, err)
		return
	}
	if err := b.client.Publish(ctx, channelFor(instanceID), data).Err(); err != nil {
		b.logger.Printf("failed to publish event %s/%s: %v", instanceID, kind, err)
	}
}

// Subscribe returns a channel of CoreEvents for instanceID. The returned
// func cancels the subscription and closes the channel.
func (b *Bus) Subscribe(ctx context.Context, instanceID string) (<-chan CoreEvent, func()) {
	sub := b.client.Subscribe(ctx, channelFor(instanceID))
	out := make(chan CoreEvent, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt CoreEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					b.logger.Printf("failed to decode event on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

// SessionStoredPayload is the payload shape for Kind SessionStored.
type SessionStoredPayload struct {
	JID    string `json:"jid"`
	Device uint32 `json:"device"`
}

// IdentityChangedPayload is the payload shape for Kind IdentityChanged.
type IdentityChangedPayload struct {
	JID string `json:"jid"`
}

// PreKeysLowPayload is the payload shape for Kind PreKeysLow.
type PreKeysLowPayload struct {
	Count uint32 `json:"count"`
}

func (k Kind) String() string { return string(k) }
