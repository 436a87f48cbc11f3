// File: internal/infra/redis/broadcaster.go
package redis

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
)

var _ adapter.Broadcaster = (*Broadcaster)(nil)

// activationChannel is shared by every service instance; an event published
// anywhere reaches every subscriber everywhere.
const activationChannel = "activations"

// Broadcaster carries activation events over Redis pub/sub.
type Broadcaster struct {
	client *Client
	log    *zerolog.Logger
}

func NewBroadcaster(client *Client, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{client: client, log: logger}
}

func (b *Broadcaster) Publish(ctx context.Context, ev model.ActivationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, activationChannel, payload)
}

// Subscribe delivers inbound events to fn until ctx is cancelled. Messages
// that fail to decode are logged and skipped; the loop never dies on one
// bad payload.
func (b *Broadcaster) Subscribe(ctx context.Context, fn func(ev model.ActivationEvent)) error {
	sub := b.client.Subscribe(ctx, activationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.ActivationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn().Err(err).Msg("bad activation event payload, skipping")
				continue
			}
			fn(ev)
		}
	}
}
