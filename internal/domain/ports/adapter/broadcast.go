package adapter

import (
	"context"

	"wisestudent-purchase/internal/domain/model"
)

// Broadcaster is the hex port for the process-wide activation channel.
// Publish fans an event out to every subscriber on every instance;
// Subscribe delivers inbound events until ctx is cancelled.
type Broadcaster interface {
	Publish(ctx context.Context, ev model.ActivationEvent) error
	Subscribe(ctx context.Context, fn func(ev model.ActivationEvent)) error
}
