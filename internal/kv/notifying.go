package kv

import (
	"context"

	"postsync/internal/notifications"
)

// Notifying decorates a Store so that every successful write is announced on the change bus.
type Notifying struct {
	Store
	bus *notifications.Bus
}

// NewNotifying wraps store. A nil bus makes it a pass-through.
func NewNotifying(store Store, bus *notifications.Bus) *Notifying {
	return &Notifying{Store: store, bus: bus}
}

func (n *Notifying) Set(ctx context.Context, key, value string) error {
	if err := n.Store.Set(ctx, key, value); err != nil {
		return err
	}
	n.publish(ctx, notifications.Change{Key: key})
	return nil
}

func (n *Notifying) Remove(ctx context.Context, key string) error {
	if err := n.Store.Remove(ctx, key); err != nil {
		return err
	}
	n.publish(ctx, notifications.Change{Key: key, Removed: true})
	return nil
}

// Bus returns the bus writes are published on.
func (n *Notifying) Bus() *notifications.Bus {
	return n.bus
}

func (n *Notifying) publish(ctx context.Context, c notifications.Change) {
	if n.bus != nil {
		n.bus.Publish(ctx, c)
	}
}
