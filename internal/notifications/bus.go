// Package notifications fans local storage change events out to subscribers in this process and,
// when Redis is configured, to every other process sharing the same store.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"sync"

	"postsync/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChangesChannel is the Redis channel carrying storage change events.
const ChangesChannel = "storage:changes"

// Change describes a write to one storage key. It deliberately carries no value: subscribers
// re-read the store so they never act on a stale payload.
type Change struct {
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
	Origin  string `json:"origin"`
}

// Bus is a publish/subscribe hub for storage changes.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]func(Change)
	nextID uint64
	rdb    *redis.Client
	origin string
}

// NewBus creates a Bus. With a nil client only same-process subscribers are notified.
func NewBus(rdb *redis.Client) *Bus {
	return &Bus{
		subs:   make(map[uint64]func(Change)),
		rdb:    rdb,
		origin: uuid.NewString(),
	}
}

// Origin identifies this process in published changes.
func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registers fn for every change and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeKey registers fn only for changes to key.
func (b *Bus) SubscribeKey(key string, fn func(Change)) (unsubscribe func()) {
	return b.Subscribe(func(c Change) {
		if c.Key == key {
			fn(c)
		}
	})
}

// Publish delivers the change locally and forwards it to Redis when available.
// Redis failures are logged; local delivery always happens.
func (b *Bus) Publish(ctx context.Context, c Change) {
	c.Origin = b.origin
	b.deliver(c, "local")

	if b.rdb == nil {
		return
	}
	payload, err := json.Marshal(c)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "marshal storage change", slog.String("error", err.Error()))
		return
	}
	if err := b.rdb.Publish(ctx, ChangesChannel, payload).Err(); err != nil {
		observability.Logger.WarnContext(ctx, "publish storage change",
			slog.String("key", c.Key),
			slog.String("error", err.Error()),
		)
	}
}

// StartRemote subscribes to changes published by other processes. Messages that originate from
// this bus are dropped because they were already delivered locally. The subscription ends with ctx.
func (b *Bus) StartRemote(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	sub := b.rdb.Subscribe(ctx, ChangesChannel)
	// Wait for the subscription to be confirmed so no message published after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					observability.Logger.Warn("invalid storage change payload", slog.String("error", err.Error()))
					continue
				}
				if c.Origin == b.origin {
					continue
				}
				b.deliver(c, "remote")
			}
		}
	}()

	return nil
}

func (b *Bus) deliver(c Change, source string) {
	b.mu.RLock()
	subs := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					observability.Logger.Error("PANIC in storage change subscriber",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			fn(c)
		}()
		observability.BusDeliveries.WithLabelValues(source).Inc()
	}
}
