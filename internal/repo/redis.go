package repo

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Redis struct{ C *redis.Client }

func NewRedis(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error { return r.C.Ping(ctx).Err() }
func (r *Redis) Close() error                   { return r.C.Close() }

// Bus broadcasts cache invalidations to every process on one channel.
type Bus struct {
	c       *redis.Client
	channel string

	Log        *zap.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (r *Redis) Bus(channel string) *Bus {
	return &Bus{c: r.C, channel: channel, Log: zap.NewNop(), MinBackoff: 500 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

func (b *Bus) Broadcast(ctx context.Context) error {
	return b.c.Publish(ctx, b.channel, "invalidate").Err()
}

// Listen calls fn for every message until ctx is done. A failed
// subscription is retried with exponential backoff; after a resubscribe fn
// runs once, since messages sent while disconnected are lost.
func (b *Bus) Listen(ctx context.Context, fn func()) error {
	wait := b.MinBackoff
	for attempt := 0; ; attempt++ {
		err := b.listenOnce(ctx, fn, attempt > 0)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wait = b.MinBackoff
		} else {
			b.Log.Warn("invalidation subscribe failed", zap.String("channel", b.channel), zap.Duration("retry_in", wait), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		if err != nil {
			wait = min(wait*2, b.MaxBackoff)
		}
	}
}

// listenOnce returns nil when the subscription ended after being established.
func (b *Bus) listenOnce(ctx context.Context, fn func(), resubscribed bool) error {
	sub := b.c.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if resubscribed {
		fn()
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			fn()
		}
	}
}
