package expired

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tazhibayda/expired-service/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CategorySource lists categories whose field name equals value.
type CategorySource interface {
	CategoryIDsWithField(ctx context.Context, name, value string) ([]int64, error)
}

// Broadcaster tells other processes to drop their snapshot.
type Broadcaster interface {
	Broadcast(ctx context.Context) error
}

// loadTimeout bounds a shared rebuild. The load runs detached from the
// caller that started it so joined callers are not failed by its cancellation.
const loadTimeout = 5 * time.Second

type snapshot struct {
	gen uint64
	ids map[int64]struct{}
}

// CategoryCache holds the set of categories with the feature enabled.
// Reads are lock-free; rebuilds are collapsed per generation and a rebuild
// that raced with Invalidate never replaces a newer snapshot.
type CategoryCache struct {
	src  CategorySource
	bus  Broadcaster
	log  *zap.Logger
	gen  atomic.Uint64
	snap atomic.Pointer[snapshot]
	sf   singleflight.Group
}

func NewCategoryCache(src CategorySource, l *zap.Logger) *CategoryCache {
	if l == nil {
		l = zap.NewNop()
	}
	return &CategoryCache{src: src, log: l}
}

// WithBroadcast makes OnCategorySaved notify peers through b.
func (c *CategoryCache) WithBroadcast(b Broadcaster) *CategoryCache {
	c.bus = b
	return c
}

func (c *CategoryCache) Allowed(ctx context.Context) (map[int64]struct{}, error) {
	g := c.gen.Load()
	if s := c.snap.Load(); s != nil && s.gen == g {
		return s.ids, nil
	}
	ch := c.sf.DoChan(strconv.FormatUint(g, 10), func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		ids, err := c.src.CategoryIDsWithField(lctx, CategoryFieldEnabled, "true")
		if err != nil {
			return nil, err
		}
		s := &snapshot{gen: g, ids: make(map[int64]struct{}, len(ids))}
		for _, id := range ids {
			s.ids[id] = struct{}{}
		}
		for {
			cur := c.snap.Load()
			if cur != nil && cur.gen >= g {
				break
			}
			if c.snap.CompareAndSwap(cur, s) {
				break
			}
		}
		metrics.CategoryCacheRebuilds.Inc()
		return s.ids, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(map[int64]struct{}), nil
	}
}

func (c *CategoryCache) Contains(ctx context.Context, categoryID int64) (bool, error) {
	ids, err := c.Allowed(ctx)
	if err != nil {
		return false, err
	}
	_, ok := ids[categoryID]
	return ok, nil
}

// Invalidate drops the local snapshot; the next read rebuilds.
func (c *CategoryCache) Invalidate() { c.gen.Add(1) }

// OnCategorySaved is the store's category-save hook.
func (c *CategoryCache) OnCategorySaved(ctx context.Context, categoryID int64) {
	c.Invalidate()
	if c.bus == nil {
		return
	}
	if err := c.bus.Broadcast(ctx); err != nil {
		c.log.Warn("category cache broadcast failed", zap.Int64("category_id", categoryID), zap.Error(err))
	}
}
