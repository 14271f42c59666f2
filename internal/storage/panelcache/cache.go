// Package panelcache keeps downloaded price panels as Parquet blobs in an
// archive backend so repeated runs skip the collector.
package panelcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/stockpick/internal/core"
	"github.com/newthinker/stockpick/internal/metrics"
	"github.com/newthinker/stockpick/internal/panel"
	"github.com/newthinker/stockpick/internal/storage/archive"
)

const prefix = "panels/"

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FetchFunc produces a panel on a cache miss
type FetchFunc func(ctx context.Context) (*panel.Panel, error)

// Cache reads and writes panels through an archive.Storage
type Cache struct {
	store   archive.Storage
	logger  *zap.Logger
	metrics *metrics.Registry
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records hit/miss counts
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a cache over store
func New(store archive.Storage, opts ...Option) *Cache {
	c := &Cache{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key names the cached panel for a universe and date range
func Key(universe string, start, end time.Time) string {
	name := unsafeKey.ReplaceAllString(universe, "_")
	return fmt.Sprintf("%s_%s_%s", name, start.Format("20060102"), end.Format("20060102"))
}

func path(key string) string {
	return prefix + key + ".parquet"
}

// Get returns the cached panel or core.ErrNotFound
func (c *Cache) Get(ctx context.Context, key string) (*panel.Panel, error) {
	data, err := c.store.Read(ctx, path(key))
	if err != nil {
		c.record(false)
		return nil, err
	}

	p, err := panel.DecodeParquet(data)
	if err != nil {
		c.record(false)
		c.logger.Warn("discarding unreadable cached panel", zap.String("key", key), zap.Error(err))
		return nil, core.WrapError(core.ErrNotFound, err)
	}
	c.record(true)
	return p, nil
}

// Put stores p under key
func (c *Cache) Put(ctx context.Context, key string, p *panel.Panel) error {
	var buf bytes.Buffer
	if err := panel.EncodeParquet(&buf, p); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := c.store.Write(ctx, path(key), buf.Bytes()); err != nil {
		return err
	}
	c.logger.Info("cached panel",
		zap.String("key", key),
		zap.Int("assets", p.Width()),
		zap.Int("rows", p.Len()),
		zap.Int("bytes", buf.Len()))
	return nil
}

// GetOrFetch returns the cached panel, or calls fetch and caches its
// result. The bool reports a cache hit. A failed write is logged, not
// returned.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (*panel.Panel, bool, error) {
	p, err := c.Get(ctx, key)
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, err
	}

	p, err = fetch(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(ctx, key, p); err != nil {
		c.logger.Warn("caching panel failed", zap.String("key", key), zap.Error(err))
	}
	return p, false, nil
}

// Keys lists cached panel keys
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	paths, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		if len(p) > len(prefix)+len(".parquet") {
			keys = append(keys, p[len(prefix):len(p)-len(".parquet")])
		}
	}
	return keys, nil
}

func (c *Cache) record(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}
