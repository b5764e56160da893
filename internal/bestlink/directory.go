package bestlink

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/remotekv"
)

// DefaultCacheTTL is the default freshness window of the process-local copy
// of the rankings.
const DefaultCacheTTL = 1 * time.Minute

// Keys of the process-local cache entries.
const (
	cacheKeyMap  = "best_links_map"
	cacheKeyList = "sorted_domains"
)

// Directory is the process-local fronting of the published rankings.  It
// keeps a copy of the best links map and the eCPM-ordered list with a short
// freshness window, rereads the shared cache when the copy goes stale, and
// serves the last known data when the shared cache is unavailable.
type Directory struct {
	logger *slog.Logger

	// mu protects cache, lastMap, and lastList.  Don't use an RWMutex here,
	// since it is expected that there are about as many reads as there are
	// writes.
	mu    *sync.Mutex
	cache *cache.Cache

	kv      remotekv.Interface
	errColl errcoll.Interface
	metrics Metrics

	lastMap  Map
	lastList List
}

// DirectoryConfig is the configuration structure for the link directory.
// All fields must be non-empty.
type DirectoryConfig struct {
	// Logger is used to log the operation of the directory.
	Logger *slog.Logger

	// KV is the shared cache that the ranking refresher publishes to.
	KV remotekv.Interface

	// ErrColl is the error collector that is used to collect non-critical
	// errors.
	ErrColl errcoll.Interface

	// Metrics collects the statistics of the directory lookups.
	Metrics Metrics

	// CacheTTL is the freshness window of the process-local copy.  It must
	// be positive.
	CacheTTL time.Duration
}

// NewDirectory creates a new link directory.  c must be non-nil.
func NewDirectory(c *DirectoryConfig) (d *Directory) {
	return &Directory{
		logger:  c.Logger,
		mu:      &sync.Mutex{},
		cache:   cache.New(c.CacheTTL, c.CacheTTL),
		kv:      c.KV,
		errColl: c.ErrColl,
		metrics: c.Metrics,
	}
}

// type check
var _ Source = (*Directory)(nil)

// Map implements the [Source] interface for *Directory.
func (d *Directory) Map(ctx context.Context) (m Map) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.cache.Get(cacheKeyMap); ok {
		d.metrics.IncrementLookups(ctx, true)

		return v.(Map)
	}

	d.metrics.IncrementLookups(ctx, false)

	data, ok := d.fetch(ctx, KeyBestLinksMap)
	if !ok {
		d.metrics.IncrementStale(ctx)

		return d.lastMap
	}

	m = Map{}
	err := json.Unmarshal(data, &m)
	if err != nil {
		errcoll.Collect(ctx, d.errColl, d.logger, "decoding best links map", err)
		d.metrics.IncrementStale(ctx)

		return d.lastMap
	}

	d.cache.SetDefault(cacheKeyMap, m)
	d.lastMap = m

	return m
}

// List implements the [Source] interface for *Directory.
func (d *Directory) List(ctx context.Context) (l List) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if v, ok := d.cache.Get(cacheKeyList); ok {
		d.metrics.IncrementLookups(ctx, true)

		return v.(List)
	}

	d.metrics.IncrementLookups(ctx, false)

	data, ok := d.fetch(ctx, KeySortedDomains)
	if !ok {
		d.metrics.IncrementStale(ctx)

		return d.lastList
	}

	l = List{}
	err := json.Unmarshal(data, &l)
	if err != nil {
		errcoll.Collect(ctx, d.errColl, d.logger, "decoding sorted domains", err)
		d.metrics.IncrementStale(ctx)

		return d.lastList
	}

	d.cache.SetDefault(cacheKeyList, l)
	d.lastList = l

	return l
}

// fetch reads the shared cache entry by key.  ok is false if the data is
// unavailable for any reason; the reason itself is logged and collected.
func (d *Directory) fetch(ctx context.Context, key string) (data []byte, ok bool) {
	data, ok, err := d.kv.Get(ctx, key)
	if err != nil {
		errcoll.Collect(ctx, d.errColl, d.logger, "reading shared cache", err)

		return nil, false
	} else if !ok {
		d.logger.DebugContext(ctx, "no published rankings", "key", key)

		return nil, false
	}

	return data, true
}

// flush drops the fresh process-local copies, forcing the next lookups to
// reread the shared cache.  The last known copies are kept.
func (d *Directory) flush(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache.Flush()

	d.logger.DebugContext(ctx, "flushed local copies")
}

// type check
var _ interface {
	Refresh(ctx context.Context) (err error)
} = (*Directory)(nil)

// Refresh implements the [service.Refresher] interface for *Directory by
// flushing the process-local copies.  It is used by the debug refresh API
// after a manual ranking refresh.  The returned error is always nil.
func (d *Directory) Refresh(ctx context.Context) (err error) {
	d.flush(ctx)

	return nil
}
