package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/redron/dispatch/internal/bestlink"
	"github.com/redron/dispatch/internal/clickstat"
	"github.com/redron/dispatch/internal/errcoll"
	"github.com/redron/dispatch/internal/publisher"
	"github.com/redron/dispatch/internal/remotekv"
)

// unknownIP is the visitor identity used when neither the forwarding header
// nor the socket address yields a client IP.
const unknownIP = "unknown"

// Engine is the dispatch engine.  It is safe for concurrent use.
type Engine struct {
	logger   *slog.Logger
	errColl  errcoll.Interface
	metrics  Metrics
	clock    timeutil.Clock
	kv       remotekv.Interface
	source   bestlink.Source
	recorder clickstat.Recorder
	registry *publisher.Registry
}

// EngineConfig is the configuration structure for the dispatch engine.  All
// fields must not be empty.
type EngineConfig struct {
	// Logger is used to log the operation of the engine, including the
	// failures of detached writes.
	Logger *slog.Logger

	// ErrColl is used to collect the errors of detached writes.
	ErrColl errcoll.Interface

	// Metrics collects the statistics of the dispatches.
	Metrics Metrics

	// Clock is used for visitor hour bucketing.
	Clock timeutil.Clock

	// KV is the shared cache holding the visitor cursors, the round-robin
	// counter, and the anti-replay memos.
	KV remotekv.Interface

	// Source provides the published rankings, usually through the in-memory
	// fronting directory.
	Source bestlink.Source

	// Recorder accounts the clicks.  Record calls are detached from the
	// response path.
	Recorder clickstat.Recorder

	// Registry is the static registry of publisher domains.
	Registry *publisher.Registry
}

// NewEngine creates a new dispatch engine.  c must not be nil.
func NewEngine(c *EngineConfig) (e *Engine) {
	return &Engine{
		logger:   c.Logger,
		errColl:  c.ErrColl,
		metrics:  c.Metrics,
		clock:    c.Clock,
		kv:       c.KV,
		source:   c.Source,
		recorder: c.Recorder,
		registry: c.Registry,
	}
}

// target is an intermediate selection result.
type target struct {
	url    string
	linkID string
	host   string
	kind   string
}

// Dispatch runs the selection algorithm for req and returns the final URL
// and the link ID for the redirect.  On any error the caller must issue the
// emergency redirect to [EmergencyRedirectURL].  req must not be nil.
func (e *Engine) Dispatch(ctx context.Context, req *Request) (res *Result, err error) {
	defer func() { err = errors.Annotate(err, "dispatching: %w") }()

	start := e.clock.Now()
	ip := clientIP(req)

	visit, err := e.visitorVisit(ctx, ip, start)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	tgt, err := e.selectTarget(ctx, visit)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	finalURL, err := e.finalURL(tgt, req.Query)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	e.metrics.ObserveDispatch(ctx, tgt.kind, e.clock.Now().Sub(start))
	e.logger.DebugContext(
		ctx,
		"dispatched",
		"ip", ip,
		"visit", visit,
		"link_id", tgt.linkID,
	)

	e.recordClick(ctx, tgt.linkID)
	e.memoRecent(ctx, ip, finalURL)

	return &Result{
		URL:    finalURL,
		LinkID: tgt.linkID,
	}, nil
}

// clientIP determines the visitor identity: the first comma-separated token
// of the forwarding header, then the host part of the socket address, then
// [unknownIP].
func clientIP(req *Request) (ip string) {
	if fwd := req.ForwardedFor; fwd != "" {
		ip, _, _ = strings.Cut(fwd, ",")

		return strings.TrimSpace(ip)
	}

	if req.RemoteAddr == "" {
		return unknownIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}

	return host
}

// visitorVisit atomically increments the visitor cursor of ip for the clock
// hour of now and returns the post-increment value.  The first increment of
// an hour arms the TTL.
func (e *Engine) visitorVisit(
	ctx context.Context,
	ip string,
	now time.Time,
) (visit int64, err error) {
	key := fmt.Sprintf("visitor_count:%s:%d", ip, now.Hour())
	visit, err = e.kv.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("incrementing visitor cursor: %w", err)
	}

	if visit == 1 {
		_, err = e.kv.Expire(ctx, key, VisitorTTL)
		if err != nil {
			return 0, fmt.Errorf("expiring visitor cursor: %w", err)
		}
	}

	return visit, nil
}

// selectTarget chooses the destination for the given visit number.  The
// published map and list are independently versioned, so their sizes are
// never assumed to match and either may be absent.
func (e *Engine) selectTarget(ctx context.Context, visit int64) (tgt *target, err error) {
	list := e.source.List(ctx)
	n := int64(len(list))

	switch {
	case n > 0 && visit <= n:
		rk := list[visit-1]

		return &target{
			url:    rk.URL,
			linkID: KindBest + "_" + rk.Domain + "_" + rk.PostID,
			host:   rk.Domain,
			kind:   KindBest,
		}, nil
	case n == 0 && visit <= int64(e.registry.Len()):
		return e.registryTarget(ctx, visit), nil
	default:
		return e.spillTarget(ctx)
	}
}

// registryTarget picks a domain in the static registry order when no ranking
// is published, preferring a cached best link when one exists for the domain.
func (e *Engine) registryTarget(ctx context.Context, visit int64) (tgt *target) {
	d := e.registry.At(int(visit - 1))

	if link, ok := e.source.Map(ctx)[d.Host]; ok {
		return &target{
			url:    link.URL,
			linkID: KindBest + "_" + d.Host + "_" + link.PostID,
			host:   d.Host,
			kind:   KindBest,
		}
	}

	return &target{
		url:    "https://" + d.Host + "/random",
		linkID: KindFallback + "_" + d.Host,
		host:   d.Host,
		kind:   KindFallback,
	}
}

// spillTarget picks the next domain of the global round-robin once the
// visitor has exhausted all ranked domains this hour.
func (e *Engine) spillTarget(ctx context.Context) (tgt *target, err error) {
	counter, err := e.kv.Incr(ctx, bestlink.KeyDomainCounter)
	if err != nil {
		return nil, fmt.Errorf("incrementing domain counter: %w", err)
	}

	if counter > maxDomainCounter {
		counter = 1
		err = e.kv.Set(ctx, bestlink.KeyDomainCounter, []byte("1"), 0)
		if err != nil {
			return nil, fmt.Errorf("resetting domain counter: %w", err)
		}
	}

	idx := (counter - 1) % int64(e.registry.Len())
	d := e.registry.At(int(idx))

	return &target{
		url:    "https://" + d.Host + "/random",
		linkID: KindRandom + "_" + d.Host,
		host:   d.Host,
		kind:   KindRandom,
	}, nil
}

// finalURL applies the language path prefix and the campaign parameters to
// the target URL.
func (e *Engine) finalURL(tgt *target, query url.Values) (finalURL string, err error) {
	u, err := url.Parse(tgt.url)
	if err != nil {
		return "", fmt.Errorf("parsing target url: %w", err)
	}

	var inverted bool
	if d, ok := e.registry.Lookup(tgt.host); ok {
		inverted = d.InvertedLang
	}

	applyLanguage(u, query.Get("language"), inverted)
	u.RawQuery = decorateQuery(u.RawQuery, query, tgt.linkID)

	return u.String(), nil
}

// recordClick upserts the click counter of linkID without blocking the
// response path.  Failures are collected only.
func (e *Engine) recordClick(ctx context.Context, linkID string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer slogutil.RecoverAndLog(ctx, e.logger)

		_, err := e.recorder.Record(ctx, linkID)
		if err != nil {
			errcoll.Collect(ctx, e.errColl, e.logger, "recording click", err)
		}
	}()
}

// memoRecent writes the anti-replay memo for ip without blocking the
// response path.  It is used elsewhere to dedupe accidental refreshes.
func (e *Engine) memoRecent(ctx context.Context, ip, finalURL string) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer slogutil.RecoverAndLog(ctx, e.logger)

		err := e.kv.Set(ctx, "recent:"+ip, []byte(finalURL), RecentTTL)
		if err != nil {
			errcoll.Collect(ctx, e.errColl, e.logger, "writing recent memo", err)
		}
	}()
}
