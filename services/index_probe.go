package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"matchroom_server/metrics"

	"github.com/rs/zerolog/log"
)

// IndexProbe caches whether secondary indexes can serve queries so that
// callers choose between the indexed path and the scan path up front.
type IndexProbe struct {
	Store Store
	TTL   time.Duration

	mu    sync.Mutex
	cache map[string]probeResult
	now   func() time.Time
}

type probeResult struct {
	ready     bool
	checkedAt time.Time
}

func NewIndexProbe(store Store, ttl time.Duration) *IndexProbe {
	return &IndexProbe{Store: store, TTL: ttl, cache: make(map[string]probeResult), now: time.Now}
}

// Ready reports the cached readiness of index, refreshing it once the TTL lapses.
// A failing probe counts as not ready.
func (p *IndexProbe) Ready(ctx context.Context, index string) bool {
	p.mu.Lock()
	res, ok := p.cache[index]
	p.mu.Unlock()
	if ok && p.now().Sub(res.checkedAt) < p.TTL {
		return res.ready
	}

	ready, err := p.Store.IndexReady(ctx, index)
	if err != nil {
		log.Warn().Err(err).Str("index", index).Msg("index probe failed, using scan")
		ready = false
	}

	p.mu.Lock()
	p.cache[index] = probeResult{ready: ready, checkedAt: p.now()}
	p.mu.Unlock()
	return ready
}

// MarkNotReady records that a query just found index unusable.
func (p *IndexProbe) MarkNotReady(index string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[index] = probeResult{ready: false, checkedAt: p.now()}
}

// withIndexFallback runs indexed when the probe reports index ready and scan
// otherwise. If the indexed query reports the index unusable the probe is
// updated and the scan path answers instead.
func withIndexFallback[T any](
	ctx context.Context,
	probe *IndexProbe,
	index string,
	indexed func(context.Context) (T, error),
	scan func(context.Context) (T, error),
) (T, error) {
	if probe.Ready(ctx, index) {
		res, err := indexed(ctx)
		if err == nil || !errors.Is(err, ErrIndexNotReady) {
			return res, err
		}
		log.Warn().Err(err).Str("index", index).Msg("index rejected query, falling back to scan")
		probe.MarkNotReady(index)
	}
	metrics.IndexFallbacks.WithLabelValues(index).Inc()
	return scan(ctx)
}
