package agent

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qcping/internal/catalog"
	"qcping/internal/model"
	"qcping/internal/probe"
	"qcping/internal/telemetry"
)

// Emitter publishes the quality records of one stream.
type Emitter interface {
	Emit(ctx context.Context, id model.StreamID, res model.ProbeResult) error
}

// Options tunes a Coordinator. Zero values select sequential probing, wall
// clock time and no logging.
type Options struct {
	// Workers > 1 probes distinct addresses concurrently before emission.
	Workers int
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *telemetry.Metrics
}

// Coordinator runs probe cycles over the addressed streams of a catalog.
type Coordinator struct {
	entries []model.StreamEntry
	prober  probe.Prober
	emitter Emitter
	workers int
	clock   clock.Clock
	log     *zap.Logger
	metrics *telemetry.Metrics
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Streams      int
	Addresses    int
	Unreachable  int
	SendFailures int
	Aborted      bool
	Duration     time.Duration
}

// NewCoordinator takes a copy of the catalog's addressed streams. The catalog
// is not consulted again.
func NewCoordinator(c *catalog.Catalog, prober probe.Prober, emitter Emitter, opts Options) *Coordinator {
	co := &Coordinator{
		entries: c.Addressed(),
		prober:  prober,
		emitter: emitter,
		workers: opts.Workers,
		clock:   opts.Clock,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	if co.clock == nil {
		co.clock = clock.New()
	}
	if co.log == nil {
		co.log = zap.NewNop()
	}
	co.metrics.SetAddressed(len(co.entries))
	return co
}

// Streams returns the number of streams probed per cycle.
func (c *Coordinator) Streams() int {
	return len(c.entries)
}

// RunCycle probes every distinct address once and emits the result for each
// stream in catalog order. Streams sharing an address share one result.
func (c *Coordinator) RunCycle(ctx context.Context) CycleReport {
	begin := c.clock.Now()
	c.log.Debug("start processing", zap.Int("streams", len(c.entries)))

	cache := make(map[model.Address]model.ProbeResult)
	if c.workers > 1 {
		c.prefetch(ctx, cache)
	}

	report := CycleReport{}
	for _, entry := range c.entries {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}
		addr := *entry.Address
		res, ok := cache[addr]
		if !ok {
			res, ok = c.probe(ctx, addr)
			if !ok {
				report.Aborted = true
				break
			}
			cache[addr] = res
		}

		if err := c.emitter.Emit(ctx, entry.ID, res); err != nil {
			n := len(multierr.Errors(err))
			report.SendFailures += n
			c.metrics.AddSendFailures(n)
			c.log.Debug("send quality failed", zap.Stringer("stream", entry.ID), zap.Int("records", n))
		}
		report.Streams++
	}

	report.Addresses = len(cache)
	for _, res := range cache {
		if !res.Reachable() {
			report.Unreachable++
		}
	}
	report.Duration = c.clock.Since(begin)
	c.metrics.ObserveCycle(report.Duration)

	c.log.Info("cycle done",
		zap.Int("streams", report.Streams),
		zap.Int("addresses", report.Addresses),
		zap.Int("unreachable", report.Unreachable),
		zap.Int("send_failures", report.SendFailures),
		zap.Bool("aborted", report.Aborted),
		zap.Duration("duration", report.Duration))
	return report
}

// probe returns false when ctx ended during the probe. A dial cut short by
// cancellation is not a measurement and must not be emitted.
func (c *Coordinator) probe(ctx context.Context, addr model.Address) (model.ProbeResult, bool) {
	start := c.clock.Now()
	ms := c.prober.Probe(ctx, addr)
	end := c.clock.Now()
	if ctx.Err() != nil {
		c.log.Debug("probe interrupted", zap.Stringer("addr", addr))
		return model.ProbeResult{}, false
	}
	c.metrics.ObserveProbe(ms)
	return model.ProbeResult{
		LatencyMs:   ms,
		PortStatus:  probe.PortStatus(ms, addr.Port),
		WindowStart: start.UTC(),
		WindowEnd:   end.UTC(),
	}, true
}

// prefetch probes each distinct address once with at most c.workers probes in flight.
func (c *Coordinator) prefetch(ctx context.Context, cache map[model.Address]model.ProbeResult) {
	var addrs []model.Address
	seen := make(map[model.Address]struct{})
	for _, entry := range c.entries {
		addr := *entry.Address
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}

	results := make([]model.ProbeResult, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i := range addrs {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, ok := c.probe(gctx, addrs[i])
			if !ok {
				return gctx.Err()
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return
	}
	for i, addr := range addrs {
		cache[addr] = results[i]
	}
}
