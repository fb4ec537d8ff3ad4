package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"sourcefinder/internal/source"
	"sourcefinder/internal/telemetry"
	"sourcefinder/models"
)

// DegradedSource records a requested source kind that produced nothing, with
// the reason it failed. Degraded sources never abort the request.
type DegradedSource struct {
	Kind   models.SourceKind `json:"kind"`
	Reason string            `json:"reason"`
}

// Result is the fan-in of one retrieval pass. ItemsByKind preserves each
// adapter's own ordering; cross-adapter order is not defined here.
type Result struct {
	ItemsByKind map[models.SourceKind][]source.RawItem
	Degraded    []DegradedSource
}

// Empty reports the valid no-sources-found condition.
func (r Result) Empty() bool {
	for _, items := range r.ItemsByKind {
		if len(items) > 0 {
			return false
		}
	}
	return true
}

// Orchestrator fans a query out to the selected adapters and collects
// whatever completes inside the deadline.
type Orchestrator struct {
	registry       source.Registry
	adapterTimeout time.Duration
	logger         *log.Logger
	telemetry      *telemetry.Telemetry
}

func NewOrchestrator(registry source.Registry, adapterTimeout time.Duration, tele *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		registry:       registry,
		adapterTimeout: adapterTimeout,
		logger:         log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
		telemetry:      tele,
	}
}

// Retrieve invokes every adapter for the requested kinds concurrently.
// queries carries the per-kind search query; kinds absent from the map fall
// back to fallbackQuery. Adapter failures and timeouts degrade that source
// only; Retrieve errors only when the resolved kind set is empty.
func (o *Orchestrator) Retrieve(ctx context.Context, queries map[models.SourceKind]string, fallbackQuery string, kinds []models.SourceKind, limit int) (Result, error) {
	if len(kinds) == 0 {
		return Result{}, fmt.Errorf("%w: no sources requested", models.ErrInvalidFilter)
	}

	adapters, missing := o.registry.Select(kinds)
	result := Result{ItemsByKind: make(map[models.SourceKind][]source.RawItem, len(kinds))}
	for _, kind := range missing {
		result.Degraded = append(result.Degraded, DegradedSource{Kind: kind, Reason: "not configured"})
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, adapter := range adapters {
		wg.Add(1)
		go func(a source.Adapter) {
			defer wg.Done()
			kind := a.Kind()
			query := queries[kind]
			if query == "" {
				query = fallbackQuery
			}

			fetchCtx := ctx
			var cancel context.CancelFunc
			if o.adapterTimeout > 0 {
				fetchCtx, cancel = context.WithTimeout(ctx, o.adapterTimeout)
				defer cancel()
			}

			start := time.Now()
			items, err := a.Fetch(fetchCtx, query, limit)
			elapsed := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := "unavailable"
				if errors.Is(err, source.ErrTimeout) || errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
					reason = "timeout"
				}
				o.logger.Printf("[%s] failed after %s: %v", kind, elapsed.Round(time.Millisecond), err)
				o.telemetry.RecordSource(string(kind), reason, elapsed)
				result.Degraded = append(result.Degraded, DegradedSource{Kind: kind, Reason: reason})
				return
			}
			o.logger.Printf("[%s] %d results in %s", kind, len(items), elapsed.Round(time.Millisecond))
			o.telemetry.RecordSource(string(kind), "ok", elapsed)
			result.ItemsByKind[kind] = items
		}(adapter)
	}
	wg.Wait()

	return result, nil
}
