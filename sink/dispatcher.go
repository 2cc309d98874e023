package sink

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/dispatch/component"
	"github.com/skillsenselab/dispatch/logger"
	"github.com/skillsenselab/dispatch/resilience"
	"github.com/skillsenselab/dispatch/workload"
)

// Dispatcher runs sink filings in the background and drives the
// Reported→Finished (or Reported→Failed{SinkError}) transition. The beacon
// handler submits and returns; filing never blocks the request path.
//
// In-flight filings are bounded by a bulkhead so a slow tracker cannot pile
// up unbounded goroutines.
type Dispatcher struct {
	filer    Filer
	registry *workload.Registry
	bulkhead *resilience.Bulkhead
	log      *logger.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewDispatcher creates a Dispatcher over the given filer and registry.
func NewDispatcher(filer Filer, registry *workload.Registry, maxConcurrent int, log *logger.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "result-sink",
		MaxConcurrent: maxConcurrent,
		// Queue behind the bulkhead rather than rejecting: every reported
		// workload must reach the sink exactly once.
		MaxWait: 10 * time.Minute,
	})
	return &Dispatcher{
		filer:    filer,
		registry: registry,
		bulkhead: bh,
		log:      log.WithComponent("sink"),
	}
}

// Submit schedules the filing for a workload that just reached Reported.
// It returns immediately; the outcome lands in the registry.
func (d *Dispatcher) Submit(idx int, rec workload.Record) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.log.Warn("submit after stop; marking failed", map[string]interface{}{
			logger.FieldWorkload: rec.Workload.Name,
		})
		_ = d.registry.MarkFailed(idx, workload.ReasonSinkError)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.file(idx, rec)
	}()
}

func (d *Dispatcher) file(idx int, rec workload.Record) {
	result := Result{
		Workload:   rec.Workload.Name,
		Client:     rec.Assignee,
		Payload:    rec.Payload,
		ReportedAt: rec.Timestamps[workload.StateReported],
	}

	err := d.bulkhead.Execute(context.Background(), func() error {
		return d.filer.File(context.Background(), result)
	})
	if err != nil {
		d.log.Error("sink filing failed", logger.MergeWithError(map[string]interface{}{
			logger.FieldWorkload: result.Workload,
		}, err))
		if ferr := d.registry.MarkFailed(idx, workload.ReasonSinkError); ferr != nil {
			d.log.Error("failed to mark workload failed", logger.ErrorFields("mark-failed", ferr))
		}
		return
	}

	if ferr := d.registry.MarkFinished(idx); ferr != nil {
		d.log.Error("failed to mark workload finished", logger.ErrorFields("mark-finished", ferr))
	}
}

// Drain blocks until every submitted filing has completed or the context
// expires.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- component.Component ---

var _ component.Component = (*Dispatcher)(nil)

// Name returns the component name.
func (d *Dispatcher) Name() string { return "result-sink" }

// Start is a no-op; the dispatcher is ready as soon as it is constructed.
func (d *Dispatcher) Start(_ context.Context) error { return nil }

// Stop refuses new submissions and drains in-flight filings.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return d.Drain(ctx)
}

// Health reports healthy while the dispatcher accepts submissions.
func (d *Dispatcher) Health(_ context.Context) component.Health {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return component.Health{Name: d.Name(), Status: component.StatusUnhealthy, Message: "stopped"}
	}
	return component.Health{Name: d.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (d *Dispatcher) Describe() component.Description {
	return component.Description{
		Name:    "Result Sink",
		Type:    "sink",
		Details: "issue tracker",
	}
}
