package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/emberdb/ember/internal/engine"
)

var tracer = otel.Tracer("github.com/emberdb/ember/engine")

var (
	executeCount        = counter("ember.query.execute_count", "queries that ran their function body")
	validatedCount      = counter("ember.query.validated_count", "memos shallow- or deep-verified without re-executing")
	discardCount        = counter("ember.query.discard_count", "stale memoized outputs discarded as garbage")
	cycleIterationCount = counter("ember.query.cycle_iteration_count", "fixpoint iterations taken to converge a cycle")
	blockCount          = counter("ember.query.block_count", "times a thread parked on another thread's single-flight claim")
	cancellationCheck   = counter("ember.query.cancellation_check_count", "cancellation flag checks during execution")
)

// NewEventHook returns an engine.EventHook that records a short span and
// increments a counter for every Event, tagged with dbName so multiple
// host databases sharing a process are distinguishable. Each Event.Kind
// maps to one counter (WillDiscardStaleOutput and DidDiscard share the
// discard counter; other kinds get a span only); there is no paired start/end event in engine.Event, so
// spans are single points rather than covering a query's full lifetime.
func NewEventHook(dbName string) engine.EventHook {
	return func(ev engine.Event) {
		ctx := context.Background()
		attrs := []attribute.KeyValue{
			attribute.String("ember.database", dbName),
			attribute.String("ember.key", ev.Key.String()),
		}

		_, span := tracer.Start(ctx, "ember."+ev.Kind.String(), trace.WithAttributes(attrs...))
		span.End()

		opt := metric.WithAttributes(attrs...)
		switch ev.Kind {
		case engine.WillExecute:
			executeCount.Add(ctx, 1, opt)
		case engine.DidValidateMemoizedValue:
			validatedCount.Add(ctx, 1, opt)
		case engine.WillDiscardStaleOutput, engine.DidDiscard:
			discardCount.Add(ctx, 1, opt)
		case engine.WillIterateCycle:
			cycleIterationCount.Add(ctx, 1, opt)
		case engine.WillBlockOn:
			blockCount.Add(ctx, 1, opt)
		case engine.WillCheckCancellation:
			cancellationCheck.Add(ctx, 1, opt)
		}
	}
}
