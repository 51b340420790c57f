// Package emit provides pluggable observability for case execution,
// independent of the Handler/SLAQueueManager lifecycle hooks engine
// itself dispatches: an Emitter is a side channel for logs/traces/metrics,
// never something a step's outcome depends on.
package emit

import "context"

// Emitter receives step-level and case-level events. Implementations
// must not block step dispatch for long and must not panic; a slow or
// failing emitter should degrade observability, not a workflow.
type Emitter interface {
	Emit(event Event)

	// EmitBatch sends multiple events in one call. Order is
	// happened-before order; implementations that can't batch
	// natively may just loop over Emit.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until every buffered event has been sent or ctx
	// expires. Emitters with no internal buffer treat this as a no-op.
	Flush(ctx context.Context) error
}
