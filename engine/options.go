package engine

import (
	"github.com/caseflow/engine/component"
	"github.com/caseflow/engine/engine/emit"
)

// Options holds every RuntimeService configuration knob. It can be
// passed directly to New, or built up via functional Option values —
// either style, or both mixed.
type Options struct {
	// PoolSize bounds the number of goroutines a fork/join dispatches
	// parallel-route children to. Zero means unbounded (native goroutines).
	PoolSize int

	// QueueDepth bounds how many fork submissions may wait for a free
	// pool slot before the submitter itself runs the work (caller-runs
	// backpressure). Ignored when PoolSize is zero.
	QueueDepth int

	// AggressivePersistence writes the info record after every step, not
	// just at PERSIST boundaries. Default true.
	AggressivePersistence bool

	// SystemErrorWorkBasket names the work basket an ErrorPend parks at
	// when the failing step did not specify one. Defaults to
	// SystemErrorWorkBasket.
	SystemErrorWorkBasket string

	// KeySeparator is the persistence-key delimiter. It must not appear
	// in any caseId. Defaults to "|".
	KeySeparator string

	// SnapshotVariablesInAudit includes a variables snapshot on every
	// audit record when true. Default false — snapshots are taken only when a
	// caller explicitly wants full audit fidelity, since they roughly
	// double the size of each audit record.
	SnapshotVariablesInAudit bool

	Store   Store
	Factory component.Factory
	Handler Handler
	SLA     SLAQueueManager
	Notify  WorkBasketNotifier
	Metrics *Metrics

	// Emitter receives step- and case-level observability events
	// alongside the Handler/Metrics/audit log — a side channel for
	// logs/traces, never something a step's outcome depends on.
	// Defaults to emit.NullEmitter.
	Emitter emit.Emitter
}

func defaultOptions() Options {
	return Options{
		AggressivePersistence: true,
		SystemErrorWorkBasket: SystemErrorWorkBasket,
		KeySeparator:          "|",
		Emitter:               emit.NewNullEmitter(),
	}
}

// Option is a functional option for configuring a RuntimeService.
type Option func(*Options) error

// WithPoolSize bounds fork/join concurrency. A bounded pool must use
// caller-runs backpressure (always on in this engine — see WithQueueDepth)
// or a parent awaiting its children can deadlock.
func WithPoolSize(n int) Option {
	return func(o *Options) error {
		o.PoolSize = n
		return nil
	}
}

// WithQueueDepth bounds the fork-submission queue. Once full, further
// submissions run on the submitting goroutine instead of blocking
// indefinitely for a pool slot.
func WithQueueDepth(n int) Option {
	return func(o *Options) error {
		o.QueueDepth = n
		return nil
	}
}

// WithAggressivePersistence toggles info writes after every step instead
// of only at PERSIST boundaries.
func WithAggressivePersistence(enabled bool) Option {
	return func(o *Options) error {
		o.AggressivePersistence = enabled
		return nil
	}
}

// WithSystemErrorWorkBasket overrides the default ErrorPend basket.
func WithSystemErrorWorkBasket(basket string) Option {
	return func(o *Options) error {
		o.SystemErrorWorkBasket = basket
		return nil
	}
}

// WithKeySeparator overrides the persistence-key delimiter.
func WithKeySeparator(sep string) Option {
	return func(o *Options) error {
		o.KeySeparator = sep
		return nil
	}
}

// WithSnapshotVariablesInAudit includes a full variables snapshot on
// every audit record.
func WithSnapshotVariablesInAudit(enabled bool) Option {
	return func(o *Options) error {
		o.SnapshotVariablesInAudit = enabled
		return nil
	}
}

// WithStore sets the persistence façade.
func WithStore(s Store) Option {
	return func(o *Options) error {
		o.Store = s
		return nil
	}
}

// WithFactory sets the component factory.
func WithFactory(f component.Factory) Option {
	return func(o *Options) error {
		o.Factory = f
		return nil
	}
}

// WithHandler sets the lifecycle event handler.
func WithHandler(h Handler) Option {
	return func(o *Options) error {
		o.Handler = h
		return nil
	}
}

// WithSLA sets the SLA/milestone queue manager.
func WithSLA(s SLAQueueManager) Option {
	return func(o *Options) error {
		o.SLA = s
		return nil
	}
}

// WithWorkBasketNotifier sets the external work-management notifier.
func WithWorkBasketNotifier(n WorkBasketNotifier) Option {
	return func(o *Options) error {
		o.Notify = n
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) error {
		o.Metrics = m
		return nil
	}
}

// WithEmitter sets the observability emitter (logs, traces, buffered
// test capture). Passing nil restores the NullEmitter.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) error {
		if e == nil {
			e = emit.NewNullEmitter()
		}
		o.Emitter = e
		return nil
	}
}
