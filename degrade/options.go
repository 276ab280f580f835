package degrade

// DefaultReduceFactor is the LOD distance multiplier applied per ReduceLOD.
const DefaultReduceFactor = 0.75

// Option configures a Controller.
type Option func(*options)

type options struct {
	reduceFactor float64
	recovery     RecoveryPolicy
	deferred     bool
}

func defaultOptions() options {
	return options{reduceFactor: DefaultReduceFactor}
}

// WithReduceFactor sets the LOD distance multiplier used by ReduceLOD.
// Values outside (0, 1) are ignored.
func WithReduceFactor(f float64) Option {
	return func(o *options) {
		if f > 0 && f < 1 {
			o.reduceFactor = f
		}
	}
}

// WithRecovery enables upward recovery. Without it degradation is
// monotonic for the lifetime of the controller.
func WithRecovery(p RecoveryPolicy) Option {
	return func(o *options) {
		o.recovery = p
	}
}

// WithDeferredApply queues actions raised by the monitor instead of
// applying them on the sampling goroutine. The host applies them by
// calling Drain at the start of each frame on the render thread.
func WithDeferredApply() Option {
	return func(o *options) {
		o.deferred = true
	}
}
