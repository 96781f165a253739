package store

// Options are the settings shared by every backend constructor.
type Options struct {
	IDs   IDGenerator
	Clock Clock
}

// Option configures a backend.
type Option func(*Options)

// WithIDGenerator overrides the UUIDv7 default. Tests pass a sequential
// generator so ids are stable across runs.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *Options) {
		o.IDs = g
	}
}

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...Option) Options {
	o := Options{IDs: UUIDv7Generator{}, Clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
