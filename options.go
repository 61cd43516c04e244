package rendergraph

import "time"

// Options holds the runtime's configuration knobs: in-flight frame
// count, transient-arena quiescence delay, and the scheduler's soft
// per-encoder command cap. Set via functional options passed to New.
type Options struct {
	InFlightFrames int
	ArenaSize      uint64
	PurgeDelay     time.Duration
	SoftCommandCap uint32
	WorkerCount    int
}

// Option configures a Context at construction time.
type Option func(*Options)

// WithInFlightFrames sets how many frame slots are kept in flight.
// Values below 1 are clamped to 1.
func WithInFlightFrames(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.InFlightFrames = n
	}
}

// WithArenaSize sets the byte size of each in-flight frame's transient
// arena.
func WithArenaSize(bytes uint64) Option {
	return func(o *Options) { o.ArenaSize = bytes }
}

// WithPurgeDelay overrides the quiescence delay before a retired
// transient arena is reset.
func WithPurgeDelay(d time.Duration) Option {
	return func(o *Options) { o.PurgeDelay = d }
}

// WithSoftCommandCap sets the pass scheduler's soft per-encoder command
// count cap. Zero disables the cap.
func WithSoftCommandCap(n uint32) Option {
	return func(o *Options) { o.SoftCommandCap = n }
}

// WithWorkerCount sets how many passes may record concurrently. Values
// below 1 are clamped to 1.
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		if n < 1 {
			n = 1
		}
		o.WorkerCount = n
	}
}

func defaultOptions() Options {
	return Options{
		InFlightFrames: 3,
		ArenaSize:      64 << 20,
		PurgeDelay:     5 * time.Second,
		SoftCommandCap: 0,
		WorkerCount:    4,
	}
}
