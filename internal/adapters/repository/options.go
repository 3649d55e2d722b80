package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithIDGenerator sets the function used for audit entry ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *MemoryStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// InstrumentOption applies a configuration option to the Instrumented store.
type InstrumentOption func(*Instrumented)

// WithTimeout bounds every store call. Non-positive keeps the default.
func WithTimeout(d time.Duration) InstrumentOption {
	return func(s *Instrumented) {
		if d > 0 {
			s.timeout = d
		}
	}
}
