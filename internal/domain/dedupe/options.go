package dedupe

// Option configures an InMemoryDeduper.
type Option func(*InMemoryDeduper)

// WithMaxSize bounds the number of pending keys. Zero or negative disables the bound.
func WithMaxSize(size int) Option {
	return func(d *InMemoryDeduper) {
		d.maxSize = size
	}
}
