package readingcache

type options struct {
	maxSize int
}

// Option applies a configuration option to a Cache.
type Option func(*options)

// WithMaxSize sets the maximum number of results kept in memory.
// A maxSize <= 0 disables the cache.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}
