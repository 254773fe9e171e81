package postgres

import "time"

// DefaultTimeout bounds every statement.
const DefaultTimeout = 10 * time.Second

// options holds PostgreSQL store configuration.
type options struct {
	timeout time.Duration
	migrate bool
}

func newOptions(opts ...Option) *options {
	o := &options{
		timeout: DefaultTimeout,
		migrate: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithTimeout sets the per-statement timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithoutMigrate skips schema creation on Open.
func WithoutMigrate() Option {
	return func(o *options) {
		o.migrate = false
	}
}
