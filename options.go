package blockfs

type options struct {
	logger *Logger
}

// Option configures Mount behavior.
type Option func(*options)

// WithLogger configures the logger used for operation logging.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}
