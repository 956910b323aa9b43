package blend

import "log/slog"

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger used for debug events during open and
// decode. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}
