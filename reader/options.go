package reader

import "github.com/tsawler/pdfcos/observability"

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l observability.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used to time opening the file.
func WithTracer(t observability.Tracer) Option {
	return func(r *Reader) {
		if t != nil {
			r.tracer = t
		}
	}
}
