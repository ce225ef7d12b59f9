package writer

import "github.com/tsawler/pdfcos/observability"

// Option configures a write.
type Option func(*options)

type options struct {
	xrefStream      *bool
	incremental     bool
	deterministicID bool
	encrypter       Encrypter
	logger          observability.Logger
	tracer          observability.Tracer
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithXRefStream selects a cross-reference stream (true) or a classic
// table (false) regardless of the document's own setting.
func WithXRefStream(v bool) Option {
	return func(o *options) {
		o.xrefStream = &v
	}
}

// WithIncremental appends an update to the document's origin instead of
// writing a complete new file.
func WithIncremental() Option {
	return func(o *options) {
		o.incremental = true
	}
}

// WithDeterministicID derives the file identifier from the document
// content instead of random bytes, so equal inputs give equal outputs.
func WithDeterministicID() Option {
	return func(o *options) {
		o.deterministicID = true
	}
}

// WithEncrypter encrypts strings and streams of encrypted documents.
func WithEncrypter(e Encrypter) Option {
	return func(o *options) {
		o.encrypter = e
	}
}

// WithLogger sets the logger for write diagnostics.
func WithLogger(l observability.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer that times each write.
func WithTracer(t observability.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}
