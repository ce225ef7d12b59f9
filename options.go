package pdfcos

import (
	"github.com/tsawler/pdfcos/observability"
	"github.com/tsawler/pdfcos/reader"
	"github.com/tsawler/pdfcos/writer"
)

// SaveOptions holds configuration for opening and saving.
type SaveOptions struct {
	// Cross-reference form; nil keeps the document's own
	xrefStream *bool

	incremental     bool
	deterministicID bool

	logger observability.Logger
	tracer observability.Tracer
}

// defaultOptions returns the default options.
func defaultOptions() SaveOptions {
	return SaveOptions{
		xrefStream:      nil, // nil means the form the document was read with
		incremental:     false,
		deterministicID: false,
	}
}

// clone creates a deep copy of SaveOptions.
func (o SaveOptions) clone() SaveOptions {
	newOpts := o
	if o.xrefStream != nil {
		v := *o.xrefStream
		newOpts.xrefStream = &v
	}
	return newOpts
}

func (o SaveOptions) readerOptions() []reader.Option {
	var opts []reader.Option
	if o.logger != nil {
		opts = append(opts, reader.WithLogger(o.logger))
	}
	if o.tracer != nil {
		opts = append(opts, reader.WithTracer(o.tracer))
	}
	return opts
}

func (o SaveOptions) writerOptions() []writer.Option {
	var opts []writer.Option
	if o.xrefStream != nil {
		opts = append(opts, writer.WithXRefStream(*o.xrefStream))
	}
	if o.incremental {
		opts = append(opts, writer.WithIncremental())
	}
	if o.deterministicID {
		opts = append(opts, writer.WithDeterministicID())
	}
	if o.logger != nil {
		opts = append(opts, writer.WithLogger(o.logger))
	}
	if o.tracer != nil {
		opts = append(opts, writer.WithTracer(o.tracer))
	}
	return opts
}
