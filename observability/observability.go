// Package observability defines the logging and tracing hooks used by the
// reader and writer packages. Both default to implementations that do
// nothing, so callers only pay for what they plug in.
package observability

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Logger receives structured log records.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a single key/value pair attached to a log record.
type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field      { return stringField{key, value} }
func Int(key string, value int) Field     { return intField{key, value} }
func Int64(key string, value int64) Field { return int64Field{key, value} }
func Error(key string, err error) Field   { return errorField{key, err} }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// StdLogger writes records through a standard library *log.Logger as
// "LEVEL msg key=value ...". Debug records are dropped unless Verbose is set.
type StdLogger struct {
	Out     *log.Logger
	Verbose bool
	fields  []Field
}

// NewStdLogger returns a StdLogger writing to out.
func NewStdLogger(out *log.Logger) *StdLogger {
	return &StdLogger{Out: out}
}

func (l *StdLogger) Debug(msg string, fields ...Field) {
	if l.Verbose {
		l.output("DEBUG", msg, fields)
	}
}

func (l *StdLogger) Info(msg string, fields ...Field)  { l.output("INFO", msg, fields) }
func (l *StdLogger) Warn(msg string, fields ...Field)  { l.output("WARN", msg, fields) }
func (l *StdLogger) Error(msg string, fields ...Field) { l.output("ERROR", msg, fields) }

func (l *StdLogger) With(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &StdLogger{Out: l.Out, Verbose: l.Verbose, fields: merged}
}

func (l *StdLogger) output(level, msg string, fields []Field) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range append(l.fields[:len(l.fields):len(l.fields)], fields...) {
		fmt.Fprintf(&b, " %s=%v", f.Key(), f.Value())
	}
	l.Out.Print(b.String())
}

// Tracer provides tracing hooks for library operations.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Span names used by the library.
const (
	SpanOpen             = "pdf.open"
	SpanWrite            = "pdf.write"
	SpanWriteIncremental = "pdf.write.incremental"
)
