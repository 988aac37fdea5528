// Package telemetry is the structured logging ambient stack: a thin
// charmbracelet/log wrapper with a WithFields-style derived-logger API and
// two output modes (human-readable text for local runs, JSON for machine
// consumption), mirroring the teacher's internal/logger + internal/
// infrastructure/logging split.
package telemetry

import (
	"io"
	"os"
	"sort"
	"strings"

	cblog "github.com/charmbracelet/log"
)

// Options configures a Logger at construction time.
type Options struct {
	Level         string // "debug", "info", "warn", "error"; default "info"
	HumanReadable bool   // text formatter when true, JSON formatter when false
	Writer        io.Writer
	Component     string
}

// Logger wraps a charmbracelet/log instance with a fixed set of derived
// fields, re-attached on every call; WithFields derives a logger with more.
type Logger struct {
	base   *cblog.Logger
	fields []interface{}
}

// New constructs a Logger from Options, defaulting to info level and JSON
// output (the teacher's machine-consumption default) when unset.
func New(opts Options) (*Logger, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stdout
	}

	level := cblog.InfoLevel
	if opts.Level != "" {
		parsed, err := cblog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	formatter := cblog.JSONFormatter
	if opts.HumanReadable {
		formatter = cblog.TextFormatter
	}

	base := cblog.NewWithOptions(writer, cblog.Options{
		Level:           level,
		ReportTimestamp: true,
		Formatter:       formatter,
	})

	var fields []interface{}
	if opts.Component != "" {
		fields = []interface{}{"component", opts.Component}
	}

	return &Logger{base: base, fields: fields}, nil
}

// WithFields returns a derived Logger that always includes the given
// fields, sorted by key so output is deterministic across runs.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := make([]interface{}, len(l.fields), len(l.fields)+len(fields)*2)
	copy(next, l.fields)
	for _, k := range keys {
		next = append(next, k, fields[k])
	}
	return &Logger{base: l.base, fields: next}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(l.base.Debug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(l.base.Info, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(l.base.Warn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(l.base.Error, msg, kv...) }

func (l *Logger) log(fn func(interface{}, ...interface{}), msg string, kv ...interface{}) {
	if l == nil || l.base == nil {
		return
	}
	payload := make([]interface{}, 0, len(l.fields)+len(kv))
	payload = append(payload, l.fields...)
	payload = append(payload, kv...)
	fn(msg, payload...)
}
