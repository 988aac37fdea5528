package telemetry

import (
	"sort"
	"sync"
)

// Entry is one recorded log line, captured by a Buffer for assertions in
// tests that need to observe what was logged without parsing text output.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// Buffer is an in-memory log sink, modeled on the teacher's EventBuffer:
// useful from tests that want to assert a warning/error was logged without
// wiring a real writer.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

func (b *Buffer) record(level, msg string, kv []interface{}) {
	fields := map[string]interface{}{}
	keys := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
		keys = append(keys, key)
	}
	sort.Strings(keys)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Entries returns a snapshot of every recorded entry, in record order.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// BufferedLogger is a Logger stand-in that writes into a Buffer instead of
// charmbracelet/log, for tests that assert on log content.
type BufferedLogger struct {
	buffer *Buffer
	fields []interface{}
}

// NewBufferedLogger returns a BufferedLogger writing into buffer.
func NewBufferedLogger(buffer *Buffer) *BufferedLogger {
	return &BufferedLogger{buffer: buffer}
}

func (l *BufferedLogger) WithFields(fields map[string]interface{}) *BufferedLogger {
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
	return &BufferedLogger{buffer: l.buffer, fields: next}
}

func (l *BufferedLogger) Debug(msg string, kv ...interface{}) { l.log("debug", msg, kv...) }
func (l *BufferedLogger) Info(msg string, kv ...interface{})  { l.log("info", msg, kv...) }
func (l *BufferedLogger) Warn(msg string, kv ...interface{})  { l.log("warn", msg, kv...) }
func (l *BufferedLogger) Error(msg string, kv ...interface{}) { l.log("error", msg, kv...) }

func (l *BufferedLogger) log(level, msg string, kv ...interface{}) {
	payload := append(append([]interface{}{}, l.fields...), kv...)
	l.buffer.record(level, msg, payload)
}
