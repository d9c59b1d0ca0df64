package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Defaults used when the caller passes zero values.
const (
	DefaultCapacity        = 1000
	DefaultInlineThreshold = 120

	// blockIndent prefixes every line of a multi-line detail block.
	blockIndent = "    "
)

// Entry is a single journal record. Entries are never mutated once recorded.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`

	// Block is true when Detail is rendered as an indented block.
	Block bool `json:"block,omitempty"`
}

// String renders the entry the way getLogs returns it.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteString(" - ")
	b.WriteString(e.Message)

	if e.Detail == "" {
		return b.String()
	}

	if !e.Block {
		b.WriteByte(' ')
		b.WriteString(e.Detail)
		return b.String()
	}

	for _, line := range strings.Split(e.Detail, "\n") {
		b.WriteByte('\n')
		b.WriteString(blockIndent)
		b.WriteString(line)
	}
	return b.String()
}

// Journal is a bounded, append-only, in-memory event log.
//
// Thread Safety: all methods are safe for concurrent use.
type Journal struct {
	mu        sync.RWMutex
	entries   []Entry
	start     int // index of the oldest entry
	count     int
	seq       uint64
	dropped   uint64
	threshold int
	now       func() time.Time

	onRecord   func(Entry)
	callbackMu sync.RWMutex
}

// Options configures a Journal.
type Options struct {
	// Capacity is the maximum number of retained entries. Default 1000.
	Capacity int

	// InlineThreshold is the rendered detail size, in bytes, above which the
	// detail becomes an indented block. Default 120.
	InlineThreshold int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// New creates an empty journal.
func New(opts Options) *Journal {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.InlineThreshold <= 0 {
		opts.InlineThreshold = DefaultInlineThreshold
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Journal{
		entries:   make([]Entry, opts.Capacity),
		threshold: opts.InlineThreshold,
		now:       opts.Clock,
	}
}

// Record appends a timestamped entry. detail is optional; pass nil for none.
//
// Strings, byte slices and errors are used verbatim; anything else is
// rendered as JSON. A detail longer than the inline threshold, or one that
// already spans lines, is stored as an indented block.
func (j *Journal) Record(message string, detail any) Entry {
	rendered, block := j.render(detail)

	j.mu.Lock()
	j.seq++
	entry := Entry{
		Seq:       j.seq,
		Timestamp: j.now(),
		Message:   message,
		Detail:    rendered,
		Block:     block,
	}

	capacity := len(j.entries)
	if j.count < capacity {
		j.entries[(j.start+j.count)%capacity] = entry
		j.count++
	} else {
		j.entries[j.start] = entry
		j.start = (j.start + 1) % capacity
		j.dropped++
	}
	j.mu.Unlock()

	j.callbackMu.RLock()
	callback := j.onRecord
	j.callbackMu.RUnlock()
	if callback != nil {
		callback(entry)
	}

	return entry
}

// ReadAll returns every retained entry, oldest first.
func (j *Journal) ReadAll() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]Entry, j.count)
	capacity := len(j.entries)
	for i := 0; i < j.count; i++ {
		out[i] = j.entries[(j.start+i)%capacity]
	}
	return out
}

// Lines returns every retained entry rendered as a string, oldest first.
func (j *Journal) Lines() []string {
	entries := j.ReadAll()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

// Len returns the number of retained entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.count
}

// Capacity returns the maximum number of retained entries.
func (j *Journal) Capacity() int {
	return len(j.entries)
}

// Dropped returns how many entries have been evicted to make room.
func (j *Journal) Dropped() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dropped
}

// SetOnRecord sets a callback invoked after every Record, outside the
// journal lock. It is used to stream entries to live clients.
func (j *Journal) SetOnRecord(callback func(Entry)) {
	j.callbackMu.Lock()
	j.onRecord = callback
	j.callbackMu.Unlock()
}

// render converts a detail value to text and decides whether it is a block.
func (j *Journal) render(detail any) (string, bool) {
	var text string
	switch v := detail.(type) {
	case nil:
		return "", false
	case string:
		text = v
	case []byte:
		text = string(v)
	case error:
		text = v.Error()
	case fmt.Stringer:
		text = v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprintf("%+v", v)
		} else {
			text = string(data)
		}
	}

	if text == "" {
		return "", false
	}

	if len(text) <= j.threshold && !strings.Contains(text, "\n") {
		return text, false
	}

	return indentJSON(text), true
}

// indentJSON pretty-prints text when it is a JSON document, so large
// payloads read as blocks. Key order is preserved. Other text is returned
// unchanged.
func indentJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return trimmed
	}
	return buf.String()
}
