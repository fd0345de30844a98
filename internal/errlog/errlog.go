// Package errlog collects structured error records from every component of
// the pipeline. Recording is failure-isolated: a sink that cannot write must
// never break the request path, so Record swallows its own failures after a
// stderr note.
package errlog

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Severity orders error records from informational to critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// MarshalJSON renders the severity as its name rather than a number.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies where an error originated.
type Category string

const (
	CategoryAPI     Category = "API"
	CategoryAuth    Category = "AUTH"
	CategoryData    Category = "DATA"
	CategorySystem  Category = "SYSTEM"
	CategoryUser    Category = "USER"
	CategoryNetwork Category = "NETWORK"
	CategoryStorage Category = "STORAGE"
	CategoryUnknown Category = "UNKNOWN"
)

// Record is one captured error event.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity"`
	Category  Category          `json:"category"`
	Stack     string            `json:"stack,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Option configures an optional Record field.
type Option func(*Record)

// WithUser attaches the user id the error occurred for.
func WithUser(userID string) Option {
	return func(r *Record) { r.UserID = userID }
}

// WithStack captures the current goroutine stack.
func WithStack() Option {
	return func(r *Record) { r.Stack = string(debug.Stack()) }
}

// WithMeta attaches a structured metadata key/value pair.
func WithMeta(key, value string) Option {
	return func(r *Record) {
		if r.Metadata == nil {
			r.Metadata = make(map[string]string)
		}
		r.Metadata[key] = value
	}
}

// Appender persists records beyond the in-memory ring.
type Appender interface {
	Append(rec Record) error
	Close() error
}

// Sink keeps the most recent records in a bounded ring and optionally
// forwards each record to a durable appender.
type Sink struct {
	mu      sync.Mutex
	ring    []Record
	next    int
	size    int
	durable Appender // nil when no durable log configured
}

// NewSink creates a Sink retaining at most size records in memory.
// durable may be nil.
func NewSink(size int, durable Appender) *Sink {
	if size < 1 {
		size = 1
	}
	return &Sink{
		ring:    make([]Record, 0, size),
		size:    size,
		durable: durable,
	}
}

// Record captures an error event. It never returns an error and never
// panics: logging must not take down the request that triggered it.
func (s *Sink) Record(module, message string, severity Severity, category Category, opts ...Option) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "errlog: panic while recording: %v\n", r)
		}
	}()

	rec := Record{
		Timestamp: time.Now(),
		Module:    module,
		Message:   message,
		Severity:  severity,
		Category:  category,
	}
	for _, opt := range opts {
		opt(&rec)
	}

	s.mu.Lock()
	if len(s.ring) < s.size {
		s.ring = append(s.ring, rec)
	} else {
		s.ring[s.next] = rec
	}
	s.next = (s.next + 1) % s.size
	s.mu.Unlock()

	s.emit(rec)

	if s.durable != nil {
		if err := s.durable.Append(rec); err != nil {
			fmt.Fprintf(os.Stderr, "errlog: durable append failed: %v\n", err)
		}
	}
}

// Recent returns up to n most recent records, newest first.
func (s *Sink) Recent(n int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.ring)
	if n > total {
		n = total
	}

	out := make([]Record, 0, n)
	// Walk backwards from the slot before next.
	idx := s.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx = total - 1
		}
		out = append(out, s.ring[idx])
		idx--
	}
	return out
}

// Stats aggregates the retained records by severity and category.
type Stats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCategory map[string]int `json:"by_category"`
}

// Stats summarizes the in-memory window. Counts cover only the retained
// records, not everything ever recorded.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Total:      len(s.ring),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, rec := range s.ring {
		stats.BySeverity[rec.Severity.String()]++
		stats.ByCategory[string(rec.Category)]++
	}
	return stats
}

// Close releases the durable appender, if any.
func (s *Sink) Close() error {
	if s.durable == nil {
		return nil
	}
	if err := s.durable.Close(); err != nil {
		return fmt.Errorf("errlog.Sink.Close: %w", err)
	}
	return nil
}

func (s *Sink) emit(rec Record) {
	var evt *zerolog.Event
	switch rec.Severity {
	case SeverityInfo:
		evt = log.Info()
	case SeverityWarning:
		evt = log.Warn()
	default:
		evt = log.Error()
	}
	evt.Str("module", rec.Module).
		Str("category", string(rec.Category)).
		Str("severity", rec.Severity.String())
	if rec.UserID != "" {
		evt.Str("user_id", rec.UserID)
	}
	evt.Msg(rec.Message)
}
