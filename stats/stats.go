package stats

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dhcgn/application-tracker/model"
)

type Stage string

const (
	StageSource    Stage = "source"
	StageNormalize Stage = "normalize"
	StageStore     Stage = "store"
)

type EventType string

const (
	EventTypeFound     EventType = "found"
	EventTypeDuplicate EventType = "duplicate"
	EventTypeProcessed EventType = "processed"
	EventTypeFiltered  EventType = "filtered"
	EventTypeWritten   EventType = "written"
	EventTypeError     EventType = "error"
)

type Event struct {
	Stage     Stage
	Type      EventType
	MessageID string
	Status    model.Status
	// Count carries the number of ids or records for batch events.
	Count  int
	Err    error
	Detail string
}

type Summary struct {
	Found      int
	Duplicates int
	Processed  int
	Filtered   int
	Written    int
	Errors     int
	ByStatus   map[model.Status]int
	LastError  error
}

// Pending is the number of found ids that were not already stored.
func (s Summary) Pending() int {
	return s.Found - s.Duplicates
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"found", s.Found,
		"duplicates", s.Duplicates,
		"processed", s.Processed,
		"filtered", s.Filtered,
		"written", s.Written,
		"errors", s.Errors,
	}
	for _, status := range model.Statuses {
		if n := s.ByStatus[status]; n > 0 {
			attrs = append(attrs, string(status), n)
		}
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{ByStatus: make(map[model.Status]int)}}
}

// Snapshot returns a copy that is safe to keep after further events.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := c.summary
	summary.ByStatus = make(map[model.Status]int, len(c.summary.ByStatus))
	for k, v := range c.summary.ByStatus {
		summary.ByStatus[k] = v
	}
	return summary
}

func (c *Collector) Apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeFound:
		c.summary.Found += evt.Count
	case EventTypeDuplicate:
		c.summary.Duplicates += evt.Count
	case EventTypeProcessed:
		c.summary.Processed++
		c.summary.ByStatus[evt.Status]++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeWritten:
		c.summary.Written += evt.Count
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

// Subscriber receives every event of a run, synchronously and in order.
type Subscriber func(Event)

type EventStream interface {
	SubscribeStats(name string, fn Subscriber)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.collector.Apply)
	return reporter
}

// Log writes the final summary line.
func (r *Reporter) Log() {
	if r.logger == nil {
		return
	}
	attrs := append(r.Summary().LogAttrs(), "duration", time.Since(r.started))
	r.logger.Info("stats summary", attrs...)
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

func (r *Reporter) Duration() time.Duration {
	return time.Since(r.started)
}

// Pair is one counted value.
type Pair struct {
	Key   string
	Value int
}

// Top returns the limit most frequent entries of m, ties broken by key.
// Empty keys are ignored.
func Top(m map[string]int, limit int) []Pair {
	pairs := make([]Pair, 0, len(m))
	for k, v := range m {
		if k == "" {
			continue
		}
		pairs = append(pairs, Pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})

	if limit >= 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(w io.Writer, m map[string]int, limit int) {
	for i, p := range Top(m, limit) {
		fmt.Fprintf(w, "%d. %s (%d)\n", i+1, p.Key, p.Value)
	}
}

// Tally counts stored records for the summary report.
type Tally struct {
	Total     int
	ByStatus  map[model.Status]int
	Senders   map[string]int
	Companies map[string]int
	Threads   map[string]int
}

func NewTally(records []model.Record) Tally {
	t := Tally{
		Total:     len(records),
		ByStatus:  make(map[model.Status]int),
		Senders:   make(map[string]int),
		Companies: make(map[string]int),
		Threads:   make(map[string]int),
	}
	for _, rec := range records {
		status := rec.Status
		if !status.Valid() {
			status = model.StatusUnknown
		}
		t.ByStatus[status]++
		t.Senders[rec.SenderEmail]++
		t.Companies[rec.CompanyGuess]++
		t.Threads[rec.ThreadID]++
	}
	return t
}

// StatusCounts renders ByStatus in the fixed status order, for printing
// and reports.
func (t Tally) StatusCounts() []Pair {
	pairs := make([]Pair, 0, len(model.Statuses))
	for _, status := range model.Statuses {
		pairs = append(pairs, Pair{Key: string(status), Value: t.ByStatus[status]})
	}
	return pairs
}
