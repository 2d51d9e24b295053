package progress

import (
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/stats"
)

// Bar shows message processing on the terminal. It starts once the number
// of pending messages is known and stops when the records are written.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	mu      sync.Mutex
	enabled bool
	found   int
	total   int
}

// New creates a progress bar that is only drawn when logLevel is "info",
// so debug output is not interleaved with redraws.
func New(logLevel string) *Bar {
	return &Bar{enabled: logLevel == "info"}
}

// Update advances the bar for one event; it is a stats.Subscriber.
func (b *Bar) Update(evt stats.Event) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch evt.Type {
	case stats.EventTypeFound:
		b.found += evt.Count
		pterm.Info.Printf("Found %d message ids\n", b.found)
	case stats.EventTypeDuplicate:
		if evt.Count > 0 {
			pterm.Info.Printf("Skipping %d messages already in the output file\n", evt.Count)
		}
		b.start(b.found - evt.Count)
	case stats.EventTypeProcessed, stats.EventTypeFiltered:
		b.step(evt.MessageID)
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
		if evt.MessageID != "" {
			b.step(evt.MessageID)
		}
	case stats.EventTypeWritten:
		b.stop()
	}
}

func (b *Bar) start(total int) {
	b.total = total
	if total <= 0 {
		return
	}
	pb, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Processing messages").
		Start()
	if err != nil {
		return
	}
	b.pb = pb
}

func (b *Bar) step(messageID string) {
	if b.pb == nil {
		return
	}
	if messageID != "" {
		displayID := []rune(messageID)
		if len(displayID) > 40 {
			displayID = append(displayID[:37], []rune("...")...)
		}
		b.pb.UpdateTitle("Processing: " + string(displayID))
	}
	b.pb.Increment()
}

func (b *Bar) stop() {
	if b.pb == nil {
		return
	}
	if b.pb.Current < b.total {
		b.pb.Current = b.total
	}
	_, _ = b.pb.Stop()
	b.pb = nil
}

// Stop finalizes the bar if the run ended before records were written.
func (b *Bar) Stop() {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stop()
}

// PrintSummary prints the run counts after the bar is gone.
func PrintSummary(summary stats.Summary, duration time.Duration, out string) {
	pterm.Println()
	pterm.DefaultSection.Println("Summary Statistics")
	pterm.Info.Printf("Duration: %v\n", duration.Round(time.Millisecond))
	pterm.Info.Printf("Found: %d\n", summary.Found)
	pterm.Info.Printf("Already stored (skipped): %d\n", summary.Duplicates)
	pterm.Info.Printf("Processed: %d\n", summary.Processed)
	if summary.Filtered > 0 {
		pterm.Info.Printf("Filtered out: %d\n", summary.Filtered)
	}
	for _, status := range model.Statuses {
		if n := summary.ByStatus[status]; n > 0 {
			pterm.Info.Printf("  %s: %d\n", status, n)
		}
	}
	pterm.Info.Printf("Errors: %d\n", summary.Errors)
	if summary.LastError != nil {
		pterm.Error.Printf("Last error: %v\n", summary.LastError)
	}
	if summary.Written > 0 {
		pterm.Success.Printf("Wrote %d rows to %s\n", summary.Written, out)
	} else {
		pterm.Info.Println("No new rows to write.")
	}
}
