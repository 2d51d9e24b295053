package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcgn/application-tracker/filter"
	"github.com/dhcgn/application-tracker/model"
	"github.com/dhcgn/application-tracker/normalize"
	"github.com/dhcgn/application-tracker/source"
	"github.com/dhcgn/application-tracker/state"
	"github.com/dhcgn/application-tracker/stats"
	"github.com/dhcgn/application-tracker/store"
)

// ProgressEvery is how often, in messages, a progress line is logged.
const ProgressEvery = 25

var (
	ErrPanic      = errors.New("panic while processing message")
	ErrIDMismatch = errors.New("fetched message has a different id")
)

type Options struct {
	Query      string
	Max        int
	Out        string
	Mode       store.Mode
	Filter     *filter.Filter
	Normalizer *normalize.Normalizer
}

type subscriber struct {
	name string
	fn   stats.Subscriber
}

// Runner executes one scan: collect ids, drop the ones already stored,
// fetch and normalize the rest in order, then write the records.
type Runner struct {
	opts        Options
	src         source.Source
	logger      *slog.Logger
	subscribers []subscriber
}

func New(opts Options, src source.Source, logger *slog.Logger) (*Runner, error) {
	if src == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if opts.Max <= 0 {
		return nil, fmt.Errorf("max must be positive, got %d", opts.Max)
	}
	if opts.Out == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(normalize.Options{Logger: logger})
	}
	return &Runner{opts: opts, src: src, logger: logger}, nil
}

// SubscribeStats registers fn for every event of the run. Events are
// delivered synchronously in emission order.
func (r *Runner) SubscribeStats(name string, fn stats.Subscriber) {
	r.subscribers = append(r.subscribers, subscriber{name: name, fn: fn})
}

func (r *Runner) EmitEvent(evt stats.Event) {
	for _, s := range r.subscribers {
		s.fn(evt)
	}
}

// Run performs the scan. Failures of single messages are logged and
// counted; listing and writing failures abort the run.
func (r *Runner) Run(ctx context.Context) error {
	since := time.Now()

	ids, err := source.CollectIDs(ctx, r.src, r.opts.Query, r.opts.Max)
	if err != nil {
		r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeError, Err: err})
		return fmt.Errorf("collect message ids: %w", err)
	}
	r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeFound, Count: len(ids)})
	r.logger.Info("found message ids", "count", len(ids), "max", r.opts.Max)

	tracker, err := r.tracker()
	if err != nil {
		return err
	}

	pending := state.Pending(tracker, ids)
	skipped := len(ids) - len(pending)
	r.EmitEvent(stats.Event{Stage: stats.StageSource, Type: stats.EventTypeDuplicate, Count: skipped})
	r.logger.Info("new messages to process", "pending", len(pending), "skipped", skipped)

	records := make([]model.Record, 0, len(pending))
	failed := 0
	for i, id := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, keep, err := r.process(ctx, id, tracker)
		switch {
		case err != nil:
			failed++
			r.EmitEvent(stats.Event{Stage: stats.StageNormalize, Type: stats.EventTypeError, MessageID: id, Err: err})
			r.logger.Error("error parsing message", "messageID", id, "err", err)
		case !keep:
			r.EmitEvent(stats.Event{Stage: stats.StageNormalize, Type: stats.EventTypeFiltered, MessageID: id})
		default:
			records = append(records, rec)
			r.EmitEvent(stats.Event{Stage: stats.StageNormalize, Type: stats.EventTypeProcessed, MessageID: id, Status: rec.Status})
		}

		if done := i + 1; done%ProgressEvery == 0 {
			r.logger.Info("processed messages", "done", done, "total", len(pending))
		}
	}

	if err := r.write(records, failed); err != nil {
		r.EmitEvent(stats.Event{Stage: stats.StageStore, Type: stats.EventTypeError, Err: err})
		return err
	}
	r.EmitEvent(stats.Event{Stage: stats.StageStore, Type: stats.EventTypeWritten, Count: len(records)})

	r.logger.Info("scan completed", "records", len(records), "out", r.opts.Out, "mode", r.opts.Mode, "duration", time.Since(since))
	return nil
}

func (r *Runner) tracker() (*state.MemoryTracker, error) {
	if r.opts.Mode != store.ModeAppend {
		return state.NewMemoryTracker(), nil
	}
	tracker, err := state.LoadStore(r.opts.Out)
	if err != nil {
		r.EmitEvent(stats.Event{Stage: stats.StageStore, Type: stats.EventTypeError, Err: err})
		return nil, err
	}
	r.logger.Debug("existing records loaded", "path", r.opts.Out, "ids", tracker.Snapshot().Processed)
	return tracker, nil
}

// process fetches and normalizes one message. keep is false when the
// message was filtered out or already recorded in this run.
func (r *Runner) process(ctx context.Context, id string, tracker state.Tracker) (rec model.Record, keep bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			rec, keep, err = model.Record{}, false, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	msg, err := r.src.Fetch(ctx, id)
	if err != nil {
		return model.Record{}, false, fmt.Errorf("fetch: %w", err)
	}
	if msg == nil {
		return model.Record{}, false, fmt.Errorf("fetch: %w", normalize.ErrNilMessage)
	}
	if msg.ID != id {
		return model.Record{}, false, fmt.Errorf("%w: listed %q, got %q", ErrIDMismatch, id, msg.ID)
	}

	if !r.opts.Filter.Allows(msg) {
		r.logger.Debug("message filtered", "messageID", id)
		return model.Record{}, false, nil
	}

	rec, err = r.opts.Normalizer.Record(msg)
	if err != nil {
		return model.Record{}, false, fmt.Errorf("normalize: %w", err)
	}

	if tracker.AlreadyProcessed(rec.MessageID) {
		r.logger.Debug("message already recorded", "messageID", rec.MessageID)
		return model.Record{}, false, nil
	}
	tracker.MarkProcessed(rec.MessageID)

	r.logger.Debug("message processed", "messageID", id, "status", rec.Status, "company", rec.CompanyGuess)
	return rec, true, nil
}

func (r *Runner) write(records []model.Record, failed int) error {
	if len(records) == 0 && r.opts.Mode == store.ModeAppend {
		r.logger.Info("no new rows to write")
		return nil
	}
	if len(records) == 0 && failed > 0 {
		r.logger.Warn("overwriting output with no rows after failures", "out", r.opts.Out, "errors", failed)
	}
	if err := store.Write(r.opts.Out, records, r.opts.Mode); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	r.logger.Info("wrote rows", "count", len(records), "out", r.opts.Out)
	return nil
}
