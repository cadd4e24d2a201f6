// Package cleanup runs deletion passes against a single mailbox session.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/filter"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/aaronromeo/inboxsweep/internal/cleanup"

type State int

const (
	StateIdle State = iota
	StateConnected
	StateSearching
	StateEvaluating
	StateDeleting
	StateSimulating
	StatePurging
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateSearching:
		return "searching"
	case StateEvaluating:
		return "evaluating"
	case StateDeleting:
		return "deleting"
	case StateSimulating:
		return "simulating"
	case StatePurging:
		return "purging"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Criterion is one deletion pass.
type Criterion struct {
	Label     string
	Predicate mailbox.Predicate
	Filter    filter.Criteria
	DryRun    bool
}

// BySender builds the pass deleting messages from sender.
func BySender(sender string, minAgeDays int, dryRun bool) Criterion {
	return Criterion{
		Label:     sender,
		Predicate: mailbox.FromContains(sender),
		Filter:    filter.Criteria{MinAgeDays: minAgeDays},
		DryRun:    dryRun,
	}
}

// ReadNoAttachment builds the pass deleting read messages without attachments.
func ReadNoAttachment(minAgeDays int, dryRun bool) Criterion {
	return Criterion{
		Label:     "read without attachment",
		Predicate: mailbox.Seen(),
		Filter:    filter.Criteria{MinAgeDays: minAgeDays, RequireNoAttachment: true},
		DryRun:    dryRun,
	}
}

type Detail struct {
	Label string
	Count int
}

// Result summarizes one run. Total counts messages deleted or, in a dry
// run, messages that would have been deleted.
type Result struct {
	Total   int
	Details []Detail
	Marked  int
	Purged  bool
	Skipped int
	Failed  int
}

// DetailString renders the per-criterion counts for reports.
func (r Result) DetailString() string {
	parts := make([]string, 0, len(r.Details))
	for _, d := range r.Details {
		parts = append(parts, fmt.Sprintf("%s: %d", d.Label, d.Count))
	}
	return strings.Join(parts, "; ")
}

// Engine evaluates criteria against a mailbox and deletes what qualifies.
// A single Engine must not run concurrently with itself.
type Engine struct {
	Dialer mailbox.Dialer
	Log    *slog.Logger
	Now    func() time.Time
	Tracer trace.Tracer
	Meter  metric.Meter

	state   State
	metrics metrics
}

func New(dialer mailbox.Dialer, log *slog.Logger) *Engine {
	return &Engine{
		Dialer: dialer,
		Log:    log,
		Now:    time.Now,
		Tracer: otel.Tracer(instrumentationName),
		Meter:  otel.Meter(instrumentationName),
	}
}

type metrics struct {
	deleted metric.Int64Counter
	skipped metric.Int64Counter
	failed  metric.Int64Counter
}

func newMetrics(meter metric.Meter) metrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(instrumentationName)
	}
	return metrics{
		deleted: counter(meter, "inboxsweep.messages.deleted", "Messages deleted, or selected for deletion in a dry run"),
		skipped: counter(meter, "inboxsweep.messages.skipped", "Candidate messages kept by the filter"),
		failed:  counter(meter, "inboxsweep.messages.failed", "Candidate messages that could not be fetched or marked"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit("{message}"))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

// State returns the state reached by the most recent run.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) transition(to State) {
	if e.state == to {
		return
	}
	e.Log.Debug("cleanup state", "from", e.state.String(), "to", to.String())
	e.state = to
}

// RunCleanup opens a session, applies every criterion in order and purges
// once if anything was marked. The session is logged out on every path.
// Failures on individual messages are logged and skipped; session failures
// abort the run without purging.
func (e *Engine) RunCleanup(ctx context.Context, criteria []Criterion) (result Result, err error) {
	ctx, span := e.Tracer.Start(ctx, "cleanup.RunCleanup")
	defer func() {
		span.SetAttributes(
			attribute.Int("cleanup.total", result.Total),
			attribute.Int("cleanup.marked", result.Marked),
			attribute.Int("cleanup.failed", result.Failed),
			attribute.Bool("cleanup.purged", result.Purged),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	e.state = StateIdle
	e.metrics = newMetrics(e.Meter)
	session, err := e.Dialer.Dial(ctx)
	if err != nil {
		e.transition(StateDisconnected)
		e.Log.Error("connect failed", "error", err)
		return Result{}, fmt.Errorf("connect: %w", err)
	}
	e.transition(StateConnected)
	e.Log.Info("connected to mailbox")

	defer func() {
		if logoutErr := session.Logout(); logoutErr != nil {
			e.Log.Warn("logout failed", "error", logoutErr)
		} else {
			e.Log.Info("disconnected from mailbox")
		}
		e.transition(StateDisconnected)
	}()

	for _, criterion := range criteria {
		if err := e.runCriterion(ctx, session, criterion, &result); err != nil {
			return result, err
		}
	}

	if result.Marked > 0 {
		e.transition(StatePurging)
		if err := session.Purge(ctx); err != nil {
			e.Log.Error("purge failed", "marked", result.Marked, "error", err)
			if isFatal(err) {
				return result, fmt.Errorf("purge: %w", err)
			}
		} else {
			result.Purged = true
			e.Log.Info("purged deleted messages", "count", result.Marked)
		}
	}

	e.Log.Info("cleanup finished", "total", result.Total, "details", result.DetailString())
	return result, nil
}

func (e *Engine) runCriterion(ctx context.Context, session mailbox.Session, criterion Criterion, result *Result) error {
	ctx, span := e.Tracer.Start(ctx, "cleanup.criterion", trace.WithAttributes(
		attribute.String("cleanup.label", criterion.Label),
		attribute.String("cleanup.predicate", criterion.Predicate.String()),
		attribute.Bool("cleanup.dry_run", criterion.DryRun),
	))
	defer span.End()

	log := e.Log.With("criterion", criterion.Label)

	e.transition(StateSearching)
	uids, err := session.Search(ctx, criterion.Predicate)
	if err != nil {
		if isFatal(err) {
			log.Error("search failed", "error", err)
			span.RecordError(err)
			return fmt.Errorf("search %s: %w", criterion.Predicate, err)
		}
		log.Warn("search failed, skipping criterion", "error", err)
		return nil
	}
	span.SetAttributes(attribute.Int("cleanup.candidates", len(uids)))
	if len(uids) == 0 {
		log.Info("no matching messages")
		return nil
	}
	log.Info("found candidate messages", "count", len(uids))

	now := e.Now()
	count := 0
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			return err
		}
		deleted, err := e.processMessage(ctx, log, session, criterion, uid, now, result)
		if err != nil {
			return err
		}
		if deleted {
			count++
		}
	}

	result.Total += count
	result.Details = append(result.Details, Detail{Label: criterion.Label, Count: count})
	span.SetAttributes(attribute.Int("cleanup.count", count))
	if criterion.DryRun {
		log.Info("simulated deletion complete", "count", count)
	} else {
		log.Info("deletion complete", "count", count)
	}
	return nil
}

// processMessage returns whether uid was deleted (or would be, in a dry run).
// Only session-level failures are returned as errors.
func (e *Engine) processMessage(ctx context.Context, log *slog.Logger, session mailbox.Session, criterion Criterion, uid uint32, now time.Time, result *Result) (bool, error) {
	e.transition(StateEvaluating)
	msg, err := session.Fetch(ctx, uid, mailbox.FetchOptions{Attachments: criterion.Filter.RequireNoAttachment})
	if err != nil {
		if isFatal(err) {
			return false, fmt.Errorf("fetch %d: %w", uid, err)
		}
		log.Error("fetch failed, skipping message", "uid", uid, "error", err)
		result.Failed++
		e.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("criterion", criterion.Label), attribute.String("stage", "fetch")))
		return false, nil
	}

	verdict := filter.Evaluate(msg, criterion.Filter, now)
	if !verdict.Delete() {
		if verdict == filter.VerdictUnparsableDate {
			log.Warn("unparsable date, keeping message", "uid", uid, "date", msg.Date)
		} else {
			log.Info("skipping message", "uid", uid, "reason", verdict.String(), "date", msg.Date)
		}
		result.Skipped++
		e.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("criterion", criterion.Label), attribute.String("reason", verdict.String())))
		return false, nil
	}

	deleted := metric.WithAttributes(attribute.String("criterion", criterion.Label), attribute.Bool("dry_run", criterion.DryRun))
	if criterion.DryRun {
		e.transition(StateSimulating)
		log.Info("would delete message", "uid", uid, "subject", msg.Subject, "from", msg.From, "date", msg.Date)
		e.metrics.deleted.Add(ctx, 1, deleted)
		return true, nil
	}

	e.transition(StateDeleting)
	if err := session.MarkDeleted(ctx, uid); err != nil {
		if isFatal(err) {
			return false, fmt.Errorf("mark %d: %w", uid, err)
		}
		log.Error("delete failed, skipping message", "uid", uid, "error", err)
		result.Failed++
		e.metrics.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("criterion", criterion.Label), attribute.String("stage", "mark")))
		return false, nil
	}
	result.Marked++
	log.Info("deleted message", "uid", uid, "subject", msg.Subject, "from", msg.From, "date", msg.Date)
	e.metrics.deleted.Add(ctx, 1, deleted)
	return true, nil
}

// isFatal reports whether err means the session can no longer be used.
func isFatal(err error) bool {
	return errors.Is(err, mailbox.ErrNetwork) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
