// Package runner turns a loaded configuration into cleanup runs and reports
// their outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaronromeo/inboxsweep/internal/cleanup"
	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/aaronromeo/inboxsweep/internal/imap"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/aaronromeo/inboxsweep/internal/notifier"
)

// Cleaner runs a list of criteria in one mailbox session.
type Cleaner interface {
	RunCleanup(ctx context.Context, criteria []cleanup.Criterion) (cleanup.Result, error)
}

type Deps struct {
	Config   config.Config
	Cleaner  Cleaner
	Notifier notifier.Service
	Dialer   mailbox.Dialer
	Log      *slog.Logger
	Now      func() time.Time
}

type Runner struct {
	deps Deps
}

func New(deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Runner{deps: deps}
}

// Build wires the IMAP dialer, cleanup engine and SMTP notifier for cfg.
func Build(cfg config.Config, log *slog.Logger) (*Runner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	server, err := cfg.Server()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	dialer := imap.Dialer{
		Addr:     server.IMAPAddr(),
		Username: cfg.Email,
		Password: cfg.Password,
		Timeout:  cfg.Timeout(),
	}
	deps := Deps{
		Config:  cfg,
		Cleaner: cleanup.New(dialer, log),
		Dialer:  dialer,
		Log:     log,
	}
	if cfg.NotificationsEnabled() {
		deps.Notifier = notifier.New(
			notifier.WithAddr(server.SMTPAddr()),
			notifier.WithCreds(cfg.Email, cfg.Password),
			notifier.WithSender(cfg.Email),
			notifier.WithRecipient(cfg.NotificationEmail),
			notifier.WithSecurity(server.SMTPSecurity),
			notifier.WithTimeout(cfg.Timeout()),
		)
	}
	return New(deps), nil
}

var ErrNotificationsDisabled = errors.New("notifications are disabled")

// SampleSummary is the report sent by NotifyTest. Its counts are made up.
func SampleSummary(cfg config.Config, now time.Time) notifier.Summary {
	return notifier.Summary{
		RunTime:               now,
		Mailbox:               cfg.Email,
		Total:                 5,
		Details:               "sample sender 1: 2; sample sender 2: 3",
		Provider:              string(cfg.Provider),
		MinAgeDays:            cfg.DaysBeforeDelete,
		CleanReadNoAttachment: cfg.CleanReadNoAttachment,
		DryRun:                true,
	}
}

// NotifyTest sends SampleSummary to check SMTP settings without touching
// the mailbox.
func (r *Runner) NotifyTest(ctx context.Context) error {
	cfg := r.deps.Config
	if !cfg.NotificationsEnabled() || r.deps.Notifier == nil {
		return fmt.Errorf("%w: set send_notification and notification_email", ErrNotificationsDisabled)
	}
	if err := r.deps.Notifier.Notify(ctx, SampleSummary(cfg, r.deps.Now())); err != nil {
		r.deps.Log.Error("test notification failed", "to", cfg.NotificationEmail, "error", err)
		return err
	}
	r.deps.Log.Info("test notification sent", "to", cfg.NotificationEmail)
	return nil
}

// SenderCriteria returns one criterion per configured sender.
func SenderCriteria(cfg config.Config) []cleanup.Criterion {
	senders := cfg.Senders()
	criteria := make([]cleanup.Criterion, 0, len(senders))
	for _, sender := range senders {
		criteria = append(criteria, cleanup.BySender(sender, cfg.DaysBeforeDelete, cfg.DryRun))
	}
	return criteria
}

func ReadCriteria(cfg config.Config) []cleanup.Criterion {
	return []cleanup.Criterion{cleanup.ReadNoAttachment(cfg.DaysBeforeDelete, cfg.DryRun)}
}

// Criteria returns every criterion enabled by cfg, senders first.
func Criteria(cfg config.Config) []cleanup.Criterion {
	criteria := SenderCriteria(cfg)
	if cfg.CleanReadNoAttachment {
		criteria = append(criteria, ReadCriteria(cfg)...)
	}
	return criteria
}

// Run is the scheduled job: every enabled criterion in one session.
func (r *Runner) Run(ctx context.Context) (cleanup.Result, error) {
	return r.execute(ctx, Criteria(r.deps.Config))
}

func (r *Runner) CleanSenders(ctx context.Context) (cleanup.Result, error) {
	if len(r.deps.Config.Senders()) == 0 {
		r.deps.Log.Warn("target_senders is not set, nothing to clean")
		return cleanup.Result{}, nil
	}
	return r.execute(ctx, SenderCriteria(r.deps.Config))
}

func (r *Runner) CleanRead(ctx context.Context) (cleanup.Result, error) {
	return r.execute(ctx, ReadCriteria(r.deps.Config))
}

// Folders lists every folder of the mailbox.
func (r *Runner) Folders(ctx context.Context) (folders []string, err error) {
	err = r.withSession(ctx, func(session mailbox.Session) error {
		folders, err = session.ListFolders(ctx)
		return err
	})
	return folders, err
}

// Count returns the number of messages in folder.
func (r *Runner) Count(ctx context.Context, folder string) (count uint32, err error) {
	err = r.withSession(ctx, func(session mailbox.Session) error {
		count, err = session.CountMessages(ctx, folder)
		return err
	})
	return count, err
}

func (r *Runner) withSession(ctx context.Context, fn func(mailbox.Session) error) error {
	if r.deps.Dialer == nil {
		return fmt.Errorf("%w: no dialer configured", mailbox.ErrNetwork)
	}
	session, err := r.deps.Dialer.Dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Logout(); err != nil {
			r.deps.Log.Warn("logout failed", "error", err)
		}
	}()
	return fn(session)
}

func (r *Runner) execute(ctx context.Context, criteria []cleanup.Criterion) (cleanup.Result, error) {
	cfg := r.deps.Config
	log := r.deps.Log

	if cfg.DeletePermanently {
		log.Warn("delete_permanently has no effect, real deletions are always purged", "dry_run", cfg.DryRun)
	}
	if len(criteria) == 0 {
		log.Info("no cleanup criteria configured")
		return cleanup.Result{}, nil
	}

	started := r.deps.Now()
	log.Info("cleanup started", "criteria", len(criteria), "dry_run", cfg.DryRun, "days_before_delete", cfg.DaysBeforeDelete)
	result, err := r.deps.Cleaner.RunCleanup(ctx, criteria)
	if err != nil {
		return result, err
	}

	r.notify(ctx, started, result)
	return result, nil
}

func (r *Runner) notify(ctx context.Context, started time.Time, result cleanup.Result) {
	cfg := r.deps.Config
	log := r.deps.Log

	if result.Total == 0 {
		log.Debug("nothing deleted, notification skipped")
		return
	}
	if !cfg.NotificationsEnabled() || r.deps.Notifier == nil {
		return
	}

	err := r.deps.Notifier.Notify(ctx, notifier.Summary{
		RunTime:               started,
		Mailbox:               cfg.Email,
		Total:                 result.Total,
		Details:               result.DetailString(),
		Provider:              string(cfg.Provider),
		MinAgeDays:            cfg.DaysBeforeDelete,
		CleanReadNoAttachment: cfg.CleanReadNoAttachment,
		DryRun:                cfg.DryRun,
	})
	if err != nil {
		log.Error("notification failed", "to", cfg.NotificationEmail, "error", err)
		return
	}
	log.Info("notification sent", "to", cfg.NotificationEmail)
}
