package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/aaronromeo/inboxsweep/internal/cleanup"
	"github.com/aaronromeo/inboxsweep/internal/config"
	"github.com/aaronromeo/inboxsweep/internal/mailbox"
	"github.com/aaronromeo/inboxsweep/internal/mailbox/mocks"
	"github.com/aaronromeo/inboxsweep/internal/notifier"
	"github.com/aaronromeo/inboxsweep/internal/notifier/smtptest"
	"github.com/aaronromeo/inboxsweep/internal/runner"
	"go.uber.org/mock/gomock"
	"gopkg.in/yaml.v3"
)

const (
	testEmail    = "user@gmail.com"
	testPassword = "secret"
)

type testEnv struct {
	dir     string
	config  string
	logFile string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("INBOXSWEEP_EMAIL", "")
	t.Setenv("INBOXSWEEP_PASSWORD", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	dir := t.TempDir()
	return testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "inboxsweep.yaml"),
		logFile: filepath.Join(dir, "inboxsweep.log"),
	}
}

func (e testEnv) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return e.executeWith(t, &rootOptions{build: runner.Build}, stdin, args...)
}

func (e testEnv) executeWith(t *testing.T, opts *rootOptions, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(opts)
	cmd.SetArgs(append(args, "--config", e.config, "--log-file", e.logFile))
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return output.String(), err
}

// writeConfig writes the template with real-looking credentials, then
// applies mutate.
func (e testEnv) writeConfig(t *testing.T, mutate func(*config.Config)) {
	t.Helper()
	cfg := config.Template()
	cfg.Email = testEmail
	cfg.Password = testPassword
	cfg.Provider = config.ProviderGmail
	cfg.NotificationEmail = "admin@example.com"
	if mutate != nil {
		mutate(&cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.config, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// stubBuild wires a runner whose sessions come from dialer.
func stubBuild(dialer mailbox.Dialer) func(config.Config, *slog.Logger) (*runner.Runner, error) {
	return func(cfg config.Config, log *slog.Logger) (*runner.Runner, error) {
		return runner.New(runner.Deps{
			Config:  cfg,
			Cleaner: cleanup.New(dialer, log),
			Dialer:  dialer,
			Log:     log,
		}), nil
	}
}

func TestRunMissingConfig(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.execute(t, "", "run")
	if err == nil {
		t.Fatal("expected run to fail without a config file")
	}
	if !errors.Is(err, config.ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got: %v", err)
	}
	if _, statErr := os.Stat(env.config); !os.IsNotExist(statErr) {
		t.Fatalf("run must not create a config file, stat: %v", statErr)
	}
}

func TestMenuMissingConfigWritesTemplate(t *testing.T) {
	env := newTestEnv(t)

	output, err := env.execute(t, "")
	if err != nil {
		t.Fatalf("expected menu to succeed, got: %v", err)
	}
	if !strings.Contains(output, "A template was written to "+env.config) {
		t.Fatalf("expected template message, got: %q", output)
	}

	cfg, err := config.Load(env.config)
	if err != nil {
		t.Fatalf("load written template: %v", err)
	}
	if !cfg.DryRun {
		t.Fatal("template must default to dry run")
	}
}

func TestMenuInvalidChoiceThenExit(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t, nil)

	output, err := env.execute(t, "9\nabc\n5\n", "menu")
	if err != nil {
		t.Fatalf("expected menu to exit cleanly, got: %v", err)
	}
	if got := strings.Count(output, "Invalid choice"); got != 2 {
		t.Fatalf("expected 2 invalid choice prompts, got %d in %q", got, output)
	}
	if !strings.Contains(output, "Bye.") {
		t.Fatalf("expected exit message, got: %q", output)
	}
	if !strings.Contains(output, "Config summary") {
		t.Fatalf("expected config summary, got: %q", output)
	}
}

func TestMenuExitsOnEOF(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t, nil)

	if _, err := env.execute(t, ""); err != nil {
		t.Fatalf("expected EOF to end the menu, got: %v", err)
	}
}

func TestCleanSendersWithPlaceholderSenders(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t, nil)

	output, err := env.execute(t, "", "clean-senders", "--dry-run=false")
	if err != nil {
		t.Fatalf("expected clean-senders to succeed, got: %v", err)
	}
	if !strings.Contains(output, "target_senders is not set") {
		t.Fatalf("expected placeholder warning, got: %q", output)
	}
	if !strings.Contains(output, "Deleted 0 messages") {
		t.Fatalf("expected dry-run override to apply, got: %q", output)
	}

	logged, err := os.ReadFile(env.logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(logged), "target_senders is not set") {
		t.Fatalf("expected log file to record the warning, got: %q", logged)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	if err := os.WriteFile(env.config, []byte("email: a@b.c\npassword: x\nemail_type: aol\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := env.execute(t, "", "run")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	env := newTestEnv(t)

	output, err := env.execute(t, "", "init")
	if err != nil {
		t.Fatalf("expected init to succeed, got: %v", err)
	}
	if !strings.Contains(output, "Created template configuration") {
		t.Fatalf("unexpected output: %q", output)
	}

	if _, err := env.execute(t, "", "init"); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(config.EnvConfigPath, env.config)

	opts := &rootOptions{}
	if got := opts.resolveConfigPath(); got != env.config {
		t.Fatalf("expected %s, got %s", env.config, got)
	}
	opts.configPath = "explicit.yaml"
	if got := opts.resolveConfigPath(); got != "explicit.yaml" {
		t.Fatalf("expected flag to win, got %s", got)
	}
	t.Setenv(config.EnvConfigPath, "")
	opts.configPath = ""
	if got := opts.resolveConfigPath(); got != config.DefaultPath {
		t.Fatalf("expected default path, got %s", got)
	}
}

func TestCountRejectsExtraArgs(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.execute(t, "", "count", "INBOX", "Archive"); err == nil {
		t.Fatal("expected count to reject two folders")
	}
}

func TestRunRejectsUntouchedTemplate(t *testing.T) {
	env := newTestEnv(t)
	if err := config.WriteTemplate(env.config); err != nil {
		t.Fatalf("write template: %v", err)
	}

	_, err := env.execute(t, "", "run")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
	if !strings.Contains(err.Error(), "placeholders") {
		t.Fatalf("expected placeholder hint, got: %v", err)
	}
}

func TestMenuDispatchesActions(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t, func(cfg *config.Config) {
		cfg.TargetSenders = config.SenderList{"news@example.com"}
	})

	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(session, nil).Times(4)
	session.EXPECT().Logout().Return(nil).Times(4)

	gomock.InOrder(
		session.EXPECT().Search(gomock.Any(), mailbox.FromContains("news@example.com")).Return([]uint32{7}, nil),
		session.EXPECT().Fetch(gomock.Any(), uint32(7), mailbox.FetchOptions{}).Return(mailbox.Message{
			UID:     7,
			From:    "news@example.com",
			Subject: "Weekly",
			Date:    "Sun, 10 Mar 2024 09:30:00 +0000",
		}, nil),
		session.EXPECT().Search(gomock.Any(), mailbox.Seen()).Return(nil, nil),
		session.EXPECT().ListFolders(gomock.Any()).Return([]string{"INBOX", "Archive"}, nil),
		session.EXPECT().CountMessages(gomock.Any(), "INBOX").Return(uint32(42), nil),
	)

	output, err := env.executeWith(t, &rootOptions{build: stubBuild(dialer)}, "1\n2\n3\n4\n5\n", "menu")
	if err != nil {
		t.Fatalf("expected menu to succeed, got: %v", err)
	}
	for _, want := range []string{
		"Dry run: 1 messages would be deleted",
		"Details: news@example.com: 1",
		"Dry run: 0 messages would be deleted",
		"2 folders:\n  INBOX\n  Archive\n",
		"INBOX: 42 messages",
		"Bye.",
	} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %q", want, output)
		}
	}
}

func TestMenuActionErrorKeepsLooping(t *testing.T) {
	env := newTestEnv(t)
	env.writeConfig(t, nil)

	dialer := mailbox.DialerFunc(func(context.Context) (mailbox.Session, error) {
		return nil, mailbox.ErrNetwork
	})
	output, err := env.executeWith(t, &rootOptions{build: stubBuild(dialer)}, "3\n5\n", "menu")
	if err != nil {
		t.Fatalf("expected menu to continue after an action error, got: %v", err)
	}
	if !strings.Contains(output, "Error: list folders: network failure") {
		t.Fatalf("expected action error in output, got: %q", output)
	}
	if !strings.Contains(output, "Bye.") {
		t.Fatalf("expected exit message, got: %q", output)
	}
}

func smtpConfig(t *testing.T, addr string) func(*config.Config) {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split %s: %v", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return func(cfg *config.Config) {
		cfg.SMTPHost = host
		cfg.SMTPPort = portNum
		cfg.SMTPSecurity = config.SMTPNone
		cfg.TimeoutSeconds = 5
	}
}

func TestNotifyTestSendsSample(t *testing.T) {
	env := newTestEnv(t)
	server := smtptest.NewServer(t, testEmail, testPassword)
	env.writeConfig(t, smtpConfig(t, server.Addr))

	output, err := env.execute(t, "", "notify-test")
	if err != nil {
		t.Fatalf("expected notify-test to succeed, got: %v", err)
	}
	if !strings.Contains(output, "Notification sent") {
		t.Fatalf("unexpected output: %q", output)
	}
	msgs := server.Messages()
	if len(msgs) != 1 || msgs[0].To[0] != "admin@example.com" {
		t.Fatalf("expected one message to admin@example.com, got: %+v", msgs)
	}
}

func TestNotifyTestReportsSubmissionFailure(t *testing.T) {
	env := newTestEnv(t)
	server := smtptest.NewServer(t, testEmail, "another-password")
	env.writeConfig(t, smtpConfig(t, server.Addr))

	output, err := env.execute(t, "", "notify-test")
	if !errors.Is(err, notifier.ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got: %v", err)
	}
	if !strings.Contains(output, "Notification failed") {
		t.Fatalf("expected failure report, got: %q", output)
	}
	if len(server.Messages()) != 0 {
		t.Fatal("nothing must be delivered with bad credentials")
	}
}
