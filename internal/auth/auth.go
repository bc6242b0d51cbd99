package auth

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/browser"
)

var (
	ErrLoginTimeout   = errors.New("timed out waiting to return to the application")
	ErrNoIdentityPage = errors.New("identity provider page did not open")
	ErrUnknownMethod  = errors.New("unknown login strategy")
)

type Strategy int

const (
	Direct Strategy = iota
	Delegated
)

func (s Strategy) String() string {
	switch s {
	case Direct:
		return "direct"
	case Delegated:
		return "delegated"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "email":
		return Direct, nil
	case "delegated", "google":
		return Delegated, nil
	}
	return Direct, fmt.Errorf("%q: %w", s, ErrUnknownMethod)
}

type State int

const (
	Unauthenticated State = iota
	LoggingIn
	Authenticated
	Failed
)

func (s State) String() string {
	return [...]string{"unauthenticated", "logging_in", "authenticated", "failed"}[s]
}

type Credentials struct {
	Email    string
	Password string
}

// CredentialSource supplies the login for a strategy. Where the values come
// from (config, keychain, a prompt) is up to the implementation.
type CredentialSource interface {
	Credentials(ctx context.Context, strategy Strategy) (Credentials, error)
}

type Result struct {
	Success  bool
	State    State
	Strategy Strategy
	// ShortCircuit is set when an existing login was detected.
	ShortCircuit bool
	Screenshot   string
	Err          error
}

type Options struct {
	// BaseURL is the application origin, e.g. https://www.green-japan.com.
	BaseURL   string
	LoginPath string
	// IdPHost is the identity provider's host for the delegated flow.
	IdPHost string

	SettleDelay  time.Duration
	FieldTimeout time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration

	ScreenshotDir string
}

func DefaultOptions(baseURL string) Options {
	return Options{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		LoginPath:    "/login",
		IdPHost:      "accounts.google.com",
		SettleDelay:  3 * time.Second,
		FieldTimeout: 30 * time.Second,
		PollInterval: 3 * time.Second,
		PollTimeout:  60 * time.Second,
	}
}

// Manager establishes an authenticated session.
type Manager struct {
	opts      Options
	indicator Indicator
	account   Indicator
	creds     CredentialSource
	log       *zap.Logger

	sleep browser.SleepFunc
	now   func() time.Time
}

func NewManager(opts Options, indicator Indicator, creds CredentialSource, log *zap.Logger) *Manager {
	if indicator == nil {
		indicator = MarkerIndicator{}
	}
	return &Manager{
		opts:      opts,
		indicator: indicator,
		account:   DefaultAccountIndicator(),
		creds:     creds,
		log:       log.Named("auth"),
		sleep:     browser.Sleep,
		now:       time.Now,
	}
}

func (m *Manager) loginURL() string {
	return m.opts.BaseURL + m.opts.LoginPath
}

// EnsureAuthenticated returns success without touching any form when the
// session is already logged in, otherwise it runs the login flow for
// strategy. Failures, panics included, are reported in the Result.
func (m *Manager) EnsureAuthenticated(ctx context.Context, s browser.Session, strategy Strategy) (res Result) {
	res = Result{State: Unauthenticated, Strategy: strategy}

	var pc panics.Catcher
	pc.Try(func() {
		res = m.ensure(ctx, s, strategy)
	})
	if r := pc.Recovered(); r != nil {
		res = m.fail(ctx, s, strategy, r.AsError())
	}
	return res
}

func (m *Manager) ensure(ctx context.Context, s browser.Session, strategy Strategy) Result {
	if err := s.Navigate(ctx, m.opts.BaseURL); err != nil {
		m.log.Warn("failed loading home page", zap.Error(err))
	} else {
		if err := m.sleep(ctx, m.opts.SettleDelay); err != nil {
			return m.fail(ctx, s, strategy, err)
		}
		if m.probe(ctx, s, m.indicator, "marker") {
			return Result{Success: true, State: Authenticated, Strategy: strategy, ShortCircuit: true}
		}
		if m.probe(ctx, s, m.account, "account links") {
			return Result{Success: true, State: Authenticated, Strategy: strategy, ShortCircuit: true}
		}
	}

	m.log.Info("logging in", zap.Stringer("strategy", strategy))
	var err error
	switch strategy {
	case Direct:
		err = m.loginDirect(ctx, s)
	case Delegated:
		err = m.loginDelegated(ctx, s)
	default:
		err = ErrUnknownMethod
	}
	if err != nil {
		return m.fail(ctx, s, strategy, err)
	}

	m.log.Info("logged in", zap.Stringer("strategy", strategy))
	return Result{Success: true, State: Authenticated, Strategy: strategy}
}

func (m *Manager) probe(ctx context.Context, s browser.Session, ind Indicator, name string) bool {
	ok, err := ind.LoggedIn(ctx, s)
	if err != nil {
		m.log.Debug("login probe failed", zap.String("probe", name), zap.Error(err))
		return false
	}
	if ok {
		m.log.Info("session already authenticated", zap.String("probe", name))
	}
	return ok
}

func (m *Manager) fail(ctx context.Context, s browser.Session, strategy Strategy, err error) Result {
	res := Result{State: Failed, Strategy: strategy, Err: err}
	m.log.Error("login failed", zap.Stringer("strategy", strategy), zap.Error(err))

	name := fmt.Sprintf("error_screenshot_%s.png", m.now().Format("20060102_150405"))
	path := filepath.Join(m.opts.ScreenshotDir, name)
	// The run context may be the reason for the failure.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if serr := s.Screenshot(sctx, path); serr != nil {
		m.log.Warn("failed capturing screenshot", zap.Error(serr))
		return res
	}
	m.log.Info("saved error screenshot", zap.String("path", path))
	res.Screenshot = path
	return res
}

func (m *Manager) waitOptions(visible bool) browser.WaitOptions {
	return browser.WaitOptions{
		Timeout:  m.opts.FieldTimeout,
		Interval: 500 * time.Millisecond,
		Visible:  visible,
		Sleep:    m.sleep,
	}
}
