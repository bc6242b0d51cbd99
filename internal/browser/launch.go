package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

var ErrProfileLocked = errors.New("chrome profile is used by another run")

type LaunchOptions struct {
	Headless bool
	// Bin is the Chrome executable. Empty lets rod find or download one.
	Bin string

	UseProfile  bool
	ProfilePath string
	ProfileName string

	// RemoteDebugPort connects to a Chrome already listening on the port, or
	// launches one bound to it.
	RemoteDebugPort int

	// OperationTimeout bounds every single browser operation.
	OperationTimeout time.Duration
}

// Launch starts or attaches to Chrome and returns a session on a fresh page.
func Launch(ctx context.Context, opts LaunchOptions, log *zap.Logger) (*RodSession, error) {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 30 * time.Second
	}

	var lock *flock.Flock
	if opts.UseProfile && opts.ProfilePath != "" {
		lock = flock.New(filepath.Join(opts.ProfilePath, ".green-scraper.lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed locking profile %s: %w", opts.ProfilePath, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", opts.ProfilePath, ErrProfileLocked)
		}
	}
	unlock := func() error {
		if lock == nil {
			return nil
		}
		return lock.Unlock()
	}

	controlURL, l, err := resolveControlURL(opts, log)
	if err != nil {
		_ = unlock()
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		_ = unlock()
		return nil, fmt.Errorf("failed connecting to chrome: %w", err)
	}

	//Don't download files in the browser, e.g. pdf files
	err = proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: browser.BrowserContextID,
	}.Call(browser)
	if err != nil {
		log.Warn("failed denying downloads", zap.Error(err))
	}

	//Avoid alerts blocking the page
	go browser.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		log.Debug("dismissing javascript dialog", zap.String("message", e.Message))
		_ = proto.PageHandleJavaScriptDialog{Accept: false, PromptText: ""}.Call(browser)
	},
		func(e *proto.PageWindowOpen) {
			log.Debug("new window opened", zap.String("url", e.URL))
		},
	)()

	s, err := NewRodSession(browser, opts.OperationTimeout, log)
	if err != nil {
		_ = browser.Close()
		if l != nil {
			l.Kill()
		}
		_ = unlock()
		return nil, err
	}
	s.onClose(unlock)
	if l != nil {
		s.onClose(func() error {
			l.Cleanup()
			return nil
		})
	}
	return s, nil
}

// resolveControlURL returns the devtools URL to connect to and the launcher
// that owns the process, nil when attaching to an existing Chrome.
func resolveControlURL(opts LaunchOptions, log *zap.Logger) (string, *launcher.Launcher, error) {
	if opts.RemoteDebugPort > 0 {
		u, err := launcher.ResolveURL(fmt.Sprintf("127.0.0.1:%d", opts.RemoteDebugPort))
		if err == nil {
			log.Info("attaching to running chrome", zap.Int("port", opts.RemoteDebugPort))
			return u, nil, nil
		}
		log.Info("no chrome on debug port, launching one", zap.Int("port", opts.RemoteDebugPort), zap.Error(err))
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set(flags.Flag("window-size"), "1920,1080").
		Set(flags.Flag("disable-gpu")).
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Delete(flags.Flag("enable-automation"))
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.UseProfile && opts.ProfilePath != "" {
		name := opts.ProfileName
		if name == "" {
			name = "Default"
		}
		l = l.UserDataDir(opts.ProfilePath).Set(flags.Flag("profile-directory"), name)
		log.Info("using chrome profile", zap.String("path", opts.ProfilePath), zap.String("profile", name))
	}
	if opts.RemoteDebugPort > 0 {
		l = l.RemoteDebuggingPort(opts.RemoteDebugPort)
	}

	u, err := l.Launch()
	if err != nil {
		return "", nil, fmt.Errorf("failed launching chrome: %w", err)
	}
	return u, l, nil
}
