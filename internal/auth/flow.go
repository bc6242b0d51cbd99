package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/browser"
)

var (
	emailField    = browser.ByCSS("#user_email")
	passwordField = browser.ByCSS("#user_password")
	submitButton  = browser.ByCSS(`[name="commit"]`)

	idpEmailField    = browser.ByCSS("input[type='email']")
	idpPasswordField = browser.ByCSS("input[type='password']")

	// Tried in order, the page layout has changed more than once.
	delegatedButtons = []browser.Locator{
		browser.ByCSS("#content_cont > div.wrap640 > div > form > div > div.mt30 > a.social-login-button.google-button"),
		browser.ByCSS("a.social-login-button.google-button"),
		browser.ByText("a", "Google"),
	}
)

func (m *Manager) credentials(ctx context.Context, strategy Strategy) (Credentials, error) {
	if m.creds == nil {
		return Credentials{}, errors.New("no credential source configured")
	}
	c, err := m.creds.Credentials(ctx, strategy)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed getting credentials: %w", err)
	}
	if c.Email == "" || c.Password == "" {
		return Credentials{}, errors.New("credentials are incomplete")
	}
	return c, nil
}

func (m *Manager) fill(ctx context.Context, s browser.Session, l browser.Locator, value string) (browser.Element, error) {
	el, err := browser.WaitFor(ctx, s, l, m.waitOptions(true))
	if err != nil {
		return nil, err
	}
	if err := el.Input(value); err != nil {
		return nil, fmt.Errorf("failed typing into %s: %w", l, err)
	}
	return el, nil
}

func (m *Manager) loginDirect(ctx context.Context, s browser.Session) error {
	c, err := m.credentials(ctx, Direct)
	if err != nil {
		return err
	}
	if err := s.Navigate(ctx, m.loginURL()); err != nil {
		return fmt.Errorf("failed opening login page: %w", err)
	}

	if _, err := m.fill(ctx, s, emailField, c.Email); err != nil {
		return err
	}
	pw, err := m.fill(ctx, s, passwordField, c.Password)
	if err != nil {
		return err
	}

	if btn, _, err := browser.First(ctx, s, submitButton); err == nil {
		err = btn.Click()
		if err != nil {
			return fmt.Errorf("failed submitting login form: %w", err)
		}
	} else if err := pw.Submit(); err != nil {
		return fmt.Errorf("failed submitting login form: %w", err)
	}

	return m.waitForReturn(ctx, s, false)
}

func (m *Manager) loginDelegated(ctx context.Context, s browser.Session) error {
	c, err := m.credentials(ctx, Delegated)
	if err != nil {
		return err
	}
	if err := s.Navigate(ctx, m.loginURL()); err != nil {
		return fmt.Errorf("failed opening login page: %w", err)
	}

	btn, err := m.waitForAny(ctx, s, delegatedButtons)
	if err != nil {
		return fmt.Errorf("delegated login button: %w", err)
	}
	if err := btn.Click(); err != nil {
		return fmt.Errorf("failed clicking delegated login button: %w", err)
	}
	if err := m.sleep(ctx, m.opts.SettleDelay); err != nil {
		return err
	}

	popup, err := s.SwitchToNewest(ctx)
	if err != nil {
		return fmt.Errorf("failed switching to identity provider: %w", err)
	}
	if popup {
		m.log.Debug("identity provider opened in a new window")
		defer func() {
			if !popup {
				return
			}
			if cerr := s.CloseCurrent(context.WithoutCancel(ctx)); cerr != nil {
				m.log.Debug("failed closing identity provider window", zap.Error(cerr))
			}
		}()
	}

	current, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if browser.OnOrigin(current, m.opts.BaseURL, m.opts.LoginPath) {
		// The provider still had a session and sent us straight back.
		return nil
	}
	if !m.onIdP(current) {
		return fmt.Errorf("%s: %w", current, ErrNoIdentityPage)
	}

	email, err := m.fill(ctx, s, idpEmailField, c.Email)
	if err != nil {
		return err
	}
	if err := email.Submit(); err != nil {
		return fmt.Errorf("failed submitting identity: %w", err)
	}
	if err := m.sleep(ctx, m.opts.SettleDelay); err != nil {
		return err
	}
	pw, err := m.fill(ctx, s, idpPasswordField, c.Password)
	if err != nil {
		return err
	}
	if err := pw.Submit(); err != nil {
		return fmt.Errorf("failed submitting password: %w", err)
	}

	return m.waitForReturn(ctx, s, popup, func() { popup = false })
}

// waitForReturn polls the URL until the browser is back on the application
// outside the login path. A popup that disappears underneath us is popped so
// polling continues on the opener.
func (m *Manager) waitForReturn(ctx context.Context, s browser.Session, popup bool, popped ...func()) error {
	var waited time.Duration
	for {
		u, err := s.CurrentURL(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil && popup:
			m.log.Debug("identity provider window is gone", zap.Error(err))
			if cerr := s.CloseCurrent(ctx); cerr != nil {
				m.log.Debug("closing identity provider window", zap.Error(cerr))
			}
			popup = false
			for _, f := range popped {
				f()
			}
			continue
		case err != nil:
			m.log.Debug("failed reading url, retrying", zap.Error(err))
		case browser.OnOrigin(u, m.opts.BaseURL, m.opts.LoginPath):
			return nil
		default:
			m.log.Debug("waiting for redirect", zap.String("url", u))
		}

		if waited >= m.opts.PollTimeout {
			return ErrLoginTimeout
		}
		if err := m.sleep(ctx, m.opts.PollInterval); err != nil {
			return err
		}
		waited += m.opts.PollInterval
	}
}

func (m *Manager) waitForAny(ctx context.Context, s browser.Session, locators []browser.Locator) (browser.Element, error) {
	opts := m.waitOptions(false)
	var waited time.Duration
	for {
		el, l, err := browser.First(ctx, s, locators...)
		if err == nil {
			m.log.Debug("found element", zap.Stringer("locator", l))
			return el, nil
		}
		if waited >= opts.Timeout {
			return nil, err
		}
		if err := opts.Sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
		waited += opts.Interval
	}
}

func (m *Manager) onIdP(raw string) bool {
	if m.opts.IdPHost == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), m.opts.IdPHost)
}
