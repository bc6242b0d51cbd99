// Package credentials resolves login credentials from configuration, the OS
// keychain and, as a last resort, an interactive prompt.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tcnksm/go-input"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/auth"
)

// KeyringService groups the scraper's secrets in the OS keychain.
const KeyringService = "green-scraper"

var ErrMissing = errors.New("credentials not found (set them in config, the keychain or run interactively)")

func KeyringAccount(strategy auth.Strategy, email string) string {
	return fmt.Sprintf("%s:%s", strategy, strings.ToLower(strings.TrimSpace(email)))
}

// Asker is satisfied by *input.UI.
type Asker interface {
	Ask(query string, opts *input.Options) (string, error)
}

type Source struct {
	// Configured holds what the config file or environment provided.
	Configured map[auth.Strategy]auth.Credentials
	// UseKeyring looks up missing passwords in the OS keychain.
	UseKeyring bool
	// UI prompts for anything still missing. Nil disables prompting.
	UI Asker

	log *zap.Logger

	mu    sync.Mutex
	cache map[auth.Strategy]auth.Credentials
}

func NewSource(configured map[auth.Strategy]auth.Credentials, useKeyring bool, ui Asker, log *zap.Logger) *Source {
	return &Source{
		Configured: configured,
		UseKeyring: useKeyring,
		UI:         ui,
		log:        log.Named("credentials"),
		cache:      map[auth.Strategy]auth.Credentials{},
	}
}

// Credentials returns the login for strategy. A resolved pair is cached so a
// retried run never prompts twice.
func (s *Source) Credentials(ctx context.Context, strategy auth.Strategy) (auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[strategy]; ok {
		return c, nil
	}
	if err := ctx.Err(); err != nil {
		return auth.Credentials{}, err
	}

	c := s.Configured[strategy]
	if c.Email == "" && s.UI != nil {
		email, err := s.UI.Ask(fmt.Sprintf("%s email:", promptLabel(strategy)), &input.Options{Required: true, Loop: true})
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed reading email: %w", err)
		}
		c.Email = strings.TrimSpace(email)
	}

	// The email may have been typed just now, the keychain is keyed by it.
	if c.Email != "" && c.Password == "" && s.UseKeyring {
		c.Password = s.keychainPassword(strategy, c.Email)
	}

	if c.Email != "" && c.Password == "" && s.UI != nil {
		pw, err := s.UI.Ask(fmt.Sprintf("%s password for %s:", promptLabel(strategy), c.Email), &input.Options{Required: true, Loop: true, Mask: true})
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed reading password: %w", err)
		}
		c.Password = pw
	}

	if c.Email == "" || c.Password == "" {
		return auth.Credentials{}, fmt.Errorf("%s: %w", strategy, ErrMissing)
	}
	s.cache[strategy] = c
	return c, nil
}

func (s *Source) keychainPassword(strategy auth.Strategy, email string) string {
	pw, err := keyring.Get(KeyringService, KeyringAccount(strategy, email))
	switch {
	case err == nil && strings.TrimSpace(pw) != "":
		s.log.Debug("password read from keychain", zap.Stringer("strategy", strategy))
		return pw
	case errors.Is(err, keyring.ErrNotFound):
	case err != nil:
		s.log.Warn("failed reading keychain", zap.Error(err))
	}
	return ""
}

func promptLabel(strategy auth.Strategy) string {
	if strategy == auth.Delegated {
		return "Google"
	}
	return "Green"
}

func SetPassword(strategy auth.Strategy, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, KeyringAccount(strategy, email), password)
}

func DeletePassword(strategy auth.Strategy, email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	return keyring.Delete(KeyringService, KeyringAccount(strategy, email))
}
