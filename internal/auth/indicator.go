package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/AlfredBerg/green-scraper/internal/browser"
)

// Indicator reports whether the current page belongs to a logged-in session.
type Indicator interface {
	LoggedIn(ctx context.Context, s browser.Session) (bool, error)
}

// DefaultMarker is the header element that carries the user's name once
// logged in.
const DefaultMarker = "#js-react-header > header > div > nav > div.js-header-menu-target.mdl-navigation__link > div"

// MarkerIndicator matches a header element containing Text. An empty Text
// disables the check.
type MarkerIndicator struct {
	Marker browser.Locator
	Text   string
}

func (m MarkerIndicator) LoggedIn(ctx context.Context, s browser.Session) (bool, error) {
	if m.Text == "" || m.Marker.Selector == "" {
		return false, nil
	}
	els, err := s.Elements(ctx, m.Marker)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, m.Text) {
			return true, nil
		}
	}
	return false, nil
}

// AnyIndicator is satisfied when any locator matches.
type AnyIndicator []browser.Locator

func DefaultAccountIndicator() AnyIndicator {
	return AnyIndicator{
		browser.ByCSS("a[href*='/mypage']"),
		browser.ByCSS(".header-utility__login-status"),
	}
}

func (a AnyIndicator) LoggedIn(ctx context.Context, s browser.Session) (bool, error) {
	if len(a) == 0 {
		return false, nil
	}
	_, _, err := browser.First(ctx, s, a...)
	if errors.Is(err, browser.ErrNoElement) {
		return false, nil
	}
	return err == nil, err
}
