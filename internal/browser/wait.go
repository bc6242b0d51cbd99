package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepFunc matches Sleep so components can swap in a fake clock.
type SleepFunc func(ctx context.Context, d time.Duration) error

// First returns the first element matched by the locators, tried in order.
func First(ctx context.Context, s Session, locators ...Locator) (Element, Locator, error) {
	for _, l := range locators {
		els, err := s.Elements(ctx, l)
		if err != nil || len(els) == 0 {
			continue
		}
		return els[0], l, nil
	}
	return nil, Locator{}, ErrNoElement
}

type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	// Visible additionally requires the element to be visible.
	Visible bool
	Sleep   SleepFunc
}

// WaitFor polls until l matches an element or the timeout passes. At least
// one lookup is always made.
func WaitFor(ctx context.Context, s Session, l Locator, opts WaitOptions) (Element, error) {
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}

	var waited time.Duration
	for {
		els, err := s.Elements(ctx, l)
		if err == nil {
			for _, el := range els {
				if !opts.Visible {
					return el, nil
				}
				if ok, _ := el.Visible(); ok {
					return el, nil
				}
			}
		}
		if waited >= opts.Timeout {
			return nil, fmt.Errorf("waiting for %s: %w", l, ErrNoElement)
		}
		if err := opts.Sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
		waited += opts.Interval
	}
}

// OnOrigin reports whether raw has the same scheme and host as origin and,
// when exclude is set, does not sit under that path.
func OnOrigin(raw, origin, exclude string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	o, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Host, o.Host) || u.Scheme != o.Scheme {
		return false
	}
	if exclude != "" && strings.HasPrefix(u.Path, exclude) {
		return false
	}
	return true
}
