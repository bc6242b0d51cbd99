package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/rod/lib/utils"
	"github.com/ysmood/gson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/js"
)

// RodSession drives a Chrome instance through go-rod.
type RodSession struct {
	browser *rod.Browser
	// contexts is a stack, the last page is the active one.
	contexts []*rod.Page
	known    map[proto.TargetTargetID]bool
	timeout  time.Duration
	log      *zap.Logger

	cleanup []func() error
}

// NewRodSession wraps a connected browser and opens the first page.
func NewRodSession(b *rod.Browser, timeout time.Duration, log *zap.Logger) (*RodSession, error) {
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed opening initial page: %w", err)
	}
	if _, err := page.EvalOnNewDocument(js.HIDE_WEBDRIVER); err != nil {
		log.Warn("failed installing webdriver mask", zap.Error(err))
	}

	s := &RodSession{
		browser:  b,
		contexts: []*rod.Page{page},
		known:    map[proto.TargetTargetID]bool{},
		timeout:  timeout,
		log:      log,
	}
	if err := s.markKnown(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RodSession) markKnown() error {
	pages, err := s.browser.Pages()
	if err != nil {
		return fmt.Errorf("failed listing pages: %w", err)
	}
	for _, p := range pages {
		s.known[p.TargetID] = true
	}
	return nil
}

// page returns the active page bound to ctx. Lookups go through it so the
// elements they return carry no operation deadline.
func (s *RodSession) page(ctx context.Context) *rod.Page {
	return s.contexts[len(s.contexts)-1].Context(ctx)
}

// op returns the active page bounded by the operation timeout.
func (s *RodSession) op(ctx context.Context) (*rod.Page, context.CancelFunc) {
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.page(tctx), cancel
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p, cancel := s.op(ctx)
	defer cancel()
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for %s to load: %w", url, err)
	}
	return nil
}

func (s *RodSession) Elements(ctx context.Context, l Locator) ([]Element, error) {
	p := s.page(ctx)
	return findElements(l, p.Elements, p.ElementsX, s.timeout)
}

func (s *RodSession) Eval(ctx context.Context, script string, args ...interface{}) (gson.JSON, error) {
	p, cancel := s.op(ctx)
	defer cancel()
	res, err := p.Eval(script, args...)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (s *RodSession) CurrentURL(ctx context.Context) (string, error) {
	p, cancel := s.op(ctx)
	defer cancel()
	info, err := p.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *RodSession) SwitchToNewest(ctx context.Context) (bool, error) {
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return false, fmt.Errorf("failed listing pages: %w", err)
	}

	var newest *rod.Page
	for _, p := range pages {
		if s.known[p.TargetID] {
			continue
		}
		s.known[p.TargetID] = true
		newest = p
	}
	if newest == nil {
		return false, nil
	}

	if _, err := newest.Activate(); err != nil {
		s.log.Warn("failed focusing new context", zap.Error(err))
	}
	s.contexts = append(s.contexts, newest)
	s.log.Debug("switched browser context", zap.Int("depth", len(s.contexts)))
	return true, nil
}

func (s *RodSession) CloseCurrent(ctx context.Context) error {
	if len(s.contexts) < 2 {
		return ErrNoContext
	}
	top := s.contexts[len(s.contexts)-1]
	s.contexts = s.contexts[:len(s.contexts)-1]

	// The page may already be gone, e.g. an identity provider popup closing itself.
	err := top.Close()
	if _, aerr := s.contexts[len(s.contexts)-1].Context(ctx).Activate(); aerr != nil {
		err = multierr.Append(err, aerr)
	}
	return err
}

func (s *RodSession) Screenshot(ctx context.Context, path string) error {
	p, cancel := s.op(ctx)
	defer cancel()
	img, err := p.Screenshot(true, nil)
	if err != nil {
		return err
	}
	return utils.OutputFile(path, img)
}

// Close closes the browser and runs the launcher cleanups, newest first.
func (s *RodSession) Close() error {
	err := s.browser.Close()
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.cleanup[i]())
	}
	return err
}

func (s *RodSession) onClose(f func() error) {
	s.cleanup = append(s.cleanup, f)
}

func findElements(l Locator, css, xpath func(string) (rod.Elements, error), timeout time.Duration) ([]Element, error) {
	var (
		els rod.Elements
		err error
	)
	switch l.Kind {
	case XPath:
		els, err = xpath(l.Selector)
	default:
		els, err = css(l.Selector)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Element, 0, len(els))
	for _, el := range els {
		re := &rodElement{el: el, timeout: timeout}
		if l.Kind == Text {
			text, err := re.Text()
			if err != nil || !strings.Contains(text, l.Text) {
				continue
			}
		}
		out = append(out, re)
	}
	return out, nil
}

// rodElement keeps the element unbounded and applies the timeout per call.
type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) bounded() *rod.Element {
	return e.el.Timeout(e.timeout)
}

func (e *rodElement) Text() (string, error) {
	el := e.bounded()
	defer el.CancelTimeout()
	return el.Text()
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	el := e.bounded()
	defer el.CancelTimeout()
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Visible() (bool, error) {
	el := e.bounded()
	defer el.CancelTimeout()
	return el.Visible()
}

func (e *rodElement) Click() error {
	el := e.bounded()
	defer el.CancelTimeout()
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Input(text string) error {
	el := e.bounded()
	defer el.CancelTimeout()
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (e *rodElement) Submit() error {
	el := e.bounded()
	defer el.CancelTimeout()
	if err := el.Focus(); err != nil {
		return err
	}
	return el.Page().Keyboard.Type(input.Enter)
}

func (e *rodElement) Parent() (Element, error) {
	p, err := e.el.Parent()
	if err != nil {
		return nil, err
	}
	return &rodElement{el: p, timeout: e.timeout}, nil
}

func (e *rodElement) Children() ([]Element, error) {
	return e.Elements(ByCSS(":scope > *"))
}

func (e *rodElement) Elements(l Locator) ([]Element, error) {
	return findElements(l, e.el.Elements, e.el.ElementsX, e.timeout)
}
