package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

var ErrNoProfileLink = errors.New("company profile link not found")

// Pair is a label and the value displayed next to it.
type Pair struct {
	Label string
	Value string
}

// Page is the loaded detail page as seen by strategies. Lookups that are
// shared between fields are computed once.
type Page struct {
	ctx context.Context
	s   browser.Session
	url string
	e   *Extractor

	pairs   []Pair
	scanned bool

	profile    map[record.Field]string
	profileErr error
	profiled   bool
}

func (p *Page) URL() string {
	return p.url
}

func (p *Page) Elements(l browser.Locator) ([]browser.Element, error) {
	return p.s.Elements(p.ctx, l)
}

// Text returns the first element's normalised text.
func (p *Page) Text(l browser.Locator) (string, error) {
	els, err := p.Elements(l)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", browser.ErrNoElement
	}
	return elementText(els[0])
}

func elementText(el browser.Element) (string, error) {
	t, err := el.Text()
	if err != nil {
		return "", err
	}
	return Normalize(t), nil
}

// Pairs scans every label-like element and pairs it with the sibling that
// follows it under the same parent.
func (p *Page) Pairs() []Pair {
	if p.scanned {
		return p.pairs
	}
	p.scanned = true

	labels, err := p.Elements(p.e.LabelElements)
	if err != nil {
		p.e.log.Debug("label scan failed", zap.Error(err))
		return nil
	}
	for _, el := range labels {
		label, err := elementText(el)
		if err != nil || label == "" || strings.Contains(label, "\n") {
			continue
		}
		value, ok := siblingValue(el, label)
		if !ok {
			continue
		}
		p.pairs = append(p.pairs, Pair{Label: label, Value: value})
	}
	return p.pairs
}

func siblingValue(el browser.Element, label string) (string, bool) {
	parent, err := el.Parent()
	if err != nil {
		return "", false
	}
	children, err := parent.Children()
	if err != nil || len(children) < 2 {
		return "", false
	}
	for i, c := range children[:len(children)-1] {
		if t, err := elementText(c); err != nil || t != label {
			continue
		}
		v, err := elementText(children[i+1])
		if err != nil || v == "" {
			return "", false
		}
		return v, true
	}
	return "", false
}

// Profile follows the company profile link, reads its label/value rows and
// returns to the detail page. The result is kept for the rest of the page.
func (p *Page) Profile() (map[record.Field]string, error) {
	if p.profiled {
		return p.profile, p.profileErr
	}
	p.profiled = true
	p.profile, p.profileErr = p.visitProfile()
	return p.profile, p.profileErr
}

func (p *Page) visitProfile() (out map[record.Field]string, err error) {
	link, _, err := browser.First(p.ctx, p.s, p.e.CompanyLinks...)
	if err != nil {
		return nil, ErrNoProfileLink
	}
	href, ok, err := link.Attribute("href")
	if err != nil || !ok || href == "" {
		return nil, ErrNoProfileLink
	}
	base, err := url.Parse(p.url)
	if err != nil {
		return nil, err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid profile link %q: %w", href, err)
	}
	target := base.ResolveReference(ref).String()

	defer func() {
		if berr := p.e.load(p.ctx, p.s, p.url); berr != nil {
			p.e.log.Warn("failed returning to detail page", zap.String("url", p.url), zap.Error(berr))
			err = errors.Join(err, berr)
		}
	}()
	if err := p.e.load(p.ctx, p.s, target); err != nil {
		return nil, fmt.Errorf("failed loading company profile: %w", err)
	}

	out = map[record.Field]string{}
	for _, root := range p.e.ProfileRoots {
		roots, err := p.s.Elements(p.ctx, root)
		if err != nil || len(roots) == 0 {
			continue
		}
		containers, err := roots[0].Children()
		if err != nil {
			continue
		}
		for _, c := range containers {
			text, err := elementText(c)
			if err != nil {
				continue
			}
			label, value, ok := strings.Cut(text, "\n")
			if !ok {
				continue
			}
			value = strings.ReplaceAll(strings.TrimSpace(value), "\n", " ")
			for f, synonyms := range p.e.ProfileSynonyms {
				if _, done := out[f]; !done && value != "" && containsAny(label, synonyms) {
					out[f] = value
				}
			}
		}
		break
	}
	p.e.log.Debug("read company profile", zap.String("url", target), zap.Int("fields", len(out)))
	return out, nil
}

// Normalize applies NFKC, collapses whitespace inside lines and drops blank
// lines.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, Normalize(sub)) {
			return true
		}
	}
	return false
}
