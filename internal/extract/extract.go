// Package extract turns a job detail page into a record.Record. Each field is
// resolved by an ordered chain of strategies; the first accepted non-empty
// value wins and a field nothing matches stays empty.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

var ErrNavigation = errors.New("detail page failed to load")

// Attempt records how a field was resolved.
type Attempt struct {
	Field      record.Field
	Strategies []string
	// Winner is the strategy that produced Value, empty when none did.
	Winner string
	Value  string
}

type Extractor struct {
	Specs []FieldSpec

	// LabelElements are the candidates for the label scan.
	LabelElements   browser.Locator
	CompanyLinks    []browser.Locator
	ProfileRoots    []browser.Locator
	ProfileSynonyms map[record.Field][]string

	// SettleDelay is waited after every navigation for client side rendering.
	SettleDelay time.Duration

	log   *zap.Logger
	sleep browser.SleepFunc
}

// New returns an extractor configured for green-japan.com detail pages.
func New(log *zap.Logger) *Extractor {
	return &Extractor{
		Specs:           DefaultSpecs(),
		LabelElements:   browser.ByCSS("p, dt, th"),
		CompanyLinks:    DefaultCompanyLinks,
		ProfileRoots:    DefaultProfileRoots,
		ProfileSynonyms: DefaultProfileSynonyms,
		SettleDelay:     2 * time.Second,
		log:             log.Named("extract"),
		sleep:           browser.Sleep,
	}
}

func (e *Extractor) load(ctx context.Context, s browser.Session, url string) error {
	if err := s.Navigate(ctx, url); err != nil {
		return err
	}
	return e.sleep(ctx, e.SettleDelay)
}

func (e *Extractor) Extract(ctx context.Context, s browser.Session, detailURL string) (record.Record, error) {
	r, _, err := e.ExtractAttempts(ctx, s, detailURL)
	return r, err
}

// ExtractAttempts is Extract that also reports how every field was resolved.
// The session is left on detailURL.
func (e *Extractor) ExtractAttempts(ctx context.Context, s browser.Session, detailURL string) (record.Record, []Attempt, error) {
	var r record.Record
	if err := e.load(ctx, s, detailURL); err != nil {
		return record.Record{}, nil, fmt.Errorf("%w: %s: %w", ErrNavigation, detailURL, err)
	}

	p := &Page{ctx: ctx, s: s, url: detailURL, e: e}
	attempts := make([]Attempt, 0, len(e.Specs))
	for _, spec := range e.Specs {
		a := e.resolve(p, spec)
		if a.Winner != "" {
			r.Set(spec.Field, a.Value)
		}
		e.log.Debug("resolved field",
			zap.Stringer("field", a.Field),
			zap.Strings("tried", a.Strategies),
			zap.String("winner", a.Winner),
			zap.String("value", a.Value),
		)
		attempts = append(attempts, a)
	}
	if r.Get(record.ListingURL) == "" {
		r.Set(record.ListingURL, detailURL)
	}
	return r, attempts, nil
}

func (e *Extractor) resolve(p *Page, spec FieldSpec) Attempt {
	a := Attempt{Field: spec.Field}
	for _, st := range spec.Strategies {
		a.Strategies = append(a.Strategies, st.Name)

		v, err := e.try(p, st)
		if err != nil {
			e.log.Debug("strategy failed", zap.Stringer("field", spec.Field), zap.String("strategy", st.Name), zap.Error(err))
			continue
		}
		if v == "" {
			continue
		}
		if spec.Accept != nil && !spec.Accept(v) {
			e.log.Debug("rejected value", zap.Stringer("field", spec.Field), zap.String("strategy", st.Name), zap.String("value", v))
			continue
		}
		a.Winner, a.Value = st.Name, v
		return a
	}
	return a
}

func (e *Extractor) try(p *Page, st Strategy) (v string, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		v, err = st.Find(p)
	})
	if r := pc.Recovered(); r != nil {
		return "", r.AsError()
	}
	return Normalize(v), err
}
