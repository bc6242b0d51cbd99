package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/js"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

var ErrNoListings = errors.New("no listing anchors found")

// Identifier is one detail page discovered on the listing page. Position is
// 1-based and follows DOM order.
type Identifier struct {
	URL      string
	Position int
	// Label is the first line of the anchor text, usually the company name.
	Label string
	// Card holds the values shown on the listing card. Nil when the card has
	// none.
	Card map[record.Field]string
}

// CardLabel maps a card detail item mentioning Label to Field.
type CardLabel struct {
	Label   string
	Field   record.Field
	Exclude string
}

// DefaultCardLabels are checked in order, the first match takes the item.
var DefaultCardLabels = []CardLabel{
	{Label: "給与", Field: record.Salary},
	{Label: "勤務地", Field: record.Location},
	{Label: "時間", Field: record.WorkingHours, Exclude: "残業"},
	{Label: "働き方", Field: record.WorkStyle},
}

var (
	DefaultCardItems = browser.ByCSS(".card-info__detail-item")
	DefaultCardTags  = browser.ByCSS(".card-tag__item")
)

// DefaultAnchors are tried in order. The first is the listing card path, the
// second survives class name changes.
var DefaultAnchors = []browser.Locator{
	browser.ByCSS("#__next > div.MuiBox-root.css-0 > div > div.css-1t1ayi5 > div.MuiBox-root.css-13vg3tq > div > a"),
	browser.ByCSS("a[href*='/company/'][href*='/job/']"),
}

type Collector struct {
	Anchors     []browser.Locator
	CardItems   browser.Locator
	CardLabels  []CardLabel
	CardTags    browser.Locator
	ScrollPause time.Duration
	MaxScrolls  int
	// AnchorTimeout bounds the wait for the first anchor after scrolling.
	AnchorTimeout time.Duration

	log   *zap.Logger
	sleep browser.SleepFunc
}

func NewCollector(log *zap.Logger) *Collector {
	return &Collector{
		Anchors:       DefaultAnchors,
		CardItems:     DefaultCardItems,
		CardLabels:    DefaultCardLabels,
		CardTags:      DefaultCardTags,
		ScrollPause:   time.Second,
		MaxScrolls:    100,
		AnchorTimeout: 30 * time.Second,
		log:           log.Named("collect"),
		sleep:         browser.Sleep,
	}
}

// Collect loads listingURL, scrolls until the page stops growing and returns
// the detail page links in DOM order.
func (c *Collector) Collect(ctx context.Context, s browser.Session, listingURL string) ([]Identifier, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %s: %w", listingURL, err)
	}
	if err := s.Navigate(ctx, listingURL); err != nil {
		return nil, fmt.Errorf("failed loading listing page: %w", err)
	}

	scrolls, err := c.scroll(ctx, s)
	if err != nil {
		return nil, err
	}
	c.log.Info("finished scrolling", zap.Int("scrolls", scrolls))

	anchors, err := c.anchors(ctx, s)
	if err != nil {
		return nil, err
	}

	ids := make([]Identifier, 0, len(anchors))
	for i, a := range anchors {
		href, ok, err := a.Attribute("href")
		if err != nil || !ok || strings.TrimSpace(href) == "" {
			c.log.Warn("skipping anchor without href", zap.Int("index", i), zap.Error(err))
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			c.log.Warn("skipping anchor with invalid href", zap.String("href", href), zap.Error(err))
			continue
		}

		var label string
		if text, err := a.Text(); err == nil {
			label, _, _ = strings.Cut(strings.TrimSpace(text), "\n")
		}
		ids = append(ids, Identifier{
			URL:      base.ResolveReference(ref).String(),
			Position: len(ids) + 1,
			Label:    strings.TrimSpace(label),
			Card:     c.card(a),
		})
	}
	c.log.Info("collected listings", zap.Int("found", len(anchors)), zap.Int("usable", len(ids)))
	return ids, nil
}

// card reads the detail items and tags shown inside a listing anchor.
func (c *Collector) card(a browser.Element) map[record.Field]string {
	out := map[record.Field]string{}
	if c.CardItems.Selector != "" {
		items, err := a.Elements(c.CardItems)
		if err != nil {
			c.log.Debug("failed reading card items", zap.Error(err))
		}
		for _, item := range items {
			text, err := item.Text()
			if err != nil {
				continue
			}
			for _, cl := range c.CardLabels {
				if !strings.Contains(text, cl.Label) || (cl.Exclude != "" && strings.Contains(text, cl.Exclude)) {
					continue
				}
				v := cardValue(text, cl.Label)
				if cl.Field == record.Salary && !strings.Contains(v, "円") {
					v = ""
				}
				if v != "" && out[cl.Field] == "" {
					out[cl.Field] = v
				}
				break
			}
		}
	}
	if c.CardTags.Selector != "" {
		if tags, err := a.Elements(c.CardTags); err == nil {
			var names []string
			for _, tag := range tags {
				if t, err := tag.Text(); err == nil && strings.TrimSpace(t) != "" {
					names = append(names, strings.TrimSpace(t))
				}
			}
			if len(names) > 0 {
				out[record.TechStack] = strings.Join(names, ", ")
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// cardValue returns the text after label and its colon, e.g. "給与：500万円"
// gives "500万円".
func cardValue(text, label string) string {
	_, after, _ := strings.Cut(text, label)
	after = strings.TrimLeft(after, ":： \t\n")
	return strings.Join(strings.Fields(after), " ")
}

// scroll returns the number of scroll commands issued. It stops at the first
// scroll that does not grow the document or at MaxScrolls.
func (c *Collector) scroll(ctx context.Context, s browser.Session) (int, error) {
	last, err := c.height(ctx, s)
	if err != nil {
		c.log.Warn("failed reading page height, not scrolling", zap.Error(err))
		return 0, nil
	}

	for i := 1; i <= c.MaxScrolls; i++ {
		if _, err := s.Eval(ctx, js.SCROLL_TO_BOTTOM); err != nil {
			c.log.Warn("failed scrolling", zap.Int("scroll", i), zap.Error(err))
			return i, nil
		}
		if err := c.sleep(ctx, c.ScrollPause); err != nil {
			return i, err
		}
		h, err := c.height(ctx, s)
		if err != nil {
			c.log.Warn("failed reading page height", zap.Int("scroll", i), zap.Error(err))
			return i, nil
		}
		if h <= last {
			return i, nil
		}
		c.log.Debug("page grew", zap.Int("scroll", i), zap.Int("height", h))
		last = h
	}
	c.log.Warn("reached scroll limit", zap.Int("max_scrolls", c.MaxScrolls))
	return c.MaxScrolls, nil
}

func (c *Collector) height(ctx context.Context, s browser.Session) (int, error) {
	v, err := s.Eval(ctx, js.DOCUMENT_HEIGHT)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

func (c *Collector) anchors(ctx context.Context, s browser.Session) ([]browser.Element, error) {
	interval := 500 * time.Millisecond
	var waited time.Duration
	for {
		for _, l := range c.Anchors {
			els, err := s.Elements(ctx, l)
			if err == nil && len(els) > 0 {
				c.log.Debug("matched listing anchors", zap.Stringer("locator", l), zap.Int("count", len(els)))
				return els, nil
			}
		}
		if waited >= c.AnchorTimeout {
			return nil, ErrNoListings
		}
		if err := c.sleep(ctx, interval); err != nil {
			return nil, err
		}
		waited += interval
	}
}
