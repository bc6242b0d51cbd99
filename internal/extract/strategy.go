package extract

import (
	"strings"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

// Strategy finds one candidate value on a page. An empty string means no
// value, the same as an error.
type Strategy struct {
	Name string
	Find func(p *Page) (string, error)
}

// FieldSpec is the ordered strategy chain for a field. Accept, when set,
// rejects candidates that do not look like the field.
type FieldSpec struct {
	Field      record.Field
	Strategies []Strategy
	Accept     func(value string) bool
}

// LabelScan takes the value next to the first label containing one of labels.
func LabelScan(labels ...string) Strategy {
	return Strategy{
		Name: "label:" + strings.Join(labels, "|"),
		Find: func(p *Page) (string, error) {
			for _, pair := range p.Pairs() {
				if containsAny(pair.Label, labels) {
					return pair.Value, nil
				}
			}
			return "", nil
		},
	}
}

// LabeledStructural reads value only when the element at label mentions text.
func LabeledStructural(label, value browser.Locator, text string) Strategy {
	return Strategy{
		Name: "labeled:" + label.Selector,
		Find: func(p *Page) (string, error) {
			l, err := p.Text(label)
			if err != nil {
				return "", err
			}
			if !strings.Contains(l, Normalize(text)) {
				return "", nil
			}
			return p.Text(value)
		},
	}
}

// Structural takes the text of the first locator that matches.
func Structural(locators ...browser.Locator) Strategy {
	name := "structural"
	if len(locators) > 0 {
		name += ":" + locators[0].Selector
	}
	return Strategy{
		Name: name,
		Find: func(p *Page) (string, error) {
			el, _, err := browser.First(p.ctx, p.s, locators...)
			if err != nil {
				return "", err
			}
			return elementText(el)
		},
	}
}

// Item matches list items whose text mentions one of Labels and none of
// Exclude. Strip is removed from the text, the label itself is kept unless
// stripped.
type Item struct {
	Labels  []string
	Exclude []string
	Strip   []string
}

func ItemText(items browser.Locator, m Item) Strategy {
	return Strategy{
		Name: "item:" + strings.Join(m.Labels, "|"),
		Find: func(p *Page) (string, error) {
			els, err := p.Elements(items)
			if err != nil {
				return "", err
			}
			for _, el := range els {
				text, err := elementText(el)
				if err != nil || !containsAny(text, m.Labels) || containsAny(text, m.Exclude) {
					continue
				}
				for _, s := range m.Strip {
					text = strings.ReplaceAll(text, Normalize(s), "")
				}
				if v := Normalize(text); v != "" {
					return v, nil
				}
			}
			return "", nil
		},
	}
}

// Box reads the content of the first box whose label element mentions one of
// labels.
func Box(boxes, label, content browser.Locator, labels ...string) Strategy {
	return Strategy{
		Name: "box:" + strings.Join(labels, "|"),
		Find: func(p *Page) (string, error) {
			els, err := p.Elements(boxes)
			if err != nil {
				return "", err
			}
			for _, box := range els {
				title, err := childText(box, label)
				if err != nil || !containsAny(title, labels) {
					continue
				}
				if v, err := childText(box, content); err == nil && v != "" {
					return v, nil
				}
			}
			return "", nil
		},
	}
}

func childText(el browser.Element, l browser.Locator) (string, error) {
	els, err := el.Elements(l)
	if err != nil {
		return "", err
	}
	if len(els) == 0 {
		return "", browser.ErrNoElement
	}
	return elementText(els[0])
}

// Tags joins the text of every matching element with sep.
func Tags(tags browser.Locator, sep string) Strategy {
	return Strategy{
		Name: "tags:" + tags.Selector,
		Find: func(p *Page) (string, error) {
			els, err := p.Elements(tags)
			if err != nil {
				return "", err
			}
			var out []string
			for _, el := range els {
				if t, err := elementText(el); err == nil && t != "" {
					out = append(out, t)
				}
			}
			return strings.Join(out, sep), nil
		},
	}
}

// Profile reads field from the company profile page.
func Profile(field record.Field) Strategy {
	return Strategy{
		Name: "profile",
		Find: func(p *Page) (string, error) {
			m, err := p.Profile()
			if err != nil {
				return "", err
			}
			return m[field], nil
		},
	}
}

func containsYen(v string) bool {
	return strings.Contains(v, "円")
}
