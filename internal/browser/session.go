// Package browser describes the browser capabilities the scraper relies on and
// provides a go-rod backed implementation of them.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ysmood/gson"
)

var (
	ErrNoElement   = errors.New("no element matched")
	ErrNoContext   = errors.New("no browser context to switch to")
	ErrUnsupported = errors.New("locator kind not supported")
)

type LocatorKind int

const (
	CSS LocatorKind = iota
	XPath
	// Text matches elements selected by CSS whose visible text contains Text.
	Text
)

// Locator identifies elements on a page, either structurally or by their text.
type Locator struct {
	Kind     LocatorKind
	Selector string
	Text     string
}

func ByCSS(selector string) Locator {
	return Locator{Kind: CSS, Selector: selector}
}

func ByXPath(xpath string) Locator {
	return Locator{Kind: XPath, Selector: xpath}
}

func ByText(selector, text string) Locator {
	return Locator{Kind: Text, Selector: selector, Text: text}
}

func (l Locator) String() string {
	switch l.Kind {
	case XPath:
		return "xpath:" + l.Selector
	case Text:
		return fmt.Sprintf("text:%s[%q]", l.Selector, l.Text)
	default:
		return "css:" + l.Selector
	}
}

type Element interface {
	// Text returns the rendered text of the element, line breaks included.
	Text() (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)
	Visible() (bool, error)
	Click() error
	// Input replaces the current value of a form field.
	Input(text string) error
	// Submit presses Enter while the element has focus.
	Submit() error
	Parent() (Element, error)
	Children() ([]Element, error)
	Elements(l Locator) ([]Element, error)
}

// Session is a single browser driven by one logical flow. A session keeps a
// stack of contexts (tabs or popups); every call acts on the newest one.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Elements(ctx context.Context, l Locator) ([]Element, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	CurrentURL(ctx context.Context) (string, error)
	// SwitchToNewest makes a context opened since the last switch the active
	// one. It reports false when no new context exists.
	SwitchToNewest(ctx context.Context) (bool, error)
	// CloseCurrent closes the active context and returns to the one below it.
	CloseCurrent(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}
