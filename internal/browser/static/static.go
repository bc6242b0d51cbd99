// Package static implements browser.Session over in-memory HTML documents.
// Pages are plain HTML keyed by URL; scripts, clicks and popups are supplied
// as hooks so flows can be replayed without Chrome.
package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"

	"github.com/AlfredBerg/green-scraper/internal/browser"
)

type ScriptFunc func(s *Session, args ...interface{}) (gson.JSON, error)

// Input records a value typed into a form field, identified by its id,
// name or type attribute, whichever is set first.
type Input struct {
	Field string
	Text  string
}

type frame struct {
	url string
	doc *goquery.Document
}

type Session struct {
	Pages     map[string]string
	NavErrors map[string]error
	// Redirects maps a requested URL to the URL the page ends up on.
	Redirects map[string]string
	Scripts   map[string]ScriptFunc

	OnClick  func(s *Session, el *Element) error
	OnSubmit func(s *Session, el *Element) error

	Navigations []string
	Inputs      []Input
	Submits     []string
	Screenshots []string
	Closed      bool

	frames  []*frame
	pending []string
}

func New(pages map[string]string) *Session {
	return &Session{
		Pages:     pages,
		NavErrors: map[string]error{},
		Redirects: map[string]string{},
		Scripts:   map[string]ScriptFunc{},
		frames:    []*frame{{url: "about:blank", doc: mustParse("")}},
	}
}

func mustParse(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		panic(err)
	}
	return doc
}

func (s *Session) top() *frame {
	return s.frames[len(s.frames)-1]
}

// SetURL moves the active context to url, loading its page when one is
// registered. It does not record a navigation.
func (s *Session) SetURL(url string) {
	f := s.top()
	f.url = url
	body, ok := s.Pages[url]
	if !ok {
		body = ""
	}
	f.doc = mustParse(body)
}

// Open queues a new context, picked up by the next SwitchToNewest.
func (s *Session) Open(url string) {
	s.pending = append(s.pending, url)
}

// Depth returns the number of open contexts.
func (s *Session) Depth() int {
	return len(s.frames)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Navigations = append(s.Navigations, url)
	if err := s.NavErrors[url]; err != nil {
		return err
	}
	if to, ok := s.Redirects[url]; ok {
		url = to
	}
	if _, ok := s.Pages[url]; !ok {
		return fmt.Errorf("static: no page registered for %s", url)
	}
	s.SetURL(url)
	return nil
}

func (s *Session) Elements(ctx context.Context, l browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.find(s.top().doc.Selection, l)
}

func (s *Session) find(root *goquery.Selection, l browser.Locator) ([]browser.Element, error) {
	if l.Kind == browser.XPath {
		return nil, browser.ErrUnsupported
	}
	var out []browser.Element
	root.Find(l.Selector).Each(func(_ int, sel *goquery.Selection) {
		if l.Kind == browser.Text && !strings.Contains(innerText(sel), l.Text) {
			return
		}
		out = append(out, &Element{s: s, sel: sel})
	})
	return out, nil
}

func (s *Session) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.New(nil), err
	}
	f, ok := s.Scripts[js]
	if !ok {
		return gson.New(nil), fmt.Errorf("static: no script registered")
	}
	return f(s, args...)
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return s.top().url, ctx.Err()
}

func (s *Session) SwitchToNewest(ctx context.Context) (bool, error) {
	if len(s.pending) == 0 {
		return false, ctx.Err()
	}
	url := s.pending[len(s.pending)-1]
	s.pending = nil
	s.frames = append(s.frames, &frame{})
	s.SetURL(url)
	return true, ctx.Err()
}

func (s *Session) CloseCurrent(ctx context.Context) error {
	if len(s.frames) < 2 {
		return browser.ErrNoContext
	}
	s.frames = s.frames[:len(s.frames)-1]
	return ctx.Err()
}

func (s *Session) Screenshot(ctx context.Context, path string) error {
	s.Screenshots = append(s.Screenshots, path)
	return ctx.Err()
}

func (s *Session) Close() error {
	s.Closed = true
	return nil
}

type Element struct {
	s   *Session
	sel *goquery.Selection
}

// Selection exposes the underlying node for hooks.
func (e *Element) Selection() *goquery.Selection {
	return e.sel
}

func (e *Element) Text() (string, error) {
	return innerText(e.sel), nil
}

func (e *Element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) Visible() (bool, error) {
	for sel := e.sel; sel.Length() > 0; sel = sel.Parent() {
		if _, hidden := sel.Attr("hidden"); hidden {
			return false, nil
		}
		style, _ := sel.Attr("style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			return false, nil
		}
	}
	return true, nil
}

func (e *Element) Click() error {
	if e.s.OnClick != nil {
		return e.s.OnClick(e.s, e)
	}
	if href, ok := e.sel.Attr("href"); ok {
		return e.s.Navigate(context.Background(), href)
	}
	return nil
}

func (e *Element) Input(text string) error {
	e.s.Inputs = append(e.s.Inputs, Input{Field: e.field(), Text: text})
	return nil
}

func (e *Element) Submit() error {
	e.s.Submits = append(e.s.Submits, e.field())
	if e.s.OnSubmit != nil {
		return e.s.OnSubmit(e.s, e)
	}
	return nil
}

func (e *Element) field() string {
	for _, attr := range []string{"id", "name", "type"} {
		if v, ok := e.sel.Attr(attr); ok && v != "" {
			return v
		}
	}
	return goquery.NodeName(e.sel)
}

func (e *Element) Parent() (browser.Element, error) {
	p := e.sel.Parent()
	if p.Length() == 0 {
		return nil, browser.ErrNoElement
	}
	return &Element{s: e.s, sel: p}, nil
}

func (e *Element) Children() ([]browser.Element, error) {
	var out []browser.Element
	e.sel.Children().Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &Element{s: e.s, sel: sel})
	})
	return out, nil
}

func (e *Element) Elements(l browser.Locator) ([]browser.Element, error) {
	return e.s.find(e.sel, l)
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true,
	"form": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "header": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "section": true, "table": true, "tr": true, "ul": true,
}

// innerText approximates HTMLElement.innerText: block elements and <br>
// break lines, whitespace inside a line collapses, blank lines are dropped.
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			if n.Data == "br" {
				b.WriteString("\n")
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString("\n")
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
