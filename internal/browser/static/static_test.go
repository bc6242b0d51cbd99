package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlfredBerg/green-scraper/internal/browser"
)

const page = `<html><body>
<div id="info">
  <div class="row"><p>設立</p><p>2012年4月</p></div>
  <div class="row"><p>社員数</p><p>120名<br>(2024年時点)</p></div>
</div>
<a href="/a" class="card">株式会社A</a>
<a class="card" hidden>Hidden</a>
<span style="display: none"><a class="card">Nested hidden</a></span>
</body></html>`

func TestInnerTextBreaksOnBlocks(t *testing.T) {
	s := New(map[string]string{"https://example.com/": page})
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))

	els, err := s.Elements(context.Background(), browser.ByCSS("#info > div"))
	require.NoError(t, err)
	require.Len(t, els, 2)

	text, err := els[0].Text()
	require.NoError(t, err)
	assert.Equal(t, "設立\n2012年4月", text)

	text, err = els[1].Text()
	require.NoError(t, err)
	assert.Equal(t, "社員数\n120名\n(2024年時点)", text)
}

func TestTextLocatorAndVisibility(t *testing.T) {
	s := New(map[string]string{"https://example.com/": page})
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))

	els, err := s.Elements(context.Background(), browser.ByText("a.card", "株式会社"))
	require.NoError(t, err)
	require.Len(t, els, 1)

	all, err := s.Elements(context.Background(), browser.ByCSS("a.card"))
	require.NoError(t, err)
	require.Len(t, all, 3)
	var visible []bool
	for _, el := range all {
		v, err := el.Visible()
		require.NoError(t, err)
		visible = append(visible, v)
	}
	assert.Equal(t, []bool{true, false, false}, visible)

	_, err = s.Elements(context.Background(), browser.ByXPath("//a"))
	assert.ErrorIs(t, err, browser.ErrUnsupported)
}

func TestContextsAndRedirects(t *testing.T) {
	s := New(map[string]string{
		"https://example.com/":      page,
		"https://example.com/home":  "<p>home</p>",
		"https://idp.example/login": "<input type='email'>",
	})
	s.Redirects["https://example.com/"] = "https://example.com/home"

	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "https://example.com/"))
	u, _ := s.CurrentURL(ctx)
	assert.Equal(t, "https://example.com/home", u)

	opened, err := s.SwitchToNewest(ctx)
	require.NoError(t, err)
	assert.False(t, opened)

	s.Open("https://idp.example/login")
	opened, err = s.SwitchToNewest(ctx)
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, 2, s.Depth())
	u, _ = s.CurrentURL(ctx)
	assert.Equal(t, "https://idp.example/login", u)

	require.NoError(t, s.CloseCurrent(ctx))
	u, _ = s.CurrentURL(ctx)
	assert.Equal(t, "https://example.com/home", u)
	assert.ErrorIs(t, s.CloseCurrent(ctx), browser.ErrNoContext)

	assert.Error(t, s.Navigate(ctx, "https://example.com/missing"))
}
