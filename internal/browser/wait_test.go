package browser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/browser/static"
)

func TestFirstTriesLocatorsInOrder(t *testing.T) {
	s := static.New(map[string]string{
		"https://example.com/": `<a class="google-button">Googleでログイン</a>`,
	})
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))

	el, l, err := browser.First(context.Background(), s,
		browser.ByCSS("#missing > a"),
		browser.ByXPath("//a"),
		browser.ByCSS("a.google-button"),
		browser.ByText("a", "Google"),
	)
	require.NoError(t, err)
	assert.Equal(t, "a.google-button", l.Selector)
	text, _ := el.Text()
	assert.Equal(t, "Googleでログイン", text)

	_, _, err = browser.First(context.Background(), s, browser.ByCSS("button"))
	assert.ErrorIs(t, err, browser.ErrNoElement)
}

func TestWaitForIsBounded(t *testing.T) {
	s := static.New(map[string]string{"https://example.com/": `<p>empty</p>`})
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))

	var slept time.Duration
	_, err := browser.WaitFor(context.Background(), s, browser.ByCSS("input"), browser.WaitOptions{
		Timeout:  time.Second,
		Interval: 250 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept += d
			return nil
		},
	})
	assert.ErrorIs(t, err, browser.ErrNoElement)
	assert.Equal(t, time.Second, slept)
}

func TestWaitForVisible(t *testing.T) {
	s := static.New(map[string]string{
		"https://example.com/": `<input type="email" hidden><input type="email" id="shown">`,
	})
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))

	el, err := browser.WaitFor(context.Background(), s, browser.ByCSS("input[type='email']"), browser.WaitOptions{
		Visible: true,
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})
	require.NoError(t, err)
	id, ok, _ := el.Attribute("id")
	assert.True(t, ok)
	assert.Equal(t, "shown", id)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, browser.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, browser.Sleep(context.Background(), 0))
}

func TestOnOrigin(t *testing.T) {
	origin := "https://www.green-japan.com"
	assert.True(t, browser.OnOrigin("https://www.green-japan.com/mypage", origin, "/login"))
	assert.False(t, browser.OnOrigin("https://www.green-japan.com/login", origin, "/login"))
	assert.False(t, browser.OnOrigin("https://accounts.google.com/signin?continue=https://www.green-japan.com", origin, ""))
	assert.False(t, browser.OnOrigin("http://www.green-japan.com/", origin, ""))
	assert.True(t, browser.OnOrigin("https://WWW.green-japan.com/", origin, ""))
}
