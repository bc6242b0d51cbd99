package crawl

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AlfredBerg/green-scraper/internal/browser/static"
	"github.com/AlfredBerg/green-scraper/internal/js"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

const listingURL = "https://www.green-japan.com/favorites/sent"

func listingPage(cards ...string) string {
	var b strings.Builder
	b.WriteString(`<div id="__next"><div class="MuiBox-root css-0"><div><div class="css-1t1ayi5"><div class="MuiBox-root css-13vg3tq">`)
	for _, c := range cards {
		b.WriteString("<div>" + c + "</div>")
	}
	b.WriteString(`</div></div></div></div></div>`)
	return b.String()
}

// growingPage makes the document grow for the first `grows` scrolls.
func growingPage(s *static.Session, grows int) *int {
	scrolls := 0
	s.Scripts[js.SCROLL_TO_BOTTOM] = func(*static.Session, ...interface{}) (gson.JSON, error) {
		scrolls++
		return gson.New(nil), nil
	}
	s.Scripts[js.DOCUMENT_HEIGHT] = func(*static.Session, ...interface{}) (gson.JSON, error) {
		return gson.New(1000 + 800*min(scrolls, grows)), nil
	}
	return &scrolls
}

func newTestCollector(log *zap.Logger) (*Collector, *time.Duration) {
	c := NewCollector(log)
	var slept time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		return ctx.Err()
	}
	return c, &slept
}

func TestCollectStopsWhenPageStopsGrowing(t *testing.T) {
	s := static.New(map[string]string{
		listingURL: listingPage(`<a href="/company/1/job/10">株式会社A</a>`),
	})
	scrolls := growingPage(s, 2)
	c, slept := newTestCollector(zap.NewNop())

	ids, err := c.Collect(context.Background(), s, listingURL)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 3, *scrolls)
	assert.Equal(t, 3*time.Second, *slept)
}

func TestCollectRespectsScrollLimit(t *testing.T) {
	s := static.New(map[string]string{
		listingURL: listingPage(`<a href="/company/1/job/10">株式会社A</a>`),
	})
	scrolls := growingPage(s, 1000)
	c, _ := newTestCollector(zap.NewNop())
	c.MaxScrolls = 5

	_, err := c.Collect(context.Background(), s, listingURL)
	require.NoError(t, err)
	assert.Equal(t, 5, *scrolls)
}

func TestCollectKeepsDomOrder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := static.New(map[string]string{
		listingURL: listingPage(
			`<a href="/company/3/job/30"><p>株式会社C</p><p>Goエンジニア</p></a>`,
			`<a>href missing</a>`,
			`<a href="https://www.green-japan.com/company/1/job/10">株式会社A</a>`,
			`<a href="../company/2/job/20">株式会社B</a>`,
		),
	})
	growingPage(s, 0)
	c, _ := newTestCollector(zap.New(core))

	ids, err := c.Collect(context.Background(), s, listingURL)
	require.NoError(t, err)
	assert.Equal(t, []Identifier{
		{URL: "https://www.green-japan.com/company/3/job/30", Position: 1, Label: "株式会社C"},
		{URL: "https://www.green-japan.com/company/1/job/10", Position: 2, Label: "株式会社A"},
		{URL: "https://www.green-japan.com/company/2/job/20", Position: 3, Label: "株式会社B"},
	}, ids)
	assert.Equal(t, 1, logs.FilterMessage("skipping anchor without href").Len())
}

func TestCollectFallsBackToJobLinks(t *testing.T) {
	s := static.New(map[string]string{
		listingURL: `<ul><li><a href="/company/9/job/90">株式会社Z</a></li><li><a href="/about">about</a></li></ul>`,
	})
	growingPage(s, 0)
	c, _ := newTestCollector(zap.NewNop())

	ids, err := c.Collect(context.Background(), s, listingURL)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "https://www.green-japan.com/company/9/job/90", ids[0].URL)
}

func TestCollectWithoutAnchorsFails(t *testing.T) {
	s := static.New(map[string]string{listingURL: `<p>お気に入りはありません</p>`})
	growingPage(s, 0)
	c, slept := newTestCollector(zap.NewNop())
	c.AnchorTimeout = 2 * time.Second

	_, err := c.Collect(context.Background(), s, listingURL)
	assert.ErrorIs(t, err, ErrNoListings)
	// one settle pause for the single scroll plus the anchor wait
	assert.Equal(t, time.Second+2*time.Second, *slept)
}

func TestCollectNavigationError(t *testing.T) {
	s := static.New(map[string]string{})
	s.NavErrors[listingURL] = fmt.Errorf("net::ERR_CONNECTION_RESET")
	c, _ := newTestCollector(zap.NewNop())

	_, err := c.Collect(context.Background(), s, listingURL)
	assert.ErrorContains(t, err, "ERR_CONNECTION_RESET")
}

func TestCollectReadsListingCard(t *testing.T) {
	s := static.New(map[string]string{
		listingURL: listingPage(
			`<a href="/company/1/job/10"><p>株式会社A</p><ul>` +
				`<li class="card-info__detail-item">給与：500万円〜700万円</li>` +
				`<li class="card-info__detail-item">勤務地：東京都</li>` +
				`<li class="card-info__detail-item">残業時間：20時間</li>` +
				`</ul><span class="card-tag__item">Go</span><span class="card-tag__item">AWS</span></a>`,
			`<a href="/company/2/job/20"><p>株式会社B</p><ul>` +
				`<li class="card-info__detail-item">給与：応相談</li>` +
				`<li class="card-info__detail-item">時間：10:00〜19:00</li>` +
				`</ul></a>`,
		),
	})
	growingPage(s, 0)
	c, _ := newTestCollector(zap.NewNop())

	ids, err := c.Collect(context.Background(), s, listingURL)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "株式会社A", ids[0].Label)
	assert.Equal(t, map[record.Field]string{
		record.Salary:    "500万円〜700万円",
		record.Location:  "東京都",
		record.TechStack: "Go, AWS",
	}, ids[0].Card)
	assert.Equal(t, map[record.Field]string{
		record.WorkingHours: "10:00〜19:00",
	}, ids[1].Card)
}
