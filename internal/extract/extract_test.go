package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/browser/static"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

const (
	detailURL  = "https://www.green-japan.com/company/42/job/4242"
	profileURL = "https://www.green-japan.com/company/42"
)

const (
	lp = `class="MuiTypography-root MuiTypography-body2 css-1r6p42g"`
	vp = `class="MuiTypography-root MuiTypography-body2 MuiTypography-alignJustify css-abo7h2"`
)

const detailPage = `<div id="__next"><div class="MuiBox-root css-0"><div>
<div class="MuiContainer-root MuiContainer-maxWidthMd MuiContainer-disableGutters css-2hiy9a"><div><div>
  <div><div class="css-78jar2">
    <div><p ` + lp + `>仕事内容</p><p ` + vp + `>Goでの開発</p></div>
    <div><p ` + lp + `>勤務時間</p><p ` + vp + `>10:00〜19:00</p></div>
    <div><p ` + lp + `>働き方</p><p ` + vp + `>フルリモート可</p></div>
    <div><p ` + lp + `>年収</p></div>
    <div><p ` + lp + `>平均年齢</p><p ` + vp + `>３２歳</p></div>
    <div><p ` + lp + `>採用予定人数</p><p ` + vp + `>2名</p></div>
    <div><p ` + lp + `>年間休日</p><p ` + vp + `>125日</p></div>
    <div><p ` + vp + `>年収500万円〜800万円</p></div>
    <div><p ` + lp + `>平均残業</p><p ` + vp + `>月20時間</p></div>
    <div><p ` + lp + `>みなし残業</p><p ` + vp + `>なし</p></div>
    <div><p ` + lp + `>勤務地</p><p ` + vp + `>東京都  渋谷区</p></div>
  </div></div>
  <aside><div class="MuiPaper-root MuiPaper-outlined MuiPaper-rounded MuiCard-root css-1sbkbfv">
    <a href="/company/42"><div class="MuiCardContent-root css-1qw96cp"><h6>株式会社グリーン</h6></div></a>
  </div></aside>
</div></div></div>
</div></div></div>
<div class="job-offer-requirements__box">
  <div class="job-offer-requirements__label">歓迎経験</div>
  <div class="job-offer-requirements__content">Kubernetes</div>
</div>
<div class="job-offer-requirements__box">
  <div class="job-offer-requirements__label">必須経験</div>
  <div class="job-offer-requirements__content">Goでの開発経験3年以上</div>
</div>
<ul><li class="card-tag__item">Go</li><li class="card-tag__item">TypeScript</li><li class="card-tag__item"> </li></ul>
<ul>
  <li class="job-offer-company-details__list-item"><span>社員数</span><span>120名</span></li>
  <li class="job-offer-company-details__list-item"><span>設立年月</span> <span>2012年4月</span></li>
</ul>`

func newTestExtractor() *Extractor {
	e := New(zap.NewNop())
	e.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return e
}

func winners(attempts []Attempt) map[record.Field]string {
	out := map[record.Field]string{}
	for _, a := range attempts {
		out[a.Field] = a.Winner
	}
	return out
}

func TestExtractDetailPage(t *testing.T) {
	s := static.New(map[string]string{detailURL: detailPage})
	e := newTestExtractor()

	got, attempts, err := e.ExtractAttempts(context.Background(), s, detailURL)
	require.NoError(t, err)

	var want record.Record
	want.Set(record.Company, "株式会社グリーン")
	want.Set(record.Salary, "年収500万円〜800万円")
	want.Set(record.Location, "東京都 渋谷区")
	want.Set(record.WorkingHours, "10:00〜19:00")
	want.Set(record.WorkStyle, "フルリモート可")
	want.Set(record.AverageAge, "32歳")
	want.Set(record.DeemedOvertime, "なし")
	want.Set(record.AverageOvertime, "月20時間")
	want.Set(record.AnnualHolidays, "125日")
	want.Set(record.RequiredExperience, "Goでの開発経験3年以上")
	want.Set(record.TechStack, "Go, TypeScript")
	want.Set(record.ListingURL, detailURL)
	want.Set(record.EmployeeCount, "120名")
	want.Set(record.Founded, "設立年月 2012年4月")
	want.Set(record.PlannedHires, "2名")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	w := winners(attempts)
	assert.Contains(t, w[record.Company], "structural:")
	assert.Contains(t, w[record.Salary], "labeled:")
	assert.Equal(t, "label:平均年齢", w[record.AverageAge])
	assert.Equal(t, "item:社員数", w[record.EmployeeCount])
	assert.Equal(t, []string{detailURL}, s.Navigations, "no profile visit when the detail page has everything")
}

func TestExtractMissingFieldsAreEmpty(t *testing.T) {
	s := static.New(map[string]string{detailURL: `<h1>募集は終了しました</h1>`})
	e := newTestExtractor()

	got, attempts, err := e.ExtractAttempts(context.Background(), s, detailURL)
	require.NoError(t, err)
	for _, f := range record.Fields() {
		if f == record.ListingURL {
			continue
		}
		assert.Empty(t, got.Get(f), f.String())
	}
	assert.Equal(t, detailURL, got.Get(record.ListingURL))
	for _, a := range attempts {
		assert.Empty(t, a.Winner, a.Field.String())
		assert.NotEmpty(t, a.Strategies)
	}
}

func TestSalaryRequiresYen(t *testing.T) {
	for name, tc := range map[string]struct {
		value string
		want  string
	}{
		"negotiable": {value: "応相談", want: ""},
		"age":        {value: "25歳〜35歳", want: ""},
		"monthly":    {value: "月給３０万円〜", want: "月給30万円〜"},
	} {
		t.Run(name, func(t *testing.T) {
			s := static.New(map[string]string{detailURL: `<dl><dt>給与</dt><dd>` + tc.value + `</dd></dl>`})
			got, err := newTestExtractor().Extract(context.Background(), s, detailURL)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Get(record.Salary))
		})
	}
}

func TestCompanyProfileIsVisitedAndLeft(t *testing.T) {
	s := static.New(map[string]string{
		detailURL: `<aside><a href="/company/42"><h6>株式会社グリーン</h6></a></aside>`,
		profileURL: `<div class="css-78jar2">
			<div><p>設立</p><p>2012年4月</p></div>
			<div><p>従業員数</p><p>120名<br>(2024年時点)</p></div>
			<div><p>平均年齢</p><p>31.5歳</p></div>
			<div><p>所在地</p></div>
		</div>`,
	})
	e := newTestExtractor()

	got, err := e.Extract(context.Background(), s, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "株式会社グリーン", got.Get(record.Company))
	assert.Equal(t, "2012年4月", got.Get(record.Founded))
	assert.Equal(t, "120名 (2024年時点)", got.Get(record.EmployeeCount))
	assert.Equal(t, "31.5歳", got.Get(record.AverageAge))

	assert.Equal(t, []string{detailURL, profileURL, detailURL}, s.Navigations)
	u, _ := s.CurrentURL(context.Background())
	assert.Equal(t, detailURL, u)
}

func TestCompanyProfileFailureStillReturns(t *testing.T) {
	s := static.New(map[string]string{
		detailURL: `<aside><a href="/company/42"><h6>株式会社グリーン</h6></a></aside>`,
	})
	s.NavErrors[profileURL] = errors.New("net::ERR_TIMED_OUT")
	e := newTestExtractor()

	got, err := e.Extract(context.Background(), s, detailURL)
	require.NoError(t, err)
	assert.Empty(t, got.Get(record.EmployeeCount))
	assert.Equal(t, []string{detailURL, profileURL, detailURL}, s.Navigations, "profile is tried once")
	u, _ := s.CurrentURL(context.Background())
	assert.Equal(t, detailURL, u)
}

func TestExtractNavigationFailure(t *testing.T) {
	s := static.New(map[string]string{})
	s.NavErrors[detailURL] = errors.New("net::ERR_NAME_NOT_RESOLVED")

	got, err := newTestExtractor().Extract(context.Background(), s, detailURL)
	assert.ErrorIs(t, err, ErrNavigation)
	assert.True(t, got.IsEmpty())
}

func TestStrategyPanicMeansNoValue(t *testing.T) {
	s := static.New(map[string]string{detailURL: `<h1>株式会社テスト</h1>`})
	e := newTestExtractor()
	e.Specs = []FieldSpec{{Field: record.Company, Strategies: []Strategy{
		{Name: "boom", Find: func(*Page) (string, error) { panic("stale element") }},
		{Name: "err", Find: func(*Page) (string, error) { return "ignored", errors.New("detached") }},
		Structural(browser.ByXPath("//h1"), browser.ByCSS("h1")),
	}}}

	got, attempts, err := e.ExtractAttempts(context.Background(), s, detailURL)
	require.NoError(t, err)
	assert.Equal(t, "株式会社テスト", got.Get(record.Company))
	require.Len(t, attempts, 1)
	assert.Equal(t, []string{"boom", "err", "structural://h1"}, attempts[0].Strategies)
	assert.Equal(t, "structural://h1", attempts[0].Winner)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC 123", Normalize("ＡＢＣ　１２３"))
	assert.Equal(t, "社員数\n120名", Normalize("  社員数 \n\n\t120名  "))
	assert.Equal(t, "", Normalize(" \n "))
}
