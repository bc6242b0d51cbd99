package extract

import (
	"github.com/AlfredBerg/green-scraper/internal/browser"
	"github.com/AlfredBerg/green-scraper/internal/record"
)

const (
	detailRoot = "#__next > div.MuiBox-root.css-0 > div > div.MuiContainer-root.MuiContainer-maxWidthMd.MuiContainer-disableGutters.css-2hiy9a > div > div"
	infoRoot   = detailRoot + " > div > div.css-78jar2"
	labelP     = "p.MuiTypography-root.MuiTypography-body2.css-1r6p42g"
	valueP     = "p.MuiTypography-root.MuiTypography-body2.MuiTypography-alignJustify.css-abo7h2"
)

var companyItems = browser.ByCSS(".job-offer-company-details__list-item")

var DefaultCompanyLinks = []browser.Locator{
	browser.ByCSS(detailRoot + " > aside > div.MuiPaper-root.MuiPaper-outlined.MuiPaper-rounded.MuiCard-root.css-1sbkbfv > a"),
	browser.ByCSS("aside a[href*='/company/']:not([href*='/job/'])"),
}

// DefaultProfileRoots hold one label/value row per direct child.
var DefaultProfileRoots = []browser.Locator{
	browser.ByCSS("div.css-78jar2"),
	browser.ByCSS(".company-info__list"),
}

var DefaultProfileSynonyms = map[record.Field][]string{
	record.Founded:       {"設立", "創業"},
	record.EmployeeCount: {"社員数", "従業員数"},
	record.AverageAge:    {"平均年齢"},
}

// DefaultSpecs are the strategy chains for green-japan.com detail pages. The
// manually filled columns have no spec. Values shown on the favorites card are
// read by the collector and only fill fields left empty here.
func DefaultSpecs() []FieldSpec {
	return []FieldSpec{
		{Field: record.Company, Strategies: []Strategy{
			Structural(browser.ByCSS(detailRoot + " > aside > div.MuiPaper-root.MuiPaper-outlined.MuiPaper-rounded.MuiCard-root.css-1sbkbfv > a > div.MuiCardContent-root.css-1qw96cp > h6")),
			Structural(browser.ByCSS("aside a h6")),
			LabelScan("企業名", "会社名"),
		}},
		{Field: record.Salary, Accept: containsYen, Strategies: []Strategy{
			LabeledStructural(browser.ByCSS(infoRoot+" > div:nth-child(4) > "+labelP), browser.ByCSS(infoRoot+" > div:nth-child(8) > "+valueP), "年収"),
			LabelScan("年収", "給与", "想定年収"),
		}},
		{Field: record.Location, Strategies: []Strategy{
			LabeledStructural(browser.ByCSS(infoRoot+" > div:nth-child(11) > "+labelP), browser.ByCSS(infoRoot+" > div:nth-child(11) > "+valueP), "勤務地"),
			LabelScan("勤務地"),
		}},
		{Field: record.WorkingHours, Strategies: []Strategy{
			LabelScan("勤務時間", "就業時間"),
		}},
		{Field: record.WorkStyle, Strategies: []Strategy{
			LabelScan("働き方", "リモートワーク"),
		}},
		{Field: record.AverageAge, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"平均年齢"}, Strip: []string{"平均年齢"}}),
			LabelScan("平均年齢"),
			Profile(record.AverageAge),
		}},
		{Field: record.DeemedOvertime, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"みなし残業"}, Strip: []string{"みなし残業"}}),
			LabelScan("みなし残業", "固定残業"),
		}},
		{Field: record.AverageOvertime, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"残業時間"}, Exclude: []string{"みなし"}, Strip: []string{"平均残業時間", "残業時間"}}),
			LabelScan("平均残業", "月平均残業"),
		}},
		{Field: record.AnnualHolidays, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"休日日数"}, Strip: []string{"年間休日日数", "休日日数"}}),
			LabelScan("年間休日", "休日日数"),
		}},
		{Field: record.RequiredExperience, Strategies: []Strategy{
			Box(browser.ByCSS(".job-offer-requirements__box"), browser.ByCSS(".job-offer-requirements__label"), browser.ByCSS(".job-offer-requirements__content"), "必須経験", "必要経験"),
			LabelScan("必須経験", "必要経験", "応募資格"),
		}},
		{Field: record.TechStack, Strategies: []Strategy{
			Tags(browser.ByCSS(".card-tag__item"), ", "),
			LabelScan("開発言語", "使用技術"),
		}},
		{Field: record.EmployeeCount, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"社員数"}, Strip: []string{"社員数"}}),
			LabelScan("社員数", "従業員数"),
			Profile(record.EmployeeCount),
		}},
		{Field: record.Founded, Strategies: []Strategy{
			ItemText(companyItems, Item{Labels: []string{"設立年", "創業"}}),
			LabelScan("設立"),
			Profile(record.Founded),
		}},
		{Field: record.PlannedHires, Strategies: []Strategy{
			LabelScan("採用予定人数", "募集人数"),
		}},
	}
}
