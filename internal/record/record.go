package record

import (
	"encoding/json"
)

// Field is one column of the output sheet. The declaration order is the column order.
type Field int

const (
	Company Field = iota
	Salary
	Location
	WorkingHours
	WorkStyle
	AverageAge
	DeemedOvertime
	AverageOvertime
	AnnualHolidays
	RequiredExperience
	TechStack
	ListingURL
	EmployeeCount
	Founded
	PlannedHires

	// Filled in by hand after export.
	Preference
	Applied
	Outcome
	WebsiteQuality
	ReviewScore
	Lighthouse
	WorkStyleNotes

	fieldCount
)

var fields = [fieldCount]struct {
	column string
	key    string
}{
	Company:            {"企業名", "company"},
	Salary:             {"給与", "salary"},
	Location:           {"勤務地", "location"},
	WorkingHours:       {"時間", "working_hours"},
	WorkStyle:          {"働き方", "work_style"},
	AverageAge:         {"平均年齢", "average_age"},
	DeemedOvertime:     {"みなし残業", "deemed_overtime"},
	AverageOvertime:    {"平均残業", "average_overtime"},
	AnnualHolidays:     {"休日日数", "annual_holidays"},
	RequiredExperience: {"実務経験", "required_experience"},
	TechStack:          {"利用言語", "tech_stack"},
	ListingURL:         {"掲載ページ", "listing_url"},
	EmployeeCount:      {"社員数", "employee_count"},
	Founded:            {"設立年数", "founded"},
	PlannedHires:       {"採用予定", "planned_hires"},
	Preference:         {"希望度", "preference"},
	Applied:            {"応募", "applied"},
	Outcome:            {"結果", "outcome"},
	WebsiteQuality:     {"HPの作りこみ", "website_quality"},
	ReviewScore:        {"転職会議の点数", "review_score"},
	Lighthouse:         {"ライトハウス", "lighthouse"},
	WorkStyleNotes:     {"▼働き方特徴", "work_style_notes"},
}

// Fields returns every field in column order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// String returns the column header used in exported sheets.
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fields[f].column
}

// Key returns a stable ASCII identifier, used for JSON and database storage.
func (f Field) Key() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fields[f].key
}

// Record is one job listing. The zero value has every field set to "".
type Record [fieldCount]string

func (r Record) Get(f Field) string {
	if f < 0 || f >= fieldCount {
		return ""
	}
	return r[f]
}

func (r *Record) Set(f Field, v string) {
	if f < 0 || f >= fieldCount {
		return
	}
	r[f] = v
}

// IsEmpty reports whether no field carries a value.
func (r Record) IsEmpty() bool {
	for _, v := range r {
		if v != "" {
			return false
		}
	}
	return true
}

// Row returns the values in column order.
func (r Record) Row() []string {
	row := make([]string, fieldCount)
	copy(row, r[:])
	return row
}

// Header returns the column names in column order.
func Header() []string {
	h := make([]string, fieldCount)
	for i := range h {
		h[i] = fields[i].column
	}
	return h
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, fieldCount)
	for i, v := range r {
		m[fields[i].key] = v
	}
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Record{}
	for i := range fields {
		r[i] = m[fields[i].key]
	}
	return nil
}
