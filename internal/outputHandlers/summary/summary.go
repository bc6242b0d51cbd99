// Package summary prints a short table of a run to the terminal.
package summary

import (
	"context"
	"io"
	"os"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/AlfredBerg/green-scraper/internal/record"
)

var columns = []record.Field{record.Company, record.Salary, record.Location, record.ListingURL}

type Output struct {
	W io.Writer
	// MaxWidth truncates long cells, 0 disables truncation.
	MaxWidth int
}

func New() *Output {
	return &Output{W: os.Stdout, MaxWidth: 40}
}

func (o *Output) Handle(ctx context.Context, runID string, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(o.W)
	t.SetTitle("run " + runID)

	// 行 is the output row. Listings that failed extraction have no row, so
	// it can differ from the listing position; the URL identifies the listing.
	header := table.Row{"行"}
	for _, f := range columns {
		header = append(header, f.String())
	}
	t.AppendHeader(header)

	for i, r := range records {
		row := table.Row{i + 1}
		for _, f := range columns {
			v := r.Get(f)
			if f != record.ListingURL {
				v = o.truncate(v)
			}
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "合計", len(records)})
	t.Render()
	return nil
}

func (o *Output) truncate(s string) string {
	if o.MaxWidth <= 0 || utf8.RuneCountInString(s) <= o.MaxWidth {
		return s
	}
	r := []rune(s)
	return string(r[:o.MaxWidth-1]) + "…"
}
