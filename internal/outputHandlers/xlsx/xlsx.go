// Package xlsx writes runs to a spreadsheet laid out for manual follow-up:
// one sheet, header in row 2, data from row 3, starting at column B.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/AlfredBerg/green-scraper/internal/record"
)

const SheetName = "求人情報"

type Output struct {
	// Dir is the output directory. Empty means output_<YYYYMMDD> in the
	// working directory.
	Dir string

	// Path is the file written by the last Handle.
	Path string

	log *zap.Logger
	now func() time.Time
}

func New(dir string, log *zap.Logger) *Output {
	return &Output{Dir: dir, log: log.Named("xlsx"), now: time.Now}
}

func (o *Output) Handle(ctx context.Context, runID string, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := o.now()
	dir := o.Dir
	if dir == "" {
		dir = "output_" + now.Format("20060102")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed creating output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("green_jobs_%s.xlsx", now.Format("20060102_150405")))

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, "B2", toRow(record.Header())); err != nil {
		return err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(2, i+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, toRow(r.Row())); err != nil {
			return fmt.Errorf("failed writing row %d: %w", i+1, err)
		}
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: "green-scraper " + runID, Creator: "green-scraper"}); err != nil {
		o.log.Debug("failed setting document properties", zap.Error(err))
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed saving %s: %w", path, err)
	}
	o.Path = path
	o.log.Info("wrote spreadsheet", zap.String("path", path), zap.Int("rows", len(records)))
	return nil
}

func toRow(values []string) *[]interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &row
}
