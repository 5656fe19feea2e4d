package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/studytracker/internal/report"
)

// Sheet names of an exported report.
const (
	SheetSummary = "Summary"
	SheetDays    = "Days"
	SheetCodes   = "Codes"
	SheetCards   = "Cards"
	SheetLevels  = "Levels"
)

// WriteWorkbook writes r as an XLSX workbook. The Days sheet can be read back
// with ImportRollups and DefaultImportConfig.
func WriteWorkbook(w io.Writer, r *report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), SheetSummary)
	for _, name := range []string{SheetDays, SheetCodes, SheetCards, SheetLevels} {
		f.NewSheet(name)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	sw := sheetWriter{f: f, header: header}

	sw.rows(SheetSummary, []any{"Field", "Value"}, [][]any{
		{"Deck", r.DeckName},
		{"Deck id", r.DeckID},
		{"From", r.From.String()},
		{"To", r.To.String()},
		{"Successful days", r.Summary.SuccessfulDays},
		{"Recorded days", r.Summary.TotalDays},
		{"Current level", r.Summary.CurrentLevel},
		{"Tasks completed", r.Summary.TasksCompleted},
		{"Study minutes", r.Summary.StudyMinutes},
	})

	days := make([][]any, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, []any{d.Date.String(), r.DeckID, d.Due, d.Studied, d.Minutes, d.Success})
	}
	sw.rows(SheetDays, []any{"Date", "Deck", "Due", "Studied", "Minutes", "Success"}, days)

	codes := make([][]any, 0, len(r.Codes))
	for _, c := range r.Codes {
		codes = append(codes, []any{c.Date.String(), c.CardID, c.Title, c.Code, c.Correctness, c.Difficulty, c.Page, c.Link})
	}
	sw.rows(SheetCodes, []any{"Date", "Card", "Title", "Code", "Correct %", "Difficulty", "Page", "Link"}, codes)

	cards := make([][]any, 0, len(r.Cards))
	for _, c := range r.Cards {
		cards = append(cards, []any{c.CardID, c.Title, c.Days, c.Reviews, c.Minutes})
	}
	sw.rows(SheetCards, []any{"Card", "Title", "Days", "Reviews", "Minutes"}, cards)

	levels := make([][]any, 0, len(r.Levels))
	for _, p := range r.Levels {
		levels = append(levels, []any{p.At.Format("2006-01-02 15:04:05"), string(p.Kind), p.OldLevel, p.Level})
	}
	sw.rows(SheetLevels, []any{"Time", "Change", "Old level", "New level"}, levels)

	if sw.err != nil {
		return sw.err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so sheets can be written back to back.
type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (sw *sheetWriter) rows(sheet string, header []any, rows [][]any) {
	if sw.err != nil {
		return
	}
	if err := sw.f.SetSheetRow(sheet, "A1", &header); err != nil {
		sw.err = fmt.Errorf("write %s header: %w", sheet, err)
		return
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		sw.err = err
		return
	}
	if err := sw.f.SetCellStyle(sheet, "A1", last, sw.header); err != nil {
		sw.err = fmt.Errorf("style %s header: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			sw.err = err
			return
		}
		if err := sw.f.SetSheetRow(sheet, cell, &row); err != nil {
			sw.err = fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
			return
		}
	}
}
