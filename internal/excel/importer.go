// Package excel moves study data in and out of spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	DateColumn    string // Column with the day
	DeckColumn    string // Column with the deck id; empty imports into DefaultDeck
	DueColumn     string // Column with the due count
	StudiedColumn string // Column with the studied count
	MinutesColumn string // Column with the study minutes
	DefaultDeck   int64  // Deck used when the deck column is empty or missing
	SheetName     string // Name of the sheet to import; empty uses the first sheet
	StartRow      int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration. It matches
// the Days sheet written by WriteWorkbook.
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		DateColumn:    "A",
		DeckColumn:    "B",
		DueColumn:     "C",
		StudiedColumn: "D",
		MinutesColumn: "E",
		SheetName:     "",
		StartRow:      2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Merged         int
	Skipped        int
	Errors         []string
}

// ImportRollups merges daily rollups from an Excel or CSV file into the
// store. Existing days only ever go up. Bad rows are reported in the result
// and do not stop the import.
func ImportRollups(ctx context.Context, store *database.Store, config ImportConfig) (*ImportResult, error) {
	if config.StartRow < 1 {
		config.StartRow = 1
	}
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if blank(row) {
			continue
		}
		result.TotalProcessed++

		rollup, err := parseRow(row, config)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		if err := store.Rollups.Merge(ctx, rollup); err != nil {
			if ctx.Err() != nil || errors.Is(err, models.ErrStorage) {
				return result, fmt.Errorf("row %d: %w", i+1, err)
			}
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}
		result.Merged++
	}
	return result, nil
}

// readRows returns every row of the file, choosing the reader by extension.
func readRows(config ImportConfig) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return readCSV(config.FilePath)
	}
	return readExcel(config)
}

func readExcel(config ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("get rows of %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
}

func parseRow(row []string, config ImportConfig) (models.DailyRollup, error) {
	var r models.DailyRollup

	date, err := parseDate(cell(row, config.DateColumn))
	if err != nil {
		return r, err
	}
	r.Date = date

	r.DeckID = config.DefaultDeck
	if v := cell(row, config.DeckColumn); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return r, models.NewValidationError("deck", fmt.Sprintf("invalid deck id %q", v))
		}
		r.DeckID = id
	}

	if r.CardsDue, err = parseCount("due", cell(row, config.DueColumn)); err != nil {
		return r, err
	}
	if r.CardsStudied, err = parseCount("studied", cell(row, config.StudiedColumn)); err != nil {
		return r, err
	}
	if r.StudyMinutes, err = parseCount("minutes", cell(row, config.MinutesColumn)); err != nil {
		return r, err
	}
	return r, nil
}

// cell returns the trimmed value of column in row, or "" when out of range.
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{models.DateLayout, "02.01.2006", "2006/01/02", "01-02-06", "1/2/06", "1/2/2006"}

func parseDate(s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, models.NewValidationError("date", "date cannot be empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), nil
		}
	}
	// an unformatted cell holds the spreadsheet serial number
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return models.DateOf(t), nil
		}
	}
	return models.Date{}, models.NewValidationError("date", fmt.Sprintf("unrecognised date %q", s))
}

// maxCount bounds a single day's count.
const maxCount = 1_000_000

// parseCount parses a whole count in [0, maxCount]; an empty cell is zero.
// Spreadsheet cells may hold the count as a float such as "12.0".
func parseCount(field, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, models.NewValidationError(field, fmt.Sprintf("not a number: %q", s))
	}
	if f != math.Trunc(f) {
		return 0, models.NewValidationError(field, fmt.Sprintf("not a whole number: %q", s))
	}
	if f < 0 {
		return 0, models.NewValidationError(field, fmt.Sprintf("negative value %q", s))
	}
	if f > maxCount {
		return 0, models.NewValidationError(field, fmt.Sprintf("value %q exceeds %d", s, maxCount))
	}
	return int(f), nil
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
