package excel

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/studytracker/internal/database/databasetest"
	"github.com/example/studytracker/internal/report"
	"github.com/example/studytracker/pkg/models"
)

func day(s string) models.Date { return models.MustParseDate(s) }

func TestImportRollupsCSV(t *testing.T) {
	ctx := context.Background()
	store := databasetest.NewStore(t)
	databasetest.Rollups(t, store, models.DailyRollup{Date: day("2024-03-02"), DeckID: 7, CardsDue: 10, CardsStudied: 9, StudyMinutes: 30})

	path := filepath.Join(t.TempDir(), "history.csv")
	content := "date,deck,due,studied,minutes\n" +
		"2024-03-01,7,5,5,12\n" +
		"02.03.2024,7,8,8,20\n" +
		"not a date,7,1,1,1\n" +
		",,,,\n" +
		"2024-03-03,,3,-1,0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.DefaultDeck = 7
	res, err := ImportRollups(ctx, store, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalProcessed)
	assert.Equal(t, 2, res.Merged)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "Row 4")

	first, err := store.Rollups.Get(ctx, day("2024-03-01"), 7)
	require.NoError(t, err)
	assert.Equal(t, 5, first.CardsStudied)

	// the stored day is only raised
	second, err := store.Rollups.Get(ctx, day("2024-03-02"), 7)
	require.NoError(t, err)
	assert.Equal(t, models.DailyRollup{Date: day("2024-03-02"), DeckID: 7, CardsDue: 10, CardsStudied: 9, StudyMinutes: 30}, *second)
}

func TestImportRollupsMissingFile(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "absent.xlsx")
	_, err := ImportRollups(context.Background(), databasetest.NewStore(t), cfg)
	assert.Error(t, err)
}

func sampleReport() *report.Report {
	return &report.Report{
		DeckID:   3,
		DeckName: "Anatomy",
		From:     day("2024-03-01"),
		To:       day("2024-03-31"),
		Summary:  report.Summary{SuccessfulDays: 1, TotalDays: 2, CurrentLevel: 2, TasksCompleted: 1, StudyMinutes: 25},
		Days: []report.DayRow{
			{Date: day("2024-03-02"), Due: 6, Studied: 2, Minutes: 5},
			{Date: day("2024-03-01"), Due: 4, Studied: 4, Minutes: 20, Success: true},
		},
		Codes: []report.CodeRow{{Date: day("2024-03-01"), CardID: "c1", Title: "Femur", Code: "9505", Correctness: 95, Difficulty: 5}},
		Cards: []report.CardRow{{CardID: "c1", Title: "Femur", Days: 1, Reviews: 3, Minutes: 2}},
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetDays, SheetCodes, SheetCards, SheetLevels}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deck", "Anatomy"}, summary[1])

	days, err := f.GetRows(SheetDays)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, []string{"Date", "Deck", "Due", "Studied", "Minutes", "Success"}, days[0])
	assert.Equal(t, "2024-03-02", days[1][0])
	assert.Equal(t, "6", days[1][2])

	codes, err := f.GetRows(SheetCodes)
	require.NoError(t, err)
	assert.Equal(t, "Femur", codes[1][2])
}

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleReport()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	store := databasetest.NewStore(t)
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.SheetName = SheetDays
	res, err := ImportRollups(ctx, store, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merged)
	assert.Empty(t, res.Errors)

	r, err := store.Rollups.Get(ctx, day("2024-03-01"), 3)
	require.NoError(t, err)
	assert.Equal(t, 20, r.StudyMinutes)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 4, columnToIndex("e"))
	assert.Equal(t, 26, columnToIndex("AA"))
	assert.Equal(t, -1, columnToIndex("1"))
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "12", want: 12},
		{in: "12.0", want: 12},
		{in: "1000000", want: 1000000},
		{in: "2.5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1e30", wantErr: true},
		{in: "NaN", wantErr: true},
		{in: "Inf", wantErr: true},
		{in: "ten", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCount("studied", tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
