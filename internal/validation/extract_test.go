package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studytracker/pkg/models"
)

func TestExtractAnnotations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		dates []string
		codes []string
		pages []int
	}{
		{name: "dash separated", text: "2024-01-15 9505", dates: []string{"2024-01-15"}, codes: []string{"9505"}, pages: []int{0}},
		{name: "dotted with colon", text: "2024.01.15: 0710", dates: []string{"2024-01-15"}, codes: []string{"0710"}, pages: []int{0}},
		{name: "page reference", text: "2024-02-01 8007 p. 12", dates: []string{"2024-02-01"}, codes: []string{"8007"}, pages: []int{12}},
		{name: "page word", text: "2024-02-01 8007, page 3", dates: []string{"2024-02-01"}, codes: []string{"8007"}, pages: []int{3}},
		{
			name:  "several in markup",
			text:  "<div>2024-01-15 9505</div><div>2024-01-16 7003</div>",
			dates: []string{"2024-01-15", "2024-01-16"},
			codes: []string{"9505", "7003"},
			pages: []int{0, 0},
		},
		{name: "repeated pair kept once", text: "2024-01-15 9505\n2024.01.15 9505", dates: []string{"2024-01-15"}, codes: []string{"9505"}, pages: []int{0}},
		{name: "no annotation", text: "just a note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, errs := ExtractAnnotations(tt.text)
			require.Empty(t, errs)
			require.Len(t, got, len(tt.codes))
			for i, a := range got {
				assert.Equal(t, tt.dates[i], a.Date.String())
				assert.Equal(t, tt.codes[i], a.Code.Raw)
				assert.Equal(t, tt.pages[i], a.Page)
			}
		})
	}
}

func TestExtractAnnotationsRejects(t *testing.T) {
	t.Parallel()

	got, errs := ExtractAnnotations("2024-13-40 9505\n2024-01-15 950\n2024-01-16 9999")
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, models.ErrValidation)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "9999", got[0].Code.Raw)
	assert.Equal(t, 99, got[0].Code.Correctness)
	assert.Equal(t, 10, got[0].Code.Difficulty)
	assert.True(t, got[0].Code.Clamped)
}

func TestShortTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "What is ATP?", shortTitle("<b>What</b> is&nbsp;<i>ATP</i>?"))
	assert.Equal(t, "line one line two", shortTitle("line one<br>line two"))
	assert.Equal(t, "visible", shortTitle("<style>.x{}</style>visible<script>x()</script>"))
	assert.Equal(t, "", shortTitle("<img src=\"a.png\">"))

	long := shortTitle("<p>abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij</p>")
	assert.LessOrEqual(t, len([]rune(long)), maxTitleRunes)
	assert.Contains(t, long, "...")
}
