// Package validation keeps the ledger of dated validation codes that authors
// write into a card's annotation field.
package validation

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/example/studytracker/pkg/models"
)

// annotationPattern matches "2024-01-15 9505", "2024.01.15: 9505" and the
// like, optionally followed by a page reference ("p. 12", "page 12", "S. 12").
var annotationPattern = regexp.MustCompile(
	`(\d{4})[-.](\d{2})[-.](\d{2})(?:\s*:\s*|\s+)(\d+)\b(?:\s*[,;]?\s*(?i:p|page|s|seite)\.?\s*(\d+))?`)

// Annotation is one parsed date/code pair.
type Annotation struct {
	Date models.Date
	Code models.ParsedCode
	Page int
}

// ExtractAnnotations parses every annotation in text. Date separators are
// normalised, and a repeated (date, code) pair is kept once. Malformed matches
// are returned as errors alongside the valid ones.
func ExtractAnnotations(text string) ([]Annotation, []error) {
	var (
		out  []Annotation
		errs []error
		seen = make(map[string]bool)
	)
	for _, m := range annotationPattern.FindAllStringSubmatch(text, -1) {
		date, err := models.ParseDate(m[1] + "-" + m[2] + "-" + m[3])
		if err != nil {
			errs = append(errs, models.NewValidationError("date", fmt.Sprintf("invalid date in %q", m[0])))
			continue
		}
		code, err := models.ParseCode(m[4])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		key := date.String() + "|" + code.Raw
		if seen[key] {
			continue
		}
		seen[key] = true

		a := Annotation{Date: date, Code: code}
		if m[5] != "" {
			a.Page, _ = strconv.Atoi(m[5])
		}
		out = append(out, a)
	}
	return out, errs
}
