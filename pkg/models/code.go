package models

import (
	"fmt"
	"strconv"
)

// Code component bounds.
const (
	MaxCorrectness = 100
	MaxDifficulty  = 10
)

// ParsedCode is the decoded form of a four-digit validation code: the first two
// digits are a correctness percentage, the last two a difficulty rating.
type ParsedCode struct {
	Raw         string
	Correctness int
	Difficulty  int
	// Clamped is set when a component was outside its range and was clamped.
	Clamped bool
}

// ParseCode decodes a validation code. Codes that are not exactly four ASCII
// digits are rejected. Components outside their range are clamped and the
// result is marked as such.
func ParseCode(code string) (ParsedCode, error) {
	if len(code) != 4 {
		return ParsedCode{}, NewValidationError("code", fmt.Sprintf("code %q must have 4 digits", code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ParsedCode{}, NewValidationError("code", fmt.Sprintf("code %q must be numeric", code))
		}
	}

	correctness, _ := strconv.Atoi(code[:2])
	difficulty, _ := strconv.Atoi(code[2:])
	p := ParsedCode{
		Raw:         code,
		Correctness: min(correctness, MaxCorrectness),
		Difficulty:  min(difficulty, MaxDifficulty),
	}
	p.Clamped = p.Correctness != correctness || p.Difficulty != difficulty
	return p, nil
}
