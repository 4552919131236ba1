// Package coerce converts raw export cells into domain values. Every function
// here is pure.
package coerce

import (
	"math"
	"strconv"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/common/models"
)

const integerEpsilon = 1e-9

// Spreadsheet exports spell "no value" in many ways.
var naTokens = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-nan": {}, "-NaN": {},
	"NULL": {}, "null": {}, "None": {}, "<NA>": {},
	"#N/A": {}, "#N/A N/A": {}, "#NA": {},
	"-1.#IND": {}, "-1.#QNAN": {}, "1.#IND": {}, "1.#QNAN": {},
}

var (
	trueTokens  = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "y": {}}
	falseTokens = map[string]struct{}{"0": {}, "false": {}, "no": {}, "n": {}}
)

// IsMissing reports whether a cell carries no value.
func IsMissing(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	_, ok := naTokens[s]
	return ok
}

// Numeric returns null for a missing cell, an integer when the parsed float is
// within 1e-9 of one, the float otherwise, and the trimmed text when the cell
// does not parse.
func Numeric(raw string) models.Value {
	if IsMissing(raw) {
		return models.Null()
	}
	s := strings.TrimSpace(raw)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return models.Text(s)
	}
	if r := math.Round(f); math.Abs(f-r) < integerEpsilon {
		if r == 0 {
			r = 0 // drop negative zero
		}
		return models.Number(r)
	}
	return models.Number(f)
}

// TriState maps yes/no words and numbers (thresholded at 0.5) onto a flag.
func TriState(raw string) models.TriState {
	if IsMissing(raw) {
		return models.Unknown
	}
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := trueTokens[s]; ok {
		return models.Yes
	}
	if _, ok := falseTokens[s]; ok {
		return models.No
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Unknown
	}
	if f >= 0.5 {
		return models.Yes
	}
	return models.No
}

// Offset parses a relative day offset. Missing, non-numeric and non-finite
// cells do not parse.
func Offset(raw string) (float64, bool) {
	if IsMissing(raw) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsNumeric reports whether a present cell parses as a number.
func IsNumeric(raw string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return err == nil
}
