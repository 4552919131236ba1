// Package medication turns rows of a medication export into medication name
// lists. Exports either list names in free-text columns or carry one 0/1
// column per medication.
package medication

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/synaptica-ai/timeline/pkg/coerce"
	"github.com/synaptica-ai/timeline/pkg/common/models"
	"github.com/synaptica-ai/timeline/pkg/schema"
)

type Role uint8

const (
	Ignored Role = iota
	FreeText
	BinaryFlag
)

func (r Role) String() string {
	switch r {
	case FreeText:
		return "free_text"
	case BinaryFlag:
		return "binary_flag"
	default:
		return "ignored"
	}
}

type Column struct {
	Index  int
	Header string
	Role   Role
}

var (
	freeTextTokens = []string{"med", "drug", "rx", "name"}
	nonMedTokens   = []string{"date", "age", "sex", "bmi", "count", "score", "risk", "flag"}

	// Normalized headers that never name a medication.
	excludedHeaders = map[string]struct{}{
		"patienthashmrn": {}, "datedif": {}, "encdatediffno": {}, "datediffno": {}, "datediff": {},
		"age": {}, "sex": {}, "bmi": {}, "atssevere": {},
		"note": {}, "notes": {}, "provider": {}, "encounter": {}, "visit": {}, "mrn": {}, "id": {},
	}

	splitRe      = regexp.MustCompile(`[;,|/]+|\s{2,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

type Extractor struct {
	columns []Column
}

// Classify inspects every column of a source once. Headers listed in skip
// (the id and date columns actually in use) are always ignored.
func Classify(headers []string, rows [][]string, skip ...string) *Extractor {
	skipped := make(map[string]struct{}, len(skip))
	for _, h := range skip {
		skipped[h] = struct{}{}
	}

	e := &Extractor{columns: make([]Column, 0, len(headers))}
	for i, h := range headers {
		col := Column{Index: i, Header: h}
		if _, ok := skipped[h]; !ok {
			col.Role = classify(h, columnValues(rows, i))
		}
		e.columns = append(e.columns, col)
	}
	return e
}

func classify(header string, values []string) Role {
	if isBinaryColumn(header, values) {
		return BinaryFlag
	}
	if isFreeTextColumn(header, values) {
		return FreeText
	}
	return Ignored
}

func isFreeTextColumn(header string, values []string) bool {
	if !containsAny(schema.Normalize(header), freeTextTokens) {
		return false
	}
	for _, v := range values {
		if !coerce.IsNumeric(v) {
			return true
		}
	}
	return false
}

func isBinaryColumn(header string, values []string) bool {
	if _, excluded := excludedHeaders[schema.Normalize(header)]; excluded {
		return false
	}
	if containsAny(strings.ToLower(header), nonMedTokens) {
		return false
	}
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if !isBinaryValue(v) {
			return false
		}
	}
	return true
}

func isBinaryValue(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "true" || s == "false" {
		return true
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && (f == 0 || f == 1)
}

// Columns exposes the role assigned to every header.
func (e *Extractor) Columns() []Column {
	out := make([]Column, len(e.columns))
	copy(out, e.columns)
	return out
}

func (e *Extractor) Role(header string) Role {
	for _, c := range e.columns {
		if c.Header == header {
			return c.Role
		}
	}
	return Ignored
}

// RowMedications lists the medications named by one row: every free-text
// candidate first, then every set flag, each in column order. The result is
// de-duplicated case-insensitively keeping first-seen casing and order.
func (e *Extractor) RowMedications(row []string) []string {
	var candidates []string
	for _, c := range e.columns {
		if c.Role != FreeText || c.Index >= len(row) || coerce.IsMissing(row[c.Index]) {
			continue
		}
		for _, part := range splitRe.Split(strings.TrimSpace(row[c.Index]), -1) {
			if p := strings.TrimSpace(part); p != "" {
				candidates = append(candidates, p)
			}
		}
	}
	for _, c := range e.columns {
		if c.Role != BinaryFlag || c.Index >= len(row) {
			continue
		}
		if coerce.TriState(row[c.Index]) == models.Yes {
			candidates = append(candidates, strings.TrimSpace(c.Header))
		}
	}
	return dedupe(candidates)
}

func dedupe(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, m := range candidates {
		mm := strings.TrimSpace(whitespaceRe.ReplaceAllString(m, " "))
		if mm == "" {
			continue
		}
		key := strings.ToLower(mm)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, mm)
	}
	return out
}

func columnValues(rows [][]string, idx int) []string {
	var values []string
	for _, row := range rows {
		if idx < len(row) && !coerce.IsMissing(row[idx]) {
			values = append(values, row[idx])
		}
	}
	return values
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
