// Package notetext reformats de-identified clinical note bodies for display.
package notetext

import (
	"regexp"
	"strings"
)

// Section headings that start a new paragraph, matched case-insensitively.
var sectionHeadings = []string{
	`Chief Complaint(?:\(s\))?`,
	`HPI`,
	`Review of Systems`,
	`Physical Exam`,
	`Assessment and Plan`,
	`Surgical History`,
	`Family History`,
	`Social History`,
	`Medications`,
	`Allergies`,
	`Vital Signs`,
	`Orders Generated During This Visit`,
}

var (
	whitespaceRe  = regexp.MustCompile(`[\s\v\p{Z}\x{0085}]+`)
	parentheticRe = regexp.MustCompile(`\([^)]*\)`)
	doubleCommaRe = regexp.MustCompile(`\s*,\s*,\s*`)
	sectionRe     = regexp.MustCompile(`(?i)(` + strings.Join(sectionHeadings, "|") + `)`)
	bulletRe      = regexp.MustCompile(`\s*•\s*`)
	dashItemRe    = regexp.MustCompile(`\s+-\s+`)
	sentenceEndRe = regexp.MustCompile(`\.\s+([A-Z<])`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// Prettify returns a display version of a raw note. It is meant to run once
// on raw text; feeding its output back in may move sentence breaks again.
func Prettify(text string) string {
	t := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	t = parentheticRe.ReplaceAllString(t, "")

	// artifacts left behind by the removed spans
	t = strings.ReplaceAll(t, ".,", ". ")
	t = strings.ReplaceAll(t, ",.", ". ")
	t = strings.ReplaceAll(t, "..", ". ")
	t = doubleCommaRe.ReplaceAllString(t, ", ")

	t = sectionRe.ReplaceAllString(t, "\n\n${1}\n")
	t = bulletRe.ReplaceAllString(t, "\n• ")
	t = dashItemRe.ReplaceAllString(t, "\n- ")
	t = sentenceEndRe.ReplaceAllString(t, ".\n${1}")
	t = blankLinesRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// FromAny prettifies string input and yields "" for anything else.
func FromAny(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Prettify(s)
}
