package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"subject-eval-scraper/models"
	"subject-eval-scraper/stats"
)

var (
	// numberRegexp captures the first decimal number in a cell
	numberRegexp = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	// votesRegexp captures the trailing "(N)" vote count of an instructor cell
	votesRegexp = regexp.MustCompile(`\(\s*(\d+)\s*\)\s*$`)
	// percentRegexp captures "37.5%" style response rates
	percentRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	// windowRegexp captures the term and year of a "Survey Window:" heading
	windowRegexp = regexp.MustCompile(`(?i)survey\s+window\s*:\s*([A-Za-z]+)\s+(\d{4})`)
	// termYearRegexp finds a "<Term> <Year>" pair anywhere in free text
	termYearRegexp = regexp.MustCompile(`(?i)\b(fall|spring|iap|january|summer)\s+(\d{4})\b`)
)

// NormaliseText folds compatibility characters (non-breaking spaces and
// similar encoding artifacts) and collapses internal whitespace.
func NormaliseText(s string) string {
	s = norm.NFKC.String(s)
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// ReorderName turns "Last, First" into "First Last". Names without a comma
// are returned normalised but otherwise untouched.
func ReorderName(raw string) string {
	name := NormaliseText(raw)
	parts := strings.Split(name, ",")
	if len(parts) < 2 {
		return name
	}
	last := strings.TrimSpace(parts[0])
	first := strings.TrimSpace(parts[1])
	if first == "" {
		return last
	}
	return first + " " + last
}

// LeadingNumber parses the first number found in raw.
func LeadingNumber(raw string) stats.Num {
	match := numberRegexp.FindString(NormaliseText(raw))
	if match == "" {
		return stats.Unknown
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return stats.Unknown
	}
	return stats.Known(v)
}

// ParseVotes extracts the vote count from a cell such as "5.8 (18)".
func ParseVotes(raw string) (int, bool) {
	match := votesRegexp.FindStringSubmatch(NormaliseText(raw))
	if len(match) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseLabelledNumber reads the first number after the label's colon, as in
// "Number of respondents: 45 of 120".
func ParseLabelledNumber(raw string) stats.Num {
	text := NormaliseText(raw)
	idx := strings.Index(text, ":")
	if idx < 0 {
		return stats.Unknown
	}
	return LeadingNumber(text[idx+1:])
}

// ParseRate converts "Response rate: 37.5%" into the fraction 0.375.
func ParseRate(raw string) stats.Num {
	match := percentRegexp.FindStringSubmatch(NormaliseText(raw))
	if len(match) < 2 {
		return stats.Unknown
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil || v < 0 || v > 100 {
		return stats.Unknown
	}
	return stats.Known(v / 100)
}

// ParseSurveyWindow reads the term and year out of a survey heading such as
// "Survey Window: Fall 2022 | Closed".
func ParseSurveyWindow(raw string) (models.Term, int, bool) {
	match := windowRegexp.FindStringSubmatch(NormaliseText(raw))
	if len(match) < 3 {
		return "", 0, false
	}
	return termYear(match[1], match[2])
}

// FindTermYear looks for the first "<Term> <Year>" pair in free text.
func FindTermYear(raw string) (models.Term, int, bool) {
	match := termYearRegexp.FindStringSubmatch(NormaliseText(raw))
	if len(match) < 3 {
		return "", 0, false
	}
	return termYear(match[1], match[2])
}

func termYear(rawTerm, rawYear string) (models.Term, int, bool) {
	term, ok := models.ParseTerm(rawTerm)
	if !ok {
		return "", 0, false
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return "", 0, false
	}
	return term, year, true
}

// SplitListing splits a heading entry like "2.001 Mechanics and Materials I"
// into its course number and subject name.
func SplitListing(raw string) (models.Listing, bool) {
	text := NormaliseText(raw)
	if text == "" {
		return models.Listing{}, false
	}
	number, name, _ := strings.Cut(text, " ")
	return models.Listing{Number: number, Name: strings.TrimSpace(name)}, true
}

// SubjectOf returns the department part of a course number: "2" for "2.001".
func SubjectOf(number string) string {
	dept, _, _ := strings.Cut(strings.TrimSpace(number), ".")
	return dept
}

// ContainsFold reports whether text contains sub, ignoring case and
// whitespace differences.
func ContainsFold(text, sub string) bool {
	sub = strings.ToLower(NormaliseText(sub))
	if sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(NormaliseText(text)), sub)
}
