package models

import (
	"fmt"
	"strings"

	"subject-eval-scraper/stats"
)

// Term is the academic term a survey window belongs to.
type Term string

const (
	TermFall   Term = "Fall"
	TermSpring Term = "Spring"
	TermIAP    Term = "IAP"
	TermSummer Term = "Summer"
)

// ParseTerm maps a survey-window word onto a Term. January sessions are
// reported as IAP on some pages.
func ParseTerm(s string) (Term, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fall":
		return TermFall, true
	case "spring":
		return TermSpring, true
	case "iap", "january":
		return TermIAP, true
	case "summer":
		return TermSummer, true
	}
	return "", false
}

// Level is the catalog level of a subject, written as "U" or "G".
type Level string

const (
	LevelUndergraduate Level = "U"
	LevelGraduate      Level = "G"
	LevelUnknown       Level = "Unknown"
)

// UnknownDescription is stored when the catalog cannot describe a subject.
const UnknownDescription = "unknown"

// Key identifies one offering of one course. It is unique in the course table.
type Key struct {
	CourseNumber string
	Term         Term
	Year         int
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s %d", k.CourseNumber, k.Term, k.Year)
}

// Names is an ordered instructor list, stored as a "; " separated cell.
type Names []string

func (n Names) MarshalText() ([]byte, error) {
	return []byte(strings.Join(n, "; ")), nil
}

func (n *Names) UnmarshalText(b []byte) error {
	*n = nil
	for _, part := range strings.Split(string(b), ";") {
		if name := strings.TrimSpace(part); name != "" {
			*n = append(*n, name)
		}
	}
	return nil
}

// CourseRecord is one evaluation survey result for one offering of one
// course. The csv tags are the persisted column names.
type CourseRecord struct {
	Year         int    `csv:"Year"`
	Term         Term   `csv:"Term"`
	CourseNumber string `csv:"Course Number"`
	SubjectName  string `csv:"Subject Name"`
	Description  string `csv:"Description"`
	Level        Level  `csv:"Level (U or G)"`
	Teachers     Names  `csv:"Teachers"`

	TeacherRatingAvg      stats.Num `csv:"Teacher Rating (Avg)"`
	TeacherRatingStd      stats.Num `csv:"Teacher Rating (STD)"`
	TeacherHelpfulnessAvg stats.Num `csv:"Teacher Helpfulness (Avg)"`
	TeacherHelpfulnessStd stats.Num `csv:"Teacher Helpfulness (STD)"`

	Respondents  stats.Num `csv:"Number of Respondents"`
	ResponseRate stats.Num `csv:"Response Rate"`

	SubjectRatingAvg     stats.Num `csv:"Subject Rating (Avg)"`
	SubjectRatingStd     stats.Num `csv:"Subject Rating (STD)"`
	PaceAvg              stats.Num `csv:"Pace (Avg)"`
	PaceStd              stats.Num `csv:"Pace (STD)"`
	WeeklyHoursAvg       stats.Num `csv:"Total Weekly Hours Spent (Avg)"`
	WeeklyHoursStd       stats.Num `csv:"Total Weekly Hours Spent (STD)"`
	AssignmentQualityAvg stats.Num `csv:"Assignment Quality (Avg)"`
	AssignmentQualityStd stats.Num `csv:"Assignment Quality (STD)"`
	GradingFairnessAvg   stats.Num `csv:"Grading Fairness (Avg)"`
	GradingFairnessStd   stats.Num `csv:"Grading Fairness (STD)"`

	Link string `csv:"Webpage Link"`
}

// Key returns the identity key of the record.
func (r CourseRecord) Key() Key {
	return Key{CourseNumber: r.CourseNumber, Term: r.Term, Year: r.Year}
}

// Listing is one course number printed in a survey heading. Co-listed
// subjects share a single survey page.
type Listing struct {
	Number string
	Name   string
}

// TeacherRating is one instructor row of a survey page.
type TeacherRating struct {
	Name        string
	Rating      stats.Num
	Helpfulness stats.Num
	Votes       int
}
