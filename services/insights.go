package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/stats"
	"subject-eval-scraper/utils"
)

// Variables maps the course table's numeric columns to their accessors.
var Variables = map[string]func(models.CourseRecord) stats.Num{
	"Teacher Rating (Avg)":           func(r models.CourseRecord) stats.Num { return r.TeacherRatingAvg },
	"Teacher Helpfulness (Avg)":      func(r models.CourseRecord) stats.Num { return r.TeacherHelpfulnessAvg },
	"Number of Respondents":          func(r models.CourseRecord) stats.Num { return r.Respondents },
	"Response Rate":                  func(r models.CourseRecord) stats.Num { return r.ResponseRate },
	"Subject Rating (Avg)":           func(r models.CourseRecord) stats.Num { return r.SubjectRatingAvg },
	"Pace (Avg)":                     func(r models.CourseRecord) stats.Num { return r.PaceAvg },
	"Total Weekly Hours Spent (Avg)": func(r models.CourseRecord) stats.Num { return r.WeeklyHoursAvg },
	"Assignment Quality (Avg)":       func(r models.CourseRecord) stats.Num { return r.AssignmentQualityAvg },
	"Grading Fairness (Avg)":         func(r models.CourseRecord) stats.Num { return r.GradingFairnessAvg },
}

// VariableNames lists the reportable columns in alphabetical order.
func VariableNames() []string {
	names := make([]string, 0, len(Variables))
	for name := range Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter selects the records a report covers. Zero fields do not filter.
type Filter struct {
	Level          models.Level
	Terms          []models.Term
	MinYear        int
	MaxYear        int
	MinRespondents float64
}

// Match reports whether rec passes every configured condition. A record
// with an unknown respondent count fails any positive minimum.
func (f Filter) Match(rec models.CourseRecord) bool {
	if f.Level != "" && rec.Level != f.Level {
		return false
	}
	if len(f.Terms) > 0 {
		found := false
		for _, t := range f.Terms {
			if rec.Term == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinYear > 0 && rec.Year < f.MinYear {
		return false
	}
	if f.MaxYear > 0 && rec.Year > f.MaxYear {
		return false
	}
	if f.MinRespondents > 0 && (!rec.Respondents.Valid || rec.Respondents.V < f.MinRespondents) {
		return false
	}
	return true
}

// Summary is the respondent-weighted distribution of one variable over a
// group of records. Year is 0 for the all-years row.
type Summary struct {
	Year    int
	Records int
	Mean    stats.Num
	Std     stats.Num
	Median  stats.Num
}

// Report is a per-year breakdown of one variable.
type Report struct {
	Variable string
	Years    []Summary
	Overall  Summary
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &InsightService{logger: logger}
}

// Generate summarizes variable for every year present in the filtered
// records. Records whose value or respondent count is unknown carry no
// weight.
func (s *InsightService) Generate(records []models.CourseRecord, variable string, f Filter) (*Report, error) {
	get, ok := Variables[variable]
	if !ok {
		return nil, eris.Errorf("insights: unknown variable %q (choose from: %s)", variable, strings.Join(VariableNames(), ", "))
	}

	byYear := make(map[int][]models.CourseRecord)
	var kept []models.CourseRecord
	for _, rec := range records {
		if !f.Match(rec) {
			continue
		}
		byYear[rec.Year] = append(byYear[rec.Year], rec)
		kept = append(kept, rec)
	}
	s.logger.Debug("[insights] %d of %d records match the filter", len(kept), len(records))

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	report := &Report{Variable: variable, Overall: summarize(0, kept, get)}
	for _, y := range years {
		report.Years = append(report.Years, summarize(y, byYear[y], get))
	}
	return report, nil
}

func summarize(year int, recs []models.CourseRecord, get func(models.CourseRecord) stats.Num) Summary {
	values := make([]stats.Num, len(recs))
	weights := make([]float64, len(recs))
	for i, rec := range recs {
		values[i] = get(rec)
		weights[i] = rec.Respondents.Or(math.NaN())
	}
	return Summary{
		Year:    year,
		Records: len(recs),
		Mean:    stats.WeightedMean(values, weights),
		Std:     stats.WeightedStd(values, weights),
		Median:  stats.WeightedMedian(values, weights),
	}
}

// TopTeachers ranks instructors with a known rating and at least
// minRatings votes, best first. n <= 0 returns all of them.
func (s *InsightService) TopTeachers(teachers []models.TeacherAggregate, minRatings, n int) []models.TeacherAggregate {
	var ranked []models.TeacherAggregate
	for _, t := range teachers {
		if t.RatingAvg.Valid && t.NumRatings >= minRatings {
			ranked = append(ranked, t)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.RatingAvg.V != b.RatingAvg.V {
			return a.RatingAvg.V > b.RatingAvg.V
		}
		if a.NumRatings != b.NumRatings {
			return a.NumRatings > b.NumRatings
		}
		return a.Name < b.Name
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// RenderReport formats a report as a table.
func RenderReport(r *Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(r.Variable)
	tw.AppendHeader(table.Row{"Year", "Records", "Mean", "Std", "Median"})
	for _, y := range r.Years {
		tw.AppendRow(summaryRow(fmt.Sprint(y.Year), y))
	}
	tw.AppendFooter(summaryRow("All", r.Overall))
	tw.SetColumnConfigs(rightAligned(2, 5))
	return tw.Render()
}

func summaryRow(label string, s Summary) table.Row {
	return table.Row{label, s.Records, formatNum(s.Mean), formatNum(s.Std), formatNum(s.Median)}
}

// RenderTeachers formats ranked instructors as a table.
func RenderTeachers(teachers []models.TeacherAggregate) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Instructor", "Rating", "Std", "Helpfulness", "Ratings", "Classes"})
	for i, t := range teachers {
		tw.AppendRow(table.Row{
			i + 1, t.Name, formatNum(t.RatingAvg), formatNum(t.RatingStd), formatNum(t.HelpfulnessAvg),
			t.NumRatings, t.NumClasses,
		})
	}
	tw.SetColumnConfigs(append(rightAligned(1, 1), rightAligned(3, 7)...))
	return tw.Render()
}

func rightAligned(from, to int) []table.ColumnConfig {
	var cfgs []table.ColumnConfig
	for n := from; n <= to; n++ {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	return cfgs
}

func formatNum(n stats.Num) string {
	if !n.Valid {
		return "-"
	}
	return fmt.Sprintf("%.2f", n.V)
}
