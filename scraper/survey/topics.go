package survey

import (
	"github.com/PuerkitoBio/goquery"

	"subject-eval-scraper/services"
	"subject-eval-scraper/stats"
)

// Label sets tolerate the wording changes the questionnaire went through.
var (
	paceLabels       = []string{"pace of", "the pace", "subject pace", "pace (", "pace:", "pace was", "'s pace"}
	hoursLabels      = []string{"hrs", "hours"}
	assignmentLabels = []string{"assignments contributed to my", "problem sets helped me"}
	gradingLabels    = []string{"graded fairly", "grading thus far has been fair"}
	subjectLabels    = []string{"overall rating of the subject"}

	inClassLabels  = []string{"in class", "in the classroom"}
	outClassLabels = []string{"outside of the classroom", "outside of class"}
	homeworkLabels = []string{"on homework"}
	labLabels      = []string{"in lab"}
	perWeekLabels  = []string{"spend per week on this subject"}
)

func matchesAny(text string, labels []string) bool {
	for _, l := range labels {
		if services.ContainsFold(text, l) {
			return true
		}
	}
	return false
}

// topicTable returns the first question table whose text mentions one of
// the labels.
func topicTable(doc *goquery.Document, labels []string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table.indivQuestions").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if matchesAny(t.Text(), labels) {
			found = t
			return false
		}
		return true
	})
	return found
}

// topicRow returns the first row of table whose text mentions one of the
// labels.
func topicRow(table *goquery.Selection, labels []string) *goquery.Selection {
	if table == nil {
		return nil
	}
	var found *goquery.Selection
	table.Find("tr").EachWithBreak(func(_ int, r *goquery.Selection) bool {
		if matchesAny(r.Text(), labels) {
			found = r
			return false
		}
		return true
	})
	return found
}

// rowDist reads the average from the row's td.avg cell and the standard
// deviation from its last cell.
func rowDist(row *goquery.Selection) stats.Dist {
	if row == nil {
		return stats.Dist{Mean: stats.Unknown, Std: stats.Unknown}
	}
	avg := stats.Unknown
	if cell := row.Find("td.avg").First(); cell.Length() > 0 {
		avg = services.LeadingNumber(cell.Text())
	}
	std := stats.Unknown
	if cells := row.Find("td"); cells.Length() > 1 {
		std = services.LeadingNumber(cells.Last().Text())
	}
	return stats.Dist{Mean: avg, Std: std}
}

// topic finds the labelled row inside the labelled table.
func topic(doc *goquery.Document, labels []string) stats.Dist {
	return rowDist(topicRow(topicTable(doc, labels), labels))
}

// weeklyHours sums whichever hour components the survey asked about. Older
// questionnaires split time into in-class, outside, homework and lab rows;
// newer ones ask for the weekly total directly.
func weeklyHours(doc *goquery.Document) (stats.Num, stats.Num) {
	table := topicTable(doc, hoursLabels)
	if table == nil {
		return stats.Unknown, stats.Unknown
	}
	return stats.SumIndependent(
		rowDist(topicRow(table, inClassLabels)),
		rowDist(topicRow(table, outClassLabels)),
		rowDist(topicRow(table, homeworkLabels)),
		rowDist(topicRow(table, labLabels)),
		rowDist(topicRow(table, perWeekLabels)),
	)
}
