package survey

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/services"
	"subject-eval-scraper/stats"
)

// CurrentExtractor reads reports in the current layout. Only the title block
// is mandatory; every other field degrades to unknown on its own.
type CurrentExtractor struct{}

func (CurrentExtractor) Extract(doc *goquery.Document, link Link) (*Extraction, error) {
	title := doc.Find("td.subjectTitle").First()
	if title.Length() == 0 {
		return nil, eris.Wrap(ErrStructure, "missing td.subjectTitle")
	}

	listings := currentListings(title.Find("h1").First())
	if len(listings) == 0 {
		return nil, eris.Wrap(ErrStructure, "no course listings in title heading")
	}

	window := title.Find("h2").First()
	term, year, ok := services.ParseSurveyWindow(window.Text())
	if !ok {
		return nil, eris.Wrapf(ErrStructure, "unreadable survey window %q", services.NormaliseText(window.Text()))
	}

	rec := unknownRecord()
	rec.Term = term
	rec.Year = year
	rec.Respondents, rec.ResponseRate = currentHeader(doc)
	rec.SubjectRatingAvg, rec.SubjectRatingStd = currentSubjectRating(doc)

	p := topic(doc, paceLabels)
	rec.PaceAvg, rec.PaceStd = p.Mean, p.Std
	rec.WeeklyHoursAvg, rec.WeeklyHoursStd = weeklyHours(doc)
	a := topic(doc, assignmentLabels)
	rec.AssignmentQualityAvg, rec.AssignmentQualityStd = a.Mean, a.Std
	g := topic(doc, gradingLabels)
	rec.GradingFairnessAvg, rec.GradingFairnessStd = g.Mean, g.Std

	ratings := currentTeachers(doc)
	applyTeachers(&rec, ratings)
	rec.Link = link.URL

	return &Extraction{
		Format:   FormatCurrent,
		Listings: listings,
		Record:   rec,
		Ratings:  ratings,
	}, nil
}

// currentListings splits the title heading into one listing per co-listed
// course number.
func currentListings(h1 *goquery.Selection) []models.Listing {
	if h1.Length() == 0 {
		return nil
	}
	var out []models.Listing
	for _, line := range splitLines(h1) {
		if l, ok := services.SplitListing(line); ok {
			out = append(out, l)
		}
	}
	return out
}

// currentHeader reads the respondent count and response rate tooltips.
func currentHeader(doc *goquery.Document) (stats.Num, stats.Num) {
	respondents, rate := stats.Unknown, stats.Unknown
	doc.Find("p.tooltip").Each(func(_ int, p *goquery.Selection) {
		text := p.Text()
		switch {
		case services.ContainsFold(text, "response rate"):
			rate = services.ParseRate(text)
		case services.ContainsFold(text, "respondents"):
			respondents = services.ParseLabelledNumber(text)
		}
	})
	return respondents, rate
}

const subjectRatingMarker = "rating of the subject:"

// currentSubjectRating takes the mean from the summary paragraph and the
// spread from the "Overall rating of the subject" question row.
func currentSubjectRating(doc *goquery.Document) (stats.Num, stats.Num) {
	mean := stats.Unknown
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.ToLower(services.NormaliseText(p.Text()))
		idx := strings.Index(text, subjectRatingMarker)
		if idx < 0 {
			return true
		}
		mean = services.LeadingNumber(text[idx+len(subjectRatingMarker):])
		return false
	})

	row := rowDist(topicRow(topicTable(doc, subjectLabels), subjectLabels))
	if !mean.Valid {
		mean = row.Mean
	}
	return mean, row.Std
}

// currentTeachers reads the instructor grid. The first two rows are
// headers; helpfulness sits in the second-to-last cell and the overall
// rating, with its vote count in parentheses, in the last.
func currentTeachers(doc *goquery.Document) []models.TeacherRating {
	grid := doc.Find("table.grid").First()
	if grid.Length() == 0 {
		return nil
	}

	rows := grid.Find("tr")
	if rows.Length() <= 2 {
		return nil
	}

	var out []models.TeacherRating
	rows.Slice(2, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		name := services.ReorderName(cells.First().Text())
		if name == "" {
			return
		}
		last := cells.Last().Text()
		votes, _ := services.ParseVotes(last)
		out = append(out, models.TeacherRating{
			Name:        name,
			Helpfulness: services.LeadingNumber(cells.Eq(cells.Length() - 2).Text()),
			Rating:      services.LeadingNumber(last),
			Votes:       votes,
		})
	})
	return out
}
