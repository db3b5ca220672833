package survey

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/services"
	"subject-eval-scraper/stats"
)

// LegacyExtractor reads reports in the pre-redesign layout. Only the
// identity fields are parsed; the measurement sub-extractors are not
// implemented for this layout and report unknown.
type LegacyExtractor struct{}

func (LegacyExtractor) Extract(doc *goquery.Document, link Link) (*Extraction, error) {
	frame := doc.Find("div#contentsframe").First()

	listings := legacyListings(frame, link)
	if len(listings) == 0 {
		return nil, eris.Wrapf(ErrIncomplete, "no course number for %s", link.URL)
	}
	term, year, ok := legacyTermYear(frame, link)
	if !ok {
		return nil, eris.Wrapf(ErrIncomplete, "no survey term for %s", link.URL)
	}

	rec := unknownRecord()
	rec.Term = term
	rec.Year = year
	rec.Respondents = legacyRespondents(frame)
	rec.ResponseRate = stats.Unknown
	rec.SubjectRatingAvg, rec.SubjectRatingStd = legacyRating(frame)
	rec.PaceAvg, rec.PaceStd = legacyPace(frame)
	rec.WeeklyHoursAvg, rec.WeeklyHoursStd = legacyHours(frame)
	rec.AssignmentQualityAvg, rec.AssignmentQualityStd = legacyAssignments(frame)
	rec.GradingFairnessAvg, rec.GradingFairnessStd = legacyGrading(frame)

	ratings := legacyTeachers(frame)
	applyTeachers(&rec, ratings)
	rec.Link = link.URL

	return &Extraction{
		Format:   FormatLegacy,
		Listings: listings,
		Record:   rec,
		Ratings:  ratings,
	}, nil
}

// legacyListings reads the first heading of the centered title block,
// falling back to the course number discovery saw on the search page.
func legacyListings(frame *goquery.Selection, link Link) []models.Listing {
	var out []models.Listing
	heading := frame.Find("center").First().Find("h1, h2, h3").First()
	for _, line := range splitLines(heading) {
		l, ok := services.SplitListing(line)
		if ok && services.SubjectOf(l.Number) != l.Number {
			out = append(out, l)
		}
	}
	if len(out) == 0 && link.CourseNumber != "" {
		out = append(out, models.Listing{Number: link.CourseNumber})
	}
	return out
}

func legacyTermYear(frame *goquery.Selection, link Link) (models.Term, int, bool) {
	if term, year, ok := services.FindTermYear(frame.Find("center").First().Text()); ok {
		return term, year, true
	}
	if link.Term != "" && link.Year > 0 {
		return link.Term, link.Year, true
	}
	return "", 0, false
}

func legacyRespondents(*goquery.Selection) stats.Num { return stats.Unknown }

func legacyRating(*goquery.Selection) (stats.Num, stats.Num) { return stats.Unknown, stats.Unknown }

func legacyTeachers(*goquery.Selection) []models.TeacherRating { return nil }

func legacyPace(*goquery.Selection) (stats.Num, stats.Num) { return stats.Unknown, stats.Unknown }

func legacyHours(*goquery.Selection) (stats.Num, stats.Num) { return stats.Unknown, stats.Unknown }

func legacyAssignments(*goquery.Selection) (stats.Num, stats.Num) {
	return stats.Unknown, stats.Unknown
}

func legacyGrading(*goquery.Selection) (stats.Num, stats.Num) { return stats.Unknown, stats.Unknown }
