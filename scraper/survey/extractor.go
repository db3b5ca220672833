package survey

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/services"
	"subject-eval-scraper/stats"
)

var (
	// ErrStructure means a page classified as current lacks the elements
	// every current report carries. The layout has changed under us.
	ErrStructure = eris.New("survey: unexpected page structure")
	// ErrIncomplete means a legacy page did not yield an identity key.
	ErrIncomplete = eris.New("survey: incomplete legacy page")
)

// Link is what discovery knows about a report before fetching it. Term and
// Year are zero when the search results did not show them.
type Link struct {
	URL          string
	CourseNumber string
	Term         models.Term
	Year         int
}

// HasIdentity reports whether the link alone names a course offering.
func (l Link) HasIdentity() bool {
	return l.CourseNumber != "" && l.Term != "" && l.Year > 0
}

// Key returns the identity the link points at.
func (l Link) Key() models.Key {
	return models.Key{CourseNumber: l.CourseNumber, Term: l.Term, Year: l.Year}
}

// Extraction is what one report page yields: every co-listed course number,
// a record template carrying the shared measurements, and the raw
// per-instructor ratings.
type Extraction struct {
	Format   Format
	Listings []models.Listing
	Record   models.CourseRecord
	Ratings  []models.TeacherRating
}

// Records expands the template into one record per listing that belongs to
// subject. Catalog fields are left for the resolver.
func (e *Extraction) Records(subject string) []models.CourseRecord {
	var out []models.CourseRecord
	for _, l := range e.Listings {
		if subject != "" && services.SubjectOf(l.Number) != subject {
			continue
		}
		rec := e.Record
		rec.CourseNumber = l.Number
		rec.SubjectName = l.Name
		rec.Teachers = append(models.Names(nil), e.Record.Teachers...)
		out = append(out, rec)
	}
	return out
}

// Extractor turns a classified page into an Extraction.
type Extractor interface {
	Extract(doc *goquery.Document, link Link) (*Extraction, error)
}

// ExtractorFor returns the extractor for a recognized format.
func ExtractorFor(f Format) (Extractor, bool) {
	switch f {
	case FormatCurrent:
		return CurrentExtractor{}, true
	case FormatLegacy:
		return LegacyExtractor{}, true
	}
	return nil, false
}

// applyTeachers fills the instructor columns of rec from the rating batch:
// names in page order plus the equal-weight mean and spread of the scores.
func applyTeachers(rec *models.CourseRecord, ratings []models.TeacherRating) {
	names := make(models.Names, 0, len(ratings))
	scores := make([]stats.Num, 0, len(ratings))
	helps := make([]stats.Num, 0, len(ratings))
	for _, r := range ratings {
		names = append(names, r.Name)
		scores = append(scores, r.Rating)
		helps = append(helps, r.Helpfulness)
	}
	w := stats.Equal(len(ratings))

	rec.Teachers = names
	rec.TeacherRatingAvg = stats.WeightedMean(scores, w)
	rec.TeacherRatingStd = stats.WeightedStd(scores, w)
	rec.TeacherHelpfulnessAvg = stats.WeightedMean(helps, w)
	rec.TeacherHelpfulnessStd = stats.WeightedStd(helps, w)
}

// splitLines splits an element's content at <br> tags.
func splitLines(sel *goquery.Selection) []string {
	var lines []string
	var b strings.Builder
	flush := func() {
		if line := services.NormaliseText(b.String()); line != "" {
			lines = append(lines, line)
		}
		b.Reset()
	}
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "br" {
			flush()
			return
		}
		b.WriteString(s.Text())
		b.WriteString(" ")
	})
	flush()
	return lines
}

func unknownRecord() models.CourseRecord {
	return models.CourseRecord{
		Level:       models.LevelUnknown,
		Description: models.UnknownDescription,
	}
}
