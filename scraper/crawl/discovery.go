package crawl

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"subject-eval-scraper/scraper/survey"
	"subject-eval-scraper/services"
	"subject-eval-scraper/utils"
)

// reportMarker identifies report links on the search results page.
const reportMarker = "subjectId="

// Discover collects the report links of a search results page in page
// order. Relative links are resolved against base; duplicates are dropped.
// Course number, term and year are filled in when the page shows them so
// the controller can skip known offerings without fetching.
func Discover(doc *goquery.Document, base *url.URL) []survey.Link {
	seen := utils.NewURLSet()
	var links []survey.Link

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.Contains(href, reportMarker) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if !seen.Add(abs.String()) {
			return
		}

		link := survey.Link{
			URL:          abs.String(),
			CourseNumber: strings.TrimSpace(abs.Query().Get("subjectId")),
		}
		for _, text := range contextTexts(a) {
			if term, year, ok := services.FindTermYear(text); ok {
				link.Term, link.Year = term, year
				break
			}
		}
		links = append(links, link)
	})
	return links
}

// contextTexts returns the anchor's own text followed by its enclosing
// table row (cells space separated) or list item, nearest first.
func contextTexts(a *goquery.Selection) []string {
	texts := []string{a.Text()}
	if row := a.Closest("tr"); row.Length() > 0 {
		cells := row.Find("td, th").Map(func(_ int, cell *goquery.Selection) string {
			return cell.Text()
		})
		texts = append(texts, strings.Join(cells, " "))
	}
	if item := a.Closest("li"); item.Length() > 0 {
		texts = append(texts, item.Text())
	}
	return texts
}
