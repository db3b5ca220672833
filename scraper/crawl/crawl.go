// Package crawl drives a scrape: discover report links for one subject,
// fetch each unseen one at a bounded rate, extract, enrich from the
// catalog and merge the result into the ledger.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"subject-eval-scraper/models"
	"subject-eval-scraper/scraper/catalog"
	"subject-eval-scraper/scraper/survey"
	"subject-eval-scraper/transport"
	"subject-eval-scraper/utils"
)

var (
	// ErrStatus marks a fetch that returned something other than 200.
	ErrStatus = eris.New("crawl: unexpected status")
	// ErrUnrecognized marks a page whose layout matches no known format.
	ErrUnrecognized = eris.New("crawl: unrecognized page format")
)

// Fetcher retrieves one page.
type Fetcher interface {
	Get(ctx context.Context, url string) (*transport.Page, error)
}

// Store is the ledger as seen by the crawler.
type Store interface {
	Exists(key models.Key) bool
	HasLink(url string) bool
	Insert(rec models.CourseRecord) error
	MergeTeacher(r models.TeacherRating) bool
	Flush(ctx context.Context) error
}

// Stage is the step of a link's life cycle.
type Stage int

const (
	StageDiscovered Stage = iota
	StageFetching
	StageClassifying
	StageExtracting
	StageResolving
	StageMerging
	StagePersisted
)

func (s Stage) String() string {
	switch s {
	case StageDiscovered:
		return "discovered"
	case StageFetching:
		return "fetching"
	case StageClassifying:
		return "classifying"
	case StageExtracting:
		return "extracting"
	case StageResolving:
		return "resolving"
	case StageMerging:
		return "merging"
	case StagePersisted:
		return "persisted"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// LinkError records why a link ended in the errored state.
type LinkError struct {
	URL   string
	Stage Stage
	Err   error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.URL, e.Stage, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Summary counts what a run did.
type Summary struct {
	Discovered     int
	Skipped        int
	Fetched        int
	Inserted       int
	Errored        int
	TeachersMerged int
	Failures       []*LinkError
}

// Config holds the per-run crawl settings.
type Config struct {
	Subject    string
	SearchURL  string
	CatalogURL string
	RateLimit  time.Duration
	// MaxFetches stops the run after this many report fetches; 0 means no
	// limit.
	MaxFetches int
}

// Crawler processes links one at a time. It is not safe for concurrent
// use.
type Crawler struct {
	cfg     Config
	fetcher Fetcher
	store   Store
	pacer   *utils.Pacer
	log     *utils.Logger
	catalog *catalog.Index
}

func New(cfg Config, fetcher Fetcher, store Store, logger *utils.Logger) *Crawler {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Crawler{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		pacer:   utils.NewPacer(cfg.RateLimit),
		log:     logger,
		catalog: catalog.Empty(),
	}
}

// Run discovers and processes every report link. Per-link failures are
// logged and counted; a structural failure on a current-format page, a
// ledger conflict or a failed flush stops the run.
func (c *Crawler) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	links, err := c.discover(ctx)
	if err != nil {
		return sum, err
	}
	sum.Discovered = len(links)
	c.log.Info("[crawl] Discovered %d report links for subject %s", len(links), c.cfg.Subject)

	c.catalog = c.loadCatalog(ctx)

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if c.cfg.MaxFetches > 0 && sum.Fetched >= c.cfg.MaxFetches {
			c.log.Info("[crawl] Fetch limit %d reached, stopping", c.cfg.MaxFetches)
			break
		}

		if c.known(link) {
			sum.Skipped++
			c.log.Debug("[crawl] Skipping known %s", link.URL)
			continue
		}

		c.log.Info("[crawl] (%d/%d) %s", i+1, len(links), link.URL)
		res, err := c.process(ctx, link, &sum)
		if err != nil {
			var le *LinkError
			if errors.As(err, &le) && !res.fatal {
				sum.Errored++
				sum.Failures = append(sum.Failures, le)
				c.log.Warn("[crawl] %v", le)
				continue
			}
			return sum, err
		}
		sum.Inserted += res.inserted
		sum.TeachersMerged += res.merged
	}

	c.log.Info("[crawl] Done: %d discovered, %d skipped, %d fetched, %d inserted, %d errored, %d instructor updates",
		sum.Discovered, sum.Skipped, sum.Fetched, sum.Inserted, sum.Errored, sum.TeachersMerged)
	return sum, nil
}

// known decides whether a link can be skipped without a network call. The
// provenance link covers pages whose subjectId names a co-listed number of
// another department.
func (c *Crawler) known(link survey.Link) bool {
	if c.store.HasLink(link.URL) {
		return true
	}
	return link.HasIdentity() && c.store.Exists(link.Key())
}

func (c *Crawler) discover(ctx context.Context) ([]survey.Link, error) {
	base, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "crawl: parse search url %q", c.cfg.SearchURL)
	}
	page, err := c.get(ctx, c.cfg.SearchURL)
	if err != nil {
		return nil, eris.Wrap(err, "crawl: fetch search results")
	}
	if !page.OK() {
		return nil, eris.Wrapf(ErrStatus, "search results returned %d", page.StatusCode)
	}
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	return Discover(doc, base), nil
}

// loadCatalog fetches and indexes the catalog once. Without it every
// record resolves to unknown level and description.
func (c *Crawler) loadCatalog(ctx context.Context) *catalog.Index {
	if c.cfg.CatalogURL == "" {
		return catalog.Empty()
	}
	page, err := c.get(ctx, c.cfg.CatalogURL)
	if err == nil && !page.OK() {
		err = eris.Wrapf(ErrStatus, "catalog returned %d", page.StatusCode)
	}
	if err != nil {
		c.log.Warn("[crawl] Catalog unavailable, levels and descriptions will be unknown: %v", err)
		return catalog.Empty()
	}
	doc, err := page.Document()
	if err != nil {
		c.log.Warn("[crawl] Catalog unreadable: %v", err)
		return catalog.Empty()
	}
	ix := catalog.Parse(doc)
	c.log.Info("[crawl] Indexed %d catalog entries", ix.Len())
	return ix
}

// get paces every network request, not only report fetches.
func (c *Crawler) get(ctx context.Context, rawURL string) (*transport.Page, error) {
	if err := c.pacer.Start(ctx); err != nil {
		return nil, err
	}
	return c.fetcher.Get(ctx, rawURL)
}

type result struct {
	inserted int
	merged   int
	fatal    bool
}

func (c *Crawler) process(ctx context.Context, link survey.Link, sum *Summary) (result, error) {
	fail := func(stage Stage, err error) error {
		return &LinkError{URL: link.URL, Stage: stage, Err: err}
	}

	if err := c.pacer.Start(ctx); err != nil {
		return result{fatal: true}, err
	}
	sum.Fetched++
	page, err := c.fetcher.Get(ctx, link.URL)
	if err != nil {
		if ctx.Err() != nil {
			return result{fatal: true}, ctx.Err()
		}
		return result{}, fail(StageFetching, err)
	}
	if !page.OK() {
		return result{}, fail(StageFetching, eris.Wrapf(ErrStatus, "got %d", page.StatusCode))
	}

	doc, err := page.Document()
	if err != nil {
		return result{}, fail(StageClassifying, err)
	}
	format := survey.Classify(doc)
	extractor, ok := survey.ExtractorFor(format)
	if !ok {
		return result{}, fail(StageClassifying, ErrUnrecognized)
	}

	ex, err := extractor.Extract(doc, link)
	if err != nil {
		return result{fatal: format == survey.FormatCurrent}, fail(StageExtracting, err)
	}

	records := ex.Records(c.cfg.Subject)
	if len(records) == 0 {
		c.log.Warn("[crawl] No listing of subject %s on %s", c.cfg.Subject, link.URL)
	}

	var res result
	for _, rec := range records {
		if c.store.Exists(rec.Key()) {
			c.log.Debug("[crawl] %s already recorded", rec.Key())
			continue
		}
		rec.Level, rec.Description = c.catalog.Resolve(rec.CourseNumber, rec.SubjectName)
		if err := c.store.Insert(rec); err != nil {
			return result{fatal: true}, fail(StageMerging, err)
		}
		res.inserted++
		c.log.Info("[crawl] Recorded %s %q (%s)", rec.Key(), rec.SubjectName, format)
	}

	if res.inserted > 0 {
		for _, r := range ex.Ratings {
			if r.Name == "" {
				continue
			}
			c.store.MergeTeacher(r)
			res.merged++
		}
	}

	if err := c.store.Flush(ctx); err != nil {
		return result{fatal: true}, fail(StagePersisted, err)
	}
	return res, nil
}
