package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"subject-eval-scraper/browser"
	"subject-eval-scraper/config"
	"subject-eval-scraper/scraper/crawl"
	"subject-eval-scraper/storage"
	"subject-eval-scraper/transport"
	"subject-eval-scraper/utils"
)

const lockFileName = ".ledger.lock"

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var refreshCookies bool
	var headless bool
	var noCatalog bool
	var maxFetches int
	var rateLimit time.Duration

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch every unseen evaluation report of the subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := ctx.ensureConfig()
			flags := cmd.Flags()
			if flags.Changed("max-fetches") {
				cfg.MaxFetches = maxFetches
			}
			if flags.Changed("rate-limit") {
				cfg.RateLimitMs = int(rateLimit / time.Millisecond)
			}
			if flags.Changed("headless") {
				cfg.Headless = headless
			}
			if noCatalog {
				cfg.CatalogURL = ""
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runScrape(runCtx, cfg, logger, refreshCookies, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&refreshCookies, "refresh-cookies", false, "Ignore the cookie cache and sign in through the browser")
	cmd.Flags().BoolVar(&headless, "headless", false, "Run the browser without a window (only works with a signed-in profile)")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip the catalog lookup; levels and descriptions stay unknown")
	cmd.Flags().IntVar(&maxFetches, "max-fetches", 0, "Stop after this many report fetches (0 = no limit)")
	cmd.Flags().DurationVar(&rateLimit, "rate-limit", 0, "Minimum spacing between requests (overrides RATE_LIMIT_MS)")

	return cmd
}

func runScrape(ctx context.Context, cfg *config.Config, logger *utils.Logger, refreshCookies bool, out io.Writer) error {
	lock, err := acquireLedgerLock(cfg.OutputDir)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	logger.Info("=== Subject evaluation harvest starting ===")
	logger.Info("Config: subject %s | output %s | rate %dms | catalog %q",
		cfg.SubjectCode, cfg.OutputDir, cfg.RateLimitMs, cfg.CatalogPageURL())

	session := &browser.Session{
		CookieFile: cfg.CookieFile,
		Refresh:    refreshCookies,
		Options: browser.Options{
			ChromeBin:    cfg.ChromeBin,
			ProfileDir:   cfg.BrowserProfile,
			Headless:     cfg.Headless,
			LoginTimeout: cfg.LoginTimeout(),
			Logger:       logger,
		},
	}
	cookies, err := session.Cookies(ctx, cfg.SearchURL())
	if err != nil {
		return eris.Wrap(err, "scrape: acquire session cookies")
	}

	client, err := transport.NewClient(transport.Options{Timeout: cfg.RequestTimeout(), Logger: logger})
	if err != nil {
		return err
	}
	if err := client.SetCookies(cfg.BaseURL, cookies); err != nil {
		return err
	}

	var mirror storage.Mirror
	if cfg.MirrorDriver != "" {
		m, err := storage.OpenSQLMirror(ctx, cfg.MirrorDriver, cfg.DSN(), utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		})
		if err != nil {
			return eris.Wrapf(err, "scrape: open %s mirror", cfg.MirrorDriver)
		}
		mirror = m
	}

	ledger, err := storage.OpenLedger(storage.NewCSVTables(cfg.OutputDir, cfg.SubjectCode), mirror, logger)
	if err != nil {
		if mirror != nil {
			_ = mirror.Close()
		}
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Warn("Failed to close mirror: %v", err)
		}
	}()

	crawler := crawl.New(crawl.Config{
		Subject:    cfg.SubjectCode,
		SearchURL:  cfg.SearchURL(),
		CatalogURL: cfg.CatalogPageURL(),
		RateLimit:  cfg.RateLimit(),
		MaxFetches: cfg.MaxFetches,
	}, client, ledger, logger)

	sum, runErr := crawler.Run(ctx)

	// Writes the headers on a first run that inserted nothing; a no-op otherwise.
	if err := ledger.Flush(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}

	fmt.Fprintln(out, renderSummary(sum))
	if runErr != nil {
		return runErr
	}
	logger.Info("=== Harvest complete: tables in %s ===", cfg.OutputDir)
	return nil
}

// acquireLedgerLock takes the advisory lock guarding the tables in dir.
func acquireLedgerLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "scrape: create output dir %s", dir)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, eris.Wrap(err, "scrape: acquire ledger lock")
	}
	if !ok {
		return nil, eris.Errorf("scrape: another run holds %s", lock.Path())
	}
	return lock, nil
}

func renderSummary(sum crawl.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Harvest summary")
	tw.AppendRows([]table.Row{
		{"Discovered", sum.Discovered},
		{"Skipped (already recorded)", sum.Skipped},
		{"Fetched", sum.Fetched},
		{"Inserted", sum.Inserted},
		{"Errored", sum.Errored},
		{"Instructor updates", sum.TeachersMerged},
	})
	if len(sum.Failures) == 0 {
		return tw.Render()
	}

	fw := table.NewWriter()
	fw.SetStyle(table.StyleRounded)
	fw.SetTitle("Failed links")
	fw.AppendHeader(table.Row{"Stage", "URL", "Error"})
	for _, f := range sum.Failures {
		fw.AppendRow(table.Row{f.Stage, f.URL, f.Err})
	}
	return tw.Render() + "\n" + fw.Render()
}
