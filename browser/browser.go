// Package browser obtains authenticated session cookies by driving a local
// Chrome profile that is already signed in to the survey site.
package browser

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"subject-eval-scraper/utils"
)

// readySelector is present on every report and search page once the single
// sign-on redirects are done.
const readySelector = "#contentsframe"

// Options configures a cookie harvest.
type Options struct {
	ChromeBin    string
	ProfileDir   string
	Headless     bool
	LoginTimeout time.Duration
	Logger       *utils.Logger
}

// Harvest opens target in Chrome, waits until the survey frame is visible
// (signing in interactively if the profile has no live session) and returns
// the cookies the browser holds for it.
func Harvest(ctx context.Context, target string, opts Options) ([]*http.Cookie, error) {
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 2 * time.Minute
	}

	chromeBin := findChromeBinary(opts.ChromeBin)
	opts.Logger.Info("[browser] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	taskCtx, cancelTask := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTask()

	waitCtx, cancelWait := context.WithTimeout(taskCtx, opts.LoginTimeout)
	defer cancelWait()

	opts.Logger.Info("[browser] Waiting up to %s for %s", opts.LoginTimeout, target)

	var raw []*network.Cookie
	err := chromedp.Run(waitCtx,
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: harvest cookies for %s", target)
	}

	cookies := convertCookies(raw)
	opts.Logger.Info("[browser] Harvested %d cookies", len(cookies))
	return cookies, nil
}

func convertCookies(raw []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary(preferred string) string {
	if preferred != "" {
		return preferred
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
