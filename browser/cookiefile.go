package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"subject-eval-scraper/utils"
)

// ErrNoCookies means the cookie file is missing or holds only expired
// cookies.
var ErrNoCookies = eris.New("browser: no usable cached cookies")

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// SaveCookies writes cookies to path with owner-only permissions, replacing
// the file atomically.
func SaveCookies(path string, cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return eris.Wrap(err, "browser: encode cookies")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return eris.Wrapf(err, "browser: create directory for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return eris.Wrapf(err, "browser: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "browser: replace %s", path)
	}
	return nil
}

// LoadCookies reads the cookie file and drops every cookie that has expired
// by now. Session cookies (no expiry) are kept.
func LoadCookies(path string, now time.Time) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCookies
	}
	if err != nil {
		return nil, eris.Wrapf(err, "browser: read %s", path)
	}

	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, eris.Wrapf(err, "browser: decode %s", path)
	}

	var out []*http.Cookie
	for _, s := range stored {
		if !s.Expires.IsZero() && !s.Expires.After(now) {
			continue
		}
		out = append(out, &http.Cookie{
			Name:     s.Name,
			Value:    s.Value,
			Domain:   s.Domain,
			Path:     s.Path,
			Expires:  s.Expires,
			Secure:   s.Secure,
			HttpOnly: s.HttpOnly,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoCookies
	}
	return out, nil
}

// Session resolves cookies from the cache file, falling back to a browser
// harvest whose result is cached for the next run.
type Session struct {
	CookieFile string
	Options    Options
	Refresh    bool

	harvest func(ctx context.Context, target string, opts Options) ([]*http.Cookie, error)
	now     func() time.Time
}

func (s *Session) Cookies(ctx context.Context, target string) ([]*http.Cookie, error) {
	log := s.Options.Logger
	if log == nil {
		log = utils.NewNopLogger()
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	harvest := Harvest
	if s.harvest != nil {
		harvest = s.harvest
	}

	if s.CookieFile != "" && !s.Refresh {
		cookies, err := LoadCookies(s.CookieFile, now())
		switch {
		case err == nil:
			log.Info("[browser] Loaded %d cached cookies from %s", len(cookies), s.CookieFile)
			return cookies, nil
		case errors.Is(err, ErrNoCookies):
			log.Info("[browser] No usable cached cookies, starting browser")
		default:
			log.Warn("[browser] Ignoring cookie cache: %v", err)
		}
	}

	cookies, err := harvest(ctx, target, s.Options)
	if err != nil {
		return nil, err
	}
	if s.CookieFile != "" {
		if err := SaveCookies(s.CookieFile, cookies); err != nil {
			log.Warn("[browser] Could not cache cookies: %v", err)
		}
	}
	return cookies, nil
}
