// Package transport fetches survey pages over HTTP with a pre-authenticated
// cookie jar.
package transport

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"

	"subject-eval-scraper/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Page is a fetched response body with the metadata the crawler needs.
type Page struct {
	URL         string
	StatusCode  int
	Body        []byte
	ContentType string
}

// OK reports whether the server answered 200.
func (p *Page) OK() bool {
	return p.StatusCode == http.StatusOK
}

// Document decodes the body to UTF-8 using the declared or sniffed charset
// and parses it.
func (p *Page) Document() (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(p.Body), p.ContentType)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: decode %s", p.URL)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: parse %s", p.URL)
	}
	return doc, nil
}

// Options configures a Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *utils.Logger
}

// Client is a cookie-carrying HTTP client. It does no retrying; a failed
// fetch is reported to the caller as is.
type Client struct {
	http *resty.Client
	jar  http.CookieJar
	log  *utils.Logger
}

func NewClient(opts Options) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "transport: create cookie jar")
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)

	return &Client{http: client, jar: jar, log: opts.Logger}, nil
}

// SetCookies installs session cookies for every request to rawURL's host.
func (c *Client) SetCookies(rawURL string, cookies []*http.Cookie) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return eris.Wrapf(err, "transport: parse cookie url %q", rawURL)
	}
	c.jar.SetCookies(u, cookies)
	return nil
}

// Get fetches rawURL. Non-200 responses are returned as pages, not errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	start := time.Now()
	res, err := c.http.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: get %s", rawURL)
	}
	c.log.Debug("[http] GET %s -> %d (%s)", rawURL, res.StatusCode(), time.Since(start).Round(time.Millisecond))

	return &Page{
		URL:         rawURL,
		StatusCode:  res.StatusCode(),
		Body:        res.Body(),
		ContentType: res.Header().Get("Content-Type"),
	}, nil
}
