package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSendsCookiesAndUserAgent(t *testing.T) {
	var gotCookie, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("_shibsession"); err == nil {
			gotCookie = c.Value
		}
		gotAgent = r.UserAgent()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><div id="contentsframe">ok</div></body></html>`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{UserAgent: "eval-test"})
	require.NoError(t, err)
	require.NoError(t, c.SetCookies(srv.URL, []*http.Cookie{{Name: "_shibsession", Value: "abc123"}}))

	page, err := c.Get(context.Background(), srv.URL+"/ose-rpt/subjectEvaluationReport.htm")
	require.NoError(t, err)
	assert.True(t, page.OK())
	assert.Equal(t, "abc123", gotCookie)
	assert.Equal(t, "eval-test", gotAgent)

	doc, err := page.Document()
	require.NoError(t, err)
	assert.Equal(t, "ok", doc.Find("#contentsframe").Text())
}

func TestGetReturnsNonOKPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	require.NoError(t, err)

	page, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, page.OK())
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, srv.URL)
	assert.Error(t, err)
}

func TestDocumentDecodesDeclaredCharset(t *testing.T) {
	page := &Page{
		URL:         "http://example.test",
		StatusCode:  http.StatusOK,
		Body:        []byte("<html><body><p>Caf\xe9 Theory</p></body></html>"),
		ContentType: "text/html; charset=iso-8859-1",
	}
	doc, err := page.Document()
	require.NoError(t, err)
	assert.Equal(t, "Café Theory", doc.Find("p").Text())
}
