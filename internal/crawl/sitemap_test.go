package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemapURLs_URLSet(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
<url><loc> %[1]s/about </loc></url>
<url><loc>%[1]s/pricing</loc></url>
<url><loc>https://elsewhere.example/page</loc></url>
</urlset>`, srv.URL)
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	got := newSitemapFetcher().URLs(context.Background(), base)
	assert.Equal(t, []string{srv.URL + "/about", srv.URL + "/pricing"}, got)
}

func TestSitemapURLs_Index(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<sitemapindex><sitemap><loc>%[1]s/pages.xml</loc></sitemap><sitemap><loc>%[1]s/missing.xml</loc></sitemap></sitemapindex>`, srv.URL)
		case "/pages.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%s/team</loc></url></urlset>`, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	got := newSitemapFetcher().URLs(context.Background(), base)
	assert.Equal(t, []string{srv.URL + "/team"}, got)
}

func TestSitemapURLs_Missing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	assert.Nil(t, newSitemapFetcher().URLs(context.Background(), base))
	assert.Nil(t, newSitemapFetcher().URLs(context.Background(), nil))
}

func TestSitemapURLs_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not a sitemap"))
	}))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	assert.Empty(t, newSitemapFetcher().URLs(context.Background(), base))
}

func TestDecodeXML_Latin1(t *testing.T) {
	body := append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?><urlset><url><loc>https://acme.com/caf`), 0xe9)
	body = append(body, []byte(`</loc></url></urlset>`)...)

	var set urlSet
	require.NoError(t, decodeXML(body, &set))
	require.Len(t, set.URLs, 1)
	assert.Equal(t, "https://acme.com/café", set.URLs[0].Loc)
}
