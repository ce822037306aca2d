package crawl

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

const maxSitemapURLs = 500

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type sitemapFetcher struct {
	http *http.Client
}

func newSitemapFetcher() *sitemapFetcher {
	return &sitemapFetcher{http: &http.Client{Timeout: 10 * time.Second}}
}

// URLs returns the same-site page URLs listed in /sitemap.xml. A sitemap
// index is followed one level deep. Any failure yields nil.
func (f *sitemapFetcher) URLs(ctx context.Context, base *url.URL) []string {
	if base == nil {
		return nil
	}
	root := base.Scheme + "://" + base.Host + "/sitemap.xml"
	body := f.get(ctx, root)
	if body == nil {
		return nil
	}

	var idx sitemapIndex
	if err := decodeXML(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		var out []string
		for _, s := range idx.Sitemaps {
			if len(out) >= maxSitemapURLs {
				break
			}
			out = append(out, parseURLSet(f.get(ctx, strings.TrimSpace(s.Loc)), base)...)
		}
		return out
	}
	return parseURLSet(body, base)
}

func (f *sitemapFetcher) get(ctx context.Context, target string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; GeoVisibilityBot/1.0)")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil
	}
	return body
}

func parseURLSet(body []byte, base *url.URL) []string {
	if body == nil {
		return nil
	}
	var set urlSet
	if err := decodeXML(body, &set); err != nil {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")
	var out []string
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		u, err := url.Parse(loc)
		if err != nil || strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") != host {
			continue
		}
		out = append(out, loc)
		if len(out) == maxSitemapURLs {
			break
		}
	}
	return out
}

// decodeXML decodes body into v, transcoding non-UTF-8 sitemaps.
func decodeXML(body []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "sitemap: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return dec.Decode(v)
}
