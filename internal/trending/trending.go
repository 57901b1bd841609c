// Package trending produces the input list of repositories, either by
// scraping the GitHub trending page or by reading a JSON file of records.
package trending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"trendscout/internal/records"
)

const DefaultBaseURL = "https://github.com"

// Periods accepted by the trending page.
var Periods = []string{"daily", "weekly", "monthly"}

var (
	selRow         = cascadia.MustCompile("article.Box-row")
	selTitle       = cascadia.MustCompile("h2 a")
	selDescription = cascadia.MustCompile("p")
	selLanguage    = cascadia.MustCompile(`[itemprop="programmingLanguage"]`)
	selStars       = cascadia.MustCompile(`a[href$="/stargazers"]`)
	selForks       = cascadia.MustCompile(`a[href$="/forks"]`)
	selGained      = cascadia.MustCompile("span.d-inline-block.float-sm-right")
)

type Scraper struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

type Option func(*Scraper)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) {
		if c != nil {
			s.client = c
		}
	}
}

func WithBaseURL(u string) Option {
	return func(s *Scraper) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			s.baseURL = u
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Scraper) { s.log = log }
}

func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PageURL returns the trending page address for language and period.
func (s *Scraper) PageURL(language, since string) string {
	u := s.baseURL + "/trending"
	if lang := strings.TrimSpace(language); lang != "" {
		u += "/" + url.PathEscape(strings.ToLower(lang))
	}
	if since = strings.TrimSpace(since); since != "" {
		u += "?since=" + url.QueryEscape(since)
	}
	return u
}

// Fetch downloads and parses one trending page.
func (s *Scraper) Fetch(ctx context.Context, language, since string) ([]records.RepositoryRecord, error) {
	pageURL := s.PageURL(language, since)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("trending: build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "trendscout")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trending: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	s.log.Debug().Str("url", pageURL).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("trending page fetched")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending: fetch %s: unexpected status %s", pageURL, resp.Status)
	}
	recs, err := Parse(resp.Body, s.baseURL)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		s.log.Warn().Str("url", pageURL).Msg("trending page contained no repositories")
	}
	return recs, nil
}

// Parse extracts repositories from trending page HTML in page order. Rows
// without an OWNER/NAME link are skipped.
func Parse(r io.Reader, baseURL string) ([]records.RepositoryRecord, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("trending: parse html: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var out []records.RepositoryRecord
	for _, row := range cascadia.QueryAll(doc, selRow) {
		title := cascadia.Query(row, selTitle)
		if title == nil {
			continue
		}
		owner, name, ok := splitRepoPath(attr(title, "href"))
		if !ok {
			continue
		}
		rec := records.RepositoryRecord{
			Owner: owner,
			Name:  name,
			URL:   baseURL + "/" + owner + "/" + name,
		}
		if n := cascadia.Query(row, selDescription); n != nil {
			rec.Description = text(n)
		}
		if n := cascadia.Query(row, selLanguage); n != nil {
			rec.Language = text(n)
		}
		if n := cascadia.Query(row, selStars); n != nil {
			rec.Stars = leadingInt(text(n))
		}
		if n := cascadia.Query(row, selForks); n != nil {
			rec.Forks = leadingInt(text(n))
		}
		if n := cascadia.Query(row, selGained); n != nil {
			rec.StarsGained = leadingInt(text(n))
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadFile reads a JSON array of repository records.
func LoadFile(path string) ([]records.RepositoryRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	var recs []records.RepositoryRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("parse input file %s: %w", path, err)
	}
	var errs []error
	for i, r := range recs {
		if strings.TrimSpace(r.Owner) == "" || strings.TrimSpace(r.Name) == "" {
			errs = append(errs, fmt.Errorf("record %d: owner and name are required", i))
			continue
		}
		if r.URL == "" {
			recs[i].URL = DefaultBaseURL + "/" + r.Owner + "/" + r.Name
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid input file %s: %w", path, errors.Join(errs...))
	}
	return recs, nil
}

func splitRepoPath(href string) (owner, name string, ok bool) {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	parts := strings.Split(strings.Trim(href, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the node's text content with whitespace collapsed.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// leadingInt parses the first number in s, ignoring thousands separators.
func leadingInt(s string) int {
	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ',' && digits.Len() > 0:
		case digits.Len() > 0:
			n, _ := strconv.Atoi(digits.String())
			return n
		}
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}
