// Package arxiv fetches paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"arxivrag/internal/models"
	"arxivrag/internal/util"
)

const (
	defaultBaseURL  = "http://export.arxiv.org"
	defaultPageCap  = 200
	defaultInterval = 3 * time.Second
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageCap    int
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageCap bounds how many results a single Search may request.
func WithPageCap(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageCap = n
		}
	}
}

// WithRequestInterval sets the minimum spacing between API requests.
// arXiv asks clients to stay at or below one request every three seconds.
func WithRequestInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(defaultInterval), 1),
		pageCap:    defaultPageCap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the arXiv API across all fields and returns up to
// maxResults papers. The request is retried once on transport errors
// and non-2xx statuses; a response that is not parseable Atom is not
// retried and reported as malformed.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if maxResults <= 0 {
		return nil, fmt.Errorf("max results must be positive, got %d", maxResults)
	}
	if maxResults > c.pageCap {
		maxResults = c.pageCap
	}

	q := url.Values{}
	q.Set("search_query", "all:"+query)
	q.Set("start", "0")
	q.Set("max_results", fmt.Sprintf("%d", maxResults))
	reqURL := fmt.Sprintf("%s/api/query?%s", c.baseURL, q.Encode())

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		// One retry covers transient network blips and 5xx hiccups.
		body, err = c.fetch(ctx, reqURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
		}
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}

	papers := make([]models.Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		p, ok := entryToPaper(entry)
		if !ok {
			continue
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("arxiv returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read arxiv response: %w", err)
	}
	return body, nil
}

// entryToPaper maps one Atom entry onto a Paper. Entries without a usable
// identifier or title are dropped rather than failing the whole page.
// Text fields are stripped of NUL/control bytes here, before anything
// reaches a store write.
func entryToPaper(e atomEntry) (models.Paper, bool) {
	id := arxivIDFromURL(e.ID)
	title := cleanField(e.Title)
	if id == "" || title == "" {
		return models.Paper{}, false
	}

	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if n := cleanField(a.Name); n != "" {
			names = append(names, n)
		}
	}

	cats := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			cats = append(cats, c.Term)
		}
	}

	p := models.Paper{
		ArxivID:    id,
		Title:      title,
		Authors:    strings.Join(names, "; "),
		Abstract:   cleanField(e.Summary),
		Categories: strings.Join(cats, ", "),
		URL:        pdfLink(e),
	}
	if len(e.Published) >= 10 {
		if t, err := time.Parse("2006-01-02", e.Published[:10]); err == nil {
			p.PublishedDate = &t
		}
	}
	return p, true
}

func cleanField(s string) string {
	return util.CollapseWhitespace(util.SanitizeText(s))
}

// arxivIDFromURL extracts the short identifier from an Atom entry ID
// such as http://arxiv.org/abs/2301.01234v2.
func arxivIDFromURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	return u
}

func pdfLink(e atomEntry) string {
	for _, l := range e.Links {
		if l.Title == "pdf" && l.Href != "" {
			return l.Href
		}
	}
	return "https://arxiv.org/abs/" + arxivIDFromURL(e.ID)
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID         string         `xml:"id"`
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Published  string         `xml:"published"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}
