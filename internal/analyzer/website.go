package analyzer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	maxHeadings  = 20
	maxLinks     = 30
	maxTextChars = 5000
)

// Heading is one h1-h3 element.
type Heading struct {
	Level int
	Text  string
}

// Link is one same-site anchor.
type Link struct {
	Href string
	Text string
}

// PageInfo is the website context handed to the LLM.
type PageInfo struct {
	URL         string
	Title       string
	Description string
	Headings    []Heading
	Links       []Link
	Text        string
}

// WebFetcher downloads and parses landing pages.
type WebFetcher struct {
	userAgent  string
	maxBytes   int64
	httpClient *http.Client
}

// NewWebFetcher returns a fetcher that reads at most maxBytes per page.
func NewWebFetcher(userAgent string, maxBytes int, timeout time.Duration, client *http.Client) *WebFetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &WebFetcher{userAgent: userAgent, maxBytes: int64(maxBytes), httpClient: client}
}

// Fetch downloads pageURL and extracts its structure.
func (f *WebFetcher) Fetch(ctx context.Context, pageURL string) (*PageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	base := resp.Request.URL
	if base == nil {
		base, _ = url.Parse(pageURL)
	}
	return ParsePage(io.LimitReader(resp.Body, f.maxBytes), base)
}

// ParsePage extracts title, description, headings, same-host links and visible
// text from an HTML document.
func ParsePage(r io.Reader, base *url.URL) (*PageInfo, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	info := &PageInfo{}
	if base != nil {
		info.URL = base.String()
	}
	var text strings.Builder
	seenLinks := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Nav, atom.Footer, atom.Svg:
				return
			case atom.Title:
				if info.Title == "" {
					info.Title = collapse(nodeText(n))
				}
				return
			case atom.Meta:
				name := strings.ToLower(attr(n, "name") + attr(n, "property"))
				if (name == "description" || name == "og:description") && info.Description == "" {
					info.Description = collapse(attr(n, "content"))
				}
			case atom.H1, atom.H2, atom.H3:
				if len(info.Headings) < maxHeadings {
					if t := collapse(nodeText(n)); t != "" {
						info.Headings = append(info.Headings, Heading{Level: int(n.Data[1] - '0'), Text: t})
					}
				}
			case atom.A:
				if link, ok := resolveLink(base, attr(n, "href")); ok && !seenLinks[link] && len(info.Links) < maxLinks {
					seenLinks[link] = true
					info.Links = append(info.Links, Link{Href: link, Text: collapse(nodeText(n))})
				}
			}
		}
		if n.Type == html.TextNode && text.Len() < maxTextChars {
			if t := collapse(n.Data); t != "" {
				text.WriteString(t)
				text.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	info.Text = strings.TrimSpace(text.String())
	if len(info.Text) > maxTextChars {
		info.Text = info.Text[:maxTextChars]
	}
	return info, nil
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
		if !strings.EqualFold(u.Hostname(), base.Hostname()) {
			return "", false
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
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
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
