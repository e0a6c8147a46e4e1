package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// RepoInfo is the repository context handed to the LLM.
type RepoInfo struct {
	Owner       string
	Name        string
	URL         string
	Description string
	Homepage    string
	Topics      []string
	Languages   []string
	Stars       int
	License     string
	Readme      string
}

// GitHubClient reads repository metadata from the GitHub REST API.
type GitHubClient struct {
	baseURL        string
	token          string
	userAgent      string
	readmeMaxBytes int
	httpClient     *http.Client
}

// GitHubOption configures a GitHubClient.
type GitHubOption func(*GitHubClient)

// WithGitHubHTTPClient overrides the default HTTP client.
func WithGitHubHTTPClient(client *http.Client) GitHubOption {
	return func(c *GitHubClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewGitHubClient creates a client for baseURL (https://api.github.com by default).
func NewGitHubClient(baseURL, token, userAgent string, readmeMaxBytes int, timeout time.Duration, opts ...GitHubOption) *GitHubClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if readmeMaxBytes <= 0 {
		readmeMaxBytes = 20000
	}
	c := &GitHubClient{
		baseURL:        baseURL,
		token:          strings.TrimSpace(token),
		userAgent:      userAgent,
		readmeMaxBytes: readmeMaxBytes,
		httpClient:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseRepoURL extracts owner and repository name from a GitHub URL.
func ParseRepoURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse repo url: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "github.com" {
		return "", "", fmt.Errorf("unsupported repository host %q", u.Hostname())
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q must look like github.com/<owner>/<repo>", raw)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

type repoPayload struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	HTMLURL     string   `json:"html_url"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stargazers_count"`
	License     *struct {
		SPDXID string `json:"spdx_id"`
	} `json:"license"`
}

// Repository fetches metadata, languages and the README. Only the metadata
// call is required; languages and README failures leave those fields empty.
func (c *GitHubClient) Repository(ctx context.Context, repoURL string) (*RepoInfo, error) {
	owner, name, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(name))

	var repo repoPayload
	if err := c.getJSON(ctx, base, &repo); err != nil {
		return nil, err
	}
	info := &RepoInfo{
		Owner:       owner,
		Name:        firstNonEmpty(repo.Name, name),
		URL:         firstNonEmpty(repo.HTMLURL, repoURL),
		Description: strings.TrimSpace(repo.Description),
		Homepage:    strings.TrimSpace(repo.Homepage),
		Topics:      repo.Topics,
		Stars:       repo.Stars,
	}
	if repo.License != nil {
		info.License = repo.License.SPDXID
	}

	var languages map[string]int64
	if err := c.getJSON(ctx, base+"/languages", &languages); err == nil {
		info.Languages = rankLanguages(languages)
	}
	if readme, err := c.readme(ctx, base+"/readme"); err == nil {
		info.Readme = readme
	}
	return info, nil
}

func (c *GitHubClient) readme(ctx context.Context, endpoint string) (string, error) {
	resp, err := c.do(ctx, endpoint, "application/vnd.github.raw+json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.readmeMaxBytes)))
	if err != nil {
		return "", fmt.Errorf("read readme: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *GitHubClient) getJSON(ctx context.Context, endpoint string, target any) error {
	resp, err := c.do(ctx, endpoint, "application/vnd.github+json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

// errGitHubNotFound distinguishes a missing or private repository.
var errGitHubNotFound = errors.New("github repository not found")

func (c *GitHubClient) do(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, errGitHubNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("github returned %d for %s (latency=%v)", resp.StatusCode, endpoint, latency)
	}
	return resp, nil
}

func rankLanguages(bytesByLang map[string]int64) []string {
	langs := make([]string, 0, len(bytesByLang))
	for lang := range bytesByLang {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if bytesByLang[langs[i]] != bytesByLang[langs[j]] {
			return bytesByLang[langs[i]] > bytesByLang[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
