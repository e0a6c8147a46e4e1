package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/services"
	"demoforge/internal/services/llm"
	"demoforge/internal/stage"
)

const stageName = "analyzing"

// analysisPayload is the schema the LLM fills in.
type analysisPayload struct {
	ProductName          string           `json:"product_name" jsonschema_description:"Product name as users know it"`
	Tagline              string           `json:"tagline" jsonschema_description:"One-line value proposition"`
	Category             string           `json:"category"`
	TargetUsers          []string         `json:"target_users"`
	Features             []featurePayload `json:"features"`
	TechStack            []string         `json:"tech_stack"`
	UseCases             []string         `json:"use_cases"`
	CompetitiveAdvantage string           `json:"competitive_advantage"`
	DemoURLs             []string         `json:"demo_urls"`
}

type featurePayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Importance  int    `json:"importance" jsonschema:"minimum=1,maximum=10"`
	DemoWorthy  bool   `json:"demo_worthy"`
}

var analysisSchema = llm.SchemaFor(&analysisPayload{})

// RepoSource fetches repository facts.
type RepoSource interface {
	Repository(ctx context.Context, repoURL string) (*RepoInfo, error)
}

// PageSource fetches website facts.
type PageSource interface {
	Fetch(ctx context.Context, pageURL string) (*PageInfo, error)
}

// Service implements stage.Analyzer.
type Service struct {
	llm    llm.Completer
	repos  RepoSource
	pages  PageSource
	logger *slog.Logger
	now    func() time.Time
}

var _ stage.Analyzer = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithRepoSource overrides the GitHub client.
func WithRepoSource(src RepoSource) Option {
	return func(s *Service) { s.repos = src }
}

// WithPageSource overrides the website fetcher.
func WithPageSource(src PageSource) Option {
	return func(s *Service) { s.pages = src }
}

// NewService builds an analyzer from configuration.
func NewService(cfg *config.Config, completer llm.Completer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Analyzer.HTTPTimeoutSeconds) * time.Second
	s := &Service{
		llm:    completer,
		repos:  NewGitHubClient(cfg.Analyzer.GitHubAPIURL, cfg.Analyzer.GitHubToken, cfg.Analyzer.UserAgent, cfg.Analyzer.ReadmeMaxBytes, timeout),
		pages:  NewWebFetcher(cfg.Analyzer.UserAgent, cfg.Analyzer.PageMaxBytes, timeout, &http.Client{Timeout: timeout}),
		logger: logging.NewComponentLogger(logger, "analyzer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze gathers source facts and asks the LLM for a structured analysis.
func (s *Service) Analyze(ctx context.Context, source demo.Source, reporter stage.Reporter) (*demo.AnalysisResult, error) {
	reporter = stage.OrNop(reporter)
	logger := logging.WithContext(ctx, s.logger)
	if source.Empty() {
		return nil, services.Wrap(services.ErrValidation, stageName, "analyze", "no repository or website url", nil)
	}

	var (
		repo     *RepoInfo
		page     *PageInfo
		failures []string
	)
	if u := strings.TrimSpace(source.RepoURL); u != "" {
		reporter.Report(0.05, "reading repository", 0, 0)
		info, err := s.repos.Repository(ctx, u)
		if err != nil {
			failures = append(failures, fmt.Sprintf("repository: %v", err))
			logging.WarnWithContext(logger, "repository fetch failed", "analyzer_repo_unreachable",
				logging.String("repo_url", u),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.String(logging.FieldImpact, "analysis relies on the website only"))
		} else {
			repo = info
		}
	}

	pageURL := strings.TrimSpace(source.WebsiteURL)
	if pageURL == "" && repo != nil && repo.Homepage != "" {
		pageURL = repo.Homepage
	}
	if pageURL != "" {
		reporter.Report(0.3, "reading website", 0, 0)
		info, err := s.pages.Fetch(ctx, pageURL)
		if err != nil {
			failures = append(failures, fmt.Sprintf("website: %v", err))
			logging.WarnWithContext(logger, "website fetch failed", "analyzer_site_unreachable",
				logging.String("website_url", pageURL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the url loads without authentication"),
				logging.String(logging.FieldImpact, "analysis relies on repository facts only"))
		} else {
			page = info
		}
	}

	if repo == nil && page == nil {
		return nil, services.Wrap(services.ErrSourceUnreachable, stageName, "fetch sources", strings.Join(failures, "; "), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reporter.Report(0.5, "asking the model for a product analysis", 0, 0)
	var payload analysisPayload
	_, err := llm.CompleteInto(ctx, s.llm, llm.Request{
		System:      systemPrompt,
		User:        buildUserPrompt(repo, page),
		SchemaName:  "product_analysis",
		Schema:      analysisSchema,
		Temperature: 0.3,
	}, &payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrAnalysisIncomplete, stageName, "llm analysis", "model call failed", err)
	}

	result := s.buildResult(payload, source, repo, page)
	if result.ProductName == "" || len(result.Features) == 0 {
		return nil, services.Wrap(services.ErrAnalysisIncomplete, stageName, "validate analysis",
			fmt.Sprintf("model returned %d features and product name %q", len(result.Features), result.ProductName), nil)
	}
	reporter.Report(1, fmt.Sprintf("identified %s with %d features", result.ProductName, len(result.Features)), 0, 0)
	logger.Info("analysis complete",
		logging.String("product", result.ProductName),
		logging.Int("features", len(result.Features)),
		logging.Int("demo_worthy", len(result.DemoWorthyFeatures())),
		logging.Int("demo_urls", len(result.DemoURLs)))
	return result, nil
}

// HealthCheck reports whether the LLM answers.
func (s *Service) HealthCheck(ctx context.Context) stage.Health {
	if s.llm == nil {
		return stage.Unhealthy("analyzer", "llm not configured")
	}
	if err := s.llm.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("analyzer", err.Error())
	}
	return stage.Healthy("analyzer")
}

func (s *Service) buildResult(p analysisPayload, source demo.Source, repo *RepoInfo, page *PageInfo) *demo.AnalysisResult {
	result := &demo.AnalysisResult{
		ProductName:          strings.TrimSpace(p.ProductName),
		Tagline:              strings.TrimSpace(p.Tagline),
		Category:             strings.TrimSpace(p.Category),
		TargetUsers:          cleanList(p.TargetUsers),
		TechStack:            cleanList(p.TechStack),
		UseCases:             cleanList(p.UseCases),
		CompetitiveAdvantage: strings.TrimSpace(p.CompetitiveAdvantage),
		AnalyzedAt:           s.now().UTC(),
	}
	if result.ProductName == "" && repo != nil {
		result.ProductName = repo.Name
	}
	if len(result.TechStack) == 0 && repo != nil {
		result.TechStack = repo.Languages
	}
	for _, f := range p.Features {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		importance := f.Importance
		if importance < 1 {
			importance = 1
		}
		if importance > 10 {
			importance = 10
		}
		result.Features = append(result.Features, demo.Feature{
			Name:        name,
			Description: strings.TrimSpace(f.Description),
			Importance:  importance,
			DemoWorthy:  f.DemoWorthy,
		})
	}
	sort.SliceStable(result.Features, func(i, j int) bool {
		return result.Features[i].Importance > result.Features[j].Importance
	})

	result.DemoURLs = allowedURLs(p.DemoURLs, source, repo, page)
	for _, u := range []string{source.RepoURL, source.WebsiteURL} {
		if u = strings.TrimSpace(u); u != "" {
			result.SourceURLs = append(result.SourceURLs, u)
		}
	}
	return result
}

// allowedURLs keeps model-suggested URLs that were actually seen in the
// sources, always leading with the website itself.
func allowedURLs(suggested []string, source demo.Source, repo *RepoInfo, page *PageInfo) []string {
	known := map[string]bool{}
	var ordered []string
	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" || known[u] {
			return
		}
		known[u] = true
		ordered = append(ordered, u)
	}
	seen := map[string]bool{}
	mark := func(u string) { seen[strings.TrimRight(strings.TrimSpace(u), "/")] = true }

	if page != nil {
		add(page.URL)
		mark(page.URL)
		for _, l := range page.Links {
			mark(l.Href)
		}
	}
	add(source.WebsiteURL)
	if repo != nil {
		mark(repo.Homepage)
		mark(repo.URL)
	}
	for _, u := range suggested {
		if seen[strings.TrimRight(strings.TrimSpace(u), "/")] {
			add(u)
		}
	}
	if len(ordered) > 5 {
		ordered = ordered[:5]
	}
	return ordered
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func hintFor(err error) string {
	if errors.Is(err, errGitHubNotFound) {
		return "repository is missing or private; set GITHUB_TOKEN for private repositories"
	}
	return "check network access to the GitHub API and rate limits"
}
