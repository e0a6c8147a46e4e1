package demo

import (
	"fmt"
	"strings"
	"time"
)

// Audience selects the tone and depth of the generated script.
type Audience string

const (
	AudienceInvestor  Audience = "investor"
	AudienceCustomer  Audience = "customer"
	AudienceDeveloper Audience = "developer"
	AudienceTechnical Audience = "technical"
)

// ParseAudience normalizes value and rejects unknown audiences.
func ParseAudience(value string) (Audience, error) {
	switch a := Audience(strings.ToLower(strings.TrimSpace(value))); a {
	case AudienceInvestor, AudienceCustomer, AudienceDeveloper, AudienceTechnical:
		return a, nil
	case "":
		return AudienceDeveloper, nil
	default:
		return "", fmt.Errorf("unknown audience %q (use investor, customer, developer, or technical)", value)
	}
}

// Source is the thing being demoed. At least one URL is set.
type Source struct {
	RepoURL    string `json:"repo_url,omitempty" yaml:"repo_url,omitempty"`
	WebsiteURL string `json:"website_url,omitempty" yaml:"website_url,omitempty"`
}

// Empty reports whether neither URL is set.
func (s Source) Empty() bool {
	return strings.TrimSpace(s.RepoURL) == "" && strings.TrimSpace(s.WebsiteURL) == ""
}

// PrimaryURL returns the URL shown to viewers, preferring the website.
func (s Source) PrimaryURL() string {
	if w := strings.TrimSpace(s.WebsiteURL); w != "" {
		return w
	}
	return strings.TrimSpace(s.RepoURL)
}

// Feature is one product capability found during analysis.
type Feature struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Importance  int    `json:"importance" yaml:"importance"`
	DemoWorthy  bool   `json:"demo_worthy" yaml:"demo_worthy"`
}

// AnalysisResult is the analyzer's output. It is not modified after creation.
type AnalysisResult struct {
	ProductName          string    `json:"product_name"`
	Tagline              string    `json:"tagline"`
	Category             string    `json:"category"`
	TargetUsers          []string  `json:"target_users"`
	Features             []Feature `json:"features"`
	TechStack            []string  `json:"tech_stack"`
	UseCases             []string  `json:"use_cases"`
	CompetitiveAdvantage string    `json:"competitive_advantage"`
	DemoURLs             []string  `json:"demo_urls"`
	SourceURLs           []string  `json:"source_urls"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
}

// DemoWorthyFeatures returns features flagged for the demo, most important first.
func (a *AnalysisResult) DemoWorthyFeatures() []Feature {
	if a == nil {
		return nil
	}
	out := make([]Feature, 0, len(a.Features))
	for _, f := range a.Features {
		if f.DemoWorthy {
			out = append(out, f)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Importance > out[j-1].Importance; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
