package project

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/text/language"

	"demoforge/internal/demo"
	"demoforge/internal/progress"
	"demoforge/internal/services"
)

// Stage is the pipeline state of a project.
type Stage string

const (
	StagePending    Stage = "pending"
	StageAnalyzing  Stage = "analyzing"
	StageScripting  Stage = "scripting"
	StageCapturing  Stage = "capturing"
	StageVoicing    Stage = "voicing"
	StageAssembling Stage = "assembling"
	StageComplete   Stage = progress.StageComplete
	StageFailed     Stage = progress.StageFailed
)

// WorkStages lists the stages that run an adapter, in execution order.
var WorkStages = []Stage{StageAnalyzing, StageScripting, StageCapturing, StageVoicing, StageAssembling}

var allStages = append(append([]Stage{StagePending}, WorkStages...), StageComplete, StageFailed)

// next holds the single forward edge out of each non-terminal stage.
var next = map[Stage]Stage{
	StagePending:    StageAnalyzing,
	StageAnalyzing:  StageScripting,
	StageScripting:  StageCapturing,
	StageCapturing:  StageVoicing,
	StageVoicing:    StageAssembling,
	StageAssembling: StageComplete,
}

// AllStages returns every stage in lifecycle order.
func AllStages() []Stage {
	return append([]Stage(nil), allStages...)
}

// ParseStage validates a stage name.
func ParseStage(value string) (Stage, bool) {
	s := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range allStages {
		if s == known {
			return s, true
		}
	}
	return "", false
}

// Terminal reports whether a run ends in this stage.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// Active reports whether an adapter runs in this stage.
func (s Stage) Active() bool {
	_, ok := next[s]
	return ok && s != StagePending
}

// Next returns the forward successor of s.
func (s Stage) Next() (Stage, bool) {
	n, ok := next[s]
	return n, ok
}

// Index returns the position of a work stage (1-based) or 0.
func (s Stage) Index() int {
	for i, ws := range WorkStages {
		if ws == s {
			return i + 1
		}
	}
	return 0
}

// CanTransition reports whether a run may move from one stage to another:
// one step forward, or to failed from any non-terminal stage. Returning to
// pending is only possible through Store.ResetForRun.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		_, known := next[from]
		return known
	}
	n, ok := next[from]
	return ok && n == to
}

// Project is one demo video request and everything produced for it.
type Project struct {
	ID           string
	Name         string
	RepoURL      string
	WebsiteURL   string
	Audience     demo.Audience
	TargetLength int
	Language     string
	Stage        Stage
	FailedStage  Stage
	ErrorMessage string
	OutputPath   string
	RunCount     int
	LastRunAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Analysis     *demo.AnalysisResult
	Script       *demo.Script
	Captures     *demo.CaptureSet
	Voice        *demo.VoiceSet
	Video        *demo.Video
	Fingerprints map[string]string
	Progress     *progress.Snapshot
}

// Source returns the URLs being demoed.
func (p *Project) Source() demo.Source {
	return demo.Source{RepoURL: p.RepoURL, WebsiteURL: p.WebsiteURL}
}

// Fingerprint returns the recorded input fingerprint for a stage.
func (p *Project) Fingerprint(stage Stage) string {
	if p == nil || p.Fingerprints == nil {
		return ""
	}
	return p.Fingerprints[string(stage)]
}

// SetFingerprint records the input fingerprint for a stage.
func (p *Project) SetFingerprint(stage Stage, fp string) {
	if p.Fingerprints == nil {
		p.Fingerprints = make(map[string]string)
	}
	p.Fingerprints[string(stage)] = fp
}

// CreateParams are the caller-supplied fields of a new project.
type CreateParams struct {
	Name         string `json:"name"`
	RepoURL      string `json:"repo_url"`
	WebsiteURL   string `json:"website_url"`
	Audience     string `json:"audience"`
	TargetLength int    `json:"target_length"`
	Language     string `json:"language"`
}

// Limits bound accepted target lengths in seconds.
type Limits struct {
	MinTargetLength     int
	MaxTargetLength     int
	DefaultTargetLength int
}

// DefaultLimits match the stock configuration.
var DefaultLimits = Limits{MinTargetLength: 15, MaxTargetLength: 300, DefaultTargetLength: 90}

// normalize validates params and fills defaults, returning the project skeleton.
func (p CreateParams) normalize(limits Limits) (*Project, error) {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "project", "create", msg, nil)
	}
	repo, err := normalizeURL(p.RepoURL)
	if err != nil {
		return nil, invalid(fmt.Sprintf("repo_url: %v", err))
	}
	site, err := normalizeURL(p.WebsiteURL)
	if err != nil {
		return nil, invalid(fmt.Sprintf("website_url: %v", err))
	}
	if repo == "" && site == "" {
		return nil, invalid("repo_url or website_url is required")
	}
	audience, err := demo.ParseAudience(p.Audience)
	if err != nil {
		return nil, invalid(err.Error())
	}
	target := p.TargetLength
	if target == 0 {
		target = limits.DefaultTargetLength
	}
	if target < limits.MinTargetLength || target > limits.MaxTargetLength {
		return nil, invalid(fmt.Sprintf("target_length must be between %d and %d seconds", limits.MinTargetLength, limits.MaxTargetLength))
	}
	lang, err := normalizeLanguage(p.Language)
	if err != nil {
		return nil, invalid(err.Error())
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = nameFromURL(repo, site)
	}
	return &Project{
		Name:         name,
		RepoURL:      repo,
		WebsiteURL:   site,
		Audience:     audience,
		TargetLength: target,
		Language:     lang,
		Stage:        StagePending,
		Fingerprints: map[string]string{},
	}, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// normalizeLanguage accepts "auto" or any well-formed BCP 47 tag.
func normalizeLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "":
		return "en", nil
	case "auto":
		return "auto", nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("language %q is not a valid BCP 47 tag", raw)
	}
	return tag.String(), nil
}

func nameFromURL(repo, site string) string {
	if repo != "" {
		if u, err := url.Parse(repo); err == nil {
			if base := path.Base(strings.TrimSuffix(u.Path, ".git")); base != "" && base != "/" && base != "." {
				return base
			}
		}
	}
	if u, err := url.Parse(site); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	return "demo"
}
