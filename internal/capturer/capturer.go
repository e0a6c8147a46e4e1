package capturer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/services"
	"demoforge/internal/stage"
)

const stageName = "capturing"

// Service implements stage.Capturer.
type Service struct {
	browser     Browser
	cards       *CardRenderer
	outputRoot  string
	concurrency int
	attempts    int
	fallback    bool
	retryDelay  time.Duration
	binary      string
	shotWidth   int
	shotHeight  int
	logger      *slog.Logger
}

var _ stage.Capturer = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithBrowser replaces the Chromium backend.
func WithBrowser(b Browser) Option {
	return func(s *Service) { s.browser = b }
}

// WithRetryDelay sets the pause between screenshot attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) { s.retryDelay = d }
}

// NewService builds a capturer from configuration.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	width, height := cfg.Dimensions()
	cards, err := NewCardRenderer(width, height, cfg.Capture.BrandColor)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init cards", "invalid brand color", err)
	}
	c := cfg.Capture
	s := &Service{
		browser:     NewChromium(c.BrowserBinary, c.ViewportWidth, c.ViewportHeight, time.Duration(c.TimeoutMillis)*time.Millisecond),
		cards:       cards,
		outputRoot:  cfg.Paths.OutputDir,
		concurrency: max(c.Concurrency, 1),
		attempts:    max(c.RetryAttempts, 0) + 1,
		fallback:    c.FallbackOnFailure,
		retryDelay:  time.Second,
		binary:      c.BrowserBinary,
		shotWidth:   c.ViewportWidth,
		shotHeight:  c.ViewportHeight,
		logger:      logging.NewComponentLogger(logger, "capturer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Capture renders cards for non-browser segments and screenshots URL scenes
// concurrently. A failing scene never stops its siblings.
func (s *Service) Capture(ctx context.Context, script *demo.Script, reporter stage.Reporter) (*demo.CaptureSet, error) {
	logger := logging.WithContext(ctx, s.logger)
	segments := script.Segments()
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrCaptureFailed, stageName, "plan", "script has no segments", nil)
	}
	dir, err := stage.WorkDir(ctx, s.outputRoot, "captures")
	if err != nil {
		return nil, services.Wrap(services.ErrCaptureFailed, stageName, "prepare", "create capture dir", err)
	}

	set := &demo.CaptureSet{Artifacts: make(map[string]demo.CaptureArtifact, len(segments))}
	var mu sync.Mutex
	record := func(a demo.CaptureArtifact) {
		mu.Lock()
		set.Artifacts[a.SegmentID] = a
		mu.Unlock()
	}
	counter := stage.NewCounter(reporter, len(segments))

	var browserSegments []demo.Segment
	for _, seg := range segments {
		if seg.Scene != nil && seg.Scene.NeedsBrowser() {
			browserSegments = append(browserSegments, seg)
			continue
		}
		artifact, err := s.renderCard(script, seg, dir)
		if err != nil {
			return nil, services.Wrap(services.ErrCaptureFailed, stageName, "render card", seg.ID, err)
		}
		record(artifact)
		counter.Done("rendered " + seg.ID)
	}

	slots := semaphore.NewWeighted(int64(s.concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for _, seg := range browserSegments {
		g.Go(func() error {
			if err := slots.Acquire(gctx, 1); err != nil {
				return err
			}
			defer slots.Release(1)

			path := filepath.Join(dir, seg.ID+".png")
			attempts, err := s.screenshot(gctx, seg.Scene.URL, path)
			if err == nil {
				record(demo.CaptureArtifact{SegmentID: seg.ID, Path: path, Width: s.shotWidth, Height: s.shotHeight, Kind: demo.CaptureScreenshot, SourceURL: seg.Scene.URL})
				counter.Done("captured " + seg.ID)
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logging.WarnWithContext(logger, "screenshot failed", "capture_failed",
				logging.String("segment", seg.ID),
				logging.String("url", seg.Scene.URL),
				logging.Int("attempts", attempts),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the page loads without login and within the capture timeout"),
				logging.String(logging.FieldImpact, impactFor(s.fallback)))
			mu.Lock()
			set.Failures = append(set.Failures, demo.CaptureFailure{SegmentID: seg.ID, URL: seg.Scene.URL, Attempts: attempts, Error: err.Error()})
			mu.Unlock()
			if s.fallback {
				fallbackPath := filepath.Join(dir, seg.ID+"_fallback.png")
				if err := s.cards.Title(fallbackPath, hostOf(seg.Scene.URL), firstSentence(seg.Narration)); err != nil {
					return services.Wrap(services.ErrCaptureFailed, stageName, "render fallback", seg.ID, err)
				}
				record(demo.CaptureArtifact{SegmentID: seg.ID, Path: fallbackPath, Width: s.cards.width, Height: s.cards.height, Kind: demo.CaptureFallback, SourceURL: seg.Scene.URL})
			}
			counter.Done("gave up on " + seg.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	if len(browserSegments) > 0 && len(set.Failures) == len(browserSegments) && !s.fallback {
		return nil, services.Wrap(services.ErrCaptureFailed, stageName, "screenshots",
			fmt.Sprintf("all %d url scenes failed; first error: %s", len(set.Failures), set.Failures[0].Error), nil)
	}
	logger.Info("captures ready",
		logging.Int("segments", len(segments)),
		logging.Int("screenshots", len(browserSegments)-len(set.Failures)),
		logging.Int("failures", len(set.Failures)))
	return set, nil
}

// screenshot tries the browser up to s.attempts times and reports how many
// attempts were made.
func (s *Service) screenshot(ctx context.Context, pageURL, path string) (int, error) {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err = s.browser.Screenshot(ctx, pageURL, path); err == nil {
			return attempt, nil
		}
		if attempt == s.attempts {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, errors.Join(err, ctx.Err())
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	return s.attempts, err
}

func (s *Service) renderCard(script *demo.Script, seg demo.Segment, dir string) (demo.CaptureArtifact, error) {
	path := filepath.Join(dir, seg.ID+".png")
	var err error
	switch {
	case seg.Kind == demo.SegmentKindIntro:
		err = s.cards.Title(path, script.Title, firstSentence(seg.Narration))
	case seg.Kind == demo.SegmentKindOutro:
		cta := script.CallToAction
		if strings.TrimSpace(cta) == "" {
			cta = script.Title
		}
		err = s.cards.Outro(path, cta, script.ProjectURL)
	case seg.Scene.Type == demo.SceneCodeSnippet:
		err = s.cards.Code(path, firstSentence(seg.Narration), seg.Scene.VisualContent)
	case seg.Scene.Type == demo.SceneDiagram:
		err = s.cards.Diagram(path, "", splitSteps(seg.Scene.VisualContent))
	default:
		heading := seg.Scene.VisualContent
		if strings.TrimSpace(heading) == "" {
			heading = firstSentence(seg.Narration)
		}
		err = s.cards.Title(path, heading, "")
	}
	if err != nil {
		return demo.CaptureArtifact{}, err
	}
	return demo.CaptureArtifact{SegmentID: seg.ID, Path: path, Width: s.cards.width, Height: s.cards.height, Kind: demo.CaptureCard}, nil
}

// HealthCheck reports whether the browser binary is installed.
func (s *Service) HealthCheck(context.Context) stage.Health {
	if _, ok := s.browser.(*Chromium); !ok {
		return stage.Healthy("capturer")
	}
	if _, err := exec.LookPath(s.binary); err != nil {
		return stage.Unhealthy("capturer", fmt.Sprintf("browser %q not found", s.binary))
	}
	return stage.Healthy("capturer")
}

func splitSteps(content string) []string {
	var steps []string
	for _, part := range strings.FieldsFunc(content, func(r rune) bool { return r == '\n' || r == '→' }) {
		for _, step := range strings.Split(part, "->") {
			if step = strings.TrimSpace(step); step != "" {
				steps = append(steps, step)
			}
		}
	}
	return steps
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i > 0 {
		text = text[:i+1]
	}
	if r := []rune(text); len(r) > 120 {
		text = string(r[:117]) + "..."
	}
	return text
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return raw
}

func impactFor(fallback bool) string {
	if fallback {
		return "scene uses a fallback card"
	}
	return "scene has no visual and assembly will fail for it"
}
