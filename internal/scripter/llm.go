package scripter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/logging"
	"demoforge/internal/services"
	"demoforge/internal/services/llm"
	"demoforge/internal/stage"
)

const stageName = "scripting"

// maxAttempts covers the first draft and one retry.
const maxAttempts = 2

type scriptPayload struct {
	Title        string         `json:"title"`
	Intro        string         `json:"intro_narration" jsonschema_description:"Opening narration"`
	Scenes       []scenePayload `json:"scenes"`
	Outro        string         `json:"outro_narration" jsonschema_description:"Closing narration"`
	CallToAction string         `json:"call_to_action"`
}

type scenePayload struct {
	ID            string  `json:"id"`
	Type          string  `json:"type" jsonschema:"enum=screenshot,enum=title_card,enum=code_snippet,enum=diagram"`
	Narration     string  `json:"narration"`
	Duration      float64 `json:"duration" jsonschema:"minimum=1"`
	URL           string  `json:"url"`
	VisualContent string  `json:"visual_content"`
}

var scriptSchema = llm.SchemaFor(&scriptPayload{})

// LLMScripter writes scripts with a language model.
type LLMScripter struct {
	llm    llm.Completer
	cfg    config.Scripter
	logger *slog.Logger
	now    func() time.Time
}

var _ stage.Scripter = (*LLMScripter)(nil)

// NewLLMScripter builds an LLM-backed scripter.
func NewLLMScripter(cfg config.Scripter, completer llm.Completer, logger *slog.Logger) *LLMScripter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LLMScripter{
		llm:    completer,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "scripter"),
		now:    time.Now,
	}
}

// Script drafts a script, retrying once when the draft is invalid or misses
// the word budget.
func (s *LLMScripter) Script(ctx context.Context, req stage.ScriptRequest, reporter stage.Reporter) (*demo.Script, error) {
	reporter = stage.OrNop(reporter)
	logger := logging.WithContext(ctx, s.logger)
	if req.Analysis == nil {
		return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "prepare", "analysis missing", nil)
	}
	enforcer := NewEnforcer(req.TargetLength, s.cfg.WordsPerMinute, s.cfg.DurationTolerance, s.cfg.MinSceneSeconds)
	system := buildSystemPrompt(req, enforcer)
	user := buildUserPrompt(req, enforcer)

	var (
		best    *demo.Script
		lastErr error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reporter.Report(0.1+0.4*float64(attempt-1), fmt.Sprintf("drafting script (attempt %d)", attempt), attempt, maxAttempts)
		var payload scriptPayload
		_, err := llm.CompleteInto(ctx, s.llm, llm.Request{
			System:      system,
			User:        user,
			SchemaName:  "demo_script",
			Schema:      scriptSchema,
			Temperature: 0.7,
		}, &payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
			user = buildUserPrompt(req, enforcer) + "\n\nYour previous answer could not be parsed. Reply with a single JSON object only."
			logging.WarnWithContext(logger, "script draft unusable", "script_retry",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "model output did not match the script schema"),
				logging.String(logging.FieldImpact, "drafting again"))
			continue
		}

		script := s.toScript(payload, req)
		if err := script.Validate(); err != nil {
			lastErr = err
			user = buildUserPrompt(req, enforcer) + "\n\nYour previous script was rejected: " + err.Error() + ". Fix it."
			logging.WarnWithContext(logger, "script draft invalid", "script_retry",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "scenes need narration and screenshot scenes need a url"),
				logging.String(logging.FieldImpact, "drafting again"))
			continue
		}
		best = script
		words := NarrationWords(script)
		if enforcer.WordsWithin(words) {
			break
		}
		if attempt < maxAttempts {
			logger.Info("script length off target",
				logging.Float64("words", words),
				logging.Int("target_words", enforcer.TargetWords()))
			user = fmt.Sprintf("%s\n\nADJUSTMENT NEEDED: %s\nCurrent word count: %.0f (target %d). Regenerate the script.",
				buildUserPrompt(req, enforcer), enforcer.Adjustment(words), words, enforcer.TargetWords())
		}
	}
	if best == nil {
		return nil, services.Wrap(services.ErrScriptGenerationFailed, stageName, "draft",
			fmt.Sprintf("no valid script after %d attempts", maxAttempts), lastErr)
	}

	if removed := dropDuplicateScenes(best); removed > 0 {
		logger.Info("dropped repeated scenes", logging.Int("removed", removed))
	}
	enforcer.Fit(best)
	reporter.Report(1, fmt.Sprintf("script ready: %d scenes, %.0fs", len(best.Scenes), best.TotalDuration), len(best.Scenes), len(best.Scenes))
	logger.Info("script generated",
		logging.String("title", best.Title),
		logging.Int("scenes", len(best.Scenes)),
		logging.Float64("duration", best.TotalDuration),
		logging.Float64("words", NarrationWords(best)))
	return best, nil
}

// HealthCheck reports whether the LLM answers.
func (s *LLMScripter) HealthCheck(ctx context.Context) stage.Health {
	if s.llm == nil {
		return stage.Unhealthy("scripter", "llm not configured")
	}
	if err := s.llm.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("scripter", err.Error())
	}
	return stage.Healthy("scripter")
}

func (s *LLMScripter) toScript(p scriptPayload, req stage.ScriptRequest) *demo.Script {
	script := &demo.Script{
		Title:          strings.TrimSpace(p.Title),
		Audience:       req.Audience,
		IntroNarration: strings.TrimSpace(p.Intro),
		OutroNarration: strings.TrimSpace(p.Outro),
		CallToAction:   strings.TrimSpace(p.CallToAction),
		ProjectURL:     req.ProjectURL,
		GeneratedAt:    s.now().UTC(),
	}
	if script.Title == "" {
		script.Title = req.Analysis.ProductName
	}
	for _, sp := range p.Scenes {
		scene := demo.Scene{
			ID:            sp.ID,
			Type:          demo.SceneType(sp.Type),
			Narration:     strings.TrimSpace(sp.Narration),
			Duration:      sp.Duration,
			URL:           strings.TrimSpace(sp.URL),
			VisualContent: strings.TrimSpace(sp.VisualContent),
		}
		// A screenshot of an unusable URL becomes a title card.
		if scene.Type == demo.SceneScreenshot && !isWebURL(scene.URL) {
			scene.Type = demo.SceneTitleCard
			scene.URL = ""
			if scene.VisualContent == "" {
				scene.VisualContent = req.Analysis.ProductName
			}
		}
		script.Scenes = append(script.Scenes, scene)
	}
	script.Normalize()
	return script
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
