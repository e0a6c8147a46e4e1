package voice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/fileutil"
	"demoforge/internal/language"
	"demoforge/internal/logging"
	"demoforge/internal/media/ffprobe"
	"demoforge/internal/services"
	"demoforge/internal/stage"
)

const stageName = "voicing"

// SubtitleFile is the SRT name inside the voice work directory.
const SubtitleFile = "subtitles.srt"

// DurationFunc measures an audio file in seconds.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// Service implements stage.Voicer.
type Service struct {
	cfg        config.Voice
	table      *DecisionTable
	engines    map[string]Synthesizer
	measure    DurationFunc
	outputRoot string
	logger     *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRunner routes every CLI engine through run.
func WithRunner(run Runner) Option {
	return func(s *Service) {
		s.engines = cliEngines(s.cfg, run)
	}
}

// WithSynthesizer replaces the engine registered under syn.Name().
func WithSynthesizer(syn Synthesizer) Option {
	return func(s *Service) {
		if syn != nil {
			s.engines[syn.Name()] = syn
		}
	}
}

// WithDurationFunc replaces the ffprobe measurement.
func WithDurationFunc(measure DurationFunc) Option {
	return func(s *Service) {
		if measure != nil {
			s.measure = measure
		}
	}
}

// NewService builds the voice stage from configuration.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	ffprobeBinary := cfg.Video.FFprobeBinary
	s := &Service{
		cfg:     cfg.Voice,
		table:   NewDecisionTable(),
		engines: cliEngines(cfg.Voice, nil),
		measure: func(ctx context.Context, path string) (float64, error) {
			return ffprobe.Duration(ctx, ffprobeBinary, path)
		},
		outputRoot: cfg.Paths.OutputDir,
		logger:     logging.NewComponentLogger(logger, "voice"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cliEngines(cfg config.Voice, run Runner) map[string]Synthesizer {
	return map[string]Synthesizer{
		EngineEdge:   NewEdge(cfg.EdgeBinary, run),
		EngineKokoro: NewKokoro(cfg.KokoroBinary, run),
		EnginePocket: NewPocket(cfg.PocketBinary, run),
	}
}

// Voice narrates every segment in order and writes the SRT track.
func (s *Service) Voice(ctx context.Context, script *demo.Script, settings demo.VoiceSettings, reporter stage.Reporter) (*demo.VoiceSet, error) {
	logger := logging.WithContext(ctx, s.logger)
	reporter = stage.OrNop(reporter)
	segments := script.Segments()
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "plan", "script has no segments", nil)
	}

	settings = s.withDefaults(settings)
	settings.Language = ResolveLanguage(settings.Language, script)
	choice := s.table.Resolve(settings)
	logger.Info("voice engine selected",
		logging.Args(append(logging.DecisionAttrs("voice_engine", choice.Engine, choice.Reason),
			logging.String("language", choice.Language),
			logging.String("locale", choice.Locale),
			logging.String("voice", choice.Voice))...)...)
	if choice.Fallback {
		logging.WarnWithContext(logger, "voice engine fallback", "voice_engine_fallback",
			logging.String("requested", choice.Requested),
			logging.String("engine", choice.Engine),
			logging.String("reason", choice.Reason),
			logging.String(logging.FieldErrorHint, "install the requested engine or pick a supported language"),
			logging.String(logging.FieldImpact, "narration uses a different voice than requested"),
		)
	}
	engine, ok := s.engines[choice.Engine]
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "select engine", "no synthesizer for "+choice.Engine, nil)
	}

	dir, err := stage.WorkDir(ctx, s.outputRoot, "voice")
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "prepare", "create voice dir", err)
	}

	set := &demo.VoiceSet{
		Artifacts: make(map[string]demo.VoiceArtifact, len(segments)),
		Engine:    choice.Engine,
		Language:  choice.Language,
	}
	ordered := make([]demo.VoiceArtifact, 0, len(segments))
	cursor := 0.0
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := filepath.Join(dir, seg.ID+engine.Extension())
		req := Request{
			Text:    seg.Narration,
			Voice:   choice.Voice,
			Locale:  choice.Locale,
			Sample:  choice.Sample,
			Speed:   settings.Speed,
			OutPath: out,
		}
		if err := engine.Synthesize(ctx, req); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "synthesize", seg.ID, err)
		}
		duration, err := s.measure(ctx, out)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stageName, "measure", seg.ID, err)
		}
		artifact := demo.VoiceArtifact{
			SegmentID: seg.ID,
			Path:      out,
			Text:      seg.Narration,
			Duration:  duration,
			StartTime: cursor,
			Engine:    choice.Engine,
			Voice:     choice.Voice,
		}
		cursor += duration
		set.Artifacts[seg.ID] = artifact
		ordered = append(ordered, artifact)
		reporter.Report(float64(i+1)/float64(len(segments)), "narrated "+seg.ID, i+1, len(segments))
	}
	set.TotalDuration = cursor
	set.Cues = BuildCues(ordered)

	var buf bytes.Buffer
	if err := WriteSRT(&buf, set.Cues); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "subtitles", "render srt", err)
	}
	set.SubtitlePath = filepath.Join(dir, SubtitleFile)
	if err := fileutil.WriteFileAtomic(set.SubtitlePath, buf.Bytes(), 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "subtitles", "write srt", err)
	}

	logger.Info("narration complete",
		logging.Int("segments", len(ordered)),
		logging.Int("cues", len(set.Cues)),
		logging.Float64("total_seconds", set.TotalDuration),
	)
	return set, nil
}

func (s *Service) withDefaults(settings demo.VoiceSettings) demo.VoiceSettings {
	if strings.TrimSpace(settings.Engine) == "" {
		settings.Engine = s.cfg.Engine
	}
	if strings.TrimSpace(settings.Voice) == "" {
		settings.Voice = s.cfg.Voice
	}
	if strings.TrimSpace(settings.Gender) == "" {
		settings.Gender = s.cfg.Gender
	}
	if settings.Speed <= 0 {
		settings.Speed = s.cfg.Speed
	}
	if strings.TrimSpace(settings.SamplePath) == "" {
		settings.SamplePath = s.cfg.VoiceSamplePath
	}
	return settings
}

// ResolveLanguage normalizes requested and detects it from the narration
// when it is "auto", empty, or unrecognized.
func ResolveLanguage(requested string, script *demo.Script) string {
	switch lang := language.Normalize(requested); lang {
	case "", language.Auto:
		var narration strings.Builder
		for _, seg := range script.Segments() {
			narration.WriteString(seg.Narration)
			narration.WriteByte(' ')
		}
		return language.Detect(narration.String())
	default:
		return lang
	}
}

// HealthCheck reports whether the configured engine, and the edge fallback,
// are installed.
func (s *Service) HealthCheck(context.Context) stage.Health {
	names := []string{strings.ToLower(s.cfg.Engine)}
	if names[0] != EngineEdge {
		names = append(names, EngineEdge)
	}
	var missing []string
	for _, name := range names {
		engine, ok := s.engines[name]
		if !ok {
			missing = append(missing, name+" (unknown)")
			continue
		}
		if _, isCLI := engine.(*cliEngine); !isCLI {
			continue
		}
		if _, err := exec.LookPath(engine.Binary()); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%q)", name, engine.Binary()))
		}
	}
	if len(missing) == len(names) {
		return stage.Unhealthy("voice", "no tts engine available: "+strings.Join(missing, ", "))
	}
	if len(missing) > 0 {
		return stage.Degraded("voice", "missing "+strings.Join(missing, ", "))
	}
	return stage.Healthy("voice")
}
