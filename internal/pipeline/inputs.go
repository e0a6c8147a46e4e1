package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"demoforge/internal/cache"
	"demoforge/internal/config"
	"demoforge/internal/demo"
	"demoforge/internal/project"
	"demoforge/internal/scripter"
	"demoforge/internal/stage"
	"demoforge/internal/textutil"
)

// AnalyzeInputs lists everything that changes the analysis.
type AnalyzeInputs struct {
	Source   demo.Source `json:"source"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
}

// ScriptInputs lists everything that changes the script. Analysis is the
// upstream fingerprint.
type ScriptInputs struct {
	Analysis        string        `json:"analysis"`
	ProjectName     string        `json:"project_name"`
	ProjectURL      string        `json:"project_url"`
	Audience        demo.Audience `json:"audience"`
	TargetLength    int           `json:"target_length"`
	Language        string        `json:"language"`
	Source          string        `json:"source"`
	Model           string        `json:"model"`
	WordsPerMinute  int           `json:"words_per_minute"`
	Tolerance       float64       `json:"tolerance"`
	MaxVideoLength  int           `json:"max_video_length"`
	MinSceneSeconds float64       `json:"min_scene_seconds"`
	ScriptFile      string        `json:"script_file,omitempty"`
}

// CaptureInputs lists everything that changes the visuals.
type CaptureInputs struct {
	Script            string `json:"script"`
	ViewportWidth     int    `json:"viewport_width"`
	ViewportHeight    int    `json:"viewport_height"`
	Resolution        string `json:"resolution"`
	BrandColor        string `json:"brand_color"`
	FallbackOnFailure bool   `json:"fallback_on_failure"`
}

// VoiceInputs lists everything that changes the narration. Voice depends on
// the script only, so a capture change never re-synthesizes audio.
type VoiceInputs struct {
	Script   string             `json:"script"`
	Settings demo.VoiceSettings `json:"settings"`
}

// AssembleInputs lists everything that changes the rendered video.
type AssembleInputs struct {
	Captures           string  `json:"captures"`
	Voice              string  `json:"voice"`
	OutputPath         string  `json:"output_path"`
	Resolution         string  `json:"resolution"`
	FPS                int     `json:"fps"`
	Transition         string  `json:"transition"`
	TransitionDuration float64 `json:"transition_duration"`
	KenBurns           bool    `json:"ken_burns"`
	BurnSubtitles      bool    `json:"burn_subtitles"`
	SubtitleFont       string  `json:"subtitle_font"`
	SubtitleSize       int     `json:"subtitle_size"`
	CRF                int     `json:"crf"`
	ArchiveAV1         bool    `json:"archive_av1"`
}

func analyzeInputs(cfg *config.Config, p *project.Project) AnalyzeInputs {
	llm := cfg.GetLLM()
	return AnalyzeInputs{
		Source:   p.Source(),
		Provider: strings.ToLower(llm.Provider),
		Model:    llm.Model,
	}
}

func scriptInputs(cfg *config.Config, p *project.Project, analysisFP string) ScriptInputs {
	in := ScriptInputs{
		Analysis:        analysisFP,
		ProjectName:     p.Name,
		ProjectURL:      p.Source().PrimaryURL(),
		Audience:        p.Audience,
		TargetLength:    p.TargetLength,
		Language:        p.Language,
		Source:          cfg.Scripter.Source,
		WordsPerMinute:  cfg.Scripter.WordsPerMinute,
		Tolerance:       cfg.Scripter.DurationTolerance,
		MaxVideoLength:  cfg.Scripter.MaxVideoLength,
		MinSceneSeconds: cfg.Scripter.MinSceneSeconds,
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Scripter.Source), scripter.SourceFile) {
		in.Model = ""
		in.ScriptFile = scriptFileDigest(cfg, scriptRequest(p))
	} else {
		in.Model = cfg.GetLLM().Model
	}
	return in
}

// scriptFileDigest hashes the YAML script a file-backed run would load, so an
// edited file invalidates the cached script. No file hashes to "".
func scriptFileDigest(cfg *config.Config, req stage.ScriptRequest) string {
	files := scripter.NewFileScripter(cfg.Paths.ScriptDir, cfg.Scripter, nil)
	for _, path := range files.Candidates(req) {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h := sha256.New()
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			continue
		}
		return filepath.Base(path) + ":" + hex.EncodeToString(h.Sum(nil))
	}
	return ""
}

func scriptRequest(p *project.Project) stage.ScriptRequest {
	return stage.ScriptRequest{
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		Analysis:     p.Analysis,
		Audience:     p.Audience,
		TargetLength: p.TargetLength,
		Language:     p.Language,
		ProjectURL:   p.Source().PrimaryURL(),
	}
}

func captureInputs(cfg *config.Config, scriptFP string) CaptureInputs {
	return CaptureInputs{
		Script:            scriptFP,
		ViewportWidth:     cfg.Capture.ViewportWidth,
		ViewportHeight:    cfg.Capture.ViewportHeight,
		Resolution:        cfg.Video.Resolution,
		BrandColor:        cfg.Capture.BrandColor,
		FallbackOnFailure: cfg.Capture.FallbackOnFailure,
	}
}

func voiceSettings(cfg *config.Config, p *project.Project) demo.VoiceSettings {
	return demo.VoiceSettings{
		Engine:     cfg.Voice.Engine,
		Voice:      cfg.Voice.Voice,
		Language:   p.Language,
		Gender:     cfg.Voice.Gender,
		Speed:      cfg.Voice.Speed,
		SamplePath: cfg.Voice.VoiceSamplePath,
	}
}

func voiceInputs(cfg *config.Config, p *project.Project, scriptFP string) VoiceInputs {
	return VoiceInputs{Script: scriptFP, Settings: voiceSettings(cfg, p)}
}

func assembleInputs(cfg *config.Config, capturesFP, voiceFP, outputPath string) AssembleInputs {
	v := cfg.Video
	return AssembleInputs{
		Captures:           capturesFP,
		Voice:              voiceFP,
		OutputPath:         outputPath,
		Resolution:         v.Resolution,
		FPS:                v.FPS,
		Transition:         v.Transition,
		TransitionDuration: v.TransitionDuration,
		KenBurns:           v.KenBurns,
		BurnSubtitles:      v.BurnSubtitles,
		SubtitleFont:       v.SubtitleFont,
		SubtitleSize:       v.SubtitleSize,
		CRF:                v.CRF,
		ArchiveAV1:         v.ArchiveAV1,
	}
}

// OutputPath is where a project's final video is written.
func OutputPath(cfg *config.Config, p *project.Project) string {
	name := textutil.Slug(p.Name)
	if name == "" {
		name = "demo"
	}
	return filepath.Join(cfg.ProjectOutputDir(p.ID), name+".mp4")
}

func fingerprint(stage project.Stage, inputs any) (string, error) {
	return cache.Fingerprint(string(stage), inputs)
}
