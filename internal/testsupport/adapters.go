package testsupport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/stage"
)

// StageHook runs inside a stub adapter before it produces output. A non-nil
// error is returned from the adapter unchanged.
type StageHook func(ctx context.Context) error

// StubAdapters implements every stage contract with deterministic outputs.
// Artifacts are real (tiny) files under the stage work directory so the
// pipeline can verify them on cache restore.
type StubAdapters struct {
	root string

	mu    sync.Mutex
	calls map[string]int
	hooks map[string]StageHook
}

// NewStubAdapters writes artifacts beneath root (normally cfg.Paths.OutputDir).
func NewStubAdapters(root string) *StubAdapters {
	return &StubAdapters{
		root:  root,
		calls: make(map[string]int),
		hooks: make(map[string]StageHook),
	}
}

// Adapters returns the stage bundle backed by s.
func (s *StubAdapters) Adapters() stage.Adapters {
	return stage.Adapters{
		Analyzer:  stubAnalyzer{s},
		Scripter:  stubScripter{s},
		Capturer:  stubCapturer{s},
		Voicer:    stubVoicer{s},
		Assembler: stubAssembler{s},
	}
}

// SetHook installs fn for the named stage ("analyzing", "voicing", ...).
// A nil fn removes the hook.
func (s *StubAdapters) SetHook(stageName string, fn StageHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.hooks, stageName)
		return
	}
	s.hooks[stageName] = fn
}

// FailStage makes the named stage return err until the hook is cleared.
func (s *StubAdapters) FailStage(stageName string, err error) {
	s.SetHook(stageName, func(context.Context) error { return err })
}

// Calls returns how many times the named stage adapter ran.
func (s *StubAdapters) Calls(stageName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stageName]
}

func (s *StubAdapters) enter(ctx context.Context, stageName string) error {
	s.mu.Lock()
	s.calls[stageName]++
	hook := s.hooks[stageName]
	s.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return nil
}

func (s *StubAdapters) writeArtifact(ctx context.Context, sub, name, body string) (string, error) {
	dir, err := stage.WorkDir(ctx, s.root, sub)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write stub artifact: %w", err)
	}
	return path, nil
}

type stubAnalyzer struct{ s *StubAdapters }

func (a stubAnalyzer) Analyze(ctx context.Context, source demo.Source, rep stage.Reporter) (*demo.AnalysisResult, error) {
	if err := a.s.enter(ctx, "analyzing"); err != nil {
		return nil, err
	}
	stage.OrNop(rep).Report(0.5, "reading repository", 0, 0)
	return &demo.AnalysisResult{
		ProductName: "Demo",
		Tagline:     "Ship demos faster",
		Category:    "developer tool",
		TargetUsers: []string{"developers"},
		Features: []demo.Feature{
			{Name: "CLI", Description: "One command builds a video", Importance: 9, DemoWorthy: true},
			{Name: "Dashboard", Description: "Watch progress live", Importance: 7, DemoWorthy: true},
		},
		TechStack:  []string{"Go"},
		DemoURLs:   []string{source.PrimaryURL()},
		SourceURLs: []string{source.PrimaryURL()},
		AnalyzedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

type stubScripter struct{ s *StubAdapters }

func (sc stubScripter) Script(ctx context.Context, req stage.ScriptRequest, rep stage.Reporter) (*demo.Script, error) {
	if err := sc.s.enter(ctx, "scripting"); err != nil {
		return nil, err
	}
	target := float64(req.TargetLength)
	if target <= 0 {
		target = 90
	}
	third := target / 3
	stage.OrNop(rep).Report(1, "script written", 3, 3)
	return &demo.Script{
		Title:          req.ProjectName,
		Audience:       req.Audience,
		IntroNarration: "Meet Demo.",
		Scenes: []demo.Scene{
			{ID: "scene-1", Type: demo.SceneScreenshot, Narration: "The home page.", Duration: third, URL: req.ProjectURL},
			{ID: "scene-2", Type: demo.SceneTitleCard, Narration: "One command.", Duration: third, VisualContent: "demoforge run"},
			{ID: "scene-3", Type: demo.SceneCodeSnippet, Narration: "Readable config.", Duration: third, VisualContent: "[video]"},
		},
		OutroNarration: "Try it today.",
		CallToAction:   "Star the repo",
		ProjectURL:     req.ProjectURL,
		TotalDuration:  target,
	}, nil
}

type stubCapturer struct{ s *StubAdapters }

func (c stubCapturer) Capture(ctx context.Context, script *demo.Script, rep stage.Reporter) (*demo.CaptureSet, error) {
	if err := c.s.enter(ctx, "capturing"); err != nil {
		return nil, err
	}
	segments := script.Segments()
	counter := stage.NewCounter(rep, len(segments))
	set := &demo.CaptureSet{Artifacts: make(map[string]demo.CaptureArtifact, len(segments))}
	for _, seg := range segments {
		path, err := c.s.writeArtifact(ctx, "captures", seg.ID+".png", "png:"+seg.ID)
		if err != nil {
			return nil, err
		}
		kind := demo.CaptureCard
		if seg.Scene != nil && seg.Scene.NeedsBrowser() {
			kind = demo.CaptureScreenshot
		}
		set.Artifacts[seg.ID] = demo.CaptureArtifact{SegmentID: seg.ID, Path: path, Width: 1920, Height: 1080, Kind: kind}
		counter.Done("captured " + seg.ID)
	}
	return set, nil
}

type stubVoicer struct{ s *StubAdapters }

func (v stubVoicer) Voice(ctx context.Context, script *demo.Script, settings demo.VoiceSettings, rep stage.Reporter) (*demo.VoiceSet, error) {
	if err := v.s.enter(ctx, "voicing"); err != nil {
		return nil, err
	}
	segments := script.Segments()
	counter := stage.NewCounter(rep, len(segments))
	set := &demo.VoiceSet{
		Artifacts: make(map[string]demo.VoiceArtifact, len(segments)),
		Engine:    settings.Engine,
		Language:  settings.Language,
	}
	start := 0.0
	for i, seg := range segments {
		path, err := v.s.writeArtifact(ctx, "voice", seg.ID+".wav", "wav:"+seg.Narration)
		if err != nil {
			return nil, err
		}
		duration := seg.Duration
		if duration <= 0 {
			duration = 2
		}
		set.Artifacts[seg.ID] = demo.VoiceArtifact{
			SegmentID: seg.ID, Path: path, Text: seg.Narration,
			Duration: duration, StartTime: start, Engine: settings.Engine, Voice: settings.Voice,
		}
		set.Cues = append(set.Cues, demo.SubtitleCue{Index: i + 1, Start: start, End: start + duration, Text: seg.Narration})
		start += duration
		counter.Done("voiced " + seg.ID)
	}
	set.TotalDuration = start
	sub, err := v.s.writeArtifact(ctx, "voice", "subtitles.srt", "1\n00:00:00,000 --> 00:00:01,000\nMeet Demo.\n")
	if err != nil {
		return nil, err
	}
	set.SubtitlePath = sub
	return set, nil
}

type stubAssembler struct{ s *StubAdapters }

func (a stubAssembler) Assemble(ctx context.Context, req stage.AssembleRequest, rep stage.Reporter) (*demo.Video, error) {
	if err := a.s.enter(ctx, "assembling"); err != nil {
		return nil, err
	}
	for _, seg := range req.Script.Segments() {
		if _, ok := req.Captures.Artifact(seg.ID); !ok {
			return nil, fmt.Errorf("segment %s has no capture", seg.ID)
		}
		if _, ok := req.Voice.Artifact(seg.ID); !ok {
			return nil, fmt.Errorf("segment %s has no narration audio", seg.ID)
		}
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(req.OutputPath, []byte("mp4"), 0o644); err != nil {
		return nil, err
	}
	stage.OrNop(rep).Report(1, "video assembled", 0, 0)
	return &demo.Video{
		Path:         req.OutputPath,
		Duration:     req.Voice.TotalDuration,
		Width:        1920,
		Height:       1080,
		SizeBytes:    3,
		SubtitlePath: req.Voice.SubtitlePath,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
