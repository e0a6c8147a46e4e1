package stage

import (
	"context"

	"demoforge/internal/demo"
)

// Analyzer turns a source into a structured product analysis.
type Analyzer interface {
	Analyze(ctx context.Context, source demo.Source, reporter Reporter) (*demo.AnalysisResult, error)
}

// ScriptRequest carries everything the scripter needs.
type ScriptRequest struct {
	ProjectID    string
	ProjectName  string
	Analysis     *demo.AnalysisResult
	Audience     demo.Audience
	TargetLength int
	Language     string
	ProjectURL   string
}

// Scripter writes a narrated demo script.
type Scripter interface {
	Script(ctx context.Context, req ScriptRequest, reporter Reporter) (*demo.Script, error)
}

// Capturer produces one visual per script segment.
type Capturer interface {
	Capture(ctx context.Context, script *demo.Script, reporter Reporter) (*demo.CaptureSet, error)
}

// Voicer narrates every script segment.
type Voicer interface {
	Voice(ctx context.Context, script *demo.Script, settings demo.VoiceSettings, reporter Reporter) (*demo.VoiceSet, error)
}

// AssembleRequest carries the upstream artifacts for video assembly.
type AssembleRequest struct {
	Script     *demo.Script
	Captures   *demo.CaptureSet
	Voice      *demo.VoiceSet
	OutputPath string
}

// Assembler renders the final video.
type Assembler interface {
	Assemble(ctx context.Context, req AssembleRequest, reporter Reporter) (*demo.Video, error)
}

// Adapters bundles one implementation per stage.
type Adapters struct {
	Analyzer  Analyzer
	Scripter  Scripter
	Capturer  Capturer
	Voicer    Voicer
	Assembler Assembler
}
