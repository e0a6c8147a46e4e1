package stage

import (
	"context"
	"testing"

	"demoforge/internal/demo"
)

type checkedAnalyzer struct{ health Health }

func (checkedAnalyzer) Analyze(context.Context, demo.Source, Reporter) (*demo.AnalysisResult, error) {
	return &demo.AnalysisResult{}, nil
}

func (a checkedAnalyzer) HealthCheck(context.Context) Health { return a.health }

type checkedVoicer struct{ health Health }

func (checkedVoicer) Voice(context.Context, *demo.Script, demo.VoiceSettings, Reporter) (*demo.VoiceSet, error) {
	return &demo.VoiceSet{}, nil
}

func (v checkedVoicer) HealthCheck(context.Context) Health { return v.health }

type uncheckedAssembler struct{}

func (uncheckedAssembler) Assemble(context.Context, AssembleRequest, Reporter) (*demo.Video, error) {
	return &demo.Video{}, nil
}

func TestAdaptersHealthInPipelineOrder(t *testing.T) {
	adapters := Adapters{
		Voicer:    checkedVoicer{health: Degraded("voice", "missing piper")},
		Analyzer:  checkedAnalyzer{health: Unhealthy("analyzer", "llm not configured")},
		Assembler: uncheckedAssembler{},
	}
	got := adapters.Health(context.Background())
	if len(got) != 2 {
		t.Fatalf("expected two checked adapters, got %+v", got)
	}
	if got[0].Name != "analyzer" || got[0].Ready {
		t.Fatalf("analyzer should come first and be unhealthy, got %+v", got[0])
	}
	if got[1].Name != "voice" || !got[1].Ready || got[1].Detail != "missing piper" {
		t.Fatalf("voice should be ready with a fallback note, got %+v", got[1])
	}
	if h := Healthy("capturer"); !h.Ready || h.Detail != "" {
		t.Fatalf("unexpected healthy record %+v", h)
	}
}
