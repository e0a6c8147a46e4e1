package voice

import (
	"strings"
	"testing"

	"demoforge/internal/demo"
)

func TestDecisionTableResolve(t *testing.T) {
	tests := []struct {
		name         string
		settings     demo.VoiceSettings
		wantEngine   string
		wantLanguage string
		wantVoice    string
		wantFallback bool
	}{
		{
			name:         "kokoro english",
			settings:     demo.VoiceSettings{Engine: "kokoro", Language: "en"},
			wantEngine:   EngineKokoro,
			wantLanguage: "en",
			wantVoice:    "af_bella",
		},
		{
			name:         "kokoro british male",
			settings:     demo.VoiceSettings{Engine: "kokoro", Language: "en-GB", Voice: "bm"},
			wantEngine:   EngineKokoro,
			wantLanguage: "en",
			wantVoice:    "bm_george",
		},
		{
			name:         "kokoro spanish falls back to edge",
			settings:     demo.VoiceSettings{Engine: "kokoro", Language: "es", Voice: "af"},
			wantEngine:   EngineEdge,
			wantLanguage: "es",
			wantVoice:    "es-ES-ElviraNeural",
			wantFallback: true,
		},
		{
			name:         "pocket without sample",
			settings:     demo.VoiceSettings{Engine: "pocket", Language: "en", Gender: "male"},
			wantEngine:   EngineEdge,
			wantLanguage: "en",
			wantVoice:    "en-US-GuyNeural",
			wantFallback: true,
		},
		{
			name:         "edge german male",
			settings:     demo.VoiceSettings{Engine: "edge", Language: "de", Gender: "male"},
			wantEngine:   EngineEdge,
			wantLanguage: "de",
			wantVoice:    "de-DE-ConradNeural",
		},
		{
			name:         "edge explicit voice kept",
			settings:     demo.VoiceSettings{Engine: "edge", Language: "en", Voice: "en-GB-SoniaNeural"},
			wantEngine:   EngineEdge,
			wantLanguage: "en",
			wantVoice:    "en-GB-SoniaNeural",
		},
		{
			name:         "traditional chinese",
			settings:     demo.VoiceSettings{Engine: "edge", Language: "zh-TW"},
			wantEngine:   EngineEdge,
			wantLanguage: "zh",
			wantVoice:    "zh-TW-HsiaoChenNeural",
		},
		{
			name:         "unsupported language ends on english default",
			settings:     demo.VoiceSettings{Engine: "kokoro", Language: "sw"},
			wantEngine:   EngineEdge,
			wantLanguage: "en",
			wantVoice:    "en-US-AriaNeural",
			wantFallback: true,
		},
		{
			name:         "unknown engine",
			settings:     demo.VoiceSettings{Engine: "festival", Language: "fr"},
			wantEngine:   EngineEdge,
			wantLanguage: "en",
			wantVoice:    "en-US-AriaNeural",
			wantFallback: true,
		},
	}

	table := NewDecisionTable()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Resolve(tt.settings)
			if got.Engine != tt.wantEngine || got.Language != tt.wantLanguage || got.Voice != tt.wantVoice {
				t.Fatalf("got engine=%s language=%s voice=%s, want %s/%s/%s (reason %q)",
					got.Engine, got.Language, got.Voice, tt.wantEngine, tt.wantLanguage, tt.wantVoice, got.Reason)
			}
			if got.Fallback != tt.wantFallback {
				t.Fatalf("fallback = %v, want %v (reason %q)", got.Fallback, tt.wantFallback, got.Reason)
			}
			if tt.wantFallback && got.Reason == "" {
				t.Fatal("expected a reason for the fallback")
			}
		})
	}
}

func TestPocketWithSampleClones(t *testing.T) {
	got := NewDecisionTable().Resolve(demo.VoiceSettings{Engine: "pocket", Language: "en", SamplePath: "/voices/me.wav"})
	if got.Engine != EnginePocket || got.Sample != "/voices/me.wav" || got.Fallback {
		t.Fatalf("unexpected choice %+v", got)
	}
}

func TestFallbackReasonNamesEachHop(t *testing.T) {
	got := NewDecisionTable().Resolve(demo.VoiceSettings{Engine: "pocket", Language: "sw"})
	for _, want := range []string{"pocket does not support", "edge does not support", "default English"} {
		if !strings.Contains(got.Reason, want) {
			t.Fatalf("reason %q missing %q", got.Reason, want)
		}
	}
}
