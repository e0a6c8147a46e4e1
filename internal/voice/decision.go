package voice

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"demoforge/internal/demo"
)

// Engine names.
const (
	EngineKokoro = "kokoro"
	EngineEdge   = "edge"
	EnginePocket = "pocket"
)

// Rule declares what an engine can narrate and where to go when it cannot.
type Rule struct {
	Languages   []language.Tag
	Fallback    string
	NeedsSample bool
}

// DecisionTable maps engine names to rules. Chains that never find a
// supporting engine end on the default engine with an English voice.
type DecisionTable struct {
	rules         map[string]Rule
	defaultEngine string
}

// Choice is the resolved engine, locale, and voice for one request.
type Choice struct {
	Engine    string
	Requested string
	Language  string
	Locale    string
	Voice     string
	Sample    string
	Fallback  bool
	Reason    string
}

// NewDecisionTable returns the standard engine table.
func NewDecisionTable() *DecisionTable {
	english := []language.Tag{language.AmericanEnglish, language.BritishEnglish}
	return &DecisionTable{
		rules: map[string]Rule{
			EngineKokoro: {Languages: english, Fallback: EngineEdge},
			EnginePocket: {Languages: english, Fallback: EngineEdge, NeedsSample: true},
			EngineEdge:   {Languages: edgeLocales()},
		},
		defaultEngine: EngineEdge,
	}
}

// Engines lists the engine names the table knows.
func (t *DecisionTable) Engines() []string {
	return []string{EngineKokoro, EngineEdge, EnginePocket}
}

// Resolve walks the fallback chain from settings.Engine until an engine
// supports settings.Language (and has a voice sample when it needs one).
// settings.Language must already be concrete; "auto" is resolved by the caller.
func (t *DecisionTable) Resolve(settings demo.VoiceSettings) Choice {
	requested := strings.ToLower(strings.TrimSpace(settings.Engine))
	if requested == "" {
		requested = t.defaultEngine
	}
	tag, err := language.Parse(strings.TrimSpace(settings.Language))
	if err != nil || tag == language.Und {
		tag = language.English
	}

	var reasons []string
	visited := make(map[string]bool)
	engine := requested
	for engine != "" && !visited[engine] {
		visited[engine] = true
		rule, ok := t.rules[engine]
		if !ok {
			reasons = append(reasons, fmt.Sprintf("unknown engine %q", engine))
			break
		}
		_, idx, conf := language.NewMatcher(rule.Languages).Match(tag)
		switch {
		case conf < language.High:
			reasons = append(reasons, fmt.Sprintf("%s does not support %s", engine, tag))
		case rule.NeedsSample && strings.TrimSpace(settings.SamplePath) == "":
			reasons = append(reasons, engine+" needs a voice sample")
		default:
			return t.choose(settings, requested, engine, tag, rule.Languages[idx], idx, reasons)
		}
		engine = rule.Fallback
	}

	reasons = append(reasons, "using default English voice")
	locale := edgeVoices[0].locale
	return Choice{
		Engine:    t.defaultEngine,
		Requested: requested,
		Language:  "en",
		Locale:    locale,
		Voice:     edgeVoices[0].voice(settings.Gender),
		Fallback:  true,
		Reason:    strings.Join(reasons, "; "),
	}
}

func (t *DecisionTable) choose(settings demo.VoiceSettings, requested, engine string, tag, matched language.Tag, idx int, reasons []string) Choice {
	base, _ := tag.Base()
	c := Choice{
		Engine:    engine,
		Requested: requested,
		Language:  base.String(),
		Locale:    matched.String(),
		Fallback:  engine != requested,
		Reason:    strings.Join(reasons, "; "),
	}
	keep := strings.TrimSpace(settings.Voice) != "" && engine == requested
	switch engine {
	case EngineEdge:
		if keep {
			c.Voice = strings.TrimSpace(settings.Voice)
		} else {
			c.Voice = edgeVoices[idx].voice(settings.Gender)
		}
	case EngineKokoro:
		voice := ""
		if keep {
			voice = settings.Voice
		}
		c.Voice = kokoroVoice(voice, settings.Gender)
	case EnginePocket:
		c.Sample = strings.TrimSpace(settings.SamplePath)
		c.Voice = "clone"
	}
	return c
}
