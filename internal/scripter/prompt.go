package scripter

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"demoforge/internal/demo"
	"demoforge/internal/stage"
)

var audienceGuidance = map[demo.Audience]string{
	demo.AudienceInvestor: `The audience is investors. Lead with the problem and the size of the opportunity,
then show traction signals and what makes the product defensible. Keep technical detail light
and end on why now.`,
	demo.AudienceCustomer: `The audience is prospective customers. Speak to outcomes and everyday workflows,
avoid jargon, and show the product doing real work. Every scene should answer "what does this do for me".`,
	demo.AudienceDeveloper: `The audience is developers. Show how quickly they can get started, what the API
or CLI looks like, and how it fits their existing stack. Code snippets are welcome; marketing
language is not.`,
	demo.AudienceTechnical: `The audience is technical decision makers. Cover architecture, integration points,
scalability and operational concerns. Be precise and concrete, and prefer diagrams for system design.`,
}

func buildSystemPrompt(req stage.ScriptRequest, e Enforcer) string {
	a := req.Analysis
	var b strings.Builder
	b.WriteString("You write narration scripts for short product demo videos. Narration is read aloud by a text-to-speech voice, so use short spoken sentences and no markdown.\n\n")
	b.WriteString(audienceGuidance[req.Audience])
	b.WriteString("\n\n## Product\n")
	fmt.Fprintf(&b, "Name: %s\n", a.ProductName)
	if a.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n", a.Tagline)
	}
	if a.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", a.Category)
	}
	if len(a.TargetUsers) > 0 {
		fmt.Fprintf(&b, "Target users: %s\n", strings.Join(a.TargetUsers, ", "))
	}
	if len(a.TechStack) > 0 {
		fmt.Fprintf(&b, "Tech stack: %s\n", strings.Join(a.TechStack, ", "))
	}
	if a.CompetitiveAdvantage != "" {
		fmt.Fprintf(&b, "Competitive advantage: %s\n", a.CompetitiveAdvantage)
	}
	features := a.DemoWorthyFeatures()
	if len(features) == 0 {
		features = a.Features
	}
	if len(features) > 0 {
		b.WriteString("\nFeatures to show:\n")
		for _, f := range features {
			fmt.Fprintf(&b, "- %s (importance %d): %s\n", f.Name, f.Importance, f.Description)
		}
	}
	if len(a.UseCases) > 0 {
		b.WriteString("\nUse cases:\n")
		for _, u := range a.UseCases {
			fmt.Fprintf(&b, "- %s\n", u)
		}
	}
	fmt.Fprintf(&b, "\nThe video runs %d seconds, about %d spoken words.\n", int(e.Target), e.TargetWords())
	if name := languageName(req.Language); name != "" {
		fmt.Fprintf(&b, "Write every narration, title and call to action in %s.\n", name)
	}
	return b.String()
}

func buildUserPrompt(req stage.ScriptRequest, e Enforcer) string {
	urls := "none"
	if req.Analysis != nil && len(req.Analysis.DemoURLs) > 0 {
		urls = strings.Join(req.Analysis.DemoURLs, ", ")
	}
	return fmt.Sprintf(`Create a %d-second demo video script with:
1. A short, catchy title.
2. Intro narration that hooks the viewer in the first five seconds.
3. Between 5 and 10 scenes. Each scene has a unique id, a type (screenshot, title_card, code_snippet or diagram),
   narration, a duration in seconds, and either a url (screenshot scenes) or visual_content (all other types).
4. Outro narration that wraps up with impact.
5. A call to action telling viewers what to do next.

Rules:
- Total narration must be about %d words (%d to %d is acceptable).
- Scenes usually last 8 to 15 seconds and their durations must add up to about %d seconds.
- Screenshot scenes may only use these urls: %s
- For code_snippet scenes put the code in visual_content. For diagram scenes put short labelled
  steps separated by " -> " in visual_content.`,
		int(e.Target), e.TargetWords(), e.MinWords(), e.MaxWords(), int(e.Target), urls)
}

// languageName returns the English display name of tag, or "" for English
// and auto detection.
func languageName(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "auto") {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	if base, _ := parsed.Base(); base.String() == "en" {
		return ""
	}
	return display.English.Tags().Name(parsed)
}
