package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a strict JSON schema from v's type. Field docs come from
// `jsonschema_description` tags.
func SchemaFor(v any) *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// CompleteInto runs req and decodes the response into target. The raw content
// is returned so callers can log or persist it.
func CompleteInto(ctx context.Context, c Completer, req Request, target any) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm: no completer configured")
	}
	content, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if err := decodePayload(content, target); err != nil {
		return content, fmt.Errorf("llm: parse payload: %w", err)
	}
	return content, nil
}

// decodePayload parses the JSON value of a model reply into target. Replies
// may wrap it in a Markdown fence or surround it with prose. The first
// complete object or array is used and anything after it is ignored.
func decodePayload(content string, target any) error {
	body := strings.TrimSpace(unfence(content))
	if body == "" {
		return errors.New("empty payload")
	}
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return fmt.Errorf("no JSON value in payload %q", snippet(body))
	}
	if err := json.NewDecoder(strings.NewReader(body[start:])).Decode(target); err != nil {
		return fmt.Errorf("%w (payload %q)", err, snippet(body))
	}
	return nil
}

func unfence(content string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), "```")
	if !ok {
		return content
	}
	// The opening fence line may carry a language tag.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const limit = 160
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
