package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient implements Completer on the official OpenAI SDK. It honours
// the same retry policy as Client; the SDK's own retries are disabled.
type OpenAIClient struct {
	client openai.Client
	model  string
	hasKey bool
	retry  retryPolicy
}

// NewOpenAIClient constructs an SDK-backed client. BaseURL is optional and
// allows OpenAI-compatible gateways.
func NewOpenAIClient(cfg Config, opts ...Option) *OpenAIClient {
	o := buildOptions(cfg, opts)
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.timeout()),
		option.WithHTTPClient(o.httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(base))
	}
	policy := o.retry
	policy.statusOf = openAIStatus
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAIClient{
		client: openai.NewClient(sdkOpts...),
		model:  model,
		hasKey: strings.TrimSpace(cfg.APIKey) != "",
		retry:  policy,
	}
}

// Complete issues a chat completion constrained to req.Schema when present.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	const op = "openai complete"
	if err := req.validate(op); err != nil {
		return "", err
	}
	if !c.hasKey {
		return "", fmt.Errorf("%s: api key required", op)
	}
	return c.retry.do(ctx, op, func() (string, error) { return c.completeOnce(ctx, req, op) })
}

// HealthCheck verifies the API key and model with a trivial JSON request.
func (c *OpenAIClient) HealthCheck(ctx context.Context) error {
	if !c.hasKey {
		return errors.New("openai health: api key required")
	}
	content, err := c.retry.do(ctx, "openai health", func() (string, error) {
		return c.completeOnce(ctx, healthRequest, "openai health")
	})
	if err != nil {
		return err
	}
	return checkHealthPayload(content)
}

func (c *OpenAIClient) completeOnce(ctx context.Context, req Request, op string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(strings.TrimSpace(req.System)),
			openai.UserMessage(strings.TrimSpace(req.User)),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(req.Temperature),
	}
	if req.Schema != nil {
		name := strings.TrimSpace(req.SchemaName)
		if name == "" {
			name = "structured_response"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        name,
					Description: openai.String("Structured data response"),
					Schema:      req.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(completion.Choices) == 0 {
		return "", &emptyContentError{Op: op, Snippet: "<no choices>"}
	}
	choice := completion.Choices[0]
	if content := strings.TrimSpace(choice.Message.Content); content != "" {
		return content, nil
	}
	return "", &emptyContentError{
		Op:           op,
		FinishReason: string(choice.FinishReason),
		Refusal:      choice.Message.Refusal,
		Snippet:      snippet(completion.RawJSON()),
	}
}

func openAIStatus(err error) (int, time.Duration, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return 0, 0, false
	}
	var retryAfter time.Duration
	if apiErr.Response != nil {
		retryAfter, _ = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return apiErr.StatusCode, retryAfter, true
}
