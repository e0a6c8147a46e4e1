// Package llm provides the chat completion clients used for repository
// analysis and script writing.
//
// Two backends implement Completer: Client talks to OpenRouter over plain
// HTTP, and OpenAIClient wraps the official OpenAI SDK. New selects one from
// Config.Provider.
//
// Requests carry a system and user prompt and, optionally, a JSON schema
// reflected with SchemaFor; the provider is asked to constrain output to it.
// Replies are decoded leniently: code fences and prose around the JSON body
// are skipped.
//
// Both backends retry HTTP 408/429/5xx, network timeouts, and empty
// completions with exponential backoff (base 1s, max 10s, 5 attempts by
// default). Retry-After headers are honoured. Context cancellation aborts
// retries immediately.
package llm
