package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline failure markers. Stage adapters tag their errors with one of these
// so the orchestrator and the HTTP layer can classify failures without string
// matching.
var (
	ErrSourceUnreachable      = errors.New("source unreachable")
	ErrAnalysisIncomplete     = errors.New("analysis incomplete")
	ErrScriptGenerationFailed = errors.New("script generation failed")
	ErrCaptureFailed          = errors.New("capture failed")
	ErrAssemblyFailed         = errors.New("assembly failed")
	ErrCacheCorrupt           = errors.New("cache entry corrupt")
	ErrConcurrentRun          = errors.New("pipeline already running")
	ErrStageTimeout           = errors.New("stage timed out")
	ErrCancelled              = errors.New("pipeline cancelled")
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// markers is ordered from most to least specific; Details reports the first match.
var markers = []error{
	ErrConcurrentRun,
	ErrStageTimeout,
	ErrCancelled,
	ErrSourceUnreachable,
	ErrAnalysisIncomplete,
	ErrScriptGenerationFailed,
	ErrCaptureFailed,
	ErrAssemblyFailed,
	ErrCacheCorrupt,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrExternalTool,
	ErrTransient,
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarizes a classified error for progress snapshots and API
// responses.
type ErrorDetails struct {
	Kind    string
	Message string
	Marker  error
}

// Details classifies err against the known markers. Unmarked errors are
// reported as transient.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	out := ErrorDetails{Kind: kindName(ErrTransient), Marker: ErrTransient, Message: strings.TrimSpace(err.Error())}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			out.Kind = kindName(marker)
			out.Marker = marker
			out.Message = strings.TrimSpace(strings.TrimPrefix(err.Error(), marker.Error()+":"))
			break
		}
	}
	if out.Message == "" {
		out.Message = out.Marker.Error()
	}
	return out
}

// IsRetryable reports whether a failed run is worth re-triggering without
// changing the project configuration.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return false
	default:
		return true
	}
}

func kindName(marker error) string {
	return strings.ReplaceAll(marker.Error(), " ", "_")
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
