package stage

import "context"

// Health is one adapter's readiness as shown by the status command.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks an adapter whose stage would fail if a run reached it.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Degraded marks an adapter that still runs but only through a fallback,
// such as the secondary TTS engine.
func Degraded(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}

// HealthChecker is implemented by adapters that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Health collects readiness in pipeline order from every adapter that
// implements HealthChecker. Adapters without a check are skipped.
func (a Adapters) Health(ctx context.Context) []Health {
	var out []Health
	for _, candidate := range []any{a.Analyzer, a.Scripter, a.Capturer, a.Voicer, a.Assembler} {
		if hc, ok := candidate.(HealthChecker); ok {
			out = append(out, hc.HealthCheck(ctx))
		}
	}
	return out
}
