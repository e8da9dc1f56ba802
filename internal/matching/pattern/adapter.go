// Package pattern is the optional instrumentation seam around the matching
// path. The engine calls whatever Adapter it was wired with; absence is
// modelled by NoopAdapter so the engine control flow never branches on
// whether instrumentation exists.
package pattern

import (
	"context"
)

// Well-known pattern names applied by the engine.
const (
	PatternValidation = "validation"
	PatternTiming     = "timing"
	PatternCaching    = "caching"
)

// Adapter applies a named instrumentation pattern to a context payload and
// returns the (possibly enriched) payload. A failing adapter must never
// break the matching path; callers log and continue.
type Adapter interface {
	Name() string
	Apply(ctx context.Context, patternName string, payload map[string]any) (map[string]any, error)
}

// NoopAdapter is the null-object default: pass-through results, zero
// overhead, semantically neutral.
type NoopAdapter struct{}

func (NoopAdapter) Name() string { return "noop" }

func (NoopAdapter) Apply(_ context.Context, _ string, payload map[string]any) (map[string]any, error) {
	return payload, nil
}
