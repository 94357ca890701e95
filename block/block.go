package block

import (
	"context"
)

// Config is the free-form per-node configuration a workflow definition
// attaches to a block instance.
type Config map[string]any

// Block is a single typed unit of work executable within a workflow node.
//
// Execute must not mutate input and must not touch shared state beyond what
// the ExecutionContext exposes. Expected failure modes (network errors,
// not-found lookups) are returned as errors; the engine records them in the
// node result. Blocks that call external services compose the reliability
// primitives (cache, ratelimit, breaker, retry) themselves; the engine does
// not impose those policies.
type Block interface {
	// Type returns the registry key this block is registered under.
	Type() string
	// Execute runs the block against input under the given run context.
	Execute(ctx context.Context, config Config, input any, ec *ExecutionContext) (any, error)
}

// StringOption reads a string config key with a fallback.
func (c Config) StringOption(key, fallback string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntOption reads an integer config key with a fallback. JSON-decoded
// configs carry numbers as float64, so both forms are accepted.
func (c Config) IntOption(key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// BoolOption reads a boolean config key with a fallback.
func (c Config) BoolOption(key string, fallback bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return fallback
}
