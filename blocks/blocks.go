package blocks

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/reliability/breaker"
	"github.com/enrichflow/enrichflow/reliability/cache"
	"github.com/enrichflow/enrichflow/reliability/ratelimit"
	"github.com/enrichflow/enrichflow/reliability/retry"
	"github.com/enrichflow/enrichflow/types"
)

// Deps carries the shared infrastructure the built-in blocks compose around
// outbound calls. One Deps is built at startup and shared by every block
// instance; the reliability primitives inside it are scoped per downstream
// service, not per block.
type Deps struct {
	HTTPClient *http.Client
	Cache      *cache.Cache[any]
	Limiters   *ratelimit.Registry
	Breakers   *breaker.Registry
	RetryBase  retry.Policy
	Logger     *zap.Logger
}

// DefaultDeps builds block dependencies with conservative defaults.
func DefaultDeps(logger *zap.Logger) Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Deps{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Cache:      cache.New[any](cache.DefaultConfig(), logger),
		Limiters:   ratelimit.NewRegistry(ratelimit.Config{MaxRequests: 10, Per: time.Second}, logger),
		Breakers:   breaker.NewRegistry(breaker.DefaultConfig(), nil, logger),
		RetryBase:  *retry.DefaultPolicy(),
		Logger:     logger,
	}
}

// RegisterAll registers every built-in block type against r.
func RegisterAll(r *block.Registry, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	entries := []struct {
		def     block.Definition
		factory block.Factory
	}{
		{block.Definition{Type: "passthrough", Name: "Passthrough", Category: "utility"},
			func() (block.Block, error) { return &Passthrough{}, nil }},
		{block.Definition{Type: "transform", Name: "Transform", Category: "data"},
			func() (block.Block, error) { return &Transform{}, nil }},
		{block.Definition{Type: "email_classify", Name: "Email Classify", Category: "enrichment"},
			func() (block.Block, error) { return &EmailClassify{}, nil }},
		{block.Definition{Type: "http_fetch", Name: "HTTP Fetch", Category: "network"},
			func() (block.Block, error) { return &HTTPFetch{deps: deps}, nil }},
		{block.Definition{Type: "fanout", Name: "Fanout Fetch", Category: "network"},
			func() (block.Block, error) { return &Fanout{deps: deps}, nil }},
	}

	for _, e := range entries {
		if err := r.Register(e.def, e.factory); err != nil {
			return err
		}
	}
	return nil
}

// Passthrough returns its input unchanged. Useful as a join point and in
// workflow definitions under construction.
type Passthrough struct{}

func (b *Passthrough) Type() string { return "passthrough" }

func (b *Passthrough) Execute(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
	return input, nil
}

// Transform reshapes a map input. Config keys:
//
//	pick:   []string, keep only these keys
//	rename: map[old]new, rename keys after picking
//	set:    map[key]value, add static fields last
//
// With no operations configured the input passes through unchanged. The
// input map is never mutated; a reshaped copy is returned.
type Transform struct{}

func (b *Transform) Type() string { return "transform" }

func (b *Transform) Execute(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
	pick := stringSliceOption(config, "pick")
	rename := stringMapOption(config, "rename")
	set, _ := config["set"].(map[string]any)

	if len(pick) == 0 && len(rename) == 0 && len(set) == 0 {
		return input, nil
	}

	in, ok := input.(map[string]any)
	if !ok {
		return nil, types.NewError(types.ErrValidation,
			fmt.Sprintf("transform requires a map input, got %T", input))
	}

	out := make(map[string]any, len(in)+len(set))
	if len(pick) > 0 {
		for _, k := range pick {
			if v, exists := in[k]; exists {
				out[k] = v
			}
		}
	} else {
		for k, v := range in {
			out[k] = v
		}
	}

	for from, to := range rename {
		if v, exists := out[from]; exists {
			delete(out, from)
			out[to] = v
		}
	}

	for k, v := range set {
		out[k] = v
	}
	return out, nil
}

// stringSliceOption reads a []string config key, accepting the []any form
// JSON decoding produces.
func stringSliceOption(config block.Config, key string) []string {
	switch v := config[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// stringMapOption reads a map[string]string config key, accepting the
// map[string]any form JSON decoding produces.
func stringMapOption(config block.Config, key string) map[string]string {
	switch v := config[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
