package blocks

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

// defaultFanoutConcurrency bounds parallel provider calls per fanout node.
const defaultFanoutConcurrency = 4

// Fanout queries several enrichment sources concurrently and merges their
// responses into one map keyed by source name. Config keys:
//
//	sources:     map[name]url (required), the providers to query
//	concurrency: max parallel fetches, default 4
//
// Every source inherits the http_fetch reliability stack. The first source
// error cancels the remaining fetches and fails the node.
type Fanout struct {
	deps Deps
}

func (b *Fanout) Type() string { return "fanout" }

func (b *Fanout) Execute(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
	sources := stringMapOption(config, "sources")
	if len(sources) == 0 {
		return nil, types.NewError(types.ErrValidation, "fanout requires a non-empty sources option")
	}

	concurrency := config.IntOption("concurrency", defaultFanoutConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}

	fetcher := &HTTPFetch{deps: b.deps}

	var mu sync.Mutex
	merged := make(map[string]any, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for name, rawURL := range sources {
		g.Go(func() error {
			out, err := fetcher.Execute(gctx, block.Config{
				"url":   rawURL,
				"cache": config.BoolOption("cache", true),
			}, input, ec)
			if err != nil {
				return fmt.Errorf("source %s: %w", name, err)
			}

			mu.Lock()
			merged[name] = out
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ec.Log(fmt.Sprintf("fanout merged %d source(s)", len(merged)))
	return merged, nil
}
