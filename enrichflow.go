// Package enrichflow provides a top-level convenience entry point for
// running enrichment workflows in-process with minimal boilerplate.
//
// Usage:
//
//	import "github.com/enrichflow/enrichflow"
//
//	client, err := enrichflow.New()
//	result, err := client.Run(ctx, definitionJSON, input)
//
// The client carries the full built-in block library with default
// reliability settings. Embedding applications that need custom tuning
// should wire blocks.Deps, block.Registry, and workflow.Engine directly.
package enrichflow

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/blocks"
	"github.com/enrichflow/enrichflow/workflow"
)

// Client runs workflow definitions against the built-in block library.
type Client struct {
	registry *block.Registry
	engine   *workflow.Engine
	mode     block.Mode
	secrets  map[string]string
	logger   *zap.Logger
}

// Option configures the client created by [New].
type Option func(*Client)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMode sets the execution mode for every run. Defaults to
// [block.ModeProduction].
func WithMode(mode block.Mode) Option {
	return func(c *Client) { c.mode = mode }
}

// WithSecrets supplies the secret map blocks resolve credentials from.
func WithSecrets(secrets map[string]string) Option {
	return func(c *Client) { c.secrets = secrets }
}

// New creates a client with the built-in block library registered and
// default reliability settings.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		mode:   block.ModeProduction,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry = block.NewRegistry()
	if err := blocks.RegisterAll(c.registry, blocks.DefaultDeps(c.logger)); err != nil {
		return nil, err
	}
	c.engine = workflow.NewEngine(c.registry, c.logger)
	return c, nil
}

// Run parses rawDefinition as a workflow definition JSON document and
// executes it with the given external input.
func (c *Client) Run(ctx context.Context, rawDefinition []byte, input any) (*workflow.ExecutionResult, error) {
	def, err := workflow.ParseDefinition(rawDefinition)
	if err != nil {
		return nil, err
	}
	return c.RunDefinition(ctx, def, input)
}

// RunDefinition executes an already-parsed workflow definition.
func (c *Client) RunDefinition(ctx context.Context, def *workflow.Definition, input any) (*workflow.ExecutionResult, error) {
	ec := block.NewExecutionContext(def.WorkflowID, uuid.NewString(), c.mode, nil, c.secrets, c.logger)
	return c.engine.Execute(ctx, def, input, ec, nil)
}

// Registry exposes the client's block registry so embedders can add
// custom block types before running definitions that use them.
func (c *Client) Registry() *block.Registry {
	return c.registry
}
