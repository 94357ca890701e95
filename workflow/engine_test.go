package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

func newRunContext() *block.ExecutionContext {
	return block.NewExecutionContext("wf-test", "exec-test", block.ModeTest, nil, nil, zap.NewNop())
}

func TestEngine_LinearChainThreadsOutputs(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "append", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		return input.(string) + config.StringOption("suffix", "?"), nil
	})

	def := &Definition{WorkflowID: "wf-chain",
		Nodes: []Node{
			{ID: "first", Type: "append", Config: block.Config{"suffix": "-a"}},
			{ID: "second", Type: "append", Config: block.Config{"suffix": "-b"}},
			{ID: "third", Type: "append", Config: block.Config{"suffix": "-c"}},
		},
		Edges: []Edge{
			{Source: "first", Target: "second"},
			{Source: "second", Target: "third"},
		},
	}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(context.Background(), def, "in", newRunContext(), nil)

	require.NoError(t, err)
	assert.Equal(t, RunCompleted, result.Status)
	assert.Equal(t, "in-a-b-c", result.Output)
	assert.Equal(t, 3, result.CompletedNodes)
	assert.Equal(t, 3, result.TotalNodes)

	second, ok := result.NodeResult("second")
	require.True(t, ok)
	assert.Equal(t, "in-a", second.Input)
	assert.Equal(t, "in-a-b", second.Output)
	assert.Equal(t, NodeCompleted, second.Status)
}

func TestEngine_RootNodesReceiveExternalInput(t *testing.T) {
	r := block.NewRegistry()
	var seen []any
	registerStub(t, r, "record", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		seen = append(seen, input)
		return input, nil
	})

	def := &Definition{WorkflowID: "wf-roots",
		Nodes: []Node{{ID: "r1", Type: "record"}, {ID: "r2", Type: "record"}},
	}

	engine := NewEngine(r, zap.NewNop())
	_, err := engine.Execute(context.Background(), def, map[string]any{"id": 1}, newRunContext(), nil)

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1], "both roots receive the workflow's external input")
}

func TestEngine_MultiPredecessorNamedInputMerge(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "emit", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		return config.StringOption("value", ""), nil
	})
	var mergeInput any
	registerStub(t, r, "merge", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		mergeInput = input
		return input, nil
	})

	def := &Definition{WorkflowID: "wf-merge",
		Nodes: []Node{
			{ID: "left", Type: "emit", Config: block.Config{"value": "emails"}},
			{ID: "right", Type: "emit", Config: block.Config{"value": "phones"}},
			{ID: "join", Type: "merge"},
		},
		Edges: []Edge{
			{Source: "left", Target: "join"},
			{Source: "right", Target: "join"},
		},
	}

	engine := NewEngine(r, zap.NewNop())
	_, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)
	require.NoError(t, err)

	merged, ok := mergeInput.(map[string]any)
	require.True(t, ok, "merge node input should be keyed by predecessor id")
	assert.Equal(t, "emails", merged["left"])
	assert.Equal(t, "phones", merged["right"])
}

func TestEngine_FirstFailureAbortsRun(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "ok", nil)
	registerStub(t, r, "fail", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		return nil, errors.New("provider returned 503")
	})

	def := &Definition{WorkflowID: "wf-fail",
		Nodes: []Node{
			{ID: "a", Type: "ok"},
			{ID: "b", Type: "fail"},
			{ID: "c", Type: "ok"},
		},
		Edges: []Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}},
	}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)

	require.Error(t, err)
	assert.Equal(t, types.ErrExecution, types.GetErrorCode(err))
	assert.Equal(t, RunFailed, result.Status)
	assert.Contains(t, result.Error, "node b failed")
	assert.Contains(t, result.Error, "provider returned 503")

	// Partial results stay attached for diagnostics.
	a, _ := result.NodeResult("a")
	assert.Equal(t, NodeCompleted, a.Status)
	b, _ := result.NodeResult("b")
	assert.Equal(t, NodeFailed, b.Status)
	c, _ := result.NodeResult("c")
	assert.Equal(t, NodeSkipped, c.Status)
	assert.Equal(t, 1, result.CompletedNodes)
}

func TestEngine_UnregisteredTypeFailsValidation(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "ok", nil)

	def := &Definition{WorkflowID: "wf-unknown",
		Nodes: []Node{{ID: "a", Type: "nonexistent.block"}},
	}

	engine := NewEngine(r, zap.NewNop())
	_, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)

	require.Error(t, err)
	assert.Equal(t, types.ErrBlockNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "nonexistent.block")
}

func TestEngine_CancellationBetweenNodes(t *testing.T) {
	r := block.NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	registerStub(t, r, "cancelling", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		cancel() // cancel mid-run; the engine notices before the next node
		return input, nil
	})
	registerStub(t, r, "ok", nil)

	def := &Definition{WorkflowID: "wf-cancel",
		Nodes: []Node{{ID: "a", Type: "cancelling"}, {ID: "b", Type: "ok"}},
		Edges: []Edge{{Source: "a", Target: "b"}},
	}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(ctx, def, nil, newRunContext(), nil)

	require.Error(t, err)
	assert.Equal(t, types.ErrCancelled, types.GetErrorCode(err))
	assert.Equal(t, RunCancelled, result.Status)
	b, _ := result.NodeResult("b")
	assert.Equal(t, NodeSkipped, b.Status)
}

func TestEngine_ProgressReporting(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "ok", nil)

	def := linearDefinition("a", "b", "c", "d")
	for i := range def.Nodes {
		def.Nodes[i].Type = "ok"
	}

	var progress [][2]int
	engine := NewEngine(r, zap.NewNop())
	_, err := engine.Execute(context.Background(), def, nil, newRunContext(), func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	})

	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, progress)
}

func TestEngine_CapturesLogsAndRetries(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "chatty", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		ec.Log("looked up profile")
		ec.NoteRetry()
		ec.NoteRetry()
		ec.Log("second attempt succeeded")
		return input, nil
	})

	def := &Definition{WorkflowID: "wf-logs", Nodes: []Node{{ID: "a", Type: "chatty"}}}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)
	require.NoError(t, err)

	a, _ := result.NodeResult("a")
	assert.Equal(t, []string{"looked up profile", "second attempt succeeded"}, a.Logs)
	assert.Equal(t, 2, a.RetryCount)
	assert.False(t, a.StartTime.IsZero())
	assert.False(t, a.EndTime.Before(a.StartTime))
}

func TestEngine_BlockPanicContained(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "panics", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		panic("nil map write")
	})

	def := &Definition{WorkflowID: "wf-panic", Nodes: []Node{{ID: "a", Type: "panics"}}}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)

	require.Error(t, err)
	assert.Equal(t, RunFailed, result.Status)
	a, _ := result.NodeResult("a")
	assert.Equal(t, NodeFailed, a.Status)
	assert.Contains(t, a.Error, "panicked")
}

func TestEngine_NodeTimingOrderedByDependency(t *testing.T) {
	r := block.NewRegistry()
	registerStub(t, r, "slow", func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return input, nil
	})

	def := linearDefinition("a", "b", "c")
	for i := range def.Nodes {
		def.Nodes[i].Type = "slow"
	}

	engine := NewEngine(r, zap.NewNop())
	result, err := engine.Execute(context.Background(), def, nil, newRunContext(), nil)
	require.NoError(t, err)

	preds := def.predecessors()
	for _, nr := range result.NodeResults {
		for _, p := range preds[nr.NodeID] {
			pr, ok := result.NodeResult(p)
			require.True(t, ok)
			assert.False(t, nr.StartTime.Before(pr.EndTime),
				"node %s started before predecessor %s completed", nr.NodeID, p)
		}
	}
}
