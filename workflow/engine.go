package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

// NodeStatus is the per-node state machine:
// pending -> running -> completed | failed | skipped.
type NodeStatus string

const (
	NodePending   NodeStatus = "pending"
	NodeRunning   NodeStatus = "running"
	NodeCompleted NodeStatus = "completed"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

// RunStatus is the overall outcome of one workflow run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// NodeResult records one node execution within a run. It is owned by the
// run's ExecutionResult and never shared across runs.
type NodeResult struct {
	NodeID        string        `json:"node_id"`
	BlockType     string        `json:"block_type"`
	Status        NodeStatus    `json:"status"`
	Input         any           `json:"input,omitempty"`
	Output        any           `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	RetryCount    int           `json:"retry_count"`
	Logs          []string      `json:"logs,omitempty"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
}

// ExecutionResult is the structured outcome of one workflow run, including
// the partial node results produced before a failure.
type ExecutionResult struct {
	WorkflowID     string        `json:"workflow_id"`
	ExecutionID    string        `json:"execution_id"`
	Status         RunStatus     `json:"status"`
	Output         any           `json:"output,omitempty"`
	Error          string        `json:"error,omitempty"`
	NodeResults    []*NodeResult `json:"node_results"`
	CompletedNodes int           `json:"completed_nodes"`
	TotalNodes     int           `json:"total_nodes"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
}

// NodeResult returns the recorded result for a node id.
func (r *ExecutionResult) NodeResult(nodeID string) (*NodeResult, bool) {
	for _, nr := range r.NodeResults {
		if nr.NodeID == nodeID {
			return nr, true
		}
	}
	return nil, false
}

// ProgressFunc observes run progress as completed node count over total.
type ProgressFunc func(completed, total int)

// Engine executes workflow definitions in dependency order. It is
// stateless across runs and safe for concurrent use.
type Engine struct {
	registry *block.Registry
	logger   *zap.Logger
}

// NewEngine creates a workflow engine bound to a block registry.
func NewEngine(registry *block.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		logger:   logger.With(zap.String("component", "workflow_engine")),
	}
}

// Execute validates def and runs its nodes in topological order, threading
// each node's output to its successors. Root nodes (no incoming edges)
// receive input. A node with several predecessors receives a map of
// predecessor node id to output (named-input merge). The first failing node
// aborts the remaining run; results already produced stay attached for
// diagnostics. Cancellation via ctx is honored between nodes.
func (e *Engine) Execute(ctx context.Context, def *Definition, input any, ec *block.ExecutionContext, onProgress ProgressFunc) (*ExecutionResult, error) {
	if err := Validate(def, e.registry); err != nil {
		return nil, err
	}

	order, err := topologicalOrder(def)
	if err != nil {
		return nil, err
	}

	tracer := otel.Tracer("enrichflow/workflow")
	ctx, runSpan := tracer.Start(ctx, "workflow.execute")
	runSpan.SetAttributes(
		attribute.String("workflow.id", def.WorkflowID),
		attribute.String("workflow.execution_id", ec.ExecutionID()),
		attribute.Int("workflow.nodes", len(order)),
	)
	defer runSpan.End()

	e.logger.Info("starting workflow run",
		zap.String("workflow_id", def.WorkflowID),
		zap.String("execution_id", ec.ExecutionID()),
		zap.Int("nodes", len(order)),
	)

	result := &ExecutionResult{
		WorkflowID:  def.WorkflowID,
		ExecutionID: ec.ExecutionID(),
		Status:      RunCompleted,
		TotalNodes:  len(order),
		StartTime:   time.Now(),
		NodeResults: make([]*NodeResult, 0, len(order)),
	}

	preds := def.predecessors()
	outputs := make(map[string]any, len(order))
	var lastOutput any = input

	for i, nodeID := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.skipRemaining(def, result, order[i:])
			result.Status = RunCancelled
			result.Error = fmt.Sprintf("run cancelled before node %s: %v", nodeID, ctxErr)
			result.EndTime = time.Now()
			runSpan.SetStatus(codes.Error, "cancelled")
			return result, types.NewError(types.ErrCancelled, result.Error).WithCause(ctxErr)
		}

		node, _ := def.Node(nodeID)
		nodeInput := e.resolveInput(node.ID, preds, outputs, input)

		nr := e.executeNode(ctx, tracer, node, nodeInput, ec)
		result.NodeResults = append(result.NodeResults, nr)

		if nr.Status != NodeCompleted {
			e.skipRemaining(def, result, order[i+1:])
			result.Status = RunFailed
			result.Error = fmt.Sprintf("node %s failed: %s", node.ID, nr.Error)
			result.EndTime = time.Now()
			runSpan.SetStatus(codes.Error, result.Error)

			e.logger.Error("workflow run failed",
				zap.String("workflow_id", def.WorkflowID),
				zap.String("execution_id", ec.ExecutionID()),
				zap.String("node_id", node.ID),
				zap.String("error", nr.Error),
			)
			return result, types.NewError(types.ErrExecution, result.Error)
		}

		outputs[node.ID] = nr.Output
		lastOutput = nr.Output
		result.CompletedNodes++
		if onProgress != nil {
			onProgress(result.CompletedNodes, result.TotalNodes)
		}
	}

	result.Output = lastOutput
	result.EndTime = time.Now()
	runSpan.SetStatus(codes.Ok, "")

	e.logger.Info("workflow run completed",
		zap.String("workflow_id", def.WorkflowID),
		zap.String("execution_id", ec.ExecutionID()),
		zap.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result, nil
}

// resolveInput builds a node's input from its predecessors: the external
// input for roots, the sole predecessor's output for linear chains, and a
// map keyed by predecessor node id for merge nodes.
func (e *Engine) resolveInput(nodeID string, preds map[string][]string, outputs map[string]any, external any) any {
	ps := preds[nodeID]
	switch len(ps) {
	case 0:
		return external
	case 1:
		return outputs[ps[0]]
	default:
		merged := make(map[string]any, len(ps))
		for _, p := range ps {
			merged[p] = outputs[p]
		}
		return merged
	}
}

// executeNode runs one node, capturing timing, logs, and retry count.
// Block panics are contained and surface as node failures.
func (e *Engine) executeNode(ctx context.Context, tracer trace.Tracer, node *Node, input any, ec *block.ExecutionContext) (nr *NodeResult) {
	nr = &NodeResult{
		NodeID:    node.ID,
		BlockType: node.Type,
		Status:    NodeRunning,
		Input:     input,
		StartTime: time.Now(),
	}

	ec.SetLogSink(func(msg string) { nr.Logs = append(nr.Logs, msg) })
	ec.SetRetrySink(func() { nr.RetryCount++ })
	defer ec.SetLogSink(nil)
	defer ec.SetRetrySink(nil)

	ctx, span := tracer.Start(ctx, "workflow.node")
	span.SetAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.block_type", node.Type),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			nr.Status = NodeFailed
			nr.Error = fmt.Sprintf("block panicked: %v", rec)
		}
		nr.EndTime = time.Now()
		nr.ExecutionTime = nr.EndTime.Sub(nr.StartTime)
		if nr.Status == NodeFailed {
			span.SetStatus(codes.Error, nr.Error)
		}
	}()

	b, err := e.registry.Create(node.Type)
	if err != nil {
		nr.Status = NodeFailed
		nr.Error = err.Error()
		return nr
	}

	e.logger.Debug("executing node",
		zap.String("node_id", node.ID),
		zap.String("block_type", node.Type),
	)

	output, err := b.Execute(ctx, node.Config, input, ec)
	if err != nil {
		nr.Status = NodeFailed
		nr.Error = err.Error()
		return nr
	}

	nr.Status = NodeCompleted
	nr.Output = output
	return nr
}

func (e *Engine) skipRemaining(def *Definition, result *ExecutionResult, remaining []string) {
	for _, nodeID := range remaining {
		node, _ := def.Node(nodeID)
		result.NodeResults = append(result.NodeResults, &NodeResult{
			NodeID:    nodeID,
			BlockType: node.Type,
			Status:    NodeSkipped,
		})
	}
}
