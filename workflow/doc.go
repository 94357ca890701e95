// Package workflow provides the block-graph execution engine.
//
// A workflow Definition is a directed acyclic graph of typed nodes. The
// Engine validates the graph against the block registry, computes a
// deterministic topological order, and executes nodes in dependency order,
// threading each node's output to its successors. The run produces an
// ExecutionResult carrying one NodeResult per node with timing, captured
// logs, and retry counts; the first failing node aborts the remainder of
// the run.
package workflow
