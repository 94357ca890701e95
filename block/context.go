package block

import (
	"sync"

	"go.uber.org/zap"
)

// Mode selects how blocks perform external work for a run.
type Mode string

const (
	// ModeProduction performs real external calls.
	ModeProduction Mode = "production"
	// ModeDemo synthesizes plausible data without external calls.
	ModeDemo Mode = "demo"
	// ModeTest returns deterministic fixtures for tests.
	ModeTest Mode = "test"
)

// ExecutionContext is the per-run bag of secrets, variables, a logger, and
// the execution mode passed to every block invocation. It is created once
// per workflow run and is read-only to blocks.
type ExecutionContext struct {
	workflowID  string
	executionID string
	mode        Mode
	variables   map[string]string
	secrets     map[string]string
	logger      *zap.Logger

	mu        sync.Mutex
	logSink   func(msg string)
	retrySink func()
}

// NewExecutionContext builds a run context. The variable and secret maps
// are copied so later caller mutations cannot leak into the run.
func NewExecutionContext(workflowID, executionID string, mode Mode, variables, secrets map[string]string, logger *zap.Logger) *ExecutionContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mode == "" {
		mode = ModeProduction
	}

	vars := make(map[string]string, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	secs := make(map[string]string, len(secrets))
	for k, v := range secrets {
		secs[k] = v
	}

	return &ExecutionContext{
		workflowID:  workflowID,
		executionID: executionID,
		mode:        mode,
		variables:   vars,
		secrets:     secs,
		logger: logger.With(
			zap.String("workflow_id", workflowID),
			zap.String("execution_id", executionID),
		),
	}
}

// WorkflowID returns the id of the workflow being run.
func (ec *ExecutionContext) WorkflowID() string { return ec.workflowID }

// ExecutionID returns the unique id of this run.
func (ec *ExecutionContext) ExecutionID() string { return ec.executionID }

// Mode returns the execution mode for this run.
func (ec *ExecutionContext) Mode() Mode { return ec.mode }

// Variable returns the named run variable.
func (ec *ExecutionContext) Variable(key string) (string, bool) {
	v, ok := ec.variables[key]
	return v, ok
}

// Secret returns the named secret (API keys and the like).
func (ec *ExecutionContext) Secret(key string) (string, bool) {
	v, ok := ec.secrets[key]
	return v, ok
}

// Logger returns the run-scoped logger.
func (ec *ExecutionContext) Logger() *zap.Logger { return ec.logger }

// Log appends a message to the current node's log capture and echoes it to
// the run logger at debug level.
func (ec *ExecutionContext) Log(msg string) {
	ec.mu.Lock()
	sink := ec.logSink
	ec.mu.Unlock()
	if sink != nil {
		sink(msg)
	}
	ec.logger.Debug(msg)
}

// SetLogSink redirects Log output, typically to a per-node capture buffer
// owned by the engine. A nil sink discards captures.
func (ec *ExecutionContext) SetLogSink(sink func(msg string)) {
	ec.mu.Lock()
	ec.logSink = sink
	ec.mu.Unlock()
}

// NoteRetry records one retry attempt against the current node. Blocks wire
// this into their retry policy's OnRetry hook so the engine can surface the
// count in the node result.
func (ec *ExecutionContext) NoteRetry() {
	ec.mu.Lock()
	sink := ec.retrySink
	ec.mu.Unlock()
	if sink != nil {
		sink()
	}
}

// SetRetrySink redirects NoteRetry calls, typically to a per-node counter
// owned by the engine.
func (ec *ExecutionContext) SetRetrySink(sink func()) {
	ec.mu.Lock()
	ec.retrySink = sink
	ec.mu.Unlock()
}
