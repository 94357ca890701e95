package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecutionContext_ReadOnlyCopies(t *testing.T) {
	vars := map[string]string{"source_count": "3"}
	secrets := map[string]string{"clearbit_api_key": "sk-test"}

	ec := NewExecutionContext("wf-1", "exec-1", ModeProduction, vars, secrets, zap.NewNop())

	// Caller-side mutation after construction must not leak into the run.
	vars["source_count"] = "999"
	delete(secrets, "clearbit_api_key")

	v, ok := ec.Variable("source_count")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	s, ok := ec.Secret("clearbit_api_key")
	require.True(t, ok)
	assert.Equal(t, "sk-test", s)

	_, ok = ec.Variable("absent")
	assert.False(t, ok)
}

func TestExecutionContext_Defaults(t *testing.T) {
	ec := NewExecutionContext("wf-1", "exec-1", "", nil, nil, nil)

	assert.Equal(t, ModeProduction, ec.Mode())
	assert.NotNil(t, ec.Logger())
	assert.Equal(t, "wf-1", ec.WorkflowID())
	assert.Equal(t, "exec-1", ec.ExecutionID())
}

func TestExecutionContext_LogSink(t *testing.T) {
	ec := NewExecutionContext("wf-1", "exec-1", ModeTest, nil, nil, zap.NewNop())

	var captured []string
	ec.SetLogSink(func(msg string) { captured = append(captured, msg) })

	ec.Log("fetched 10 contacts")
	ec.Log("resolved 8 emails")

	assert.Equal(t, []string{"fetched 10 contacts", "resolved 8 emails"}, captured)

	// A cleared sink discards further captures without panicking.
	ec.SetLogSink(nil)
	ec.Log("dropped")
	assert.Len(t, captured, 2)
}
