package enrichflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrichflow/enrichflow/workflow"
)

func TestClient_RunPassthroughChain(t *testing.T) {
	client, err := New()
	require.NoError(t, err)

	definition := []byte(`{
		"workflow_id": "wf-smoke",
		"nodes": [
			{"id": "a", "type": "passthrough"},
			{"id": "b", "type": "passthrough"}
		],
		"edges": [
			{"source": "a", "target": "b"}
		]
	}`)

	result, err := client.Run(context.Background(), definition, map[string]any{"value": 7})
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, result.Status)
	assert.Equal(t, map[string]any{"value": 7}, result.Output)
}

func TestClient_RunRejectsInvalidDefinition(t *testing.T) {
	client, err := New()
	require.NoError(t, err)

	_, err = client.Run(context.Background(), []byte(`{"workflow_id": "wf"}`), nil)
	assert.Error(t, err)
}

func TestClient_CustomBlockViaRegistry(t *testing.T) {
	client, err := New()
	require.NoError(t, err)

	assert.Contains(t, client.Registry().Types(), "http_fetch")
	assert.Contains(t, client.Registry().Types(), "email_classify")
}
