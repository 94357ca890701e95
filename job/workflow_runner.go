package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
	"github.com/enrichflow/enrichflow/workflow"
)

// WorkflowRunner builds the Runner for WORKFLOW jobs: it parses the job
// payload's workflow definition and drives the engine, mapping node
// completion onto job progress. Expected payload shape:
//
//	workflow:  the workflow definition document (required)
//	input:     external input handed to root nodes
//	mode:      production | demo | test (default production)
//	variables: map of run variables
//	secrets:   map of run secrets
func WorkflowRunner(engine *workflow.Engine, logger *zap.Logger) Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, j *Job, update ProgressFunc) (any, error) {
		def, err := definitionFromPayload(j.Payload)
		if err != nil {
			return nil, err
		}

		ec := block.NewExecutionContext(
			def.WorkflowID,
			uuid.NewString(),
			block.Mode(stringField(j.Payload, "mode")),
			stringMapField(j.Payload, "variables"),
			stringMapField(j.Payload, "secrets"),
			logger,
		)

		result, err := engine.Execute(ctx, def, j.Payload["input"], ec, func(completed, total int) {
			update(float64(completed)/float64(total)*100,
				fmt.Sprintf("completed %d/%d nodes", completed, total))
		})
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}

// definitionFromPayload decodes the payload's workflow field, which arrives
// either as a decoded JSON object or as a raw JSON string.
func definitionFromPayload(payload map[string]any) (*workflow.Definition, error) {
	raw, ok := payload["workflow"]
	if !ok {
		return nil, types.NewError(types.ErrValidation, "job payload has no workflow definition")
	}

	switch v := raw.(type) {
	case string:
		return workflow.ParseDefinition([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, types.NewError(types.ErrValidation, "job payload workflow field is not serializable").
				WithCause(err)
		}
		return workflow.ParseDefinition(data)
	}
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func stringMapField(payload map[string]any, key string) map[string]string {
	switch v := payload[key].(type) {
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
