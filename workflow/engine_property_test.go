package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
)

// randomDAG builds a definition with nodeCount nodes and edges drawn from
// edgeMask. Edges only ever point from a lower index to a higher one, so
// the graph is acyclic by construction.
func randomDAG(nodeCount int, edgeMask []bool) *Definition {
	def := &Definition{WorkflowID: "wf-prop"}
	for i := 0; i < nodeCount; i++ {
		def.Nodes = append(def.Nodes, Node{ID: fmt.Sprintf("n%02d", i), Type: "noop"})
	}

	k := 0
	for i := 0; i < nodeCount; i++ {
		for j := i + 1; j < nodeCount; j++ {
			if k < len(edgeMask) && edgeMask[k] {
				def.Edges = append(def.Edges, Edge{
					Source: def.Nodes[i].ID,
					Target: def.Nodes[j].ID,
				})
			}
			k++
		}
	}
	return def
}

func TestProperty_TopologicalExecutionOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every node executes after all of its predecessors", prop.ForAll(
		func(nodeCount int, edgeMask []bool) bool {
			def := randomDAG(nodeCount, edgeMask)

			r := block.NewRegistry()
			var executed []string
			err := r.Register(block.Definition{Type: "noop"}, func() (block.Block, error) {
				return &stubBlock{typeKey: "noop", fn: func(ctx context.Context, config block.Config, input any, ec *block.ExecutionContext) (any, error) {
					return input, nil
				}}, nil
			})
			if err != nil {
				return false
			}

			engine := NewEngine(r, zap.NewNop())
			ec := block.NewExecutionContext("wf-prop", "exec-prop", block.ModeTest, nil, nil, zap.NewNop())
			result, err := engine.Execute(context.Background(), def, nil, ec, nil)
			if err != nil {
				return false
			}

			for _, nr := range result.NodeResults {
				executed = append(executed, nr.NodeID)
			}

			pos := make(map[string]int, len(executed))
			for i, id := range executed {
				pos[id] = i
			}
			for _, e := range def.Edges {
				if pos[e.Source] >= pos[e.Target] {
					return false
				}
			}
			return result.CompletedNodes == len(def.Nodes)
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("cyclic graphs are rejected before execution", prop.ForAll(
		func(nodeCount int) bool {
			// Close a linear chain into a ring.
			def := randomDAG(nodeCount, nil)
			for i := 1; i < nodeCount; i++ {
				def.Edges = append(def.Edges, Edge{Source: def.Nodes[i-1].ID, Target: def.Nodes[i].ID})
			}
			def.Edges = append(def.Edges, Edge{Source: def.Nodes[nodeCount-1].ID, Target: def.Nodes[0].ID})

			_, err := topologicalOrder(def)
			return err != nil
		},
		gen.IntRange(2, 8),
	))

	properties.TestingRun(t)
}
