package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

// Node is a single processing step in a workflow definition.
type Node struct {
	// ID is unique within the workflow.
	ID string `json:"id"`
	// Type is the block registry key to execute.
	Type string `json:"type"`
	// Name is a human-readable label.
	Name string `json:"name,omitempty"`
	// Config is the block-specific configuration.
	Config block.Config `json:"config,omitempty"`
}

// Edge is a directed dependency between two nodes.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Definition is the serializable description of a workflow: a directed
// acyclic graph of typed nodes. It is the persisted and transported form
// consumed from external callers.
type Definition struct {
	WorkflowID string `json:"workflow_id"`
	Version    int    `json:"version,omitempty"`
	Name       string `json:"name,omitempty"`
	Nodes      []Node `json:"nodes"`
	Edges      []Edge `json:"edges,omitempty"`
}

// ParseDefinition decodes a JSON workflow document.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, types.NewError(types.ErrValidation, "malformed workflow definition").WithCause(err)
	}
	return &def, nil
}

// MarshalJSONDocument encodes the definition as an indented JSON document
// suitable for export.
func (d *Definition) MarshalJSONDocument() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow definition: %w", err)
	}
	return data, nil
}

// Node returns the node with the given id.
func (d *Definition) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// predecessors maps each node id to the ids of its direct predecessors,
// in edge-declaration order.
func (d *Definition) predecessors() map[string][]string {
	preds := make(map[string][]string, len(d.Nodes))
	for _, e := range d.Edges {
		preds[e.Target] = append(preds[e.Target], e.Source)
	}
	return preds
}

// successors maps each node id to the ids of its direct successors.
func (d *Definition) successors() map[string][]string {
	succs := make(map[string][]string, len(d.Nodes))
	for _, e := range d.Edges {
		succs[e.Source] = append(succs[e.Source], e.Target)
	}
	return succs
}
