package workflow

import (
	"fmt"
	"sort"

	"github.com/enrichflow/enrichflow/block"
	"github.com/enrichflow/enrichflow/types"
)

// Validate checks a definition for structural soundness against the block
// registry: non-empty node set, unique node ids, edge endpoints that exist,
// registered node types, and an acyclic graph. Validation failures reject
// the workflow before any node executes.
func Validate(def *Definition, registry *block.Registry) error {
	if def == nil {
		return types.NewError(types.ErrValidation, "workflow definition is nil")
	}
	if len(def.Nodes) == 0 {
		return types.NewError(types.ErrValidation, "workflow has no nodes")
	}

	seen := make(map[string]struct{}, len(def.Nodes))
	for _, n := range def.Nodes {
		if n.ID == "" {
			return types.NewError(types.ErrValidation, "workflow contains a node with an empty id")
		}
		if _, dup := seen[n.ID]; dup {
			return types.NewError(types.ErrValidation, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = struct{}{}

		if n.Type == "" {
			return types.NewError(types.ErrValidation, fmt.Sprintf("node %q has no type", n.ID))
		}
		if registry != nil && !registry.Has(n.Type) {
			return types.NewError(types.ErrBlockNotFound,
				fmt.Sprintf("node %q references unregistered block type %q", n.ID, n.Type))
		}
	}

	for _, e := range def.Edges {
		if _, ok := seen[e.Source]; !ok {
			return types.NewError(types.ErrValidation,
				fmt.Sprintf("edge references missing source node %q", e.Source))
		}
		if _, ok := seen[e.Target]; !ok {
			return types.NewError(types.ErrValidation,
				fmt.Sprintf("edge references missing target node %q", e.Target))
		}
		if e.Source == e.Target {
			return types.NewError(types.ErrValidation,
				fmt.Sprintf("node %q has a self-edge", e.Source))
		}
	}

	if _, err := topologicalOrder(def); err != nil {
		return err
	}
	return nil
}

// topologicalOrder returns the node ids in dependency order using Kahn's
// algorithm. Ties are broken by node id so the order is deterministic for
// a given definition. A non-empty remainder means the graph has a cycle.
func topologicalOrder(def *Definition) ([]string, error) {
	indegree := make(map[string]int, len(def.Nodes))
	for _, n := range def.Nodes {
		indegree[n.ID] = 0
	}
	succs := def.successors()
	for _, targets := range succs {
		for _, t := range targets {
			indegree[t]++
		}
	}

	ready := make([]string, 0, len(def.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(def.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		released := make([]string, 0, len(succs[id]))
		for _, t := range succs[id] {
			indegree[t]--
			if indegree[t] == 0 {
				released = append(released, t)
			}
		}
		sort.Strings(released)
		ready = append(ready, released...)
	}

	if len(order) != len(def.Nodes) {
		remaining := make([]string, 0)
		for id, deg := range indegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, types.NewError(types.ErrValidation,
			fmt.Sprintf("workflow graph contains a cycle involving nodes %v", remaining))
	}
	return order, nil
}
