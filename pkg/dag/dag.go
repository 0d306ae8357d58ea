package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] and [DAG.TopologicalOrder]
	// when a cycle is detected. Python dependency graphs may legitimately
	// contain cycles, so callers decide whether this is fatal.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes, edges or the
// graph (version, constraint, marker text). Metadata maps are never nil once
// added to a graph.
type Metadata map[string]any

// Node is a vertex in the dependency graph, usually one distribution keyed by
// its normalized name.
type Node struct {
	ID   string   // Unique identifier (also used as display label)
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// IsVirtual reports whether the node stands for the project itself rather
// than a distribution.
func (n Node) IsVirtual() bool {
	v, _ := n.Meta["virtual"].(bool)
	return v
}

// Edge is a directed "depends on" connection.
type Edge struct {
	From string   // Dependent node ID
	To   string   // Dependency node ID
	Meta Metadata // Constraint and marker of the requirement (never nil after AddEdge)
}

// DAG is a directed dependency graph. Despite the name it tolerates cycles
// until [DAG.Validate] is called.
//
// The zero value is not usable; use [New]. DAG is not safe for concurrent use
// without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string
	incoming map[string][]string
	meta     Metadata
}

// New creates an empty graph with optional graph-level metadata.
func New(meta Metadata) *DAG {
	if meta == nil {
		meta = Metadata{}
	}
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		meta:     meta,
	}
}

// Meta returns the graph-level metadata map.
func (d *DAG) Meta() Metadata { return d.meta }

// AddNode adds a node. It returns ErrInvalidNodeID for an empty ID and
// ErrDuplicateNodeID if the ID is taken.
func (d *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = Metadata{}
	}
	d.nodes[n.ID] = &n
	return nil
}

// EnsureNode adds the node if it is missing and returns the stored node.
// Metadata of an existing node is merged, keeping existing keys.
func (d *DAG) EnsureNode(n Node) *Node {
	if existing, ok := d.nodes[n.ID]; ok {
		for k, v := range n.Meta {
			if _, set := existing.Meta[k]; !set {
				existing.Meta[k] = v
			}
		}
		return existing
	}
	_ = d.AddNode(n)
	return d.nodes[n.ID]
}

// AddEdge adds a directed edge between two existing nodes. Adding an edge
// that already exists is a no-op.
func (d *DAG) AddEdge(e Edge) error {
	if _, ok := d.nodes[e.From]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.To]; !ok {
		return ErrUnknownTargetNode
	}
	if d.HasEdge(e.From, e.To) {
		return nil
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	d.edges = append(d.edges, e)
	d.outgoing[e.From] = append(d.outgoing[e.From], e.To)
	d.incoming[e.To] = append(d.incoming[e.To], e.From)
	return nil
}

// HasEdge reports whether from depends on to directly.
func (d *DAG) HasEdge(from, to string) bool {
	return slices.Contains(d.outgoing[from], to)
}

// Node returns the node with the given ID.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID. The pointers refer to the graph's
// nodes, so metadata changes are visible in the graph.
func (d *DAG) Nodes() []*Node {
	ids := slices.Sorted(maps.Keys(d.nodes))
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = d.nodes[id]
	}
	return nodes
}

// Edges returns a copy of all edges in insertion order.
func (d *DAG) Edges() []Edge { return slices.Clone(d.edges) }

// NodeCount returns the number of nodes.
func (d *DAG) NodeCount() int { return len(d.nodes) }

// EdgeCount returns the number of edges.
func (d *DAG) EdgeCount() int { return len(d.edges) }

// Children returns the direct dependencies of id. The slice must not be modified.
func (d *DAG) Children(id string) []string { return d.outgoing[id] }

// Parents returns the direct dependents of id. The slice must not be modified.
func (d *DAG) Parents(id string) []string { return d.incoming[id] }

// OutDegree returns the number of direct dependencies of id.
func (d *DAG) OutDegree(id string) int { return len(d.outgoing[id]) }

// InDegree returns the number of direct dependents of id.
func (d *DAG) InDegree(id string) int { return len(d.incoming[id]) }

// Sources returns nodes without dependents, sorted by ID.
func (d *DAG) Sources() []*Node {
	var out []*Node
	for _, n := range d.Nodes() {
		if len(d.incoming[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Sinks returns nodes without dependencies, sorted by ID.
func (d *DAG) Sinks() []*Node {
	var out []*Node
	for _, n := range d.Nodes() {
		if len(d.outgoing[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Reachable returns the IDs reachable from id (excluding id), sorted.
func (d *DAG) Reachable(id string) []string {
	seen := map[string]bool{id: true}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range d.outgoing[cur] {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	delete(seen, id)
	return slices.Sorted(maps.Keys(seen))
}

// Validate returns ErrGraphHasCycle if the graph has a directed cycle.
func (d *DAG) Validate() error {
	_, err := d.TopologicalOrder()
	return err
}

// TopologicalOrder returns node IDs so that every node precedes its
// dependencies. Ties are broken by ID for deterministic output.
func (d *DAG) TopologicalOrder() ([]string, error) {
	indeg := make(map[string]int, len(d.nodes))
	for id := range d.nodes {
		indeg[id] = len(d.incoming[id])
	}
	var ready []string
	for id, n := range indeg {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		var next []string
		for _, c := range d.outgoing[id] {
			indeg[c]--
			if indeg[c] == 0 {
				next = append(next, c)
			}
		}
		slices.Sort(next)
		ready = append(ready, next...)
	}
	if len(order) != len(d.nodes) {
		return order, ErrGraphHasCycle
	}
	return order, nil
}

// NodeIDs extracts the ID from each node in a slice.
func NodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
