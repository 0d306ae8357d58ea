// Package dag provides the directed dependency graph shared by manifest
// parsers, the registry crawler and the renderers.
//
// # Overview
//
// Nodes are distributions keyed by their normalized name; an edge From -> To
// means From depends on To. A manifest graph has one virtual project node
// (see [Node.IsVirtual]) with an edge to each requirement. Edge metadata
// carries the requirement's constraint and marker text so renderers can label
// edges.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "app"})
//	g.AddNode(dag.Node{ID: "requests"})
//	g.AddEdge(dag.Edge{From: "app", To: "requests", Meta: dag.Metadata{"constraint": ">=2.28"}})
//
// Query the graph with [DAG.Children], [DAG.Parents], [DAG.Reachable] and
// [DAG.TopologicalOrder]. Listing methods return nodes sorted by ID so that
// output built from a graph is deterministic.
//
// # Cycles
//
// Published Python distributions occasionally depend on each other. The
// graph accepts such edges; [DAG.Validate] reports them with
// [ErrGraphHasCycle] for callers that need an acyclic graph.
package dag
