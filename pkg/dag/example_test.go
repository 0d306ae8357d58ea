package dag_test

import (
	"fmt"

	"github.com/matzehuels/reqlint/pkg/dag"
)

func ExampleDAG_basic() {
	// app -> requests -> urllib3
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app", Meta: dag.Metadata{"virtual": true}})
	_ = g.AddNode(dag.Node{ID: "requests"})
	_ = g.AddNode(dag.Node{ID: "urllib3"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "requests"})
	_ = g.AddEdge(dag.Edge{From: "requests", To: "urllib3"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	fmt.Println("Reachable from app:", g.Reachable("app"))
	// Output:
	// Nodes: 3
	// Edges: 2
	// Reachable from app: [requests urllib3]
}

func ExampleDAG_TopologicalOrder() {
	g := dag.New(nil)
	for _, id := range []string{"app", "flask", "jinja2", "markupsafe", "werkzeug"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "app", To: "flask"})
	_ = g.AddEdge(dag.Edge{From: "flask", To: "jinja2"})
	_ = g.AddEdge(dag.Edge{From: "flask", To: "werkzeug"})
	_ = g.AddEdge(dag.Edge{From: "jinja2", To: "markupsafe"})
	_ = g.AddEdge(dag.Edge{From: "werkzeug", To: "markupsafe"})

	order, err := g.TopologicalOrder()
	fmt.Println(order, err)
	// Output:
	// [app flask jinja2 werkzeug markupsafe] <nil>
}

func ExampleDAG_Sources() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddNode(dag.Node{ID: "cli"})
	_ = g.AddNode(dag.Node{ID: "shared"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "shared"})
	_ = g.AddEdge(dag.Edge{From: "cli", To: "shared"})

	fmt.Println(dag.NodeIDs(g.Sources()))
	fmt.Println(dag.NodeIDs(g.Sinks()))
	// Output:
	// [app cli]
	// [shared]
}
