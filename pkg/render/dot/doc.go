// Package dot renders dependency graphs as Graphviz node-link diagrams.
//
// # Usage
//
// Convert a DAG to DOT source, then optionally render it to SVG:
//
//	src := dot.ToDOT(g, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(ctx, src)
//
// The project root is drawn as an ellipse labelled with the project name.
// Edges carry the requirement's version constraint as a label; requirements
// whose marker is false in the evaluation environment are drawn dashed and
// grey.
//
// [RenderSVG] uses the WebAssembly build of Graphviz bundled with
// github.com/goccy/go-graphviz, so no system Graphviz install is needed.
package dot
