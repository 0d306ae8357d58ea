package dot

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/reqlint/pkg/dag"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds the version and marker metadata to labels.
	// When false, only the package name and constraint are shown.
	Detailed bool
}

// ToDOT converts a DAG to Graphviz DOT source. Output is deterministic:
// nodes are emitted sorted by ID and edges in insertion order.
func ToDOT(g *dag.DAG, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [fontsize=10, color=\"#555555\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := nodeAttrs(*n, opts.Detailed)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		attrs := edgeAttrs(e, opts.Detailed)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n dag.Node, detailed bool) []string {
	label := n.ID
	if name, ok := n.Meta["name"].(string); ok && name != "" {
		label = name
	}
	if n.IsVirtual() {
		if l, ok := n.Meta["label"].(string); ok && l != "" {
			label = l
		}
		return []string{fmt.Sprintf("label=%q", label), "shape=ellipse", "fillcolor=\"#e8f0fe\""}
	}
	if detailed {
		var parts []string
		for _, k := range slices.Sorted(maps.Keys(n.Meta)) {
			if k == "name" || k == "description" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s: %v", k, n.Meta[k]))
		}
		if len(parts) > 0 {
			label += "\n" + strings.Join(parts, "\n")
		}
	} else if v, ok := n.Meta["version"].(string); ok && v != "" {
		label += " " + v
	}
	return []string{fmt.Sprintf("label=%q", label)}
}

func edgeAttrs(e dag.Edge, detailed bool) []string {
	var attrs []string
	var label []string
	if c, ok := e.Meta["constraint"].(string); ok && c != "" {
		label = append(label, c)
	}
	if m, ok := e.Meta["marker"].(string); ok && m != "" && detailed {
		label = append(label, m)
	}
	if len(label) > 0 {
		attrs = append(attrs, fmt.Sprintf("label=%q", strings.Join(label, "\n")))
	}
	if e.Meta["inactive"] == true {
		attrs = append(attrs, "style=dashed", "color=\"#bbbbbb\"", "fontcolor=\"#999999\"")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales from its
// origin at its natural size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(root))
}
