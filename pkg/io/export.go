package io

import (
	"encoding/json"
	"io"

	"github.com/matzehuels/reqlint/pkg/dag"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

type graph struct {
	Meta  dag.Metadata `json:"meta,omitempty"`
	Nodes []node       `json:"nodes"`
	Edges []edge       `json:"edges"`
}

type node struct {
	ID   string       `json:"id"`
	Meta dag.Metadata `json:"meta,omitempty"`
}

type edge struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Meta dag.Metadata `json:"meta,omitempty"`
}

// WriteJSON encodes g as indented JSON. Nodes are written sorted by ID and
// edges in insertion order.
func WriteJSON(g *dag.DAG, w io.Writer) error {
	nodes := g.Nodes()
	edges := g.Edges()
	out := graph{
		Meta:  g.Meta(),
		Nodes: make([]node, len(nodes)),
		Edges: make([]edge, len(edges)),
	}
	for i, n := range nodes {
		out.Nodes[i] = node{ID: n.ID, Meta: nonEmpty(n.Meta)}
	}
	for i, e := range edges {
		out.Edges[i] = edge{From: e.From, To: e.To, Meta: nonEmpty(e.Meta)}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "encode graph")
	}
	return nil
}

func nonEmpty(m dag.Metadata) dag.Metadata {
	if len(m) == 0 {
		return nil
	}
	return m
}
