package io

import (
	"encoding/json"
	"io"
	"os"

	"github.com/matzehuels/reqlint/pkg/dag"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// ReadJSON decodes a graph written by [WriteJSON]. It fails with
// INVALID_FORMAT on malformed JSON, duplicate node IDs, or edges that
// reference unknown nodes.
func ReadJSON(r io.Reader) (*dag.DAG, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "decode graph")
	}

	g := dag.New(data.Meta)
	for _, n := range data.Nodes {
		if err := g.AddNode(dag.Node{ID: n.ID, Meta: n.Meta}); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "node %q", n.ID)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, To: e.To, Meta: e.Meta}); err != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidFormat, err, "edge %s -> %s", e.From, e.To)
		}
	}
	return g, nil
}

// ImportJSON reads the graph file at path.
func ImportJSON(path string) (*dag.DAG, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "graph %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "open %s", path)
	}
	defer f.Close()
	return ReadJSON(f)
}
