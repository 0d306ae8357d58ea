package io

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/reqlint/pkg/dag"
	errs "github.com/matzehuels/reqlint/pkg/errors"
)

func docsGraph(t *testing.T) *dag.DAG {
	t.Helper()
	g := dag.New(dag.Metadata{"root": "docs"})
	for _, n := range []dag.Node{
		{ID: "__project__", Meta: dag.Metadata{"virtual": true}},
		{ID: "sphinx", Meta: dag.Metadata{"version": "7.2.6"}},
		{ID: "importlib-metadata"},
	} {
		if err := g.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	_ = g.AddEdge(dag.Edge{From: "__project__", To: "sphinx", Meta: dag.Metadata{"constraint": ">=4.0"}})
	_ = g.AddEdge(dag.Edge{From: "__project__", To: "importlib-metadata", Meta: dag.Metadata{"marker": `python_version < "3.8"`, "inactive": true}})
	return g
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(docsGraph(t), &buf); err != nil {
		t.Fatal(err)
	}
	g, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}

	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("got %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
	if g.Meta()["root"] != "docs" {
		t.Errorf("graph meta = %v", g.Meta())
	}
	n, _ := g.Node("__project__")
	if !n.IsVirtual() {
		t.Error("virtual flag lost")
	}
	for _, e := range g.Edges() {
		if e.To == "importlib-metadata" && e.Meta["inactive"] != true {
			t.Errorf("edge meta = %v", e.Meta)
		}
	}
}

func TestReadJSON_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed":      `{"nodes": [`,
		"duplicate node": `{"nodes": [{"id": "a"}, {"id": "a"}], "edges": []}`,
		"unknown target": `{"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "b"}]}`,
		"empty id":       `{"nodes": [{"id": ""}], "edges": []}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(input))
			if !errs.Is(err, errs.ErrCodeInvalidFormat) {
				t.Errorf("ReadJSON() error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestImportJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	var buf bytes.Buffer
	if err := WriteJSON(docsGraph(t), &buf); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ImportJSON(path); err != nil {
		t.Errorf("ImportJSON() error: %v", err)
	}
	if _, err := ImportJSON(filepath.Join(dir, "missing.json")); !errs.Is(err, errs.ErrCodeFileNotFound) {
		t.Errorf("ImportJSON(missing) error = %v", err)
	}
}
