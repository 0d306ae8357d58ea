// Package io provides JSON import and export for dependency graphs.
//
// The format is a node-link document:
//
//	{
//	  "meta":  {"root": "docs"},
//	  "nodes": [{"id": "__project__", "meta": {"virtual": true}}, {"id": "sphinx"}],
//	  "edges": [{"from": "__project__", "to": "sphinx", "meta": {"constraint": ">=4.0"}}]
//	}
//
// Graphs written with [WriteJSON] read back with [ReadJSON] unchanged, so a
// resolved graph can be saved once and rendered again without contacting the
// index.
package io
