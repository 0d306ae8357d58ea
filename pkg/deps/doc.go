// Package deps turns Python manifests into dependency graphs.
//
// # Overview
//
// Dependency data comes from two places:
//
//   - Manifest files (requirements.txt, setup.cfg, pyproject.toml, poetry.lock)
//     read by a [ManifestParser]
//   - The package index, crawled by a [Registry] to expand direct
//     requirements into their transitive closure
//
// The Python implementations live in the python subpackage; this package
// holds the shared abstractions and the concurrent crawler.
//
// # Parsing Manifests
//
// [DetectManifest] picks a parser by filename. Every parser returns a
// [ManifestResult] with the declared requirements and a graph rooted at the
// virtual [ProjectRoot] node:
//
//	parser, err := python.Language.Detect("requirements.txt", nil)
//	result, err := parser.Parse("requirements.txt", deps.Options{})
//
// Requirements whose marker is false in [Options.Environment] stay in the
// graph with their edge flagged "inactive".
//
// # Resolving Dependencies
//
// [Registry.Resolve] crawls the index from one package with a pool of
// workers, bounded by [Options.MaxDepth] and [Options.MaxNodes]. [Expand]
// runs it for every active direct requirement of a project graph and merges
// the results. A [Fetcher] filters each package's dependencies by marker
// before the crawler sees them, so extras-only and platform-gated
// dependencies never enter the graph.
package deps
