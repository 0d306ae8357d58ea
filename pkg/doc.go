// Package pkg holds the libraries behind the reqlint command.
//
// reqlint reads pip requirements manifests, evaluates their environment
// markers, and checks them for conflicts against each other, against the
// project metadata in setup.cfg or pyproject.toml, and against a lock file.
//
// # Packages
//
// Parsing and evaluation:
//
//   - [pep440]: versions and specifier sets, with interval intersection
//   - [marker]: PEP 508 environment markers and target environments
//   - [requirements]: requirement lines, manifests, includes and options
//
// Analysis:
//
//   - [check]: the lint rules and the [check.Report] they produce
//   - [resolve]: pinning requirements against a package index
//   - [deps]: manifest parsers and transitive resolution into a [dag.DAG]
//
// Infrastructure:
//
//   - [integrations]: HTTP clients for the PyPI JSON API
//   - [cache]: file, Redis and null response caches
//   - [store]: report history in SQLite, MongoDB or memory
//   - [api]: the HTTP service exposed by "reqlint serve"
//   - [render/dot] and [io]: Graphviz and JSON output for graphs
//
// # Quick Start
//
//	m, err := requirements.ParseFile("requirements.txt", requirements.Options{FollowIncludes: true})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(m.Requirements()), "requirements")
//
//	rep, err := check.Run(ctx, check.Input{Path: "requirements.txt"}, check.Options{
//	    Environment:      marker.DefaultEnvironment().WithPythonVersion("3.11"),
//	    DiscoverMetadata: true,
//	})
//	if err != nil {
//	    return err
//	}
//	for _, f := range rep.Findings {
//	    fmt.Println(f.Severity, f.Message)
//	}
//
// [pep440]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/pep440
// [marker]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/marker
// [requirements]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/requirements
// [check]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/check
// [check.Report]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/check#Report
// [resolve]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/resolve
// [deps]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/deps
// [dag.DAG]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/dag#DAG
// [integrations]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/integrations
// [cache]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/store
// [api]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/api
// [render/dot]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/render/dot
// [io]: https://pkg.go.dev/github.com/matzehuels/reqlint/pkg/io
package pkg
