// Package check evaluates a requirements manifest against a set of rules and
// produces a [Report].
//
// # Rules
//
// Offline rules need nothing but the manifest and an evaluation environment:
//
//   - syntax: every non-blank, non-comment line parses
//   - marker: every environment marker evaluates to a boolean, under the
//     configured environment and under each of [SupportedPythons]
//   - conflict: no two specifiers for one package are mutually unsatisfiable
//   - duplicate: a package is listed more than once
//   - unpinned: a requirement carries no version constraint
//
// Cross-file rules run when their input is present:
//
//   - missing: every install-metadata requirement (setup.cfg or
//     pyproject.toml) appears in the manifest
//   - constraint-mismatch: metadata and manifest constraints can both hold
//   - lock-mismatch: locked versions (poetry.lock) satisfy the manifest
//
// Online rules query the package index, with at most [Options.Concurrency]
// requests in flight:
//
//   - unknown-package: the package exists on the index
//   - no-release: some release satisfies the constraint
//
// Rules that cannot run are listed in [Report.Skipped] with the reason.
//
// # Pairing
//
// Two requirements for the same package are compared only when they can be
// installed together: both are unconditional, or both markers are true in
// the evaluation environment.
package check
