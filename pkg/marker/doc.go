// Package marker parses and evaluates PEP 508 environment markers.
//
// A marker is the condition after the semicolon of a requirement:
//
//	importlib-metadata; python_version < "3.8"
//
// [Parse] builds an expression tree and [Marker.Evaluate] computes it against
// an [Environment], the set of interpreter and platform values a package
// installer would observe. Comparisons use PEP 440 version semantics when
// the right-hand side forms a valid version specifier and plain string
// comparison otherwise, so `python_version < "3.8"` is false for "3.11"
// even though "3.11" < "3.8" as strings.
//
// Legacy variable spellings such as "sys.platform" are accepted and
// rewritten to their PEP 508 names.
package marker
