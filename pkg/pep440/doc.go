// Package pep440 implements Python package versions and version specifiers
// as defined by PEP 440.
//
// # Versions
//
// [Parse] accepts the normalized form and the alternative spellings the
// standard permits ("1.0-alpha.1", "v2.0", "1.0-r4"), and [Version.String]
// returns the normalized form:
//
//	v, _ := pep440.Parse("1.0-Alpha.1")
//	v.String() // "1.0a1"
//
// [Compare] orders versions: development releases sort before pre-releases,
// pre-releases before the final release, and post-releases after it.
// Trailing zeros in the release segment are not significant.
//
// # Specifiers
//
// A [SpecifierSet] is the comma-separated constraint attached to a
// requirement ("~=2.2, !=2.2.4"). [SpecifierSet.Contains] tests a candidate,
// excluding pre-releases unless asked for. [Satisfiable] decides whether
// several sets can hold together by intersecting their version ranges, which
// is how duplicate requirements with incompatible constraints are detected.
package pep440
