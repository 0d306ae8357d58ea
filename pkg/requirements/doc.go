// Package requirements parses pip requirements files.
//
// A requirements file is a sequence of lines. Each line is blank, a comment,
// a global option (--index-url, --pre, ...), an include (-r) or constraint
// (-c) reference, an editable install (-e), or a PEP 508 dependency
// specifier:
//
//	pyfiglet
//	importlib-metadata; python_version<"3.8"
//	requests[socks]>=2.28,<3 --hash=sha256:...
//
// Backslash continuations are joined and "#" comments stripped before a line
// is parsed. Invalid lines do not stop parsing; they are collected as
// [LineError] values on the returned [Manifest].
package requirements
