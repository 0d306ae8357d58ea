package requirements

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
	"github.com/matzehuels/reqlint/pkg/marker"
)

// EntryKind classifies a logical line of a requirements file.
type EntryKind string

const (
	KindRequirement EntryKind = "requirement"
	KindEditable    EntryKind = "editable"
	KindInclude     EntryKind = "include"    // -r
	KindConstraint  EntryKind = "constraint" // -c
	KindOption      EntryKind = "option"
)

// Entry is one logical (continuation-joined, comment-stripped) line.
type Entry struct {
	Kind        EntryKind    `json:"kind"`
	Line        int          `json:"line"`
	Text        string       `json:"text"`
	Requirement *Requirement `json:"requirement,omitempty"`
	Option      string       `json:"option,omitempty"`
	Value       string       `json:"value,omitempty"`
}

// LineError reports a line that could not be parsed. Parsing continues past
// bad lines so that all of them are reported at once.
type LineError struct {
	Path string `json:"path,omitempty"`
	Line int    `json:"line"`
	Text string `json:"text"`
	Err  error  `json:"-"`
}

func (e *LineError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	return fmt.Sprintf("%s:%d: %v", path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Message returns the underlying error text without the location prefix.
func (e *LineError) Message() string { return errs.UserMessage(e.Err) }

// Manifest is a parsed requirements file.
type Manifest struct {
	Path    string       `json:"path,omitempty"`
	Entries []Entry      `json:"entries"`
	Errors  []*LineError `json:"errors,omitempty"`

	// Included holds manifests pulled in with -r, Constrained those pulled
	// in with -c. Both are only populated with [Options.FollowIncludes].
	Included    []*Manifest `json:"included,omitempty"`
	Constrained []*Manifest `json:"constrained,omitempty"`

	byLine map[int]*Manifest // include line -> parsed child
}

// Options configures parsing.
type Options struct {
	// FollowIncludes parses files referenced by -r and -c relative to the
	// including file. URLs are never fetched.
	FollowIncludes bool

	// Getenv expands ${VAR} references. Nil disables expansion.
	Getenv func(string) (string, bool)
}

// option describes a recognised pip option.
type option struct {
	long     string
	short    string
	kind     EntryKind
	hasValue bool
}

var knownOptions = []option{
	{"--requirement", "-r", KindInclude, true},
	{"--constraint", "-c", KindConstraint, true},
	{"--editable", "-e", KindEditable, true},
	{"--index-url", "-i", KindOption, true},
	{"--extra-index-url", "", KindOption, true},
	{"--find-links", "-f", KindOption, true},
	{"--trusted-host", "", KindOption, true},
	{"--no-binary", "", KindOption, true},
	{"--only-binary", "", KindOption, true},
	{"--use-feature", "", KindOption, true},
	{"--pre", "", KindOption, false},
	{"--no-index", "", KindOption, false},
	{"--prefer-binary", "", KindOption, false},
	{"--require-hashes", "", KindOption, false},
}

var (
	commentRE = regexp.MustCompile(`(^|\s+)#.*$`)
	envVarRE  = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)
)

// Parse reads a requirements file from r. The returned error is non-nil when
// any line failed to parse; the manifest is still returned with every line
// that did parse and with the failures in [Manifest.Errors].
func Parse(r io.Reader, opts Options) (*Manifest, error) {
	return parse("", r, opts)
}

// ParseBytes is like [Parse] for in-memory content. Path is only used for
// error messages and as the base for includes.
func ParseBytes(path string, data []byte, opts Options) (*Manifest, error) {
	m, err := parse(path, bytes.NewReader(data), opts)
	if m != nil && opts.FollowIncludes && path != "" {
		if ierr := m.followIncludes(opts, map[string]bool{absPath(path): true}); ierr != nil {
			return m, errors.Join(err, ierr)
		}
	}
	return m, err
}

// ParseFile reads and parses the file at path.
func ParseFile(path string, opts Options) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeFileNotFound, err, "requirements file %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidPath, err, "read %s", path)
	}
	return ParseBytes(path, data, opts)
}

func parse(path string, r io.Reader, opts Options) (*Manifest, error) {
	m := &Manifest{Path: path}
	lines, err := logicalLines(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidManifest, err, "read requirements")
	}
	for _, ll := range lines {
		text := strings.TrimSpace(commentRE.ReplaceAllString(ll.text, ""))
		if opts.Getenv != nil {
			text = expandEnv(text, opts.Getenv)
		}
		if text == "" {
			continue
		}
		entry, err := ParseLine(text)
		if err != nil {
			m.Errors = append(m.Errors, &LineError{Path: path, Line: ll.num, Text: text, Err: err})
			continue
		}
		entry.Line = ll.num
		if entry.Requirement != nil {
			entry.Requirement.Line = ll.num
			entry.Requirement.Source = path
		}
		m.Entries = append(m.Entries, entry)
	}
	return m, m.err()
}

func (m *Manifest) err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	joined := make([]error, len(m.Errors))
	for i, e := range m.Errors {
		joined[i] = e
	}
	return errs.Wrap(errs.ErrCodeInvalidManifest, errors.Join(joined...), "%d invalid line(s)", len(m.Errors))
}

type logicalLine struct {
	num  int
	text string
}

// logicalLines joins backslash continuations. Each logical line carries the
// number of its first physical line.
func logicalLines(r io.Reader) ([]logicalLine, error) {
	var out []logicalLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var cur strings.Builder
	start, n := 0, 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if cur.Len() == 0 {
			start = n
		}
		if strings.HasSuffix(line, `\`) && !strings.HasPrefix(strings.TrimSpace(line), "#") {
			cur.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		cur.WriteString(line)
		out = append(out, logicalLine{num: start, text: cur.String()})
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, logicalLine{num: start, text: cur.String()})
	}
	return out, sc.Err()
}

func expandEnv(s string, getenv func(string) (string, bool)) string {
	return envVarRE.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := getenv(ref[2 : len(ref)-1]); ok {
			return v
		}
		return ref
	})
}

// ParseLine parses a single comment-free logical line.
func ParseLine(text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "-") {
		return parseOption(text)
	}

	args, opts := splitArgsOptions(text)
	var (
		req *Requirement
		err error
	)
	if looksLikeURL(args) {
		req, err = parseURLRequirement(args)
	} else {
		req, err = ParseRequirement(args)
	}
	if err != nil {
		return Entry{}, err
	}
	req.Raw = text
	if err := applyRequirementOptions(req, opts); err != nil {
		return Entry{}, err
	}
	return Entry{Kind: KindRequirement, Text: text, Requirement: req}, nil
}

// splitArgsOptions separates the requirement from trailing per-requirement
// options such as --hash. The requirement ends at the first whitespace
// separated token that starts with "-".
func splitArgsOptions(text string) (string, []string) {
	fields := strings.Fields(text)
	for i, f := range fields {
		if i > 0 && strings.HasPrefix(f, "-") {
			idx := strings.Index(text, " "+f)
			if idx < 0 {
				idx = strings.Index(text, "\t"+f)
			}
			return strings.TrimSpace(text[:idx]), fields[i:]
		}
	}
	return text, nil
}

func applyRequirementOptions(req *Requirement, opts []string) error {
	for i := 0; i < len(opts); i++ {
		name, value, hasValue := strings.Cut(opts[i], "=")
		switch name {
		case "--hash":
			if !hasValue {
				if i+1 >= len(opts) {
					return errs.New(errs.ErrCodeInvalidManifest, "--hash requires a value")
				}
				i++
				value = opts[i]
			}
			if !strings.Contains(value, ":") {
				return errs.New(errs.ErrCodeInvalidManifest, "invalid --hash %q: expected algorithm:digest", value)
			}
			req.Hashes = append(req.Hashes, value)
		case "--global-option", "--install-option", "--config-settings", "-C":
			if !hasValue {
				i++
			}
		default:
			return errs.New(errs.ErrCodeInvalidManifest, "unknown requirement option %q", name)
		}
	}
	return nil
}

func parseOption(text string) (Entry, error) {
	flag, rest := text, ""
	if i := strings.IndexAny(text, " \t="); i >= 0 {
		flag, rest = text[:i], strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text[i:]), "="))
	}

	var opt *option
	for i := range knownOptions {
		o := &knownOptions[i]
		if flag == o.long || (o.short != "" && flag == o.short) {
			opt = o
			break
		}
		// Short options accept a glued value: -rbase.txt
		if o.short != "" && o.hasValue && strings.HasPrefix(flag, o.short) && len(flag) > 2 && !strings.HasPrefix(flag, "--") {
			opt = o
			rest = strings.TrimSpace(flag[2:] + " " + rest)
			break
		}
	}
	if opt == nil {
		return Entry{}, errs.New(errs.ErrCodeInvalidManifest, "unknown option %q", flag)
	}
	if opt.hasValue && rest == "" {
		return Entry{}, errs.New(errs.ErrCodeInvalidManifest, "option %s requires a value", opt.long)
	}
	if !opt.hasValue && rest != "" {
		return Entry{}, errs.New(errs.ErrCodeInvalidManifest, "option %s takes no value", opt.long)
	}

	entry := Entry{Kind: opt.kind, Text: text, Option: opt.long, Value: rest}
	if opt.kind == KindEditable {
		req, err := parseEditable(rest)
		if err != nil {
			return Entry{}, err
		}
		req.Raw = text
		entry.Requirement = req
	}
	return entry, nil
}

func parseEditable(value string) (*Requirement, error) {
	req, err := parseURLRequirement(value)
	if err != nil {
		return nil, err
	}
	req.Editable = true
	if req.Name == "" {
		// "-e ./pkg[extra]" style local paths carry no name.
		base := strings.TrimRight(req.URL, "/")
		if i := strings.IndexByte(base, '['); i >= 0 {
			base = base[:i]
		}
		if name := filepath.Base(base); fullNameRE.MatchString(name) && !strings.Contains(req.URL, "://") {
			req.Name = name
		}
	}
	return req, nil
}

// followIncludes parses -r and -c targets. Visited holds absolute paths
// already on the include stack. Unreadable targets and cycles are recorded
// in m.Errors against the include line.
func (m *Manifest) followIncludes(opts Options, visited map[string]bool) error {
	var failures []error
	dir := filepath.Dir(m.Path)
	for _, e := range m.Entries {
		if e.Kind != KindInclude && e.Kind != KindConstraint {
			continue
		}
		if strings.Contains(e.Value, "://") {
			continue
		}
		target := e.Value
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		abs := absPath(target)
		if visited[abs] {
			le := &LineError{
				Path: m.Path, Line: e.Line, Text: e.Text,
				Err: errs.New(errs.ErrCodeInvalidManifest, "include cycle through %s", e.Value),
			}
			m.Errors = append(m.Errors, le)
			failures = append(failures, le)
			continue
		}
		data, err := os.ReadFile(target)
		if err != nil {
			le := &LineError{
				Path: m.Path, Line: e.Line, Text: e.Text,
				Err: errs.Wrap(errs.ErrCodeFileNotFound, err, "cannot read %s", e.Value),
			}
			m.Errors = append(m.Errors, le)
			failures = append(failures, le)
			continue
		}
		child, err := parse(target, bytes.NewReader(data), opts)
		if err != nil {
			failures = append(failures, err)
		}
		if child == nil {
			continue
		}
		visited[abs] = true
		if err := child.followIncludes(opts, visited); err != nil {
			failures = append(failures, err)
		}
		delete(visited, abs)

		if e.Kind == KindInclude {
			if m.byLine == nil {
				m.byLine = make(map[int]*Manifest)
			}
			m.byLine[e.Line] = child
			m.Included = append(m.Included, child)
		} else {
			m.Constrained = append(m.Constrained, child)
		}
	}
	return errors.Join(failures...)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Requirements returns every requirement in file order. Requirements of a
// -r include appear at the position of the include line.
func (m *Manifest) Requirements() []*Requirement {
	var out []*Requirement
	for _, e := range m.Entries {
		if e.Requirement != nil {
			out = append(out, e.Requirement)
			continue
		}
		if child := m.byLine[e.Line]; e.Kind == KindInclude && child != nil {
			out = append(out, child.Requirements()...)
		}
	}
	return out
}

// Constraints returns the requirements of every -c file, including those
// reached through -r includes.
func (m *Manifest) Constraints() []*Requirement {
	var out []*Requirement
	for _, c := range m.Constrained {
		out = append(out, c.Requirements()...)
	}
	for _, inc := range m.Included {
		out = append(out, inc.Constraints()...)
	}
	return out
}

// Applicable returns the requirements whose markers hold in env. Markers that
// cannot be evaluated exclude their requirement and are reported in the error.
func (m *Manifest) Applicable(env marker.Environment) ([]*Requirement, error) {
	var (
		out      []*Requirement
		failures []error
	)
	for _, r := range m.Requirements() {
		ok, err := r.Applies(env)
		if err != nil {
			failures = append(failures, &LineError{Path: r.Source, Line: r.Line, Text: r.Raw, Err: err})
			continue
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, errors.Join(failures...)
}

// Lookup returns every requirement for the named distribution, matched by
// normalized name.
func (m *Manifest) Lookup(name string) []*Requirement {
	key := NormalizeName(name)
	var out []*Requirement
	for _, r := range m.Requirements() {
		if r.Key() == key {
			out = append(out, r)
		}
	}
	return out
}

// Options returns global option lines in file order.
func (m *Manifest) Options() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == KindOption {
			out = append(out, e)
		}
	}
	return out
}

// AllowsPrereleases reports whether the file carries --pre.
func (m *Manifest) AllowsPrereleases() bool {
	for _, e := range m.Options() {
		if e.Option == "--pre" {
			return true
		}
	}
	return false
}

// IndexURLs returns --index-url followed by --extra-index-url values.
func (m *Manifest) IndexURLs() []string {
	var primary, extra []string
	for _, e := range m.Options() {
		switch e.Option {
		case "--index-url":
			primary = append(primary, e.Value)
		case "--extra-index-url":
			extra = append(extra, e.Value)
		}
	}
	return append(primary, extra...)
}

// AllErrors returns line errors of this manifest and its includes.
func (m *Manifest) AllErrors() []*LineError {
	out := append([]*LineError(nil), m.Errors...)
	for _, c := range m.Included {
		out = append(out, c.AllErrors()...)
	}
	for _, c := range m.Constrained {
		out = append(out, c.AllErrors()...)
	}
	return out
}
