package pep440

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	errs "github.com/matzehuels/reqlint/pkg/errors"
)

// versionRE is the permissive version pattern from PEP 440, Appendix B.
var versionRE = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>alpha|beta|preview|pre|rc|a|b|c)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?\s*$`)

var reGroups = func() map[string]int {
	m := make(map[string]int)
	for i, name := range versionRE.SubexpNames() {
		if name != "" {
			m[name] = i
		}
	}
	return m
}()

// Pre-release labels in ascending order.
const (
	PreAlpha = "a"
	PreBeta  = "b"
	PreRC    = "rc"
)

// Version is a parsed PEP 440 version.
//
// The zero value is not a valid version; use [Parse].
type Version struct {
	Epoch   int
	Release []int
	PreL    string // "a", "b", "rc" or empty
	PreN    int
	Post    int // -1 when absent
	Dev     int // -1 when absent
	Local   []string
	raw     string
	hasPre  bool
	hasPost bool
	hasDev  bool
}

// Parse parses s as a PEP 440 version, accepting the alternative spellings
// the standard allows and normalizing them.
func Parse(s string) (Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errs.New(errs.ErrCodeInvalidVersion, "invalid version %q", s)
	}
	g := func(name string) string { return m[reGroups[name]] }

	v := Version{raw: strings.TrimSpace(s), Post: -1, Dev: -1}
	if e := g("epoch"); e != "" {
		v.Epoch = atoi(e)
	}
	for _, part := range strings.Split(g("release"), ".") {
		v.Release = append(v.Release, atoi(part))
	}
	if l := g("pre_l"); l != "" {
		v.hasPre = true
		v.PreL = normalizePreLabel(l)
		v.PreN = atoi(g("pre_n"))
	}
	if g("post") != "" {
		v.hasPost = true
		if n := g("post_n1"); n != "" {
			v.Post = atoi(n)
		} else {
			v.Post = atoi(g("post_n2"))
		}
	}
	if g("dev") != "" {
		v.hasDev = true
		v.Dev = atoi(g("dev_n"))
	}
	if l := g("local"); l != "" {
		for _, seg := range strings.FieldsFunc(strings.ToLower(l), isLocalSep) {
			v.Local = append(v.Local, seg)
		}
	}
	return v, nil
}

// MustParse is like [Parse] but panics on invalid input.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func isLocalSep(r rune) bool { return r == '.' || r == '-' || r == '_' }

func normalizePreLabel(l string) string {
	switch strings.ToLower(l) {
	case "a", "alpha":
		return PreAlpha
	case "b", "beta":
		return PreBeta
	default:
		return PreRC
	}
}

// atoi converts a regexp-validated digit string; empty means zero.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.MaxInt
	}
	return n
}

// String returns the normalized form of the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		b.WriteString(strconv.Itoa(v.Epoch))
		b.WriteByte('!')
	}
	b.WriteString(v.releaseString())
	if v.hasPre {
		b.WriteString(v.PreL)
		b.WriteString(strconv.Itoa(v.PreN))
	}
	if v.hasPost {
		b.WriteString(".post")
		b.WriteString(strconv.Itoa(v.Post))
	}
	if v.hasDev {
		b.WriteString(".dev")
		b.WriteString(strconv.Itoa(v.Dev))
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(v.Local, "."))
	}
	return b.String()
}

// Raw returns the text the version was parsed from.
func (v Version) Raw() string { return v.raw }

func (v Version) releaseString() string {
	parts := make([]string, len(v.Release))
	for i, n := range v.Release {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// IsPrerelease reports whether v is a pre-release or development release.
func (v Version) IsPrerelease() bool { return v.hasPre || v.hasDev }

// IsPostrelease reports whether v carries a post-release segment.
func (v Version) IsPostrelease() bool { return v.hasPost }

// IsDevrelease reports whether v carries a dev segment.
func (v Version) IsDevrelease() bool { return v.hasDev }

// HasLocal reports whether v carries a local version label.
func (v Version) HasLocal() bool { return len(v.Local) > 0 }

// Public returns v without its local label.
func (v Version) Public() Version {
	v.Local = nil
	return v
}

// Base returns the epoch and release segments only.
func (v Version) Base() Version {
	return Version{Epoch: v.Epoch, Release: v.Release, Post: -1, Dev: -1}
}

// Equal reports whether a and b compare equal.
func (v Version) Equal(o Version) bool { return Compare(v, o) == 0 }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return Compare(v, o) < 0 }

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to,
// or after b. Trailing zero release segments are not significant.
func Compare(a, b Version) int {
	if c := cmpInt(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	if c := cmpRelease(a.Release, b.Release); c != 0 {
		return c
	}
	if c := cmpInt(a.preKey(), b.preKey()); c != 0 {
		return c
	}
	if a.hasPre && b.hasPre {
		if c := cmpInt(a.PreN, b.PreN); c != 0 {
			return c
		}
	}
	if c := cmpInt(a.postKey(), b.postKey()); c != 0 {
		return c
	}
	if c := cmpInt(a.devKey(), b.devKey()); c != 0 {
		return c
	}
	return cmpLocal(a.Local, b.Local)
}

func (v Version) preKey() int {
	switch {
	case !v.hasPre && !v.hasPost && v.hasDev:
		// 1.0.dev0 sorts before 1.0a0
		return math.MinInt
	case !v.hasPre:
		return math.MaxInt
	}
	switch v.PreL {
	case PreAlpha:
		return 0
	case PreBeta:
		return 1
	default:
		return 2
	}
}

func (v Version) postKey() int {
	if !v.hasPost {
		return math.MinInt
	}
	return v.Post
}

func (v Version) devKey() int {
	if !v.hasDev {
		return math.MaxInt
	}
	return v.Dev
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpRelease(a, b []int) int {
	n := max(len(a), len(b))
	for i := range n {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := cmpInt(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// cmpLocal orders local labels: absent sorts first, numeric segments sort
// after alphanumeric ones, and a longer label wins a shared prefix.
func cmpLocal(a, b []string) int {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return -1
	case len(b) == 0:
		return 1
	}
	for i := range min(len(a), len(b)) {
		an, aNum := localNum(a[i])
		bn, bNum := localNum(b[i])
		switch {
		case aNum && bNum:
			if c := cmpInt(an, bn); c != 0 {
				return c
			}
		case aNum:
			return 1
		case bNum:
			return -1
		default:
			if c := strings.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(a), len(b))
}

func localNum(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

// nextRelease returns the smallest version of the release series after
// release, e.g. [1 4] -> 1.5.dev0. It is the exclusive upper bound of
// prefix matches such as ==1.4.* and ~=1.4.2.
func nextRelease(epoch int, release []int) Version {
	next := append([]int(nil), release...)
	next[len(next)-1]++
	return Version{Epoch: epoch, Release: next, Post: -1, Dev: 0, hasDev: true}
}

// firstOfRelease returns the smallest version sharing the release prefix.
func firstOfRelease(epoch int, release []int) Version {
	return Version{Epoch: epoch, Release: append([]int(nil), release...), Post: -1, Dev: 0, hasDev: true}
}
