package check

import (
	"cmp"
	"slices"
	"time"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule identifies a check.
type Rule string

const (
	RuleSyntax             Rule = "syntax"
	RuleMarker             Rule = "marker"
	RuleConflict           Rule = "conflict"
	RuleDuplicate          Rule = "duplicate"
	RuleMissing            Rule = "missing"
	RuleConstraintMismatch Rule = "constraint-mismatch"
	RuleUnpinned           Rule = "unpinned"
	RuleLockMismatch       Rule = "lock-mismatch"
	RuleUnknownPackage     Rule = "unknown-package"
	RuleNoRelease          Rule = "no-release"
)

// Rules lists every rule in evaluation order.
var Rules = []Rule{
	RuleSyntax, RuleMarker, RuleConflict, RuleDuplicate, RuleUnpinned,
	RuleMissing, RuleConstraintMismatch, RuleLockMismatch,
	RuleUnknownPackage, RuleNoRelease,
}

// Finding is one rule violation.
type Finding struct {
	Rule     Rule     `json:"rule" bson:"rule"`
	Severity Severity `json:"severity" bson:"severity"`
	Source   string   `json:"source,omitempty" bson:"source,omitempty"` // file, when not the checked manifest
	Line     int      `json:"line,omitempty" bson:"line,omitempty"`
	Package  string   `json:"package,omitempty" bson:"package,omitempty"`
	Message  string   `json:"message" bson:"message"`
}

// Skip records a rule that did not run.
type Skip struct {
	Rule   Rule   `json:"rule" bson:"rule"`
	Reason string `json:"reason" bson:"reason"`
}

// Summary counts findings by severity.
type Summary struct {
	Requirements int `json:"requirements" bson:"requirements"`
	Errors       int `json:"errors" bson:"errors"`
	Warnings     int `json:"warnings" bson:"warnings"`
	Infos        int `json:"infos" bson:"infos"`
}

// Report is the result of one [Run].
type Report struct {
	ID          string            `json:"id" bson:"_id"`
	Manifest    string            `json:"manifest" bson:"manifest"`
	Digest      string            `json:"digest" bson:"digest"`
	Metadata    string            `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Lock        string            `json:"lock,omitempty" bson:"lock,omitempty"`
	Environment map[string]string `json:"environment" bson:"environment"`
	CreatedAt   time.Time         `json:"created_at" bson:"created_at"`
	Findings    []Finding         `json:"findings" bson:"findings"`
	Skipped     []Skip            `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Summary     Summary           `json:"summary" bson:"summary"`
}

// Failed reports whether the report contains errors, or warnings in strict
// mode.
func (r *Report) Failed(strict bool) bool {
	return r.Summary.Errors > 0 || (strict && r.Summary.Warnings > 0)
}

// ByRule returns the findings produced by rule.
func (r *Report) ByRule(rule Rule) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) finish() {
	slices.SortStableFunc(r.Findings, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Source, b.Source),
			cmp.Compare(a.Line, b.Line),
			cmp.Compare(ruleIndex(a.Rule), ruleIndex(b.Rule)),
			cmp.Compare(a.Package, b.Package),
		)
	})
	r.Summary.Errors, r.Summary.Warnings, r.Summary.Infos = 0, 0, 0
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			r.Summary.Errors++
		case SeverityWarning:
			r.Summary.Warnings++
		default:
			r.Summary.Infos++
		}
	}
	if r.Findings == nil {
		r.Findings = []Finding{}
	}
}

func ruleIndex(r Rule) int {
	return slices.Index(Rules, r)
}
