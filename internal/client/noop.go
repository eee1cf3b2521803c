package client

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/gaspardpetit/unraidlink/internal/graphql"
)

// NoopRule recognizes one "already in desired state" error message. The API
// reports a no-op state transition as an error even when the caller's intent
// is already satisfied; matching errors are collapsed into success.
type NoopRule struct {
	// Operation scopes the rule to one operation name; empty matches any.
	Operation string `yaml:"operation"`
	Pattern   string `yaml:"pattern"`

	re *regexp.Regexp
}

// NoopTable is the enumerated rule set. It is data, not control flow: the
// recognized vocabulary ships as defaults and can be replaced from a YAML
// file without touching code.
type NoopTable struct {
	rules []NoopRule
}

// DefaultNoopRules covers the no-op vocabulary observed from the API. The
// set is intentionally narrow; an unrecognized message is surfaced verbatim.
var DefaultNoopRules = []NoopRule{
	{Operation: "startContainer", Pattern: `(?i)already\s+(started|running)`},
	{Operation: "stopContainer", Pattern: `(?i)already\s+(stopped|exited)`},
	{Operation: "startVM", Pattern: `(?i)already\s+(started|running)`},
	{Operation: "stopVM", Pattern: `(?i)already\s+(stopped|shut\s*off)`},
	{Operation: "startArray", Pattern: `(?i)array\s+is\s+already\s+(started|running)`},
	{Operation: "stopArray", Pattern: `(?i)array\s+is\s+already\s+stopped`},
	{Operation: "", Pattern: `(?i)already\s+in\s+(the\s+)?requested\s+state`},
}

// NewNoopTable compiles a rule set.
func NewNoopTable(rules []NoopRule) (*NoopTable, error) {
	t := &NoopTable{rules: make([]NoopRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("noop rule %q: %w", r.Pattern, err)
		}
		r.re = re
		t.rules = append(t.rules, r)
	}
	return t, nil
}

// DefaultNoopTable returns the compiled default rule set.
func DefaultNoopTable() *NoopTable {
	t, err := NewNoopTable(DefaultNoopRules)
	if err != nil {
		panic(err) // defaults are compile-checked by tests
	}
	return t
}

// LoadNoopTable reads a rule list from a YAML file.
func LoadNoopTable(path string) (*NoopTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []NoopRule
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return nil, fmt.Errorf("parse noop rules %s: %w", path, err)
	}
	return NewNoopTable(rules)
}

// Matches reports whether one error message is a recognized no-op for the
// given operation.
func (t *NoopTable) Matches(operation, message string) bool {
	for _, r := range t.rules {
		if r.Operation != "" && r.Operation != operation {
			continue
		}
		if r.re.MatchString(message) {
			return true
		}
	}
	return false
}

// Collapse reports whether the whole error list can be treated as success:
// every error must match a rule. A single unrecognized error keeps the list
// intact.
func (t *NoopTable) Collapse(operation string, errs []graphql.Error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !t.Matches(operation, e.Message) {
			return false
		}
	}
	return true
}
