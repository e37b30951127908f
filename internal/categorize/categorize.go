// Package categorize suggests a transaction category from its description
// using keyword rules.
package categorize

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dompet/internal/core"
)

//go:embed rules.yaml
var embeddedRules []byte

type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchContains MatchType = "contains"
)

type Confidence string

const (
	High Confidence = "high"
	Low  Confidence = "low"
)

// Fallback is suggested when no rule matches.
const Fallback = "Other Expense"

// Rule maps a set of keywords to a category. Type, when set, restricts the
// rule to transactions of that type.
type Rule struct {
	Name      string               `yaml:"name"`
	Patterns  []string             `yaml:"patterns"`
	MatchType MatchType            `yaml:"match_type"`
	Priority  int                  `yaml:"priority"`
	Category  string               `yaml:"category"`
	Type      core.TransactionType `yaml:"type"`
}

type ruleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Suggestion is the outcome of Suggest.
type Suggestion struct {
	Category   string     `json:"suggested_category"`
	Confidence Confidence `json:"confidence"`
	Rule       string     `json:"rule,omitempty"`
	Keyword    string     `json:"keyword,omitempty"`
}

// Engine matches descriptions against rules ordered by priority.
type Engine struct {
	rules []Rule
}

// NewEngine parses and validates YAML rules.
func NewEngine(data []byte) (*Engine, error) {
	var rs ruleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse category rules: %w", err)
	}

	rules := make([]Rule, 0, len(rs.Rules))
	for i, r := range rs.Rules {
		if strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rule %d (%s): category cannot be empty", i, r.Name)
		}
		if r.MatchType == "" {
			r.MatchType = MatchContains
		}
		if r.MatchType != MatchExact && r.MatchType != MatchContains {
			return nil, fmt.Errorf("rule %d (%s): invalid match_type %q", i, r.Name, r.MatchType)
		}
		if r.Type != "" && !r.Type.Valid() {
			return nil, fmt.Errorf("rule %d (%s): invalid type %q", i, r.Name, r.Type)
		}
		patterns := make([]string, 0, len(r.Patterns))
		for _, p := range r.Patterns {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				patterns = append(patterns, p)
			}
		}
		if len(patterns) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no patterns", i, r.Name)
		}
		r.Patterns = patterns
		rules = append(rules, r)
	}

	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	return &Engine{rules: rules}, nil
}

// LoadEmbedded returns an engine over the built-in rules.
func LoadEmbedded() (*Engine, error) {
	e, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("load embedded rules: %w", err)
	}
	return e, nil
}

// LoadFromFile returns an engine over the rules at path.
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	e, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("load rules from %q: %w", path, err)
	}
	return e, nil
}

// Suggest returns the category of the first matching rule. An empty txType
// matches rules of any type.
func (e *Engine) Suggest(description string, txType core.TransactionType) Suggestion {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc != "" {
		for _, r := range e.rules {
			if txType != "" && r.Type != "" && r.Type != txType {
				continue
			}
			if kw, ok := r.match(desc); ok {
				return Suggestion{Category: r.Category, Confidence: High, Rule: r.Name, Keyword: kw}
			}
		}
	}
	fallback := Fallback
	if txType == core.Income {
		fallback = "Other Income"
	}
	return Suggestion{Category: fallback, Confidence: Low}
}

func (r Rule) match(desc string) (string, bool) {
	for _, p := range r.Patterns {
		switch r.MatchType {
		case MatchExact:
			if desc == p {
				return p, true
			}
		case MatchContains:
			if strings.Contains(desc, p) {
				return p, true
			}
		}
	}
	return "", false
}

// Rules returns the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}
