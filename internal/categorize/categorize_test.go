package categorize

import (
	"testing"

	"dompet/internal/core"
)

func TestSuggestEmbedded(t *testing.T) {
	e, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}

	tests := []struct {
		desc       string
		txType     core.TransactionType
		want       string
		confidence Confidence
	}{
		{"GrabFood dinner", core.Expense, "Food", High},
		{"Grab to office", core.Expense, "Transport", High},
		{"Gaji Maret", "", "Salary", High},
		{"NETFLIX monthly", core.Expense, "Entertainment", High},
		{"Spotify Premium", core.Expense, "Subscription", High},
		{"air", core.Expense, "Bills", High},
		{"hair cut", core.Expense, Fallback, Low},
		{"Netflix", core.Income, "Other Income", Low},
		{"   ", core.Expense, Fallback, Low},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got := e.Suggest(tt.desc, tt.txType)
			if got.Category != tt.want || got.Confidence != tt.confidence {
				t.Errorf("Suggest(%q) = %+v, want %s/%s", tt.desc, got, tt.want, tt.confidence)
			}
		})
	}
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "rules: [unterminated"},
		{"empty category", "rules:\n  - name: x\n    patterns: [a]\n"},
		{"bad match type", "rules:\n  - name: x\n    category: Food\n    match_type: regex\n    patterns: [a]\n"},
		{"no patterns", "rules:\n  - name: x\n    category: Food\n    patterns: ['  ']\n"},
		{"bad type", "rules:\n  - name: x\n    category: Food\n    type: transfer\n    patterns: [a]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPriorityThenFileOrder(t *testing.T) {
	e, err := NewEngine([]byte(`
rules:
  - name: first
    category: A
    patterns: [shop]
  - name: second
    category: B
    patterns: [shop]
  - name: urgent
    category: C
    priority: 5
    patterns: [coffee]
`))
	if err != nil {
		t.Fatal(err)
	}
	if got := e.Suggest("coffee shop", ""); got.Rule != "urgent" {
		t.Errorf("expected higher priority rule, got %+v", got)
	}
	if got := e.Suggest("shop", ""); got.Rule != "first" {
		t.Errorf("expected file order for ties, got %+v", got)
	}
	if rules := e.Rules(); len(rules) != 3 || rules[0].Name != "urgent" {
		t.Errorf("unexpected rule order %+v", rules)
	}
}
