package pipeline

import (
	"testing"
)

func TestNewCreditDataCleaner(t *testing.T) {
	cleaner := NewCreditDataCleaner(nil)
	if cleaner == nil {
		t.Fatal("NewCreditDataCleaner returned nil")
	}

	if len(cleaner.rules) == 0 {
		t.Error("No default rules added")
	}
}

func TestNumericRangeRule(t *testing.T) {
	rule := NewNumericRangeRule("Credit_Score", 300, 850)

	tests := []struct {
		name    string
		values  map[string]string
		wantErr bool
	}{
		{
			name:    "in range",
			values:  map[string]string{"Credit_Score": "720"},
			wantErr: false,
		},
		{
			name:    "upper bound inclusive",
			values:  map[string]string{"Credit_Score": "850"},
			wantErr: false,
		},
		{
			name:    "below range",
			values:  map[string]string{"Credit_Score": "120"},
			wantErr: true,
		},
		{
			name:    "not a number",
			values:  map[string]string{"Credit_Score": "excellent"},
			wantErr: true,
		},
		{
			name:    "NaN",
			values:  map[string]string{"Credit_Score": "NaN"},
			wantErr: true,
		},
		{
			name:    "infinity",
			values:  map[string]string{"Credit_Score": "+Inf"},
			wantErr: true,
		},
		{
			name:    "column absent",
			values:  map[string]string{"Age": "40"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rule.Apply(Row{Values: tt.values})
			if (err != nil) != tt.wantErr {
				t.Errorf("Apply() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequiredFieldsRule(t *testing.T) {
	rule := NewRequiredFieldsRule()

	if _, err := rule.Apply(Row{Values: map[string]string{"Education": "Bachelor"}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := rule.Apply(Row{Values: map[string]string{"Education": ""}}); err == nil {
		t.Error("expected empty value to be rejected")
	}
}

func TestWhitespaceRule(t *testing.T) {
	rule := NewWhitespaceRule()
	in := Row{Index: 3, Values: map[string]string{"Marital_Status": "  Married "}}

	out, err := rule.Apply(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Values["Marital_Status"] != "Married" {
		t.Errorf("got %q, want %q", out.Values["Marital_Status"], "Married")
	}
	if in.Values["Marital_Status"] != "  Married " {
		t.Error("input row was modified")
	}
}

func TestDataCleaner_Clean(t *testing.T) {
	ds := GenerateSynthetic(50, 1)
	cleaner := NewCreditDataCleaner(nil)

	cleaned, issues := cleaner.Clean(ds)
	if len(issues) != 0 {
		t.Fatalf("synthetic data should be clean, got %d issues: %+v", len(issues), issues[0])
	}
	if cleaned.Len() != ds.Len() {
		t.Errorf("expected %d rows, got %d", ds.Len(), cleaned.Len())
	}
	if len(cleaned.Labels) != cleaned.Len() {
		t.Errorf("labels not carried: %d labels for %d rows", len(cleaned.Labels), cleaned.Len())
	}

	stats := cleaner.GetStats()
	if stats.TotalProcessed != 50 || stats.Passed != 50 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDataCleaner_CleanWithInvalidData(t *testing.T) {
	ds := &Dataset{
		Columns:     []string{"Age", "Credit_Score", "Education"},
		LabelColumn: DefaultLabelColumn,
		Rows: [][]string{
			{"35", "700", " Bachelor "},
			{"12", "700", "Bachelor"},
			{"40", "abc", "Graduate"},
			{"50", "650", ""},
			{"28", "810", "Other"},
		},
		Labels: []int{0, 1, 0, 1, 1},
	}
	cleaner := NewCreditDataCleaner(nil)

	cleaned, issues := cleaner.Clean(ds)
	if cleaned.Len() != 2 {
		t.Fatalf("expected 2 rows to survive, got %d", cleaned.Len())
	}
	if len(issues) != 3 {
		t.Errorf("expected 3 issues, got %d", len(issues))
	}
	if cleaned.Rows[0][2] != "Bachelor" {
		t.Errorf("whitespace not trimmed: %q", cleaned.Rows[0][2])
	}
	if cleaned.Labels[0] != 0 || cleaned.Labels[1] != 1 {
		t.Errorf("labels misaligned: %v", cleaned.Labels)
	}

	stats := cleaner.GetStats()
	if stats.Rejected != 3 || stats.Corrected != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Issues["range_age"] != 1 || stats.Issues["range_credit_score"] != 1 || stats.Issues["required_fields"] != 1 {
		t.Errorf("unexpected issue counts: %v", stats.Issues)
	}
}

func BenchmarkDataCleaner_Clean(b *testing.B) {
	ds := GenerateSynthetic(1000, 1)
	cleaner := NewCreditDataCleaner(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cleaner.Clean(ds)
	}
}
