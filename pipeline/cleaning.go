package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Row is one dataset sample as seen by cleaning rules.
type Row struct {
	Index  int
	Values map[string]string
}

// CleaningRule validates or corrects a row. Returning an error rejects it.
type CleaningRule interface {
	Apply(row Row) (Row, error)
	Name() string
}

type QualityIssue struct {
	Rule      string    `json:"rule"`
	Row       int       `json:"row"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// DataCleaner runs every rule over every row and drops rows any rule rejects.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	mu    sync.Mutex
	stats CleaningStats
}

func NewDataCleaner(logger *zap.Logger, rules ...CleaningRule) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	dc := &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}
	for _, rule := range rules {
		dc.AddRule(rule)
	}
	return dc
}

// NewCreditDataCleaner returns a cleaner with the default rules for the
// credit dataset.
func NewCreditDataCleaner(logger *zap.Logger) *DataCleaner {
	return NewDataCleaner(logger,
		NewWhitespaceRule(),
		NewRequiredFieldsRule(),
		NewNumericRangeRule("Age", 18, 120),
		NewNumericRangeRule("Income", 0, 1e7),
		NewNumericRangeRule("Credit_Score", 300, 850),
		NewNumericRangeRule("Employment_Years", 0, 80),
		NewNumericRangeRule("Debt_to_Income", 0, 10),
		NewNumericRangeRule("Loan_Amount", 0, 1e7),
	)
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean returns a new dataset holding the rows every rule accepted, with
// any corrections applied, and the issues found.
func (dc *DataCleaner) Clean(ds *Dataset) (*Dataset, []QualityIssue) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	out := &Dataset{Columns: ds.Columns, LabelColumn: ds.LabelColumn}
	labelled := len(ds.Labels) == len(ds.Rows)
	var issues []QualityIssue

	for i, values := range ds.Rows {
		dc.stats.TotalProcessed++
		row := Row{Index: i, Values: make(map[string]string, len(ds.Columns))}
		for j, col := range ds.Columns {
			row.Values[col] = values[j]
		}

		rejected := false
		for _, rule := range dc.rules {
			cleaned, err := rule.Apply(row)
			if err != nil {
				issues = append(issues, QualityIssue{
					Rule:      rule.Name(),
					Row:       i,
					Message:   err.Error(),
					Timestamp: time.Now(),
				})
				dc.stats.Issues[rule.Name()]++
				rejected = true
				break
			}
			row = cleaned
		}
		if rejected {
			dc.stats.Rejected++
			continue
		}

		cleanedValues := make([]string, len(ds.Columns))
		changed := false
		for j, col := range ds.Columns {
			cleanedValues[j] = row.Values[col]
			if cleanedValues[j] != values[j] {
				changed = true
			}
		}
		if changed {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		out.Rows = append(out.Rows, cleanedValues)
		if labelled {
			out.Labels = append(out.Labels, ds.Labels[i])
		}
	}
	dc.stats.LastClean = time.Now()

	if len(issues) > 0 {
		dc.logger.Warn("rejected rows during cleaning",
			zap.Int("rejected", len(issues)),
			zap.Int("kept", len(out.Rows)),
			zap.String("first_issue", issues[0].Message))
	}
	return out, issues
}

func (dc *DataCleaner) GetStats() CleaningStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// WhitespaceRule trims surrounding whitespace from every value.
type WhitespaceRule struct{}

func NewWhitespaceRule() *WhitespaceRule {
	return &WhitespaceRule{}
}

func (r *WhitespaceRule) Name() string {
	return "whitespace"
}

func (r *WhitespaceRule) Apply(row Row) (Row, error) {
	values := make(map[string]string, len(row.Values))
	for k, v := range row.Values {
		values[k] = strings.TrimSpace(v)
	}
	return Row{Index: row.Index, Values: values}, nil
}

// RequiredFieldsRule rejects rows with empty values.
type RequiredFieldsRule struct{}

func NewRequiredFieldsRule() *RequiredFieldsRule {
	return &RequiredFieldsRule{}
}

func (r *RequiredFieldsRule) Name() string {
	return "required_fields"
}

func (r *RequiredFieldsRule) Apply(row Row) (Row, error) {
	for col, v := range row.Values {
		if v == "" {
			return row, fmt.Errorf("column %s is empty", col)
		}
	}
	return row, nil
}

// NumericRangeRule rejects rows whose column is not a number in [Min, Max].
// Rows without the column pass untouched.
type NumericRangeRule struct {
	Column string
	Min    float64
	Max    float64
}

func NewNumericRangeRule(column string, lo, hi float64) *NumericRangeRule {
	return &NumericRangeRule{Column: column, Min: lo, Max: hi}
}

func (r *NumericRangeRule) Name() string {
	return "range_" + strings.ToLower(r.Column)
}

func (r *NumericRangeRule) Apply(row Row) (Row, error) {
	raw, ok := row.Values[r.Column]
	if !ok {
		return row, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return row, fmt.Errorf("%s %q is not a number", r.Column, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return row, fmt.Errorf("%s %q is not finite", r.Column, raw)
	}
	if v < r.Min || v > r.Max {
		return row, fmt.Errorf("%s %v out of range [%v, %v]", r.Column, v, r.Min, r.Max)
	}
	return row, nil
}
