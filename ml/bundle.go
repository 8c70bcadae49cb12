package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
)

// DefaultThreshold is the positive-class probability at or above which a
// record is labelled 1.
const DefaultThreshold = 0.5

// Bundle is everything inference needs, fitted together at training time:
// the column order, one encoder per categorical column, the scaler and the
// classifier. A loaded bundle is never mutated.
type Bundle struct {
	FeatureColumns []string                 `json:"feature_columns"`
	Encoders       map[string]*LabelEncoder `json:"label_encoders"`
	Scaler         *StandardScaler          `json:"scaler"`
	Model          *RandomForest            `json:"model"`
	Threshold      float64                  `json:"threshold"`
	UnseenPolicy   UnseenPolicy             `json:"unseen_policy"`
	TrainedAt      time.Time                `json:"trained_at"`
	Report         *Report                  `json:"report,omitempty"`
	Fingerprint    string                   `json:"fingerprint"`
}

func (b *Bundle) IsCategorical(column string) bool {
	_, ok := b.Encoders[column]
	return ok
}

// CategoricalColumns returns the categorical columns in feature order.
func (b *Bundle) CategoricalColumns() []string {
	out := make([]string, 0, len(b.Encoders))
	for _, col := range b.FeatureColumns {
		if b.IsCategorical(col) {
			out = append(out, col)
		}
	}
	return out
}

// ComputeFingerprint hashes the preprocessing contract: column order,
// which columns are categorical and their vocabularies.
func (b *Bundle) ComputeFingerprint() string {
	h := sha256.New()
	for _, col := range b.FeatureColumns {
		fmt.Fprintf(h, "col:%s\n", col)
	}
	names := make([]string, 0, len(b.Encoders))
	for name := range b.Encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "enc:%s\n", name)
		for _, c := range b.Encoders[name].Classes {
			fmt.Fprintf(h, "  %s\n", c)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate reports every inconsistency between the bundle's parts.
func (b *Bundle) Validate() error {
	var err error
	if len(b.FeatureColumns) == 0 {
		err = multierr.Append(err, fmt.Errorf("bundle has no feature columns"))
	}
	seen := make(map[string]struct{}, len(b.FeatureColumns))
	for _, col := range b.FeatureColumns {
		if _, dup := seen[col]; dup {
			err = multierr.Append(err, fmt.Errorf("duplicate feature column %q", col))
		}
		seen[col] = struct{}{}
	}
	for name, enc := range b.Encoders {
		if _, ok := seen[name]; !ok {
			err = multierr.Append(err, fmt.Errorf("encoder %q is not a feature column", name))
		}
		if enc == nil || !enc.Fitted() {
			err = multierr.Append(err, fmt.Errorf("encoder %q is not fitted", name))
		}
	}
	if b.Scaler == nil || !b.Scaler.Fitted() {
		err = multierr.Append(err, fmt.Errorf("scaler is not fitted"))
	} else if b.Scaler.Width() != len(b.FeatureColumns) {
		err = multierr.Append(err, fmt.Errorf("scaler width %d does not match %d feature columns", b.Scaler.Width(), len(b.FeatureColumns)))
	}
	if b.Model == nil || !b.Model.Fitted() {
		err = multierr.Append(err, fmt.Errorf("model is not fitted"))
	} else if b.Model.NFeatures != len(b.FeatureColumns) {
		err = multierr.Append(err, fmt.Errorf("model expects %d features, bundle has %d columns", b.Model.NFeatures, len(b.FeatureColumns)))
	}
	if b.Threshold < 0 || b.Threshold > 1 {
		err = multierr.Append(err, fmt.Errorf("threshold %v outside [0,1]", b.Threshold))
	}
	if b.Fingerprint != "" && b.Fingerprint != b.ComputeFingerprint() {
		err = multierr.Append(err, fmt.Errorf("fingerprint mismatch"))
	}
	return err
}

// Summary is the public description of a bundle served by the model info endpoint.
type Summary struct {
	FeatureColumns []string            `json:"feature_columns"`
	Categories     map[string][]string `json:"categories"`
	Threshold      float64             `json:"threshold"`
	UnseenPolicy   UnseenPolicy        `json:"unseen_policy"`
	TrainedAt      time.Time           `json:"trained_at"`
	Fingerprint    string              `json:"fingerprint"`
	Trees          int                 `json:"trees"`
	Report         *Report             `json:"report,omitempty"`
}

func (b *Bundle) Summary() Summary {
	cats := make(map[string][]string, len(b.Encoders))
	for name, enc := range b.Encoders {
		cats[name] = append([]string(nil), enc.Classes...)
	}
	trees := 0
	if b.Model != nil {
		trees = len(b.Model.Trees)
	}
	return Summary{
		FeatureColumns: append([]string(nil), b.FeatureColumns...),
		Categories:     cats,
		Threshold:      b.Threshold,
		UnseenPolicy:   b.UnseenPolicy,
		TrainedAt:      b.TrainedAt,
		Fingerprint:    b.Fingerprint,
		Trees:          trees,
		Report:         b.Report,
	}
}
