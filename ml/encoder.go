package ml

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UnknownCategory is the sentinel class an encoder fitted with the unknown
// policy maps unseen values to.
const UnknownCategory = "__unknown__"

// UnseenPolicy decides what happens to categorical values outside the
// training vocabulary.
type UnseenPolicy string

const (
	UnseenReject  UnseenPolicy = "reject"
	UnseenUnknown UnseenPolicy = "unknown"
)

// ParseUnseenPolicy maps a config string to a policy, defaulting to reject.
func ParseUnseenPolicy(s string) (UnseenPolicy, error) {
	switch UnseenPolicy(s) {
	case "", UnseenReject:
		return UnseenReject, nil
	case UnseenUnknown:
		return UnseenUnknown, nil
	default:
		return "", errors.New("unseen policy must be \"reject\" or \"unknown\"")
	}
}

// LabelEncoder maps a fixed, sorted vocabulary of strings to 0..n-1.
type LabelEncoder struct {
	Classes    []string `json:"classes"`
	HasUnknown bool     `json:"has_unknown,omitempty"`

	index map[string]int
}

// NewLabelEncoder returns an unfitted encoder. With the unknown policy the
// fitted vocabulary gets the sentinel class appended after the sorted values.
func NewLabelEncoder(policy UnseenPolicy) *LabelEncoder {
	return &LabelEncoder{HasUnknown: policy == UnseenUnknown}
}

func (e *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.New("encoder: no values to fit")
	}
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		v = normalizeCategory(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	if e.HasUnknown {
		classes = append(classes, UnknownCategory)
	}
	e.Classes = classes
	e.buildIndex()
	return nil
}

// Encode returns the code for v. ok is false when v is outside the
// vocabulary and the encoder has no sentinel class.
func (e *LabelEncoder) Encode(v string) (code int, ok bool) {
	code, ok = e.index[normalizeCategory(v)]
	if ok {
		return code, true
	}
	if e.HasUnknown {
		return len(e.Classes) - 1, true
	}
	return 0, false
}

// Decode is the inverse of Encode.
func (e *LabelEncoder) Decode(code int) (string, bool) {
	if code < 0 || code >= len(e.Classes) {
		return "", false
	}
	return e.Classes[code], true
}

func (e *LabelEncoder) Fitted() bool {
	return len(e.Classes) > 0
}

// UnmarshalJSON restores the lookup index along with the vocabulary so a
// loaded encoder is never mutated while serving.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	type plain LabelEncoder
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = LabelEncoder(p)
	e.buildIndex()
	return nil
}

func (e *LabelEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.index[c] = i
	}
}

func normalizeCategory(v string) string {
	return norm.NFC.String(strings.TrimSpace(v))
}
