package preprocess

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// LabelEncoder maps the distinct labels of a column onto 0..n-1. Classes are
// kept sorted so codes are stable across runs.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// Fit learns the sorted set of distinct values.
func (e *LabelEncoder) Fit(values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	if len(seen) == 0 {
		return fmt.Errorf("cannot fit label encoder on an empty column")
	}
	e.Classes = make([]string, 0, len(seen))
	for v := range seen {
		e.Classes = append(e.Classes, v)
	}
	sort.Strings(e.Classes)
	return nil
}

// Encode returns the code of a single label.
func (e *LabelEncoder) Encode(v string) (int, error) {
	i := sort.SearchStrings(e.Classes, v)
	if i < len(e.Classes) && e.Classes[i] == v {
		return i, nil
	}
	return 0, fmt.Errorf("unknown label %q", v)
}

// Transform encodes every value.
func (e *LabelEncoder) Transform(values []string) ([]int, error) {
	codes := make([]int, len(values))
	for i, v := range values {
		c, err := e.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		codes[i] = c
	}
	return codes, nil
}

// FitTransform fits the encoder and encodes values.
func (e *LabelEncoder) FitTransform(values []string) ([]int, error) {
	if err := e.Fit(values); err != nil {
		return nil, err
	}
	return e.Transform(values)
}

// Decode returns the label of a code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("code %d out of range [0, %d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// Inverse decodes every code.
func (e *LabelEncoder) Inverse(codes []int) ([]string, error) {
	labels := make([]string, len(codes))
	for i, c := range codes {
		l, err := e.Decode(c)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		labels[i] = l
	}
	return labels, nil
}

// Lookup resolves a submitted value. Form front ends send either the label
// itself or its numeric code; yes/no are accepted for binary columns.
func (e *LabelEncoder) Lookup(v string) (int, error) {
	if c, err := e.Encode(v); err == nil {
		return c, nil
	}
	lower := strings.ToLower(v)
	if c, err := e.Encode(lower); err == nil {
		return c, nil
	}
	switch lower {
	case "yes", "true":
		lower = "1"
	case "no", "false":
		lower = "0"
	}
	if code, err := strconv.Atoi(lower); err == nil {
		if _, err := e.Decode(code); err == nil {
			return code, nil
		}
	}
	if f, err := strconv.ParseFloat(lower, 64); err == nil && f == float64(int(f)) {
		if _, err := e.Decode(int(f)); err == nil {
			return int(f), nil
		}
	}
	return 0, fmt.Errorf("unknown label %q (known: %s)", v, strings.Join(e.Classes, ", "))
}
