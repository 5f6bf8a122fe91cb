package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// missingLabel is the class a missing categorical cell is encoded as when no
// imputation runs first.
const missingLabel = "nan"

// EncodeCategorical label-encodes every categorical column of t in place of
// its text values and appends the encoded label as class_encoded. Missing
// cells become their own "nan" class. The fitted encoders are returned keyed
// by column name.
func EncodeCategorical(t *dataset.Table, label string) (*dataset.Table, map[string]*LabelEncoder, error) {
	if !t.Has(label) {
		return nil, nil, fmt.Errorf("%w: %s", dataset.ErrColumnNotFound, label)
	}

	encoders := make(map[string]*LabelEncoder)
	out := t
	for _, name := range t.Names() {
		kind, err := t.Kind(name)
		if err != nil {
			return nil, nil, err
		}
		if kind != models.ColumnCategorical {
			continue
		}
		codes, enc, err := encodeColumn(t, name)
		if err != nil {
			return nil, nil, err
		}
		if out, err = out.WithColumn(name, codes); err != nil {
			return nil, nil, err
		}
		encoders[name] = enc
	}

	codes, enc, err := encodeColumn(t, label)
	if err != nil {
		return nil, nil, err
	}
	if out, err = out.WithColumn(models.EncodedLabelColumn, codes); err != nil {
		return nil, nil, err
	}
	encoders[label] = enc
	return out, encoders, nil
}

func encodeColumn(t *dataset.Table, name string) ([]string, *LabelEncoder, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, nil, err
	}
	for i, v := range values {
		if dataset.IsMissing(v) {
			values[i] = missingLabel
		}
	}
	enc := &LabelEncoder{}
	codes, err := enc.FitTransform(values)
	if err != nil {
		return nil, nil, fmt.Errorf("column %s: %w", name, err)
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = strconv.Itoa(c)
	}
	return out, enc, nil
}

// SaveEncoders writes the class lists of each encoder as JSON.
func SaveEncoders(path string, encoders map[string]*LabelEncoder) error {
	classes := make(map[string][]string, len(encoders))
	for name, enc := range encoders {
		classes[name] = enc.Classes
	}
	data, err := json.MarshalIndent(classes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal encoders: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write encoders: %w", err)
	}
	return nil
}

// LoadEncoders reads encoders written by SaveEncoders.
func LoadEncoders(path string) (map[string]*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encoders: %w", err)
	}
	var classes map[string][]string
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, fmt.Errorf("failed to parse encoders: %w", err)
	}
	encoders := make(map[string]*LabelEncoder, len(classes))
	for name, c := range classes {
		encoders[name] = &LabelEncoder{Classes: c}
	}
	return encoders, nil
}
