package preprocess

import (
	"fmt"
	"strconv"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// Pipeline holds everything learned from the training rows that is needed
// to turn a raw record into a model input vector.
type Pipeline struct {
	Features []string                     `json:"features"`
	Kinds    map[string]models.ColumnKind `json:"kinds"`
	Medians  map[string]float64           `json:"medians"`
	Modes    map[string]string            `json:"modes"`
	Encoders map[string]*LabelEncoder     `json:"encoders"`
	Scaler   *StandardScaler              `json:"scaler,omitempty"`
}

// NewPipeline creates an unfitted pipeline over the given features. A nil
// feature list selects the 24 CKD features.
func NewPipeline(features []string, scale bool) *Pipeline {
	if features == nil {
		features = models.FeatureNames()
	}
	p := &Pipeline{
		Features: append([]string(nil), features...),
		Kinds:    make(map[string]models.ColumnKind),
		Medians:  make(map[string]float64),
		Modes:    make(map[string]string),
		Encoders: make(map[string]*LabelEncoder),
	}
	if scale {
		p.Scaler = &StandardScaler{}
	}
	return p
}

// Fit learns medians, modes, encoders and scaling from t.
func (p *Pipeline) Fit(t *dataset.Table) error {
	for _, f := range p.Features {
		kind, err := t.Kind(f)
		if err != nil {
			return err
		}
		values, err := t.Column(f)
		if err != nil {
			return err
		}

		switch kind {
		case models.ColumnNumeric:
			nums, missing, err := ParseNumeric(values)
			if err != nil {
				return fmt.Errorf("feature %s: %w", f, err)
			}
			median, ok := Median(nums, missing)
			if !ok {
				return fmt.Errorf("feature %s has no values", f)
			}
			p.Medians[f] = median
		case models.ColumnCategorical:
			filled := ForwardFill(values)
			mode, ok := Mode(filled)
			if !ok {
				return fmt.Errorf("feature %s has no values", f)
			}
			enc := &LabelEncoder{}
			if err := enc.Fit(filled); err != nil {
				return fmt.Errorf("feature %s: %w", f, err)
			}
			p.Modes[f] = mode
			p.Encoders[f] = enc
		default:
			return fmt.Errorf("column %s cannot be used as a feature", f)
		}
		p.Kinds[f] = kind
	}

	if p.Scaler == nil {
		return nil
	}
	X, err := p.encode(t)
	if err != nil {
		return err
	}
	return p.Scaler.Fit(X)
}

// Transform imputes, encodes and scales every row of t.
func (p *Pipeline) Transform(t *dataset.Table) ([][]float64, error) {
	X, err := p.encode(t)
	if err != nil {
		return nil, err
	}
	if p.Scaler == nil {
		return X, nil
	}
	return p.Scaler.Transform(X)
}

// FitTransform fits on t and returns its transformed rows.
func (p *Pipeline) FitTransform(t *dataset.Table) ([][]float64, error) {
	if err := p.Fit(t); err != nil {
		return nil, err
	}
	return p.Transform(t)
}

// encode builds the unscaled feature matrix.
func (p *Pipeline) encode(t *dataset.Table) ([][]float64, error) {
	X := make([][]float64, t.Len())
	for i := range X {
		X[i] = make([]float64, len(p.Features))
	}

	for j, f := range p.Features {
		values, err := t.Column(f)
		if err != nil {
			return nil, err
		}
		switch p.Kinds[f] {
		case models.ColumnNumeric:
			nums, missing, err := ParseNumeric(values)
			if err != nil {
				return nil, fmt.Errorf("feature %s: %w", f, err)
			}
			FillMedian(nums, missing, p.Medians[f])
			for i, v := range nums {
				X[i][j] = v
			}
		case models.ColumnCategorical:
			filled := ForwardFill(values)
			for i, v := range filled {
				if dataset.IsMissing(v) {
					v = p.Modes[f]
				}
				code, err := p.Encoders[f].Lookup(v)
				if err != nil {
					return nil, fmt.Errorf("feature %s row %d: %w", f, i, err)
				}
				X[i][j] = float64(code)
			}
		default:
			return nil, fmt.Errorf("pipeline has not been fitted for feature %s", f)
		}
	}
	return X, nil
}

// TransformRecord turns a single record into a model input vector. Absent
// or missing features are imputed with the training median or mode.
func (p *Pipeline) TransformRecord(rec map[string]string) ([]float64, error) {
	x := make([]float64, len(p.Features))
	for j, f := range p.Features {
		v, ok := rec[f]
		missing := !ok || dataset.IsMissing(v)

		switch p.Kinds[f] {
		case models.ColumnNumeric:
			if missing {
				x[j] = p.Medians[f]
				continue
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("feature %s: invalid number %q", f, v)
			}
			x[j] = n
		case models.ColumnCategorical:
			if missing {
				v = p.Modes[f]
			}
			code, err := p.Encoders[f].Lookup(v)
			if err != nil {
				return nil, fmt.Errorf("feature %s: %w", f, err)
			}
			x[j] = float64(code)
		default:
			return nil, fmt.Errorf("pipeline has not been fitted for feature %s", f)
		}
	}
	if p.Scaler == nil {
		return x, nil
	}
	return p.Scaler.TransformRow(x)
}

// Apply returns a fully numeric copy of t: features transformed by p and
// the label column, when present, encoded with labels.
func (p *Pipeline) Apply(t *dataset.Table, label string, labels *LabelEncoder) (*dataset.Table, error) {
	X, err := p.Transform(t)
	if err != nil {
		return nil, err
	}

	header := append([]string(nil), p.Features...)
	var codes []int
	if label != "" && labels != nil && t.Has(label) {
		values, err := t.Column(label)
		if err != nil {
			return nil, err
		}
		if codes, err = labels.Transform(values); err != nil {
			return nil, fmt.Errorf("label %s: %w", label, err)
		}
		header = append(header, label)
	}

	rows := make([][]string, len(X))
	for i, x := range X {
		row := make([]string, 0, len(header))
		for _, v := range x {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if codes != nil {
			row = append(row, strconv.Itoa(codes[i]))
		}
		rows[i] = row
	}
	return dataset.NewTable(header, rows)
}
