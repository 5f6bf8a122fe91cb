package predictor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// ErrValidation marks errors caused by the caller's input
var ErrValidation = errors.New("invalid input")

// bound is an inclusive range for a clinical field
type bound struct {
	min, max float64
}

var clinicalBounds = map[string]bound{
	"sc":   {0.1, 20},
	"hemo": {3, 20},
	"al":   {0, 5},
	"sg":   {1.000, 1.040},
	"pcv":  {10, 60},
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ParseClinical validates the eight screening fields
func ParseClinical(fields map[string]string) (*models.ClinicalInput, error) {
	num := func(name string) (float64, error) {
		v, err := requireField(fields, name)
		if err != nil {
			return 0, err
		}
		f, err := parseNumber(name, v)
		if err != nil {
			return 0, err
		}
		if b, ok := clinicalBounds[name]; ok && (f < b.min || f > b.max) {
			return 0, invalid("%s must be between %g and %g, got %g", name, b.min, b.max, f)
		}
		return f, nil
	}
	flag := func(name string) (bool, error) {
		v, err := requireField(fields, name)
		if err != nil {
			return false, err
		}
		return parseYesNo(name, v)
	}

	in := &models.ClinicalInput{}
	var err error
	if in.SerumCreatinine, err = num("sc"); err != nil {
		return nil, err
	}
	if in.Hemoglobin, err = num("hemo"); err != nil {
		return nil, err
	}
	if in.Albumin, err = num("al"); err != nil {
		return nil, err
	}
	if in.SpecificGravity, err = num("sg"); err != nil {
		return nil, err
	}
	if in.PackedCellVolume, err = num("pcv"); err != nil {
		return nil, err
	}
	if in.RedBloodCells, err = num("rbcc"); err != nil {
		return nil, err
	}
	if in.RedBloodCells <= 0 {
		return nil, invalid("rbcc must be positive, got %g", in.RedBloodCells)
	}
	if in.Diabetes, err = flag("dm"); err != nil {
		return nil, err
	}
	if in.Hypertension, err = flag("htn"); err != nil {
		return nil, err
	}
	return in, nil
}

// IsFullRecord reports whether fields carries all 24 dataset features
func IsFullRecord(fields map[string]string) bool {
	for _, name := range models.FeatureNames() {
		if _, ok := fields[name]; !ok {
			return false
		}
	}
	return true
}

// ParseFull validates a 24-feature record and returns it normalised.
// Numeric features must parse. Categorical features may be a label, its
// code in sorted label order, or yes/no; they are returned as the label.
func ParseFull(fields map[string]string) (map[string]string, error) {
	rec := make(map[string]string, len(models.Columns))
	for _, c := range models.Columns {
		if c.Kind == models.ColumnLabel {
			continue
		}
		v, err := requireField(fields, c.Name)
		if err != nil {
			return nil, err
		}
		if c.Kind == models.ColumnNumeric {
			f, err := parseNumber(c.Name, v)
			if err != nil {
				return nil, err
			}
			if f < 0 {
				return nil, invalid("%s must not be negative, got %g", c.Name, f)
			}
			v = strconv.FormatFloat(f, 'f', -1, 64)
		} else if v, err = parseCategorical(c, v); err != nil {
			return nil, err
		}
		rec[c.Name] = v
	}
	return rec, nil
}

// ClinicalFromRecord extracts the screening panel from a full record.
// Markers that are absent or unparsable keep their neutral value.
func ClinicalFromRecord(rec map[string]string) models.ClinicalInput {
	in := NeutralInput()
	set := func(name string, dst *float64) {
		if f, err := strconv.ParseFloat(strings.TrimSpace(rec[name]), 64); err == nil && !math.IsNaN(f) {
			*dst = f
		}
	}
	set("sc", &in.SerumCreatinine)
	set("hemo", &in.Hemoglobin)
	set("al", &in.Albumin)
	set("sg", &in.SpecificGravity)
	set("pcv", &in.PackedCellVolume)
	set("rc", &in.RedBloodCells)
	if b, err := parseYesNo("dm", rec["dm"]); err == nil {
		in.Diabetes = b
	}
	if b, err := parseYesNo("htn", rec["htn"]); err == nil {
		in.Hypertension = b
	}
	return in
}

// parseCategorical resolves a submitted value to one of the column's labels.
// Codes follow the sorted label order a fitted encoder uses.
func parseCategorical(c models.Column, v string) (string, error) {
	lower := strings.ToLower(v)
	if len(c.Options) == 0 {
		return lower, nil
	}
	for _, o := range c.Options {
		if lower == o {
			return o, nil
		}
	}

	sorted := append([]string(nil), c.Options...)
	sort.Strings(sorted)
	switch lower {
	case "yes", "true":
		lower = "1"
	case "no", "false":
		lower = "0"
	}
	if f, err := strconv.ParseFloat(lower, 64); err == nil && f == math.Trunc(f) && f >= 0 && f < float64(len(sorted)) {
		return sorted[int(f)], nil
	}
	return "", invalid("%s must be one of %s, got %q", c.Name, strings.Join(c.Options, ", "), v)
}

func requireField(fields map[string]string, name string) (string, error) {
	v := strings.TrimSpace(fields[name])
	if v == "" {
		return "", invalid("missing required field: %s", name)
	}
	return v, nil
}

func parseNumber(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid("%s must be a number, got %q", name, v)
	}
	return f, nil
}

func parseYesNo(name, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "y":
		return true, nil
	case "0", "no", "false", "n":
		return false, nil
	}
	return false, invalid("%s must be yes/no or 1/0, got %q", name, v)
}
