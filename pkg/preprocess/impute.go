package preprocess

import (
	"fmt"
	"strconv"

	"github.com/go-gota/gota/series"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
)

// ParseNumeric converts a column to floats. The returned mask marks missing
// cells; a present value that is not a number is an error.
func ParseNumeric(values []string) ([]float64, []bool, error) {
	out := make([]float64, len(values))
	missing := make([]bool, len(values))
	for i, v := range values {
		if dataset.IsMissing(v) {
			missing[i] = true
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: invalid number %q", i, v)
		}
		out[i] = f
	}
	return out, missing, nil
}

// Median returns the median of the values not flagged as missing. An even
// count averages the two middle values.
func Median(values []float64, missing []bool) (float64, bool) {
	present := make([]float64, 0, len(values))
	for i, v := range values {
		if missing == nil || !missing[i] {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return 0, false
	}
	return series.Floats(present).Median(), true
}

// FillMedian replaces missing entries in place.
func FillMedian(values []float64, missing []bool, median float64) {
	for i := range values {
		if missing[i] {
			values[i] = median
		}
	}
}

// ForwardFill carries the last present value forward. Leading gaps take the
// first present value so the result has no missing cells unless the whole
// column is missing.
func ForwardFill(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)

	first := ""
	for _, v := range out {
		if !dataset.IsMissing(v) {
			first = v
			break
		}
	}
	if first == "" {
		return out
	}

	last := first
	for i, v := range out {
		if dataset.IsMissing(v) {
			out[i] = last
		} else {
			last = v
		}
	}
	return out
}

// Mode returns the most frequent present value; ties go to the smallest.
func Mode(values []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range values {
		if !dataset.IsMissing(v) {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, bestCount > 0
}
