package preprocess

import (
	"math"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

func TestLabelEncoderRoundTrip(t *testing.T) {
	enc := &LabelEncoder{}
	values := []string{"notckd", "ckd", "ckd", "notckd", "ckd"}

	codes, err := enc.FitTransform(values)
	require.NoError(t, err)
	assert.Equal(t, []string{"ckd", "notckd"}, enc.Classes)
	assert.Equal(t, []int{1, 0, 0, 1, 0}, codes)

	back, err := enc.Inverse(codes)
	require.NoError(t, err)
	assert.Equal(t, values, back)
}

func TestLabelEncoderUnknown(t *testing.T) {
	enc := &LabelEncoder{}
	require.NoError(t, enc.Fit([]string{"no", "yes"}))

	_, err := enc.Encode("maybe")
	assert.Error(t, err)
	_, err = enc.Decode(2)
	assert.Error(t, err)
	assert.Error(t, enc.Fit(nil))
}

func TestLabelEncoderLookup(t *testing.T) {
	enc := &LabelEncoder{Classes: []string{"no", "yes"}}

	tests := []struct {
		in   string
		want int
	}{
		{"yes", 1},
		{"No", 0},
		{"1", 1},
		{"0.0", 0},
	}
	for _, tt := range tests {
		got, err := enc.Lookup(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := enc.Lookup("7")
	assert.Error(t, err)

	codes := &LabelEncoder{Classes: []string{"0", "1"}}
	got, err := codes.Lookup("yes")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestMedian(t *testing.T) {
	m, ok := Median([]float64{3, 1, 2}, nil)
	require.True(t, ok)
	assert.Equal(t, 2.0, m)

	m, ok = Median([]float64{4, 1, 100, 2}, []bool{false, false, true, false})
	require.True(t, ok)
	assert.Equal(t, 2.0, m)

	m, ok = Median([]float64{1, 2, 3, 4}, nil)
	require.True(t, ok)
	assert.Equal(t, 2.5, m)

	m, ok = Median([]float64{5, -1, 5, 0, 7}, []bool{false, false, false, false, true})
	require.True(t, ok)
	assert.Equal(t, 2.5, m)

	m, ok = Median([]float64{1.2}, []bool{false})
	require.True(t, ok)
	assert.Equal(t, 1.2, m)

	_, ok = Median([]float64{0}, []bool{true})
	assert.False(t, ok)
}

func TestForwardFill(t *testing.T) {
	got := ForwardFill([]string{"NaN", "a", "NaN", "b", "?", ""})
	assert.Equal(t, []string{"a", "a", "a", "b", "b", "b"}, got)

	all := ForwardFill([]string{"NaN", ""})
	assert.True(t, dataset.IsMissing(all[0]))
}

func TestMode(t *testing.T) {
	m, ok := Mode([]string{"b", "a", "b", "a", "NaN", "NaN", "NaN"})
	require.True(t, ok)
	assert.Equal(t, "a", m)

	_, ok = Mode([]string{"?"})
	assert.False(t, ok)
}

func TestParseNumeric(t *testing.T) {
	v, missing, err := ParseNumeric([]string{"1.5", "NaN", "3"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 0, 3}, v)
	assert.Equal(t, []bool{false, true, false}, missing)

	_, _, err = ParseNumeric([]string{"abc"})
	assert.Error(t, err)
}

func TestStandardScaler(t *testing.T) {
	s := &StandardScaler{}
	X := [][]float64{{1, 5}, {3, 5}}
	require.NoError(t, s.Fit(X))

	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Std)

	out, err := s.Transform(X)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1, 0}, {1, 0}}, out)
	assert.Equal(t, X[0], s.Inverse(out[0]))

	_, err = s.TransformRow([]float64{1})
	assert.Error(t, err)
}

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable(
		[]string{"sc", "hemo", "dm", "class"},
		[][]string{
			{"1.2", "15", "no", "notckd"},
			{"NaN", "9", "yes", "ckd"},
			{"4.5", "NaN", "NaN", "ckd"},
			{"0.9", "14", "no", "notckd"},
			{"2.0", "11", "yes", "ckd"},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestPipelineFitTransform(t *testing.T) {
	tbl := sampleTable(t)
	p := NewPipeline([]string{"sc", "hemo", "dm"}, false)

	X, err := p.FitTransform(tbl)
	require.NoError(t, err)
	require.Len(t, X, 5)

	assert.InDelta(t, 1.6, p.Medians["sc"], 1e-9)
	assert.InDelta(t, 12.5, p.Medians["hemo"], 1e-9)
	assert.Equal(t, []string{"no", "yes"}, p.Encoders["dm"].Classes)

	// sc imputed with median, dm forward-filled from "yes"
	assert.InDelta(t, 1.6, X[1][0], 1e-9)
	assert.InDelta(t, 12.5, X[2][1], 1e-9)
	assert.Equal(t, 1.0, X[2][2])
}

func TestPipelineScaledOutput(t *testing.T) {
	tbl := sampleTable(t)
	p := NewPipeline([]string{"sc", "hemo", "dm"}, true)

	X, err := p.FitTransform(tbl)
	require.NoError(t, err)

	for j := range p.Features {
		var sum float64
		for _, row := range X {
			sum += row[j]
		}
		assert.InDelta(t, 0, sum/float64(len(X)), 1e-9)
	}
	for _, row := range X {
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestPipelineTransformRecord(t *testing.T) {
	tbl := sampleTable(t)
	p := NewPipeline([]string{"sc", "hemo", "dm"}, false)
	require.NoError(t, p.Fit(tbl))

	x, err := p.TransformRecord(map[string]string{"sc": "3.1", "dm": "yes"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3.1, 12.5, 1}, x)

	x, err = p.TransformRecord(map[string]string{"sc": "3.1", "hemo": "10", "dm": "0"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3.1, 10, 0}, x)

	_, err = p.TransformRecord(map[string]string{"sc": "high"})
	assert.Error(t, err)
}

func TestPipelineRejectsLabelFeature(t *testing.T) {
	p := NewPipeline([]string{"sc", "class"}, false)
	assert.Error(t, p.Fit(sampleTable(t)))
}

func TestPipelineApply(t *testing.T) {
	tbl := sampleTable(t)
	p := NewPipeline([]string{"sc", "dm"}, false)
	require.NoError(t, p.Fit(tbl))

	labels := &LabelEncoder{}
	class, err := tbl.Column("class")
	require.NoError(t, err)
	require.NoError(t, labels.Fit(class))

	out, err := p.Apply(tbl, "class", labels)
	require.NoError(t, err)
	assert.Equal(t, []string{"sc", "dm", "class"}, out.Names())

	codes, err := out.Column("class")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "0", "0", "1", "0"}, codes)
}

func TestEncodeCategoricalRoundTrip(t *testing.T) {
	tbl := sampleTable(t)

	out, encoders, err := EncodeCategorical(tbl, "class")
	require.NoError(t, err)
	assert.Contains(t, out.Names(), models.EncodedLabelColumn)

	dm, err := out.Column("dm")
	require.NoError(t, err)
	assert.Equal(t, []string{"nan", "no", "yes"}, encoders["dm"].Classes)
	assert.Equal(t, []string{"1", "2", "0", "1", "2"}, dm)

	encoded, err := out.Column(models.EncodedLabelColumn)
	require.NoError(t, err)
	codes := make([]int, len(encoded))
	for i, v := range encoded {
		codes[i], err = strconv.Atoi(v)
		require.NoError(t, err)
	}
	back, err := encoders["class"].Inverse(codes)
	require.NoError(t, err)

	original, err := tbl.Column("class")
	require.NoError(t, err)
	assert.Equal(t, original, back)

	path := filepath.Join(t.TempDir(), "encoders.json")
	require.NoError(t, SaveEncoders(path, encoders))
	loaded, err := LoadEncoders(path)
	require.NoError(t, err)
	assert.Equal(t, encoders["class"].Classes, loaded["class"].Classes)
}

func TestEncodeCategoricalMissingLabel(t *testing.T) {
	_, _, err := EncodeCategorical(sampleTable(t), "target")
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}
