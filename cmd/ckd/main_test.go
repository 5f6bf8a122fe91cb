package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/preprocess"
)

// writeRawDataset writes a small export in the UCI layout: index column,
// tab-padded values and ? for missing cells
func writeRawDataset(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	var b strings.Builder
	b.WriteString("id," + strings.Join(models.ColumnNames(), ",") + "\n")
	for i := 0; i < n; i++ {
		ckd := i%2 == 0
		sc, hemo, al, htn, class := 0.8+rng.Float64()*0.4, 14+rng.Float64()*3, 0, "no", "notckd"
		if ckd {
			sc, hemo, al, htn, class = 2.5+rng.Float64()*5, 7+rng.Float64()*3, 2+rng.Intn(3), "yes", "ckd"
		}
		pcv := fmt.Sprintf("%.0f", hemo*3)
		if i%7 == 3 {
			pcv = "?"
		}
		fmt.Fprintf(&b, "%d,%d,80,1.020,%d,0,normal,normal,notpresent,notpresent,120,40,%.1f,138,4.5,%.1f,%s,8000,%.1f,%s,no,no,good,no,no,%s\n",
			i, 30+rng.Intn(40), al, sc, hemo, pcv, hemo/3, htn, class)
		if i == 5 {
			// a tab-padded label as found in the UCI file
			s := b.String()
			b.Reset()
			b.WriteString(strings.TrimSuffix(s, "\n") + "\t\n")
		}
	}
	path := filepath.Join(t.TempDir(), "kidney_disease.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

// resetFlags restores defaults; flag values outlive a single Execute
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log", "error"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestPreprocessFull(t *testing.T) {
	raw := writeRawDataset(t, 40)
	out := filepath.Join(t.TempDir(), "processed.csv")

	run(t, "preprocess", "--input", raw, "--output", out, "--mode", "full", "--scale=true")

	tbl, err := dataset.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 40, tbl.Len())
	assert.Equal(t, models.ColumnNames(), tbl.Names())

	pcv, err := tbl.Column("pcv")
	require.NoError(t, err)
	for _, v := range pcv {
		assert.False(t, dataset.IsMissing(v))
	}
	class, err := tbl.Column(models.LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, "0", class[0])
	assert.Equal(t, "1", class[1])
}

func TestPreprocessEncode(t *testing.T) {
	raw := writeRawDataset(t, 20)
	dir := t.TempDir()
	out := filepath.Join(dir, "encoded.csv")
	encPath := filepath.Join(dir, "encoders.json")

	run(t, "preprocess", "--input", raw, "--output", out, "--mode", "encode", "--encoders", encPath)

	tbl, err := dataset.Load(out)
	require.NoError(t, err)
	assert.True(t, tbl.Has(models.EncodedLabelColumn))

	encoders, err := preprocess.LoadEncoders(encPath)
	require.NoError(t, err)
	require.Contains(t, encoders, "htn")
	assert.Equal(t, []string{"no", "yes"}, encoders["htn"].Classes)
}

func TestTrainAndEvaluate(t *testing.T) {
	raw := writeRawDataset(t, 80)
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	plotPath := filepath.Join(dir, "plots", "confusion.txt")

	output := run(t, "train", "--data", raw, "--output", modelPath, "--db", filepath.Join(dir, "ckd.db"),
		"--no-grid", "--trees", "15", "--seed", "7")
	assert.Contains(t, output, "saved to "+modelPath)
	assert.Contains(t, output, "Accuracy:")
	assert.Contains(t, output, "precision")

	artifact, err := mlmodel.LoadArtifact(modelPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"ckd", "notckd"}, artifact.Classes)
	assert.Len(t, artifact.Forest.Trees, 15)

	output = run(t, "evaluate", "--model", modelPath, "--data", raw, "--plot", plotPath, "--top", "3")
	assert.Contains(t, output, "evaluated on 80 rows")
	assert.Contains(t, output, "Top features:")

	plot, err := os.ReadFile(plotPath)
	require.NoError(t, err)
	assert.Contains(t, string(plot), "true\\pred")

	heatmap := filepath.Join(dir, "plots", "confusion.png")
	chart := filepath.Join(dir, "plots", "importance.svg")
	run(t, "evaluate", "--model", modelPath, "--data", raw, "--plot", heatmap, "--importance-plot", chart)

	png, err := os.ReadFile(heatmap)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	svg, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestTrainOnEncodedOutput(t *testing.T) {
	raw := writeRawDataset(t, 60)
	dir := t.TempDir()
	encoded := filepath.Join(dir, "encoded.csv")
	modelPath := filepath.Join(dir, "model.json")

	run(t, "preprocess", "--input", raw, "--output", encoded, "--mode", "encode")

	tbl, err := dataset.LoadRaw(encoded)
	require.NoError(t, err)
	age, err := tbl.Column("age")
	require.NoError(t, err)
	ane, err := tbl.Column("ane")
	require.NoError(t, err)
	for i := range age {
		assert.NotEqual(t, "80", age[i], "bp shifted into age")
		assert.Contains(t, []string{"0", "1"}, ane[i])
	}

	run(t, "train", "--data", encoded, "--output", modelPath, "--no-grid", "--trees", "10", "--seed", "7")

	artifact, err := mlmodel.LoadArtifact(modelPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"ckd", "notckd"}, artifact.Classes)
	assert.Equal(t, models.FeatureNames(), artifact.Pipeline.Features)
	assert.NotContains(t, artifact.Pipeline.Features, models.EncodedLabelColumn)

	output := run(t, "evaluate", "--model", modelPath, "--data", encoded)
	assert.Contains(t, output, "evaluated on 60 rows")
	assert.Contains(t, output, "Accuracy:")
}

func TestLoadTrainingConfig(t *testing.T) {
	config, err := loadTrainingConfig("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTrainingConfig(), config)

	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid_search: false\nn_estimators: 50\nmax_depth: 8\n"), 0644))
	config, err = loadTrainingConfig(path)
	require.NoError(t, err)
	assert.False(t, config.GridSearch)
	assert.Equal(t, 50, config.NEstimators)
	assert.Equal(t, 8, config.MaxDepth)
	assert.True(t, config.UseSMOTE)

	require.NoError(t, os.WriteFile(path, []byte("trees: 50\n"), 0644))
	_, err = loadTrainingConfig(path)
	assert.Error(t, err)
}
