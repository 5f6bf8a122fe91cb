package mlmodel

import (
	"context"
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// syntheticCKD builds a table shaped like the UCI export where CKD rows have
// raised creatinine, low hemoglobin and albuminuria. Roughly 5% of cells are
// missing.
func syntheticCKD(t *testing.T, nCKD, nHealthy int, seed int64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	pick := func(p float64, yes, no string) string {
		if rng.Float64() < p {
			return yes
		}
		return no
	}

	var rows [][]string
	for i := 0; i < nCKD+nHealthy; i++ {
		ckd := i < nCKD
		sc, hemo, al, sg, class := 0.9+rng.Float64()*0.4, 13+rng.Float64()*4, 0.0, 1.020, "notckd"
		pDisease := 0.05
		if ckd {
			sc, hemo, al, sg, class = 1.8+rng.Float64()*6, 7+rng.Float64()*5, float64(1+rng.Intn(4)), 1.010, "ckd"
			pDisease = 0.6
		}
		row := []string{
			f(20 + rng.Float64()*60), f(70 + rng.Float64()*20), f(sg), f(al), "0",
			pick(0.8, "normal", "abnormal"), pick(0.8, "normal", "abnormal"),
			"notpresent", "notpresent", f(90 + rng.Float64()*60), f(20 + rng.Float64()*40),
			f(sc), f(135 + rng.Float64()*10), f(3.5 + rng.Float64()*1.5), f(hemo),
			f(hemo * 3), f(6000 + rng.Float64()*4000), f(hemo / 3),
			pick(pDisease, "yes", "no"), pick(pDisease, "yes", "no"), "no",
			pick(pDisease/2, "poor", "good"), pick(pDisease/2, "yes", "no"), pick(pDisease/2, "yes", "no"),
			class,
		}
		for j := 0; j < len(row)-1; j++ {
			if rng.Float64() < 0.05 {
				row[j] = "NaN"
			}
		}
		rows = append(rows, row)
	}
	tbl, err := dataset.NewTable(models.ColumnNames(), rows)
	require.NoError(t, err)
	return tbl
}

func fastConfig() *models.TrainingConfig {
	config := models.DefaultTrainingConfig()
	config.GridSearch = false
	config.NEstimators = 25
	return config
}

func TestServiceTrainAndRegister(t *testing.T) {
	dir := t.TempDir()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(dir, "ckd.db"))
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, nil)
	tbl := syntheticCKD(t, 150, 100, 1)
	path := filepath.Join(dir, "models", "ckd_model.json")

	artifact, model, err := svc.Train(context.Background(), tbl, &TrainRequest{
		DataPath:   "synthetic",
		OutputPath: path,
		Config:     fastConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ckd", "notckd"}, artifact.Classes)
	assert.Len(t, artifact.Pipeline.Features, 24)
	assert.GreaterOrEqual(t, artifact.PerformanceMetrics.Accuracy, 0.9)
	assert.Equal(t, 50, artifact.TrainingMetrics.TestSamples)
	assert.Equal(t, models.ModelStatusTrained, model.Status)
	assert.Equal(t, path, model.ArtifactPath)

	registered, err := svc.GetModel(model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusTrained, registered.Status)
	assert.Equal(t, "1", registered.Version)

	// a second run deprecates the first
	_, second, err := svc.Train(context.Background(), tbl, &TrainRequest{OutputPath: path, Config: fastConfig()})
	require.NoError(t, err)
	assert.Equal(t, "2", second.Version)

	first, err := svc.GetModel(model.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusDeprecated, first.Status)

	list, err := svc.ListModels()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestArtifactSaveLoadPredict(t *testing.T) {
	svc := NewService(nil, nil)
	tbl := syntheticCKD(t, 120, 80, 2)
	path := filepath.Join(t.TempDir(), "nested", "model.json")

	artifact, _, err := svc.Train(context.Background(), tbl, &TrainRequest{OutputPath: path, Config: fastConfig()})
	require.NoError(t, err)

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, loaded.ModelID())
	assert.Equal(t, artifact.Classes, loaded.ClassNames())

	sick := map[string]string{"sc": "7.5", "hemo": "8", "al": "4", "sg": "1.010", "pcv": "24", "rc": "2.8", "dm": "yes", "htn": "yes"}
	proba, err := loaded.PredictRecord(sick)
	require.NoError(t, err)
	require.Len(t, proba, 2)
	assert.Greater(t, proba[0], 0.5)

	healthy := map[string]string{"sc": "1.0", "hemo": "15.5", "al": "0", "sg": "1.020", "pcv": "46", "rc": "5.2", "dm": "no", "htn": "no"}
	proba, err = loaded.PredictRecord(healthy)
	require.NoError(t, err)
	assert.Greater(t, proba[1], 0.5)

	_, err = loaded.PredictRecord(map[string]string{"sc": "abc"})
	assert.Error(t, err)
}

func TestServiceEvaluate(t *testing.T) {
	svc := NewService(nil, nil)
	path := filepath.Join(t.TempDir(), "model.json")
	artifact, _, err := svc.Train(context.Background(), syntheticCKD(t, 100, 100, 3), &TrainRequest{OutputPath: path, Config: fastConfig()})
	require.NoError(t, err)

	metrics, err := svc.Evaluate(artifact, syntheticCKD(t, 40, 40, 4))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, metrics.Accuracy, 0.9)
	assert.Len(t, metrics.ConfusionMatrix, 2)
	assert.Equal(t, 40, metrics.PerClass[0].Support)
}

func TestLoadArtifactErrors(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, (&Artifact{FormatVersion: ArtifactFormatVersion}).Save(path))
	_, err = LoadArtifact(path)
	assert.Error(t, err)
}

func TestTrainRejectsSingleClass(t *testing.T) {
	svc := NewService(nil, nil)
	tbl := syntheticCKD(t, 30, 0, 5)
	_, _, err := svc.Train(context.Background(), tbl, &TrainRequest{OutputPath: filepath.Join(t.TempDir(), "m.json"), Config: fastConfig()})
	assert.Error(t, err)
}

func TestFeatureColumns(t *testing.T) {
	tbl, err := dataset.NewTable([]string{"sc", "class", "class_encoded", "hemo"}, [][]string{{"1", "ckd", "0", "9"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sc", "hemo"}, FeatureColumns(tbl, "class"))
}
