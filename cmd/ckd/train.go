package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

var (
	trainData       string // Raw or processed dataset CSV
	trainOutput     string // Artifact path
	trainConfigPath string // YAML training config
	trainDBPath     string // Model registry database, empty to skip
	trainName       string // Registry name
	trainType       string // random_forest or decision_tree
	trainNoGrid     bool   // Skip the grid search
	trainNoSMOTE    bool   // Skip SMOTE resampling
	trainTrees      int    // Trees when the grid search is skipped
	trainSeed       int64  // Seed for split, resampling and trees
)

// trainCmd fits the classifier and writes the artifact
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the CKD classifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadTrainingConfig(trainConfigPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("no-grid") {
			config.GridSearch = !trainNoGrid
		}
		if flags.Changed("no-smote") {
			config.UseSMOTE = !trainNoSMOTE
		}
		if flags.Changed("trees") {
			config.NEstimators = trainTrees
		}
		if flags.Changed("seed") {
			config.RandomSeed = trainSeed
		}

		t, err := dataset.LoadRaw(trainData)
		if err != nil {
			return err
		}

		var store metadatastore.MetadataStore
		if trainDBPath != "" {
			sqlite, err := metadatastore.NewSQLiteStore(trainDBPath)
			if err != nil {
				return err
			}
			defer sqlite.Close()
			store = sqlite
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := mlmodel.NewService(store, logger)
		artifact, model, err := svc.Train(ctx, t, &mlmodel.TrainRequest{
			Name:       trainName,
			Type:       models.ModelType(trainType),
			DataPath:   trainData,
			OutputPath: trainOutput,
			Config:     config,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Model %s (version %s) saved to %s\n", model.ID, model.Version, trainOutput)
		fmt.Fprintf(out, "Training samples: %d (resampled %d), test samples: %d\n",
			artifact.TrainingMetrics.TrainingSamples, artifact.TrainingMetrics.ResampledSamples, artifact.TrainingMetrics.TestSamples)
		if len(artifact.TrainingMetrics.BestParams) > 0 {
			fmt.Fprintf(out, "Best parameters: %v (cv accuracy %.4f)\n", artifact.TrainingMetrics.BestParams, artifact.TrainingMetrics.CVScore)
		}
		printMetrics(out, artifact.PerformanceMetrics)
		return nil
	},
}

// loadTrainingConfig reads a YAML training config over the defaults
func loadTrainingConfig(path string) (*models.TrainingConfig, error) {
	config := models.DefaultTrainingConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read training config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse training config %s: %w", path, err)
	}
	return config, nil
}

func init() {
	trainCmd.Flags().StringVar(&trainData, "data", "data/kidney_disease.csv", "Dataset CSV")
	trainCmd.Flags().StringVar(&trainOutput, "output", "models/ckd_model.json", "Model artifact to write")
	trainCmd.Flags().StringVar(&trainConfigPath, "config", "", "YAML training config")
	trainCmd.Flags().StringVar(&trainDBPath, "db", "", "SQLite model registry (empty to skip)")
	trainCmd.Flags().StringVar(&trainName, "name", "", "Model name in the registry")
	trainCmd.Flags().StringVar(&trainType, "type", string(models.ModelTypeRandomForest), "Model type (random_forest, decision_tree)")
	trainCmd.Flags().BoolVar(&trainNoGrid, "no-grid", false, "Skip the hyperparameter grid search")
	trainCmd.Flags().BoolVar(&trainNoSMOTE, "no-smote", false, "Skip SMOTE resampling")
	trainCmd.Flags().IntVar(&trainTrees, "trees", 100, "Number of trees when the grid search is skipped")
	trainCmd.Flags().Int64Var(&trainSeed, "seed", 42, "Random seed")
}
