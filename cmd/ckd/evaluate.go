package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel/training"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

var (
	evaluateModel string // Artifact path
	evaluateData  string // Labelled dataset CSV
	evaluatePlot  string // Confusion matrix output, empty to skip
	evaluateImp   string // Feature importance chart, empty to skip
	evaluateTop   int    // Features listed by importance
)

// evaluateCmd scores a saved model on a labelled dataset
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a trained model on a labelled dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := mlmodel.LoadArtifact(evaluateModel)
		if err != nil {
			return err
		}
		t, err := dataset.LoadRaw(evaluateData)
		if err != nil {
			return err
		}

		metrics, err := mlmodel.NewService(nil, logger).Evaluate(artifact, t)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Model %s evaluated on %d rows\n", artifact.ID, t.Len())
		printMetrics(out, metrics)
		printImportance(out, metrics, evaluateTop)

		if evaluatePlot != "" {
			if err := writeConfusionMatrix(metrics, evaluatePlot); err != nil {
				return err
			}
			logger.WithField("path", evaluatePlot).Info("Wrote confusion matrix")
		}
		if evaluateImp != "" {
			if err := os.MkdirAll(filepath.Dir(evaluateImp), 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			if err := training.SaveImportancePlot(metrics.FeatureImportance, evaluateTop, evaluateImp); err != nil {
				return err
			}
			logger.WithField("path", evaluateImp).Info("Wrote feature importance chart")
		}
		return nil
	},
}

// writeConfusionMatrix draws a heat map for image paths and a text table otherwise
func writeConfusionMatrix(m *models.PerformanceMetrics, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if training.IsImagePath(path) {
		return training.SaveConfusionMatrixPlot(m, path)
	}
	if err := os.WriteFile(path, []byte(training.RenderConfusionMatrix(m)), 0644); err != nil {
		return fmt.Errorf("failed to write confusion matrix: %w", err)
	}
	return nil
}

func printMetrics(w io.Writer, m *models.PerformanceMetrics) {
	fmt.Fprintf(w, "\nAccuracy: %.4f\n\n", m.Accuracy)
	fmt.Fprintf(w, "Confusion matrix:\n%s\n", training.RenderConfusionMatrix(m))
	fmt.Fprintf(w, "Classification report:\n%s", training.ClassificationReport(m))
}

func printImportance(w io.Writer, m *models.PerformanceMetrics, top int) {
	ranked := training.RankImportance(m.FeatureImportance)
	if len(ranked) == 0 || top <= 0 {
		return
	}
	fmt.Fprintf(w, "\nTop features:\n")
	for i, name := range ranked {
		if i == top {
			break
		}
		fmt.Fprintf(w, "%2d. %-6s %.4f\n", i+1, name, m.FeatureImportance[name])
	}
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateModel, "model", "models/ckd_model.json", "Model artifact")
	evaluateCmd.Flags().StringVar(&evaluateData, "data", "data/kidney_disease.csv", "Labelled dataset CSV")
	evaluateCmd.Flags().StringVar(&evaluatePlot, "plot", "", "Write the confusion matrix to this file (.png, .svg or .pdf draw a heat map)")
	evaluateCmd.Flags().StringVar(&evaluateImp, "importance-plot", "", "Write a feature importance chart to this image file")
	evaluateCmd.Flags().IntVar(&evaluateTop, "top", 10, "Number of features to list by importance")
}
