package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/preprocess"
)

var (
	preprocessInput    string // Raw UCI export
	preprocessOutput   string // Processed CSV
	preprocessMode     string // full or encode
	preprocessEncoders string // Encoder map written in encode mode
	preprocessScale    bool   // Z-score features in full mode
)

// preprocessCmd writes a cleaned copy of the raw dataset
var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Impute, encode and scale the raw CKD dataset",
	Long: `Reads the raw UCI CKD export and writes a processed CSV.

full:   median/forward-fill imputation, label encoding and z-score scaling of
        every feature, label encoded in place.
encode: label-encode categorical columns, append class_encoded and write the
        encoder map as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := dataset.LoadRaw(preprocessInput)
		if err != nil {
			return err
		}

		switch preprocessMode {
		case "encode":
			encoded, encoders, err := preprocess.EncodeCategorical(t, models.LabelColumn)
			if err != nil {
				return err
			}
			if err := encoded.WriteFile(preprocessOutput); err != nil {
				return err
			}
			path := preprocessEncoders
			if path == "" {
				path = preprocessOutput + ".encoders.json"
			}
			if err := preprocess.SaveEncoders(path, encoders); err != nil {
				return err
			}
			logger.WithField("encoders", path).Info("Saved label encoders")
		case "full":
			out, err := preprocessFull(t, preprocessScale)
			if err != nil {
				return err
			}
			if err := out.WriteFile(preprocessOutput); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown mode %q, expected full or encode", preprocessMode)
		}

		logger.WithFields(logrus.Fields{
			"input":  preprocessInput,
			"output": preprocessOutput,
			"rows":   t.Len(),
			"mode":   preprocessMode,
		}).Info("Preprocessed dataset")
		return nil
	},
}

// preprocessFull fits the feature pipeline on the whole table and returns
// its numeric form
func preprocessFull(t *dataset.Table, scale bool) (*dataset.Table, error) {
	var labels *preprocess.LabelEncoder
	if t.Has(models.LabelColumn) {
		values, err := t.Column(models.LabelColumn)
		if err != nil {
			return nil, err
		}
		values = preprocess.ForwardFill(values)
		if t, err = t.WithColumn(models.LabelColumn, values); err != nil {
			return nil, err
		}
		labels = &preprocess.LabelEncoder{}
		if err := labels.Fit(values); err != nil {
			return nil, err
		}
	}

	var features []string
	for _, name := range t.Names() {
		if name != models.LabelColumn && name != models.EncodedLabelColumn {
			features = append(features, name)
		}
	}
	pipe := preprocess.NewPipeline(features, scale)
	if err := pipe.Fit(t); err != nil {
		return nil, err
	}
	return pipe.Apply(t, models.LabelColumn, labels)
}

func init() {
	preprocessCmd.Flags().StringVar(&preprocessInput, "input", "data/kidney_disease.csv", "Raw dataset CSV")
	preprocessCmd.Flags().StringVar(&preprocessOutput, "output", "data/processed_kidney_disease.csv", "Processed CSV to write")
	preprocessCmd.Flags().StringVar(&preprocessMode, "mode", "full", "Preprocessing mode (full, encode)")
	preprocessCmd.Flags().StringVar(&preprocessEncoders, "encoders", "", "Encoder map JSON for encode mode (default <output>.encoders.json)")
	preprocessCmd.Flags().BoolVar(&preprocessScale, "scale", true, "Standardize features in full mode")
}
