package training

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sjwhitworth/golearn/evaluation"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// Accuracy is the fraction of predictions equal to the truth
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 || len(truth) != len(pred) {
		return 0
	}
	correct := 0
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(truth))
}

// ConfusionMatrix builds a golearn confusion matrix keyed by class label,
// reference class first.
func ConfusionMatrix(truth, pred []int, classes []string) evaluation.ConfusionMatrix {
	cm := make(evaluation.ConfusionMatrix, len(classes))
	for _, ref := range classes {
		cm[ref] = make(map[string]int, len(classes))
		for _, p := range classes {
			cm[ref][p] = 0
		}
	}
	for i := range truth {
		cm[classes[truth[i]]][classes[pred[i]]]++
	}
	return cm
}

// Evaluate scores predictions against the truth. classes maps codes to
// labels; precision, recall and F1 are macro averages.
func Evaluate(truth, pred []int, classes []string) (*models.PerformanceMetrics, error) {
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("truth and predictions differ in length: %d vs %d", len(truth), len(pred))
	}
	if len(truth) == 0 {
		return nil, fmt.Errorf("no samples to evaluate")
	}
	for i := range truth {
		if truth[i] < 0 || truth[i] >= len(classes) || pred[i] < 0 || pred[i] >= len(classes) {
			return nil, fmt.Errorf("sample %d has a class outside [0, %d)", i, len(classes))
		}
	}

	cm := ConfusionMatrix(truth, pred, classes)
	metrics := &models.PerformanceMetrics{
		Accuracy:        clean(evaluation.GetAccuracy(cm)),
		Classes:         append([]string(nil), classes...),
		ConfusionMatrix: make([][]int, len(classes)),
	}

	for i, ref := range classes {
		row := make([]int, len(classes))
		support := 0
		for j, p := range classes {
			row[j] = cm[ref][p]
			support += row[j]
		}
		metrics.ConfusionMatrix[i] = row

		cls := models.ClassMetrics{
			Class:     ref,
			Precision: clean(evaluation.GetPrecision(ref, cm)),
			Recall:    clean(evaluation.GetRecall(ref, cm)),
			F1Score:   clean(evaluation.GetF1Score(ref, cm)),
			Support:   support,
		}
		metrics.PerClass = append(metrics.PerClass, cls)
		metrics.Precision += cls.Precision
		metrics.Recall += cls.Recall
		metrics.F1Score += cls.F1Score
	}
	n := float64(len(classes))
	metrics.Precision /= n
	metrics.Recall /= n
	metrics.F1Score /= n
	return metrics, nil
}

// clean maps the NaN golearn returns for empty classes to zero
func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ClassificationReport renders per-class scores as a plain-text table
func ClassificationReport(m *models.PerformanceMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	total := 0
	for _, c := range m.PerClass {
		fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", c.Class, c.Precision, c.Recall, c.F1Score, c.Support)
		total += c.Support
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %10s %10s %10.2f %10d\n", "accuracy", "", "", m.Accuracy, total)
	fmt.Fprintf(&b, "%12s %10.2f %10.2f %10.2f %10d\n", "macro avg", m.Precision, m.Recall, m.F1Score, total)
	return b.String()
}

// RenderConfusionMatrix draws the matrix as a labelled text grid, rows are
// the true class.
func RenderConfusionMatrix(m *models.PerformanceMetrics) string {
	width := 9
	for _, c := range m.Classes {
		width = max(width, len(c)+2)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s", width, "true\\pred")
	for _, c := range m.Classes {
		fmt.Fprintf(&b, "%*s", width, c)
	}
	b.WriteString("\n")
	for i, row := range m.ConfusionMatrix {
		fmt.Fprintf(&b, "%*s", width, m.Classes[i])
		for _, v := range row {
			fmt.Fprintf(&b, "%*d", width, v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RankImportance returns feature names ordered by decreasing importance
func RankImportance(importance map[string]float64) []string {
	names := make([]string, 0, len(importance))
	for n := range importance {
		names = append(names, n)
	}
	sort.Slice(names, func(a, b int) bool {
		if importance[names[a]] != importance[names[b]] {
			return importance[names[a]] > importance[names[b]]
		}
		return names[a] < names[b]
	})
	return names
}
