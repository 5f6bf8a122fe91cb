package training

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// IsImagePath reports whether path names an image format the plot writers support
func IsImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps", ".tif", ".tiff":
		return true
	}
	return false
}

// confusionGrid exposes a confusion matrix as a heat map grid with the
// first true class on the top row
type confusionGrid [][]int

func (g confusionGrid) Dims() (c, r int) { return len(g), len(g) }
func (g confusionGrid) Z(c, r int) float64 {
	return float64(g[len(g)-1-r][c])
}
func (g confusionGrid) X(c int) float64 { return float64(c) }
func (g confusionGrid) Y(r int) float64 { return float64(r) }

// SaveConfusionMatrixPlot draws the confusion matrix as an annotated heat map.
// The image format follows the file extension.
func SaveConfusionMatrixPlot(m *models.PerformanceMetrics, path string) error {
	n := len(m.Classes)
	if n < 2 || len(m.ConfusionMatrix) != n {
		return fmt.Errorf("confusion matrix needs at least two classes, got %d", n)
	}
	grid := confusionGrid(m.ConfusionMatrix)

	p := plot.New()
	p.Title.Text = "Confusion Matrix - CKD Model"
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "Actual"

	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if heat.Max == heat.Min {
		heat.Max = heat.Min + 1
	}
	p.Add(heat)

	var cells plotter.XYLabels
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: grid.X(c), Y: grid.Y(r)})
			cells.Labels = append(cells.Labels, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	labels, err := plotter.NewLabels(cells)
	if err != nil {
		return fmt.Errorf("failed to label confusion matrix: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = text.XCenter
		labels.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(labels)

	rows := make([]string, n)
	for i, c := range m.Classes {
		rows[n-1-i] = c
	}
	p.NominalX(m.Classes...)
	p.NominalY(rows...)

	size := vg.Length(2+n) * vg.Inch
	if err := p.Save(size, size, path); err != nil {
		return fmt.Errorf("failed to save confusion matrix plot: %w", err)
	}
	return nil
}

// SaveImportancePlot draws the top features by importance as a bar chart
func SaveImportancePlot(importance map[string]float64, top int, path string) error {
	ranked := RankImportance(importance)
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	if len(ranked) == 0 {
		return fmt.Errorf("no feature importance to plot")
	}

	values := make(plotter.Values, len(ranked))
	for i, name := range ranked {
		values[i] = importance[name]
	}

	p := plot.New()
	p.Title.Text = "Feature Importance"
	p.Y.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return fmt.Errorf("failed to build importance chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(ranked...)

	if err := p.Save(vg.Length(len(ranked))*0.5*vg.Inch+2*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save importance plot: %w", err)
	}
	return nil
}
