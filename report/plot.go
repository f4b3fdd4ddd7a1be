package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/weiihann/mpcbench/sweep"
)

// Series is one named curve of a plot.
type Series struct {
	Name   string
	Values []float64
}

// Labels holds the text of a plot.
type Labels struct {
	Title string
	X     string
	Y     string
}

// WritePlot renders each series as a line with point markers over x and
// saves the image to path. The format follows the file extension.
func WritePlot(path string, x []int, series []Series, labels Labels) error {
	if len(x) == 0 {
		return fmt.Errorf("plot %s: no x values", path)
	}

	p := plot.New()
	p.Title.Text = labels.Title
	p.X.Label.Text = labels.X
	p.Y.Label.Text = labels.Y
	p.Legend.Top = true

	grid := plotter.NewGrid()
	grid.Vertical.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(grid)

	for i, s := range series {
		if len(s.Values) != len(x) {
			return fmt.Errorf("plot %s: series %q has %d values for %d x values",
				path, s.Name, len(s.Values), len(x))
		}

		pts := make(plotter.XYs, len(x))
		for j := range x {
			pts[j].X = float64(x[j])
			pts[j].Y = s.Values[j]
		}

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("plot %s: series %q: %w", path, s.Name, err)
		}

		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = draw.CircleGlyph{}

		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	if err := p.Save(7*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}

	return nil
}

// PlotSweep renders the per-user and per-item update time curves of a
// sweep.
func PlotSweep(path string, dim sweep.Dimension, rows []sweep.Row) error {
	x := make([]int, len(rows))
	perUser := make([]float64, len(rows))
	perItem := make([]float64, len(rows))

	for i, r := range rows {
		x[i] = r.Value(dim)
		perUser[i] = r.UserTimePerUser
		perItem[i] = r.ItemTimePerItem
	}

	return WritePlot(path, x, []Series{
		{Name: "Per-user update time (s)", Values: perUser},
		{Name: "Per-item update time (s)", Values: perItem},
	}, SweepLabels(dim))
}

// SweepLabels returns the standard labels for a sweep over dim.
func SweepLabels(dim sweep.Dimension) Labels {
	name := string(dim)
	if name == "" {
		return Labels{Y: "Seconds"}
	}

	return Labels{
		Title: "Per-update time vs. #" + name,
		X:     "# " + strings.ToUpper(name[:1]) + name[1:],
		Y:     "Seconds",
	}
}
