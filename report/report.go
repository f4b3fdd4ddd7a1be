// Package report writes sweep results as CSV tables, plots, console
// tables and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/weiihann/mpcbench/sweep"
)

// Summary describes a completed sweep.
type Summary struct {
	ID        string          `json:"id"`
	Dimension sweep.Dimension `json:"vary"`
	Metric    sweep.Metric    `json:"metric"`
	Params    sweep.Params    `json:"params"`
	Started   time.Time       `json:"started"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
	Rows      []sweep.Row     `json:"rows"`
}

// Artifacts holds the output paths of one sweep.
type Artifacts struct {
	CSV  string
	Plot string
	JSON string
}

// ArtifactPaths returns the artifact paths for a sweep over dim.
func ArtifactPaths(outdir string, dim sweep.Dimension) Artifacts {
	return NamedArtifactPaths(outdir, string(dim))
}

// NamedArtifactPaths returns the artifact paths bench_<name>.* in outdir.
func NamedArtifactPaths(outdir, name string) Artifacts {
	base := filepath.Join(outdir, "bench_"+name)

	return Artifacts{
		CSV:  base + ".csv",
		Plot: base + ".png",
		JSON: base + ".json",
	}
}

// Generate writes a console table of the sweep rows to w.
func Generate(w io.Writer, s Summary) error {
	if len(s.Rows) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintf(w, "Sweep %s: vary %s, metric %s\n", s.ID, s.Dimension, s.Metric)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Queries").SetAlign(tabulate.MR)
	tab.Header("Users").SetAlign(tabulate.MR)
	tab.Header("Items").SetAlign(tabulate.MR)
	tab.Header("Features").SetAlign(tabulate.MR)
	tab.Header("Total").SetAlign(tabulate.MR)
	tab.Header("User Total").SetAlign(tabulate.MR)
	tab.Header("Item Total").SetAlign(tabulate.MR)
	tab.Header("Per User").SetAlign(tabulate.MR)
	tab.Header("Per Item").SetAlign(tabulate.MR)

	for _, r := range s.Rows {
		row := tab.Row()
		row.Column(fmt.Sprintf("%d", r.Queries))
		row.Column(fmt.Sprintf("%d", r.Users))
		row.Column(fmt.Sprintf("%d", r.Items))
		row.Column(fmt.Sprintf("%d", r.Features))
		row.Column(formatSeconds(r.TotalTime))
		row.Column(formatSeconds(r.UserTotalTime))
		row.Column(formatSeconds(r.ItemTotalTime))
		row.Column(formatSeconds(r.UserTimePerUser))
		row.Column(formatSeconds(r.ItemTimePerItem))
	}

	tab.Print(w)

	return nil
}

// GenerateJSON writes the summary as JSON to w.
func GenerateJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(s)
}

// WriteJSONFile writes the summary as JSON to path.
func WriteJSONFile(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := GenerateJSON(f, s); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}

func formatSeconds(s float64) string {
	if s < 1 {
		return fmt.Sprintf("%.2fms", s*1000)
	}

	return fmt.Sprintf("%.2fs", s)
}
