package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/weiihann/mpcbench/sweep"
)

// Columns is the fixed header of the result table.
var Columns = []string{
	"queries",
	"users",
	"items",
	"features",
	"total_time_s",
	"user_total_time_s",
	"item_total_time_s",
	"user_time_per_user_s",
	"item_time_per_item_s",
}

// WriteCSV writes the header and one line per row in Columns order.
func WriteCSV(w io.Writer, rows []sweep.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		record := []string{
			strconv.Itoa(r.Queries),
			strconv.Itoa(r.Users),
			strconv.Itoa(r.Items),
			strconv.Itoa(r.Features),
			formatFloat(r.TotalTime),
			formatFloat(r.UserTotalTime),
			formatFloat(r.ItemTotalTime),
			formatFloat(r.UserTimePerUser),
			formatFloat(r.ItemTimePerItem),
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteCSVFile writes rows to path, creating parent directories.
func WriteCSVFile(path string, rows []sweep.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
