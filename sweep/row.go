package sweep

import (
	"fmt"

	"github.com/weiihann/mpcbench/harness"
	"github.com/weiihann/mpcbench/timings"
)

// Metric selects how per-user and per-item times are derived.
type Metric string

const (
	// MetricWallClock uses the total wall time as both the user total
	// and the item total, divided by the user and item counts.
	MetricWallClock Metric = "wall"
	// MetricTimings uses the lead role's timing file, divided by the
	// number of recorded updates.
	MetricTimings Metric = "timings"
)

// ParseMetric validates s as a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if err := m.Validate(); err != nil {
		return "", err
	}

	return m, nil
}

// Validate reports whether m is a known metric.
func (m Metric) Validate() error {
	switch m {
	case MetricWallClock, MetricTimings:
		return nil
	default:
		return fmt.Errorf("unknown metric %q (want wall or timings)", string(m))
	}
}

// Row is one line of the result table. Times are in seconds.
type Row struct {
	Queries         int     `json:"queries"`
	Users           int     `json:"users"`
	Items           int     `json:"items"`
	Features        int     `json:"features"`
	TotalTime       float64 `json:"total_time_s"`
	UserTotalTime   float64 `json:"user_total_time_s"`
	ItemTotalTime   float64 `json:"item_total_time_s"`
	UserTimePerUser float64 `json:"user_time_per_user_s"`
	ItemTimePerItem float64 `json:"item_time_per_item_s"`
}

// Value returns the row's value for dimension d.
func (r Row) Value(d Dimension) int {
	switch d {
	case Queries:
		return r.Queries
	case Items:
		return r.Items
	default:
		return r.Users
	}
}

// DeriveWallClock builds a row from total wall time alone.
func DeriveWallClock(cfg harness.RunConfig, total float64) Row {
	row := newRow(cfg, total)
	row.UserTotalTime = total
	row.ItemTotalTime = total
	row.UserTimePerUser = total / float64(max(cfg.Users, 1))
	row.ItemTimePerItem = total / float64(max(cfg.Items, 1))

	return row
}

// DeriveTimings builds a row from the lead role's timing totals.
func DeriveTimings(cfg harness.RunConfig, total float64, t timings.Totals) Row {
	updates := float64(max(t.Count, 1))

	row := newRow(cfg, total)
	row.UserTotalTime = t.UserTotal
	row.ItemTotalTime = t.ItemTotal
	row.UserTimePerUser = t.UserTotal / updates
	row.ItemTimePerItem = t.ItemTotal / updates

	return row
}

func newRow(cfg harness.RunConfig, total float64) Row {
	return Row{
		Queries:   cfg.Queries,
		Users:     cfg.Users,
		Items:     cfg.Items,
		Features:  cfg.Features,
		TotalTime: total,
	}
}
