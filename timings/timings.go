// Package timings reads the per-update timing file written by the lead
// protocol role.
package timings

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileName is the name of the timing file inside the data directory.
const FileName = "timings.txt"

// Totals holds the summed timings of all updates in a timing file.
type Totals struct {
	ItemTotal float64 // seconds
	UserTotal float64 // seconds
	Count     int
}

// ReadFile parses the timing file at path. A missing file yields an error
// wrapping fs.ErrNotExist.
func ReadFile(path string) (Totals, error) {
	f, err := os.Open(path)
	if err != nil {
		return Totals{}, fmt.Errorf(
			"open timings %s (the lead role writes it after the protocol run): %w",
			path, err,
		)
	}
	defer f.Close()

	totals, err := Parse(f)
	if err != nil {
		return Totals{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return totals, nil
}

// Parse reads a header line followed by "label,item_us,user_us" rows and
// sums both microsecond columns.
func Parse(r io.Reader) (Totals, error) {
	var (
		itemUs, userUs float64
		count          int
	)

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if lineNum == 1 {
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return Totals{}, fmt.Errorf(
				"line %d: want 3 fields, got %d", lineNum, len(fields),
			)
		}

		item, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: item time: %w", lineNum, err)
		}

		user, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: user time: %w", lineNum, err)
		}

		itemUs += item
		userUs += user
		count++
	}

	if err := scanner.Err(); err != nil {
		return Totals{}, fmt.Errorf("read timings: %w", err)
	}

	return Totals{
		ItemTotal: itemUs / 1e6,
		UserTotal: userUs / 1e6,
		Count:     count,
	}, nil
}
