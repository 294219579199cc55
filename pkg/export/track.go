package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"gprproc/internal/models"
)

// WriteTrack exports the acquisition track as CSV, one row per trace, for
// plotting a survey in GIS tools. The radargram must be geolocated.
func WriteTrack(path string, rg *models.Radargram) error {
	if !rg.Geolocated() {
		return fmt.Errorf("track export: %s is not geolocated", rg.SourceFile)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw := csv.NewWriter(bw)

	if err := cw.Write([]string{"trace", "timestamp", "x", "y", "elevation", "distance", "crs"}); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	for i, p := range rg.Positions {
		dist := ""
		if rg.Distance != nil {
			dist = strconv.FormatFloat(rg.Distance[i], 'f', 3, 64)
		}
		row := []string{
			strconv.Itoa(i),
			rg.Timestamps[i].UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64),
			strconv.FormatFloat(p.Z, 'f', 3, 64),
			dist,
			rg.CRS,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
