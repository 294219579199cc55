package decoder

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gprproc/internal/models"
)

// corAnchor is one row of a Malå ".cor" file: a GNSS fix tied to a trace
// index. The instrument writes a fix every few traces, so anchors are sparse
// and the decoder interpolates between them.
type corAnchor struct {
	trace     int
	timestamp time.Time
	lat, lon  float64
	elevation float64
}

// parseCorFile reads the whitespace-separated rows of a ".cor" sidecar:
//
//	trace  date  time  latitude N|S  longitude E|W  elevation M
//
// Rows must be ordered by trace index; fewer than one usable row is an
// InvalidHeader failure since the file was explicitly present.
func parseCorFile(path string) ([]corAnchor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}
	defer f.Close()

	var anchors []corAnchor
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 9 {
			return nil, errf(InvalidHeader, path, "line %d has %d fields, want 9", lineNo, len(fields))
		}

		trace, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errf(InvalidHeader, path, "line %d: bad trace index %q", lineNo, fields[0])
		}
		ts, err := time.Parse("2006-01-02 15:04:05", fields[1]+" "+fields[2])
		if err != nil {
			return nil, errf(InvalidHeader, path, "line %d: bad timestamp %q %q", lineNo, fields[1], fields[2])
		}
		lat, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, errf(InvalidHeader, path, "line %d: bad latitude %q", lineNo, fields[3])
		}
		if fields[4] == "S" {
			lat = -lat
		}
		lon, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, errf(InvalidHeader, path, "line %d: bad longitude %q", lineNo, fields[5])
		}
		if fields[6] == "W" {
			lon = -lon
		}
		elev, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return nil, errf(InvalidHeader, path, "line %d: bad elevation %q", lineNo, fields[7])
		}

		if len(anchors) > 0 && trace <= anchors[len(anchors)-1].trace {
			return nil, errf(InvalidHeader, path, "line %d: trace index %d not increasing", lineNo, trace)
		}
		anchors = append(anchors, corAnchor{trace: trace, timestamp: ts, lat: lat, lon: lon, elevation: elev})
	}
	if err := scanner.Err(); err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}
	if len(anchors) == 0 {
		return nil, errf(InvalidHeader, path, "no usable rows")
	}
	return anchors, nil
}

// applyCorAnchors fills positions, timestamps and along-line distance for
// every trace by linear interpolation between the sparse anchors. Traces
// before the first or after the last anchor extend the nearest segment's
// rate, clamped so timestamps stay non-decreasing.
func applyCorAnchors(rg *models.Radargram, anchors []corAnchor) {
	n := rg.NumTraces()
	rg.Positions = make([]models.Position, n)
	rg.Timestamps = make([]time.Time, n)
	rg.CRS = "EPSG:4326"

	for i := 0; i < n; i++ {
		lo, hi := bracketAnchors(anchors, i)
		if lo == hi {
			a := anchors[lo]
			rg.Positions[i] = models.Position{X: a.lon, Y: a.lat, Z: a.elevation}
			rg.Timestamps[i] = a.timestamp
			continue
		}
		a, b := anchors[lo], anchors[hi]
		frac := float64(i-a.trace) / float64(b.trace-a.trace)
		rg.Positions[i] = models.Position{
			X: a.lon + frac*(b.lon-a.lon),
			Y: a.lat + frac*(b.lat-a.lat),
			Z: a.elevation + frac*(b.elevation-a.elevation),
		}
		dt := b.timestamp.Sub(a.timestamp)
		rg.Timestamps[i] = a.timestamp.Add(time.Duration(frac * float64(dt)))
	}

	// Extrapolated head traces may have run backwards in time past the
	// first anchor; clamp them instead of violating monotonicity.
	for i := n - 2; i >= 0; i-- {
		if rg.Timestamps[i].After(rg.Timestamps[i+1]) {
			rg.Timestamps[i] = rg.Timestamps[i+1]
		}
	}

	rg.Distance = cumulativeWGS84Distance(rg.Positions)
}

// bracketAnchors picks the anchor pair spanning trace index i. Outside the
// anchored range the nearest segment is reused for extrapolation; a single
// anchor degenerates to lo == hi.
func bracketAnchors(anchors []corAnchor, i int) (lo, hi int) {
	if len(anchors) == 1 {
		return 0, 0
	}
	for k := 1; k < len(anchors); k++ {
		if i <= anchors[k].trace || k == len(anchors)-1 {
			return k - 1, k
		}
	}
	return len(anchors) - 2, len(anchors) - 1
}

// cumulativeWGS84Distance accumulates great-circle distance in meters over a
// sequence of lon/lat positions.
func cumulativeWGS84Distance(positions []models.Position) []float64 {
	const earthRadius = 6371000.0
	dist := make([]float64, len(positions))
	for i := 1; i < len(positions); i++ {
		p, q := positions[i-1], positions[i]
		lat1 := p.Y * math.Pi / 180
		lat2 := q.Y * math.Pi / 180
		dlat := lat2 - lat1
		dlon := (q.X - p.X) * math.Pi / 180
		a := math.Sin(dlat/2)*math.Sin(dlat/2) +
			math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
		dist[i] = dist[i-1] + 2*earthRadius*math.Asin(math.Sqrt(a))
	}
	return dist
}
