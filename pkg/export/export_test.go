package export

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

func makeRadargram(traces, samples int, located bool) *models.Radargram {
	data := mat.NewDense(traces, samples, nil)
	for i := 0; i < traces; i++ {
		for j := 0; j < samples; j++ {
			data.Set(i, j, math.Sin(float64(i*samples+j))*100)
		}
	}
	start := time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)
	ts := make([]time.Time, traces)
	dist := make([]float64, traces)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * 100 * time.Millisecond)
		dist[i] = float64(i) * 0.5
	}
	rg := &models.Radargram{
		Data:              data,
		SampleInterval:    0.4,
		TimeZero:          1.2,
		Timestamps:        ts,
		Distance:          dist,
		Instrument:        "Mala",
		SourceFile:        "dat_0001.rd3",
		AntennaSeparation: 0.18,
		AntennaFrequency:  800,
		StackingCount:     16,
		MediumVelocity:    0.168,
		AppliedFilters: []models.FilterRecord{
			{Name: "dewow", Params: map[string]float64{"window": 5}},
			{Name: "siglog", Params: map[string]float64{"minval_log10": -4}},
		},
	}
	if located {
		rg.CRS = "EPSG:25832"
		rg.Positions = make([]models.Position, traces)
		for i := range rg.Positions {
			rg.Positions[i] = models.Position{X: 570000 + float64(i), Y: 5930000, Z: 12.5}
		}
	}
	return rg
}

func TestContainerRoundTrip(t *testing.T) {
	rg := makeRadargram(12, 32, true)
	path := filepath.Join(t.TempDir(), "out.rgv")

	if err := Write(path, rg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	back, err := Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if back.NumTraces() != 12 || back.NumSamples() != 32 {
		t.Fatalf("geometry lost: %dx%d", back.NumTraces(), back.NumSamples())
	}
	// Amplitudes survive at float32 precision.
	if !mat.EqualApprox(back.Data, rg.Data, 1e-4) {
		t.Error("amplitudes drifted past float32 precision")
	}
	if back.SampleInterval != rg.SampleInterval || back.TimeZero != rg.TimeZero {
		t.Error("time axis metadata lost")
	}
	if back.CRS != rg.CRS || len(back.Positions) != len(rg.Positions) {
		t.Error("geolocation lost")
	}
	if back.Positions[3] != rg.Positions[3] {
		t.Errorf("position 3: expected %+v, got %+v", rg.Positions[3], back.Positions[3])
	}
	if !back.Timestamps[5].Equal(rg.Timestamps[5]) {
		t.Errorf("timestamp 5: expected %v, got %v", rg.Timestamps[5], back.Timestamps[5])
	}
	if len(back.AppliedFilters) != 2 || back.AppliedFilters[0].Name != "dewow" ||
		back.AppliedFilters[1].Params["minval_log10"] != -4 {
		t.Errorf("filter log lost: %v", back.AppliedFilters)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("restored radargram invalid: %v", err)
	}
}

func TestContainerUngeolocated(t *testing.T) {
	rg := makeRadargram(4, 8, false)
	path := filepath.Join(t.TempDir(), "out.rgv")
	if err := Write(path, rg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	back, err := Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if back.Geolocated() || back.CRS != "" {
		t.Error("ungeolocated radargram came back with positions")
	}
}

func TestReadRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.rgv")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Error("expected an error for a non-gzip file")
	}
}

func TestWriteTrack(t *testing.T) {
	rg := makeRadargram(5, 8, true)
	path := filepath.Join(t.TempDir(), "track.csv")
	if err := WriteTrack(path, rg); err != nil {
		t.Fatalf("track export failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	if rows[0][0] != "trace" || rows[0][6] != "crs" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[3][2] != "570002" || rows[3][6] != "EPSG:25832" {
		t.Errorf("unexpected row 3: %v", rows[3])
	}
}

func TestWriteTrackNeedsGeolocation(t *testing.T) {
	rg := makeRadargram(3, 8, false)
	if err := WriteTrack(filepath.Join(t.TempDir(), "t.csv"), rg); err == nil {
		t.Error("expected an error for ungeolocated input")
	}
}
