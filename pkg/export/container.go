// Package export persists processed radargrams: a compressed container
// format holding amplitudes plus full metadata, and a CSV track export for
// GIS use.
package export

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"gprproc/internal/models"
)

// Container layout, all integers big-endian, the whole stream gzipped:
//
//	magic "RGV1"
//	uint32 metadata length, followed by that many bytes of YAML
//	uint32 traces, uint32 samples
//	traces*samples float32 amplitudes, row-major
const containerMagic = "RGV1"

// containerMeta is the YAML metadata block. Timestamps travel as RFC 3339
// strings so the container stays inspectable with zcat.
type containerMeta struct {
	SampleInterval    float64                `yaml:"sample_interval_ns"`
	TimeZero          float64                `yaml:"time_zero_ns"`
	CRS               string                 `yaml:"crs,omitempty"`
	Instrument        string                 `yaml:"instrument"`
	SourceFile        string                 `yaml:"source_file"`
	AntennaSeparation float64                `yaml:"antenna_separation_m,omitempty"`
	AntennaFrequency  float64                `yaml:"antenna_frequency_mhz,omitempty"`
	StackingCount     int                    `yaml:"stacking_count,omitempty"`
	MediumVelocity    float64                `yaml:"medium_velocity_m_ns"`
	AppliedFilters    []models.FilterRecord  `yaml:"applied_filters"`
	Timestamps        []string               `yaml:"timestamps"`
	Positions         []models.Position      `yaml:"positions,omitempty"`
	Distance          []float64              `yaml:"distance_m,omitempty"`
}

// Write stores rg at path in the container format.
func Write(path string, rg *models.Radargram) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	zw := gzip.NewWriter(bw)
	if err := writeContainer(zw, rg); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func writeContainer(w io.Writer, rg *models.Radargram) error {
	meta := containerMeta{
		SampleInterval:    rg.SampleInterval,
		TimeZero:          rg.TimeZero,
		CRS:               rg.CRS,
		Instrument:        rg.Instrument,
		SourceFile:        rg.SourceFile,
		AntennaSeparation: rg.AntennaSeparation,
		AntennaFrequency:  rg.AntennaFrequency,
		StackingCount:     rg.StackingCount,
		MediumVelocity:    rg.MediumVelocity,
		AppliedFilters:    rg.AppliedFilters,
		Positions:         rg.Positions,
		Distance:          rg.Distance,
	}
	meta.Timestamps = make([]string, len(rg.Timestamps))
	for i, ts := range rg.Timestamps {
		meta.Timestamps[i] = ts.UTC().Format(time.RFC3339Nano)
	}
	metaBytes, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	if _, err := w.Write([]byte(containerMagic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(metaBytes))); err != nil {
		return err
	}
	if _, err := w.Write(metaBytes); err != nil {
		return err
	}

	traces, samples := rg.NumTraces(), rg.NumSamples()
	if err := binary.Write(w, binary.BigEndian, uint32(traces)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(samples)); err != nil {
		return err
	}

	buf := make([]byte, samples*4)
	for i := 0; i < traces; i++ {
		row := rg.Data.RawRowView(i)
		for j, v := range row {
			binary.BigEndian.PutUint32(buf[j*4:], math.Float32bits(float32(v)))
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// Read loads a container written by Write.
func Read(path string) (*models.Radargram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer zr.Close()

	rg, err := readContainer(zr)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rg, nil
}

func readContainer(r io.Reader) (*models.Radargram, error) {
	magic := make([]byte, len(containerMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != containerMagic {
		return nil, fmt.Errorf("not a radargram container (magic %q)", magic)
	}

	var metaLen uint32
	if err := binary.Read(r, binary.BigEndian, &metaLen); err != nil {
		return nil, err
	}
	metaBytes := make([]byte, metaLen)
	if _, err := io.ReadFull(r, metaBytes); err != nil {
		return nil, err
	}
	var meta containerMeta
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	var traces, samples uint32
	if err := binary.Read(r, binary.BigEndian, &traces); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &samples); err != nil {
		return nil, err
	}

	data := mat.NewDense(int(traces), int(samples), nil)
	buf := make([]byte, int(samples)*4)
	for i := 0; i < int(traces); i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		row := data.RawRowView(i)
		for j := range row {
			row[j] = float64(math.Float32frombits(binary.BigEndian.Uint32(buf[j*4:])))
		}
	}

	rg := &models.Radargram{
		Data:              data,
		SampleInterval:    meta.SampleInterval,
		TimeZero:          meta.TimeZero,
		CRS:               meta.CRS,
		Instrument:        meta.Instrument,
		SourceFile:        meta.SourceFile,
		AntennaSeparation: meta.AntennaSeparation,
		AntennaFrequency:  meta.AntennaFrequency,
		StackingCount:     meta.StackingCount,
		MediumVelocity:    meta.MediumVelocity,
		AppliedFilters:    meta.AppliedFilters,
		Positions:         meta.Positions,
		Distance:          meta.Distance,
	}
	rg.Timestamps = make([]time.Time, len(meta.Timestamps))
	for i, s := range meta.Timestamps {
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("timestamp %d: %w", i, err)
		}
		rg.Timestamps[i] = ts
	}
	return rg, nil
}
