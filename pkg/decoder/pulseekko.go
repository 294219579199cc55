package decoder

import (
	"bufio"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

// pulseEKKO trace records: 25 big-endian float32 header words followed by
// the int16 big-endian samples. Word indices read by the decoder; the
// remaining words duplicate ".hd" fields and are skipped.
const (
	ekkoWordPosition = 1  // along-line position, meters
	ekkoWordSamples  = 2  // samples in this trace
	ekkoWordClock    = 22 // seconds past midnight at acquisition
)

const (
	ekkoHeaderWords = 25
	ekkoHeaderBytes = ekkoHeaderWords * 4
	ekkoScale       = 1.0 / 32768.0
)

// PulseEkko decodes the Sensors & Software pulseEKKO format: a ".hd" ASCII
// header next to a ".dt1" trace block.
type PulseEkko struct{}

// hdHeader holds the fields read from a ".hd" file.
type hdHeader struct {
	traces        int
	samples       int
	window        float64 // ns
	stepSize      float64 // meters between traces
	antennaSep    float64 // meters
	stacks        int
	frequency     float64 // nominal antenna frequency, MHz
	tracesPerSec  float64 // only in time-triggered surveys
	date          string  // "2024-03-14"
	startPosition float64
}

var hdDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Decode reads the header/data pair that path belongs to. path may point at
// the ".hd" header or at the ".dt1" data file.
func (PulseEkko) Decode(path string) (*models.Radargram, error) {
	var headerPath, dataPath string
	if strings.EqualFold(filepath.Ext(path), ".hd") {
		headerPath, dataPath = path, siblingWithExt(path, ".dt1")
	} else {
		headerPath, dataPath = siblingWithExt(path, ".hd"), path
	}

	hdr, err := parseHdHeader(headerPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, &FormatError{Kind: TruncatedData, File: dataPath, Detail: "reading trace block", Err: err}
	}

	recordBytes := ekkoHeaderBytes + 2*hdr.samples
	if len(raw) == 0 || len(raw)%recordBytes != 0 {
		return nil, errf(TruncatedData, dataPath,
			"%d bytes is not a multiple of the %d-byte trace record", len(raw), recordBytes)
	}
	numTraces := len(raw) / recordBytes
	if hdr.traces > 0 && hdr.traces != numTraces {
		return nil, errf(TruncatedData, dataPath,
			"header declares %d traces, trace block holds %d", hdr.traces, numTraces)
	}

	data := mat.NewDense(numTraces, hdr.samples, nil)
	words := make([]float64, ekkoHeaderWords)
	positions := make([]float64, numTraces)
	clocks := make([]float64, numTraces)
	haveClock := false

	for i := 0; i < numTraces; i++ {
		base := i * recordBytes
		for w := 0; w < ekkoHeaderWords; w++ {
			bits := binary.BigEndian.Uint32(raw[base+4*w:])
			words[w] = float64(math.Float32frombits(bits))
		}
		if declared := int(words[ekkoWordSamples]); declared != 0 && declared != hdr.samples {
			return nil, errf(TruncatedData, dataPath,
				"trace %d declares %d samples, header says %d", i, declared, hdr.samples)
		}
		positions[i] = words[ekkoWordPosition]
		clocks[i] = words[ekkoWordClock]
		if clocks[i] != 0 {
			haveClock = true
		}

		row := data.RawRowView(i)
		sampleBase := base + ekkoHeaderBytes
		for j := 0; j < hdr.samples; j++ {
			v := int16(binary.BigEndian.Uint16(raw[sampleBase+2*j:]))
			row[j] = float64(v) * ekkoScale
		}
	}

	rg := &models.Radargram{
		Data:              data,
		SampleInterval:    hdr.window / float64(hdr.samples),
		Instrument:        "pulseEKKO",
		SourceFile:        dataPath,
		AntennaSeparation: hdr.antennaSep,
		AntennaFrequency:  hdr.frequency,
		StackingCount:     hdr.stacks,
		MediumVelocity:    models.DefaultMediumVelocity,
		Distance:          ekkoDistance(positions, hdr),
	}

	rg.Timestamps, err = ekkoTimestamps(hdr, clocks, haveClock, dataPath)
	if err != nil {
		return nil, err
	}

	if err := rg.Validate(); err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: dataPath, Detail: "decoded radargram invalid", Err: err}
	}
	return rg, nil
}

// ekkoTimestamps builds per-trace times from the embedded clock words when
// any are set, else synthesizes them from the header date and trace rate.
func ekkoTimestamps(hdr *hdHeader, clocks []float64, haveClock bool, file string) ([]time.Time, error) {
	if hdr.date == "" {
		return nil, errf(MissingTiming, file, "header has no survey date line")
	}
	midnight, err := time.Parse("2006-01-02", hdr.date)
	if err != nil {
		return nil, errf(InvalidHeader, file, "bad survey date %q", hdr.date)
	}

	ts := make([]time.Time, len(clocks))
	if haveClock {
		// Clock words are seconds past midnight; a decrease means the
		// survey crossed midnight.
		dayOffset := time.Duration(0)
		for i, c := range clocks {
			if i > 0 && c < clocks[i-1] {
				dayOffset += 24 * time.Hour
			}
			ts[i] = midnight.Add(dayOffset + time.Duration(c*float64(time.Second)))
		}
		return ts, nil
	}

	if hdr.tracesPerSec <= 0 {
		return nil, errf(MissingTiming, file, "no per-trace clock words and no TRACES PER SECOND in header")
	}
	step := time.Duration(float64(time.Second) / hdr.tracesPerSec)
	for i := range ts {
		ts[i] = midnight.Add(time.Duration(i) * step)
	}
	return ts, nil
}

// ekkoDistance converts per-trace position words to along-line distance from
// the survey start, falling back to the header step size when the odometer
// words are all zero.
func ekkoDistance(positions []float64, hdr *hdHeader) []float64 {
	allZero := true
	for _, p := range positions {
		if p != 0 {
			allZero = false
			break
		}
	}
	dist := make([]float64, len(positions))
	for i := range dist {
		if allZero {
			dist[i] = float64(i) * hdr.stepSize
		} else {
			dist[i] = positions[i] - hdr.startPosition
		}
	}
	return dist
}

// parseHdHeader reads a ".hd" file. The header is free-form ASCII with
// "KEY = VALUE" lines, a bare ISO date line, and a title block that must
// mention pulseEKKO; the mention is the format marker.
func parseHdHeader(path string) (*hdHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}
	defer f.Close()

	hdr := &hdHeader{}
	marker := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Contains(line, "pulseEKKO") {
			marker = true
		}
		if hdDatePattern.MatchString(line) {
			hdr.date = line
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		var convErr error
		switch key {
		case "NUMBER OF TRACES":
			hdr.traces, convErr = strconv.Atoi(value)
		case "NUMBER OF PTS/TRC":
			hdr.samples, convErr = strconv.Atoi(value)
		case "TOTAL TIME WINDOW":
			hdr.window, convErr = strconv.ParseFloat(value, 64)
		case "STEP SIZE USED":
			hdr.stepSize, convErr = strconv.ParseFloat(value, 64)
		case "ANTENNA SEPARATION":
			hdr.antennaSep, convErr = strconv.ParseFloat(value, 64)
		case "NUMBER OF STACKS":
			hdr.stacks, convErr = strconv.Atoi(value)
		case "NOMINAL FREQUENCY":
			hdr.frequency, convErr = strconv.ParseFloat(value, 64)
		case "TRACES PER SECOND":
			hdr.tracesPerSec, convErr = strconv.ParseFloat(value, 64)
		case "STARTING POSITION":
			hdr.startPosition, convErr = strconv.ParseFloat(value, 64)
		}
		if convErr != nil {
			return nil, errf(InvalidHeader, path, "bad %s value %q", key, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}

	if !marker {
		return nil, errf(InvalidHeader, path, "no pulseEKKO format marker")
	}
	if hdr.samples <= 0 {
		return nil, errf(InvalidHeader, path, "missing or non-positive NUMBER OF PTS/TRC")
	}
	if hdr.window <= 0 {
		return nil, errf(InvalidHeader, path, "missing or non-positive TOTAL TIME WINDOW")
	}
	return hdr, nil
}
