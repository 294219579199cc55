package decoder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

// Per-format amplitude scale factors. Stored samples are signed integers at
// full dynamic range; dividing by the type's magnitude normalizes to [-1, 1].
const (
	malaScale16 = 1.0 / 32768.0
	malaScale32 = 1.0 / 2147483648.0
)

// Mala decodes the Malå GeoScience ramac format: a ".rad" ASCII header, a
// little-endian trace block (".rd3" int16 or ".rd7" int32, trace-major) and
// an optional ".cor" coordinate sidecar.
type Mala struct{}

// radHeader holds the fields read from a ".rad" file.
type radHeader struct {
	samples          int
	frequency        float64 // sampling frequency, MHz
	antennas         string
	antennaFrequency float64 // MHz, parsed from the antennas designation
	antennaSep       float64 // meters
	stacks           int
	timeInterval     float64 // seconds between traces
	distanceInterval float64 // meters between traces
	lastTrace        int
	date             string // "2024-03-14"
	startTime        string // "09:41:02"
}

// Decode reads the header/data pair that path belongs to. path may point at
// the ".rad" header or at the data file itself.
func (Mala) Decode(path string) (*models.Radargram, error) {
	headerPath, dataPath, err := malaPair(path)
	if err != nil {
		return nil, err
	}

	hdr, err := parseRadHeader(headerPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, &FormatError{Kind: TruncatedData, File: dataPath, Detail: "reading trace block", Err: err}
	}

	width, scale := 2, malaScale16
	if strings.EqualFold(filepath.Ext(dataPath), ".rd7") {
		width, scale = 4, malaScale32
	}

	traceBytes := hdr.samples * width
	if len(raw) == 0 || len(raw)%traceBytes != 0 {
		return nil, errf(TruncatedData, dataPath,
			"%d bytes is not a multiple of the %d-byte trace length", len(raw), traceBytes)
	}
	numTraces := len(raw) / traceBytes
	if hdr.lastTrace > 0 && hdr.lastTrace != numTraces {
		return nil, errf(TruncatedData, dataPath,
			"header declares %d traces (LAST TRACE), trace block holds %d", hdr.lastTrace, numTraces)
	}

	data := mat.NewDense(numTraces, hdr.samples, nil)
	for i := 0; i < numTraces; i++ {
		row := data.RawRowView(i)
		base := i * traceBytes
		if width == 2 {
			for j := 0; j < hdr.samples; j++ {
				v := int16(binary.LittleEndian.Uint16(raw[base+2*j:]))
				row[j] = float64(v) * scale
			}
		} else {
			for j := 0; j < hdr.samples; j++ {
				v := int32(binary.LittleEndian.Uint32(raw[base+4*j:]))
				row[j] = float64(v) * scale
			}
		}
	}

	rg := &models.Radargram{
		Data:              data,
		SampleInterval:    1000.0 / hdr.frequency, // MHz sampling -> ns per sample
		Instrument:        "Malå " + hdr.antennas,
		SourceFile:        dataPath,
		AntennaSeparation: hdr.antennaSep,
		AntennaFrequency:  hdr.antennaFrequency,
		StackingCount:     hdr.stacks,
		MediumVelocity:    models.DefaultMediumVelocity,
	}

	// Timing and coordinates: a ".cor" sidecar wins; otherwise the header's
	// start time and trace interval synthesize timestamps.
	corPath := siblingWithExt(dataPath, ".cor")
	if _, statErr := os.Stat(corPath); statErr == nil {
		anchors, corErr := parseCorFile(corPath)
		if corErr != nil {
			return nil, corErr
		}
		applyCorAnchors(rg, anchors)
	} else if hdr.timeInterval > 0 && hdr.date != "" {
		start, parseErr := parseMalaClock(hdr.date, hdr.startTime)
		if parseErr != nil {
			return nil, errf(InvalidHeader, headerPath, "bad DATE/START TIME: %v", parseErr)
		}
		step := time.Duration(hdr.timeInterval * float64(time.Second))
		rg.Timestamps = make([]time.Time, numTraces)
		for i := range rg.Timestamps {
			rg.Timestamps[i] = start.Add(time.Duration(i) * step)
		}
		if hdr.distanceInterval > 0 {
			rg.Distance = make([]float64, numTraces)
			for i := range rg.Distance {
				rg.Distance[i] = float64(i) * hdr.distanceInterval
			}
		}
	} else {
		return nil, errf(MissingTiming, dataPath,
			"no .cor file and no TIME INTERVAL/DATE in %s", headerPath)
	}

	if err := rg.Validate(); err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: dataPath, Detail: "decoded radargram invalid", Err: err}
	}
	return rg, nil
}

// malaPair resolves the ".rad" header and data file for path. When path is
// the header, ".rd3" is preferred over ".rd7" if both exist.
func malaPair(path string) (headerPath, dataPath string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rd3", ".rd7":
		headerPath = siblingWithExt(path, ".rad")
		dataPath = path
	case ".rad":
		headerPath = path
		for _, ext := range []string{".rd3", ".rd7"} {
			candidate := siblingWithExt(path, ext)
			if _, statErr := os.Stat(candidate); statErr == nil {
				dataPath = candidate
				break
			}
		}
		if dataPath == "" {
			return "", "", errf(TruncatedData, path, "no .rd3 or .rd7 data file next to header")
		}
	}
	if _, statErr := os.Stat(headerPath); statErr != nil {
		return "", "", &FormatError{Kind: InvalidHeader, File: path, Detail: "header file missing", Err: statErr}
	}
	return headerPath, dataPath, nil
}

// parseRadHeader reads the "KEY:VALUE" lines of a ".rad" file. SAMPLES,
// FREQUENCY and ANTENNAS are mandatory; ANTENNAS doubles as the format
// marker since every Malå header carries the antenna designation.
func parseRadHeader(path string) (*radHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}
	defer f.Close()

	hdr := &radHeader{}
	seen := map[string]bool{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		seen[key] = true

		var convErr error
		switch key {
		case "SAMPLES":
			hdr.samples, convErr = strconv.Atoi(value)
		case "FREQUENCY":
			hdr.frequency, convErr = strconv.ParseFloat(value, 64)
		case "ANTENNAS":
			hdr.antennas = value
			hdr.antennaFrequency = leadingNumber(value)
		case "ANTENNA SEPARATION":
			hdr.antennaSep, convErr = strconv.ParseFloat(value, 64)
		case "STACKS":
			hdr.stacks, convErr = strconv.Atoi(value)
		case "TIME INTERVAL", "TIMEINTERVAL":
			hdr.timeInterval, convErr = strconv.ParseFloat(value, 64)
		case "DISTANCE INTERVAL":
			hdr.distanceInterval, convErr = strconv.ParseFloat(value, 64)
		case "LAST TRACE":
			hdr.lastTrace, convErr = strconv.Atoi(value)
		case "DATE":
			hdr.date = value
		case "START TIME", "STARTTIME":
			hdr.startTime = value
		}
		if convErr != nil {
			return nil, errf(InvalidHeader, path, "bad %s value %q", key, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &FormatError{Kind: InvalidHeader, File: path, Err: err}
	}

	for _, required := range []string{"SAMPLES", "FREQUENCY", "ANTENNAS"} {
		if !seen[required] {
			return nil, errf(InvalidHeader, path, "missing required field %s", required)
		}
	}
	if hdr.samples <= 0 {
		return nil, errf(InvalidHeader, path, "non-positive SAMPLES %d", hdr.samples)
	}
	if hdr.frequency <= 0 {
		return nil, errf(InvalidHeader, path, "non-positive FREQUENCY %g", hdr.frequency)
	}
	return hdr, nil
}

// parseMalaClock combines the header DATE and START TIME fields. A missing
// start time means the survey clock began at midnight.
func parseMalaClock(date, start string) (time.Time, error) {
	if start == "" {
		start = "00:00:00"
	}
	return time.Parse("2006-01-02 15:04:05", fmt.Sprintf("%s %s", date, start))
}

// leadingNumber parses the numeric prefix of strings like "800 MHz shielded".
func leadingNumber(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return v
}
