package filters

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

func runOne(t *testing.T, rg *models.Radargram, name string, params Params) *models.Radargram {
	t.Helper()
	out, err := Run(rg, []Step{{Name: name, Params: params}})
	if err != nil {
		t.Fatalf("%s failed: %v", name, err)
	}
	return out
}

func TestDewowRemovesConstantBaseline(t *testing.T) {
	rg := makeRadargram(4, 32)
	for i := 0; i < 4; i++ {
		row := rg.Data.RawRowView(i)
		for j := range row {
			row[j] = 3.5
		}
	}

	out := runOne(t, rg, "dewow", nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 32; j++ {
			if math.Abs(out.Data.At(i, j)) > 1e-12 {
				t.Fatalf("constant trace not zeroed at (%d, %d): %g", i, j, out.Data.At(i, j))
			}
		}
	}
}

func TestDewowWindowBounds(t *testing.T) {
	rg := makeRadargram(2, 8)
	if _, err := Run(rg, []Step{{Name: "dewow", Params: Params{"window": 1}}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("window 1: expected PreconditionUnmet, got %v", err)
	}
	if _, err := Run(rg, []Step{{Name: "dewow", Params: Params{"window": 9}}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("oversized window: expected PreconditionUnmet, got %v", err)
	}
}

func TestZeroCorrTrimsToFirstBreak(t *testing.T) {
	rg := makeRadargram(3, 16)
	rg.Data = mat.NewDense(3, 16, nil)
	for i := 0; i < 3; i++ {
		rg.Data.Set(i, 3, 10) // every trace breaks at sample 3
		rg.Data.Set(i, 7, 2)
	}

	out := runOne(t, rg, "zero_corr_max_peak", nil)
	if out.NumSamples() != 13 {
		t.Fatalf("expected 13 samples after trim, got %d", out.NumSamples())
	}
	if out.Data.At(0, 0) != 10 {
		t.Errorf("break sample should be the new first sample, got %g", out.Data.At(0, 0))
	}
	wantTZ := 3 * rg.SampleInterval
	if math.Abs(out.TimeZero-wantTZ) > 1e-12 {
		t.Errorf("expected TimeZero %g, got %g", wantTZ, out.TimeZero)
	}
}

func TestZeroCorrNoBreakIsNoOp(t *testing.T) {
	rg := makeRadargram(3, 16)
	rg.Data = mat.NewDense(3, 16, nil)
	for i := 0; i < 3; i++ {
		rg.Data.Set(i, 0, 5) // break already at time zero
	}
	out := runOne(t, rg, "zero_corr_max_peak", nil)
	if out.NumSamples() != 16 || out.TimeZero != 0 {
		t.Errorf("expected unchanged geometry, got %d samples and TimeZero %g",
			out.NumSamples(), out.TimeZero)
	}
}

func TestAntennaSeparationPullsArrivalsEarlier(t *testing.T) {
	rg := makeRadargram(1, 64)
	row := rg.Data.RawRowView(0)
	for j := range row {
		row[j] = float64(j) // monotone ramp
	}

	out := runOne(t, rg, "correct_antenna_separation", nil)
	// Measured time exceeds vertical time, so the corrected trace reads
	// from later samples: values can only grow, and sample 0 stays put.
	if out.Data.At(0, 0) != 0 {
		t.Errorf("sample 0 should be unchanged, got %g", out.Data.At(0, 0))
	}
	for j := 1; j < 64; j++ {
		if out.Data.At(0, j) < float64(j) {
			t.Fatalf("sample %d moved earlier: %g < %d", j, out.Data.At(0, j), j)
		}
	}
}

func TestAntennaSeparationRequiresGeometry(t *testing.T) {
	rg := makeRadargram(2, 16)
	rg.AntennaSeparation = 0
	if _, err := Run(rg, []Step{{Name: "correct_antenna_separation"}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("expected PreconditionUnmet without separation, got %v", err)
	}
}

func TestTopographyShiftsByElevation(t *testing.T) {
	rg := makeRadargram(2, 4)
	rg.Data = mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	})
	rg.SampleInterval = 1
	rg.MediumVelocity = 0.1
	rg.CRS = "EPSG:25832"
	rg.Positions = []models.Position{
		{X: 0, Y: 0, Z: 1.00},
		{X: 1, Y: 0, Z: 0.95}, // 0.05 m lower -> 1 sample of two-way time
	}

	out := runOne(t, rg, "correct_topography", nil)
	if out.NumSamples() != 5 {
		t.Fatalf("expected padding to 5 samples, got %d", out.NumSamples())
	}
	if out.Data.At(0, 0) != 1 || out.Data.At(0, 4) != 0 {
		t.Errorf("highest trace should be unshifted: row %v", out.Data.RawRowView(0))
	}
	if out.Data.At(1, 0) != 0 || out.Data.At(1, 1) != 5 {
		t.Errorf("lower trace should shift down one sample: row %v", out.Data.RawRowView(1))
	}
}

func TestNormalizeHorizontalZeroesRowMeans(t *testing.T) {
	rg := makeRadargram(8, 32)
	out := runOne(t, rg, "normalize_horizontal_magnitudes", nil)
	for j := 0; j < 32; j++ {
		sum := 0.0
		for i := 0; i < 8; i++ {
			sum += out.Data.At(i, j)
		}
		if math.Abs(sum/8) > 1e-12 {
			t.Fatalf("depth row %d mean not removed: %g", j, sum/8)
		}
	}
}

func TestNormalizeHorizontalSkipFirst(t *testing.T) {
	rg := makeRadargram(4, 10)
	rg.Data = mat.NewDense(4, 10, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 10; j++ {
			rg.Data.Set(i, j, 2)
		}
	}
	out := runOne(t, rg, "normalize_horizontal_magnitudes", Params{"skip_first": 0.5})
	if out.Data.At(0, 4) != 2 {
		t.Errorf("skipped region modified: %g", out.Data.At(0, 4))
	}
	if out.Data.At(0, 5) != 0 {
		t.Errorf("corrected region kept its mean: %g", out.Data.At(0, 5))
	}
}

func TestEquidistantTracesResamples(t *testing.T) {
	rg := makeRadargram(3, 2)
	rg.Distance = []float64{0, 1, 4}
	// Each depth row is linear in distance, so resampling onto the
	// uniform axis must land exactly on the axis values.
	for i, d := range rg.Distance {
		rg.Data.Set(i, 0, d)
		rg.Data.Set(i, 1, 2*d)
	}

	out := runOne(t, rg, "equidistant_traces", nil)
	wantAxis := []float64{0, 2, 4}
	for i, want := range wantAxis {
		if math.Abs(out.Distance[i]-want) > 1e-12 {
			t.Errorf("distance[%d]: expected %g, got %g", i, want, out.Distance[i])
		}
		if math.Abs(out.Data.At(i, 0)-want) > 1e-9 {
			t.Errorf("resampled value at trace %d: expected %g, got %g", i, want, out.Data.At(i, 0))
		}
		if math.Abs(out.Data.At(i, 1)-2*want) > 1e-9 {
			t.Errorf("resampled second row at trace %d: expected %g, got %g", i, 2*want, out.Data.At(i, 1))
		}
	}
	for i := 1; i < len(out.Timestamps); i++ {
		if out.Timestamps[i].Before(out.Timestamps[i-1]) {
			t.Fatalf("resampled timestamps decrease at %d", i)
		}
	}
}

func TestEquidistantTracesStationary(t *testing.T) {
	rg := makeRadargram(3, 4)
	rg.Distance = []float64{0, 1, 1} // operator stopped
	if _, err := Run(rg, []Step{{Name: "equidistant_traces"}}); KindOf(err) != NumericInstability {
		t.Errorf("expected NumericInstability for stalled distance axis, got %v", err)
	}
}

func TestAverageTraces(t *testing.T) {
	rg := makeRadargram(5, 2)
	rg.Data = mat.NewDense(5, 2, []float64{
		0, 10,
		2, 20,
		4, 30,
		6, 40,
		8, 50,
	})

	out := runOne(t, rg, "average_traces", Params{"window": 2})
	if out.NumTraces() != 3 {
		t.Fatalf("expected 3 averaged traces, got %d", out.NumTraces())
	}
	want := [][]float64{{1, 15}, {5, 35}, {8, 50}}
	for g, row := range want {
		for j, v := range row {
			if out.Data.At(g, j) != v {
				t.Errorf("group %d sample %d: expected %g, got %g", g, j, v, out.Data.At(g, j))
			}
		}
	}
	// Metadata keeps each window's middle trace: indices 0, 2, 4.
	wantDist := []float64{0, 1, 2}
	for g, v := range wantDist {
		if out.Distance[g] != v {
			t.Errorf("distance[%d]: expected %g, got %g", g, v, out.Distance[g])
		}
	}
	if !out.Timestamps[1].Equal(rg.Timestamps[2]) {
		t.Errorf("timestamp[1] should come from trace 2")
	}
}

func TestAverageTracesWindowBounds(t *testing.T) {
	rg := makeRadargram(3, 4)
	if _, err := Run(rg, []Step{{Name: "average_traces", Params: Params{"window": 4}}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("oversized window: expected PreconditionUnmet, got %v", err)
	}
	if _, err := Run(rg, []Step{{Name: "average_traces", Params: Params{"window": 0}}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("zero window: expected PreconditionUnmet, got %v", err)
	}
}

func TestAutoGainFlattensDecay(t *testing.T) {
	rg := makeRadargram(4, 40)
	rg.Data = mat.NewDense(4, 40, nil)
	for i := 0; i < 4; i++ {
		row := rg.Data.RawRowView(i)
		for j := range row {
			// Strong shallow half, weak deep half.
			if j < 20 {
				row[j] = 8
			} else {
				row[j] = 2
			}
		}
	}

	out := runOne(t, rg, "auto_gain", Params{"bins": 2})
	if out.Data.At(0, 0) != 8 {
		t.Errorf("reference bin should be unchanged, got %g", out.Data.At(0, 0))
	}
	if out.Data.At(0, 39) != 8 {
		t.Errorf("weak bin should be raised to the reference, got %g", out.Data.At(0, 39))
	}
}

func TestAutoGainAllZero(t *testing.T) {
	rg := makeRadargram(2, 8)
	rg.Data = mat.NewDense(2, 8, nil)
	if _, err := Run(rg, []Step{{Name: "auto_gain"}}); KindOf(err) != NumericInstability {
		t.Errorf("expected NumericInstability on silent data, got %v", err)
	}
}

func TestGainDefaults(t *testing.T) {
	rg := makeRadargram(1, 5)
	row := rg.Data.RawRowView(0)
	for j := range row {
		row[j] = 4
	}

	out := runOne(t, rg, "gain", nil)
	if out.Data.At(0, 0) != 0 {
		t.Errorf("t=0 sample should vanish under a t-gain, got %g", out.Data.At(0, 0))
	}
	if out.Data.At(0, 4) != 4 {
		t.Errorf("t=1 sample should be unchanged, got %g", out.Data.At(0, 4))
	}
	if out.Data.At(0, 2) != 2 {
		t.Errorf("midpoint should scale by 0.5, got %g", out.Data.At(0, 2))
	}
}

func TestAbslogCompressesRange(t *testing.T) {
	rg := makeRadargram(10, 10)
	v := 1.0
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			rg.Data.Set(i, j, v)
			v++
		}
	}

	out := runOne(t, rg, "abslog", nil)
	min, max := math.Inf(1), math.Inf(-1)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			s := out.Data.At(i, j)
			min = math.Min(min, s)
			max = math.Max(max, s)
		}
	}
	if min < 0.2 || min > 1 {
		t.Errorf("compressed minimum out of range: %g", min)
	}
	if max < 1.9 || max > 2.1 {
		t.Errorf("compressed maximum out of range: %g", max)
	}
}

func TestSiglogKeepsPolarity(t *testing.T) {
	rg := makeRadargram(1, 4)
	rg.Data = mat.NewDense(1, 4, []float64{1000, -1000, 0, 1e-5})

	out := runOne(t, rg, "siglog", Params{"minval_log10": 0})
	want := []float64{3, -3, 0, 0}
	for j, w := range want {
		if math.Abs(out.Data.At(0, j)-w) > 1e-12 {
			t.Errorf("sample %d: expected %g, got %g", j, w, out.Data.At(0, j))
		}
	}
}

func TestBandpassKeepsInBandEnergy(t *testing.T) {
	// 0.4 ns sampling -> 2500 MHz; with 64 samples bin k sits at
	// k * 39.0625 MHz. Bin 8 (312.5 MHz) is in band, DC and bin 24
	// (937.5 MHz) are not.
	rg := makeRadargram(1, 64)
	row := rg.Data.RawRowView(0)
	inBand := make([]float64, 64)
	for j := range row {
		inBand[j] = math.Cos(2 * math.Pi * 8 * float64(j) / 64)
		row[j] = 5 + inBand[j] + 0.5*math.Cos(2*math.Pi*24*float64(j)/64)
	}

	out := runOne(t, rg, "bandpass", Params{"low": 300, "high": 330})
	for j := 0; j < 64; j++ {
		if math.Abs(out.Data.At(0, j)-inBand[j]) > 1e-9 {
			t.Fatalf("sample %d: expected %g, got %g", j, inBand[j], out.Data.At(0, j))
		}
	}
}

func TestBandpassDefaultsFromAntenna(t *testing.T) {
	rg := makeRadargram(2, 32)
	out := runOne(t, rg, "bandpass", nil)
	// The log records the resolved defaults; cutoff derivation from the
	// antenna frequency happens inside the filter and is reproducible.
	p := out.AppliedFilters[0].Params
	if p["low"] != 0 || p["high"] != 0 {
		t.Errorf("log should carry the requested parameters, got %v", p)
	}

	rg.AntennaFrequency = 0
	if _, err := Run(rg, []Step{{Name: "bandpass"}}); KindOf(err) != PreconditionUnmet {
		t.Errorf("expected PreconditionUnmet without antenna frequency, got %v", err)
	}
}

func TestBandpassAboveNyquist(t *testing.T) {
	rg := makeRadargram(2, 32)
	_, err := Run(rg, []Step{{Name: "bandpass", Params: Params{"low": 1300, "high": 2000}}})
	if KindOf(err) != NumericInstability {
		t.Errorf("expected NumericInstability above Nyquist, got %v", err)
	}
}
