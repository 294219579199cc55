package filters

import (
	"time"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

// normalizeHorizontalFilter subtracts the mean across traces at every depth
// row, suppressing horizontally coherent noise such as antenna ringing. The
// skip_first parameter excludes a leading fraction of each trace (the region
// dominated by the direct wave) from the correction.
func normalizeHorizontalFilter() *Filter {
	return &Filter{
		Name:        "normalize_horizontal_magnitudes",
		Description: "Remove the per-depth mean across traces.",
		Defaults:    Params{"skip_first": 0},
		ParamOrder:  []string{"skip_first"},
		Repeatable:  true,
		Apply: func(rg *models.Radargram, p Params) error {
			skipFirst := p["skip_first"]
			if skipFirst < 0 || skipFirst >= 1 {
				return failf(PreconditionUnmet, "skip_first (%g) must be in [0, 1)", skipFirst)
			}

			traces, samples := rg.NumTraces(), rg.NumSamples()
			skip := int(skipFirst * float64(samples))
			for j := skip; j < samples; j++ {
				sum := 0.0
				for i := 0; i < traces; i++ {
					sum += rg.Data.At(i, j)
				}
				mean := sum / float64(traces)
				for i := 0; i < traces; i++ {
					rg.Data.Set(i, j, rg.Data.At(i, j)-mean)
				}
			}
			return nil
		},
	}
}

// equidistantTracesFilter resamples the profile onto a uniform distance
// axis. Surveys towed at varying speed bunch traces where the operator
// slowed down; interpolating every depth row over distance restores constant
// trace spacing without changing the trace count.
func equidistantTracesFilter() *Filter {
	return &Filter{
		Name:          "equidistant_traces",
		Description:   "Resample traces onto a uniform distance axis.",
		Defaults:      Params{},
		NeedsDistance: true,
		Apply: func(rg *models.Radargram, _ Params) error {
			traces, samples := rg.NumTraces(), rg.NumSamples()
			if traces < 2 {
				return nil
			}
			for i := 1; i < traces; i++ {
				if rg.Distance[i] <= rg.Distance[i-1] {
					return failf(NumericInstability,
						"distance axis not strictly increasing at trace %d (stationary acquisition?)", i)
				}
			}

			total := rg.Distance[traces-1] - rg.Distance[0]
			uniform := make([]float64, traces)
			for i := range uniform {
				uniform[i] = rg.Distance[0] + total*float64(i)/float64(traces-1)
			}

			column := make([]float64, traces)
			resampled := mat.NewDense(traces, samples, nil)
			var pl interp.PiecewiseLinear
			for j := 0; j < samples; j++ {
				for i := 0; i < traces; i++ {
					column[i] = rg.Data.At(i, j)
				}
				if err := pl.Fit(rg.Distance, column); err != nil {
					return &FilterError{Kind: NumericInstability, Index: -1,
						Detail: "fitting depth row", Err: err}
				}
				for i := 0; i < traces; i++ {
					resampled.Set(i, j, pl.Predict(uniform[i]))
				}
			}
			rg.Data = resampled

			// Per-trace metadata moves onto the same uniform axis.
			oldDistance := rg.Distance
			if rg.Positions != nil {
				rg.Positions = resamplePositions(oldDistance, rg.Positions, uniform)
			}
			rg.Timestamps = resampleTimestamps(oldDistance, rg.Timestamps, uniform)
			rg.Distance = uniform
			return nil
		},
	}
}

// averageTracesFilter replaces each run of window traces with their mean,
// shrinking the profile horizontally. Positions, timestamps and distances
// keep the value of each window's middle trace.
func averageTracesFilter() *Filter {
	return &Filter{
		Name:        "average_traces",
		Description: "Average horizontal windows of traces.",
		Defaults:    Params{"window": 2},
		ParamOrder:  []string{"window"},
		Repeatable:  true,
		Apply: func(rg *models.Radargram, p Params) error {
			window := int(p["window"])
			if window < 2 {
				return failf(PreconditionUnmet, "window (%d) needs to be >= 2", window)
			}
			traces, samples := rg.NumTraces(), rg.NumSamples()
			if window > traces {
				return failf(PreconditionUnmet, "window (%d) is larger than the trace count (%d)", window, traces)
			}

			groups := (traces + window - 1) / window
			averaged := mat.NewDense(groups, samples, nil)
			mids := make([]int, groups)
			for g := 0; g < groups; g++ {
				start := g * window
				end := start + window
				if end > traces {
					end = traces
				}
				mids[g] = start + (end-start-1)/2

				dst := averaged.RawRowView(g)
				for i := start; i < end; i++ {
					src := rg.Data.RawRowView(i)
					for j := range dst {
						dst[j] += src[j]
					}
				}
				for j := range dst {
					dst[j] /= float64(end - start)
				}
			}

			rg.Data = averaged
			rg.Timestamps = subsetTimes(rg.Timestamps, mids)
			if rg.Positions != nil {
				subset := make([]models.Position, len(mids))
				for g, m := range mids {
					subset[g] = rg.Positions[m]
				}
				rg.Positions = subset
			}
			if rg.Distance != nil {
				subset := make([]float64, len(mids))
				for g, m := range mids {
					subset[g] = rg.Distance[m]
				}
				rg.Distance = subset
			}
			return nil
		},
	}
}

// resamplePositions interpolates positions from the old distance axis onto
// the uniform one.
func resamplePositions(old []float64, positions []models.Position, uniform []float64) []models.Position {
	out := make([]models.Position, len(uniform))
	for i, d := range uniform {
		lo, frac := bracket(old, d)
		a, b := positions[lo], positions[lo+1]
		out[i] = models.Position{
			X: a.X + frac*(b.X-a.X),
			Y: a.Y + frac*(b.Y-a.Y),
			Z: a.Z + frac*(b.Z-a.Z),
		}
	}
	return out
}

// resampleTimestamps interpolates acquisition times from the old distance
// axis onto the uniform one. Monotone distances map monotone times to a
// non-decreasing result.
func resampleTimestamps(old []float64, ts []time.Time, uniform []float64) []time.Time {
	out := make([]time.Time, len(uniform))
	for i, d := range uniform {
		lo, frac := bracket(old, d)
		span := ts[lo+1].Sub(ts[lo])
		out[i] = ts[lo].Add(time.Duration(frac * float64(span)))
	}
	return out
}

// bracket finds the segment [lo, lo+1] of the strictly increasing axis xs
// containing x and the fractional position within it, clamped to the ends.
func bracket(xs []float64, x float64) (lo int, frac float64) {
	if x <= xs[0] {
		return 0, 0
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return last - 1, 1
	}
	for lo = 0; lo < last-1; lo++ {
		if x < xs[lo+1] {
			break
		}
	}
	return lo, (x - xs[lo]) / (xs[lo+1] - xs[lo])
}

// subsetTimes picks the timestamps at the given indices.
func subsetTimes(ts []time.Time, indices []int) []time.Time {
	out := make([]time.Time, len(indices))
	for i, idx := range indices {
		out[i] = ts[idx]
	}
	return out
}
