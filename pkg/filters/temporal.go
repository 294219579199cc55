package filters

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

// dewowFilter removes the low-frequency "wow" baseline that trails the
// transmit pulse by subtracting a running mean down each trace.
func dewowFilter() *Filter {
	return &Filter{
		Name:        "dewow",
		Description: "Subtract a running-mean baseline along each trace.",
		Defaults:    Params{"window": 5},
		ParamOrder:  []string{"window"},
		Repeatable:  true,
		Apply: func(rg *models.Radargram, p Params) error {
			window := int(p["window"])
			if window < 2 {
				return failf(PreconditionUnmet, "window (%d) needs to be >= 2", window)
			}
			if window > rg.NumSamples() {
				return failf(PreconditionUnmet, "window (%d) is larger than the trace length (%d)", window, rg.NumSamples())
			}

			half := window / 2
			samples := rg.NumSamples()
			prefix := make([]float64, samples+1)
			for i := 0; i < rg.NumTraces(); i++ {
				row := rg.Data.RawRowView(i)
				for j, v := range row {
					prefix[j+1] = prefix[j] + v
				}
				for j := range row {
					lo := j - half
					if lo < 0 {
						lo = 0
					}
					hi := j + half + 1
					if hi > samples {
						hi = samples
					}
					mean := (prefix[hi] - prefix[lo]) / float64(hi-lo)
					row[j] -= mean
				}
			}
			return nil
		},
	}
}

// zeroCorrMaxPeakFilter aligns time zero with the first arrival, located as
// the mean per-trace index of maximum absolute amplitude. The samples above
// the break are trimmed, so the filter shrinks the trace length and records
// the removed span in TimeZero.
func zeroCorrMaxPeakFilter() *Filter {
	return &Filter{
		Name:        "zero_corr_max_peak",
		Description: "Trim samples above the mean maximum-amplitude break.",
		Defaults:    Params{},
		Apply: func(rg *models.Radargram, _ Params) error {
			traces, samples := rg.NumTraces(), rg.NumSamples()

			sum := 0.0
			for i := 0; i < traces; i++ {
				row := rg.Data.RawRowView(i)
				best, bestVal := 0, 0.0
				for j, v := range row {
					if a := math.Abs(v); a > bestVal {
						best, bestVal = j, a
					}
				}
				sum += float64(best)
			}
			shift := int(math.Round(sum / float64(traces)))
			if shift <= 0 {
				return nil
			}
			if shift >= samples {
				return failf(NumericInstability, "first break at sample %d leaves no data", shift)
			}

			rg.Data = mat.DenseCopyOf(rg.Data.Slice(0, traces, shift, samples))
			rg.TimeZero += float64(shift) * rg.SampleInterval
			return nil
		},
	}
}

// antennaSeparationFilter removes the geometric arrival-time distortion of
// separated transmitter and receiver antennas. A reflector at vertical
// two-way time tv is recorded at sqrt(tv^2 + ts^2), ts being the direct-wave
// travel time across the separation; the filter resamples every trace onto
// the vertical time axis.
func antennaSeparationFilter() *Filter {
	return &Filter{
		Name:        "correct_antenna_separation",
		Description: "Resample traces from slant to vertical travel time.",
		Defaults:    Params{},
		Apply: func(rg *models.Radargram, _ Params) error {
			if rg.AntennaSeparation <= 0 {
				return failf(PreconditionUnmet, "antenna separation unknown")
			}
			if rg.MediumVelocity <= 0 {
				return failf(PreconditionUnmet, "medium velocity unknown")
			}

			ts := rg.AntennaSeparation / rg.MediumVelocity // ns, one-way across the gap
			dt := rg.SampleInterval
			samples := rg.NumSamples()
			resampled := make([]float64, samples)
			for i := 0; i < rg.NumTraces(); i++ {
				row := rg.Data.RawRowView(i)
				for j := 0; j < samples; j++ {
					tv := float64(j) * dt
					tm := math.Sqrt(tv*tv+ts*ts) - ts
					resampled[j] = sampleAt(row, tm/dt)
				}
				copy(row, resampled)
			}
			return nil
		},
	}
}

// topographyFilter shifts each trace vertically so equal sample rows sit at
// equal absolute elevation, padding the matrix to fit the relief.
func topographyFilter() *Filter {
	return &Filter{
		Name:           "correct_topography",
		Description:    "Shift traces vertically according to surface elevation.",
		Defaults:       Params{},
		NeedsElevation: true,
		Apply: func(rg *models.Radargram, _ Params) error {
			if rg.MediumVelocity <= 0 {
				return failf(PreconditionUnmet, "medium velocity unknown")
			}

			maxElev := math.Inf(-1)
			for _, p := range rg.Positions {
				if p.Z > maxElev {
					maxElev = p.Z
				}
			}

			traces, samples := rg.NumTraces(), rg.NumSamples()
			shifts := make([]int, traces)
			maxShift := 0
			for i, p := range rg.Positions {
				// Two-way time to descend from the highest antenna
				// to this one, in samples.
				lag := 2 * (maxElev - p.Z) / rg.MediumVelocity / rg.SampleInterval
				shifts[i] = int(math.Round(lag))
				if shifts[i] > maxShift {
					maxShift = shifts[i]
				}
			}
			if maxShift == 0 {
				return nil
			}

			shifted := mat.NewDense(traces, samples+maxShift, nil)
			for i := 0; i < traces; i++ {
				copy(shifted.RawRowView(i)[shifts[i]:shifts[i]+samples], rg.Data.RawRowView(i))
			}
			rg.Data = shifted
			return nil
		},
	}
}

// sampleAt linearly interpolates row at fractional index pos, clamping to
// the trace ends.
func sampleAt(row []float64, pos float64) float64 {
	if pos <= 0 {
		return row[0]
	}
	if pos >= float64(len(row)-1) {
		return row[len(row)-1]
	}
	lo := int(pos)
	frac := pos - float64(lo)
	return row[lo]*(1-frac) + row[lo+1]*frac
}
