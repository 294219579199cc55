package filters

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"gprproc/internal/models"
)

// autoGainFilter equalizes amplitude decay with depth. Traces lose energy
// geometrically and through attenuation, so deep reflectors vanish next to
// the direct wave; binning depth rows and dividing each bin by its median
// magnitude flattens the decay without hand-tuned gain curves.
func autoGainFilter() *Filter {
	return &Filter{
		Name:        "auto_gain",
		Description: "Equalize per-depth median magnitudes.",
		Defaults:    Params{"bins": 50},
		ParamOrder:  []string{"bins"},
		Apply: func(rg *models.Radargram, p Params) error {
			bins := int(p["bins"])
			if bins < 1 {
				return failf(PreconditionUnmet, "bins (%d) needs to be >= 1", bins)
			}
			traces, samples := rg.NumTraces(), rg.NumSamples()
			if bins > samples {
				bins = samples
			}

			medians := make([]float64, bins)
			magnitudes := make([]float64, 0, traces*((samples+bins-1)/bins))
			reference := 0.0
			for b := 0; b < bins; b++ {
				lo := b * samples / bins
				hi := (b + 1) * samples / bins
				magnitudes = magnitudes[:0]
				for i := 0; i < traces; i++ {
					row := rg.Data.RawRowView(i)
					for j := lo; j < hi; j++ {
						magnitudes = append(magnitudes, math.Abs(row[j]))
					}
				}
				sort.Float64s(magnitudes)
				medians[b] = stat.Quantile(0.5, stat.Empirical, magnitudes, nil)
				if medians[b] > reference {
					reference = medians[b]
				}
			}
			if reference == 0 {
				return failf(NumericInstability, "all amplitudes are zero")
			}

			for b := 0; b < bins; b++ {
				if medians[b] == 0 {
					continue
				}
				factor := reference / medians[b]
				lo := b * samples / bins
				hi := (b + 1) * samples / bins
				for i := 0; i < traces; i++ {
					row := rg.Data.RawRowView(i)
					for j := lo; j < hi; j++ {
						row[j] *= factor
					}
				}
			}
			return nil
		},
	}
}

// gainFilter applies an explicit time-power gain: each sample is multiplied
// by (1 + linear*t) * t^exponent with t the normalized two-way time in
// [0, 1]. The defaults reproduce a plain t-gain.
func gainFilter() *Filter {
	return &Filter{
		Name:        "gain",
		Description: "Apply an explicit linear/power gain over travel time.",
		Defaults:    Params{"linear": 0, "exponent": 1},
		ParamOrder:  []string{"linear", "exponent"},
		Apply: func(rg *models.Radargram, p Params) error {
			linear, exponent := p["linear"], p["exponent"]
			if exponent < 0 {
				return failf(PreconditionUnmet, "exponent (%g) must be >= 0", exponent)
			}

			samples := rg.NumSamples()
			if samples < 2 {
				return failf(PreconditionUnmet, "trace length (%d) too short for a time gain", samples)
			}
			factors := make([]float64, samples)
			for j := range factors {
				t := float64(j) / float64(samples-1)
				factors[j] = (1 + linear*t) * math.Pow(t, exponent)
			}
			for i := 0; i < rg.NumTraces(); i++ {
				row := rg.Data.RawRowView(i)
				for j := range row {
					row[j] *= factors[j]
				}
			}
			return nil
		},
	}
}

// abslogFilter rectifies the amplitudes and compresses their dynamic range
// to log10. The additive floor is the first non-zero of a fixed quantile
// ladder over the magnitudes, so fully silent regions do not force the
// output to -inf.
func abslogFilter() *Filter {
	return &Filter{
		Name:        "abslog",
		Description: "Rectify amplitudes and compress to log10 scale.",
		Defaults:    Params{},
		Apply: func(rg *models.Radargram, _ Params) error {
			traces, samples := rg.NumTraces(), rg.NumSamples()
			magnitudes := make([]float64, 0, traces*samples)
			for i := 0; i < traces; i++ {
				row := rg.Data.RawRowView(i)
				for j, v := range row {
					row[j] = math.Abs(v)
					magnitudes = append(magnitudes, row[j])
				}
			}
			sort.Float64s(magnitudes)

			floor := 1.0
			for _, q := range []float64{0.01, 0.05, 0.5, 0.9} {
				if v := stat.Quantile(q, stat.Empirical, magnitudes, nil); v > 0 {
					floor = v
					break
				}
			}

			for i := 0; i < traces; i++ {
				row := rg.Data.RawRowView(i)
				for j := range row {
					row[j] = math.Log10(row[j] + floor)
				}
			}
			return nil
		},
	}
}

// siglogFilter compresses amplitudes to a signed log scale, preserving the
// polarity that distinguishes reflection interfaces. Magnitudes below
// 10^minval_log10 collapse to zero.
func siglogFilter() *Filter {
	return &Filter{
		Name:        "siglog",
		Description: "Compress amplitudes to a signed log10 scale.",
		Defaults:    Params{"minval_log10": -4},
		ParamOrder:  []string{"minval_log10"},
		Apply: func(rg *models.Radargram, p Params) error {
			minval := p["minval_log10"]
			for i := 0; i < rg.NumTraces(); i++ {
				row := rg.Data.RawRowView(i)
				for j, v := range row {
					row[j] = math.Max(math.Log10(math.Abs(v))-minval, 0) * sign(v)
				}
			}
			return nil
		},
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
