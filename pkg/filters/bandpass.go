package filters

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"gprproc/internal/models"
)

// bandpassFilter suppresses frequency content outside [low, high] MHz in
// every trace. The transform runs trace by trace with a real FFT; bins
// outside the band are zeroed and the trace reconstructed.
//
// With both cutoffs left at 0 the band defaults to half and twice the
// antenna center frequency, the usual window for GPR reflection energy.
func bandpassFilter() *Filter {
	return &Filter{
		Name:        "bandpass",
		Description: "Zero spectral content outside a frequency band.",
		Defaults:    Params{"low": 0, "high": 0},
		ParamOrder:  []string{"low", "high"},
		Repeatable:  true,
		Apply: func(rg *models.Radargram, p Params) error {
			low, high := p["low"], p["high"]
			if low == 0 && high == 0 {
				if rg.AntennaFrequency <= 0 {
					return failf(PreconditionUnmet,
						"no cutoffs given and the antenna frequency is unknown")
				}
				low, high = rg.AntennaFrequency/2, rg.AntennaFrequency*2
			}

			samplingMHz := 1000.0 / rg.SampleInterval // ns spacing -> MHz
			nyquist := samplingMHz / 2
			if low < 0 || low >= high {
				return failf(NumericInstability, "degenerate band [%g, %g] MHz", low, high)
			}
			if low >= nyquist {
				return failf(NumericInstability,
					"band [%g, %g] MHz lies above the %g MHz Nyquist frequency", low, high, nyquist)
			}

			samples := rg.NumSamples()
			fft := fourier.NewFFT(samples)
			coeffs := make([]complex128, samples/2+1)
			for i := 0; i < rg.NumTraces(); i++ {
				row := rg.Data.RawRowView(i)
				fft.Coefficients(coeffs, row)
				for k := range coeffs {
					freqMHz := fft.Freq(k) * samplingMHz
					if freqMHz < low || freqMHz > high {
						coeffs[k] = 0
					}
				}
				fft.Sequence(row, coeffs)
				for j := range row {
					row[j] /= float64(samples)
				}
			}
			return nil
		},
	}
}
