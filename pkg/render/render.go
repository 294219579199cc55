// Package render rasterizes radargrams into grayscale images for quick
// visual inspection: traces map to columns, samples to rows, depth grows
// downwards.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"gprproc/internal/models"
)

// Options controls the rasterization.
type Options struct {
	// ClipLow and ClipHigh are the amplitude quantiles mapped to black
	// and white. Clipping a percent at each end keeps single outlier
	// samples from washing out the whole image.
	ClipLow  float64
	ClipHigh float64

	// Quality is the JPEG quality, 1 to 100.
	Quality int
}

// DefaultOptions clips at the 1st and 99th percentile, JPEG quality 90.
func DefaultOptions() Options {
	return Options{ClipLow: 0.01, ClipHigh: 0.99, Quality: 90}
}

// Image rasterizes rg into an 8-bit grayscale image.
func Image(rg *models.Radargram, opts Options) (image.Image, error) {
	if opts.ClipLow < 0 || opts.ClipHigh > 1 || opts.ClipLow >= opts.ClipHigh {
		return nil, fmt.Errorf("render: invalid clip quantiles [%g, %g]", opts.ClipLow, opts.ClipHigh)
	}

	traces, samples := rg.NumTraces(), rg.NumSamples()
	values := make([]float64, 0, traces*samples)
	for i := 0; i < traces; i++ {
		values = append(values, rg.Data.RawRowView(i)...)
	}
	sort.Float64s(values)

	lo := stat.Quantile(opts.ClipLow, stat.Empirical, values, nil)
	hi := stat.Quantile(opts.ClipHigh, stat.Empirical, values, nil)
	if hi <= lo {
		// Flat data renders mid-gray rather than failing.
		hi = lo + 1
	}
	scale := 255.0 / (hi - lo)

	img := image.NewGray(image.Rect(0, 0, traces, samples))
	for i := 0; i < traces; i++ {
		row := rg.Data.RawRowView(i)
		for j, v := range row {
			g := (v - lo) * scale
			if g < 0 {
				g = 0
			} else if g > 255 {
				g = 255
			}
			img.SetGray(i, j, color.Gray{Y: uint8(g)})
		}
	}
	return img, nil
}

// WriteJPEG rasterizes rg and writes it to path.
func WriteJPEG(path string, rg *models.Radargram, opts Options) error {
	img, err := Image(rg, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
