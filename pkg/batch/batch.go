// Package batch runs the per-file processing pipeline (decode, geolocate,
// filter) over many input files in parallel.
package batch

import (
	"errors"
	"sync"
	"sync/atomic"

	"gprproc/internal/models"
	"gprproc/pkg/decoder"
	"gprproc/pkg/filters"
	"gprproc/pkg/geoloc"
	"gprproc/pkg/logging"
)

// ErrSkipped marks inputs that were never processed because an earlier file
// failed while FailFast was set.
var ErrSkipped = errors.New("skipped after earlier failure")

// Options configures a batch run.
type Options struct {
	// Steps is the filter chain applied to every file.
	Steps []filters.Step

	// Locator geolocates each radargram after decoding. Nil skips the
	// geolocation stage entirely.
	Locator *geoloc.Locator

	// Velocity overrides the medium velocity on every decoded radargram
	// when positive.
	Velocity float64

	// AntennaMHz overrides the antenna center frequency when positive,
	// for data whose headers carry none.
	AntennaMHz float64

	// Cores bounds the number of files processed concurrently. Values
	// below 1 mean one worker.
	Cores int

	// FailFast stops handing out new files after the first failure.
	// Files already in flight still finish.
	FailFast bool
}

// Result is the outcome for one input file. Radargram may be non-nil even
// when Err is set: a failed filter chain still yields the last valid state.
type Result struct {
	Path      string
	Radargram *models.Radargram
	Err       error
}

// Run processes every path and returns one result per input, in input
// order regardless of which worker finished first.
func Run(paths []string, opts Options) []Result {
	cores := opts.Cores
	if cores < 1 {
		cores = 1
	}
	if cores > len(paths) {
		cores = len(paths)
	}

	results := make([]Result, len(paths))
	jobs := make(chan int)
	var failed atomic.Bool

	var wg sync.WaitGroup
	for c := 0; c < cores; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := paths[i]
				if opts.FailFast && failed.Load() {
					results[i] = Result{Path: path, Err: ErrSkipped}
					continue
				}
				rg, err := processOne(path, opts)
				results[i] = Result{Path: path, Radargram: rg, Err: err}
				if err != nil {
					failed.Store(true)
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// processOne runs the full single-file pipeline.
func processOne(path string, opts Options) (*models.Radargram, error) {
	log := logging.L()

	rg, err := decoder.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info("decoded %s: %d traces x %d samples", path, rg.NumTraces(), rg.NumSamples())

	if opts.Velocity > 0 {
		rg.MediumVelocity = opts.Velocity
	}
	if opts.AntennaMHz > 0 {
		rg.AntennaFrequency = opts.AntennaMHz
	}

	if opts.Locator != nil {
		traceErrs, err := opts.Locator.Locate(rg)
		if err != nil {
			return nil, err
		}
		for _, te := range traceErrs {
			log.Warn("%s: %v", path, te)
		}
	}

	out, err := filters.Run(rg, opts.Steps)
	if err != nil {
		// Hand the last valid state back alongside the error.
		return out, err
	}
	log.Info("filtered %s: %d steps applied", path, len(out.AppliedFilters))
	return out, nil
}
