// Command gprproc decodes, geolocates, filters, merges and exports ground
// penetrating radar data.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mdobak/go-xerrors"

	"gprproc/internal/models"
	"gprproc/pkg/batch"
	"gprproc/pkg/config"
	"gprproc/pkg/decoder"
	"gprproc/pkg/export"
	"gprproc/pkg/filters"
	"gprproc/pkg/geoloc"
	"gprproc/pkg/logging"
	"gprproc/pkg/merge"
	"gprproc/pkg/render"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var steps stringList
	filePattern := flag.String("filepath", "", "Input file or glob pattern (.rd3/.rd7/.rad/.dt1/.hd)")
	flag.Var(&steps, "steps", "Filter step, e.g. 'dewow(11)'; repeat for a chain")
	useDefault := flag.Bool("default", false, "Apply the default filter profile")
	useTopo := flag.Bool("default-with-topo", false, "Apply the default profile plus topographic correction")
	profileFile := flag.String("profile", "", "YAML file with a named filter chain")
	showDefault := flag.Bool("show-default", false, "Print the default profile and exit")
	showAllSteps := flag.Bool("show-all-steps", false, "Print every available filter and exit")
	info := flag.Bool("info", false, "Print file metadata without processing")
	targetCRS := flag.String("crs", "", "Reproject positions into this CRS, e.g. EPSG:25832")
	demPath := flag.String("dem", "", "Sample antenna elevations from this elevation model")
	velocity := flag.Float64("velocity", 0, "Override the medium velocity in m/ns")
	antennaMHz := flag.Float64("antenna-mhz", 0, "Override the antenna center frequency in MHz")
	mergeGap := flag.String("merge", "", "Merge recordings whose gap is at most this, e.g. '10 min'")
	outputDir := flag.String("output", "", "Output directory (default: beside the inputs)")
	doRender := flag.Bool("render", false, "Also write a grayscale JPEG per profile")
	trackOut := flag.Bool("track", false, "Also write the acquisition track as CSV")
	noExport := flag.Bool("no-export", false, "Process without writing containers")
	cores := flag.Int("cores", 0, "Number of files processed in parallel (default: from config)")
	quiet := flag.Bool("quiet", false, "Log warnings and errors only")
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	if *showDefault {
		printProfile("default", filters.DefaultProfile())
		printProfile("default_with_topo", filters.TopoProfile())
		return
	}
	if *showAllSteps {
		printAllSteps()
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	applyFlagOverrides(cfg, *velocity, *mergeGap, *targetCRS, *demPath, *outputDir, *cores, *quiet, *doRender)

	log := logging.Init(cfg.Output.Quiet)

	if *filePattern == "" {
		flag.Usage()
		os.Exit(1)
	}
	paths, err := expandPattern(*filePattern)
	if err != nil {
		fatal(err)
	}
	log.Info("processing %d file(s)", len(paths))

	if *info {
		if err := printInfo(paths); err != nil {
			fatal(err)
		}
		return
	}

	chain, err := resolveChain(steps, *useDefault, *useTopo, *profileFile)
	if err != nil {
		fatal(err)
	}
	logChain(log, chain)

	locator, err := buildLocator(cfg)
	if err != nil {
		fatal(err)
	}

	results := batch.Run(paths, batch.Options{
		Steps:      chain,
		Locator:    locator,
		Velocity:   cfg.Processing.MediumVelocity,
		AntennaMHz: *antennaMHz,
		Cores:      cfg.Processing.NumCores,
		FailFast:   cfg.Processing.FailFast,
	})

	var processed []*models.Radargram
	failures := 0
	for _, res := range results {
		if res.Err != nil {
			log.Error("%s: %v", res.Path, res.Err)
			failures++
			continue
		}
		processed = append(processed, res.Radargram)
	}

	if cfg.Processing.MergeGap != "" {
		threshold, err := config.ParseGapThreshold(cfg.Processing.MergeGap)
		if err != nil {
			fatal(err)
		}
		merged := merge.Merge(processed, threshold)
		processed = processed[:0]
		for _, res := range merged {
			if res.Err != nil {
				log.Error("merge: %v", res.Err)
				failures++
				continue
			}
			processed = append(processed, res.Radargram)
		}
		log.Info("merged into %d profile(s)", len(processed))
	}

	for _, rg := range processed {
		if err := writeOutputs(cfg, rg, *noExport, *trackOut); err != nil {
			log.Error("%v", err)
			failures++
		}
	}

	if failures > 0 {
		log.Error("finished with %d failure(s)", failures)
		os.Exit(1)
	}
	log.Info("done: %d profile(s)", len(processed))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "gprproc: %+v\n", xerrors.New(err))
	os.Exit(1)
}

// applyFlagOverrides layers explicit command-line values over the config.
func applyFlagOverrides(cfg *config.Config, velocity float64, mergeGap, crs, dem, outDir string, cores int, quiet, doRender bool) {
	if velocity > 0 {
		cfg.Processing.MediumVelocity = velocity
	}
	if mergeGap != "" {
		cfg.Processing.MergeGap = mergeGap
	}
	if crs != "" {
		cfg.Geolocation.TargetCRS = crs
	}
	if dem != "" {
		cfg.Geolocation.DEMPath = dem
	}
	if outDir != "" {
		cfg.Output.Dir = outDir
	}
	if cores > 0 {
		cfg.Processing.NumCores = cores
	}
	if quiet {
		cfg.Output.Quiet = true
	}
	if doRender {
		cfg.Output.RenderImages = true
	}
}

// expandPattern resolves a glob (or plain path) into a sorted file list.
func expandPattern(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(paths)
	return paths, nil
}

// resolveChain builds the filter chain from the mutually layered sources:
// explicit steps, a profile file, or one of the built-in profiles.
func resolveChain(steps []string, useDefault, useTopo bool, profileFile string) ([]filters.Step, error) {
	var chain []filters.Step
	switch {
	case useTopo:
		chain = filters.TopoProfile()
	case useDefault:
		chain = filters.DefaultProfile()
	case profileFile != "":
		loaded, err := filters.LoadProfileFile(profileFile)
		if err != nil {
			return nil, err
		}
		chain = loaded
	}

	if len(steps) > 0 {
		parsed, err := filters.ParseSteps(steps)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parsed...)
	}
	return chain, nil
}

// logChain announces the resolved chain. An empty chain is legal but easy
// to produce by accident, so it gets an explicit notice instead of a
// silent raw export.
func logChain(log *logging.Logger, chain []filters.Step) {
	if len(chain) == 0 {
		log.Info("no processing steps specified, exporting raw data")
		return
	}
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.Name
	}
	log.Info("processing chain: %s", strings.Join(names, ", "))
}

// buildLocator assembles the geolocation stage, or nil when no target CRS
// is configured.
func buildLocator(cfg *config.Config) (*geoloc.Locator, error) {
	if cfg.Geolocation.TargetCRS == "" {
		if cfg.Geolocation.DEMPath != "" {
			return nil, fmt.Errorf("-dem requires -crs so the model and the traces share a CRS")
		}
		return nil, nil
	}

	var dem *geoloc.DEM
	if cfg.Geolocation.DEMPath != "" {
		var err error
		dem, err = geoloc.LoadDEM(cfg.Geolocation.DEMPath, cfg.Geolocation.TargetCRS,
			cfg.Geolocation.DEMMaxDistance)
		if err != nil {
			return nil, err
		}
	}
	return geoloc.NewLocator(cfg.Geolocation.TargetCRS, dem), nil
}

// writeOutputs exports one processed profile: container, optional render,
// optional track.
func writeOutputs(cfg *config.Config, rg *models.Radargram, noExport, track bool) error {
	base := outputBase(cfg.Output.Dir, rg.SourceFile)

	if !noExport {
		path := base + ".rgv"
		if err := export.Write(path, rg); err != nil {
			return err
		}
		logging.L().Info("wrote %s", path)
	}
	if cfg.Output.RenderImages {
		opts := render.DefaultOptions()
		if cfg.Output.JPEGQuality > 0 {
			opts.Quality = cfg.Output.JPEGQuality
		}
		path := base + ".jpg"
		if err := render.WriteJPEG(path, rg, opts); err != nil {
			return err
		}
		logging.L().Info("wrote %s", path)
	}
	if track {
		path := base + "_track.csv"
		if err := export.WriteTrack(path, rg); err != nil {
			return err
		}
		logging.L().Info("wrote %s", path)
	}
	return nil
}

// outputBase derives the output path stem from the source file name.
func outputBase(outDir, sourceFile string) string {
	stem := strings.TrimSuffix(filepath.Base(sourceFile), filepath.Ext(sourceFile))
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(sourceFile)
	}
	return filepath.Join(dir, stem)
}

// printInfo decodes each file and prints its metadata without processing.
func printInfo(paths []string) error {
	for _, path := range paths {
		rg, err := decoder.Open(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", path)
		fmt.Printf("  instrument:         %s\n", rg.Instrument)
		fmt.Printf("  traces x samples:   %d x %d\n", rg.NumTraces(), rg.NumSamples())
		fmt.Printf("  sample interval:    %g ns (%.1f ns window)\n", rg.SampleInterval, rg.TimeWindow())
		fmt.Printf("  recorded:           %s - %s\n",
			rg.StartTime().Format(time.RFC3339), rg.EndTime().Format(time.RFC3339))
		if rg.AntennaFrequency > 0 {
			fmt.Printf("  antenna:            %g MHz, separation %g m\n",
				rg.AntennaFrequency, rg.AntennaSeparation)
		}
		if rg.Geolocated() {
			fmt.Printf("  geolocated:         yes (%s)\n", rg.CRS)
		} else {
			fmt.Printf("  geolocated:         no\n")
		}
	}
	return nil
}

func printProfile(name string, steps []filters.Step) {
	fmt.Printf("%s:\n", name)
	for _, step := range steps {
		fmt.Printf("  %s\n", step.Name)
	}
}

func printAllSteps() {
	for _, f := range filters.All() {
		fmt.Printf("%-34s %s\n", f.Name, f.Description)
		if len(f.Defaults) > 0 {
			keys := make([]string, 0, len(f.Defaults))
			for k := range f.Defaults {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("    %s = %g\n", k, f.Defaults[k])
			}
		}
	}
}
