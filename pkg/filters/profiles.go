package filters

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProfile is the canonical processing chain: baseline removal,
// time-zero alignment, horizontal denoising, gain correction and a signed
// log compression for display.
func DefaultProfile() []Step {
	return []Step{
		{Name: "dewow"},
		{Name: "zero_corr_max_peak"},
		{Name: "normalize_horizontal_magnitudes"},
		{Name: "auto_gain"},
		{Name: "siglog"},
	}
}

// TopoProfile is the default profile extended with the geometry-aware
// corrections, for surveys that carry elevations.
func TopoProfile() []Step {
	return append(DefaultProfile(),
		Step{Name: "correct_antenna_separation"},
		Step{Name: "correct_topography"},
	)
}

// ProfileNames maps the selectable profile names to their chains.
func ProfileNames() map[string]func() []Step {
	return map[string]func() []Step{
		"default":           DefaultProfile,
		"default_with_topo": TopoProfile,
	}
}

// ParseSteps parses a user-specified chain. Each entry is a filter name
// with optional positional parameters, e.g. "dewow(11)" or
// "bandpass(50, 200)". Positional values bind to the filter's parameters in
// signature order; named form "average_traces(window=4)" is also accepted.
func ParseSteps(specs []string) ([]Step, error) {
	steps := make([]Step, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		name, argPart, hasArgs := strings.Cut(spec, "(")
		name = strings.TrimSpace(name)
		f, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unrecognized step: %s", name)
		}

		step := Step{Name: name}
		if hasArgs {
			argPart = strings.TrimSpace(argPart)
			if !strings.HasSuffix(argPart, ")") {
				return nil, fmt.Errorf("step %q: missing closing parenthesis", spec)
			}
			args := strings.TrimSuffix(argPart, ")")
			params, err := parseStepArgs(f, args)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", spec, err)
			}
			step.Params = params
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// parseStepArgs binds comma-separated positional or key=value arguments to
// the filter's declared parameters.
func parseStepArgs(f *Filter, args string) (Params, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}

	params := make(Params)
	for i, arg := range strings.Split(args, ",") {
		arg = strings.TrimSpace(arg)
		key, valueStr, named := strings.Cut(arg, "=")
		if !named {
			if i >= len(f.ParamOrder) {
				return nil, fmt.Errorf("filter %q takes at most %d parameters", f.Name, len(f.ParamOrder))
			}
			key, valueStr = f.ParamOrder[i], arg
		} else {
			key = strings.TrimSpace(key)
			if _, ok := f.Defaults[key]; !ok {
				return nil, fmt.Errorf("filter %q has no parameter %q", f.Name, key)
			}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q for parameter %q", valueStr, key)
		}
		params[key] = value
	}
	return params, nil
}

// profileFile is the YAML layout of an on-disk processing profile.
type profileFile struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// LoadProfileFile reads a custom profile from a YAML file:
//
//	name: bedrock
//	steps:
//	  - name: dewow
//	    params: {window: 11}
//	  - name: auto_gain
func LoadProfileFile(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing profile file: %w", err)
	}
	if len(pf.Steps) == 0 {
		return nil, fmt.Errorf("profile file %s defines no steps", path)
	}
	for _, step := range pf.Steps {
		if _, ok := Lookup(step.Name); !ok {
			return nil, fmt.Errorf("profile file %s: unrecognized step: %s", path, step.Name)
		}
	}
	return pf.Steps, nil
}
