package main

import (
	"bytes"
	"strings"
	"testing"

	"gprproc/pkg/filters"
	"gprproc/pkg/logging"
)

func chainNames(chain []filters.Step) []string {
	names := make([]string, len(chain))
	for i, s := range chain {
		names[i] = s.Name
	}
	return names
}

func TestResolveChain(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		chain, err := resolveChain(nil, false, false, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chain) != 0 {
			t.Errorf("expected empty chain, got %v", chainNames(chain))
		}
	})

	t.Run("DefaultProfile", func(t *testing.T) {
		chain, err := resolveChain(nil, true, false, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := chainNames(filters.DefaultProfile())
		got := chainNames(chain)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("TopoWinsOverDefault", func(t *testing.T) {
		chain, err := resolveChain(nil, true, true, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := chainNames(filters.TopoProfile())
		got := chainNames(chain)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("StepsAppendToProfile", func(t *testing.T) {
		chain, err := resolveChain([]string{"gain(2, 1)"}, true, false, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		base := filters.DefaultProfile()
		if len(chain) != len(base)+1 {
			t.Fatalf("expected %d steps, got %d", len(base)+1, len(chain))
		}
		last := chain[len(chain)-1]
		if last.Name != "gain" || last.Params["linear"] != 2 || last.Params["exponent"] != 1 {
			t.Errorf("expected trailing gain(linear=2, exponent=1), got %s %v", last.Name, last.Params)
		}
	})

	t.Run("BadStep", func(t *testing.T) {
		if _, err := resolveChain([]string{"no_such_filter(3)"}, false, false, ""); err == nil {
			t.Error("expected an error for an unknown filter")
		}
	})
}

func TestLogChainNoticesRawExport(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, logging.INFO)

	logChain(log, nil)
	if !strings.Contains(buf.String(), "no processing steps specified") {
		t.Errorf("expected a raw-data notice, got %q", buf.String())
	}

	buf.Reset()
	logChain(log, filters.DefaultProfile())
	out := buf.String()
	if !strings.Contains(out, "processing chain:") || !strings.Contains(out, "dewow") {
		t.Errorf("expected the chain listing, got %q", out)
	}
}
