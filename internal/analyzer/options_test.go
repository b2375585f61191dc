package analyzer

import (
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.IncludeRaw {
		t.Error("Expected IncludeRaw to be false by default")
	}
	if opts.ParallelRegions {
		t.Error("Expected ParallelRegions to be false by default")
	}
	if opts.MaxWorkers != 0 {
		t.Errorf("Expected MaxWorkers to be 0, got %d", opts.MaxWorkers)
	}
}

func TestRawOptions(t *testing.T) {
	opts := RawOptions()

	if !opts.IncludeRaw {
		t.Error("Expected IncludeRaw to be true for raw options")
	}
	if opts.ParallelRegions {
		t.Error("Expected raw options to stay sequential")
	}
}

func TestOptionBuilders(t *testing.T) {
	base := DefaultOptions()

	parallel := base.WithParallelRegions(3)
	if !parallel.ParallelRegions || parallel.MaxWorkers != 3 {
		t.Errorf("Expected parallel with 3 workers, got %+v", parallel)
	}
	if base.ParallelRegions {
		t.Error("Expected builders not to modify the receiver")
	}

	raw := parallel.WithRaw(true)
	if !raw.IncludeRaw || !raw.ParallelRegions {
		t.Errorf("Expected raw and parallel, got %+v", raw)
	}
}
