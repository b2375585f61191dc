package analyzer

// MeasureOptions controls how a region set is measured on one image
type MeasureOptions struct {
	// Raw Bayer plane means next to the RGB statistics
	IncludeRaw bool

	// Measure regions concurrently; results keep region order
	ParallelRegions bool
	MaxWorkers      int
}

// DefaultOptions returns default measurement options
func DefaultOptions() MeasureOptions {
	return MeasureOptions{
		IncludeRaw:      false,
		ParallelRegions: false,
		MaxWorkers:      0, // Use default CPU count
	}
}

// RawOptions returns options that also measure the sensor planes
func RawOptions() MeasureOptions {
	opts := DefaultOptions()
	opts.IncludeRaw = true
	return opts
}

// WithRaw toggles raw plane statistics
func (opts MeasureOptions) WithRaw(enabled bool) MeasureOptions {
	opts.IncludeRaw = enabled
	return opts
}

// WithParallelRegions measures regions on up to workers goroutines;
// workers <= 0 means one per CPU
func (opts MeasureOptions) WithParallelRegions(workers int) MeasureOptions {
	opts.ParallelRegions = true
	opts.MaxWorkers = workers
	return opts
}
