// Package batch applies one decode configuration and one region set to a
// folder of images and assembles a single table.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go-roi-inspector/internal/analyzer"
	"go-roi-inspector/internal/decode"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/metadata"
	"go-roi-inspector/internal/observer"
	"go-roi-inspector/pkg/models"
	"go-roi-inspector/pkg/region"
)

// Result is the outcome of a batch.
type Result struct {
	Folder string
	// Images lists the images that contributed rows, in table order
	Images   []string
	Table    models.Table
	Failures []models.Failure
}

// Collector runs batches. It is safe for concurrent use when its
// collaborators are.
type Collector struct {
	decoder  decode.Decoder
	analyzer analyzer.RegionAnalyzer
	resolver metadata.TimestampResolver
	events   observer.Subject
}

// NewCollector wires a collector. A nil analyzer or resolver selects the
// default implementation; events may be nil.
func NewCollector(decoder decode.Decoder, an analyzer.RegionAnalyzer, resolver metadata.TimestampResolver, events observer.Subject) *Collector {
	if an == nil {
		an = analyzer.NewRegionAnalyzer(nil)
	}
	if resolver == nil {
		resolver = metadata.NewExifResolver(nil)
	}
	return &Collector{
		decoder:  decoder,
		analyzer: an,
		resolver: resolver,
		events:   events,
	}
}

// imageOutcome is what one image contributes. cancelled marks work that
// was abandoned because the batch was stopping.
type imageOutcome struct {
	rows      []models.MeasurementRow
	err       error
	cancelled bool
}

// Collect measures regions in every matching image of folder. Rows follow
// sorted filename order whatever the worker count. Regions are validated
// before anything is decoded.
func (c *Collector) Collect(ctx context.Context, folder string, regions []region.Region, cfg decode.Config, opts Options) (*Result, error) {
	if c.decoder == nil {
		return nil, apperrors.NewInternalError("batch collector has no decoder", nil)
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, apperrors.NewInvalidInputError("no regions to measure", nil)
	}
	if err := region.ValidateAll(regions); err != nil {
		return nil, err
	}

	paths, err := ListImages(folder, opts.Extensions)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	c.publish(ctx, observer.BatchEvent{
		EventType: observer.BatchStarted,
		Success:   true,
		Metadata: map[string]interface{}{
			"folder":  folder,
			"images":  len(paths),
			"regions": len(regions),
			"workers": opts.Workers,
			"decoder": c.decoder.Name(),
		},
	})

	var (
		outcomes []imageOutcome
		pool     *poolReport
	)
	if opts.Workers > 1 && len(paths) > 1 {
		outcomes, pool = c.runPooled(ctx, paths, regions, cfg, opts)
	} else {
		outcomes = c.runSequential(ctx, paths, regions, cfg, opts)
	}

	result, err := assemble(ctx, folder, paths, outcomes, opts)
	if err != nil {
		c.publish(ctx, observer.BatchEvent{
			EventType:      observer.BatchFailed,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
			Metadata:       map[string]interface{}{"folder": folder},
		})
		return nil, err
	}

	meta := map[string]interface{}{
		"folder":   folder,
		"rows":     result.Table.Len(),
		"failures": len(result.Failures),
	}
	if pool != nil {
		meta["pool_workers"] = pool.workers
		meta["pool_jobs"] = pool.stats.TotalJobs
		meta["pool_completed"] = pool.stats.CompletedJobs
	}
	c.publish(ctx, observer.BatchEvent{
		EventType:      observer.BatchCompleted,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       meta,
	})
	return result, nil
}

func (c *Collector) runSequential(ctx context.Context, paths []string, regions []region.Region, cfg decode.Config, opts Options) []imageOutcome {
	outcomes := make([]imageOutcome, len(paths))
	for i, path := range paths {
		if ctx.Err() != nil {
			outcomes[i] = imageOutcome{err: ctx.Err(), cancelled: true}
			continue
		}
		outcomes[i] = c.processImage(ctx, path, regions, cfg)
		if outcomes[i].err != nil && !outcomes[i].cancelled && !opts.ContinueOnError {
			// fail fast: later images are never started
			for j := i + 1; j < len(paths); j++ {
				outcomes[j] = imageOutcome{cancelled: true}
			}
			break
		}
	}
	return outcomes
}

// poolReport is the worker pool's view of a pooled run.
type poolReport struct {
	workers int
	stats   analyzer.PoolStats
}

// runPooled spreads images over an analyzer.WorkerPool. Each job writes
// only its own slot, so no locking is needed for the outcomes.
func (c *Collector) runPooled(ctx context.Context, paths []string, regions []region.Region, cfg decode.Config, opts Options) ([]imageOutcome, *poolReport) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := analyzer.NewWorkerPool(min(opts.Workers, len(paths)))
	pool.Start()
	defer pool.Close()

	outcomes := make([]imageOutcome, len(paths))
	for i, path := range paths {
		i, path := i, path
		submitted := pool.Submit(func() {
			if ctx.Err() != nil {
				outcomes[i] = imageOutcome{err: ctx.Err(), cancelled: true}
				return
			}
			outcomes[i] = c.processImage(ctx, path, regions, cfg)
			if outcomes[i].err != nil && !outcomes[i].cancelled && !opts.ContinueOnError {
				cancel()
			}
		})
		if !submitted {
			outcomes[i] = imageOutcome{cancelled: true}
		}
	}
	pool.Wait()
	return outcomes, &poolReport{workers: pool.Workers(), stats: pool.GetStats()}
}

// processImage decodes one image and measures every region. Rows are
// returned only when all regions succeeded.
func (c *Collector) processImage(ctx context.Context, path string, regions []region.Region, cfg decode.Config) imageOutcome {
	start := time.Now()
	name := filepath.Base(path)

	fail := func(err error) imageOutcome {
		if ctx.Err() != nil {
			return imageOutcome{err: err, cancelled: true}
		}
		c.publish(ctx, observer.BatchEvent{
			EventType:      observer.ImageFailed,
			Image:          name,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return imageOutcome{err: err}
	}

	decoded, err := c.decoder.Decode(ctx, path, cfg)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeDecodeFailed) {
			err = apperrors.NewDecodeFailedError(path, err)
		}
		return fail(err)
	}
	if decoded == nil || decoded.RGB == nil {
		return fail(apperrors.NewDecodeFailedError(path, errors.New("decoder returned no rgb data")))
	}

	results, err := c.analyzer.MeasureRegions(ctx, decoded.RGB, nil, regions, analyzer.DefaultOptions())
	if err != nil {
		return fail(err)
	}

	ts := c.resolver.Resolve(path)
	rows := make([]models.MeasurementRow, len(results))
	for i, res := range results {
		rows[i] = res.Row()
		rows[i].Image = name
		rows[i].Timestamp = ts
	}

	c.publish(ctx, observer.BatchEvent{
		EventType:      observer.ImageMeasured,
		Image:          name,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"rows": len(rows)},
	})
	return imageOutcome{rows: rows}
}

// assemble concatenates outcomes in path order. Without fault isolation
// the first real failure in path order is returned. With it, failures are
// listed, unless every image failed, in which case the first one is returned.
func assemble(ctx context.Context, folder string, paths []string, outcomes []imageOutcome, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancellation(err)
	}

	result := &Result{Folder: folder}
	var firstErr error
	for i, out := range outcomes {
		switch {
		case out.err == nil && !out.cancelled:
			result.Images = append(result.Images, filepath.Base(paths[i]))
			result.Table.Rows = append(result.Table.Rows, out.rows...)
		case out.cancelled:
			// abandoned after another image failed
		case !opts.ContinueOnError:
			return nil, out.err
		default:
			if firstErr == nil {
				firstErr = out.err
			}
			result.Failures = append(result.Failures, models.Failure{Path: paths[i], Error: out.err.Error()})
		}
	}

	if len(result.Images) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

func cancellation(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("batch deadline exceeded", err)
	}
	return fmt.Errorf("batch cancelled: %w", err)
}

func (c *Collector) publish(ctx context.Context, event observer.BatchEvent) {
	if c.events != nil {
		c.events.NotifyObservers(ctx, event)
	}
}
