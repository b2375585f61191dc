package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go-roi-inspector/internal/analyzer"
	"go-roi-inspector/internal/batch"
	"go-roi-inspector/internal/decode"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/logger"
	"go-roi-inspector/internal/metadata"
	"go-roi-inspector/internal/repository"
	"go-roi-inspector/internal/storage"
	"go-roi-inspector/internal/strategy"
	"go-roi-inspector/pkg/models"
	"go-roi-inspector/pkg/region"
	"go-roi-inspector/pkg/validation"

	"github.com/sirupsen/logrus"
)

// MeasurementService is the orchestration shared by the CLI and the HTTP API
type MeasurementService interface {
	// Single image measurement
	MeasureImage(ctx context.Context, req models.MeasureRequest) (*models.MeasureResponse, error)

	// Batch over a folder, optionally persisted
	RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResponse, error)

	// Persisted runs
	GetRun(ctx context.Context, id string) (*models.BatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)

	// Templates
	LoadTemplate(ctx context.Context, ref string) ([]region.Region, error)
	SaveTemplate(ctx context.Context, ref string, regions []region.Region) error
	ValidateTemplate(data []byte) (*models.TemplateValidationResponse, error)
}

// Dependencies are the collaborators of the service. Runs may be nil, in
// which case persistence is unavailable.
type Dependencies struct {
	Decoder   decode.Decoder
	Analyzer  analyzer.RegionAnalyzer
	Collector *batch.Collector
	Templates storage.TemplateStore
	Runs      repository.RunRepository
	Resolver  metadata.SourceResolver
	Validator *validation.QualityValidator

	// Applied when a request does not say otherwise
	DecodeDefaults decode.Settings
	BatchDefaults  batch.Options

	// Bounds of rendered previews; zero means full size
	PreviewMaxWidth  int
	PreviewMaxHeight int
}

// measurementService implements MeasurementService
type measurementService struct {
	deps Dependencies
}

// NewMeasurementService creates a new measurement service. Missing analyzer,
// resolver, validator and collector are replaced by defaults.
func NewMeasurementService(deps Dependencies) MeasurementService {
	if deps.Analyzer == nil {
		deps.Analyzer = analyzer.NewRegionAnalyzer(nil)
	}
	if deps.Resolver == nil {
		deps.Resolver = metadata.NewExifResolver(nil)
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewQualityValidator()
	}
	if deps.Collector == nil {
		deps.Collector = batch.NewCollector(deps.Decoder, deps.Analyzer, deps.Resolver, nil)
	}
	return &measurementService{deps: deps}
}

// MeasureImage decodes one image and measures the requested regions
func (s *measurementService) MeasureImage(ctx context.Context, req models.MeasureRequest) (*models.MeasureResponse, error) {
	start := time.Now()
	if s.deps.Decoder == nil {
		return nil, apperrors.NewInternalError("no decoder configured", nil)
	}

	regions, err := s.resolveRegions(ctx, req.Regions, req.Template)
	if err != nil {
		return nil, err
	}
	cfg, err := s.decodeConfig(req.Decode)
	if err != nil {
		return nil, err
	}

	decoded, err := s.deps.Decoder.Decode(ctx, req.Path, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, interrupted(req.Path, ctxErr)
		}
		if !apperrors.IsType(err, apperrors.ErrorTypeDecodeFailed) {
			err = apperrors.NewDecodeFailedError(req.Path, err)
		}
		return nil, err
	}
	if decoded == nil || decoded.RGB == nil {
		return nil, apperrors.NewDecodeFailedError(req.Path, errors.New("decoder returned no rgb data"))
	}

	var warnings []string
	raw := req.Raw
	mc := strategy.NewMeasurementContext(strategy.Select(s.deps.Analyzer, raw, len(regions)))
	if raw && decoded.Sensor == nil {
		warnings = append(warnings, fmt.Sprintf("raw plane statistics unavailable: the %s decoder returned no sensor data", s.deps.Decoder.Name()))
		raw = false
		mc.SetStrategy(strategy.Select(s.deps.Analyzer, raw, len(regions)))
	}

	results, err := mc.ExecuteMeasurement(ctx, decoded, regions)
	if err != nil {
		return nil, err
	}

	resp := &models.MeasureResponse{
		Image:    filepath.Base(req.Path),
		Metadata: metadata.Summary(req.Path),
		Columns:  append([]string(nil), models.MeasureColumns...),
		Rows:     make([]models.MeasurementRow, len(results)),
	}
	for i, res := range results {
		resp.Rows[i] = res.Row()
		if raw {
			rawRow, _ := res.RawRow()
			resp.RawRows = append(resp.RawRows, rawRow)
		}
	}

	if req.Preview {
		resp.Preview = decode.PreviewRegions(decoded.RGB, regions, s.deps.PreviewMaxWidth, s.deps.PreviewMaxHeight)
	}

	ts, source := s.deps.Resolver.ResolveWithSource(req.Path)
	resp.Timestamp = models.FormatTimestamp(ts)

	issues := s.deps.Validator.ValidateRows(resp.Rows, cfg.BitDepth)
	resp.Warnings = append(warnings, s.deps.Validator.ConvertIssuesToMessages(issues)...)
	if s.deps.Validator.HasCriticalIssues(issues) {
		logger.WithField("image", resp.Image).Warn("Measurement has clipped regions")
	}
	resp.ProcessingTimeSec = time.Since(start).Seconds()

	logger.WithFields(logrus.Fields{
		"image":            resp.Image,
		"regions":          len(regions),
		"strategy":         mc.GetCurrentStrategy(),
		"timestamp_source": source,
		"warnings":         len(resp.Warnings),
		"processing_time":  time.Since(start),
	}).Info("Image measured")
	return resp, nil
}

// RunBatch measures every matching image of a folder
func (s *measurementService) RunBatch(ctx context.Context, req models.BatchRequest) (*models.BatchResponse, error) {
	start := time.Now()
	if req.Persist && s.deps.Runs == nil {
		return nil, apperrors.WithHint(
			apperrors.NewInvalidInputError("persistence requested but no results database is configured", nil),
			"set results.database or ROISTAT_RESULTS_DATABASE")
	}

	regions, err := s.resolveRegions(ctx, req.Regions, req.Template)
	if err != nil {
		return nil, err
	}
	cfg, err := s.decodeConfig(req.Decode)
	if err != nil {
		return nil, err
	}

	opts := s.deps.BatchDefaults
	if len(req.Extensions) > 0 {
		opts = opts.WithExtensions(req.Extensions...)
	}
	if req.Workers > 0 {
		opts = opts.WithWorkers(req.Workers)
	}
	if req.ContinueOnError {
		opts = opts.WithContinueOnError(true)
	}

	result, err := s.deps.Collector.Collect(ctx, req.Folder, regions, cfg, opts)
	if err != nil {
		return nil, err
	}

	resp := &models.BatchResponse{
		Folder:   req.Folder,
		Images:   len(result.Images),
		Columns:  result.Table.Columns(),
		Rows:     result.Table.Rows,
		Failures: result.Failures,
	}

	if req.Persist {
		settings, err := json.Marshal(cfg)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to encode decode settings", err)
		}
		run := &models.BatchRun{
			Folder:   req.Folder,
			Decode:   settings,
			Images:   len(result.Images),
			Table:    result.Table,
			Failures: result.Failures,
		}
		if err := s.deps.Runs.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		resp.RunID = run.ID
	}
	resp.ProcessingTimeSec = time.Since(start).Seconds()
	return resp, nil
}

func (s *measurementService) GetRun(ctx context.Context, id string) (*models.BatchRun, error) {
	if s.deps.Runs == nil {
		return nil, apperrors.NewNotFoundError("no results database is configured", repository.ErrRepositoryUnavailable)
	}
	return s.deps.Runs.GetRun(ctx, id)
}

func (s *measurementService) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if s.deps.Runs == nil {
		return nil, apperrors.NewNotFoundError("no results database is configured", repository.ErrRepositoryUnavailable)
	}
	return s.deps.Runs.ListRuns(ctx, limit)
}

func (s *measurementService) LoadTemplate(ctx context.Context, ref string) ([]region.Region, error) {
	if s.deps.Templates == nil {
		return nil, apperrors.NewInternalError("no template store configured", nil)
	}
	return storage.LoadRegions(ctx, s.deps.Templates, ref)
}

func (s *measurementService) SaveTemplate(ctx context.Context, ref string, regions []region.Region) error {
	if s.deps.Templates == nil {
		return apperrors.NewInternalError("no template store configured", nil)
	}
	if err := region.ValidateAll(regions); err != nil {
		return err
	}
	return storage.SaveRegions(ctx, s.deps.Templates, ref, regions)
}

// ValidateTemplate parses template bytes and reports every region whose
// geometry is unusable. A template that does not parse is an error.
func (s *measurementService) ValidateTemplate(data []byte) (*models.TemplateValidationResponse, error) {
	regions, err := region.Deserialize(data)
	if err != nil {
		return nil, err
	}

	resp := &models.TemplateValidationResponse{Regions: regions}
	seen := make(map[int]bool, len(regions))
	for _, r := range regions {
		if seen[r.ID] {
			resp.Errors = append(resp.Errors, models.RegionError{ID: r.ID, Error: fmt.Sprintf("duplicate region id %d", r.ID)})
			continue
		}
		seen[r.ID] = true
		if r.ID < 1 {
			resp.Errors = append(resp.Errors, models.RegionError{ID: r.ID, Error: fmt.Sprintf("region id must be >= 1, got %d", r.ID)})
			continue
		}
		if _, err := r.Geometry(); err != nil {
			resp.Errors = append(resp.Errors, models.RegionError{ID: r.ID, Error: err.Error()})
		}
	}
	resp.Valid = len(resp.Errors) == 0
	return resp, nil
}

func (s *measurementService) resolveRegions(ctx context.Context, regions []region.Region, template string) ([]region.Region, error) {
	return batch.RegionSet{Regions: regions, Template: template}.Resolve(ctx, s.deps.Templates)
}

// interrupted reports a request that ran out of time or was cancelled while
// an image was being decoded.
func interrupted(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(fmt.Sprintf("deadline exceeded while decoding %s", path), err)
	}
	return fmt.Errorf("measurement of %s cancelled: %w", path, err)
}

// decodeConfig parses request settings, falling back to the configured
// defaults when the request carries none.
func (s *measurementService) decodeConfig(settings *decode.Settings) (decode.Config, error) {
	if settings == nil {
		return s.deps.DecodeDefaults.Config()
	}
	req := *settings
	if strings.TrimSpace(req.Demosaic) == "" {
		req.Demosaic = s.deps.DecodeDefaults.Demosaic
	}
	return req.Config()
}
