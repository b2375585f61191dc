package container

import (
	"fmt"
	"net/http"

	"go-roi-inspector/internal/analyzer"
	"go-roi-inspector/internal/batch"
	"go-roi-inspector/internal/config"
	"go-roi-inspector/internal/decode"
	"go-roi-inspector/internal/factory"
	"go-roi-inspector/internal/logger"
	"go-roi-inspector/internal/metadata"
	"go-roi-inspector/internal/observer"
	"go-roi-inspector/internal/repository"
	"go-roi-inspector/internal/service"
	"go-roi-inspector/internal/transport"
	"go-roi-inspector/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	factory   *factory.ComponentFactory
	decoder   decode.Decoder
	analyzer  analyzer.RegionAnalyzer
	templates *factory.TemplateRouter
	runs      repository.RunRepository
	events    *observer.EventPublisher
	metrics   *observer.MetricsObserver
	service   service.MeasurementService
	handler   http.Handler
}

// NewContainer builds the dependency graph from a validated configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}

	components := factory.NewComponentFactory(
		factory.NewDecoderFactory(cfg.Decode.Command, cfg.Decode.Timeout),
		factory.NewStorageFactory(cfg.Storage.HTTPTimeout, factory.AzureCredentials{
			AccountName: cfg.Storage.Azure.AccountName,
			AccountKey:  cfg.Storage.Azure.AccountKey,
			Endpoint:    cfg.Storage.Azure.Endpoint,
		}),
	)

	decoder, err := components.DecoderFactory.CreateDecoder(decode.Kind(cfg.Decode.Decoder))
	if err != nil {
		return nil, err
	}
	templates := factory.NewTemplateRouter(components.StorageFactory, validation.NewURLValidator())

	var runs repository.RunRepository
	if cfg.Results.Database != "" {
		repo, err := repository.NewSQLiteRepository(cfg.Results.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open results database: %w", err)
		}
		runs = repo
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	an := analyzer.NewRegionAnalyzer(nil)
	resolver := metadata.NewExifResolver(nil)
	svc := service.NewMeasurementService(service.Dependencies{
		Decoder:        decoder,
		Analyzer:       an,
		Collector:      batch.NewCollector(decoder, an, resolver, events),
		Templates:      templates,
		Runs:           runs,
		Resolver:       resolver,
		Validator:      validation.NewQualityValidator(),
		DecodeDefaults: cfg.DecodeDefaults(),
		BatchDefaults:  cfg.Batch,

		PreviewMaxWidth:  cfg.Decode.PreviewMaxWidth,
		PreviewMaxHeight: cfg.Decode.PreviewMaxHeight,
	})

	return &Container{
		config:    cfg,
		factory:   components,
		decoder:   decoder,
		analyzer:  an,
		templates: templates,
		runs:      runs,
		events:    events,
		metrics:   metrics,
		service:   svc,
		handler:   transport.NewHandler(svc, cfg),
	}, nil
}

// Service returns the measurement service shared by the CLI and the API
func (c *Container) Service() service.MeasurementService {
	return c.service
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Decoder returns the configured decoder
func (c *Container) Decoder() decode.Decoder {
	return c.decoder
}

// Metrics returns batch counters collected since startup. Pending event
// deliveries are flushed first.
func (c *Container) Metrics() map[string]interface{} {
	c.events.Wait()
	return c.metrics.GetMetrics()
}

// Close flushes events and releases the analyzer and the results database.
func (c *Container) Close() error {
	c.events.Wait()
	if err := c.analyzer.Close(); err != nil {
		return err
	}
	if c.runs != nil {
		return c.runs.Close()
	}
	return nil
}
