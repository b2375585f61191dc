package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go-roi-inspector/internal/config"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/logger"
	"go-roi-inspector/internal/service"
	"go-roi-inspector/internal/storage"
	"go-roi-inspector/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoint.
var Version = "dev"

func NewHandler(svc service.MeasurementService, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.Server.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	v1 := r.Group("/v1")
	limited := v1.Group("", rateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
	limited.POST("/measure", measureImage(svc, cfg))
	limited.POST("/batch", runBatch(svc, cfg))
	v1.GET("/runs", listRuns(svc))
	v1.GET("/runs/:id", getRun(svc))
	v1.POST("/templates/validate", validateTemplate(svc))

	return r
}

func measureImage(svc service.MeasurementService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Server.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing measure request")

		var req models.MeasureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindStatus(err), "invalid request format", err)
			return
		}

		resp, err := svc.MeasureImage(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "measurement failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"image":              resp.Image,
			"regions":            len(resp.Rows),
			"warnings":           len(resp.Warnings),
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Measurement completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func runBatch(svc service.MeasurementService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.Server.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing batch request")

		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindStatus(err), "invalid request format", err)
			return
		}

		resp, err := svc.RunBatch(ctx, req)
		if err != nil {
			respondError(c, determineStatusCode(err), "batch failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"folder":             resp.Folder,
			"images":             resp.Images,
			"rows":               len(resp.Rows),
			"failures":           len(resp.Failures),
			"run_id":             resp.RunID,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Batch completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func getRun(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, err := svc.GetRun(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to load run", err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func listRuns(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if q := c.Query("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 {
				respondError(c, http.StatusBadRequest, "invalid limit",
					apperrors.NewInvalidInputError("limit must be a positive integer", err))
				return
			}
			limit = n
		}

		runs, err := svc.ListRuns(c.Request.Context(), limit)
		if err != nil {
			respondError(c, determineStatusCode(err), "failed to list runs", err)
			return
		}
		if runs == nil {
			runs = []models.RunSummary{}
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func validateTemplate(svc service.MeasurementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := io.ReadAll(io.LimitReader(c.Request.Body, storage.MaxTemplateSize+1))
		if err != nil {
			respondError(c, http.StatusRequestEntityTooLarge, "failed to read template", err)
			return
		}
		if len(data) > storage.MaxTemplateSize {
			respondError(c, http.StatusRequestEntityTooLarge, "template too large",
				apperrors.NewInvalidInputError("template exceeds the size limit", nil))
			return
		}

		resp, err := svc.ValidateTemplate(data)
		if err != nil {
			respondError(c, determineStatusCode(err), "template rejected", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func logRequest(c *gin.Context, msg string) {
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info(msg)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// rateLimiter shares one token bucket between all clients. A non-positive
// limit disables it.
func rateLimiter(limit float64, burst int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded",
				apperrors.WithHint(errors.New("too many measurement requests"), "retry later"))
			return
		}
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// bindStatus keeps region errors and oversized bodies distinct from plain
// syntax errors.
func bindStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}
	return http.StatusBadRequest
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message + ": " + err.Error(),
		Hint:    apperrors.Hints(err),
	}
	if appErr, ok := apperrors.As(err); ok {
		resp.Type = string(appErr.Type)
		resp.Path = appErr.Path
	}
	c.AbortWithStatusJSON(code, resp)
}
