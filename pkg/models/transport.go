package models

import (
	"image"

	"go-roi-inspector/internal/decode"
	"go-roi-inspector/pkg/region"
)

// MeasureRequest measures one image. Exactly one of Regions or Template is set.
type MeasureRequest struct {
	Path     string           `json:"path" binding:"required"`
	Regions  []region.Region  `json:"regions,omitempty"`
	Template string           `json:"template,omitempty"`
	Decode   *decode.Settings `json:"decode,omitempty"`
	Raw      bool             `json:"raw,omitempty"`

	// Preview asks for an annotated preview in MeasureResponse.Preview.
	// Only the CLI sets it.
	Preview bool `json:"-"`
}

// BatchRequest runs a batch over a folder.
type BatchRequest struct {
	Folder          string           `json:"folder" binding:"required"`
	Regions         []region.Region  `json:"regions,omitempty"`
	Template        string           `json:"template,omitempty"`
	Decode          *decode.Settings `json:"decode,omitempty"`
	Extensions      []string         `json:"extensions,omitempty"`
	Workers         int              `json:"workers,omitempty"`
	ContinueOnError bool             `json:"continue_on_error,omitempty"`
	Persist         bool             `json:"persist,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// MeasureResponse is the result of measuring one image.
type MeasureResponse struct {
	Image             string           `json:"image"`
	Timestamp         string           `json:"timestamp"`
	Metadata          string           `json:"metadata"`
	ProcessingTimeSec float64          `json:"processing_time_sec"`
	Columns           []string         `json:"columns"`
	Rows              []MeasurementRow `json:"rows"`
	RawRows           []RawRow         `json:"raw_rows,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
	Preview           *image.RGBA      `json:"-"`
}

// BatchResponse is the aggregated result of a batch.
type BatchResponse struct {
	RunID             string           `json:"run_id,omitempty"`
	Folder            string           `json:"folder"`
	Images            int              `json:"images"`
	ProcessingTimeSec float64          `json:"processing_time_sec"`
	Columns           []string         `json:"columns"`
	Rows              []MeasurementRow `json:"rows"`
	Failures          []Failure        `json:"failures,omitempty"`
}

// RegionError is a geometry problem found while validating a template.
type RegionError struct {
	ID    int    `json:"id"`
	Error string `json:"error"`
}

// TemplateValidationResponse lists parsed regions and per-region problems.
type TemplateValidationResponse struct {
	Valid   bool            `json:"valid"`
	Regions []region.Region `json:"regions"`
	Errors  []RegionError   `json:"errors,omitempty"`
}
