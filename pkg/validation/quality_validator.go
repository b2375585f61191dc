package validation

import (
	"fmt"
	"math"

	"go-roi-inspector/pkg/models"
)

// QualityThresholds defines configurable thresholds for measurement validation
type QualityThresholds struct {
	// Fractions of full scale
	SaturatedFraction    float64
	UnderexposedFraction float64

	MinSampleCount int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		SaturatedFraction:    0.98,
		UnderexposedFraction: 0.02,
		MinSampleCount:       16,
	}
}

// QualityValidator flags region measurements that are unlikely to be
// radiometrically meaningful. It never changes the measurements.
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Issue types
const (
	IssueSaturated      = "saturated"
	IssueUnderexposed   = "underexposed"
	IssueLowSampleCount = "low_sample_count"
	IssueEmptyRegion    = "empty_region"
)

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	RegionID    int     `json:"region_id"`
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// FullScale is the largest sample value for a bit depth.
func FullScale(bitDepth int) float64 {
	if bitDepth == 16 {
		return 65535
	}
	return 255
}

// ValidateRow checks one region's statistics against fullScale.
func (qv *QualityValidator) ValidateRow(row models.MeasurementRow, fullScale float64) []QualityIssue {
	if row.Empty {
		return []QualityIssue{{
			RegionID: row.ID,
			Type:     IssueEmptyRegion,
			Message:  fmt.Sprintf("Region %d lies outside the image.", row.ID),
			Severity: "warning",
		}}
	}

	var issues []QualityIssue

	if row.Samples < qv.thresholds.MinSampleCount {
		issues = append(issues, QualityIssue{
			RegionID:    row.ID,
			Type:        IssueLowSampleCount,
			Message:     fmt.Sprintf("Region %d covers only %d pixels.", row.ID, row.Samples),
			Severity:    "warning",
			ActualValue: float64(row.Samples),
			Threshold:   float64(qv.thresholds.MinSampleCount),
		})
	}

	means := row.Means()
	brightest := math.Max(means[0], math.Max(means[1], means[2]))
	if limit := qv.thresholds.SaturatedFraction * fullScale; brightest >= limit {
		issues = append(issues, QualityIssue{
			RegionID:    row.ID,
			Type:        IssueSaturated,
			Message:     fmt.Sprintf("Region %d is clipped. Reduce exposure.", row.ID),
			Severity:    "error",
			ActualValue: brightest,
			Threshold:   limit,
		})
	}

	if limit := qv.thresholds.UnderexposedFraction * fullScale; brightest <= limit {
		issues = append(issues, QualityIssue{
			RegionID:    row.ID,
			Type:        IssueUnderexposed,
			Message:     fmt.Sprintf("Region %d is too dark to measure reliably.", row.ID),
			Severity:    "warning",
			ActualValue: brightest,
			Threshold:   limit,
		})
	}

	return issues
}

// ValidateRows checks every row in order.
func (qv *QualityValidator) ValidateRows(rows []models.MeasurementRow, bitDepth int) []QualityIssue {
	var issues []QualityIssue
	scale := FullScale(bitDepth)
	for _, row := range rows {
		issues = append(issues, qv.ValidateRow(row, scale)...)
	}
	return issues
}

// ConvertIssuesToMessages converts quality issues to simple messages
func (qv *QualityValidator) ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (qv *QualityValidator) HasCriticalIssues(issues []QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
