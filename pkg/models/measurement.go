package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// TimestampLayout is how capture times appear in exported tables.
const TimestampLayout = "2006-01-02 15:04:05"

// BatchColumns is the fixed column set of a batch table, in order.
var BatchColumns = []string{
	"Image", "Timestamp", "ID", "Shape Type", "Parameters",
	"Mean R", "Mean G", "Mean B", "Std R", "Std G", "Std B",
}

// MeasureColumns is the single image table: BatchColumns without the image prefix.
var MeasureColumns = BatchColumns[2:]

// RawColumns is the raw plane table.
var RawColumns = []string{"ID", "Shape Type", "Parameters", "R", "G1", "G2", "B"}

// MeasurementRow is one region's RGB statistics. For an empty region the
// numeric fields are NaN and Empty is set. Image and Timestamp are only
// filled in batch mode.
type MeasurementRow struct {
	Image      string
	Timestamp  time.Time
	ID         int
	Shape      string
	Parameters string

	MeanR, MeanG, MeanB float64
	StdR, StdG, StdB    float64

	Samples int
	Empty   bool
}

// EmptyRow returns a row with NaN statistics.
func EmptyRow(id int, shape, params string) MeasurementRow {
	nan := math.NaN()
	return MeasurementRow{
		ID: id, Shape: shape, Parameters: params,
		MeanR: nan, MeanG: nan, MeanB: nan,
		StdR: nan, StdG: nan, StdB: nan,
		Empty: true,
	}
}

// Means returns the channel means in R, G, B order.
func (r MeasurementRow) Means() [3]float64 {
	return [3]float64{r.MeanR, r.MeanG, r.MeanB}
}

// Record formats the row for MeasureColumns.
func (r MeasurementRow) Record() []string {
	return []string{
		strconv.Itoa(r.ID), r.Shape, r.Parameters,
		FormatFloat(r.MeanR), FormatFloat(r.MeanG), FormatFloat(r.MeanB),
		FormatFloat(r.StdR), FormatFloat(r.StdG), FormatFloat(r.StdB),
	}
}

// BatchRecord formats the row for BatchColumns.
func (r MeasurementRow) BatchRecord() []string {
	return append([]string{r.Image, FormatTimestamp(r.Timestamp)}, r.Record()...)
}

type measurementRowJSON struct {
	Image      string        `json:"image,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
	ID         int           `json:"id"`
	Shape      string        `json:"shape"`
	Parameters string        `json:"parameters"`
	MeanR      NullableFloat `json:"mean_r"`
	MeanG      NullableFloat `json:"mean_g"`
	MeanB      NullableFloat `json:"mean_b"`
	StdR       NullableFloat `json:"std_r"`
	StdG       NullableFloat `json:"std_g"`
	StdB       NullableFloat `json:"std_b"`
	Samples    int           `json:"samples"`
	Empty      bool          `json:"empty,omitempty"`
}

func (r MeasurementRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(measurementRowJSON{
		Image:      r.Image,
		Timestamp:  FormatTimestamp(r.Timestamp),
		ID:         r.ID,
		Shape:      r.Shape,
		Parameters: r.Parameters,
		MeanR:      NullableFloat(r.MeanR),
		MeanG:      NullableFloat(r.MeanG),
		MeanB:      NullableFloat(r.MeanB),
		StdR:       NullableFloat(r.StdR),
		StdG:       NullableFloat(r.StdG),
		StdB:       NullableFloat(r.StdB),
		Samples:    r.Samples,
		Empty:      r.Empty,
	})
}

func (r *MeasurementRow) UnmarshalJSON(data []byte) error {
	var w measurementRowJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return err
	}
	*r = MeasurementRow{
		Image: w.Image, Timestamp: ts, ID: w.ID, Shape: w.Shape, Parameters: w.Parameters,
		MeanR: float64(w.MeanR), MeanG: float64(w.MeanG), MeanB: float64(w.MeanB),
		StdR: float64(w.StdR), StdG: float64(w.StdG), StdB: float64(w.StdB),
		Samples: w.Samples, Empty: w.Empty,
	}
	return nil
}

// RawRow holds the RGGB plane means of one region. NaN marks a plane with
// no included samples.
type RawRow struct {
	ID         int           `json:"id"`
	Shape      string        `json:"shape"`
	Parameters string        `json:"parameters"`
	R          NullableFloat `json:"r"`
	G1         NullableFloat `json:"g1"`
	G2         NullableFloat `json:"g2"`
	B          NullableFloat `json:"b"`
}

// Record formats the row for RawColumns.
func (r RawRow) Record() []string {
	return []string{
		strconv.Itoa(r.ID), r.Shape, r.Parameters,
		FormatFloat(float64(r.R)), FormatFloat(float64(r.G1)),
		FormatFloat(float64(r.G2)), FormatFloat(float64(r.B)),
	}
}

// Table is the aggregated batch output in image processing order.
type Table struct {
	Rows []MeasurementRow `json:"rows"`
}

// Columns returns a copy of BatchColumns.
func (t Table) Columns() []string {
	return append([]string(nil), BatchColumns...)
}

// Records formats every row for BatchColumns.
func (t Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.BatchRecord()
	}
	return out
}

// Images lists the Image column.
func (t Table) Images() []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Image
	}
	return out
}

// Len is the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// FormatFloat renders a statistic; NaN becomes an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTimestamp renders t with TimestampLayout, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp, in local time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(TimestampLayout, s, time.Local)
}

// NullableFloat encodes NaN and infinities as JSON null.
type NullableFloat float64

func (f NullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *NullableFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = NullableFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = NullableFloat(v)
	return nil
}
