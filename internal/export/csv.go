// Package export writes measurement tables as CSV.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/pkg/models"
)

// WriteTable writes the batch table with the fixed BatchColumns header.
// Empty regions produce empty numeric cells.
func WriteTable(w io.Writer, table models.Table) error {
	return writeAll(w, table.Columns(), table.Records())
}

// WriteMeasureRows writes single-image rows under MeasureColumns.
func WriteMeasureRows(w io.Writer, rows []models.MeasurementRow) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return writeAll(w, models.MeasureColumns, records)
}

// WriteRawRows writes raw plane means under RawColumns.
func WriteRawRows(w io.Writer, rows []models.RawRow) error {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return writeAll(w, models.RawColumns, records)
}

// WriteTableFile writes the table to path, replacing any existing file only
// once the whole table has been written.
func WriteTableFile(path string, table models.Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".roistat-*.csv")
	if err != nil {
		return apperrors.NewStorageError("failed to create output file", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTable(tmp, table); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewStorageError("failed to write output file", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return apperrors.NewStorageError("failed to write output file", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.NewStorageError("failed to write output file", err)
	}
	return nil
}

func writeAll(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return apperrors.NewStorageError("failed to write csv header", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return apperrors.NewStorageError("failed to write csv rows", err)
	}
	return nil
}
