package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/export"
	"go-roi-inspector/pkg/models"
	"go-roi-inspector/pkg/region"

	"github.com/pterm/pterm"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatCSV, formatJSON:
		return nil
	default:
		return apperrors.NewInvalidInputError(
			fmt.Sprintf("unknown output format %q (want table, csv or json)", format), nil)
	}
}

func renderTable(w io.Writer, header []string, records [][]string) error {
	data := pterm.TableData{header}
	data = append(data, records...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMeasurement(w io.Writer, resp *models.MeasureResponse, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, resp)
	case formatCSV:
		if err := export.WriteMeasureRows(w, resp.Rows); err != nil {
			return err
		}
		if len(resp.RawRows) > 0 {
			fmt.Fprintln(w)
			return export.WriteRawRows(w, resp.RawRows)
		}
		return nil
	}

	pterm.Info.Printfln("%s  (%s)", resp.Image, resp.Metadata)
	records := make([][]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		records = append(records, row.Record())
	}
	if err := renderTable(w, resp.Columns, records); err != nil {
		return err
	}
	if len(resp.RawRows) > 0 {
		raw := make([][]string, 0, len(resp.RawRows))
		for _, row := range resp.RawRows {
			raw = append(raw, row.Record())
		}
		if err := renderTable(w, models.RawColumns, raw); err != nil {
			return err
		}
	}
	for _, warning := range resp.Warnings {
		pterm.Warning.Println(warning)
	}
	return nil
}

func printBatch(w io.Writer, resp *models.BatchResponse, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, resp)
	case formatCSV:
		return export.WriteTable(w, models.Table{Rows: resp.Rows})
	}

	records := make([][]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		records = append(records, row.BatchRecord())
	}
	if err := renderTable(w, resp.Columns, records); err != nil {
		return err
	}
	printBatchSummary(resp)
	return nil
}

// printBatchSummary goes to the terminal, never to a data stream.
func printBatchSummary(resp *models.BatchResponse) {
	pterm.Success.Printfln("%d images, %d rows in %.2fs", resp.Images, len(resp.Rows), resp.ProcessingTimeSec)
	for _, f := range resp.Failures {
		pterm.Warning.Printfln("skipped %s: %s", f.Path, f.Error)
	}
	if resp.RunID != "" {
		pterm.Info.Printfln("saved as run %s", resp.RunID)
	}
}

func printRegions(w io.Writer, regions []region.Region) error {
	records := make([][]string, 0, len(regions))
	for _, r := range regions {
		records = append(records, []string{strconv.Itoa(r.ID), string(r.Shape), r.ParamString()})
	}
	return renderTable(w, []string{"ID", "Shape Type", "Parameters"}, records)
}
