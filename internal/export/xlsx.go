// Package export writes readings and run history as xlsx workbooks and reads
// run history back.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

const (
	ReadingsSheet = "Readings"
	RunsSheet     = "Runs"
)

// ReadingsHeader is the column layout of the readings export.
var ReadingsHeader = []string{
	"ID",
	"Submitted At",
	"Date",
	"Machine",
	"Material",
	"Size / PN",
	"Expected Output",
	"Actual Output",
	"Deviation (%)",
	"Shift Start",
	"Shift End",
	"Shift Hours",
	"Remarks",
	"Submitted By",
}

// RunsHeader is the column layout of the runs export and import.
var RunsHeader = []string{
	"Run ID",
	"Machine",
	"Material",
	"Size",
	"Start",
	"End",
	"Duration (h)",
	"Remarks",
	"Submitted By",
}

// WriteReadings writes readings to w. Dates and clock times are shown in loc.
func WriteReadings(w io.Writer, readings []model.OutputReading, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([][]any, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, []any{
			r.ID,
			r.SubmittedAt.In(loc).Format("2006-01-02 15:04:05"),
			r.Date.In(loc).Format("2006-01-02"),
			r.MachineID,
			r.Material,
			r.SizePN,
			floatOrBlank(r.ExpectedOutput),
			r.ActualOutput,
			r.DeviationPct,
			clockOrBlank(r.ShiftStart, loc),
			clockOrBlank(r.ShiftEnd, loc),
			r.ShiftHours,
			r.Remarks,
			r.SubmittedBy,
		})
	}
	return writeSheet(w, ReadingsSheet, ReadingsHeader, []float64{8, 20, 12, 10, 10, 16, 16, 14, 14, 12, 12, 12, 40, 16}, rows)
}

// WriteRuns writes run history to w. Instants are RFC 3339 text in UTC so
// that ReadRuns gets back exactly what was written.
func WriteRuns(w io.Writer, runs []model.RunSession) error {
	rows := make([][]any, 0, len(runs))
	for _, r := range runs {
		end := ""
		if r.EndAt != nil {
			end = r.EndAt.UTC().Format(time.RFC3339Nano)
		}
		rows = append(rows, []any{
			r.ID,
			r.MachineID,
			r.Material,
			r.Size,
			r.StartAt.UTC().Format(time.RFC3339Nano),
			end,
			floatOrBlank(r.DurationHours),
			r.Remarks,
			r.SubmittedBy,
		})
	}
	return writeSheet(w, RunsSheet, RunsHeader, []float64{8, 10, 10, 10, 26, 26, 14, 40, 16}, rows)
}

// ReadRuns parses a runs workbook. Columns are matched by header name. Rows
// without an end are open runs and are skipped; their count is returned.
func ReadRuns(r io.Reader) ([]model.RunSession, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse workbook: %v", errs.ErrInvalidValue, err)
	}
	defer f.Close()

	sheet := RunsSheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", errs.ErrInvalidValue)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to read rows: %v", errs.ErrInvalidValue, err)
	}
	if len(rows) < 2 {
		return []model.RunSession{}, 0, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Machine", "Size", "Start", "End"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("%w: missing column %q", errs.ErrInvalidValue, required)
		}
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	runs := make([]model.RunSession, 0, len(rows)-1)
	skipped := 0
	for n, row := range rows[1:] {
		line := n + 2
		if cell(row, "Machine") == "" && cell(row, "Start") == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339Nano, cell(row, "Start"))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d: start %q", errs.ErrInvalidTime, line, cell(row, "Start"))
		}
		if cell(row, "End") == "" {
			skipped++
			continue
		}
		end, err := time.Parse(time.RFC3339Nano, cell(row, "End"))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: row %d: end %q", errs.ErrInvalidTime, line, cell(row, "End"))
		}
		run := model.RunSession{
			MachineID:   cell(row, "Machine"),
			Material:    cell(row, "Material"),
			Size:        cell(row, "Size"),
			StartAt:     start.UTC(),
			Remarks:     cell(row, "Remarks"),
			SubmittedBy: cell(row, "Submitted By"),
		}
		end = end.UTC()
		run.EndAt = &end
		if v := cell(row, "Duration (h)"); v != "" {
			d, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("%w: row %d: duration %q", errs.ErrInvalidValue, line, v)
			}
			run.DurationHours = &d
		}
		runs = append(runs, run)
	}
	return runs, skipped, nil
}

func writeSheet(w io.Writer, sheet string, header []string, widths []float64, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if i < len(widths) {
			if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for r, values := range rows {
		for c, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func floatOrBlank(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func clockOrBlank(t *time.Time, loc *time.Location) any {
	if t == nil {
		return nil
	}
	return t.In(loc).Format("15:04")
}
