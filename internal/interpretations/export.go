package interpretations

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	fieldsSheet = "Fields"
	visitsSheet = "Visits"
)

// XLSXContentType is the media type of Workbook output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var fieldHeaders = []string{
	"Key",
	"Value",
	"Value Type",
	"Critical",
	"Origin",
	"Candidate Confidence",
	"Review Adjustment",
	"Mapping Confidence",
	"Band",
	"Page",
	"Snippet",
}

var visitHeaders = []string{
	"Visit",
	"Visit Date",
	"Key",
	"Value",
}

// Workbook renders an interpretation version as an XLSX workbook with one
// sheet of fields and one sheet of the visit grouping.
func Workbook(interp *Interpretation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(visitsSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	writeRow(f, fieldsSheet, 1, toAny(fieldHeaders))
	for i, field := range interp.Payload.Fields {
		value := ""
		if field.Value != nil {
			value = *field.Value
		}
		var page any
		snippet := ""
		if field.Evidence != nil {
			page = field.Evidence.Page
			snippet = field.Evidence.Snippet
		}
		writeRow(f, fieldsSheet, i+2, []any{
			field.Key,
			value,
			string(field.ValueType),
			field.IsCritical,
			string(field.Origin),
			field.CandidateConfidence,
			field.ReviewHistoryAdjustment,
			field.MappingConfidence,
			string(field.Band),
			page,
			snippet,
		})
	}

	writeRow(f, visitsSheet, 1, toAny(visitHeaders))
	row := 2
	canon := interp.Payload.Canonical
	for _, v := range canon.Visits {
		date := v.RawDate
		if v.Date != nil {
			date = *v.Date
		}
		for _, ref := range v.Fields {
			writeRow(f, visitsSheet, row, []any{v.VisitID, date, ref.Key, ref.Value})
			row++
		}
	}
	for _, ref := range canon.Unassigned {
		writeRow(f, visitsSheet, row, []any{"unassigned", "", ref.Key, ref.Value})
		row++
	}

	_ = f.SetColWidth(fieldsSheet, "A", "A", 20)
	_ = f.SetColWidth(fieldsSheet, "B", "B", 40)
	_ = f.SetColWidth(fieldsSheet, "K", "K", 60)
	_ = f.SetColWidth(visitsSheet, "C", "D", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
