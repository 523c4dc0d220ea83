package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"
)

var recordColumns = []string{"id", "created_at", "updated_at"}

// writeRecordsXLSX writes one row per record. Data keys become columns in
// sorted order after the record columns; nested values are written as JSON.
func writeRecordsXLSX(path, sheet string, items []record) error {
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	var dataKeys []string
	for _, item := range items {
		for k := range item.Data {
			if !slices.Contains(dataKeys, k) {
				dataKeys = append(dataKeys, k)
			}
		}
	}
	slices.Sort(dataKeys)
	headers := append(slices.Clone(recordColumns), dataKeys...)

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, item := range items {
		row := []any{item.ID, formatTime(item.CreatedAt), formatTime(item.UpdatedAt)}
		for _, k := range dataKeys {
			row = append(row, cellValue(item.Data[k]))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "C", 22); err != nil {
		return err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return v
	}
}
