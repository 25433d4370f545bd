package record

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/medilocker/medilocker/internal/platform/validate"
)

const exportSheet = "Records"

var exportColumns = []struct {
	header string
	width  float64
}{
	{"Record Date", 14},
	{"Title", 32},
	{"Category", 18},
	{"Critical", 10},
	{"Physician", 22},
	{"Facility", 26},
	{"Description", 40},
	{"File Type", 18},
	{"File Size (bytes)", 16},
	{"File URL", 60},
}

func exportRow(r *MedicalRecord) []interface{} {
	critical := "No"
	if r.IsCritical {
		critical = "Yes"
	}
	return []interface{}{
		r.RecordDate.Format(validate.DateLayout), r.Title, r.Category, critical,
		r.PhysicianName, r.FacilityName, r.Description, r.FileType, r.FileSize, r.FilePath,
	}
}

func buildWorkbook(items []*MedicalRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	headers := make([]interface{}, len(exportColumns))
	for i, col := range exportColumns {
		headers[i] = col.header
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, r := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := exportRow(r)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
