package vitals

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Vitals History"

var exportHeader = []string{
	"Taken At",
	"Heart Rate (bpm)",
	"Blood Pressure (mmHg)",
	"SpO2 (%)",
	"Temperature (°F)",
	"Respiratory Rate (/min)",
	"HRV (ms)",
	"Source",
	"Quality",
}

// Export renders the patient's in-window history as an XLSX workbook,
// oldest reading first, one row per reading.
func (s *Service) Export(ctx context.Context, patientID uuid.UUID, window time.Duration) ([]byte, error) {
	history, err := s.History(ctx, patientID, window)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(history)
}

func buildWorkbook(history []*Reading) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close only runs on error paths.

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header style: %w", err)
		}
	}
	if err := f.SetColWidth(exportSheet, "A", "A", 22); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, r := range history {
		row := i + 2
		values := []interface{}{
			r.TakenAt.Format(time.RFC3339),
			floatCell(r.HeartRate),
			stringCell(r.BloodPressure),
			floatCell(r.OxygenSaturation),
			floatCell(r.Temperature),
			floatCell(r.RespiratoryRate),
			floatCell(r.HeartRateVariability),
			stringCell(r.Source),
			floatCell(r.Quality),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func floatCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stringCell(v *string) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
