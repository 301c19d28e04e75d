// Package export writes evaluations in spreadsheet form for clinicians who
// post-process results outside the service.
package export

import (
	"bytes"
	"fmt"

	"github.com/dellplatz/diag-backend/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName       = "Auswertung"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// headerRow is the row of the column titles; scored rows follow it.
const headerRow = 4

// Workbook renders ev as a single-sheet XLSX document with the same columns
// as the PDF report.
func Workbook(ev *model.Evaluation) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	name := ev.TestName
	if name == "" {
		name = ev.TestID
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	cells := []struct {
		cell  string
		value any
	}{
		{"A1", "Test Report " + name},
		{"A2", "Patienten ID"},
		{"B2", ev.SubjectID},
		{"C2", fmt.Sprintf("Beantwortet: %d von %d", ev.AnsweredCount, ev.QuestionCount)},
		{"A4", "Frage"},
		{"B4", "Antwort"},
		{"C4", "Score"},
	}
	for _, c := range cells {
		if err := f.SetCellValue(sheetName, c.cell, c.value); err != nil {
			return nil, err
		}
	}

	for i, row := range ev.Rows {
		r := headerRow + 1 + i
		values := []any{row.QuestionText, row.AnswerText, row.AnswerValue}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	sumRow := headerRow + 1 + len(ev.Rows)
	if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", sumRow), "SUMME"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, fmt.Sprintf("C%d", sumRow), ev.Total); err != nil {
		return nil, err
	}

	for _, rng := range [][2]string{{"A1", "A2"}, {"A4", "C4"}, {fmt.Sprintf("A%d", sumRow), fmt.Sprintf("C%d", sumRow)}} {
		if err := f.SetCellStyle(sheetName, rng[0], rng[1], bold); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(sheetName, "A", "A", 60); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "B", "B", 28); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}
