package roster

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
)

// codeMapHeader matches the column names the scanning desk already uses.
var codeMapHeader = []string{"matricula", "nome", "turma", "sheet_code"}

const codeMapSheet = "codigos"

// WriteCodeMapCSV writes the sheet-code mapping as ';'-separated text.
func WriteCodeMapCSV(w io.Writer, students []*models.AnswerSheetStudent) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(codeMapHeader); err != nil {
		return fmt.Errorf("write code map header: %w", err)
	}
	for _, s := range students {
		if err := cw.Write(codeMapRecord(s)); err != nil {
			return fmt.Errorf("write code map row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCodeMapXLSX writes the same mapping as a single-sheet workbook.
func WriteCodeMapXLSX(w io.Writer, students []*models.AnswerSheetStudent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", codeMapSheet); err != nil {
		return fmt.Errorf("rename worksheet: %w", err)
	}

	if err := f.SetSheetRow(codeMapSheet, "A1", &codeMapHeader); err != nil {
		return fmt.Errorf("write code map header: %w", err)
	}
	for i, s := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		record := codeMapRecord(s)
		if err := f.SetSheetRow(codeMapSheet, cell, &record); err != nil {
			return fmt.Errorf("write code map row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func codeMapRecord(s *models.AnswerSheetStudent) []string {
	return []string{deref(s.EnrollmentCode), s.StudentName, deref(s.ClassName), s.SheetCode}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
