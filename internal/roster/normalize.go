// Package roster turns uploaded student lists into canonical roster rows.
package roster

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
)

// Canonical field names.
const (
	FieldStudentName    = "studentName"
	FieldEnrollmentCode = "enrollmentCode"
	FieldClassName      = "className"
)

var (
	ErrMalformedRow = errors.New("malformed roster row")
	ErrEmptyRoster  = errors.New("roster has no data rows")
)

// MalformedRowError carries the offending input row.
type MalformedRowError struct {
	Line   int
	Row    map[string]string
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed roster row %d: %s (columns: %s)", e.Line, e.Reason, strings.Join(columnNames(e.Row), ", "))
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}

// columnSynonyms is the closed mapping of accepted header spellings. Lookup
// keys are NFC-normalized and lowercased; accented and unaccented spellings
// are both listed on purpose.
var columnSynonyms = map[string]string{
	"matrícula":       FieldEnrollmentCode,
	"matricula":       FieldEnrollmentCode,
	"código":          FieldEnrollmentCode,
	"codigo":          FieldEnrollmentCode,
	"cód":             FieldEnrollmentCode,
	"ra":              FieldEnrollmentCode,
	"enrollment":      FieldEnrollmentCode,
	"enrollment_code": FieldEnrollmentCode,
	"enrollmentcode":  FieldEnrollmentCode,

	"nome":          FieldStudentName,
	"aluno":         FieldStudentName,
	"estudante":     FieldStudentName,
	"nome do aluno": FieldStudentName,
	"nome_aluno":    FieldStudentName,
	"name":          FieldStudentName,
	"student":       FieldStudentName,
	"student_name":  FieldStudentName,
	"studentname":   FieldStudentName,

	"turma":      FieldClassName,
	"classe":     FieldClassName,
	"sala":       FieldClassName,
	"class":      FieldClassName,
	"class_name": FieldClassName,
	"classname":  FieldClassName,
}

// CanonicalColumn maps a header to its canonical field name. Unknown headers
// come back unchanged with ok=false.
func CanonicalColumn(header string) (string, bool) {
	key := strings.ToLower(norm.NFC.String(strings.TrimSpace(header)))
	if field, ok := columnSynonyms[key]; ok {
		return field, true
	}
	return header, false
}

// Normalize converts raw rows into roster rows, preserving order. It stops at
// the first row without a usable name and reports it; partial rosters are
// never returned.
func Normalize(rawRows []map[string]string) ([]models.StudentRosterRow, error) {
	if len(rawRows) == 0 {
		return nil, ErrEmptyRoster
	}

	rows := make([]models.StudentRosterRow, 0, len(rawRows))
	for i, raw := range rawRows {
		row, err := normalizeRow(raw)
		if err != nil {
			err.Line = i + 1
			return nil, err
		}
		row.Line = i + 1
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeRow(raw map[string]string) (models.StudentRosterRow, *MalformedRowError) {
	var row models.StudentRosterRow
	var hasName bool

	// iterate in a fixed order so duplicate synonyms resolve the same way
	// every time: the first non-empty value wins
	for _, header := range columnNames(raw) {
		value := strings.TrimSpace(raw[header])
		field, known := CanonicalColumn(header)
		if !known {
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[header] = value
			continue
		}

		switch field {
		case FieldStudentName:
			hasName = true
			if row.StudentName == "" {
				row.StudentName = value
			}
		case FieldEnrollmentCode:
			if row.EnrollmentCode == nil && value != "" {
				row.EnrollmentCode = &value
			}
		case FieldClassName:
			if row.ClassName == nil && value != "" {
				row.ClassName = &value
			}
		}
	}

	if !hasName {
		return row, &MalformedRowError{Row: raw, Reason: "no student name column"}
	}
	if row.StudentName == "" {
		return row, &MalformedRowError{Row: raw, Reason: "student name is empty"}
	}
	return row, nil
}

func columnNames(row map[string]string) []string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
