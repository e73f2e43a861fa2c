package repositories

import "errors"

var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateSheetCode = errors.New("duplicate sheet code")
)

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateSheetCode reports whether err is a sheet-code unique violation.
func IsDuplicateSheetCode(err error) bool {
	return errors.Is(err, ErrDuplicateSheetCode)
}
