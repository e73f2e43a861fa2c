package validator

import "github.com/SAP-F-2025/answer-sheet-service/internal/omr"

// Validator is the entry point handlers and services share
type Validator struct {
	business *BusinessValidator
}

// New returns a validator for the current sheet template
func New() *Validator {
	return &Validator{business: NewBusinessValidator(omr.Current)}
}

// Validate checks struct tags and returns ValidationErrors, or nil
func (v *Validator) Validate(s interface{}) error {
	if errs := v.business.Validate(s); len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}
