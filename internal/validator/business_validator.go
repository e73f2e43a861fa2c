package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/answer-sheet-service/internal/omr"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheetcode"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
	template omr.Template
}

// NewBusinessValidator creates a new business validator bound to a template
func NewBusinessValidator(template omr.Template) *BusinessValidator {
	bv := &BusinessValidator{
		validate: validator.New(),
		template: template,
	}
	bv.registerBusinessRules()
	return bv
}

// Validate validates struct tags including the business rules
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	return ToValidationErrors(bv.validate.Struct(s))
}

// ValidateCreateBatch validates a batch import request
func (bv *BusinessValidator) ValidateCreateBatch(req *CreateBatchRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.SchoolID != "" && strings.TrimSpace(req.SchoolID) == "" {
		errors = append(errors, ValidationError{
			Field:   "SchoolID",
			Message: "must not be blank",
			Rule:    "business_logic",
		})
	}
	if req.Name != "" && strings.TrimSpace(req.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "Name",
			Message: "must not be blank",
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateRecordAnswers validates scan results against the template
func (bv *BusinessValidator) ValidateRecordAnswers(req *RecordAnswersRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if max := bv.template.QuestionCount(); len(req.Answers) > max {
		errors = append(errors, ValidationError{
			Field:   "Answers",
			Message: fmt.Sprintf("has %d entries, template %s has %d questions", len(req.Answers), bv.template.Version, max),
			Value:   len(req.Answers),
			Rule:    "business_logic",
		})
	}

	return errors
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("sheet_code", func(fl validator.FieldLevel) bool {
		return sheetcode.Valid(fl.Field().String())
	})

	bv.validate.RegisterValidation("answer_option", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || bv.template.HasOption(v)
	})
}
