package validator

// CreateBatchRequest describes the batch a roster import creates
type CreateBatchRequest struct {
	SchoolID string `json:"school_id" form:"school_id" validate:"required,max=255"`
	ExamID   string `json:"exam_id" form:"exam_id" validate:"required,max=255"`
	Name     string `json:"name" form:"name" validate:"required,min=1,max=200"`
}

// RecordAnswersRequest carries scan results, one entry per question in
// question order. An empty entry means the question was left blank.
type RecordAnswersRequest struct {
	SheetCode string   `json:"sheet_code" validate:"required,sheet_code"`
	Answers   []string `json:"answers" validate:"required,dive,answer_option"`
}
