package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SAP-F-2025/answer-sheet-service/internal/repositories"
	"github.com/SAP-F-2025/answer-sheet-service/internal/roster"
	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheetcode"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
)

type AnswerSheetHandler struct {
	BaseHandler
	service        services.AnswerSheetService
	maxUploadBytes int64
}

func NewAnswerSheetHandler(service services.AnswerSheetService, logger utils.Logger, maxUploadBytes int64) *AnswerSheetHandler {
	return &AnswerSheetHandler{
		BaseHandler:    NewBaseHandler(logger),
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// RecordAnswersBody is the scanner's payload; the sheet code comes from the path
type RecordAnswersBody struct {
	Answers []string `json:"answers"`
}

// ===== BATCH ENDPOINTS =====

// CreateBatch imports a roster file and creates its answer sheets
// @Summary Import roster
// @Tags answer-sheets
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} services.BatchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /answer-sheets/batches [post]
func (h *AnswerSheetHandler) CreateBatch(c *gin.Context) {
	h.LogRequest(c, "Importing roster")

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	var req services.CreateBatchRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badUpload(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.badUpload(c, err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.badUpload(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.badUpload(c, err)
		return
	}

	resp, err := h.service.ImportRoster(c.Request.Context(), &req, fileHeader.Filename, data)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *AnswerSheetHandler) ListBatches(c *gin.Context) {
	filters := repositories.BatchFilters{
		Limit:     queryInt(c, "limit", 20),
		Offset:    queryInt(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if v := c.Query("school_id"); v != "" {
		filters.SchoolID = &v
	}
	if v := c.Query("exam_id"); v != "" {
		filters.ExamID = &v
	}

	resp, err := h.service.ListBatches(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AnswerSheetHandler) GetBatch(c *gin.Context) {
	id, ok := h.batchID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RenderBatchPDF streams one answer sheet per student, ordered by name.
// exam_label wins over day; neither means "Dia 1".
func (h *AnswerSheetHandler) RenderBatchPDF(c *gin.Context) {
	id, ok := h.batchID(c)
	if !ok {
		return
	}

	label := c.Query("exam_label")
	if label == "" && c.Query("day") != "" {
		day, err := strconv.Atoi(c.Query("day"))
		if err != nil || day < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid day"})
			return
		}
		label = sheet.DayLabel(day)
	}

	pdf, err := h.service.RenderBatch(c.Request.Context(), id, label)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="batch_%s.pdf"`, id))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (h *AnswerSheetHandler) ExportCodeMap(c *gin.Context) {
	id, ok := h.batchID(c)
	if !ok {
		return
	}

	file, err := h.service.ExportCodeMap(c.Request.Context(), id, c.DefaultQuery("format", services.FormatCSV))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// ===== SHEET ENDPOINTS =====

func (h *AnswerSheetHandler) GetSheet(c *gin.Context) {
	code := c.Param("code")

	student, err := h.service.LookupBySheetCode(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if student == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Answer sheet not found"})
		return
	}

	c.JSON(http.StatusOK, student)
}

func (h *AnswerSheetHandler) RecordAnswers(c *gin.Context) {
	code := c.Param("code")
	h.LogRequest(c, "Recording answers", "sheet_code", code)

	var body RecordAnswersBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	student, err := h.service.RecordAnswers(c.Request.Context(), code, body.Answers)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, student)
}

// ===== HELPERS =====

func (h *AnswerSheetHandler) batchID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid batch ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *AnswerSheetHandler) badUpload(c *gin.Context, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: "Roster file too large",
			Details: map[string]interface{}{"limit_bytes": maxErr.Limit},
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Message: "Invalid roster upload",
		Details: err.Error(),
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// ===== ERROR HANDLING =====

func (h *AnswerSheetHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var malformed *roster.MalformedRowError
	if errors.As(err, &malformed) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Malformed roster row",
			Details: map[string]interface{}{
				"line":   malformed.Line,
				"reason": malformed.Reason,
				"row":    malformed.Row,
			},
		})
		return
	}

	var batchErr *services.BatchError
	if errors.As(err, &batchErr) {
		status := http.StatusInternalServerError
		if errors.Is(err, sheetcode.ErrGenerationExhausted) {
			status = http.StatusServiceUnavailable
		}
		h.LogError(c, err, "Answer sheet batch creation failed", "batch_id", batchErr.BatchID)
		details := map[string]interface{}{
			"attempted": batchErr.Attempted,
			"error":     batchErr.Error(),
		}
		if batchErr.BatchID != uuid.Nil {
			details["batch_id"] = batchErr.BatchID
		}
		c.JSON(status, ErrorResponse{
			Message: "Answer sheet batch could not be created",
			Details: details,
		})
		return
	}

	switch {
	case errors.Is(err, roster.ErrEmptyRoster):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Roster has no students",
		})
	case errors.Is(err, services.ErrValidationFailed), errors.Is(err, services.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
		})
	case errors.Is(err, services.ErrBatchEmpty):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Batch has no students",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
