package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/answer-sheet-service/internal/services"
	"github.com/SAP-F-2025/answer-sheet-service/internal/utils"
)

type HandlerManager struct {
	answerSheetHandler *AnswerSheetHandler
	healthHandler      *HealthHandler
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	maxUploadBytes int64,
	checks ...HealthCheck,
) *HandlerManager {
	return &HandlerManager{
		answerSheetHandler: NewAnswerSheetHandler(serviceManager.AnswerSheet(), logger, maxUploadBytes),
		healthHandler:      NewHealthHandler(logger, checks...),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		answerSheets := v1.Group("/answer-sheets")
		{
			// Batches
			answerSheets.POST("/batches", hm.answerSheetHandler.CreateBatch)
			answerSheets.GET("/batches", hm.answerSheetHandler.ListBatches)
			answerSheets.GET("/batches/:id", hm.answerSheetHandler.GetBatch)
			answerSheets.GET("/batches/:id/pdf", hm.answerSheetHandler.RenderBatchPDF)
			answerSheets.GET("/batches/:id/codes", hm.answerSheetHandler.ExportCodeMap)

			// Scanned sheets
			answerSheets.GET("/sheets/:code", hm.answerSheetHandler.GetSheet)
			answerSheets.PUT("/sheets/:code/answers", hm.answerSheetHandler.RecordAnswers)
		}
	}

	router.GET("/health", hm.healthHandler.Health)
}
