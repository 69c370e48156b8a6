package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medforge/medforge-backend/internal/modules/report"
)

type ReportsHandler struct {
	generator *report.Generator
}

func NewReportsHandler(generator *report.Generator) *ReportsHandler {
	return &ReportsHandler{generator: generator}
}

// GET /api/sweeps/:id/report
func (h *ReportsHandler) Get(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	regenerate := c.Query("regenerate") == "true"

	rep, err := h.generator.Generate(c.Request.Context(), runID, regenerate)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "report_failed", err)
		return
	}
	RespondOK(c, gin.H{"report": rep})
}
