package handler

import (
	"net/http"

	"caradvisor/internal/model"
	"caradvisor/internal/service"

	"github.com/gin-gonic/gin"
)

// RecommendHandler runs the pipeline directly for an explicit profile,
// bypassing the questionnaire (used by the presentation adapter for
// re-runs and by batch clients)
type RecommendHandler struct {
	advisor *service.AdvisorService
}

// NewRecommendHandler creates a new recommend handler
func NewRecommendHandler(advisor *service.AdvisorService) *RecommendHandler {
	return &RecommendHandler{advisor: advisor}
}

// Recommend handles POST /api/v1/recommend
func (h *RecommendHandler) Recommend(c *gin.Context) {
	var req model.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	profile := model.Profile(req.Profile)
	rec, err := h.advisor.Recommend(c.Request.Context(), "", profile, nil)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Recommendation failed: " + err.Error()})
		return
	}

	// An empty shortlist is a normal outcome, not an error
	c.JSON(http.StatusOK, rec)
}
