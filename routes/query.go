package routes

import (
	"net/http"

	"legal-assistant-platform/services"
	"legal-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

// QueryRequest is the body of a similarity search request. Threshold and
// limit are optional; zero values fall back to the configured defaults.
type QueryRequest struct {
	Query     string  `json:"query" binding:"required"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

// HandleQuery answers a similarity search over the ingested documents.
func HandleQuery(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid query payload", gin.H{"error": err.Error()})
			return
		}
		if req.Threshold < 0 || req.Threshold >= 1 {
			utils.RespondWithBadRequest(c, "Threshold must be in [0, 1)", nil)
			return
		}

		results, err := retrieval.Retrieve(c.Request.Context(), req.Query, req.Threshold, req.Limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Search failed", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"query":   req.Query,
			"count":   len(results),
			"results": results,
		})
	}
}
