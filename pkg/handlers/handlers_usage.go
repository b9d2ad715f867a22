package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mhartmann/staffing-recommender-go/pkg/database"
)

// RecordUsage records API usage in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, clientCount, employeeCount int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().Format("2006-01-02")

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":   gorm.Expr("request_count + ?", 1),
			"total_clients":   gorm.Expr("total_clients + ?", clientCount),
			"total_employees": gorm.Expr("total_employees + ?", employeeCount),
		}),
	}).Create(&database.APIUsage{
		KeyID:          apiKey.ID,
		Date:           today,
		RequestCount:   1,
		TotalClients:   clientCount,
		TotalEmployees: employeeCount,
	})
}

// GetMyUsage returns usage stats for the authenticated API key
func (h *Handler) GetMyUsage(c *gin.Context) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "API Key context missing"})
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	var usage []database.APIUsage
	if err := h.DB.Where("key_id = ?", apiKey.ID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch usage details"})
		return
	}

	// Calculate totals
	var totalRequests, totalClients, totalEmployees int64
	for _, u := range usage {
		totalRequests += int64(u.RequestCount)
		totalClients += int64(u.TotalClients)
		totalEmployees += int64(u.TotalEmployees)
	}

	c.JSON(http.StatusOK, gin.H{
		"key_name":      apiKey.Name,
		"rate_limit":    apiKey.RateLimit,
		"usage_history": usage,
		"totals": gin.H{
			"requests":  totalRequests,
			"clients":   totalClients,
			"employees": totalEmployees,
		},
	})
}
