package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhartmann/staffing-recommender-go/pkg/cache"
)

// ValidateConstraints checks a constraint set for contradictions that would
// make every request with it infeasible, without running a solve.
func (h *Handler) ValidateConstraints(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	hc := cache.Normalize(req.HardConstraints)

	for _, p := range hc.ForcedAssignments {
		if p[0] == "" || p[1] == "" {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "forced assignment with empty id"})
			return
		}
	}
	for _, p := range hc.BannedAssignments {
		if p[0] == "" || p[1] == "" {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "banned assignment with empty id"})
			return
		}
	}

	// Two forced pairs sharing an endpoint can never both hold
	seen := make(map[string]bool)
	for _, p := range hc.ForcedAssignments {
		for _, id := range p {
			if seen[id] {
				c.JSON(http.StatusOK, gin.H{"valid": false, "error": "conflicting forced assignments share id: " + id})
				return
			}
			seen[id] = true
		}
	}

	// A pair both forced and banned is a contradiction
	bannedPairs := make(map[[2]string]bool, len(hc.BannedAssignments))
	for _, p := range hc.BannedAssignments {
		bannedPairs[p] = true
	}
	for _, p := range hc.ForcedAssignments {
		if bannedPairs[p] {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "pair is both forced and banned: " + p[0] + "/" + p[1]})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"stats": gin.H{
			"forced_assignments": len(hc.ForcedAssignments),
			"forced_employees":   len(hc.ForcedEmployees),
			"forced_clients":     len(hc.ForcedClients),
			"banned_assignments": len(hc.BannedAssignments),
		},
		"constraint_hash": cache.Hash(req.HardConstraints),
	})
}
