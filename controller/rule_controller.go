package controller

import (
	"net/http"

	"github.com/mkestrel/LedgerGuard/models"
	"github.com/gin-gonic/gin"
)

func (c *ReconController) AddMatchingRule(ctx *gin.Context) {
	var rule models.MatchingRule
	if err := ctx.ShouldBindJSON(&rule); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := c.service.AddMatchingRule(&rule); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, rule)
}

// GetAllMatchingRules retrieves the whole rule table
func (c *ReconController) GetAllMatchingRules(ctx *gin.Context) {
	rules, err := c.service.GetAllMatchingRules()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, rules)
}

// GetMatchingRulesByIDs retrieves matching rules by their ids
func (c *ReconController) GetMatchingRulesByIDs(ctx *gin.Context) {
	var request struct {
		IDs []string `json:"ids" binding:"required"`
	}

	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules, err := c.service.GetMatchingRulesByIDs(request.IDs)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, rules)
}
