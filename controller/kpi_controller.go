package controller

import (
	"net/http"

	"github.com/mkestrel/LedgerGuard/models"
	"github.com/gin-gonic/gin"
)

// RecomputeKPIs triggers the full-set grouping recomputation
func (c *ReconController) RecomputeKPIs(ctx *gin.Context) {
	if err := c.service.RecomputeAllKPIs(); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Grouping KPIs recomputed"})
}

// RecomputeGroupKPIs recomputes the single group holding the given reference
func (c *ReconController) RecomputeGroupKPIs(ctx *gin.Context) {
	ref := ctx.Param("ref")
	if ref == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Group reference required"})
		return
	}
	if err := c.service.RecomputeGroupKPIs(ref); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Group KPIs recomputed", "ref": ref})
}

// UpsertBillingRecords refreshes the billing-record cache from the
// external billing system export
func (c *ReconController) UpsertBillingRecords(ctx *gin.Context) {
	var records []models.BillingRecord
	if err := ctx.ShouldBindJSON(&records); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := c.service.UpsertBillingRecords(records)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "upserted": count})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":  "Billing records upserted successfully",
		"upserted": count,
	})
}
