package controller

import (
	"log"
	"net/http"

	service "github.com/mkestrel/LedgerGuard/service"

	"github.com/gin-gonic/gin"
)

// ReconController manages HTTP requests for the reconciliation engine.
type ReconController struct {
	service *service.ReconService
}

// NewReconController initializes the controller with the service
func NewReconController(service *service.ReconService) *ReconController {
	return &ReconController{service}
}

// ImportLedgerExtract handles the ledger extract upload request
func (c *ReconController) ImportLedgerExtract(ctx *gin.Context) {
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Failed to get file from request"})
		return
	}
	defer file.Close()

	summary, err := c.service.ImportLedgerExtract(file, header, requestUser(ctx))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Ledger extract imported successfully",
		"summary": summary,
	})
}

// GetAllTransactions returns the full transaction set for the dashboard
func (rc *ReconController) GetAllTransactions(c *gin.Context) {
	log.Println("ReconController: Fetching all transactions")

	txs, err := rc.service.GetAllTransactions()
	if err != nil {
		log.Printf("Error fetching transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to retrieve transactions",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        len(txs),
	})
}

// GetTransaction returns a single transaction by id
func (c *ReconController) GetTransaction(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Transaction ID required"})
		return
	}
	t, err := c.service.GetTransaction(id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, t)
}

// EditTransaction applies a manual workflow edit to one transaction and
// runs the edit-scope rules against it.
func (c *ReconController) EditTransaction(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Transaction ID required"})
		return
	}

	var edit service.ManualEdit
	if err := ctx.ShouldBindJSON(&edit); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid edit payload", "details": err.Error()})
		return
	}

	t, err := c.service.EditTransaction(id, edit, requestUser(ctx))
	if err != nil {
		log.Printf("[EditTransaction] Error editing transaction %s: %v", id, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":     "Transaction updated successfully",
		"transaction": t,
	})
}

// SearchTransactions runs the free-text search
func (c *ReconController) SearchTransactions(ctx *gin.Context) {
	query := ctx.Query("q")
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	results, err := c.service.SearchTransactions(query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Search completed successfully",
		"results": results,
	})
}

// requestUser attributes edits and comment lines; the desktop front end
// sends the Windows account name in this header.
func requestUser(ctx *gin.Context) string {
	if user := ctx.GetHeader("X-User"); user != "" {
		return user
	}
	return "unknown"
}
