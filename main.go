package main

import (
	"log"
	"net/http"

	controller "github.com/mkestrel/LedgerGuard/controller"
	"github.com/mkestrel/LedgerGuard/initializers"
	middleware "github.com/mkestrel/LedgerGuard/middleware"
	service "github.com/mkestrel/LedgerGuard/service"

	"github.com/gin-gonic/gin"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Printf("No .env file loaded, relying on process environment: %s", err)
	}
	if err := initializers.ConnectDB(); err != nil {
		log.Fatalf("[CRITICAL] Failed to initialize database connection: %s", err)
	}
	if err := initializers.Migrate(); err != nil {
		log.Fatalf("[CRITICAL] Failed to run database migrations: %s", err)
	}
	if err := initializers.SeedRules(); err != nil {
		log.Fatalf("[CRITICAL] Failed to seed matching rules: %s", err)
	}
}

func main() {
	reconService, err := service.NewReconService(initializers.DB)
	if err != nil {
		log.Fatalf("Failed to initialize reconciliation service: %s", err)
	}

	reconController := controller.NewReconController(reconService)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	// Global rate limiter for most routes
	router.Use(middleware.GlobalRateLimiter.Limit())

	// Ledger extract imports are the expensive path
	router.POST("/import",
		middleware.ImportRateLimiter.Limit(),
		reconController.ImportLedgerExtract)

	// Billing record refresh from the external billing system
	router.POST("/billing-records",
		middleware.AdminRateLimiter.Limit(),
		reconController.UpsertBillingRecords)

	// Matching rule administration
	router.POST("/rules",
		middleware.AdminRateLimiter.Limit(),
		reconController.AddMatchingRule)
	router.GET("/rules", reconController.GetAllMatchingRules)
	router.POST("/rules/by-ids", reconController.GetMatchingRulesByIDs)

	// Healthcheck endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Transactions and workflow
	router.GET("/transactions", reconController.GetAllTransactions)
	router.GET("/transactions/:id", reconController.GetTransaction)
	router.PUT("/transactions/:id", reconController.EditTransaction)
	router.GET("/search", reconController.SearchTransactions)

	// Grouping KPIs
	router.POST("/kpi/recompute", reconController.RecomputeKPIs)
	router.POST("/kpi/recompute/:ref", reconController.RecomputeGroupKPIs)

	router.Run(":8080")
}
