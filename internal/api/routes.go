package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/cache"
	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/invoices"
	"github.com/JustJay7/case-organizer/internal/records"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, cache cache.Cache, recordStore *records.Store, invoiceStore *invoices.Store, logger *logger.Logger, cfg *config.Config) {
	h := NewHandlers(db, recordStore, invoiceStore, cache, logger, cfg)

	api := router.Group("/api")
	{
		// Health and cache stats
		api.GET("/health", h.HealthCheck)
		api.GET("/cache/stats", h.CacheStats)

		// Case law archive
		api.POST("/case-law", h.UploadCaseLaw)
		api.GET("/case-law/search", h.SearchCaseLaw)
		api.GET("/case-law/filters", h.FilterOptions)
		api.POST("/case-law/reindex", h.ReindexCaseLaw)
		api.DELETE("/case-law/:id", h.DeleteCaseLaw)
		api.GET("/case-law/:id/download", h.DownloadCaseLaw)
		api.GET("/case-law/:id/note", h.GetNote)
		api.POST("/case-law/:id/note", h.UpdateNote)

		// Invoices
		api.GET("/invoices/next-number", h.NextInvoiceNumber)
		api.POST("/invoices", h.SaveInvoice)
	}
}
