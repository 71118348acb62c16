package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/cache"
	"github.com/JustJay7/case-organizer/internal/classify"
	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/invoices"
	"github.com/JustJay7/case-organizer/internal/records"
	"github.com/JustJay7/case-organizer/internal/sandbox"
	"github.com/JustJay7/case-organizer/internal/storage"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	db       *gorm.DB
	records  *records.Store
	invoices *invoices.Store
	cache    cache.Cache
	logger   *logger.Logger
	cfg      *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, recordStore *records.Store, invoiceStore *invoices.Store, cache cache.Cache, logger *logger.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		db:       db,
		records:  recordStore,
		invoices: invoiceStore,
		cache:    cache,
		logger:   logger,
		cfg:      cfg,
	}
}

// writeError maps domain errors onto HTTP responses. Path escapes are
// reported as not-found so the response never confirms anything about
// paths outside the storage root.
func (h *Handlers) writeError(c *gin.Context, err error) {
	var recordsInvalid *records.ValidationError
	var invoicesInvalid *invoices.ValidationError
	var storageErr *storage.Error

	switch {
	case errors.As(err, &recordsInvalid), errors.As(err, &invoicesInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, records.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "case law record already exists"})
	case errors.Is(err, invoices.ErrNumberConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "invoice number already exists"})
	case errors.Is(err, records.ErrNotFound), errors.Is(err, sandbox.ErrPathEscape):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "record not found"})
	case errors.As(err, &storageErr):
		h.logger.Error("Storage failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "storage failure"})
	default:
		h.logger.Error("Unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	var count int64
	dbHealthy := h.db.Model(&database.CaseLaw{}).Count(&count).Error == nil

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": dbHealthy,
		"cache":    h.cache.Stats(),
		"time":     time.Now().Unix(),
	})
}

// CacheStats returns cache statistics
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.cache.Stats(),
	})
}

// FilterOptions returns the classification taxonomy for building
// search and upload forms.
func (h *Handlers) FilterOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"primary_types": classify.PrimaryTypes,
		"case_types":    classify.Subtypes,
	})
}

// UploadCaseLaw archives a judgment from a multipart form
func (h *Handlers) UploadCaseLaw(c *gin.Context) {
	var req struct {
		Petitioner   string `form:"petitioner" binding:"required"`
		Respondent   string `form:"respondent" binding:"required"`
		Citation     string `form:"citation" binding:"required"`
		PrimaryType  string `form:"primary_type" binding:"required"`
		CaseType     string `form:"case_type" binding:"required"`
		DecisionYear int    `form:"decision_year" binding:"required"`
		Note         string `form:"note" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid form data: " + err.Error()})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A judgment file is required"})
		return
	}
	if fileHeader.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "File exceeds the upload size limit"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer file.Close()

	record, err := h.records.Create(c.Request.Context(), records.CreateInput{
		Petitioner:   req.Petitioner,
		Respondent:   req.Respondent,
		Citation:     req.Citation,
		PrimaryType:  req.PrimaryType,
		Subtype:      req.CaseType,
		DecisionYear: req.DecisionYear,
		Note:         req.Note,
		FileName:     fileHeader.Filename,
		File:         file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.cache.Clear()
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": record})
}

// SearchCaseLaw runs a filtered full-text search over the archive
func (h *Handlers) SearchCaseLaw(c *gin.Context) {
	year, _ := strconv.Atoi(c.DefaultQuery("year", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	filters := records.Filters{
		Text:        c.Query("q"),
		Party:       c.Query("party"),
		PartyMode:   c.Query("party_mode"),
		Citation:    c.Query("citation"),
		PrimaryType: c.Query("primary_type"),
		Subtype:     c.Query("case_type"),
		Year:        year,
		Limit:       limit,
	}

	cacheKey := cache.GenerateCacheKey(filters)
	if cached, found := h.cache.Get(cacheKey); found {
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"count":     len(cached),
			"data":      cached,
			"fromCache": true,
		})
		return
	}

	results, err := h.records.Search(c.Request.Context(), filters)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.cache.Set(cacheKey, results)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(results),
		"data":      results,
		"fromCache": false,
	})
}

// DeleteCaseLaw removes a record, its folder and its index entry
func (h *Handlers) DeleteCaseLaw(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DownloadCaseLaw streams the archived judgment file
func (h *Handlers) DownloadCaseLaw(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	path, name, err := h.records.FilePath(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.FileAttachment(path, name)
}

// GetNote returns the raw note content for a record
func (h *Handlers) GetNote(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	content, err := h.records.Note(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "content": content})
}

// UpdateNote replaces the note content for a record
func (h *Handlers) UpdateNote(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}

	summary, err := h.records.UpdateNote(c.Request.Context(), id, req.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// ReindexCaseLaw rebuilds the search index from disk
func (h *Handlers) ReindexCaseLaw(c *gin.Context) {
	count, err := h.records.Reindex(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "records": count})
}

// NextInvoiceNumber returns the number the next auto-assignment would use
func (h *Handlers) NextInvoiceNumber(c *gin.Context) {
	number, err := h.invoices.SuggestNextNumber(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "invoice_number": number})
}

// SaveInvoice generates an invoice PDF and returns it as an attachment.
// The assigned number and archive path travel in response headers so the
// body can carry the document itself.
func (h *Handlers) SaveInvoice(c *gin.Context) {
	var payload invoices.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: " + err.Error()})
		return
	}

	var generatedBy *uint
	if raw := c.GetHeader("X-Acting-User"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			uid := uint(id)
			generatedBy = &uid
		}
	}

	result, err := h.invoices.Save(c.Request.Context(), payload, generatedBy)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("X-Invoice-Number", result.InvoiceNumber)
	c.Header("X-Invoice-Path", result.RelativePath)
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

func (h *Handlers) recordID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid record ID"})
		return 0, false
	}
	return uint(id), true
}
