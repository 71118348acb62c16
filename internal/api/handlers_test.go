package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/cache"
	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/invoices"
	"github.com/JustJay7/case-organizer/internal/records"
	"github.com/JustJay7/case-organizer/internal/sequence"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	log, err := logger.NewLogger("error", "console")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	cfg := &config.Config{
		StorageRoot:        t.TempDir(),
		AllowedExtensions:  []string{"pdf", "doc", "docx", "txt", "rtf"},
		MaxUploadSize:      1 << 20,
		CacheSize:          100,
		CacheTTL:           time.Minute,
		SearchDefaultLimit: 50,
		SearchMaxLimit:     200,
	}

	testCache := cache.NewCache(cfg.CacheSize, cfg.CacheTTL)
	recordStore := records.NewStore(db, cfg, log)
	invoiceStore := invoices.NewStore(db, cfg, invoices.NewPDFRenderer(), sequence.NewAllocator(), log)

	router := gin.New()
	SetupRoutes(router, db, testCache, recordStore, invoiceStore, log, cfg)

	return router, db, cfg
}

func uploadRequest(t *testing.T, fields map[string]string, fileName, fileBody string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(fileBody))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/case-law", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func validUploadFields() map[string]string {
	return map[string]string{
		"petitioner":    "State of Maharashtra",
		"respondent":    "Sharma",
		"citation":      "AIR 2020 SC 1",
		"primary_type":  "Criminal",
		"case_type":     "Fraud",
		"decision_year": "2020",
		"note":          "Landmark cheating judgment",
	}
}

func TestHealthCheck(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
}

func TestFilterOptions(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/case-law/filters", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	primaries := response["primary_types"].([]interface{})
	if len(primaries) != 3 {
		t.Errorf("Expected 3 primary types, got %d", len(primaries))
	}
}

func TestUploadSearchDeleteFlow(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	// Upload
	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, validUploadFields(), "judgment.txt", "the appeal is allowed"))
	if w.Code != http.StatusCreated {
		t.Fatalf("Upload: expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var created map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &created)
	data := created["data"].(map[string]interface{})
	id := int(data["id"].(float64))
	if id == 0 {
		t.Fatal("Expected a record id")
	}

	// Duplicate upload conflicts
	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, validUploadFields(), "judgment.txt", "same again"))
	if w.Code != http.StatusConflict {
		t.Errorf("Duplicate: expected status %d, got %d", http.StatusConflict, w.Code)
	}

	// Search finds it
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/case-law/search?q=appeal&party=sharma", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Search: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var searched map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &searched)
	if searched["count"].(float64) != 1 {
		t.Errorf("Search: expected 1 result, got %v", searched["count"])
	}

	// Second identical search is served from cache
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/case-law/search?q=appeal&party=sharma", nil)
	router.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &searched)
	if searched["fromCache"] != true {
		t.Error("Expected second search to come from cache")
	}

	// Download
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/case-law/%d/download", id), nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Download: expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "the appeal is allowed" {
		t.Errorf("Download: unexpected body %q", w.Body.String())
	}

	// Delete
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", fmt.Sprintf("/api/case-law/%d", id), nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Delete: expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Gone afterwards
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", fmt.Sprintf("/api/case-law/%d", id), nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Second delete: expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestUploadValidation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	tests := []struct {
		name     string
		mutate   func(map[string]string)
		fileName string
	}{
		{"Bad year", func(f map[string]string) { f["decision_year"] = "1700" }, "judgment.txt"},
		{"Bad primary type", func(f map[string]string) { f["primary_type"] = "Tax" }, "judgment.txt"},
		{"Disallowed extension", func(f map[string]string) {}, "judgment.exe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validUploadFields()
			tt.mutate(fields)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, fields, tt.fileName, "x"))
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
			}
		})
	}
}

func TestNoteEndpoints(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, validUploadFields(), "judgment.txt", "content"))
	if w.Code != http.StatusCreated {
		t.Fatalf("Upload failed: %s", w.Body.String())
	}
	var created map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &created)
	id := int(created["data"].(map[string]interface{})["id"].(float64))

	// Update
	body, _ := json.Marshal(map[string]string{"content": `{"Note": "revised"}`})
	w = httptest.NewRecorder()
	req, _ := http.NewRequest("POST", fmt.Sprintf("/api/case-law/%d/note", id), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateNote: expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	var updated map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated["summary"] != "revised" {
		t.Errorf("Expected summary 'revised', got %v", updated["summary"])
	}

	// Read back
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/case-law/%d/note", id), nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GetNote: expected status %d, got %d", http.StatusOK, w.Code)
	}
	var note map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &note)
	if note["content"] != `{"Note": "revised"}` {
		t.Errorf("Expected raw note content, got %v", note["content"])
	}
}

func TestInvoiceEndpoints(t *testing.T) {
	router, db, cfg := setupTestRouter(t)

	// Next number before anything is generated
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/invoices/next-number", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	var suggestion map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &suggestion)
	if suggestion["invoice_number"] != "00001" {
		t.Errorf("Expected suggestion 00001, got %v", suggestion["invoice_number"])
	}

	// Generate
	payload := map[string]interface{}{
		"client_name": "Acme Corp",
		"items": []map[string]interface{}{
			{"item": "Drafting", "amount": "1000"},
		},
	}
	body, _ := json.Marshal(payload)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/invoices", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Acting-User", "42")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if w.Header().Get("X-Invoice-Number") != "00001" {
		t.Errorf("Expected X-Invoice-Number 00001, got %q", w.Header().Get("X-Invoice-Number"))
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected PDF response, got %q", ct)
	}

	var row database.Invoice
	if err := db.Where("invoice_number = ?", "00001").First(&row).Error; err != nil {
		t.Fatalf("Invoice row missing: %v", err)
	}
	if row.GeneratedBy == nil || *row.GeneratedBy != 42 {
		t.Errorf("Expected GeneratedBy 42, got %v", row.GeneratedBy)
	}
	if _, err := os.Stat(filepath.Join(cfg.StorageRoot, filepath.FromSlash(row.FilePath))); err != nil {
		t.Errorf("Invoice file missing: %v", err)
	}

	// Requesting the same number again conflicts
	payload["invoice_number"] = "00001"
	body, _ = json.Marshal(payload)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/invoices", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
}
