package invoices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/sequence"
	"github.com/JustJay7/case-organizer/internal/storage"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(p Payload) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("%PDF-fake " + p.InvoiceNumber), "Invoice_" + p.InvoiceNumber + ".pdf", nil
}

func setupInvoiceStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	log, err := logger.NewLogger("error", "console")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	cfg := &config.Config{StorageRoot: t.TempDir()}
	return NewStore(db, cfg, &fakeRenderer{}, sequence.NewAllocator(), log), db
}

func testPayload() Payload {
	return Payload{
		ClientName: "Acme Corp",
		Items: []Item{
			{Item: "Drafting", Amount: decimal.NewFromInt(1000)},
		},
	}
}

func invoiceFiles(t *testing.T, store *Store) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(store.root, invoiceDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return entries
}

func TestSaveAutoNumber(t *testing.T) {
	store, db := setupInvoiceStore(t)

	result, err := store.Save(context.Background(), testPayload(), nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if result.InvoiceNumber != "00001" {
		t.Errorf("Expected number 00001, got %q", result.InvoiceNumber)
	}
	if result.FileName != "Invoice_00001.pdf" {
		t.Errorf("Unexpected file name %q", result.FileName)
	}
	if result.RelativePath != "Invoices/Invoice_00001.pdf" {
		t.Errorf("Unexpected relative path %q", result.RelativePath)
	}

	data, err := os.ReadFile(filepath.Join(store.root, invoiceDirName, result.FileName))
	if err != nil {
		t.Fatalf("Invoice file missing: %v", err)
	}
	if string(data) != "%PDF-fake 00001" {
		t.Errorf("Invoice content mismatch: %q", string(data))
	}

	var row database.Invoice
	if err := db.Where("invoice_number = ?", "00001").First(&row).Error; err != nil {
		t.Fatalf("Invoice row missing: %v", err)
	}
	if row.PayloadJSON == "" {
		t.Error("Expected payload snapshot on the row")
	}

	second, err := store.Save(context.Background(), testPayload(), nil)
	if err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	if second.InvoiceNumber != "00002" {
		t.Errorf("Expected number 00002, got %q", second.InvoiceNumber)
	}
}

func TestSaveRequestedNumber(t *testing.T) {
	store, _ := setupInvoiceStore(t)

	p := testPayload()
	p.InvoiceNumber = "00100"
	result, err := store.Save(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if result.InvoiceNumber != "00100" {
		t.Errorf("Expected requested number kept, got %q", result.InvoiceNumber)
	}

	// The sequence must move past the explicit number
	next, err := store.SuggestNextNumber(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if next != "00101" {
		t.Errorf("Expected next suggestion 00101, got %q", next)
	}
}

func TestSaveNumberConflict(t *testing.T) {
	store, db := setupInvoiceStore(t)

	p := testPayload()
	p.InvoiceNumber = "00777"
	if _, err := store.Save(context.Background(), p, nil); err != nil {
		t.Fatal(err)
	}

	_, err := store.Save(context.Background(), p, nil)
	if !errors.Is(err, ErrNumberConflict) {
		t.Fatalf("Expected ErrNumberConflict, got %v", err)
	}

	if got := len(invoiceFiles(t, store)); got != 1 {
		t.Errorf("Expected conflicting save to leave no file, found %d", got)
	}
	var rows int64
	db.Model(&database.Invoice{}).Count(&rows)
	if rows != 1 {
		t.Errorf("Expected 1 row, got %d", rows)
	}
}

func TestSaveCaseCopy(t *testing.T) {
	store, _ := setupInvoiceStore(t)

	caseDir := filepath.Join(store.root, "2024", "March", "State vs Sharma")
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		t.Fatal(err)
	}

	p := testPayload()
	p.CaseYear = "2024"
	p.CaseMonth = "March"
	p.CaseName = "State vs Sharma"

	result, err := store.Save(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(store.root, invoiceDirName, result.FileName)); err != nil {
		t.Errorf("Primary invoice file missing: %v", err)
	}
	// The copy lands in the case folder's Invoices subdirectory
	if _, err := os.Stat(filepath.Join(caseDir, invoiceDirName, result.FileName)); err != nil {
		t.Errorf("Case copy missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(caseDir, result.FileName)); !os.IsNotExist(err) {
		t.Error("Expected no copy directly in the case folder root")
	}
}

func TestSaveCopySharesPrimaryName(t *testing.T) {
	store, _ := setupInvoiceStore(t)

	caseInvoiceDir := filepath.Join(store.root, "2024", "March", "State vs Sharma", invoiceDirName)
	if err := os.MkdirAll(caseInvoiceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A name collision in the case folder only
	if err := os.WriteFile(filepath.Join(caseInvoiceDir, "Invoice_00001.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := testPayload()
	p.CaseYear = "2024"
	p.CaseMonth = "March"
	p.CaseName = "State vs Sharma"

	result, err := store.Save(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if result.FileName == "Invoice_00001.pdf" {
		t.Error("Expected the taken name to be skipped for both copies")
	}

	// Both copies carry the same disambiguated name
	if _, err := os.Stat(filepath.Join(store.root, invoiceDirName, result.FileName)); err != nil {
		t.Errorf("Primary invoice file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(caseInvoiceDir, result.FileName)); err != nil {
		t.Errorf("Case copy missing under the shared name: %v", err)
	}
}

func TestSaveCaseFolderMissing(t *testing.T) {
	store, db := setupInvoiceStore(t)

	p := testPayload()
	p.CaseYear = "2024"
	p.CaseMonth = "March"
	p.CaseName = "No Such Case"

	_, err := store.Save(context.Background(), p, nil)
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected storage error, got %v", err)
	}

	if got := len(invoiceFiles(t, store)); got != 0 {
		t.Errorf("Expected primary file removed after failure, found %d files", got)
	}
	var rows int64
	db.Model(&database.Invoice{}).Count(&rows)
	if rows != 0 {
		t.Errorf("Expected no rows, got %d", rows)
	}
}

func TestSaveSecondaryWriteFailureCompensates(t *testing.T) {
	store, db := setupInvoiceStore(t)

	caseDir := filepath.Join(store.root, "2024", "March", "State vs Sharma")
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		t.Fatal(err)
	}

	writes := 0
	store.writeFile = func(path string, data []byte) error {
		writes++
		if writes == 2 {
			return fmt.Errorf("disk full")
		}
		return os.WriteFile(path, data, 0o644)
	}

	p := testPayload()
	p.CaseYear = "2024"
	p.CaseMonth = "March"
	p.CaseName = "State vs Sharma"

	_, err := store.Save(context.Background(), p, nil)
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected storage error, got %v", err)
	}

	if got := len(invoiceFiles(t, store)); got != 0 {
		t.Errorf("Expected primary file removed after copy failure, found %d files", got)
	}
	var rows int64
	db.Model(&database.Invoice{}).Count(&rows)
	if rows != 0 {
		t.Errorf("Expected no rows, got %d", rows)
	}

	// The rolled-back transaction must also return the reserved number
	next, err := store.SuggestNextNumber(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if next != "00001" {
		t.Errorf("Expected reservation rolled back, next suggestion is %q", next)
	}
}

func TestSaveRenderFailure(t *testing.T) {
	store, db := setupInvoiceStore(t)
	store.renderer = &fakeRenderer{err: fmt.Errorf("font missing")}

	_, err := store.Save(context.Background(), testPayload(), nil)
	var storageErr *storage.Error
	if !errors.As(err, &storageErr) {
		t.Fatalf("Expected storage error, got %v", err)
	}

	if got := len(invoiceFiles(t, store)); got != 0 {
		t.Errorf("Expected no files after render failure, found %d", got)
	}
	var rows int64
	db.Model(&database.Invoice{}).Count(&rows)
	if rows != 0 {
		t.Errorf("Expected no rows, got %d", rows)
	}
}

func TestSaveValidation(t *testing.T) {
	store, _ := setupInvoiceStore(t)

	_, err := store.Save(context.Background(), Payload{}, nil)
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestPDFRendererProducesDocument(t *testing.T) {
	p := testPayload()
	p.InvoiceNumber = "00001"
	if err := p.Normalize(); err != nil {
		t.Fatal(err)
	}

	pdf, name, err := NewPDFRenderer().Render(p)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(pdf) == 0 || string(pdf[:5]) != "%PDF-" {
		t.Error("Expected a PDF document")
	}
	if filepath.Ext(name) != ".pdf" {
		t.Errorf("Expected .pdf file name, got %q", name)
	}
}
