// Package invoices generates invoice PDFs, assigns sequence numbers,
// and files each invoice in the invoice archive plus, optionally, an
// existing case folder.
//
// Number assignment, the filesystem writes and the database row all
// happen under one transaction; because file writes have no rollback,
// any failure after the first write unlinks what was written before the
// transaction unwinds.
package invoices

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/sandbox"
	"github.com/JustJay7/case-organizer/internal/sequence"
	"github.com/JustJay7/case-organizer/internal/storage"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

const invoiceDirName = "Invoices"

// Store owns invoice generation and filing
type Store struct {
	db       *gorm.DB
	root     string
	renderer Renderer
	alloc    *sequence.Allocator
	log      *logger.Logger

	// writeFile is swappable in tests
	writeFile func(path string, data []byte) error
}

// NewStore creates a Store rooted at the configured storage directory
func NewStore(db *gorm.DB, cfg *config.Config, renderer Renderer, alloc *sequence.Allocator, log *logger.Logger) *Store {
	root := cfg.StorageRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Store{
		db:       db,
		root:     root,
		renderer: renderer,
		alloc:    alloc,
		log:      log,
		writeFile: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
}

// SaveResult describes a filed invoice
type SaveResult struct {
	InvoiceNumber string `json:"invoice_number"`
	FileName      string `json:"file_name"`
	RelativePath  string `json:"relative_path"`
	PDF           []byte `json:"-"`
}

// SuggestNextNumber returns the number the next auto-assignment would
// produce, without reserving it.
func (s *Store) SuggestNextNumber(ctx context.Context) (string, error) {
	return s.alloc.SuggestNext(s.db.WithContext(ctx))
}

// Save renders the invoice, writes the PDF into the invoice archive
// (and a copy into the named case folder's Invoices subdirectory, when
// a case is given), and records the row. An explicitly requested number that is already taken
// yields ErrNumberConflict; with no requested number the next sequence
// number is reserved inside the same transaction as the insert.
func (s *Store) Save(ctx context.Context, p Payload, generatedBy *uint) (*SaveResult, error) {
	if err := p.Normalize(); err != nil {
		return nil, err
	}
	requested := p.InvoiceNumber

	var result *SaveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number := requested
		if number != "" {
			var taken int64
			if err := tx.Model(&database.Invoice{}).
				Where("invoice_number = ?", number).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return ErrNumberConflict
			}
		} else {
			var err error
			number, err = s.alloc.ReserveNext(tx)
			if err != nil {
				return err
			}
		}
		p.InvoiceNumber = number

		pdf, fileName, err := s.renderer.Render(p)
		if err != nil {
			return storage.Errorf("render invoice", err)
		}

		primaryDir := filepath.Join(s.root, invoiceDirName)
		if err := os.MkdirAll(primaryDir, 0o755); err != nil {
			return storage.Errorf("create invoice directory", err)
		}

		var copyDir string
		if p.CaseYear != "" || p.CaseMonth != "" || p.CaseName != "" {
			copyDir, err = s.resolveCaseDir(p)
			if err != nil {
				return err
			}
		}

		// One name, free in every destination, so the archive copy and
		// the case copy always carry the same filename.
		dirs := []string{primaryDir}
		if copyDir != "" {
			dirs = append(dirs, copyDir)
		}
		fileName = uniquePDFName(fileName, dirs...)
		primaryPath := filepath.Join(primaryDir, fileName)

		if err := s.writeFile(primaryPath, pdf); err != nil {
			return storage.Errorf("write invoice file", err)
		}

		// From here on every failure must also unlink what was written.
		written := []string{primaryPath}
		fail := func(err error) error {
			storage.RemoveFiles(s.log, written...)
			return err
		}

		if copyDir != "" {
			copyPath := filepath.Join(copyDir, fileName)
			if err := s.writeFile(copyPath, pdf); err != nil {
				return fail(storage.Errorf("write invoice copy", err))
			}
			written = append(written, copyPath)
		}

		payloadJSON, err := json.Marshal(p)
		if err != nil {
			return fail(err)
		}
		relPath, err := filepath.Rel(s.root, primaryPath)
		if err != nil {
			return fail(err)
		}

		row := &database.Invoice{
			InvoiceNumber: number,
			CaseYear:      p.CaseYear,
			CaseMonth:     p.CaseMonth,
			CaseName:      p.CaseName,
			FilePath:      filepath.ToSlash(relPath),
			PayloadJSON:   string(payloadJSON),
			GeneratedBy:   generatedBy,
		}
		if err := tx.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fail(ErrNumberConflict)
			}
			return fail(err)
		}

		if requested != "" {
			if err := s.alloc.NoteExplicitUse(tx, number); err != nil {
				return fail(err)
			}
		}

		result = &SaveResult{
			InvoiceNumber: number,
			FileName:      fileName,
			RelativePath:  filepath.ToSlash(relPath),
			PDF:           pdf,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Invoice generated",
		"number", result.InvoiceNumber,
		"file", result.RelativePath)
	return result, nil
}

// resolveCaseDir maps the payload's case folder fields onto an existing
// case directory under the storage root and returns its Invoices
// subdirectory, creating the subdirectory if needed. The case folder
// itself must already exist; the invoice flow never creates case folders.
func (s *Store) resolveCaseDir(p Payload) (string, error) {
	if p.CaseYear == "" || p.CaseMonth == "" || p.CaseName == "" {
		return "", validationf("case year, month and name must all be given for a case copy")
	}
	rel := filepath.Join(
		storage.SanitizeComponent(p.CaseYear, "-"),
		storage.SanitizeComponent(p.CaseMonth, "-"),
		storage.SanitizeComponent(p.CaseName, "-"))
	dir, err := sandbox.Resolve(s.root, rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", storage.Errorf("locate case folder", fmt.Errorf("no such case folder"))
	}
	invoiceDir := filepath.Join(dir, invoiceDirName)
	if err := os.MkdirAll(invoiceDir, 0o755); err != nil {
		return "", storage.Errorf("create case invoice directory", err)
	}
	return invoiceDir, nil
}

// uniquePDFName returns base if free in every given directory, then
// timestamped and timestamped-plus-random variants.
func uniquePDFName(base string, dirs ...string) string {
	stem := strings.TrimSuffix(base, ".pdf")
	candidates := []string{
		base,
		fmt.Sprintf("%s_%d.pdf", stem, time.Now().Unix()),
		fmt.Sprintf("%s_%d_%s.pdf", stem, time.Now().Unix(), randHex(2)),
	}
	for _, candidate := range candidates {
		if freeInAll(candidate, dirs) {
			return candidate
		}
	}
	return fmt.Sprintf("%s_%d_%s.pdf", stem, time.Now().UnixNano(), randHex(4))
}

func freeInAll(name string, dirs []string) bool {
	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			return false
		}
	}
	return true
}

func randHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}
