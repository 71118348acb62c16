// Package records implements the case-law archive: each record is one
// folder under the storage root (judgment file plus note.json) and one
// database row, kept consistent with the full-text index.
//
// Creation is atomic from the caller's point of view: filesystem writes
// happen first, and any later failure triggers compensating removal of
// the staged folder before the error is returned.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/classify"
	"github.com/JustJay7/case-organizer/internal/config"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/extract"
	"github.com/JustJay7/case-organizer/internal/query"
	"github.com/JustJay7/case-organizer/internal/sandbox"
	"github.com/JustJay7/case-organizer/internal/storage"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

const (
	caseLawDirName = "Case Law"
	noteFileName   = "note.json"

	minDecisionYear = 1800

	// notePreviewLen caps note previews and stored note summaries
	notePreviewLen = 200
)

func maxDecisionYear() int {
	return time.Now().Year() + 1
}

// Store owns case-law records end to end: validation, folder layout,
// database row, and search index.
type Store struct {
	db   *gorm.DB
	root string
	cfg  *config.Config
	log  *logger.Logger

	// extractText is swappable in tests
	extractText func(path string) string
}

// NewStore creates a Store rooted at the configured storage directory
func NewStore(db *gorm.DB, cfg *config.Config, log *logger.Logger) *Store {
	root := cfg.StorageRoot
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Store{
		db:          db,
		root:        root,
		cfg:         cfg,
		log:         log,
		extractText: extract.Text,
	}
}

// CreateInput carries one judgment upload
type CreateInput struct {
	Petitioner   string
	Respondent   string
	Citation     string
	PrimaryType  string
	Subtype      string
	DecisionYear int
	Note         string
	FileName     string
	File         io.Reader
}

// noteDocument is the on-disk note.json layout
type noteDocument struct {
	Petitioner   string `json:"Petitioner"`
	Respondent   string `json:"Respondent"`
	Citation     string `json:"Citation"`
	DecisionYear int    `json:"Decision Year"`
	PrimaryType  string `json:"Primary Type"`
	CaseType     string `json:"Case Type"`
	Note         string `json:"Note"`
	SavedAt      string `json:"Saved At"`
}

// Create validates the input, stages the judgment folder on disk, and
// inserts the row plus its search index entry in one transaction. A
// failure after the folder exists removes the folder again.
func (s *Store) Create(ctx context.Context, in CreateInput) (*database.CaseLaw, error) {
	petitioner := query.CollapseWhitespace(in.Petitioner)
	respondent := query.CollapseWhitespace(in.Respondent)
	citation := query.CollapseWhitespace(in.Citation)
	if petitioner == "" || respondent == "" || citation == "" {
		return nil, validationf("petitioner, respondent and citation are required")
	}
	if in.DecisionYear < minDecisionYear || in.DecisionYear > maxDecisionYear() {
		return nil, validationf("decision year must be between %d and %d", minDecisionYear, maxDecisionYear())
	}
	primary, ok := classify.NormalizePrimary(in.PrimaryType)
	if !ok {
		return nil, validationf("unknown primary type %q", strings.TrimSpace(in.PrimaryType))
	}
	subtype, ok := classify.NormalizeSubtype(primary, in.Subtype)
	if !ok {
		return nil, validationf("unknown case type %q for %s", strings.TrimSpace(in.Subtype), primary)
	}
	note := strings.TrimSpace(in.Note)
	if note == "" {
		return nil, validationf("a case note is required")
	}
	ext := strings.ToLower(filepath.Ext(in.FileName))
	if ext == "" || !s.cfg.AllowedExtension(ext) {
		return nil, validationf("file type %q is not allowed", ext)
	}
	if in.File == nil {
		return nil, validationf("a judgment file is required")
	}

	// Reject duplicates before touching the filesystem. The unique index
	// still backstops this inside the transaction.
	var existing int64
	err := s.db.WithContext(ctx).Model(&database.CaseLaw{}).
		Where("petitioner = ? AND respondent = ? AND citation = ? AND primary_type = ? AND subtype = ? AND decision_year = ?",
			petitioner, respondent, citation, primary, subtype, in.DecisionYear).
		Count(&existing).Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicate
	}

	baseDir := filepath.Join(s.root, caseLawDirName,
		storage.SanitizeComponent(primary, "-"),
		storage.SanitizeComponent(subtype, "-"),
		strconv.Itoa(in.DecisionYear))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, storage.Errorf("create classification directory", err)
	}

	display := storage.SanitizeComponent(fmt.Sprintf("%s vs %s [%s]", petitioner, respondent, citation), " ")
	if display == "" {
		display = fmt.Sprintf("Case Law %d", in.DecisionYear)
	}
	caseDir := storage.EnsureUnique(filepath.Join(baseDir, display))
	if err := os.Mkdir(caseDir, 0o755); err != nil {
		return nil, storage.Errorf("create case directory", err)
	}

	target, err := storage.StageFile(caseDir, in.FileName, display+ext, in.File)
	if err != nil {
		storage.Cleanup(s.log, caseDir)
		return nil, storage.Errorf("store judgment file", err)
	}

	doc := noteDocument{
		Petitioner:   petitioner,
		Respondent:   respondent,
		Citation:     citation,
		DecisionYear: in.DecisionYear,
		PrimaryType:  primary,
		CaseType:     subtype,
		Note:         note,
		SavedAt:      time.Now().Format(time.RFC3339),
	}
	noteBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		storage.Cleanup(s.log, caseDir)
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(caseDir, noteFileName), noteBytes, 0o644); err != nil {
		storage.Cleanup(s.log, caseDir)
		return nil, storage.Errorf("write case note", err)
	}

	content := s.extractText(target)

	folderRel, err := filepath.Rel(s.root, caseDir)
	if err != nil {
		storage.Cleanup(s.log, caseDir)
		return nil, err
	}

	record := &database.CaseLaw{
		Petitioner:   petitioner,
		Respondent:   respondent,
		Citation:     citation,
		PrimaryType:  primary,
		Subtype:      subtype,
		DecisionYear: in.DecisionYear,
		FolderRel:    filepath.ToSlash(folderRel),
		FileName:     filepath.Base(target),
		NotePathRel:  filepath.ToSlash(filepath.Join(folderRel, noteFileName)),
		NoteText:     note,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return syncIndex(tx, record, content)
	})
	if err != nil {
		storage.Cleanup(s.log, caseDir)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	s.log.Info("Case law archived",
		"id", record.ID,
		"folder", record.FolderRel,
		"file", record.FileName)
	return record, nil
}

// Get returns the record with the given id
func (s *Store) Get(ctx context.Context, id uint) (*database.CaseLaw, error) {
	var record database.CaseLaw
	err := s.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Delete removes the record's folder, row and index entry. The folder
// path is sandboxed before removal; a record whose stored folder escapes
// the root is never touched on disk.
func (s *Store) Delete(ctx context.Context, id uint) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	folder, err := sandbox.Resolve(s.root, filepath.FromSlash(record.FolderRel))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(folder); err != nil {
		return storage.Errorf("remove case directory", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM case_law_fts WHERE rowid = ?`, record.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&database.CaseLaw{}, record.ID).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("Case law deleted", "id", id, "folder", record.FolderRel)
	return nil
}

// FilePath returns the sandboxed absolute path of the judgment file and
// its download name.
func (s *Store) FilePath(ctx context.Context, id uint) (string, string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	folder, err := sandbox.Resolve(s.root, filepath.FromSlash(record.FolderRel))
	if err != nil {
		return "", "", err
	}
	full := filepath.Join(folder, record.FileName)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", "", ErrNotFound
		}
		return "", "", err
	}
	return full, record.FileName, nil
}

// Note returns the raw note.json content. A missing note file yields ""
// rather than an error; the record is still valid without it.
func (s *Store) Note(ctx context.Context, id uint) (string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	notePath, err := sandbox.Resolve(s.root, filepath.FromSlash(record.NotePathRel))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(notePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// UpdateNote replaces the note file verbatim and refreshes the row's
// note summary and the index's note column. The indexed judgment text is
// carried over unchanged. Returns the stored summary.
func (s *Store) UpdateNote(ctx context.Context, id uint, content string) (string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	notePath, err := sandbox.Resolve(s.root, filepath.FromSlash(record.NotePathRel))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(notePath), 0o755); err != nil {
		return "", storage.Errorf("create note directory", err)
	}
	if err := os.WriteFile(notePath, []byte(content), 0o644); err != nil {
		return "", storage.Errorf("write case note", err)
	}

	summary := Summarize(content)

	var prior string
	if err := s.db.WithContext(ctx).Raw(`SELECT content FROM case_law_fts WHERE rowid = ?`, record.ID).Scan(&prior).Error; err != nil {
		return "", err
	}

	record.NoteText = summary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.CaseLaw{}).Where("id = ?", record.ID).
			Update("note_text", summary).Error; err != nil {
			return err
		}
		return syncIndex(tx, record, prior)
	})
	if err != nil {
		return "", err
	}

	s.log.Info("Case note updated", "id", id)
	return summary, nil
}

// Reindex rebuilds the search index from the live rows and their files
// on disk. Records whose file has gone missing are indexed with empty
// judgment text. Returns the number of records indexed.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	var all []database.CaseLaw
	if err := s.db.WithContext(ctx).Find(&all).Error; err != nil {
		return 0, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM case_law_fts`).Error; err != nil {
			return err
		}
		for i := range all {
			record := &all[i]
			var content string
			if folder, err := sandbox.Resolve(s.root, filepath.FromSlash(record.FolderRel)); err == nil {
				content = s.extractText(filepath.Join(folder, record.FileName))
			}
			if err := syncIndex(tx, record, content); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("Search index rebuilt", "records", len(all))
	return len(all), nil
}

// syncIndex makes the index row for record match the given judgment
// text. Delete-then-insert keeps the FTS rowid aligned with the row id.
func syncIndex(tx *gorm.DB, record *database.CaseLaw, content string) error {
	if err := tx.Exec(`DELETE FROM case_law_fts WHERE rowid = ?`, record.ID).Error; err != nil {
		return err
	}
	return tx.Exec(`
		INSERT INTO case_law_fts(rowid, content, petitioner, respondent, citation, note, case_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, content, record.Petitioner, record.Respondent, record.Citation, record.NoteText, record.ID).Error
}

// Summarize reduces raw note content to a short single-line summary. If
// the content is a JSON object, well-known note keys are preferred over
// the raw serialization.
func Summarize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	chosen := trimmed
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &doc); err == nil {
		for _, key := range []string{"Note", "note", "Summary", "summary", "Additional Notes", "additional_notes"} {
			if v, ok := doc[key].(string); ok && strings.TrimSpace(v) != "" {
				chosen = v
				break
			}
		}
	}
	return excerpt(query.CollapseWhitespace(chosen), notePreviewLen)
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
