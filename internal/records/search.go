package records

import (
	"context"
	"strings"
	"time"

	"github.com/JustJay7/case-organizer/internal/classify"
	"github.com/JustJay7/case-organizer/internal/database"
	"github.com/JustJay7/case-organizer/internal/query"
)

// Party filter modes
const (
	PartyEither     = "either"
	PartyPetitioner = "petitioner"
	PartyRespondent = "respondent"
)

// Filters narrows a search. All fields are optional; empty means
// unfiltered. Filters combine with AND.
type Filters struct {
	Text        string
	Party       string
	PartyMode   string
	Citation    string
	PrimaryType string
	Subtype     string
	Year        int
	Limit       int
}

// Summary is one search hit
type Summary struct {
	ID           uint      `json:"id"`
	Petitioner   string    `json:"petitioner"`
	Respondent   string    `json:"respondent"`
	Citation     string    `json:"citation"`
	PrimaryType  string    `json:"primary_type"`
	Subtype      string    `json:"subtype"`
	DecisionYear int       `json:"decision_year"`
	Folder       string    `json:"folder"`
	FileName     string    `json:"file_name"`
	NotePreview  string    `json:"note_preview"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Search runs a filtered query, newest decisions first. Full-text
// matching goes through the index as a subquery on rowid so metadata
// filters still apply to the matched set.
func (s *Store) Search(ctx context.Context, f Filters) ([]Summary, error) {
	db := s.db.WithContext(ctx).Model(&database.CaseLaw{})

	if raw := strings.TrimSpace(f.Text); raw != "" {
		match := query.Normalize(raw)
		if match == "" {
			return nil, validationf("search text is empty after normalization")
		}
		db = db.Where("id IN (SELECT rowid FROM case_law_fts WHERE case_law_fts MATCH ?)", match)
	}

	if party := query.CollapseWhitespace(f.Party); party != "" {
		like := "%" + strings.ToLower(party) + "%"
		mode := f.PartyMode
		if mode == "" {
			mode = PartyEither
		}
		switch mode {
		case PartyPetitioner:
			db = db.Where("LOWER(petitioner) LIKE ?", like)
		case PartyRespondent:
			db = db.Where("LOWER(respondent) LIKE ?", like)
		case PartyEither:
			db = db.Where("(LOWER(petitioner) LIKE ? OR LOWER(respondent) LIKE ?)", like, like)
		default:
			return nil, validationf("unknown party mode %q", f.PartyMode)
		}
	}

	if citation := query.CollapseWhitespace(f.Citation); citation != "" {
		db = db.Where("LOWER(citation) LIKE ?", "%"+strings.ToLower(citation)+"%")
	}

	primary := strings.TrimSpace(f.PrimaryType)
	subtype := strings.TrimSpace(f.Subtype)
	if primary != "" {
		canonical, ok := classify.NormalizePrimary(primary)
		if !ok {
			return nil, validationf("unknown primary type %q", primary)
		}
		db = db.Where("primary_type = ?", canonical)
		if subtype != "" {
			canonicalSub, ok := classify.NormalizeSubtype(canonical, subtype)
			if !ok {
				return nil, validationf("unknown case type %q for %s", subtype, canonical)
			}
			db = db.Where("subtype = ?", canonicalSub)
		}
	} else if subtype != "" {
		return nil, validationf("case type filter requires a primary type")
	}

	if f.Year != 0 {
		if f.Year < minDecisionYear || f.Year > maxDecisionYear() {
			return nil, validationf("decision year must be between %d and %d", minDecisionYear, maxDecisionYear())
		}
		db = db.Where("decision_year = ?", f.Year)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = s.cfg.SearchDefaultLimit
	}
	if limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}

	var rows []database.CaseLaw
	err := db.Order("decision_year DESC, created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}

	results := make([]Summary, 0, len(rows))
	for _, row := range rows {
		results = append(results, Summary{
			ID:           row.ID,
			Petitioner:   row.Petitioner,
			Respondent:   row.Respondent,
			Citation:     row.Citation,
			PrimaryType:  row.PrimaryType,
			Subtype:      row.Subtype,
			DecisionYear: row.DecisionYear,
			Folder:       row.FolderRel,
			FileName:     row.FileName,
			NotePreview:  excerpt(query.CollapseWhitespace(row.NoteText), notePreviewLen),
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
		})
	}
	return results, nil
}
