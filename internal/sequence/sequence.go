// Package sequence allocates strictly increasing, zero-padded invoice
// numbers backed by a persisted counter row.
//
// The counter is reconciled against the highest all-digits invoice number
// actually stored on every suggestion and reservation, so the persisted
// state drifting below reality can never cause a collision. Non-numeric
// invoice numbers (externally supplied, e.g. "INV-A1") never influence
// the counter.
package sequence

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"gorm.io/gorm"

	"github.com/JustJay7/case-organizer/internal/database"
)

const (
	counterKey = "invoice_next_number"

	// PadWidth is the fixed width of auto-assigned invoice numbers
	PadWidth = 5
)

var digitsRe = regexp.MustCompile(`\D`)

// Allocator serializes counter access. SQLite's transaction isolation does
// not by itself serialize the read-modify-write on the counter row, so the
// mutex enforces a single-writer discipline over it; this is a
// correctness-critical section, not an optimization.
type Allocator struct {
	mu sync.Mutex
}

// NewAllocator creates an Allocator
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Format zero-pads a counter value to the fixed invoice number width
func Format(value int) string {
	if value < 0 {
		value = 0
	}
	return fmt.Sprintf("%0*d", PadWidth, value)
}

// ParseNumeric extracts the numeric interpretation of a raw invoice
// number by discarding non-digit characters. Returns false when no digits
// remain.
func ParseNumeric(raw string) (int, bool) {
	digits := digitsRe.ReplaceAllString(raw, "")
	if digits == "" {
		return 0, false
	}
	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return value, true
}

// SuggestNext returns the number the next reservation would produce,
// without mutating state. Safe to call repeatedly for UI prefill.
func (a *Allocator) SuggestNext(tx *gorm.DB) (string, error) {
	next, err := a.computeNext(tx)
	if err != nil {
		return "", err
	}
	return Format(next), nil
}

// ReserveNext computes the next number, persists counter = value+1, and
// returns the formatted value. Must run inside the same transaction as
// the invoice insert so a failed insert rolls the reservation back too.
func (a *Allocator) ReserveNext(tx *gorm.DB) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.computeNext(tx)
	if err != nil {
		return "", err
	}
	if err := setCounter(tx, next+1); err != nil {
		return "", err
	}
	return Format(next), nil
}

// NoteExplicitUse advances the counter past a caller-supplied number so
// auto-assignment never collides with a manually chosen higher number.
// Numbers without digits are ignored.
func (a *Allocator) NoteExplicitUse(tx *gorm.DB, rawNumber string) error {
	used, ok := ParseNumeric(rawNumber)
	if !ok {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := getCounter(tx)
	if err != nil {
		return err
	}
	if used+1 > current {
		return setCounter(tx, used+1)
	}
	return nil
}

// computeNext is max(counter, highest stored all-digits number + 1)
func (a *Allocator) computeNext(tx *gorm.DB) (int, error) {
	counter, err := getCounter(tx)
	if err != nil {
		return 0, err
	}

	var highest int
	err = tx.Raw(`
		SELECT COALESCE(MAX(CAST(invoice_number AS INTEGER)), 0)
		FROM invoices
		WHERE invoice_number != '' AND invoice_number NOT GLOB '*[^0-9]*'
	`).Scan(&highest).Error
	if err != nil {
		return 0, err
	}

	if highest >= counter {
		counter = highest + 1
	}
	return counter, nil
}

func getCounter(tx *gorm.DB) (int, error) {
	var setting database.AppSetting
	err := tx.Where("key = ?", counterKey).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, err
	}
	value, err := strconv.Atoi(setting.Value)
	if err != nil || value < 1 {
		return 1, nil
	}
	return value, nil
}

func setCounter(tx *gorm.DB, value int) error {
	if value < 1 {
		value = 1
	}
	return tx.Exec(`
		INSERT INTO app_settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, counterKey, strconv.Itoa(value)).Error
}
