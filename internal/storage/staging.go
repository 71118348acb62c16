// Package storage provides the filesystem staging discipline shared by
// the case-law and invoice creation flows: sanitized names, collision-free
// paths, staged writes, and best-effort compensating cleanup.
//
// Filesystem writes have no native rollback, so creation flows write
// first and compensate with Cleanup/RemoveFiles when a later database
// step fails. Cleanup is intentionally lossy: errors are logged, never
// escalated, because the caller is already unwinding a failure.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/case-organizer/internal/query"
	"github.com/JustJay7/case-organizer/pkg/logger"
)

var (
	illegalFSChars = regexp.MustCompile(`[\\/:*?"<>|]`)
	fragmentChars  = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// SanitizeComponent makes text safe for use as a single path component:
// illegal filesystem characters are replaced and whitespace collapsed.
func SanitizeComponent(text, replacement string) string {
	cleaned := query.CollapseWhitespace(text)
	cleaned = illegalFSChars.ReplaceAllString(cleaned, replacement)
	return query.CollapseWhitespace(cleaned)
}

// SanitizeFragment reduces text to a lowercase [a-z0-9_-] filename
// fragment, with spaces turned into dashes.
func SanitizeFragment(text string) string {
	s := strings.ReplaceAll(strings.TrimSpace(text), " ", "-")
	return strings.ToLower(fragmentChars.ReplaceAllString(s, ""))
}

// EnsureUnique returns path if nothing exists there, otherwise the first
// "<stem> (n)<ext>" sibling that is free, for the lowest unused n.
func EnsureUnique(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for counter := 1; ; counter++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, counter, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// StageFile streams r into dir under a temporary name, then atomically
// renames it to finalName (disambiguated if taken). Returns the final path.
// The temporary file is removed on failure; dir itself is left for the
// caller's compensating cleanup.
func StageFile(dir, originalName, finalName string, r io.Reader) (string, error) {
	tmpName := fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), SanitizeFragment(originalName))
	tmpPath := filepath.Join(dir, tmpName)

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to flush upload: %w", err)
	}

	target := EnsureUnique(filepath.Join(dir, finalName))
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to place upload: %w", err)
	}
	return target, nil
}

// Cleanup recursively removes a staged directory as a compensating action.
// Errors are logged and swallowed.
func Cleanup(log *logger.Logger, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Error("Compensating cleanup failed", "error", err)
	}
}

// RemoveFiles unlinks the given paths best-effort, skipping empty entries
// and already-missing files. Used to undo partial multi-path writes.
func RemoveFiles(log *logger.Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Error("Compensating file removal failed", "error", err)
		}
	}
}

// Error is a storage-kind failure: a filesystem write or remove that did
// not complete. Creation flows translate it into compensating cleanup.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf wraps err as a storage Error for operation op
func Errorf(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}
