// Package sandbox constrains resolved filesystem paths to a configured
// root directory. Every filesystem access driven by a client-supplied
// path fragment goes through Resolve first.
package sandbox

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrPathEscape indicates a resolved path landed outside the storage root.
// The offending path is deliberately not part of the error.
var ErrPathEscape = errors.New("path escapes storage root")

// Resolve joins input against root (absolute inputs are taken as-is),
// canonicalizes the result, and returns it only if it remains inside root.
// The containment check implies a trailing separator, so a sibling
// directory whose name shares a prefix with the root is rejected.
func Resolve(root, input string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absRoot = filepath.Clean(absRoot)

	candidate := input
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(absRoot, candidate)
	}
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if abs != absRoot && !strings.HasPrefix(abs, absRoot+string(filepath.Separator)) {
		return "", ErrPathEscape
	}
	return abs, nil
}
