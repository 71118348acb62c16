// Package classify holds the fixed case-law classification taxonomy.
// A subtype is only valid in combination with its primary type.
package classify

import "strings"

// PrimaryTypes are the top-level classifications, in display order.
var PrimaryTypes = []string{"Criminal", "Civil", "Commercial"}

// Subtypes maps each primary type to its allowed subtypes.
var Subtypes = map[string][]string{
	"Criminal": {
		"498A (Cruelty/Dowry)", "Murder", "Rape", "Sexual Harassment", "Hurt",
		"138 NI Act", "Fraud", "Human Trafficking", "NDPS", "PMLA", "POCSO",
		"Constitutional", "Others",
	},
	"Civil": {
		"Property", "Rent Control", "Inheritance/Succession", "Contract",
		"Marital Divorce", "Marital Maintenance", "Marital Guardianship",
		"Constitutional", "Others",
	},
	"Commercial": {
		"Trademark", "Copyright", "Patent", "Banking", "Others",
	},
}

// NormalizePrimary matches value against the primary types
// case-insensitively and returns the canonical spelling.
func NormalizePrimary(value string) (string, bool) {
	candidate := strings.TrimSpace(value)
	for _, option := range PrimaryTypes {
		if strings.EqualFold(candidate, option) {
			return option, true
		}
	}
	return "", false
}

// NormalizeSubtype matches value against the subtypes allowed for the
// given primary type and returns the canonical spelling.
func NormalizeSubtype(primary, value string) (string, bool) {
	pool, ok := Subtypes[primary]
	if !ok {
		return "", false
	}
	candidate := strings.TrimSpace(value)
	for _, option := range pool {
		if strings.EqualFold(candidate, option) {
			return option, true
		}
	}
	return "", false
}
