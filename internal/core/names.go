package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// NameKey folds a user-facing name for case-insensitive matching of
// accounts and categories.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName reports whether two names refer to the same entity.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
