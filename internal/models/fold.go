package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldName returns the case-insensitive key used for room and player names.
// A fresh Caser is built per call since Casers are not safe for concurrent use.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
