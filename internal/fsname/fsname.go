// Package fsname maps free-text book metadata to filesystem-safe name fragments.
//
// All functions are pure and total: any input, including the empty string,
// yields a non-empty name.
package fsname

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sentinel names returned when sanitization leaves nothing usable.
const (
	UnnamedAuthor = "unnamed"
	UnnamedSeries = "unnamed"
	Untitled      = "untitled"
)

// AnthologyLabel is the directory name used for the multi-author placeholder "AA.VV.".
const AnthologyLabel = "AAVV"

var (
	// Characters rejected by at least one common filesystem.
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// base applies the policy shared by every fragment kind.
func base(s string) string {
	s = norm.NFC.String(s)
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	// Windows refuses names ending in a dot.
	return strings.TrimSpace(strings.TrimRight(s, "."))
}

func isAnthology(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "AA.VV.")
}

// cleanAuthor returns the sanitized author or "" when nothing is left.
func cleanAuthor(s string) string {
	if isAnthology(s) {
		return AnthologyLabel
	}
	s = strings.NewReplacer("'", "", "’", "", ".", " ").Replace(s)
	return base(s)
}

// Author sanitizes an author name: "J. Doe" becomes "J Doe", "d'Aquino" becomes "dAquino".
func Author(s string) string {
	if out := cleanAuthor(s); out != "" {
		return out
	}
	return UnnamedAuthor
}

// AuthorValid reports whether s sanitizes to a real name rather than the sentinel.
func AuthorValid(s string) bool {
	return cleanAuthor(s) != ""
}

// Title sanitizes a book title.
func Title(s string) string {
	if out := base(s); out != "" {
		return out
	}
	return Untitled
}

// Series sanitizes a series name.
func Series(s string) string {
	if out := base(s); out != "" {
		return out
	}
	return UnnamedSeries
}

// PlainFilename reports whether name is a single path element, so that it
// names a file inside the directory it is joined to.
func PlainFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}
