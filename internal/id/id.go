// Package id generates operation and batch identifiers.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes in use.
const (
	PrefixOp     = "op"  // one add, update or remove
	PrefixImport = "imp" // one importer run
)

// opAlphabet avoids look-alike characters so ids can be read back from logs.
const (
	opAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"
	opLength   = 10
)

// Generate creates a prefixed unique ID using the default NanoID
// (21 characters, URL-safe alphabet), e.g. "imp-V1StGXR8_Z5jdHi6B-myT".
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// Short creates a compact, lower-case id such as "op-k3m9x2qz7t".
func Short(prefix string) (string, error) {
	id, err := gonanoid.Generate(opAlphabet, opLength)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewOp returns a fresh operation id. It panics only when the system has no
// entropy, in which case nothing else would work either.
func NewOp() string {
	id, err := Short(PrefixOp)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
