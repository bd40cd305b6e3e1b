// Package uuid generates run identifiers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runStampLayout = "20060102T150405"

// Generator creates UUID v7 based identifiers.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUID7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// RunID returns a sortable run identifier such as
// "20261016T150405-8b3c0e2f9a41". The suffix is the random tail of a UUID7
// so two runs started in the same second still differ.
func (g Generator) RunID(startedAt time.Time) (string, error) {
	id, err := g.NewID()
	if err != nil {
		return "", err
	}
	return startedAt.Format(runStampLayout) + "-" + id[len(id)-12:], nil
}
