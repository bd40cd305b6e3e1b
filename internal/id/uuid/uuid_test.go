// Package uuid includes tests for the run identifier generator.
package uuid

import (
	"strings"
	"testing"
	"time"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGeneratorNewID ensures generated IDs are unique and valid UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestGeneratorRunID(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 10, 16, 15, 4, 5, 0, time.UTC)
	gen := New()

	id1, err := gen.RunID(started)
	require.NoError(t, err)
	id2, err := gen.RunID(started)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id1, "20261016T150405-"), id1)
	assert.Len(t, id1, len("20261016T150405-")+12)
	assert.NotEqual(t, id1, id2)
}
