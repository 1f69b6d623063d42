package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "selection.zip", "selection.zip"},
		{"strips directories", "../../etc/passwd", "passwd"},
		{"replaces reserved characters", `a<b>:c".zip`, "a_b__c_.zip"},
		{"trims dots and spaces", "  ..hidden.. ", "hidden"},
		{"unicode preserved", "selection ☺.zip", "selection ☺.zip"},
		{"empty falls back", "", "fallback.zip"},
		{"dot-only falls back", "..", "fallback.zip"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeFilename(tc.input, "fallback.zip"))
		})
	}
}

func TestArchivePath_CountsUpOnCollision(t *testing.T) {
	dir := t.TempDir()

	p1, err := ArchivePath(dir, "batch.zip", "fallback.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch.zip"), p1)
	require.NoError(t, os.WriteFile(p1, []byte("a"), 0600))

	p2, err := ArchivePath(dir, "batch.zip", "fallback.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch (1).zip"), p2)
	require.NoError(t, os.WriteFile(p2, []byte("b"), 0600))

	p3, err := ArchivePath(dir, "batch.zip", "fallback.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch (2).zip"), p3)
}

func TestArchivePath_TraversalNeutralized(t *testing.T) {
	dir := t.TempDir()

	p, err := ArchivePath(dir, "../../escape.zip", "fallback.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.zip"), p)
}
