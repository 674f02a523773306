package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "owl")
	outside := filepath.Join(tmp, "private")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.db"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(safe, "ep_ED.owl"), false},
		{"not yet created subdir", filepath.Join(safe, "new", "ep_ED.owl"), false},
		{"dir itself", safe, false},
		{"dot dot", filepath.Join(safe, "..", "private", "secret.db"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"symlinked dir", filepath.Join(safe, "link", "secret.db"), true},
		{"new file below symlink", filepath.Join(safe, "link", "new.owl"), true},
		{"sibling prefix", safe + "-evil", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTraversal)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	err := ValidatePathWithinDirectory(filepath.Join(missing, "a"), missing)
	assert.ErrorContains(t, err, "failed to resolve directory symlinks")
}

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()

	p, err := ResolveWithin(dir, "ep1_ED.owl")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ep1_ED.owl"), p)

	for _, name := range []string{"", "..", "../x", "a/b", `a\b`, "/etc/passwd"} {
		_, err := ResolveWithin(dir, name)
		assert.ErrorIs(t, err, ErrTraversal, name)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "unknown"},
		{"ep-7", "ep-7"},
		{"kitchen run #3", "kitchen_run_3"},
		{"a//b\\c", "a_b_c"},
		{"..hidden..", "hidden"},
		{"___", "unknown"},
		{"tâche", "t_che"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("x", 300)), 128)
}
