package db

import (
	"io/fs"
	"os"
	"testing"
)

func emptyFS(t *testing.T) fs.FS {
	t.Helper()
	return os.DirFS(t.TempDir())
}
