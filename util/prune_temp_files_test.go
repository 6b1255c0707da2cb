package util_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pgtelemetry/collector/util"
)

func TestPruneTempFiles(t *testing.T) {
	dir := t.TempDir()
	stray := filepath.Join(dir, util.TempFilePrefix+"123")
	kept := filepath.Join(dir, "snapshot.json")
	for path, content := range map[string]string{stray: "partial", kept: "{}"} {
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("Failed to write %s: %s", path, err)
		}
	}

	util.PruneTempFiles(util.NewNopLogger(), dir)

	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed; stat returned %v", stray, err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("Expected %s to be kept; stat returned %v", kept, err)
	}
}
