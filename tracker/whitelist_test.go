package tracker

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWhitelist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "whitelist.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write whitelist: %v", err)
	}
	return path
}

func TestLoadWhitelistFile(t *testing.T) {
	path := writeWhitelist(t, "a.txt\n\n# a comment\n  b.txt  \n")

	names := loadWhitelistFile(path)

	if len(names) != 2 {
		t.Fatalf("loaded %d names, want 2", len(names))
	}
	for _, want := range []string{"a.txt", "b.txt"} {
		if _, ok := names[want]; !ok {
			t.Errorf("whitelist missing %q", want)
		}
	}
}

func TestLoadWhitelistFile_Missing(t *testing.T) {
	names := loadWhitelistFile(filepath.Join(t.TempDir(), "nope.txt"))

	// Fail-closed: a configured but unreadable whitelist blocks all
	if len(names) != 0 {
		t.Errorf("loaded %d names from missing file, want 0", len(names))
	}
}

func TestIsWhitelisted_PublicMode(t *testing.T) {
	s := NewServer(Config{})

	if !s.isWhitelisted("anything.txt") {
		t.Error("unconfigured whitelist rejected a name; want public mode")
	}
}

func TestIsWhitelisted_Configured(t *testing.T) {
	s := NewServer(Config{})
	names := map[string]struct{}{"a.txt": {}}
	s.whitelist.Store(&names)

	if !s.isWhitelisted("a.txt") {
		t.Error("listed name rejected")
	}
	if s.isWhitelisted("b.txt") {
		t.Error("unlisted name allowed")
	}
}
