package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type rec struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	f := NewFile[rec](filepath.Join(t.TempDir(), "seen.json"))
	m, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty mapping, got %d entries", len(m))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	f := NewFile[rec](path)

	in := map[string]rec{
		"7_11": {Name: "Lab 1", Count: 2},
		"7_12": {Name: "Lab 2", Count: 0},
	}
	if err := f.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 || out["7_11"].Count != 2 || out["7_12"].Name != "Lab 2" {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	// Human-inspectable: indented and enveloped.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(b), "\"version\": 1") {
		t.Fatalf("expected version envelope, got:\n%s", b)
	}
	if !strings.Contains(string(b), "\n  ") {
		t.Fatalf("expected indented output")
	}
}

func TestLoadLegacyFlatMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	legacy := `{"7_11":{"name":"Lab 1","count":3}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f := NewFile[rec](path)
	m, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m["7_11"].Count != 3 {
		t.Fatalf("legacy entry not read: %+v", m)
	}

	// Saving upgrades to the enveloped format.
	if err := f.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "\"version\": 1") {
		t.Fatalf("expected upgrade to version 1, got:\n%s", b)
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	future := `{"version": 99, "entries": {}}`
	if err := os.WriteFile(path, []byte(future), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := NewFile[rec](path).Load(); err == nil {
		t.Fatalf("expected error for newer snapshot version")
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	f := NewFile[rec](path)
	if err := f.Save(map[string]rec{"a": {Count: 1}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.Save(map[string]rec{"b": {Count: 2}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m, err := f.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m["a"]; ok {
		t.Fatalf("expected wholesale overwrite, old key survived: %+v", m)
	}
	if m["b"].Count != 2 {
		t.Fatalf("unexpected entries: %+v", m)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}
}
