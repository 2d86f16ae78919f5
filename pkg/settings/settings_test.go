package settings

import (
	"os"
	"path/filepath"
	"testing"
)

// tempSettings returns a config and a history path in a fresh directory
func tempSettings(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "config.json"), filepath.Join(dir, "history.json")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	for _, key := range []string{"fb", "cacheSize", "renderWorkers", "searchContextLength"} {
		if _, ok := config[key]; !ok {
			t.Errorf("Default config has no %q", key)
		}
	}

	// callers get a copy
	config["fb"] = "/dev/changed"
	if DefaultConfig()["fb"] != "/dev/fb0" {
		t.Error("Modifying the returned config changed the defaults")
	}
}

func TestGetValuesWithEmptyConfig(t *testing.T) {
	configPath, historyPath := tempSettings(t)
	writeFile(t, configPath, "")
	s := Open(configPath, historyPath)

	fb := s.GetString("fb")
	if fb == "" || fb != DefaultConfig()["fb"] {
		t.Errorf("Expected default fb, got %q", fb)
	}
	if n := s.GetInt("cacheSize"); n <= 0 || float64(n) != DefaultConfig()["cacheSize"] {
		t.Errorf("Expected default cacheSize, got %d", n)
	}
}

func TestGetValuesWithCustomConfig(t *testing.T) {
	configPath, historyPath := tempSettings(t)
	writeFile(t, configPath, `{"fb": "/dev/foobar", "cacheSize": 42}`)
	s := Open(configPath, historyPath)

	if fb := s.GetString("fb"); fb != "/dev/foobar" {
		t.Errorf("Expected /dev/foobar, got %q", fb)
	}
	if n := s.GetInt("cacheSize"); n != 42 {
		t.Errorf("Expected 42, got %d", n)
	}
	if n := s.GetInt("searchContextLength"); n != 80 {
		t.Errorf("Expected the default 80 for keys not in the file, got %d", n)
	}
}

func TestMalformedConfig(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{"missing", nil},
		{"syntax error", ptr(`{"fb": `)},
		{"not an object", ptr(`[1, 2, 3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath, historyPath := tempSettings(t)
			if tt.content != nil {
				writeFile(t, configPath, *tt.content)
			}
			s := Open(configPath, historyPath)
			if s.GetString("fb") != "/dev/fb0" || s.GetInt("cacheSize") != 10 {
				t.Error("Expected defaults")
			}
		})
	}
}

func TestGetPanics(t *testing.T) {
	configPath, historyPath := tempSettings(t)
	writeFile(t, configPath, `{"ratio": 1.5, "name": "x"}`)
	s := Open(configPath, historyPath)

	tests := []struct {
		name string
		fn   func()
	}{
		{"unknown string", func() { s.GetString("nope") }},
		{"unknown int", func() { s.GetInt("nope") }},
		{"string as int", func() { s.GetInt("name") }},
		{"int as string", func() { s.GetString("cacheSize") }},
		{"fraction as int", func() { s.GetInt("ratio") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Expected a panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestHistory(t *testing.T) {
	configPath, historyPath := tempSettings(t)
	s := Open(configPath, historyPath)

	if _, ok := s.History("book.pdf"); ok {
		t.Fatal("Expected no history in a fresh file")
	}

	rec := HistoryRecord{Page: 12, Zoom: 1.5, Rotation: 90}
	s.SetHistory("book.pdf", rec)
	if err := s.SaveHistory(); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}

	reloaded := Open(configPath, historyPath)
	got, ok := reloaded.History("book.pdf")
	if !ok || got != rec {
		t.Errorf("Expected %+v, got %+v (%v)", rec, got, ok)
	}

	abs, err := filepath.Abs("book.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.History(abs); !ok {
		t.Error("History must be keyed by absolute path")
	}
}

func TestMalformedHistory(t *testing.T) {
	configPath, historyPath := tempSettings(t)
	writeFile(t, historyPath, `{"a.pdf": {"page": "x"}}`)
	s := Open(configPath, historyPath)

	if _, ok := s.History("a.pdf"); ok {
		t.Error("Expected malformed history to be dropped")
	}
	s.SetHistory("b.pdf", HistoryRecord{Page: 1, Zoom: 1})
	if err := s.SaveHistory(); err != nil {
		t.Fatalf("Failed to save history: %v", err)
	}
}

func ptr(s string) *string { return &s }
