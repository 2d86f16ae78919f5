// Package settings reads the viewer configuration and keeps the per
// document view history.
//
// The configuration file is a JSON object whose keys override the
// compiled-in defaults. The history file maps absolute document paths to
// the last page, zoom and rotation they were viewed at.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"sync"
)

const defaultConfigJSON = `{
  "fb": "/dev/fb0",
  "cacheSize": 10,
  "renderWorkers": 0,
  "searchContextLength": 80
}`

// DefaultConfig returns a copy of the compiled-in configuration
func DefaultConfig() map[string]any {
	var config map[string]any
	if err := json.Unmarshal([]byte(defaultConfigJSON), &config); err != nil {
		panic(fmt.Sprintf("settings: invalid default config: %v", err))
	}
	return config
}

// HistoryRecord is how a document was last viewed
type HistoryRecord struct {
	Page     int     `json:"page"`
	Zoom     float64 `json:"zoom"`
	Rotation int     `json:"rotation"`
}

// Settings holds the merged configuration and the view history.
// It is safe for concurrent use.
type Settings struct {
	mu          sync.Mutex
	config      map[string]any
	historyPath string
	history     map[string]HistoryRecord
	log         *slog.Logger
}

// Open loads the configuration at configPath over the defaults and the
// history at historyPath. Missing or malformed files are logged and
// treated as empty.
func Open(configPath, historyPath string) *Settings {
	s := &Settings{
		config:      DefaultConfig(),
		historyPath: historyPath,
		history:     make(map[string]HistoryRecord),
		log:         slog.Default().With("component", "settings"),
	}

	var overrides map[string]any
	if err := s.readJSON(configPath, &overrides); err != nil {
		s.log.Warn("ignoring config file", "path", configPath, "error", err)
	}
	maps.Copy(s.config, overrides)

	if err := s.readJSON(historyPath, &s.history); err != nil {
		s.log.Warn("ignoring history file", "path", historyPath, "error", err)
		s.history = make(map[string]HistoryRecord)
	}
	if s.history == nil {
		s.history = make(map[string]HistoryRecord)
	}
	return s
}

// readJSON decodes the file at path into v. Missing and empty files
// leave v untouched.
func (s *Settings) readJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (s *Settings) value(key string) any {
	v, ok := s.config[key]
	if !ok {
		panic(fmt.Sprintf("settings: unknown key %q", key))
	}
	return v
}

// GetString returns a string setting. It panics if the key is unknown
// or not a string.
func (s *Settings) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.value(key).(string)
	if !ok {
		panic(fmt.Sprintf("settings: %q is not a string", key))
	}
	return v
}

// GetInt returns an integer setting. It panics if the key is unknown or
// not an integer.
func (s *Settings) GetInt(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.value(key).(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		panic(fmt.Sprintf("settings: %q is not an integer", key))
	}
	return int(f)
}

func historyKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// History returns the record for the document at path
func (s *Settings) History(path string) (HistoryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.history[historyKey(path)]
	return rec, ok
}

// SetHistory replaces the record for the document at path. Call
// SaveHistory to persist it.
func (s *Settings) SetHistory(path string, rec HistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[historyKey(path)] = rec
}

// SaveHistory writes the history file
func (s *Settings) SaveHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.historyPath == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.historyPath), 0o755); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	tmp := s.historyPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp, s.historyPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
