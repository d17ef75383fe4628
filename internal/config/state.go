package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/gofrs/flock"
)

// Persisted state keys
const (
	KeyLastTool        = "last_tool"
	KeyLastNonHomeTool = "last_non_home_tool"
	KeyTheme           = "theme"
)

// HomeTool is the tool name that does not count as a last non-home tool
const HomeTool = "home"

var knownKeys = []string{KeyLastTool, KeyLastNonHomeTool, KeyTheme}

// StateFile is a small JSON key/value store shared between processes
type StateFile struct {
	path string
	mu   sync.Mutex
}

var (
	globalState *StateFile
	stateOnce   sync.Once
)

// GetGlobalState returns the state file at the default location
func GetGlobalState() *StateFile {
	stateOnce.Do(func() {
		globalState = NewStateFile(StatePath())
	})
	return globalState
}

// NewStateFile opens the store at path. Nothing is read until first use.
func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// StatePath returns MCP_PDFTOOLS_STATE_PATH or ~/.mcp-pdftools/state.json
func StatePath() string {
	if customPath := os.Getenv("MCP_PDFTOOLS_STATE_PATH"); customPath != "" {
		return customPath
	}
	return filepath.Join(Dir(), "state.json")
}

// Path returns the file backing the store
func (s *StateFile) Path() string {
	return s.path
}

// KnownKey reports whether key can be stored
func KnownKey(key string) bool {
	return slices.Contains(knownKeys, key)
}

// All returns every stored value. A missing or unreadable file is empty state.
func (s *StateFile) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileLock := flock.New(s.path + ".lock")
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	locked, err := fileLock.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire read lock on state file")
	}
	defer func() { _ = fileLock.Unlock() }()

	return s.read(), nil
}

// Get returns one value
func (s *StateFile) Get(key string) (string, bool, error) {
	values, err := s.All()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key
func (s *StateFile) Set(key, value string) error {
	if !KnownKey(key) {
		return fmt.Errorf("unknown state key %q (known keys: %v)", key, knownKeys)
	}
	return s.update(map[string]string{key: value})
}

// RecordTool stores the tool as last used and, unless it is the home view,
// as the last non-home tool
func (s *StateFile) RecordTool(tool string) error {
	values := map[string]string{KeyLastTool: tool}
	if tool != HomeTool {
		values[KeyLastNonHomeTool] = tool
	}
	return s.update(values)
}

func (s *StateFile) update(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	fileLock := flock.New(s.path + ".lock")
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire write lock on state file")
	}
	defer func() { _ = fileLock.Unlock() }()

	current := s.read()
	maps.Copy(current, values)

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// read loads the file without locking. Parse errors yield empty state.
func (s *StateFile) read() map[string]string {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	_ = json.Unmarshal(data, &values)
	if values == nil {
		values = map[string]string{}
	}
	return values
}
