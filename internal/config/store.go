package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/muurk/wifiprov/internal/wifi"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "wifiprov"
	configFile = "config.yaml"
)

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/wifiprov or $HOME/.config/wifiprov
//   - macOS: $HOME/.config/wifiprov (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\wifiprov
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Store is the persisted provisioning configuration. All accessors are safe
// for concurrent use. Setters only change memory; call Save to persist.
type Store struct {
	mu   sync.Mutex
	path string
	doc  *Document
}

// NewStore wraps doc in a Store that saves to path. An empty path gives a
// memory-only store whose Save is a no-op.
func NewStore(path string, doc *Document) *Store {
	if doc == nil {
		doc = NewDocument()
	}
	doc.Provision.WiFi.STA.Enable = true
	return &Store{path: path, doc: doc}
}

// Load reads the configuration at path, or the default path when empty.
// A missing file yields a default document that will be created on Save.
func Load(path string) (*Store, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewStore(path, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewStore(path, doc), nil
}

// Parse decodes and normalizes a YAML document. Fields absent from data keep
// their defaults.
func Parse(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if doc.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", doc.Version, CurrentVersion)
	}

	p := &doc.Provision.WiFi
	if p.Attempts < 1 {
		return nil, fmt.Errorf("provision.wifi.attempts must be at least 1, got %d", p.Attempts)
	}
	if p.Timeout < 0 {
		return nil, fmt.Errorf("provision.wifi.timeout must not be negative, got %d", p.Timeout)
	}
	if p.Boot.Delay < 0 {
		return nil, fmt.Errorf("provision.wifi.boot.delay must not be negative, got %d", p.Boot.Delay)
	}
	p.STA.Enable = true

	return doc, nil
}

// Path returns the file the store saves to. Empty for memory-only stores.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a copy of the whole document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.doc
}

// Candidate returns the candidate station configuration.
func (s *Store) Candidate() wifi.STAConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Provision.WiFi.STA
}

// SetCandidate replaces the candidate station. Enable is forced on.
func (s *Store) SetCandidate(cfg wifi.STAConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Enable = true
	s.doc.Provision.WiFi.STA = cfg
}

// SetCandidateCredentials sets only the candidate SSID and passphrase.
func (s *Store) SetCandidateCredentials(ssid, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Provision.WiFi.STA.SSID = ssid
	s.doc.Provision.WiFi.STA.Pass = pass
}

// ClearCandidate blanks every candidate field. Enable stays on.
func (s *Store) ClearCandidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Provision.WiFi.STA = wifi.STAConfig{Enable: true}
}

// Active returns the active station configuration.
func (s *Store) Active() wifi.STAConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.WiFi.STA
}

// SetActive replaces the active station configuration.
func (s *Store) SetActive(cfg wifi.STAConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.WiFi.STA = cfg
}

// Policy returns the outcome flags and limits.
func (s *Store) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Policy()
}

// SetBootEnable sets provision.wifi.boot.enable.
func (s *Store) SetBootEnable(enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Provision.WiFi.Boot.Enable = enable
}

// Result returns the last recorded test result.
func (s *Store) Result() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Provision.WiFi.Results
}

// SetResult records a completed test.
func (s *Store) SetResult(success bool, ssid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Provision.WiFi.Results = Results{Success: success, SSID: ssid}
}

// Save writes the document to disk.
// Performs an atomic write to prevent corruption on crash.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.Lock()
	data, err := yaml.Marshal(s.doc)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := []byte(`# wifiprov configuration
# wifi.sta is the active station. provision.wifi.sta is the candidate
# tried by the next test; it holds secrets, keep this file private.

`)
	data = append(header, data...)

	// Write to temporary file first (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Marshal renders the document as YAML with secrets redacted.
func (s *Store) Marshal() ([]byte, error) {
	doc := s.Snapshot()
	doc.WiFi.STA = doc.WiFi.STA.Redacted()
	doc.Provision.WiFi.STA = doc.Provision.WiFi.STA.Redacted()
	return yaml.Marshal(&doc)
}

// WriteDefault writes a default document to path unless a file already
// exists there.
func WriteDefault(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config file already exists: %s", path)
	}
	store := NewStore(path, nil)
	if err := store.Save(); err != nil {
		return nil, err
	}
	return store, nil
}
