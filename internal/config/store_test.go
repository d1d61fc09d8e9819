package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/wifiprov/internal/wifi"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "wifiprov") {
		t.Errorf("GetConfigDir() = %v, should contain 'wifiprov'", configDir)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewDocumentDefaults(t *testing.T) {
	doc := NewDocument()

	if doc.Version != 1 {
		t.Errorf("Version = %v, want 1", doc.Version)
	}
	p := doc.Policy()
	if p.Attempts != 3 {
		t.Errorf("Attempts = %v, want 3", p.Attempts)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", p.Timeout)
	}
	if !doc.Provision.WiFi.STA.Enable {
		t.Error("candidate enable should default to true")
	}
	if !p.Success.Enable {
		t.Error("success.enable should default to true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Path() != path {
		t.Errorf("Path() = %q, want %q", store.Path(), path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Load() created the file")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store.SetActive(wifi.STAConfig{Enable: true, SSID: "Home", Pass: "hunter2hunter2"})
	store.SetCandidate(wifi.STAConfig{SSID: "Office-5G", Pass: "correct-horse", DHCPHostname: "sensor-1"})
	store.SetBootEnable(true)
	store.SetResult(true, "Office-5G")

	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := loaded.Active(); got.SSID != "Home" || !got.Enable {
		t.Errorf("Active() = %+v", got)
	}
	cand := loaded.Candidate()
	if cand.SSID != "Office-5G" || cand.DHCPHostname != "sensor-1" || !cand.Enable {
		t.Errorf("Candidate() = %+v", cand)
	}
	if !loaded.Policy().BootEnable {
		t.Error("BootEnable not persisted")
	}
	if r := loaded.Result(); !r.Success || r.SSID != "Office-5G" {
		t.Errorf("Result() = %+v", r)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, doc *Document)
	}{
		{
			name: "PartialKeepsDefaults",
			yaml: "version: 1\nprovision:\n  wifi:\n    timeout: 10\n",
			check: func(t *testing.T, doc *Document) {
				p := doc.Policy()
				if p.Timeout != 10*time.Second || p.Attempts != 3 || !p.Reconnect {
					t.Errorf("Policy() = %+v", p)
				}
			},
		},
		{
			name: "CandidateEnableForced",
			yaml: "version: 1\nprovision:\n  wifi:\n    sta: {enable: false, ssid: Lab}\n",
			check: func(t *testing.T, doc *Document) {
				if !doc.Provision.WiFi.STA.Enable {
					t.Error("candidate enable = false, want true")
				}
			},
		},
		{
			name: "BootDelay",
			yaml: "version: 1\nprovision:\n  wifi:\n    boot: {enable: true, delay: 15}\n",
			check: func(t *testing.T, doc *Document) {
				if p := doc.Policy(); !p.BootEnable || p.BootDelay != 15*time.Second {
					t.Errorf("Policy() = %+v", p)
				}
			},
		},
		{name: "BadVersion", yaml: "version: 2\n", wantErr: "unsupported config version"},
		{name: "ZeroAttempts", yaml: "version: 1\nprovision:\n  wifi:\n    attempts: 0\n", wantErr: "attempts"},
		{name: "NegativeTimeout", yaml: "version: 1\nprovision:\n  wifi:\n    timeout: -1\n", wantErr: "timeout"},
		{name: "Malformed", yaml: "version: [\n", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			tt.check(t, doc)
		})
	}
}

func TestClearCandidateKeepsEnable(t *testing.T) {
	store := NewStore("", nil)
	store.SetCandidate(wifi.STAConfig{SSID: "Office-5G", Pass: "correct-horse"})
	store.ClearCandidate()

	cand := store.Candidate()
	if cand.SSID != "" || cand.Pass != "" {
		t.Errorf("Candidate() = %+v, want blank", cand)
	}
	if !cand.Enable {
		t.Error("candidate enable = false after clear")
	}
}

func TestMemoryStoreSave(t *testing.T) {
	store := NewStore("", nil)
	if err := store.Save(); err != nil {
		t.Errorf("Save() on memory store error = %v", err)
	}
}

func TestSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(filepath.Join(blocker, "config.yaml"), nil)
	if err := store.Save(); err == nil {
		t.Error("Save() under a regular file should fail")
	}
}

func TestMarshalRedacts(t *testing.T) {
	store := NewStore("", nil)
	store.SetActive(wifi.STAConfig{SSID: "Home", Pass: "hunter2hunter2"})
	store.SetCandidateCredentials("Office-5G", "correct-horse")

	out, err := store.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(out)
	if strings.Contains(s, "hunter2hunter2") || strings.Contains(s, "correct-horse") {
		t.Errorf("Marshal() leaked a passphrase:\n%s", s)
	}
	if !strings.Contains(s, "Office-5G") {
		t.Errorf("Marshal() missing candidate ssid:\n%s", s)
	}
	if store.Candidate().Pass != "correct-horse" {
		t.Error("Marshal() modified the store")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if _, err := WriteDefault(path); err == nil {
		t.Error("second WriteDefault() should fail")
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load() of default file error = %v", err)
	}
}
