package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/wifiprov/internal/api"
	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/wifi"
	"github.com/muurk/wifiprov/internal/wifi/sim"
)

var office = sim.Network{SSID: "Office-5G", Pass: "hunter22"}

func candidateDoc(fn func(*config.Document)) *config.Document {
	doc := config.NewDocument()
	doc.Provision.WiFi.STA.SSID = office.SSID
	doc.Provision.WiFi.STA.Pass = office.Pass
	if fn != nil {
		fn(doc)
	}
	return doc
}

func startAgent(t *testing.T, doc *config.Document) (*Agent, *config.Store, *api.Client) {
	t.Helper()

	store := config.NewStore("", doc)
	a, err := New(Options{
		Store:          store,
		Listen:         "127.0.0.1:0",
		Networks:       []sim.Network{office},
		AssociateDelay: 20 * time.Millisecond,
		DHCPDelay:      10 * time.Millisecond,
		SettleDelay:    -1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("agent did not stop")
		}
	})

	eventually(t, "API listening", func() bool { return a.Addr() != nil })
	return a, store, api.NewClient("http://" + a.Addr().String())
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	store := config.NewStore("", nil)
	tests := []struct {
		name string
		opts Options
	}{
		{"no store", Options{}},
		{"unknown driver", Options{Store: store, Driver: "zigbee"}},
		{"rpc without device", Options{Store: store, Driver: DriverRPC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	a, err := New(Options{Store: store, Driver: DriverRPC, Device: "192.168.33.1"})
	if err != nil {
		t.Fatalf("New(rpc) error = %v", err)
	}
	if a.rpc == nil || a.sim != nil {
		t.Error("rpc driver not selected")
	}
}

func TestTestOverAPI(t *testing.T) {
	_, store, client := startAgent(t, candidateDoc(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Test(ctx, api.TestRequest{}, true)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.Result == nil || !resp.Result.Success || resp.Result.Reason != provision.ReasonMatched {
		t.Fatalf("Result = %+v, want matched success", resp.Result)
	}

	if got := store.Active().SSID; got != office.SSID {
		t.Errorf("active SSID = %q, want %q", got, office.SSID)
	}
	if got := store.Candidate().SSID; got != "" {
		t.Errorf("candidate SSID = %q, want cleared", got)
	}
	if r := store.Result(); !r.Success || r.SSID != office.SSID {
		t.Errorf("persisted result = %+v", r)
	}
}

func TestWrongPassphraseExhaustsAttempts(t *testing.T) {
	_, store, client := startAgent(t, candidateDoc(func(d *config.Document) {
		d.Provision.WiFi.Attempts = 2
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Test(ctx, api.TestRequest{SSID: office.SSID, Pass: "wrong-pass"}, true)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.Result == nil || resp.Result.Success || resp.Result.Reason != provision.ReasonAttemptsExhausted {
		t.Fatalf("Result = %+v, want attempts exhausted", resp.Result)
	}
	if resp.Result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", resp.Result.Attempts)
	}
	if got := store.Active().SSID; got != "" {
		t.Errorf("active SSID = %q, want untouched", got)
	}
}

func TestBootTestRunsOnStartup(t *testing.T) {
	a, _, _ := startAgent(t, candidateDoc(func(d *config.Document) {
		d.Provision.WiFi.Boot.Enable = true
	}))

	eventually(t, "boot test result", func() bool {
		r := a.Controller().LastTestResult()
		return r.Success && r.Reason == provision.ReasonMatched
	})
}

func TestRestartBringsActiveStationBack(t *testing.T) {
	a, _, client := startAgent(t, candidateDoc(func(d *config.Document) {
		d.Provision.WiFi.Success.Disconnect = true
		d.Provision.WiFi.Success.Reboot = true
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Test(ctx, api.TestRequest{}, true)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	if resp.Result == nil || !resp.Result.Success {
		t.Fatalf("Result = %+v, want success", resp.Result)
	}

	eventually(t, "active station to rejoin", func() bool {
		ssid, ok := a.sim.ConnectedSSID()
		return ok && ssid == office.SSID && a.sim.Status() == wifi.StatusIPAcquired
	})
}

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		in      string
		want    sim.Network
		wantErr bool
	}{
		{in: "Office-5G=hunter22", want: sim.Network{SSID: "Office-5G", Pass: "hunter22"}},
		{in: "Cafe", want: sim.Network{SSID: "Cafe"}},
		{in: "Lab=a=b=c", want: sim.Network{SSID: "Lab", Pass: "a=b=c"}},
		{in: "=secret", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNetwork(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNetwork(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseNetwork(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadNetworks(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	data := "networks:\n  - ssid: Office-5G\n    pass: hunter22\n  - ssid: Flaky\n    pass: secret123\n    fail_first: 2\n    no_dhcp: true\n"
	if err := os.WriteFile(good, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadNetworks(good)
	if err != nil {
		t.Fatalf("LoadNetworks() error = %v", err)
	}
	want := []sim.Network{office, {SSID: "Flaky", Pass: "secret123", FailFirst: 2, NoDHCP: true}}
	if len(got) != len(want) {
		t.Fatalf("got %d networks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("network %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("networks:\n  - pass: nossid\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNetworks(bad); err == nil {
		t.Error("LoadNetworks() without ssid error = nil")
	}

	if _, err := LoadNetworks(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadNetworks() missing file error = nil")
	}
}
