package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/muurk/wifiprov/internal/wifi/sim"
	"gopkg.in/yaml.v3"
)

// networksFile is the YAML layout of a simulated radio's access points:
//
//	networks:
//	  - ssid: Office-5G
//	    pass: hunter22
//	  - ssid: Flaky
//	    pass: secret123
//	    fail_first: 2
type networksFile struct {
	Networks []sim.Network `yaml:"networks"`
}

// LoadNetworks reads simulated access points from a YAML file.
func LoadNetworks(path string) ([]sim.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var f networksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: invalid networks file: %w", path, err)
	}
	for i, n := range f.Networks {
		if n.SSID == "" {
			return nil, fmt.Errorf("%s: network %d has no ssid", path, i+1)
		}
	}
	return f.Networks, nil
}

// ParseNetwork parses a --network flag value, "SSID" for an open network or
// "SSID=PASS". The first '=' separates the two.
func ParseNetwork(s string) (sim.Network, error) {
	ssid, pass, _ := strings.Cut(s, "=")
	if ssid == "" {
		return sim.Network{}, fmt.Errorf("invalid network %q: empty SSID", s)
	}
	return sim.Network{SSID: ssid, Pass: pass}, nil
}
