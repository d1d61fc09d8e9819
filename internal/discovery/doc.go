// Package discovery advertises and finds wifiprov agents over mDNS.
//
// An agent registers a "_wifiprov._tcp" service for its API port with TXT
// records describing it. The wifiprov CLI browses for the same service type
// so the agent can be reached without knowing its address, which is useful
// right after a test moved it onto a new network.
//
// # Usage Example
//
//	// Agent side
//	ad, err := discovery.Advertise(discovery.Advertisement{
//	    Instance: hostname,
//	    Port:     8470,
//	    Driver:   "sim",
//	})
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	// CLI side
//	agents, err := discovery.NewScanner().Scan(ctx)
//	for _, a := range agents {
//	    fmt.Println(a.Instance, a.BaseURL())
//	}
//
// # TXT Records
//
//   - path: API prefix, always "/api"
//   - version: agent build version
//   - driver: station driver in use ("sim" or "rpc")
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Agents must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
