package rpc

import "github.com/muurk/wifiprov/internal/wifi"

// RPC method names.
const (
	MethodSetConfig = "WiFi.SetConfig"
	MethodGetStatus = "WiFi.GetStatus"
	MethodReboot    = "Shelly.Reboot"
)

// STA is the station block of WiFi.SetConfig.
type STA struct {
	Enable     *bool   `json:"enable,omitempty"`
	SSID       string  `json:"ssid,omitempty"`
	Pass       *string `json:"pass,omitempty"`
	IsOpen     *bool   `json:"is_open,omitempty"`
	IPv4Mode   string  `json:"ipv4mode,omitempty"` // "dhcp" or "static"
	IP         *string `json:"ip,omitempty"`
	Netmask    *string `json:"netmask,omitempty"`
	GW         *string `json:"gw,omitempty"`
	Nameserver *string `json:"nameserver,omitempty"`
}

// Config is the config object of WiFi.SetConfig.
type Config struct {
	STA *STA `json:"sta,omitempty"`
}

// SetConfigParams are the params of WiFi.SetConfig.
type SetConfigParams struct {
	Config Config `json:"config"`
}

// SetConfigResult is the result of WiFi.SetConfig.
type SetConfigResult struct {
	RestartRequired bool `json:"restart_required"`
}

// GetStatusResult is the result of WiFi.GetStatus.
type GetStatusResult struct {
	StaIP  *string `json:"sta_ip"`
	Status string  `json:"status"` // "disconnected", "connecting", "connected", "got ip"
	SSID   *string `json:"ssid"`
	RSSI   int     `json:"rssi"`
}

// RebootParams are the params of Shelly.Reboot.
type RebootParams struct {
	DelayMS int `json:"delay_ms,omitempty"`
}

// StationStatus converts the reported status string.
func (r GetStatusResult) StationStatus() wifi.Status {
	switch r.Status {
	case "connecting":
		return wifi.StatusConnecting
	case "connected":
		return wifi.StatusConnected
	case "got ip":
		return wifi.StatusIPAcquired
	default:
		return wifi.StatusDisconnected
	}
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// staFromConfig maps a station configuration to the device schema.
// Enterprise fields have no equivalent and are rejected by the driver.
func staFromConfig(cfg wifi.STAConfig, enable bool) *STA {
	sta := &STA{
		Enable: boolPtr(enable),
		SSID:   cfg.SSID,
		IsOpen: boolPtr(cfg.IsOpen()),
	}
	if cfg.Pass != "" {
		sta.Pass = strPtr(cfg.Pass)
	}
	if cfg.IsStatic() {
		sta.IPv4Mode = "static"
		sta.IP = strPtr(cfg.IP)
		sta.Netmask = strPtr(cfg.Netmask)
		if cfg.GW != "" {
			sta.GW = strPtr(cfg.GW)
		}
		if cfg.Nameserver != "" {
			sta.Nameserver = strPtr(cfg.Nameserver)
		}
	} else {
		sta.IPv4Mode = "dhcp"
	}
	return sta
}
