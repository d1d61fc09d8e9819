package wifi

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

const (
	// MaxSSIDLength is the 802.11 limit on SSID length in bytes.
	MaxSSIDLength = 32
	// MinPassphraseLength and MaxPassphraseLength bound a WPA2 passphrase.
	MinPassphraseLength = 8
	MaxPassphraseLength = 63
	// MaxHostnameLength bounds the DHCP hostname option.
	MaxHostnameLength = 63
)

// ValidationError describes one invalid field of a station configuration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateSSID validates a station SSID.
// SSIDs must be non-empty and at most 32 bytes.
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return invalid("ssid", "cannot be empty")
	}
	if len(ssid) > MaxSSIDLength {
		return invalid("ssid", "too long (max %d bytes): %d bytes", MaxSSIDLength, len(ssid))
	}
	return nil
}

// ValidatePassphrase validates a WPA2 passphrase. An empty passphrase means
// an open (or EAP) network and is accepted.
func ValidatePassphrase(pass string) error {
	if pass == "" {
		return nil
	}
	if len(pass) < MinPassphraseLength {
		return invalid("pass", "too short (min %d chars): %d chars", MinPassphraseLength, len(pass))
	}
	if len(pass) > MaxPassphraseLength {
		return invalid("pass", "too long (max %d chars): %d chars", MaxPassphraseLength, len(pass))
	}
	return nil
}

func validateIPv4(field, value string) error {
	addr, err := netip.ParseAddr(value)
	if err != nil || !addr.Is4() {
		return invalid(field, "not an IPv4 address: %q", value)
	}
	return nil
}

// ValidateStaticIP validates the static addressing block. All fields are
// optional when ip is empty; otherwise netmask is required and every
// non-empty field must be an IPv4 address.
func ValidateStaticIP(cfg STAConfig) []error {
	var errs []error

	if !cfg.IsStatic() {
		if cfg.Netmask != "" || cfg.GW != "" {
			errs = append(errs, invalid("ip", "required when netmask or gw is set"))
		}
		return errs
	}

	if err := validateIPv4("ip", cfg.IP); err != nil {
		errs = append(errs, err)
	}
	if cfg.Netmask == "" {
		errs = append(errs, invalid("netmask", "required with a static ip"))
	} else if err := validateIPv4("netmask", cfg.Netmask); err != nil {
		errs = append(errs, err)
	}
	if cfg.GW != "" {
		if err := validateIPv4("gw", cfg.GW); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Nameserver != "" {
		if err := validateIPv4("nameserver", cfg.Nameserver); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// ValidateEnterprise validates the EAP/certificate fields.
func ValidateEnterprise(cfg STAConfig) []error {
	var errs []error

	if (cfg.Cert == "") != (cfg.Key == "") {
		errs = append(errs, invalid("cert", "cert and key must be set together"))
	}
	if cfg.User != "" && cfg.CACert == "" && cfg.Cert == "" {
		errs = append(errs, invalid("user", "EAP identity requires ca_cert or a client cert"))
	}
	if cfg.AnonIdentity != "" && cfg.User == "" {
		errs = append(errs, invalid("anon_identity", "requires user"))
	}

	return errs
}

// ValidateSTAConfig validates a complete station configuration.
// Returns a slice of validation errors (empty if valid).
func ValidateSTAConfig(cfg STAConfig) []error {
	var errs []error

	if err := ValidateSSID(cfg.SSID); err != nil {
		errs = append(errs, err)
	}
	if err := ValidatePassphrase(cfg.Pass); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, ValidateStaticIP(cfg)...)
	errs = append(errs, ValidateEnterprise(cfg)...)

	if len(cfg.DHCPHostname) > MaxHostnameLength {
		errs = append(errs, invalid("dhcp_hostname", "too long (max %d chars)", MaxHostnameLength))
	} else if strings.ContainsAny(cfg.DHCPHostname, " \t\r\n") {
		errs = append(errs, invalid("dhcp_hostname", "contains whitespace"))
	}

	return errs
}

// Validate returns nil for a usable configuration, or all problems joined
// into one error.
func (c STAConfig) Validate() error {
	return errors.Join(ValidateSTAConfig(c)...)
}

// FormatValidationErrors formats a slice of validation errors into a user-friendly message.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Station configuration invalid, %d error(s):\n", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}
