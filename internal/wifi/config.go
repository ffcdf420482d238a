package wifi

import (
	"errors"
	"fmt"
	"strings"
)

// Access point defaults
const (
	DefaultSSID           = "System.ESP32-C3"
	DefaultChannel        = 1
	DefaultMaxConnections = 4
)

// Limits from the 802.11 and WPA specifications
const (
	MaxSSIDLength        = 32
	MinPassphraseLength  = 8
	MaxPassphraseLength  = 63
	MaxChannel           = 13
	MaxStationsSupported = 10
)

var ErrInvalidConfig = errors.New("invalid access point configuration")

// Mode is an operating mode of the radio.
type Mode int

const (
	ModeClient Mode = iota
	ModeAccessPoint
	ModeMixed
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "Client"
	case ModeAccessPoint:
		return "AccessPoint"
	case ModeMixed:
		return "Mixed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// AuthMethod is the access point authentication scheme.
type AuthMethod int

const (
	AuthNone AuthMethod = iota
	AuthWEP
	AuthWPA
	AuthWPA2Personal
	AuthWPAWPA2Personal
	AuthWPA3Personal
)

var authNames = map[AuthMethod]string{
	AuthNone:            "none",
	AuthWEP:             "wep",
	AuthWPA:             "wpa",
	AuthWPA2Personal:    "wpa2",
	AuthWPAWPA2Personal: "wpa-wpa2",
	AuthWPA3Personal:    "wpa3",
}

func (a AuthMethod) String() string {
	if name, ok := authNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AuthMethod(%d)", int(a))
}

// ParseAuthMethod converts a name such as "wpa2" to an AuthMethod.
func ParseAuthMethod(name string) (AuthMethod, error) {
	for a, n := range authNames {
		if strings.EqualFold(n, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown auth method %q", name)
}

// AccessPointConfig describes the network the device advertises.
type AccessPointConfig struct {
	SSID           string
	Hidden         bool
	Auth           AuthMethod
	Password       string
	Channel        uint8
	MaxConnections int
}

// DefaultAccessPoint returns the configuration used when no flags are given.
// The password is left empty and must be set for WPA2.
func DefaultAccessPoint() AccessPointConfig {
	return AccessPointConfig{
		SSID:           DefaultSSID,
		Auth:           AuthWPA2Personal,
		Channel:        DefaultChannel,
		MaxConnections: DefaultMaxConnections,
	}
}

// Validate checks the configuration against the driver limits.
func (c AccessPointConfig) Validate() error {
	if len(c.SSID) == 0 || len(c.SSID) > MaxSSIDLength {
		return fmt.Errorf("%w: SSID must be 1-%d bytes, got %d", ErrInvalidConfig, MaxSSIDLength, len(c.SSID))
	}

	if c.Channel < 1 || c.Channel > MaxChannel {
		return fmt.Errorf("%w: channel %d out of range 1-%d", ErrInvalidConfig, c.Channel, MaxChannel)
	}

	if c.MaxConnections < 1 || c.MaxConnections > MaxStationsSupported {
		return fmt.Errorf("%w: max connections %d out of range 1-%d", ErrInvalidConfig, c.MaxConnections, MaxStationsSupported)
	}

	switch c.Auth {
	case AuthNone:
		if c.Password != "" {
			return fmt.Errorf("%w: open network must not have a password", ErrInvalidConfig)
		}
	case AuthWEP:
		if len(c.Password) != 5 && len(c.Password) != 13 {
			return fmt.Errorf("%w: WEP key must be 5 or 13 characters", ErrInvalidConfig)
		}
	case AuthWPA, AuthWPA2Personal, AuthWPAWPA2Personal, AuthWPA3Personal:
		if len(c.Password) < MinPassphraseLength || len(c.Password) > MaxPassphraseLength {
			return fmt.Errorf("%w: %s passphrase must be %d-%d characters", ErrInvalidConfig, c.Auth, MinPassphraseLength, MaxPassphraseLength)
		}
	default:
		return fmt.Errorf("%w: unsupported auth method %s", ErrInvalidConfig, c.Auth)
	}

	return nil
}
