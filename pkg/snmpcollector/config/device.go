package config

// DeviceConfig is the resolved SNMP session configuration of one target.
// Zero-valued YAML fields are filled from DeviceDefaults and then from the
// built-in fallbacks (port 161, timeout 3000 ms, retries 2, version 2c).
type DeviceConfig struct {
	IP   string
	Port int

	// Timeout is the per-request timeout in milliseconds.
	Timeout int

	Retries            int
	ExponentialTimeout bool

	// Version is "1", "2c" or "3".
	Version string

	// Communities are tried in order; only the first is used today (v1/v2c).
	Communities   []string
	V3Credentials []V3Credentials

	// DeviceGroups selects the objects walked on this device.
	DeviceGroups []string
}

// DeviceDefaults holds the fleet-wide fallbacks read from the defaults tree.
type DeviceDefaults struct {
	Port          int
	Timeout       int
	Retries       int
	Version       string
	Communities   []string
	V3Credentials []V3Credentials
	DeviceGroups  []string
}

// V3Credentials holds a single set of SNMPv3 security parameters.
type V3Credentials struct {
	Username string `yaml:"username"`

	// AuthenticationProtocol is one of: noauth, md5, sha, sha224, sha256, sha384, sha512.
	AuthenticationProtocol   string `yaml:"authentication_protocol"`
	AuthenticationPassphrase string `yaml:"authentication_passphrase"`

	// PrivacyProtocol is one of: nopriv, des, aes, aes192, aes256, aes192c, aes256c.
	PrivacyProtocol   string `yaml:"privacy_protocol"`
	PrivacyPassphrase string `yaml:"privacy_passphrase"`
}

// DeviceGroup lists the object group names applied to devices in this group.
type DeviceGroup struct {
	ObjectGroups []string
}

// ObjectGroup lists the object definition keys that belong to this group.
type ObjectGroup struct {
	Objects []string
}

// rawDevice is one device (or the defaults block) as written in YAML.
type rawDevice struct {
	IP                 string          `yaml:"ip"`
	Port               int             `yaml:"port"`
	Timeout            int             `yaml:"timeout"`
	Retries            int             `yaml:"retries"`
	ExponentialTimeout bool            `yaml:"exponential_timeout"`
	Version            string          `yaml:"version"`
	Communities        []string        `yaml:"communities"`
	V3Credentials      []V3Credentials `yaml:"v3_credentials"`
	DeviceGroups       []string        `yaml:"device_groups"`
}

// merge fills the zero fields of d from src. Earlier files win.
func (d DeviceDefaults) merge(src rawDevice) DeviceDefaults {
	d.Port = firstInt(d.Port, src.Port)
	d.Timeout = firstInt(d.Timeout, src.Timeout)
	d.Retries = firstInt(d.Retries, src.Retries)
	d.Version = firstString(d.Version, src.Version)
	d.Communities = firstSlice(d.Communities, src.Communities)
	d.V3Credentials = firstSlice(d.V3Credentials, src.V3Credentials)
	d.DeviceGroups = firstSlice(d.DeviceGroups, src.DeviceGroups)
	return d
}

// resolve applies defaults d and the built-in fallbacks to e.
func (e rawDevice) resolve(d DeviceDefaults) DeviceConfig {
	return DeviceConfig{
		IP:                 e.IP,
		Port:               firstInt(e.Port, d.Port, 161),
		Timeout:            firstInt(e.Timeout, d.Timeout, 3000),
		Retries:            firstInt(e.Retries, d.Retries, 2),
		ExponentialTimeout: e.ExponentialTimeout,
		Version:            firstString(e.Version, d.Version, "2c"),
		Communities:        firstSlice(e.Communities, d.Communities),
		V3Credentials:      firstSlice(e.V3Credentials, d.V3Credentials),
		DeviceGroups:       firstSlice(e.DeviceGroups, d.DeviceGroups),
	}
}

func firstInt(vs ...int) int {
	for _, v := range vs {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstSlice[T any](vs ...[]T) []T {
	for _, v := range vs {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
