package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/pathing"
	"github.com/sirupsen/logrus"
)

// Settings is the persisted operator-facing configuration record, stored
// as WMB_SETTINGS. Missing or corrupt on load falls back to Defaults.
type Settings struct {
	MeasureIntervalMS uint32 `toml:"measure_interval_ms"`
	CycleTimeoutMS    uint32 `toml:"cycle_timeout_ms"`
	SendDataType      uint8  `toml:"send_data_type"`
	DecryptionEnabled bool   `toml:"decryption_enabled"`
	AuthKey           []byte `toml:"auth_key"`
	AESKey            []byte `toml:"aes_key"`
	AESIV             []byte `toml:"aes_iv"`
}

// Defaults returns the factory settings record, per spec: 900s measure
// interval, 90s cycle timeout, parsed-LPP send type, decryption off.
func Defaults() Settings {
	return Settings{
		MeasureIntervalMS: 900_000,
		CycleTimeoutMS:    90_000,
		SendDataType:      0,
		DecryptionEnabled: false,
	}
}

// LoadSettings reads WMB_SETTINGS, falling back to Defaults when the file
// is missing or fails to decode.
func LoadSettings() Settings {
	path := pathing.GetSettingsPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults()
	}

	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		logrus.WithError(err).Warn("config: WMB_SETTINGS corrupt, using defaults")
		return Defaults()
	}
	return s
}

// SaveSettings persists s to WMB_SETTINGS, overwriting any existing file.
func SaveSettings(s Settings) error {
	f, err := os.Create(pathing.GetSettingsPath())
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s)
}

// ResetSettings persists Defaults to WMB_SETTINGS, implementing
// +SMRESETCONFIG.
func ResetSettings() error {
	return SaveSettings(Defaults())
}
