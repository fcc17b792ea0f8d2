package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/lgmbus_gateway/pkg/pathing"
)

var ActiveGatewayConfig *GatewayConfig

// LoadGatewayConfig reads gateway.toml from the config dir, writing a
// default file on first run.
func LoadGatewayConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "gateway.toml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &GatewayConfig{
			SerialDevice:   "/dev/ttyUSB0",
			Baudrate:       2400,
			MonitorAddress: "127.0.0.1",
			MonitorPort:    9139,
			DiagDbPath:     pathing.GetDiagDbPath(),
		}
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveGatewayConfig = cfg
		return nil
	}

	var cfg GatewayConfig
	_, err := toml.DecodeFile(configPath, &cfg)
	if err != nil {
		return err
	}
	ActiveGatewayConfig = &cfg
	return nil
}
