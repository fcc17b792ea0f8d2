package pathing

import (
	"log"
	"os"
	"path/filepath"
)

// Ensure directories exist on startup
func init() {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
	}

	// Create all directories
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			err := os.MkdirAll(dir, 0755)
			if err != nil {
				log.Fatal(err)
			}
		}
	}
}

// GetDiagDbPath returns the path to the cycle-diagnostics SQLite database.
func GetDiagDbPath() string {
	return filepath.Join(GetDataDir(), "gateway-diag.db")
}

// GetSettingsPath returns the path to the persisted WMB_SETTINGS blob.
func GetSettingsPath() string {
	return filepath.Join(GetDataDir(), "WMB_SETTINGS")
}

func GetDataDir() string {
	return "/var/lib/lgmbus_gateway"
}

func GetConfigDir() string {
	return "/etc/lgmbus_gateway"
}
