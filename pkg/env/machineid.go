package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// DefaultDeviceID derives a stable panel ID from the machine ID,
// falling back to the hostname.
func DefaultDeviceID() string {
	if id, err := machineid.ProtectedID("panel"); err == nil && len(id) >= 12 {
		return "panel-" + id[:12]
	}
	if host, err := os.Hostname(); err == nil {
		return "panel-" + host
	}
	return "panel"
}
