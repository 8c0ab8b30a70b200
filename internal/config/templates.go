package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "service":
		return serviceTemplate, nil
	case "zones":
		return zonesTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serviceTemplate = `[serial]
device = "/dev/ttyAMA0"
baud = 19200
parity = "even"
stop_bits = 1

[protocol]
version = 1
poll_interval = "2ms"
multi_frame_timeout = "500ms"
max_frame_payload = 255

[zones]
file = "zones.toml"

[detector]
confidence_threshold = 25
inertia = 3
tracking = false
notifications = true

[admin]
listen = "127.0.0.1:7020"
cors_origins = ["http://localhost:3000"]

[log]
level = "info"
`

const zonesTemplate = `[[zone]]
id = 1
points = [[0, 0], [200, 0], [200, 120], [0, 120]]

[[zone]]
id = 2
points = [[220, 0], [420, 0], [420, 120], [220, 120]]
`
