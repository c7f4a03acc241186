package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter client config.
func Template() string {
	return clientTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(clientTemplate), 0o600)
}

const clientTemplate = `# edgectl client configuration
addr = "127.0.0.1:5644"

# secret = "changeme"
# secret_file = "/etc/edge/mgmt.secret"

request_timeout = "1s"
event_timeout = "1h"

# table, json, yaml, toml or raw
format = "table"

# extra attempts for timed-out reads; writes are never retried
retries = 0
retry_initial_delay = "250ms"
retry_max_delay = "5s"

# serve /health and /metrics while listening for events
# metrics_addr = "127.0.0.1:9464"
# cors_origins = ["http://localhost:3000"]

[[printers]]
command = "interfaces"
columns = ["name", "address", "rx", "tx"]

[[printers]]
command = "peers"
columns = ["peer", "state", "since"]
headers = ["PEER", "STATE", "SINCE"]
`
