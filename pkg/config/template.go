package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrConfigExists = errors.New("config file already exists")

// DefaultTemplate is written by `gmgate init`. Values may reference
// environment variables with the dollar-brace syntax.
const DefaultTemplate = `# gm-gate configuration
log_level: INFO
dev_mode: false

security:
  authorized_users: []   # user ids allowed to respond; empty allows everyone
  redact_patterns: [password, secret, token, api_key, private_key]
  log_unauthorized_attempts: true
  work_dir: "."

timeouts:
  permission_timeout_seconds: 300   # 30..3600
  default_action: deny              # approve | deny

rate_limit:
  requests_per_minute: 30
  denial_backoff_base: 5
  denial_backoff_max: 300
  denial_threshold: 3

audit:
  enabled: true
  log_path: gmgate-audit.jsonl
  max_file_size_mb: 100
  rotate_count: 5

notify:
  inbox: true
  inbox_capacity: 1000
  log: true

http:
  addr: ":8080"
  api_key: ""            # agent key, sent as X-API-Key on submit
  approver_api_key: ""   # approver key for respond/callback/stream; empty disables them
  throttle_rps: 5
  throttle_burst: 10

# Auto-approve policies, first enabled match wins.
policies: []
#  - name: auto-approve-src-files
#    enabled: true
#    action: file_create
#    pattern: "src/**/*.{ts,tsx,js,jsx}"
#    max_risk: medium
`

// WriteDefault writes DefaultTemplate to path. It refuses to overwrite an
// existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultTemplate), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
