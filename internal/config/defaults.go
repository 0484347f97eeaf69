package config

// DefaultConfigYAML contains the default configuration YAML content.
// It is written by `assetpulse init` so new deployments start from an
// explicit, commented config.
const DefaultConfigYAML = `# assetpulse configuration
#
# Values not specified here use sensible defaults.

log:
  # debug, info, warn, error
  level: info
  # auto, text, json (auto picks pretty output on a TTY, JSON otherwise)
  format: auto

storage:
  # sqlite (recommended) or json (single-file, no native deps)
  backend: sqlite
  path: .assetpulse/state.db

server:
  host: localhost
  port: 8080
  cors_origins: ["*"]
  timeout_secs: 60

events:
  buffer_size: 100
`
