package config

// DefaultConfigYAML is written by `crashguard init`.
const DefaultConfigYAML = `# crashguard configuration
#
# Values not specified here use the built-in defaults. Every key can be
# overridden with a CRASHGUARD_ environment variable, e.g.
# CRASHGUARD_CRASH_DIR=/var/tmp/reports.

log:
  level: info
  format: auto

crash:
  # Where crash-<session>.json files land.
  # dir: ~/.cache/crashguard/reports
  max_reports: 10
  # Subset of SIGABRT, SIGILL, SIGSEGV, SIGBUS, SIGFPE. Empty means all.
  signals: []
  goroutine_dump: false
  runtime_output: true
  host_metadata: true
  # Records the environment with secrets redacted.
  environment: false
  metadata: {}

notice:
  enabled: true
  timeout: 30s

inbox:
  # Defaults to inbox.db next to the report directory.
  path: ""

server:
  host: 127.0.0.1
  port: 8787
  cors_origins: []
`
