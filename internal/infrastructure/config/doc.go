// Package config provides 12-factor configuration for the monitoring agent.
//
// Configuration is loaded from environment variables with sensible defaults.
// Local agent settings may additionally come from a TOML, YAML or JSON file;
// they are merged under the collector's connect response.
//
// Configuration Sections:
//   - Collector: endpoint, license key, content encoding, timeout
//   - App: application names and the settings file path
//   - Harvest: sample buffer size and connect backoff bounds
//   - Logging: level and output format
//   - Server: sample application port and /metrics toggle
//
// Environment Variables:
//   - MONITOR_COLLECTOR_HOST, MONITOR_COLLECTOR_PORT, MONITOR_COLLECTOR_SSL
//   - MONITOR_LICENSE_KEY, MONITOR_CONTENT_ENCODING, MONITOR_COLLECTOR_TIMEOUT
//   - MONITOR_APP_NAME, MONITOR_SETTINGS_FILE
//   - MONITOR_HARVEST_MAX_SAMPLES, MONITOR_BACKOFF_MIN, MONITOR_BACKOFF_MAX
//   - LOG_LEVEL, LOG_DEV, PORT, METRICS_ENABLED
package config
