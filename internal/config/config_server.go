package config

// ServerConfig configures the process's own listen ports: health/metrics
// for the CLI/daemon entrypoint, nothing gateway-specific.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HealthPort  int    `yaml:"health_port"`
	MetricsPort int    `yaml:"metrics_port"`
}
