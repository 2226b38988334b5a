package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig selects and configures the history storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // "memory" or "database"
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// MemoryConfig holds in-memory/JSON storage backend settings.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// ReconcileConfig holds live-reconciliation timing settings.
type ReconcileConfig struct {
	PollInterval  time.Duration
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	MaxReconnects int
	FetchTimeout  time.Duration
}

// Load reads configuration from a JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("api.serverUrl", "http://localhost:8000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("ws.url", "ws://localhost:8000/ws/dashboard")

	viper.SetDefault("reconcile.pollIntervalSeconds", 30)
	viper.SetDefault("reconcile.reconnectBaseSeconds", 3)
	viper.SetDefault("reconcile.reconnectMaxSeconds", 30)
	viper.SetDefault("reconcile.maxReconnects", 0) // 0 retries forever
	viper.SetDefault("reconcile.fetchTimeoutSeconds", 10)

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.allowedOrigins", []string{"*"})

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "parcel_tracker")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "parcel-tracker-metrics")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./snapshots")
	viper.SetDefault("storage.memory.compressOutput", true)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "parcel-tracker")
	viper.SetDefault("otel.batchTimeoutSeconds", 5)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", false)

	viper.SetDefault("session.role", "dispatcher")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "parcel-tracker")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topic", "fleet/drivers/+/location")

	viper.SetConfigName("parcel_tracker.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: time.Duration(viper.GetInt("otel.batchTimeoutSeconds")) * time.Second,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetReconcileConfig returns the live-reconciliation timing configuration.
func GetReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		PollInterval:  time.Duration(viper.GetInt("reconcile.pollIntervalSeconds")) * time.Second,
		ReconnectBase: time.Duration(viper.GetInt("reconcile.reconnectBaseSeconds")) * time.Second,
		ReconnectMax:  time.Duration(viper.GetInt("reconcile.reconnectMaxSeconds")) * time.Second,
		MaxReconnects: viper.GetInt("reconcile.maxReconnects"),
		FetchTimeout:  time.Duration(viper.GetInt("reconcile.fetchTimeoutSeconds")) * time.Second,
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStringSlice returns a string slice config value.
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}
