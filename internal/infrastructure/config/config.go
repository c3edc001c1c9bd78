package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything AirSentinel Core reads at startup. Values come
// from defaults, then the YAML file, then environment overrides, in that
// order.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Units     []UnitSeed      `yaml:"units"`
}

// ServiceConfig identifies this deployment.
type ServiceConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the broker connection the edge bridges share.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig locates the broker.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig carries broker credentials. Prefer the environment
// overrides over putting these in the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes the reconnect backoff, in seconds.
// MaxAttempts of zero retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig points at a certificate pair when HTTPS is wanted.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds HTTP server timeouts, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig holds the browser cross-origin allow-lists.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the event stream. Intervals are in seconds,
// message size in bytes.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig configures optional telemetry export. Disabled means
// the rest of the system runs with no time-series store at all.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format, and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig groups credential settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds the token signing secret and TTL in minutes.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// ReconcileConfig contains reconciliation engine tuning.
//
// Durations are given in seconds except TempTolerance, which is in
// degrees Celsius.
type ReconcileConfig struct {
	// ProtectionWindow is the default window for all units. Zero means
	// use the per-generation default.
	ProtectionWindow int `yaml:"protection_window"`

	// GenerationWindows overrides the protection window per firmware
	// family (keys: brp069, brp072, brp084, airbase, skyfi).
	GenerationWindows map[string]int `yaml:"generation_windows"`

	// DebounceCooldown is the per-category event cooldown.
	DebounceCooldown int `yaml:"debounce_cooldown"`

	// TempTolerance is the setpoint comparison tolerance in °C.
	TempTolerance float64 `yaml:"temp_tolerance"`
}

// UnitSeed describes a unit to register at startup if it is not already
// in the catalogue. Useful for small fixed installations without an
// operator driving the REST API.
type UnitSeed struct {
	Name       string   `yaml:"name"`
	Host       string   `yaml:"host"`
	Generation string   `yaml:"generation"`
	Caps       []string `yaml:"capabilities"`
}

// Load reads the YAML file at path, layers environment overrides on top,
// and validates the result. Override variables are named
// AIRSENTINEL_SECTION_KEY, for example AIRSENTINEL_MQTT_HOST.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:       "airsentinel-001",
			Name:     "AirSentinel",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/airsentinel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "airsentinel-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		Reconcile: ReconcileConfig{
			DebounceCooldown: 5,
			TempTolerance:    0.5,
		},
	}
}

// applyEnvOverrides replaces individual settings from the environment.
// Only string-valued settings that carry secrets or vary per host are
// overridable; structural tuning stays in the file.
func applyEnvOverrides(cfg *Config) {
	for name, dst := range map[string]*string{
		"AIRSENTINEL_DATABASE_PATH":  &cfg.Database.Path,
		"AIRSENTINEL_MQTT_HOST":      &cfg.MQTT.Broker.Host,
		"AIRSENTINEL_MQTT_USERNAME":  &cfg.MQTT.Auth.Username,
		"AIRSENTINEL_MQTT_PASSWORD":  &cfg.MQTT.Auth.Password,
		"AIRSENTINEL_API_HOST":       &cfg.API.Host,
		"AIRSENTINEL_INFLUXDB_TOKEN": &cfg.InfluxDB.Token,
		"AIRSENTINEL_JWT_SECRET":     &cfg.Security.JWT.Secret,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

// minJWTSecretLength is the shortest secret Validate accepts. A forgeable
// token is a command channel to physical HVAC equipment.
const minJWTSecretLength = 32

// Validate reports every configuration problem at once rather than
// failing on the first.
func (c *Config) Validate() error {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.Service.ID == "" {
		fail("service.id is required")
	}
	if c.Database.Path == "" {
		fail("database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		fail("mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		fail("api.port must be between 1 and 65535")
	}

	switch {
	case c.Security.JWT.Secret == "":
		fail("security.jwt.secret is required (set AIRSENTINEL_JWT_SECRET environment variable)")
	case len(c.Security.JWT.Secret) < minJWTSecretLength:
		fail("security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Reconcile.ProtectionWindow < 0 {
		fail("reconcile.protection_window cannot be negative")
	}
	if c.Reconcile.DebounceCooldown < 0 {
		fail("reconcile.debounce_cooldown cannot be negative")
	}
	if c.Reconcile.TempTolerance < 0 {
		fail("reconcile.temp_tolerance cannot be negative")
	}
	for gen := range c.Reconcile.GenerationWindows {
		switch gen {
		case "brp069", "brp072", "brp084", "airbase", "skyfi":
		default:
			fail("reconcile.generation_windows: unknown generation %q", gen)
		}
	}

	for i, seed := range c.Units {
		if seed.Name == "" {
			fail("units[%d].name is required", i)
		}
		if seed.Host == "" {
			fail("units[%d].host is required", i)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ProtectionWindowFor resolves the protection window for a firmware
// generation: explicit per-generation override, then the global
// override, then the fallback the caller supplies.
func (c *Config) ProtectionWindowFor(generation string, fallback time.Duration) time.Duration {
	if c.Reconcile.GenerationWindows != nil {
		if secs, ok := c.Reconcile.GenerationWindows[generation]; ok && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if c.Reconcile.ProtectionWindow > 0 {
		return time.Duration(c.Reconcile.ProtectionWindow) * time.Second
	}
	return fallback
}

// GetDebounceCooldown returns the debounce cooldown as a Duration.
func (c *Config) GetDebounceCooldown() time.Duration {
	return time.Duration(c.Reconcile.DebounceCooldown) * time.Second
}
