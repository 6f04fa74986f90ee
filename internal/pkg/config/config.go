package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var ErrMissingValue = errors.New("missing required configuration value")

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	HTTP     *HTTPConfig
	Backend  *BackendConfig
	Auth     *AuthConfig
	Device   *DeviceConfig
}

type HTTPConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	// SessionCheckInterval controls how often an open dashboard socket
	// re-resolves its session.
	SessionCheckInterval time.Duration `env:"SESSION_CHECK_INTERVAL" envDefault:"30s"`
	PingInterval         time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	LoginRateLimit       int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
}

// BackendConfig identifies the realtime store the dashboard talks to.
type BackendConfig struct {
	Kind        string `env:"BACKEND" envDefault:"postgres"`
	ProjectID   string `env:"PROJECT_ID,required,notEmpty"`
	DatabaseURL string `env:"DATABASE_URL"`
	MqttHost    string `env:"MQTT_HOST"`
	MqttUser    string `env:"MQTT_USER"`
	MqttPass    string `env:"MQTT_PASS"`
	MqttClient  string `env:"MQTT_CLIENT_ID" envDefault:"counter-dashboard"`
}

type AuthConfig struct {
	SigningKey   string        `env:"AUTH_SIGNING_KEY,required,notEmpty"`
	Issuer       string        `env:"AUTH_ISSUER" envDefault:"counter-dashboard"`
	SessionTTL   time.Duration `env:"AUTH_SESSION_TTL" envDefault:"12h"`
	CookieName   string        `env:"AUTH_COOKIE_NAME" envDefault:"session"`
	SecureCookie bool          `env:"AUTH_SECURE_COOKIE" envDefault:"false"`
	// Repository is "postgres" or "memory".
	Repository string `env:"AUTH_REPOSITORY" envDefault:"postgres"`
	// CleanupSchedule is the cron expression for dropping expired sessions.
	CleanupSchedule string `env:"AUTH_CLEANUP_SCHEDULE" envDefault:"CRON_TZ=UTC 0 3 * * *"`
	// SeedEmail and SeedPassword create a user at startup when set.
	SeedEmail    string `env:"AUTH_SEED_EMAIL"`
	SeedPassword string `env:"AUTH_SEED_PASSWORD"`
}

type DeviceConfig struct {
	// Enabled runs the simulator inside serve, for local development.
	Enabled  bool          `env:"DEVICE_SIMULATOR" envDefault:"false"`
	Interval time.Duration `env:"DEVICE_INTERVAL" envDefault:"2s"`
	Step     int64         `env:"DEVICE_STEP" envDefault:"1"`
}

// Load reads an optional dotenv file and parses the environment. A missing
// env file is not an error, a missing required value is.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			zap.L().Warn("could not load env file, continuing with process environment", zap.String("file", envFile), zap.Error(err))
		}
	}

	cfg := &Config{
		HTTP:    &HTTPConfig{},
		Backend: &BackendConfig{},
		Auth:    &AuthConfig{},
		Device:  &DeviceConfig{},
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Require returns ErrMissingValue naming the first empty value. Values are
// given as name, value pairs.
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, pairs[i])
		}
	}
	return nil
}
