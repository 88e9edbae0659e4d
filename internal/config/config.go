package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"AGT_ENVIRONMENT,default=mock"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`
	MaxRequestBytes       int64         `env:"MAX_REQUEST_BYTES,default=1048576"`

	// AGT web service settings - one base URL and credential pair per
	// environment; BaseURL()/Credentials() select the active one.
	MockBaseURL       string `env:"AGT_MOCK_BASE_URL,default=http://localhost:9090/agt"`
	StagingBaseURL    string `env:"AGT_STAGING_BASE_URL,default=https://sifphomo.minfin.gov.ao/sifp-facturacao"`
	ProductionBaseURL string `env:"AGT_PRODUCTION_BASE_URL,default=https://sifp.minfin.gov.ao/sifp-facturacao"`

	StagingUsername    string `env:"AGT_STAGING_USERNAME"`
	StagingPassword    string `env:"AGT_STAGING_PASSWORD"`
	ProductionUsername string `env:"AGT_PRODUCTION_USERNAME"`
	ProductionPassword string `env:"AGT_PRODUCTION_PASSWORD"`

	// outbound call discipline
	CallTimeout   time.Duration `env:"AGT_TIMEOUT,default=30s"`
	MaxRetries    int           `env:"AGT_MAX_RETRIES,default=3"`
	OutboundRPS   float64       `env:"AGT_OUTBOUND_RPS,default=5"`
	OutboundBurst int           `env:"AGT_OUTBOUND_BURST,default=5"`

	// issuer identity attached to every submission
	IssuerTaxID       string `env:"ISSUER_TAX_ID,required=true"`
	SoftwareProductID string `env:"SOFTWARE_PRODUCT_ID,default=agt-bridge"`
	SoftwareVersion   string `env:"SOFTWARE_VERSION,default=dev"`
	SoftwareCertNo    string `env:"SOFTWARE_CERT_NO"`

	// document/envelope signing - optional; submissions proceed unsigned
	// when no key is configured
	SigningKeyPath string `env:"SIGNING_KEY_PATH"`
	SigningKeyID   string `env:"SIGNING_KEY_ID,default=agt-bridge-key"`

	// backup store settings - the JSON file is the default; when
	// DATABASE_URL is set the Postgres store is used instead (required for
	// multi-instance deployments)
	BackupFilePath      string        `env:"BACKUP_FILE_PATH,default=./agt-backup.json"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
}

var validEnvs = map[string]bool{
	"mock":       true,
	"staging":    true,
	"production": true,
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BaseURL returns the AGT service base URL for the configured environment.
func (cfg *ServerEnvironment) BaseURL() string {
	switch cfg.Environment {
	case "staging":
		return cfg.StagingBaseURL
	case "production":
		return cfg.ProductionBaseURL
	default:
		return cfg.MockBaseURL
	}
}

// Credentials returns the basic-auth credential pair for the configured
// environment. The mock environment is unauthenticated.
func (cfg *ServerEnvironment) Credentials() (username, password string) {
	switch cfg.Environment {
	case "staging":
		return cfg.StagingUsername, cfg.StagingPassword
	case "production":
		return cfg.ProductionUsername, cfg.ProductionPassword
	default:
		return "", ""
	}
}

// validateConfig checks for required env variables
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid AGT_ENVIRONMENT: %s", cfg.Environment)
	}

	if cfg.CallTimeout <= 0 {
		return fmt.Errorf("AGT_TIMEOUT must be greater than 0")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("AGT_MAX_RETRIES must be 0 or greater")
	}

	if cfg.Environment == "production" && (cfg.ProductionUsername == "" || cfg.ProductionPassword == "") {
		return fmt.Errorf("AGT_PRODUCTION_USERNAME and AGT_PRODUCTION_PASSWORD are required in the production environment")
	}

	// Validate database pool configuration
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	return nil
}
