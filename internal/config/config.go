// Package config defines the process configuration for the outbreak service
// and its operator CLI. Configuration is loaded once at startup and is
// immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"outbreakwatch/internal/types"
)

// SecretString is an alias for types.SecretString so configuration dumps
// never print credentials.
type SecretString = types.SecretString

// Store backends.
const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config is the top-level configuration. Components receive only the subset
// they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"outbreakwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Store         StoreConfig
	AI            AIConfig
	Engine        EngineConfig
	Auth          AuthConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP listener and traffic settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	RateLimitPerHour   int           `envconfig:"RATE_LIMIT_PER_HOUR" default:"600" validate:"gte=0"` // 0 disables
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"postgres" validate:"oneof=postgres firestore"`

	DatabaseURL       SecretString  `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres"`
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	FirestoreProjectID  string       `envconfig:"FIRESTORE_PROJECT_ID" validate:"required_if=Backend firestore"`
	FirebaseCredentials SecretString `envconfig:"FIREBASE_CREDENTIALS"` // base64 service-account JSON
}

// AIConfig configures the narrative summary generator. An empty key disables
// summaries.
type AIConfig struct {
	OpenAIAPIKey SecretString  `envconfig:"OPENAI_API_KEY"`
	Model        string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL      string        `envconfig:"OPENAI_BASE_URL" validate:"omitempty,url"`
	Timeout      time.Duration `envconfig:"AI_TIMEOUT" default:"15s" validate:"gt=0"`
	MaxTokens    int           `envconfig:"AI_MAX_TOKENS" default:"200" validate:"gt=0"`
}

// EngineConfig holds engine switches. Thresholds are constants in the
// outbreak package.
type EngineConfig struct {
	BaselineEnabled bool `envconfig:"BASELINE_ENABLED" default:"true"`
}

// AuthConfig configures bearer-token verification. An empty secret disables
// authentication, which is only accepted for APP_ENV=local.
type AuthConfig struct {
	JWTSecret   SecretString `envconfig:"AUTH_JWT_SECRET"`
	JWTIssuer   string       `envconfig:"AUTH_JWT_ISSUER"`
	JWTAudience string       `envconfig:"AUTH_JWT_AUDIENCE"`
}

// AWSConfig holds AWS region and resource identifiers.
type AWSConfig struct {
	Region      string `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"` // LocalStack; empty in prod
	AlertsQueue string `envconfig:"SQS_ALERTS_URL" validate:"omitempty,url"`
}

// ObservabilityConfig holds metrics settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"OutbreakWatch"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// IsLocal reports whether the process runs in the local environment.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// AuthEnabled reports whether bearer tokens are verified.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret.IsSet()
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
