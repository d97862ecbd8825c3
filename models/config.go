package models

import "time"

// Config holds all configuration for the application
type Config struct {
	// Application
	AppName    string `mapstructure:"app_name"`
	AppVersion string `mapstructure:"app_version"`
	AppEnv     string `mapstructure:"app_env"`
	AppHost    string `mapstructure:"app_host"`
	AppPort    string `mapstructure:"app_port"`

	// JWT (actor extraction only; token issuing lives in the identity service)
	JWTSecret string `mapstructure:"jwt_secret"`

	// AWS
	AWSRegion           string `mapstructure:"aws_region"`
	AWSAccessKeyID      string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey  string `mapstructure:"aws_secret_access_key"`
	DynamoDBEndpoint    string `mapstructure:"dynamodb_endpoint"`
	DynamoDBTablePrefix string `mapstructure:"dynamodb_table_prefix"`

	// Audit ledger
	// AuditTransactional selects the ledger strategy at construction time:
	// true pairs entity and audit writes in one TransactWriteItems call,
	// false writes sequentially with bounded audit retries.
	AuditTransactional bool          `mapstructure:"audit_transactional"`
	AuditRetryAttempts int           `mapstructure:"audit_retry_attempts"`
	AuditRetryDelay    time.Duration `mapstructure:"audit_retry_delay"`

	// Work order policy
	MinReportEvidence int `mapstructure:"min_report_evidence"`

	// Storage
	StorageTimeout time.Duration `mapstructure:"storage_timeout"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// CORS
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Base Path
	BasePath string `mapstructure:"basePath"`

	// Tables provisioned by the infrastructure worker
	Tables []string `mapstructure:"tables"`

	// Audit sweep
	SweepSchedule string        `mapstructure:"sweep_schedule"`
	SweepHorizon  time.Duration `mapstructure:"sweep_horizon"`
}
