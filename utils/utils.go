package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fieldops-backend/models"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// GetConfig read the configuration from environment variables or config files
func GetConfig() (*models.Config, error) {
	config, err := Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return config, nil
}

// Load initializes and returns the application configuration using Viper
func Load() (*models.Config, error) {
	v := viper.New()

	// Set configuration file details
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../")
	v.AddConfigPath("../../")

	setDefaults(v)

	// Enable environment variable support
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Config file not found (%v), using defaults and environment variables\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	// Handle nested JSON structure from config.json
	if v.IsSet("app") {
		flattenNestedConfig(v)
	}

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("app_name", "FieldOps Backend")
	v.SetDefault("app_version", "1.0.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", "8081")

	// JWT defaults
	v.SetDefault("jwt_secret", "your-super-secret-jwt-key-change-this-in-production")

	// AWS defaults
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("dynamodb_endpoint", "")
	v.SetDefault("dynamodb_table_prefix", "dev")

	// Audit ledger defaults
	v.SetDefault("audit_transactional", true)
	v.SetDefault("audit_retry_attempts", 3)
	v.SetDefault("audit_retry_delay", 200*time.Millisecond)

	// Work order policy defaults (product policy, do not hardcode elsewhere)
	v.SetDefault("min_report_evidence", 4)

	// Storage defaults
	v.SetDefault("storage_timeout", 5*time.Second)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// CORS defaults
	v.SetDefault("cors_origins", []string{"*"})

	// Base Path default
	v.SetDefault("basePath", "/api/v1")

	// Tables provisioned by the infrastructure worker
	v.SetDefault("tables", []string{"workorders", "audit", "projects", "points"})

	// Audit sweep defaults (daily at 03:00)
	v.SetDefault("sweep_schedule", "0 0 3 * * *")
	v.SetDefault("sweep_horizon", 24*time.Hour)
}

// validate checks if all required configuration is provided
func validate(c *models.Config) error {
	if c.JWTSecret == "your-super-secret-jwt-key-change-this-in-production" && c.AppEnv == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production environment")
	}

	if c.AuditRetryAttempts < 1 {
		return fmt.Errorf("audit_retry_attempts must be at least 1")
	}

	if c.MinReportEvidence < 1 {
		return fmt.Errorf("min_report_evidence must be at least 1")
	}

	if c.AppEnv == "production" && c.AWSAccessKeyID == "" {
		fmt.Println("No AWS credentials provided, assuming IAM role is used")
	}

	return nil
}

// flattenNestedConfig flattens the nested JSON structure to flat keys for easier mapping
func flattenNestedConfig(v *viper.Viper) {
	// App section
	if v.IsSet("app.name") {
		v.Set("app_name", v.GetString("app.name"))
	}
	if v.IsSet("app.version") {
		v.Set("app_version", v.GetString("app.version"))
	}
	if v.IsSet("app.env") {
		v.Set("app_env", v.GetString("app.env"))
	}
	if v.IsSet("app.host") {
		v.Set("app_host", v.GetString("app.host"))
	}
	if v.IsSet("app.port") {
		v.Set("app_port", v.GetString("app.port"))
	}

	// JWT section
	if v.IsSet("jwt.secret") {
		v.Set("jwt_secret", v.GetString("jwt.secret"))
	}

	// AWS section
	if v.IsSet("aws.region") {
		v.Set("aws_region", v.GetString("aws.region"))
	}
	if v.IsSet("aws.access_key_id") {
		v.Set("aws_access_key_id", v.GetString("aws.access_key_id"))
	}
	if v.IsSet("aws.secret_access_key") {
		v.Set("aws_secret_access_key", v.GetString("aws.secret_access_key"))
	}
	if v.IsSet("aws.dynamodb_endpoint") {
		v.Set("dynamodb_endpoint", v.GetString("aws.dynamodb_endpoint"))
	}
	if v.IsSet("aws.dynamodb_table_prefix") {
		v.Set("dynamodb_table_prefix", v.GetString("aws.dynamodb_table_prefix"))
	}

	// Audit section
	if v.IsSet("audit.transactional") {
		v.Set("audit_transactional", v.GetBool("audit.transactional"))
	}
	if v.IsSet("audit.retry_attempts") {
		v.Set("audit_retry_attempts", v.GetInt("audit.retry_attempts"))
	}
	if v.IsSet("audit.retry_delay") {
		v.Set("audit_retry_delay", v.GetDuration("audit.retry_delay"))
	}

	// Work order section
	if v.IsSet("workorder.min_report_evidence") {
		v.Set("min_report_evidence", v.GetInt("workorder.min_report_evidence"))
	}

	// Storage section
	if v.IsSet("storage.timeout") {
		v.Set("storage_timeout", v.GetDuration("storage.timeout"))
	}

	// Logging section
	if v.IsSet("logging.level") {
		v.Set("log_level", v.GetString("logging.level"))
	}
	if v.IsSet("logging.format") {
		v.Set("log_format", v.GetString("logging.format"))
	}

	// CORS section
	if v.IsSet("cors.origins") {
		v.Set("cors_origins", v.GetStringSlice("cors.origins"))
	}

	// Sweep section
	if v.IsSet("sweep.schedule") {
		v.Set("sweep_schedule", v.GetString("sweep.schedule"))
	}
	if v.IsSet("sweep.horizon") {
		v.Set("sweep_horizon", v.GetDuration("sweep.horizon"))
	}

	// Base Path
	if v.IsSet("basePath") {
		v.Set("basePath", v.GetString("basePath"))
	}
}

// PrintPrettyJSON takes any struct or map and prints it as pretty JSON
func PrintPrettyJSON(data interface{}) string {
	prettyJSON, err := json.MarshalIndent(data, "", "    ") // 4 spaces indent
	if err != nil {
		fmt.Println("Failed to generate JSON:", err)
		return ""
	}
	return string(prettyJSON)
}

// GenerateUUID returns a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}
