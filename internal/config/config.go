/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables (with an
 * optional .env file), providing a centralized way to manage settings for the
 * server, worker, and scheduler binaries.
 *
 * @dependencies
 * - github.com/spf13/viper: Configuration loading.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	// First-party API auth.
	BearerTokenSecret string `mapstructure:"BEARER_TOKEN_SECRET"`

	// Partner endpoint guards. Comma-separated lists.
	VisaCIDRAllowlist        string `mapstructure:"VISA_CIDR_ALLOWLIST"`
	FirstDataCertSerials     string `mapstructure:"FIRSTDATA_CERT_SERIALS"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Amex OAuth/MAC credentials.
	AmexBaseURL      string `mapstructure:"AMEX_BASE_URL"`
	AmexClientID     string `mapstructure:"AMEX_CLIENT_ID"`
	AmexClientSecret string `mapstructure:"AMEX_CLIENT_SECRET"`
	AmexAPIKey       string `mapstructure:"AMEX_API_KEY"`
	AmexPartnerID    string `mapstructure:"AMEX_PARTNER_ID"`

	// First Data publisher endpoint (outbound offer registration).
	FirstDataEndpoint string `mapstructure:"FIRSTDATA_ENDPOINT"`
	RedisTokenPrefix  string `mapstructure:"REDIS_TOKEN_PREFIX"`

	// MasterCard REST credentials.
	MasterCardBaseURL     string `mapstructure:"MASTERCARD_BASE_URL"`
	MasterCardBearerToken string `mapstructure:"MASTERCARD_BEARER_TOKEN"`

	// Visa endpoint-message service (outbound statement credits).
	VisaBaseURL string `mapstructure:"VISA_BASE_URL"`

	// Job pipeline.
	SchedulerPromoteSchedule string `mapstructure:"SCHEDULER_PROMOTE_SCHEDULE"`
	ReportSchedule           string `mapstructure:"REPORT_SCHEDULE"`
	ExtractScanSchedule      string `mapstructure:"EXTRACT_SCAN_SCHEDULE"`
	StatementCreditSchedule  string `mapstructure:"STATEMENT_CREDIT_SCHEDULE"`
	ReportFileDecoration     string `mapstructure:"REPORT_FILE_DECORATION"`
	ExtractDirectory         string `mapstructure:"EXTRACT_DIRECTORY"`
	ReportDirectory          string `mapstructure:"REPORT_DIRECTORY"`
}

// SplitList parses a comma-separated config value into its entries.
func SplitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SCHEDULER_PROMOTE_SCHEDULE", "@every 1m")
	viper.SetDefault("REPORT_SCHEDULE", "0 6 * * *")
	viper.SetDefault("EXTRACT_SCAN_SCHEDULE", "@every 5m")
	viper.SetDefault("STATEMENT_CREDIT_SCHEDULE", "@every 10m")
	viper.SetDefault("REPORT_FILE_DECORATION", "REWARDS")
	viper.SetDefault("EXTRACT_DIRECTORY", "/var/spool/extracts")
	viper.SetDefault("REPORT_DIRECTORY", "/var/spool/reports")
	viper.SetDefault("AMEX_BASE_URL", "https://api.americanexpress.com")
	viper.SetDefault("REDIS_TOKEN_PREFIX", "commerce:tokens")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BEARER_TOKEN_SECRET")
	_ = viper.BindEnv("VISA_CIDR_ALLOWLIST")
	_ = viper.BindEnv("FIRSTDATA_CERT_SERIALS")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("AMEX_BASE_URL")
	_ = viper.BindEnv("AMEX_CLIENT_ID")
	_ = viper.BindEnv("AMEX_CLIENT_SECRET")
	_ = viper.BindEnv("AMEX_API_KEY")
	_ = viper.BindEnv("AMEX_PARTNER_ID")
	_ = viper.BindEnv("FIRSTDATA_ENDPOINT")
	_ = viper.BindEnv("REDIS_TOKEN_PREFIX")
	_ = viper.BindEnv("MASTERCARD_BASE_URL")
	_ = viper.BindEnv("MASTERCARD_BEARER_TOKEN")
	_ = viper.BindEnv("VISA_BASE_URL")
	_ = viper.BindEnv("SCHEDULER_PROMOTE_SCHEDULE")
	_ = viper.BindEnv("REPORT_SCHEDULE")
	_ = viper.BindEnv("EXTRACT_SCAN_SCHEDULE")
	_ = viper.BindEnv("STATEMENT_CREDIT_SCHEDULE")
	_ = viper.BindEnv("REPORT_FILE_DECORATION")
	_ = viper.BindEnv("EXTRACT_DIRECTORY")
	_ = viper.BindEnv("REPORT_DIRECTORY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	return config, err
}
