package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the inspection engine service
type Config struct {
	Environment   string              `mapstructure:"environment"`
	Debug         bool                `mapstructure:"debug"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Escalation    EscalationConfig    `mapstructure:"escalation"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Security      SecurityConfig      `mapstructure:"security"`
	Access        AccessConfig        `mapstructure:"access"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig contains Redis configuration for the schema version cache
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// KafkaConfig contains Kafka producer configuration
type KafkaConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Brokers []string     `mapstructure:"brokers"`
	Topics  TopicsConfig `mapstructure:"topics"`
}

// TopicsConfig contains Kafka topic configuration
type TopicsConfig struct {
	InspectionSubmitted string `mapstructure:"inspection_submitted"`
	FaultCreated        string `mapstructure:"fault_created"`
	FaultStatusChanged  string `mapstructure:"fault_status_changed"`
	FaultEscalated      string `mapstructure:"fault_escalated"`
}

// EscalationConfig contains fault escalation configuration
type EscalationConfig struct {
	OverdueAfter  time.Duration `mapstructure:"overdue_after"`
	EmailInterval time.Duration `mapstructure:"email_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
}

// NotificationsConfig contains notification configuration
type NotificationsConfig struct {
	Email EmailConfig `mapstructure:"email"`
}

// EmailConfig contains escalation email configuration
type EmailConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"` // sendgrid, smtp
	SendGridAPIKey  string        `mapstructure:"sendgrid_api_key"`
	SMTPHost        string        `mapstructure:"smtp_host"`
	SMTPPort        int           `mapstructure:"smtp_port"`
	SMTPUsername    string        `mapstructure:"smtp_username"`
	SMTPPassword    string        `mapstructure:"smtp_password"`
	FromAddress     string        `mapstructure:"from_address"`
	FromName        string        `mapstructure:"from_name"`
	Recipients      []string      `mapstructure:"recipients"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_min"`
}

// SchedulerConfig contains scheduler configuration
type SchedulerConfig struct {
	Enabled                     bool   `mapstructure:"enabled"`
	EscalationProcessorSchedule string `mapstructure:"escalation_processor_schedule"`
	EscalationProcessorEnabled  bool   `mapstructure:"escalation_processor_enabled"`
	MetricsRefreshSchedule      string `mapstructure:"metrics_refresh_schedule"`
	MetricsRefreshEnabled       bool   `mapstructure:"metrics_refresh_enabled"`
}

// SecurityConfig contains security configuration
type SecurityConfig struct {
	EnableAuthentication bool   `mapstructure:"enable_authentication"`
	JWTSecret            string `mapstructure:"jwt_secret"`
}

// AccessConfig contains role/permission matrix configuration
type AccessConfig struct {
	MatrixPath string `mapstructure:"matrix_path"`
}

// ConnectionString builds a lib/pq DSN from the database configuration
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/inspection-engine")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SITEWATCH")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// General
	viper.SetDefault("environment", "development")
	viper.SetDefault("debug", false)

	// Server
	viper.SetDefault("server.http_port", 8087)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "sitewatch_inspections")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.cache_ttl", "168h")

	// Kafka
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.inspection_submitted", "inspection-submitted")
	viper.SetDefault("kafka.topics.fault_created", "fault-created")
	viper.SetDefault("kafka.topics.fault_status_changed", "fault-status-changed")
	viper.SetDefault("kafka.topics.fault_escalated", "fault-escalated")

	// Escalation
	viper.SetDefault("escalation.overdue_after", "24h")
	viper.SetDefault("escalation.email_interval", "24h")
	viper.SetDefault("escalation.batch_size", 100)

	// Notifications
	viper.SetDefault("notifications.email.enabled", false)
	viper.SetDefault("notifications.email.provider", "smtp")
	viper.SetDefault("notifications.email.smtp_port", 587)
	viper.SetDefault("notifications.email.timeout", "30s")
	viper.SetDefault("notifications.email.rate_limit_per_min", 60)

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.escalation_processor_schedule", "0 */5 * * * *")
	viper.SetDefault("scheduler.escalation_processor_enabled", true)
	viper.SetDefault("scheduler.metrics_refresh_schedule", "30 * * * * *")
	viper.SetDefault("scheduler.metrics_refresh_enabled", true)

	// Security
	viper.SetDefault("security.enable_authentication", false)

	// Access
	viper.SetDefault("access.matrix_path", "")
}
