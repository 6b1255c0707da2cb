package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Defaults used when neither the config file nor the environment set a value
const (
	DefaultCollectionSchedule                   = "0 * * * * * *"
	DefaultQueryMonitoringCountThreshold        = 20
	DefaultQueryMonitoringResponseTimeThreshold = 500
	DefaultMaxQueryLength                       = 4095
	DefaultMaxConnections                       = 5
	DefaultConnectTimeoutSeconds                = 30
	DefaultStatementTimeoutMs                   = 30000
	DefaultPlanTimeoutMs                        = 5000
	DefaultPlanCacheSize                        = 10000
	DefaultAshSampleIntervalSeconds             = 1
	DefaultAshRetentionSeconds                  = 3600
	DefaultAshMaxMemoryMB                       = 100
)

type Config struct {
	// Cron expression (with seconds) describing when collection cycles run
	CollectionSchedule string `ini:"collection_schedule" env:"COLLECTION_SCHEDULE" validate:"required"`

	// Output adapters to serialize each snapshot with, in order
	Outputs []string `ini:"outputs" delim:"," env:"OUTPUTS" validate:"dive,oneof=nri otlp msgpack prometheus"`

	// Where serialized payloads go: a local directory, an HTTP endpoint, or both
	OutputDirectory string `ini:"output_directory" env:"OUTPUT_DIRECTORY"`
	OutputURL       string `ini:"output_url" env:"OUTPUT_URL" validate:"omitempty,url"`

	Servers []ServerConfig
}

// ServerConfig -
//
//	Contains the information how to connect to a Postgres instance, which
//	databases on it to monitor, and which categories to collect
type ServerConfig struct {
	// Instance name, taken from the config file section
	SectionName string

	DbURL      string `ini:"db_url" env:"DB_URL" validate:"omitempty,url"`
	DbHost     string `ini:"db_host" env:"DB_HOST"`
	DbPort     int    `ini:"db_port" env:"DB_PORT" validate:"gte=0,lte=65535"`
	DbName     string `ini:"db_name" env:"DB_NAME"`
	DbUsername string `ini:"db_username" env:"DB_USERNAME"`
	DbPassword string `ini:"db_password" env:"DB_PASSWORD"`
	DbSslMode  string `ini:"db_sslmode" env:"DB_SSLMODE" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	DbDriver   string `ini:"db_driver" env:"DB_DRIVER" validate:"oneof=postgres pgx"`

	// Databases whose statistics are reported, defaults to the connection database.
	// In the environment this is a semicolon separated list.
	Databases []string `ini:"databases" delim:"," env:"DATABASES"`

	// Generate an RDS IAM authentication token instead of using db_password
	DbUseIamAuth       bool   `ini:"db_use_iam_auth" env:"DB_USE_IAM_AUTH"`
	AwsRegion          string `ini:"aws_region" env:"AWS_REGION"`
	AwsAccessKeyID     string `ini:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `ini:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`

	// Top-N thresholds. Out of range values are clamped at collection time, not rejected here.
	QueryMonitoringCountThreshold        int `ini:"query_monitoring_count_threshold" env:"QUERY_MONITORING_COUNT_THRESHOLD"`
	QueryMonitoringResponseTimeThreshold int `ini:"query_monitoring_response_time_threshold" env:"QUERY_MONITORING_RESPONSE_TIME_THRESHOLD"`

	MaxQueryLength        int `ini:"max_query_length" env:"MAX_QUERY_LENGTH" validate:"gte=1"`
	MaxConnections        int `ini:"max_connections" env:"MAX_CONNECTIONS" validate:"gte=1"`
	ConnectTimeoutSeconds int `ini:"connect_timeout_seconds" env:"CONNECT_TIMEOUT_SECONDS" validate:"gte=1"`
	StatementTimeoutMs    int `ini:"statement_timeout_ms" env:"STATEMENT_TIMEOUT_MS" validate:"gte=100"`
	PlanTimeoutMs         int `ini:"plan_timeout_ms" env:"PLAN_TIMEOUT_MS" validate:"gte=100"`
	PlanCacheSize         int `ini:"plan_cache_size" env:"PLAN_CACHE_SIZE" validate:"gte=1"`

	EnableSlowQueries       bool `ini:"enable_slow_queries" env:"ENABLE_SLOW_QUERIES"`
	EnableWaitEvents        bool `ini:"enable_wait_events" env:"ENABLE_WAIT_EVENTS"`
	EnableBlockingSessions  bool `ini:"enable_blocking_sessions" env:"ENABLE_BLOCKING_SESSIONS"`
	EnableIndividualQueries bool `ini:"enable_individual_queries" env:"ENABLE_INDIVIDUAL_QUERIES"`
	EnableExecutionPlans    bool `ini:"enable_execution_plans" env:"ENABLE_EXECUTION_PLANS"`

	// Active session history sampling, runs independently of the collection schedule
	EnableAsh                bool `ini:"enable_ash" env:"ENABLE_ASH"`
	AshSampleIntervalSeconds int  `ini:"ash_sample_interval_seconds" env:"ASH_SAMPLE_INTERVAL_SECONDS" validate:"gte=1"`
	AshRetentionSeconds      int  `ini:"ash_retention_seconds" env:"ASH_RETENTION_SECONDS" validate:"gtefield=AshSampleIntervalSeconds"`
	AshMaxMemoryMB           int  `ini:"ash_max_memory_mb" env:"ASH_MAX_MEMORY_MB" validate:"gte=1"`

	// Defaults to retention / interval
	AshMaxSamples int `ini:"ash_max_samples" env:"ASH_MAX_SAMPLES" validate:"gte=0"`

	DbSslModePreferFailed bool
}

// GetConnectString - Gets the database configuration as a keyword/value string
// that both lib/pq and pgx accept
func (config ServerConfig) GetConnectString(passwordOverride string) string {
	var dbSslMode string

	dbinfo := []string{}

	dbPassword := config.GetDbPassword()
	if passwordOverride != "" {
		dbPassword = passwordOverride
	}

	dbSslMode = config.DbSslMode
	if config.DbURL != "" && dbSslMode == "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil {
			dbSslMode = u.Query().Get("sslmode")
		}
	}
	if dbSslMode == "" {
		dbSslMode = "prefer"
	}

	// Handle SSL mode prefer
	if dbSslMode == "prefer" {
		if config.DbSslModePreferFailed {
			dbSslMode = "disable"
		} else {
			dbSslMode = "require"
		}
	}

	if username := config.GetDbUsername(); username != "" {
		dbinfo = append(dbinfo, fmt.Sprintf("user='%s'", escapeConnectValue(username)))
	}
	if dbPassword != "" {
		dbinfo = append(dbinfo, fmt.Sprintf("password='%s'", escapeConnectValue(dbPassword)))
	}
	if dbName := config.GetDbName(); dbName != "" {
		dbinfo = append(dbinfo, fmt.Sprintf("dbname='%s'", escapeConnectValue(dbName)))
	}
	dbinfo = append(dbinfo, fmt.Sprintf("host='%s'", escapeConnectValue(config.GetDbHost())))
	dbinfo = append(dbinfo, fmt.Sprintf("port=%d", config.GetDbPortOrDefault()))
	dbinfo = append(dbinfo, fmt.Sprintf("sslmode=%s", dbSslMode))
	dbinfo = append(dbinfo, fmt.Sprintf("connect_timeout=%d", config.ConnectTimeoutSeconds))
	dbinfo = append(dbinfo, "application_name=pgtelemetry")

	return strings.Join(dbinfo, " ")
}

func escapeConnectValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, "'", `\'`)
}

// GetDbHost - Gets the database hostname from the given configuration
func (config ServerConfig) GetDbHost() string {
	if config.DbHost != "" {
		return config.DbHost
	}
	if config.DbURL != "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}

	return "localhost"
}

// GetDbPortOrDefault - Gets the database port from the given configuration, or 5432 if unset
func (config ServerConfig) GetDbPortOrDefault() int {
	if config.DbPort != 0 {
		return config.DbPort
	}
	if config.DbURL != "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil && u.Port() != "" {
			port, _ := strconv.Atoi(u.Port())
			return port
		}
	}

	return 5432
}

// GetDbUsername - Gets the database username from the given configuration
func (config ServerConfig) GetDbUsername() string {
	if config.DbUsername != "" {
		return config.DbUsername
	}
	if config.DbURL != "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil && u.User != nil {
			return u.User.Username()
		}
	}

	return ""
}

// GetDbPassword - Gets the database password from the given configuration
func (config ServerConfig) GetDbPassword() string {
	if config.DbPassword != "" {
		return config.DbPassword
	}
	if config.DbURL != "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil && u.User != nil {
			password, _ := u.User.Password()
			return password
		}
	}

	return ""
}

// GetDbName - Gets the database name from the given configuration
func (config ServerConfig) GetDbName() string {
	if config.DbName != "" {
		return config.DbName
	}
	if config.DbURL != "" {
		u, _ := url.Parse(config.DbURL)
		if u != nil && len(u.Path) > 1 {
			return u.Path[1:]
		}
	}

	return ""
}

// GetDatabases - Databases to report statistics for, falling back to the connection database
func (config ServerConfig) GetDatabases() []string {
	var databases []string
	for _, name := range config.Databases {
		if name = strings.TrimSpace(name); name != "" {
			databases = append(databases, name)
		}
	}
	if len(databases) == 0 && config.GetDbName() != "" {
		databases = []string{config.GetDbName()}
	}
	return databases
}

// GetAshMaxSamples - Maximum number of retained session samples
func (config ServerConfig) GetAshMaxSamples() int {
	if config.AshMaxSamples > 0 {
		return config.AshMaxSamples
	}
	if config.AshSampleIntervalSeconds <= 0 {
		return config.AshRetentionSeconds
	}
	return config.AshRetentionSeconds / config.AshSampleIntervalSeconds
}
