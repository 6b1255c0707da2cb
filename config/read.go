package config

import (
	"os"
	"strings"

	"github.com/go-ini/ini"
	"github.com/go-playground/validator/v10"
	"github.com/gorhill/cronexpr"
	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/util"
)

const globalSectionName = "pgtelemetry"

func getDefaultConfig() *ServerConfig {
	return &ServerConfig{
		SectionName:                          "default",
		DbDriver:                             "postgres",
		QueryMonitoringCountThreshold:        DefaultQueryMonitoringCountThreshold,
		QueryMonitoringResponseTimeThreshold: DefaultQueryMonitoringResponseTimeThreshold,
		MaxQueryLength:                       DefaultMaxQueryLength,
		MaxConnections:                       DefaultMaxConnections,
		ConnectTimeoutSeconds:                DefaultConnectTimeoutSeconds,
		StatementTimeoutMs:                   DefaultStatementTimeoutMs,
		PlanTimeoutMs:                        DefaultPlanTimeoutMs,
		PlanCacheSize:                        DefaultPlanCacheSize,
		EnableSlowQueries:                    true,
		EnableWaitEvents:                     true,
		EnableBlockingSessions:               true,
		EnableIndividualQueries:              true,
		EnableExecutionPlans:                 true,
		AshSampleIntervalSeconds:             DefaultAshSampleIntervalSeconds,
		AshRetentionSeconds:                  DefaultAshRetentionSeconds,
		AshMaxMemoryMB:                       DefaultAshMaxMemoryMB,
	}
}

// DefaultServerConfig - Instance settings as they are before any config file or environment is applied
func DefaultServerConfig(sectionName string) ServerConfig {
	config := getDefaultConfig()
	config.SectionName = sectionName
	return *config
}

func getDefaultGlobalConfig() Config {
	return Config{
		CollectionSchedule: DefaultCollectionSchedule,
		Outputs:            []string{"nri"},
	}
}

// The environment variables are the default way to configure when running inside a container
func applyEnvironment(target interface{}) error {
	err := envdecode.Decode(target)
	if err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return err
	}
	return nil
}

func autoDetectFromHostname(config *ServerConfig) {
	host := config.GetDbHost()
	if strings.HasSuffix(host, ".rds.amazonaws.com") {
		parts := strings.SplitN(host, ".", 4)
		if len(parts) == 4 && parts[3] == "rds.amazonaws.com" { // Safety check for any escaping issues
			if config.AwsRegion == "" {
				config.AwsRegion = parts[2]
			}
		}
	}
}

// Read - Reads the configuration from the specified filename, or falls back to
// a single instance configured through the environment
func Read(logger *util.Logger, filename string) (Config, error) {
	conf := getDefaultGlobalConfig()
	defaultConfig := getDefaultConfig()

	if err := applyEnvironment(&conf); err != nil {
		return conf, &ConfigError{Err: errors.Wrap(err, "failed to read environment")}
	}
	if err := applyEnvironment(defaultConfig); err != nil {
		return conf, &ConfigError{Err: errors.Wrap(err, "failed to read environment")}
	}

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			configFile, err := ini.Load(filename)
			if err != nil {
				return conf, &ConfigError{Err: errors.Wrapf(err, "failed to load %s", filename)}
			}

			// Instance keys in the global section act as defaults for all instances
			globalSection := configFile.Section(globalSectionName)
			if err = globalSection.MapTo(&conf); err != nil {
				return conf, &ConfigError{Section: globalSectionName, Err: err}
			}
			if err = globalSection.MapTo(defaultConfig); err != nil {
				return conf, &ConfigError{Section: globalSectionName, Err: err}
			}

			for _, section := range configFile.Sections() {
				name := section.Name()
				if name == ini.DefaultSection || name == globalSectionName {
					continue
				}

				config := *defaultConfig
				config.Databases = append([]string(nil), defaultConfig.Databases...)
				if err = section.MapTo(&config); err != nil {
					return conf, &ConfigError{Section: name, Err: err}
				}
				config.SectionName = name
				conf.Servers = append(conf.Servers, config)
			}
		} else if !os.IsNotExist(err) {
			return conf, &ConfigError{Err: errors.Wrapf(err, "failed to access %s", filename)}
		} else {
			logger.PrintVerbose("Config file %s does not exist, falling back to environment", filename)
		}
	}

	if len(conf.Servers) == 0 && (defaultConfig.DbHost != "" || defaultConfig.DbURL != "") {
		conf.Servers = append(conf.Servers, *defaultConfig)
	}

	if len(conf.Servers) == 0 {
		return conf, &ConfigError{Err: errors.New("no database instances configured (add a config section or set DB_HOST/DB_URL)")}
	}

	for idx := range conf.Servers {
		autoDetectFromHostname(&conf.Servers[idx])
	}

	if err := conf.Validate(); err != nil {
		return conf, err
	}

	return conf, nil
}

// Validate - Checks the static configuration, returning a *ConfigError for the first problem found
func (conf Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(conf); err != nil {
		return &ConfigError{Section: globalSectionName, Err: err}
	}
	if _, err := cronexpr.Parse(conf.CollectionSchedule); err != nil {
		return &ConfigError{Section: globalSectionName, Err: errors.Wrap(err, "invalid collection_schedule")}
	}

	seen := make(map[string]bool)
	for _, server := range conf.Servers {
		if seen[server.SectionName] {
			return &ConfigError{Section: server.SectionName, Err: errors.New("duplicate instance name")}
		}
		seen[server.SectionName] = true

		if err := server.validate(validate); err != nil {
			return &ConfigError{Section: server.SectionName, Err: err}
		}
	}

	return nil
}

func (config ServerConfig) validate(validate *validator.Validate) error {
	if err := validate.Struct(config); err != nil {
		return err
	}
	if len(config.GetDatabases()) == 0 {
		return errors.New("no database configured, set db_name or databases")
	}
	if config.DbUseIamAuth && config.AwsRegion == "" {
		return errors.New("db_use_iam_auth requires aws_region")
	}
	return nil
}
