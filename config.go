package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config defines the structure of the configuration file.
type Config struct {
	GitCommit               string         `yaml:"git_commit" envconfig:"LCAP_GIT_COMMIT"`
	GitTag                  string         `yaml:"git_tag" envconfig:"LCAP_GIT_TAG"`
	BuildTime               string         `yaml:"build_time" envconfig:"LCAP_BUILD_TIME"`
	IsProduction            bool           `yaml:"is_production" envconfig:"LCAP_IS_PRODUCTION"`
	LogLevel                zapcore.Level  `yaml:"log_level" envconfig:"LCAP_LOG_LEVEL"`
	LogFolder               string         `yaml:"log_folder" envconfig:"LCAP_LOG_FOLDER"`
	LogMaxSize              int            `yaml:"log_max_size" envconfig:"LCAP_LOG_MAX_SIZE"`
	OpsEndpointsEnable      bool           `yaml:"ops_endpoints_enable" envconfig:"LCAP_OPS_ENDPOINTS_ENABLE"`
	ProfilerEndpointsEnable bool           `yaml:"profiler_endpoints_enable" envconfig:"LCAP_PROFILER_ENDPOINTS_ENABLE"`
	Server                  ServerConfig   `yaml:"server"`
	Database                DatabaseConfig `yaml:"database"`
	Redis                   RedisConfig    `yaml:"redis"`
	BoltDB                  BoltDBConfig   `yaml:"boltdb"`
	Cache                   CacheConfig    `yaml:"cache"`
	Admin                   AdminConfig    `yaml:"admin"`
}

type ServerConfig struct {
	Host                    string        `yaml:"host" envconfig:"LCAP_SERVER_HOST"`
	Port                    string        `yaml:"port" envconfig:"LCAP_SERVER_PORT"`
	ReadTimeout             time.Duration `yaml:"read_timeout" envconfig:"LCAP_SERVER_READ_TIMEOUT"`
	WriteTimeout            time.Duration `yaml:"write_timeout" envconfig:"LCAP_SERVER_WRITE_TIMEOUT"`
	RequestTimeout          time.Duration `yaml:"request_timeout" envconfig:"LCAP_SERVER_REQUEST_TIMEOUT"` // Time to wait for a request to finish
	LongRequestWriteTimeout time.Duration `yaml:"long_request_write_timeout" envconfig:"LCAP_SERVER_LONG_REQUEST_WRITE_TIMEOUT"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout" envconfig:"LCAP_SERVER_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" envconfig:"LCAP_DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" envconfig:"LCAP_DATABASE_DSN" json:"-"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"LCAP_DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"LCAP_DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"LCAP_DATABASE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" envconfig:"LCAP_DATABASE_CONN_MAX_IDLE_TIME"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" envconfig:"LCAP_DATABASE_CONNECT_TIMEOUT"`
	PingRetries     int           `yaml:"ping_retries" envconfig:"LCAP_DATABASE_PING_RETRIES"`
}

type RedisConfig struct {
	Host          string        `yaml:"host" envconfig:"LCAP_REDIS_HOST"`
	Port          string        `yaml:"port" envconfig:"LCAP_REDIS_PORT"`
	DialTimeout   time.Duration `yaml:"dial_timeout" envconfig:"LCAP_REDIS_DIAL_TIMEOUT"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"LCAP_REDIS_READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write_timeout" envconfig:"LCAP_REDIS_WRITE_TIMEOUT"`
	PoolSize      int           `yaml:"pool_size" envconfig:"LCAP_REDIS_POOL_SIZE"`
	PoolTimeout   time.Duration `yaml:"pool_timeout" envconfig:"LCAP_REDIS_POOL_TIMEOUT"`
	Username      string        `yaml:"username" envconfig:"LCAP_REDIS_USERNAME"`
	Password      string        `yaml:"password" envconfig:"LCAP_REDIS_PASSWORD" json:"-"`
	DatabaseIndex int           `yaml:"db_index" envconfig:"LCAP_REDIS_DATABASE_INDEX"`
}

type BoltDBConfig struct {
	FilePath   string        `yaml:"filepath" envconfig:"LCAP_BOLTDB_FILE_PATH"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"LCAP_BOLTDB_TIMEOUT"`
	BucketName string        `yaml:"bucket_name" envconfig:"LCAP_BOLTDB_BUCKET_NAME"`
}

type CacheConfig struct {
	Enable bool          `yaml:"enable" envconfig:"LCAP_CACHE_ENABLE"`
	TTL    time.Duration `yaml:"ttl" envconfig:"LCAP_CACHE_TTL"`
	Prefix string        `yaml:"prefix" envconfig:"LCAP_CACHE_PREFIX"`
}

type AdminConfig struct {
	ListPerPage       int    `yaml:"list_per_page" envconfig:"LCAP_ADMIN_LIST_PER_PAGE"`
	RecentActions     int    `yaml:"recent_actions" envconfig:"LCAP_ADMIN_RECENT_ACTIONS"`
	Realm             string `yaml:"realm" envconfig:"LCAP_ADMIN_REALM"`
	BootstrapUsername string `yaml:"bootstrap_username" envconfig:"LCAP_ADMIN_BOOTSTRAP_USERNAME"`
	BootstrapPassword string `yaml:"bootstrap_password" envconfig:"LCAP_ADMIN_BOOTSTRAP_PASSWORD" json:"-"`
}

// LoadConfigFile provides an instance of config structure for the all application.
func LoadConfigFile(configFile string) (*Config, error) {
	file, err := os.Open(configFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := &Config{}
	yd := yaml.NewDecoder(file)
	err = yd.Decode(cfg)

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigEnvs reads the environments variables and provides an instance of the App config.
func LoadConfigEnvs(prefix string, config *Config) error {
	return envconfig.Process(prefix, config)
}

// InitConfig setup defaults values for non provided parameters
// and configures build tags values to be used if provided.
func InitConfig(config *Config, gitCommit, gitTag, buildTime string) error {
	if len(gitCommit) != 0 {
		config.GitCommit = gitCommit
	}

	if len(gitTag) != 0 {
		config.GitTag = gitTag
	}

	if len(buildTime) != 0 {
		config.BuildTime = buildTime
	}

	if len(config.Server.Host) == 0 || len(config.Server.Port) == 0 {
		return errors.New("make sure to set valid server address and port in configuration file")
	}

	if len(config.Redis.Host) == 0 || len(config.Redis.Port) == 0 {
		return errors.New("make sure to set valid redis address and port in configuration file")
	}

	if len(config.Database.Driver) == 0 {
		config.Database.Driver = DriverSQLite
	}

	if _, ok := dialects[config.Database.Driver]; !ok {
		return fmt.Errorf("database driver %q: %w", config.Database.Driver, ErrUnsupportedDriver)
	}

	if len(config.Database.DSN) == 0 {
		return errors.New("make sure to set a valid database dsn in configuration file")
	}

	if config.Admin.ListPerPage <= 0 {
		config.Admin.ListPerPage = 100
	}

	if config.Admin.RecentActions <= 0 {
		config.Admin.RecentActions = 10
	}

	if len(config.Admin.Realm) == 0 {
		config.Admin.Realm = "Library administration"
	}

	if len(config.Cache.Prefix) == 0 {
		config.Cache.Prefix = "catalog"
	}

	if config.LogMaxSize <= 0 {
		config.LogMaxSize = 10
	}

	return nil
}

// LoadAndInitConfigs loads in order the configs from various predefined sources
// then build the App configuration data.
func LoadAndInitConfigs(gitCommit, gitTag, buildTime string) (*Config, error) {
	// Setup the yaml configuration from file.
	config, err := LoadConfigFile("./config.yml")
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from file: %s", err)
	}

	// Set the environment configuration. The file is optional.
	err = godotenv.Load("./config.env")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, fmt.Errorf("failed to set environment configurations: %s", err)
	}

	// Use environment variables with prefix `LCAP`.
	err = LoadConfigEnvs("LCAP", config)
	if err != nil {
		return config, fmt.Errorf("failed to load configurations from environment: %s", err)
	}

	err = InitConfig(config, gitCommit, gitTag, buildTime)
	if err != nil {
		return config, fmt.Errorf("failed to initialize configurations: %s", err)
	}
	return config, nil
}
