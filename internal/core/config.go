package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to a tether
// harness instance.
type Config struct {
	// Hostname or IP address on which the harness will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Full path to file to which logs will be written. Blank will write to stdout.
	LogFilePath string `mapstructure:"log_file_path"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	Harness struct {
		// Port on which the harness will listen for the client under test.
		Port int `mapstructure:"port"`
		// Milliseconds to wait for a client to connect before giving up (0 = forever).
		AcceptTimeout int `mapstructure:"accept_timeout"`
		// Maximum number of bytes consumed from the socket per read.
		ReadChunkSize int `mapstructure:"read_chunk_size"`
		// Maximum number of messages held in the receive queue (0 = unbounded).
		QueueCapacity int `mapstructure:"queue_capacity"`
		// Write every admitted chunk back to the client.
		Echo bool `mapstructure:"echo"`
	} `mapstructure:"harness"`

	Recorder struct {
		// Seconds a recorded session is retained after its last update.
		SessionTTL int `mapstructure:"session_ttl"`
		// Seconds between sweeps of expired sessions.
		SweepInterval int `mapstructure:"sweep_interval"`
	} `mapstructure:"recorder"`

	Database struct {
		// Database engine used for persisting transcripts. Options: sqlite, postgres.
		// Blank disables persistence entirely.
		Engine string `mapstructure:"engine"`
		// Path to the database file (sqlite only).
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on db_host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database for tether transcripts.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${db_name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the harness.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every recorded payload to the debug log.
		PayloadLoggingEnabled bool `mapstructure:"payload_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "TETHER"

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, harness.port can be set using: <envVarPrefix>_HARNESS_PORT
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection URL generated from the provided
// config values. Only meaningful when the engine is postgres.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// ListenAddress returns the hostname:port pair the harness should bind.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Harness.Port)
}

// AcceptTimeoutDuration converts the configured accept timeout from
// milliseconds to a time.Duration (zero means wait indefinitely).
func (c *Config) AcceptTimeoutDuration() time.Duration {
	return time.Duration(c.Harness.AcceptTimeout) * time.Millisecond
}

// SessionTTLDuration returns the recorder session retention period, falling
// back to an hour when unset.
func (c *Config) SessionTTLDuration() time.Duration {
	if c.Recorder.SessionTTL <= 0 {
		return time.Hour
	}
	return time.Duration(c.Recorder.SessionTTL) * time.Second
}

// SweepIntervalDuration returns the recorder sweep interval, falling back to
// ten minutes when unset.
func (c *Config) SweepIntervalDuration() time.Duration {
	if c.Recorder.SweepInterval <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Recorder.SweepInterval) * time.Second
}
