package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const DefaultFile = "ircd_config.yaml"

type Config struct {
	// Nick is the local user's nickname for composed messages.
	Nick string `yaml:"nick"`

	// LogLevel is a logrus level name (trace, debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	// OrphanLimit bounds the orphan buffer; the oldest orphan is evicted
	// beyond it. 0 keeps the buffer unbounded, which lets a replica on a
	// flaky network grow without limit. There is no safe universal
	// default, so the choice is left to the operator.
	OrphanLimit int `yaml:"orphanLimit"`

	// MonitorIntervalSeconds is the statistics sampling interval.
	MonitorIntervalSeconds int `yaml:"monitorIntervalSeconds"`

	// GenesisTimestampMillis pins the genesis event timestamp so every
	// replica of one chat network derives the same root id. 0 uses the
	// local creation time.
	GenesisTimestampMillis int64 `yaml:"genesisTimestampMillis"`
}

func defaults() Config {
	return Config{
		Nick:                   "anon",
		LogLevel:               "info",
		OrphanLimit:            0,
		MonitorIntervalSeconds: 30,
	}
}

// Load reads the YAML config at path, falling back to DefaultFile when path
// is empty. A missing file yields the defaults, a malformed one an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultFile
	}

	config := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if config.Nick == "" {
		config.Nick = defaults().Nick
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults().LogLevel
	}
	if config.MonitorIntervalSeconds <= 0 {
		config.MonitorIntervalSeconds = defaults().MonitorIntervalSeconds
	}

	if _, err := config.Level(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Level parses the configured log level.
func (c Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
