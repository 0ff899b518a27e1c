package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the chat backend endpoint configuration
type ServerConfig struct {
	URL string `mapstructure:"url"`
}

// ChatConfig holds chat-related configuration
type ChatConfig struct {
	Model         string `mapstructure:"model"`
	Provider      string `mapstructure:"provider"`
	UseRAG        bool   `mapstructure:"use_rag"`
	HistoryWindow int    `mapstructure:"history_window"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	LogFile string `mapstructure:"log_file"`
	Persist bool   `mapstructure:"persist"`
}

var (
	settings *Config
	mu       sync.RWMutex
)

// SettingsDir is the dot-directory holding the settings file, log file, and
// chat history.
const SettingsDir = ".cbchat"

// Defaults registers every default value with viper. Called once from cmd
// before the config file is read.
func Defaults() {
	viper.SetDefault("server.url", "http://localhost:3000")
	viper.SetDefault("chat.model", "gpt-4o-mini")
	viper.SetDefault("chat.provider", "openai")
	viper.SetDefault("chat.use_rag", true)
	viper.SetDefault("chat.history_window", 10)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.log_file", "cbchat.log")
	viper.SetDefault("logging.persist", false)
}

// Load reads the settings file (if present) and environment overrides, then
// unmarshals into the typed config. Env vars use the CBCHAT_ prefix with
// underscores, e.g. CBCHAT_SERVER_URL.
func Load(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(SettingsDir)
		viper.SetConfigName("settings")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CBCHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing settings file is fine; defaults and env apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	mu.Lock()
	settings = &cfg
	mu.Unlock()
	return nil
}

// Get returns the loaded configuration. If Load was never called, a config
// built from defaults is returned.
func Get() *Config {
	mu.RLock()
	if settings != nil {
		defer mu.RUnlock()
		return settings
	}
	mu.RUnlock()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return &Config{}
	}

	mu.Lock()
	settings = &cfg
	mu.Unlock()
	return settings
}

// Reset clears the cached config, used by tests.
func Reset() {
	mu.Lock()
	settings = nil
	mu.Unlock()
}

// BuildSettingsPath returns a path inside the settings directory.
func BuildSettingsPath(filename string) string {
	return filepath.Join(SettingsDir, filename)
}
