package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Version is the application version, injected at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Catalogs   CatalogsConfig   `mapstructure:"catalogs"`
	Managers   ManagersConfig   `mapstructure:"managers"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CatalogsConfig groups the external metadata catalog clients.
type CatalogsConfig struct {
	TMDB        TMDBConfig        `mapstructure:"tmdb"`
	Spotify     SpotifyConfig     `mapstructure:"spotify"`
	MusicBrainz MusicBrainzConfig `mapstructure:"musicbrainz"`
}

// TMDBConfig holds TMDB catalog configuration.
type TMDBConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Timeout      int    `mapstructure:"timeout"` // seconds
}

// SpotifyConfig holds Spotify catalog configuration.
type SpotifyConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	Timeout      int    `mapstructure:"timeout"`
}

// MusicBrainzConfig holds MusicBrainz catalog configuration.
type MusicBrainzConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
	Timeout   int    `mapstructure:"timeout"`
}

// ManagersConfig groups the downstream *arr manager clients.
type ManagersConfig struct {
	Radarr ArrConfig `mapstructure:"radarr"`
	Sonarr ArrConfig `mapstructure:"sonarr"`
	Lidarr ArrConfig `mapstructure:"lidarr"`
}

// ArrConfig holds connection settings for one *arr service.
type ArrConfig struct {
	URL              string `mapstructure:"url"`
	APIKey           string `mapstructure:"api_key"`
	QualityProfileID int    `mapstructure:"quality_profile_id"`
	RootFolderPath   string `mapstructure:"root_folder_path"`
	Timeout          int    `mapstructure:"timeout"`
}

// ClassifierConfig holds the classifier tuning knobs.
type ClassifierConfig struct {
	BestMatchThreshold float64 `mapstructure:"best_match_threshold"`
	AmbiguityThreshold float64 `mapstructure:"ambiguity_threshold"`
}

// ProcessorConfig holds request-processor scheduling configuration.
type ProcessorConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.requestarr")
	}

	v.SetEnvPrefix("REQUESTARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8787)

	v.SetDefault("database.path", "./data/requestarr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("catalogs.tmdb.api_key", "")
	v.SetDefault("catalogs.tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("catalogs.tmdb.image_base_url", "https://image.tmdb.org/t/p")
	v.SetDefault("catalogs.tmdb.timeout", 10)

	v.SetDefault("catalogs.spotify.client_id", "")
	v.SetDefault("catalogs.spotify.client_secret", "")
	v.SetDefault("catalogs.spotify.base_url", "https://api.spotify.com/v1")
	v.SetDefault("catalogs.spotify.token_url", "https://accounts.spotify.com/api/token")
	v.SetDefault("catalogs.spotify.timeout", 10)

	v.SetDefault("catalogs.musicbrainz.base_url", "https://musicbrainz.org/ws/2")
	v.SetDefault("catalogs.musicbrainz.user_agent", "Requestarr/"+Version)
	v.SetDefault("catalogs.musicbrainz.timeout", 10)

	for _, svc := range []string{"radarr", "sonarr", "lidarr"} {
		v.SetDefault("managers."+svc+".url", "")
		v.SetDefault("managers."+svc+".api_key", "")
		v.SetDefault("managers."+svc+".quality_profile_id", 1)
		v.SetDefault("managers."+svc+".root_folder_path", "")
		v.SetDefault("managers."+svc+".timeout", 10)
	}

	v.SetDefault("classifier.best_match_threshold", 0.5)
	v.SetDefault("classifier.ambiguity_threshold", 0.15)

	v.SetDefault("processor.cron", "*/5 * * * *")
	v.SetDefault("processor.run_on_start", false)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
