// Package config loads the single typed configuration record the rest of
// the binary is built from: defaults, then an optional YAML file, then a
// ".env" file, then environment variables, in ascending priority.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every recognized option from spec.md §6.
type Config struct {
	TickInterval time.Duration    `mapstructure:"tick_interval"`
	APIKey       string           `mapstructure:"api_key"`
	Server       ServerConfig     `mapstructure:"server"`
	Database     DatabaseConfig   `mapstructure:"database"`
	Logging      LoggingConfig    `mapstructure:"logging"`
	Filesystem   FilesystemConfig `mapstructure:"filesystem"`
	Catalog      CatalogConfig    `mapstructure:"catalog"`
	Indexer      IndexerConfig    `mapstructure:"indexer"`
	Downloader   DownloaderConfig `mapstructure:"downloader"`
	Scanner      ScannerConfig    `mapstructure:"scanner"`
	Metadata     MetadataConfig   `mapstructure:"metadata"`
	Matching     MatchingConfig   `mapstructure:"matching"`
}

// ServerConfig holds HTTP surface configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the server's listen address string.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds SQLite connection settings.
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

// FilesystemConfig holds the three scoped roots FilesystemService operates over.
type FilesystemConfig struct {
	QuarantineRoot string `mapstructure:"quarantine_root"`
	MovieRoot      string `mapstructure:"movie_root"`
	ShowRoot       string `mapstructure:"show_root"`
}

// CatalogConfig holds CatalogClient connection settings.
type CatalogConfig struct {
	DiscoverBaseURL string `mapstructure:"discover_base_url"`
	ServerBaseURL   string `mapstructure:"server_base_url"`
	ClientID        string `mapstructure:"client_id"`
}

// IndexerConfig holds IndexerClient (Prowlarr) connection settings.
type IndexerConfig struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SkipSSLVerify bool          `mapstructure:"skip_ssl_verify"`
}

// DownloaderConfig holds DownloaderClient (Deluge daemon, via VPN gateway) settings.
type DownloaderConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ScannerConfig holds ScannerClient (ClamAV + rule engine) settings.
type ScannerConfig struct {
	ClamHost   string        `mapstructure:"clam_host"`
	ClamPort   int           `mapstructure:"clam_port"`
	RulesDir   string        `mapstructure:"rules_dir"`
	Timeout    time.Duration `mapstructure:"timeout"`
	ChunkBytes int           `mapstructure:"chunk_bytes"`
}

// MetadataConfig holds MetadataClient (TMDB) settings.
type MetadataConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MatchingConfig holds the similarity/time-window constants from spec §4.10.
type MatchingConfig struct {
	AppearanceDelay       time.Duration `mapstructure:"appearance_delay"`
	TimeWindow            time.Duration `mapstructure:"time_window"`
	SimilarityThreshold   float64       `mapstructure:"similarity_threshold"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	dataDir := getDataDir()
	return &Config{
		TickInterval: 10 * time.Minute,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "acquisitiond.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Path:       getLogDir(),
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Filesystem: FilesystemConfig{
			QuarantineRoot: filepath.Join(dataDir, "quarantine"),
			MovieRoot:      filepath.Join(dataDir, "library", "movies"),
			ShowRoot:       filepath.Join(dataDir, "library", "shows"),
		},
		Catalog: CatalogConfig{
			DiscoverBaseURL: "https://discover.provider.plex.tv",
			ClientID:        "acquisitiond",
		},
		Indexer: IndexerConfig{
			Timeout: 60 * time.Second,
		},
		Downloader: DownloaderConfig{
			Port:    58846,
			Timeout: 10 * time.Second,
		},
		Scanner: ScannerConfig{
			ClamPort:   3310,
			Timeout:    5 * time.Minute,
			ChunkBytes: 64 * 1024,
		},
		Metadata: MetadataConfig{
			BaseURL: "https://api.themoviedb.org/3",
			Timeout: 15 * time.Second,
		},
		Matching: MatchingConfig{
			AppearanceDelay:     2 * time.Second,
			TimeWindow:          3 * time.Second,
			SimilarityThreshold: 0.6,
		},
	}
}

// Load reads configuration from file and environment variables. Priority:
// environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	envFiles := []string{".env", "configs/.env"}
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
			break
		}
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath(configSearchDir())
	}

	v.SetEnvPrefix("ACQUISITIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", d.Logging.Path)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("filesystem.quarantine_root", d.Filesystem.QuarantineRoot)
	v.SetDefault("filesystem.movie_root", d.Filesystem.MovieRoot)
	v.SetDefault("filesystem.show_root", d.Filesystem.ShowRoot)
	v.SetDefault("catalog.discover_base_url", d.Catalog.DiscoverBaseURL)
	v.SetDefault("catalog.client_id", d.Catalog.ClientID)
	v.SetDefault("indexer.timeout", d.Indexer.Timeout)
	v.SetDefault("downloader.port", d.Downloader.Port)
	v.SetDefault("downloader.timeout", d.Downloader.Timeout)
	v.SetDefault("scanner.clam_port", d.Scanner.ClamPort)
	v.SetDefault("scanner.timeout", d.Scanner.Timeout)
	v.SetDefault("scanner.chunk_bytes", d.Scanner.ChunkBytes)
	v.SetDefault("metadata.base_url", d.Metadata.BaseURL)
	v.SetDefault("metadata.timeout", d.Metadata.Timeout)
	v.SetDefault("matching.appearance_delay", d.Matching.AppearanceDelay)
	v.SetDefault("matching.time_window", d.Matching.TimeWindow)
	v.SetDefault("matching.similarity_threshold", d.Matching.SimilarityThreshold)
}

func configSearchDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "acquisitiond")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "acquisitiond")
		}
	default:
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".config", "acquisitiond")
		}
	}
	return "."
}

func getDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "acquisitiond")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "acquisitiond")
		}
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			if home, err := os.UserHomeDir(); err == nil {
				configHome = filepath.Join(home, ".config")
			}
		}
		if configHome != "" {
			return filepath.Join(configHome, "acquisitiond")
		}
	}
	return "./data"
}

func getLogDir() string {
	return filepath.Join(getDataDir(), "logs")
}

// FindAvailablePort tries maxAttempts consecutive ports starting at
// preferredPort and returns the first one it can bind.
func FindAvailablePort(preferredPort, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := preferredPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", preferredPort, preferredPort+maxAttempts-1)
}
