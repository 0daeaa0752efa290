package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Browser BrowserConfig `mapstructure:"browser"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains API server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// FetchConfig contains per-invocation acquisition configuration
type FetchConfig struct {
	OutputDir            string        `mapstructure:"output_dir"`
	Timeout              time.Duration `mapstructure:"timeout"`
	BrowserFallback      bool          `mapstructure:"browser_fallback"`
	IncludeNonImageMedia bool          `mapstructure:"include_non_image_media"`
	DebugDir             string        `mapstructure:"debug_dir"`
	UserAgent            string        `mapstructure:"user_agent"`
}

// BatchConfig contains album/batch orchestration configuration
type BatchConfig struct {
	Jobs         int           `mapstructure:"jobs"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second
	ManifestPath string        `mapstructure:"manifest_path"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// BrowserConfig contains browser automation configuration
type BrowserConfig struct {
	ExecPath     string        `mapstructure:"exec_path"` // empty means chromedp's default lookup
	Headless     bool          `mapstructure:"headless"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"` // wait after navigation for CDN traffic
	DownloadDir  string        `mapstructure:"download_dir"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Fetch: FetchConfig{
			OutputDir:            ".",
			Timeout:              60 * time.Second,
			BrowserFallback:      false,
			IncludeNonImageMedia: false,
			UserAgent:            "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Batch: BatchConfig{
			Jobs:         1,
			RateLimit:    1.0,
			ManifestPath: "$HOME/.sharefetch/manifest.db",
			MaxRetries:   2,
			RetryDelay:   2 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:     true,
			WindowWidth:  1600,
			WindowHeight: 1200,
			SettleDelay:  3 * time.Second,
			DownloadDir:  "", // defaults to a per-invocation temp dir
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}
