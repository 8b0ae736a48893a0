package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from an optional limstreat.yaml
// and LIMSTREAT_* environment variables (dots become underscores).
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level"`
	PrettyLog bool   `mapstructure:"pretty_log"`

	DataDir   string `mapstructure:"data_dir"`
	ImagesDir string `mapstructure:"images_dir"`
	PhotosDir string `mapstructure:"photos_dir"`

	DB       DBConfig       `mapstructure:"db"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Image    ImageConfig    `mapstructure:"image"`
	Photo    ImageConfig    `mapstructure:"photo"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Map      MapConfig      `mapstructure:"map"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite3" | "postgres"
	Conn   string `mapstructure:"conn"`
}

type GeocoderConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ImageConfig struct {
	MaxDim int `mapstructure:"max_dim"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type MapConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
	Zoom      int     `mapstructure:"zoom"`
}

const (
	fileName  = "limstreat"
	envPrefix = "LIMSTREAT"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("log_level", "info")
	v.SetDefault("pretty_log", true)

	v.SetDefault("data_dir", "./data")
	v.SetDefault("images_dir", "")
	v.SetDefault("photos_dir", "")

	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.conn", "")

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "limstreat-app")
	v.SetDefault("geocoder.timeout", "8s")

	v.SetDefault("image.max_dim", 1024)
	v.SetDefault("photo.max_dim", 1920)
	v.SetDefault("upload.max_bytes", 32<<20)

	v.SetDefault("map.center_lat", 37.5665)
	v.SetDefault("map.center_lon", 126.9780)
	v.SetDefault("map.zoom", 13)
}

// Load reads configuration from dir (if a limstreat.yaml exists there) and the environment.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.resolvePaths()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths derives the store file and image directories from DataDir when unset.
func (c *Config) resolvePaths() {
	if c.ImagesDir == "" {
		c.ImagesDir = filepath.Join(c.DataDir, "images")
	}
	if c.PhotosDir == "" {
		c.PhotosDir = filepath.Join(c.DataDir, "photos")
	}
	if c.DB.Conn == "" && c.DB.Driver == "sqlite3" {
		c.DB.Conn = filepath.Join(c.DataDir, "bookmarks.db")
	}
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.Conn == "" {
		return fmt.Errorf("db.conn is required for driver %s", c.DB.Driver)
	}
	if c.Image.MaxDim <= 0 || c.Photo.MaxDim <= 0 {
		return fmt.Errorf("image.max_dim and photo.max_dim must be positive")
	}
	if c.Geocoder.BaseURL == "" {
		return fmt.Errorf("geocoder.base_url is required")
	}
	return nil
}

// EnsureDirs creates the data and image directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.ImagesDir, c.PhotosDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
