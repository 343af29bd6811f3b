package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Users   []User        `yaml:"users"`
	Storage StorageConfig `yaml:"storage"`
	Store   StoreConfig   `yaml:"store"`
	Naming  NamingConfig  `yaml:"naming"`
	Import  ImportConfig  `yaml:"import"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// StorageConfig selects where normalized property images are written.
type StorageConfig struct {
	Driver string      `yaml:"driver"` // minio, s3, local
	Minio  MinioConfig `yaml:"minio"`
	S3     S3Config    `yaml:"s3"`
	Local  LocalConfig `yaml:"local"`
}

type MinioConfig struct {
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type LocalConfig struct {
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// StoreConfig selects the property store backend.
type StoreConfig struct {
	Driver        string `yaml:"driver"` // memory, sqlite, postgres, pgx, dynamodb
	DSN           string `yaml:"dsn"`
	Table         string `yaml:"table"`
	Region        string `yaml:"region"`
	MaxProperties int    `yaml:"max_properties"`
}

type NamingConfig struct {
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type ImportConfig struct {
	Workers             int    `yaml:"workers"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	OpTimeoutSeconds    int    `yaml:"op_timeout_seconds"`
	MaxRedirects        int    `yaml:"max_redirects"`
	MaxImageBytes       int64  `yaml:"max_image_bytes"`
	MaxPixels           int64  `yaml:"max_pixels"`
	MaxUploadMB         int64  `yaml:"max_upload_mb"`
	MaxWidth            uint   `yaml:"max_width"`
	MaxHeight           uint   `yaml:"max_height"`
	JPEGQuality         int    `yaml:"jpeg_quality"`
	PlaceholderURL      string `yaml:"placeholder_url"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyEnv lets secrets and per-host settings live outside the yaml file.
func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	overrideString(&c.Log.Level, "LOG_LEVEL")
	overrideString(&c.Auth.JWTSecret, "JWT_SECRET")
	overrideString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	overrideString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	overrideString(&c.Store.DSN, "STORE_DSN")
	overrideString(&c.Naming.APIKey, "NAMING_API_KEY")
	overrideString(&c.Import.PlaceholderURL, "PLACEHOLDER_IMAGE_URL")
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "local"
	}
	if c.Storage.Local.Dir == "" {
		c.Storage.Local.Dir = "./media"
	}
	if c.Storage.Local.PublicBaseURL == "" {
		c.Storage.Local.PublicBaseURL = "/media"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Table == "" {
		c.Store.Table = "properties"
	}
	if c.Naming.Model == "" {
		c.Naming.Model = "gpt-4o-mini"
	}
	if c.Naming.TimeoutSeconds == 0 {
		c.Naming.TimeoutSeconds = 15
	}
	if c.Import.Workers <= 0 {
		c.Import.Workers = 8
	}
	if c.Import.FetchTimeoutSeconds == 0 {
		c.Import.FetchTimeoutSeconds = 10
	}
	if c.Import.OpTimeoutSeconds == 0 {
		c.Import.OpTimeoutSeconds = 30
	}
	if c.Import.MaxRedirects == 0 {
		c.Import.MaxRedirects = 5
	}
	if c.Import.MaxImageBytes == 0 {
		c.Import.MaxImageBytes = 15 << 20
	}
	if c.Import.MaxPixels == 0 {
		c.Import.MaxPixels = 40_000_000
	}
	if c.Import.MaxUploadMB == 0 {
		c.Import.MaxUploadMB = 50
	}
	if c.Import.MaxWidth == 0 {
		c.Import.MaxWidth = 1600
	}
	if c.Import.MaxHeight == 0 {
		c.Import.MaxHeight = 1200
	}
	if c.Import.JPEGQuality == 0 {
		c.Import.JPEGQuality = 85
	}
	if c.Import.PlaceholderURL == "" {
		c.Import.PlaceholderURL = "/static/img/property-placeholder.jpg"
	}
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
