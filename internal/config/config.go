package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Analysis struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"analysis"`

	Identity struct {
		BaseURL string `yaml:"baseURL"`
		APIKey  string `yaml:"apiKey"`
	} `yaml:"identity"`

	Upload struct {
		MaxBytes     int64    `yaml:"maxBytes"`
		AllowedTypes []string `yaml:"allowedTypes"`
	} `yaml:"upload"`

	Progress struct {
		TickMS int `yaml:"tickMS"`
	} `yaml:"progress"`
}

// Load reads the YAML config file and overlays secrets from the
// environment. A .env file in the working directory is honored if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
	if v := os.Getenv("IDENTITY_API_KEY"); v != "" {
		c.Identity.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 10 << 20 // 10 MiB
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{
			"image/jpeg", "image/png", "image/heic", "application/pdf",
		}
	}
	if c.Progress.TickMS == 0 {
		c.Progress.TickMS = 200
	}
}

// ProgressTick is the interval between synthetic progress increments.
func (c *Config) ProgressTick() time.Duration {
	return time.Duration(c.Progress.TickMS) * time.Millisecond
}

// MySQLDSN builds the DSN for the mysql driver
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the DSN for lib/pq
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
