package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v2"
)

const (
	defaultAddress           = ":4001"
	defaultUploadsDir        = "uploads"
	defaultUploadTimeout     = 5 * time.Second
	defaultUploadConcurrency = 4
	defaultMaxPhotoBytes     = 10 << 20
	defaultMaxPhotos         = 20
	defaultCacheTTL          = 5 * time.Minute
	defaultLogLevel          = "info"
	defaultLogEncoding       = "json"
)

const (
	StorageS3    = "s3"
	StorageMinio = "minio"
	StorageNone  = "none"
)

type Config struct {
	Server struct {
		Address        string   `yaml:"address"`
		PublicBaseURL  string   `yaml:"public_base_url"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		SecretKey      string   `yaml:"secret_key"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"`
		URL    string `yaml:"url"`
	} `yaml:"database"`
	Storage struct {
		Driver            string        `yaml:"driver"`
		Endpoint          string        `yaml:"endpoint"`
		Region            string        `yaml:"region"`
		Bucket            string        `yaml:"bucket"`
		AccessKey         string        `yaml:"access_key"`
		SecretKey         string        `yaml:"secret_key"`
		PublicURL         string        `yaml:"public_url"`
		UseSSL            bool          `yaml:"use_ssl"`
		UploadTimeout     time.Duration `yaml:"upload_timeout"`
		UploadConcurrency int           `yaml:"upload_concurrency"`
		UploadsDir        string        `yaml:"uploads_dir"`
		MaxPhotoBytes     int64         `yaml:"max_photo_bytes"`
		MaxPhotos         int           `yaml:"max_photos"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Log struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"log"`
}

func defaults() Config {
	var cfg Config
	cfg.Server.Address = defaultAddress
	cfg.Database.Driver = "mysql"
	cfg.Storage.Driver = StorageNone
	cfg.Storage.UploadTimeout = defaultUploadTimeout
	cfg.Storage.UploadConcurrency = defaultUploadConcurrency
	cfg.Storage.UploadsDir = defaultUploadsDir
	cfg.Storage.MaxPhotoBytes = defaultMaxPhotoBytes
	cfg.Storage.MaxPhotos = defaultMaxPhotos
	cfg.Redis.TTL = defaultCacheTTL
	cfg.Log.Level = defaultLogLevel
	cfg.Log.Encoding = defaultLogEncoding
	return cfg
}

// LoadConfig reads the optional yaml file at path, then applies environment
// overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config data: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	dsn, err := NormalizeDSN(cfg.Database.URL)
	if err != nil {
		return Config{}, err
	}
	cfg.Database.URL = dsn

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Address = ":" + strings.TrimPrefix(v, ":")
	}
	setString(&cfg.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.Server.SecretKey, "SECRET_KEY")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	setString(&cfg.Database.URL, "DATABASE_URL")

	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.Endpoint, "STORAGE_ENDPOINT")
	setString(&cfg.Storage.Region, "STORAGE_REGION")
	setString(&cfg.Storage.Bucket, "STORAGE_BUCKET")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Storage.PublicURL, "STORAGE_PUBLIC_URL")
	setString(&cfg.Storage.UploadsDir, "UPLOADS_DIR")
	if v := os.Getenv("STORAGE_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse STORAGE_USE_SSL: %w", err)
		}
		cfg.Storage.UseSSL = b
	}
	if err := setDuration(&cfg.Storage.UploadTimeout, "STORAGE_UPLOAD_TIMEOUT"); err != nil {
		return err
	}

	if v, err := readIntEnv("STORAGE_UPLOAD_CONCURRENCY"); err != nil {
		return fmt.Errorf("parse STORAGE_UPLOAD_CONCURRENCY: %w", err)
	} else if v != nil {
		cfg.Storage.UploadConcurrency = *v
	}

	if v, err := readIntEnv("MAX_PHOTO_BYTES"); err != nil {
		return fmt.Errorf("parse MAX_PHOTO_BYTES: %w", err)
	} else if v != nil {
		cfg.Storage.MaxPhotoBytes = int64(*v)
	}

	if v, err := readIntEnv("MAX_PHOTOS"); err != nil {
		return fmt.Errorf("parse MAX_PHOTOS: %w", err)
	} else if v != nil {
		cfg.Storage.MaxPhotos = *v
	}

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v, err := readIntEnv("REDIS_DB"); err != nil {
		return fmt.Errorf("parse REDIS_DB: %w", err)
	} else if v != nil {
		cfg.Redis.DB = *v
	}
	if err := setDuration(&cfg.Redis.TTL, "CACHE_TTL"); err != nil {
		return err
	}

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Encoding, "LOG_ENCODING")
	return nil
}

// Validate reports the first setting the server cannot start with.
func (c Config) Validate() error {
	if c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.Storage.Driver {
	case StorageNone:
	case StorageS3, StorageMinio:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage driver %s requires a bucket", c.Storage.Driver)
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage driver %s requires access and secret keys", c.Storage.Driver)
		}
		if c.Storage.Driver == StorageMinio && c.Storage.Endpoint == "" {
			return errors.New("storage driver minio requires an endpoint")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.UploadsDir == "" {
		return errors.New("uploads directory is required")
	}
	if c.Storage.UploadConcurrency <= 0 {
		return errors.New("upload concurrency must be positive")
	}
	if c.Storage.MaxPhotos <= 0 || c.Storage.MaxPhotoBytes <= 0 {
		return errors.New("photo limits must be positive")
	}
	if c.Storage.UploadTimeout <= 0 {
		return errors.New("upload timeout must be positive")
	}
	return nil
}

// NormalizeDSN accepts a go-sql-driver DSN or a mysql:// URL and returns a
// DSN with parseTime enabled.
func NormalizeDSN(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	var (
		cfg *mysql.Config
		err error
	)
	if i := strings.Index(raw, "://"); i >= 0 && strings.HasPrefix(raw[:i], "mysql") {
		cfg, err = dsnFromURL(raw)
	} else {
		cfg, err = mysql.ParseDSN(raw)
	}
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

func dsnFromURL(raw string) (*mysql.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cs := u.Query().Get("charset"); cs != "" {
		cfg.Params = map[string]string{"charset": cs}
	}
	return cfg, nil
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, aerr := strconv.Atoi(v)
		if aerr != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		d = time.Duration(secs) * time.Second
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func readIntEnv(name string) (*int, error) {
	val := os.Getenv(name)
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
