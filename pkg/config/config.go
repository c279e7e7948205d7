package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Dataset      DatasetConfig
	Segmentation SegmentationConfig
	Seed         SeedConfig
	Redis        RedisConfig
	SQLite       SQLiteConfig
	RateLimit    RateLimitConfig
	Security     SecurityConfig
	Validation   ValidationConfig
	Metrics      MetricsConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type DatasetConfig struct {
	IDColumn           string
	SegmentColumn      string
	CategoricalColumns []string
}

type SegmentationConfig struct {
	DefaultAlgorithm     string
	DefaultClusters      int
	Seed                 int64
	MaxIterations        int
	NInit                int
	MaxAgglomerativeRows int
	MaxSilhouetteRows    int
}

type SeedConfig struct {
	Path  string
	Watch bool
}

type RedisConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Password   string
	DB         int
	TTLSeconds int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
	SegmentCost          int
	UploadCost           int
}

type SecurityConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

type ValidationConfig struct {
	MaxFeaturesLength int
}

type MetricsConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/customer-segmentation")

	viper.SetEnvPrefix("SEGMENTATION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("dataset.idColumn", "CustomerID")
	viper.SetDefault("dataset.segmentColumn", "Segment")
	viper.SetDefault("dataset.categoricalColumns", []string{"Gender", "Profession"})

	viper.SetDefault("segmentation.defaultAlgorithm", "kmeans")
	viper.SetDefault("segmentation.defaultClusters", 3)
	viper.SetDefault("segmentation.seed", 42)
	viper.SetDefault("segmentation.maxIterations", 300)
	viper.SetDefault("segmentation.nInit", 10)
	viper.SetDefault("segmentation.maxAgglomerativeRows", 5000)
	viper.SetDefault("segmentation.maxSilhouetteRows", 2000)

	viper.SetDefault("seed.path", "")
	viper.SetDefault("seed.watch", false)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlSeconds", 3600)

	viper.SetDefault("sqlite.enabled", true)
	viper.SetDefault("sqlite.path", ":memory:")

	viper.SetDefault("rateLimit.enabled", true)
	viper.SetDefault("rateLimit.maxRequestsPerMinute", 120)
	viper.SetDefault("rateLimit.segmentCost", 5)
	viper.SetDefault("rateLimit.uploadCost", 2)

	viper.SetDefault("security.allowedOrigins", []string{})
	viper.SetDefault("security.isDevelopment", true)

	viper.SetDefault("validation.maxFeaturesLength", 2048)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
