package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	APIKey             string
	BaseURL            string
	Agency             string
	Routes             []string
	Stops              []string
	FetchInterval      time.Duration
	RESTTimeout        time.Duration
	DataPath           string
	ModelPath          string
	ModelKind          string
	Seed               int64
	LagHours           []int
	RollingWindowHours []int
	IncludeWeather     bool
	IncludeEvents      bool
	MetricsPort        int
}

type ConfigFile struct {
	API struct {
		Key     string `yaml:"key"`
		BaseURL string `yaml:"baseURL"`
		Agency  string `yaml:"agency"`
	} `yaml:"api"`

	Collection struct {
		Routes        []string `yaml:"routes"`
		Stops         []string `yaml:"stops"`
		FetchInterval string   `yaml:"fetchInterval"`
	} `yaml:"collection"`

	Features struct {
		LagHours           []int `yaml:"lagHours"`
		RollingWindowHours []int `yaml:"rollingWindowHours"`
		IncludeWeather     bool  `yaml:"includeWeather"`
		IncludeEvents      bool  `yaml:"includeEvents"`
	} `yaml:"features"`

	ML struct {
		ModelPath string `yaml:"modelPath"`
		ModelKind string `yaml:"modelKind"`
		Seed      int64  `yaml:"seed"`
	} `yaml:"ml"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Parse durations
	fetchInterval, err := time.ParseDuration(config.Collection.FetchInterval)
	if err != nil {
		fetchInterval = time.Minute
	}

	restTimeout, err := time.ParseDuration(config.System.RESTTimeout)
	if err != nil {
		restTimeout = 30 * time.Second
	}

	// Override with environment variables if they exist
	key := getEnvOrDefault("TRANSIT_API_KEY", config.API.Key)
	if key == "" {
		return Settings{}, fmt.Errorf("API key is required")
	}

	settings := Settings{
		APIKey:             key,
		BaseURL:            getEnvOrDefault("BASE_URL", config.API.BaseURL),
		Agency:             getEnvOrDefault("AGENCY", config.API.Agency),
		Routes:             getRoutesFromEnvOrConfig(config.Collection.Routes),
		Stops:              getListFromEnvOrConfig("STOPS", config.Collection.Stops),
		FetchInterval:      fetchInterval,
		RESTTimeout:        restTimeout,
		DataPath:           getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelPath:          getEnvOrDefault("MODEL_PATH", config.ML.ModelPath),
		ModelKind:          getEnvOrDefault("MODEL_KIND", config.ML.ModelKind),
		Seed:               getInt64FromEnvOrConfig("SEED", config.ML.Seed),
		LagHours:           config.Features.LagHours,
		RollingWindowHours: config.Features.RollingWindowHours,
		IncludeWeather:     getBoolFromEnvOrConfig("INCLUDE_WEATHER", config.Features.IncludeWeather),
		IncludeEvents:      getBoolFromEnvOrConfig("INCLUDE_EVENTS", config.Features.IncludeEvents),
		MetricsPort:        getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
	}
	applyDefaults(&settings)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	key, err := getEnvRequired("TRANSIT_API_KEY")
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		APIKey:             key,
		BaseURL:            getEnvOrDefault("BASE_URL", "https://api.511.org/transit"),
		Agency:             getEnvOrDefault("AGENCY", "SF"),
		Routes:             splitOrDefault(os.Getenv("ROUTES"), nil),
		Stops:              splitOrDefault(os.Getenv("STOPS"), nil),
		FetchInterval:      getDurationOrDefault("FETCH_INTERVAL", time.Minute),
		RESTTimeout:        getDurationOrDefault("REST_TIMEOUT", 30*time.Second),
		DataPath:           os.Getenv("DATA_PATH"), // optional, empty disables the archive
		ModelPath:          getEnvOrDefault("MODEL_PATH", "delay_model.gob"),
		ModelKind:          getEnvOrDefault("MODEL_KIND", "random_forest"),
		Seed:               getInt64FromEnvOrConfig("SEED", 0),
		IncludeWeather:     getBoolOrDefault("INCLUDE_WEATHER", false),
		IncludeEvents:      getBoolOrDefault("INCLUDE_EVENTS", false),
		MetricsPort:        getIntOrDefault("METRICS_PORT", 8080),
	}
	applyDefaults(&settings)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func applyDefaults(s *Settings) {
	if len(s.LagHours) == 0 {
		s.LagHours = []int{1, 3, 24, 168}
	}
	if len(s.RollingWindowHours) == 0 {
		s.RollingWindowHours = []int{3, 6, 12}
	}
	if s.Seed == 0 {
		s.Seed = 42
	}
	if s.ModelPath == "" {
		s.ModelPath = "delay_model.gob"
	}
	if s.ModelKind == "" {
		s.ModelKind = "random_forest"
	}
}

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is missing", key)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

func getRoutesFromEnvOrConfig(configRoutes []string) []string {
	return getListFromEnvOrConfig("ROUTES", configRoutes)
}

func getListFromEnvOrConfig(key string, configValue []string) []string {
	if env := os.Getenv(key); env != "" {
		return strings.Split(env, ",")
	}
	return configValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return getIntOrDefault(key, 0)
}

func getInt64FromEnvOrConfig(key string, configValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	if settings.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if settings.Agency == "" {
		return fmt.Errorf("agency cannot be empty")
	}

	// Validate time durations
	if settings.FetchInterval < 10*time.Second || settings.FetchInterval > time.Hour {
		return fmt.Errorf("fetch interval must be between 10s and 1h, got %v", settings.FetchInterval)
	}
	if settings.RESTTimeout < time.Second || settings.RESTTimeout > 2*time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 2m, got %v", settings.RESTTimeout)
	}

	switch settings.ModelKind {
	case "random_forest", "gradient_boosting", "linear":
	default:
		return fmt.Errorf("model kind must be one of random_forest, gradient_boosting, linear, got %q", settings.ModelKind)
	}

	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}

	for _, h := range settings.LagHours {
		if h <= 0 {
			return fmt.Errorf("lag hours must be positive, got %d", h)
		}
	}
	for _, w := range settings.RollingWindowHours {
		if w <= 0 {
			return fmt.Errorf("rolling window hours must be positive, got %d", w)
		}
	}

	return nil
}
