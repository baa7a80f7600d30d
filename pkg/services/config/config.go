package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CARBON"

type Settings struct {
	Factors   FactorSettings    `mapstructure:"factors"`
	Extractor ExtractorSettings `mapstructure:"extractor"`
	Risk      RiskSettings      `mapstructure:"risk"`
	Store     StoreSettings     `mapstructure:"store"`
	Archive   ArchiveSettings   `mapstructure:"archive"`
	Server    ServerSettings    `mapstructure:"server"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type FactorSettings struct {
	// Path to a YAML or INI factor table; empty means the built-in table
	Path             string `mapstructure:"path"`
	CategoryFallback bool   `mapstructure:"category_fallback"`
}

type ExtractorSettings struct {
	Strategy        string        `mapstructure:"strategy"`
	Endpoint        string        `mapstructure:"endpoint"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ReplayPath      string        `mapstructure:"replay_path"`
	ReviewThreshold float64       `mapstructure:"review_threshold"`
}

type RiskSettings struct {
	TopK      int    `mapstructure:"top_k"`
	RulesPath string `mapstructure:"rules_path"`
}

type StoreSettings struct {
	Path string `mapstructure:"path"`
}

// ArchiveSettings configures the optional S3 copy of every report. An empty bucket
// disables archiving.
type ArchiveSettings struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Region string `mapstructure:"region"`
}

type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	// APIKey, when set, must be sent in the x-api-key header
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelemetrySettings struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("factors.path", "")
	v.SetDefault("factors.category_fallback", true)
	v.SetDefault("extractor.strategy", "rules")
	v.SetDefault("extractor.endpoint", "")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.timeout", 30*time.Second)
	v.SetDefault("extractor.replay_path", "")
	v.SetDefault("extractor.review_threshold", 0.5)
	v.SetDefault("risk.top_k", 3)
	v.SetDefault("risk.rules_path", "")
	v.SetDefault("store.path", "carbon-atlas.db")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "reports/")
	v.SetDefault("archive.region", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "carbon-atlas")
}

// Load reads settings from an optional YAML file, then applies CARBON_* environment
// overrides (e.g. CARBON_EXTRACTOR_STRATEGY). SERVER_HOST and SERVER_PORT are also
// honoured.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{"server.host": "SERVER_HOST", "server.port": "SERVER_PORT"} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Settings) Validate() error {
	if s.Extractor.Strategy == "" {
		return fmt.Errorf("extractor.strategy is required")
	}
	if s.Extractor.ReviewThreshold <= 0 || s.Extractor.ReviewThreshold > 1 {
		return fmt.Errorf("extractor.review_threshold must be within (0,1], got %v", s.Extractor.ReviewThreshold)
	}
	if s.Extractor.Timeout <= 0 {
		return fmt.Errorf("extractor.timeout must be positive")
	}
	if s.Risk.TopK <= 0 {
		return fmt.Errorf("risk.top_k must be positive, got %d", s.Risk.TopK)
	}
	return nil
}
