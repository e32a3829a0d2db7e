package configs

import (
	"github.com/spf13/viper"

	"github.com/BinLe1988/study-match/pkg/scoring"
)

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
		Mode string `mapstructure:"mode"`
	} `mapstructure:"server"`

	Database struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DBName   string `mapstructure:"dbname"`
	} `mapstructure:"database"`

	JWT struct {
		Secret    string `mapstructure:"secret"`
		ExpiresIn int    `mapstructure:"expires_in"` // 过期时间（小时）
	} `mapstructure:"jwt"`

	Matching struct {
		MinScore                    float64         `mapstructure:"min_score"`
		MatchTTLDays                int             `mapstructure:"match_ttl_days"`
		DefaultSuggestLimit         int             `mapstructure:"default_suggest_limit"`
		CandidateIndexMaxStalenessS int             `mapstructure:"candidate_index_max_staleness_s"`
		GroupDefaultSize            int             `mapstructure:"group_default_size"`
		ProfileReadTimeoutMs        int             `mapstructure:"profile_read_timeout_ms"`
		BulkReadTimeoutMs           int             `mapstructure:"bulk_read_timeout_ms"`
		Weights                     scoring.Weights `mapstructure:"weights"`
	} `mapstructure:"matching"`
}

// Load 加载配置，匹配参数均有内置缺省值
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")
	viper.SetDefault("matching.min_score", 0.25)
	viper.SetDefault("matching.match_ttl_days", 30)
	viper.SetDefault("matching.default_suggest_limit", 20)
	viper.SetDefault("matching.candidate_index_max_staleness_s", 60)
	viper.SetDefault("matching.group_default_size", 5)
	viper.SetDefault("matching.profile_read_timeout_ms", 2000)
	viper.SetDefault("matching.bulk_read_timeout_ms", 5000)
	viper.SetDefault("matching.weights.interest", 0.35)
	viper.SetDefault("matching.weights.complement", 0.25)
	viper.SetDefault("matching.weights.field", 0.15)
	viper.SetDefault("matching.weights.level", 0.10)
	viper.SetDefault("matching.weights.style_lang", 0.15)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
