package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the daemon configuration, populated from flags, environment
// variables (BOVW_ prefix) and an optional config file, in that order of
// precedence.
type Config struct {
	Vocabulary     string `mapstructure:"vocabulary"`
	Index          string `mapstructure:"index"`
	OutputDir      string `mapstructure:"output_dir"`
	VocabularySize int    `mapstructure:"vocabulary_size"`
	Workers        int    `mapstructure:"workers"`
	EFSearch       int    `mapstructure:"ef_search"`
	LogLevel       string `mapstructure:"log_level"`
	LogJSON        bool   `mapstructure:"log_json"`
	Reprocess      bool   `mapstructure:"reprocess"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Prefix       string `mapstructure:"s3_prefix"`
	S3Region       string `mapstructure:"s3_region"`
	CommitTable    string `mapstructure:"commit_table"`
}

func init() {
	pflag.String("vocabulary", "", "Path to the visual-word vocabulary file")
	pflag.String("index", "", "Path to the persisted nearest-neighbor index")
	pflag.String("output-dir", "./imageHits", "Directory receiving per-image hit files")
	pflag.Int("vocabulary-size", 0, "Expected vocabulary word count (0 = production default)")
	pflag.Int("workers", 0, "Maximum concurrent images (0 = serial)")
	pflag.Int("ef-search", 0, "Search beam width (0 = index default)")
	pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	pflag.Bool("log-json", false, "Emit JSON logs instead of text")
	pflag.Bool("reprocess", false, "Allow already-processed image identifiers")
	pflag.String("s3-bucket", "", "Ship hit files to this S3 bucket")
	pflag.String("s3-prefix", "hits", "Key prefix for shipped hit files")
	pflag.String("s3-region", "", "AWS region override")
	pflag.String("commit-table", "", "DynamoDB table for the shipping commit log")
	pflag.String("config", "", "Path to the configuration file")

	f := pflag.CommandLine
	normalizeFunc := f.GetNormalizeFunc()
	f.SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		result := normalizeFunc(fs, name)
		name = strings.ReplaceAll(string(result), "-", "_")
		return pflag.NormalizedName(name)
	})
}

// LoadConfig parses flags, environment and the optional config file.
func LoadConfig() (Config, error) {
	viper.SetDefault("output_dir", "./imageHits")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("s3_prefix", "hits")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return Config{}, err
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BOVW")

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		viper.SetConfigName("quantized.conf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc")
		// Missing default config is fine; flags and env carry the rest.
		_ = viper.ReadInConfig()
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.Vocabulary == "" {
		return Config{}, fmt.Errorf("missing required option: vocabulary")
	}
	if cfg.Index == "" {
		return Config{}, fmt.Errorf("missing required option: index")
	}
	return cfg, nil
}
