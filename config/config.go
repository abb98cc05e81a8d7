package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// AppConfig holds the storage core's tunables, loaded from
// config.yaml/env and handed to internal/fsentry.Config and
// internal/cache.New at startup.
type AppConfig struct {
	ChunkSize            int64  `mapstructure:"chunk_size"`
	UnfinishedSuffixTerm string `mapstructure:"unfinished_suffix_term"`
	MinimumFreeSpace     int64  `mapstructure:"minimum_free_space"`
	HashCachePath        string `mapstructure:"hash_cache_path"`
	ScanWorkers          int    `mapstructure:"scan_workers"`
	LogLevel             string `mapstructure:"log_level"`
	LogFormat            string `mapstructure:"log_format"`
}

var Config *AppConfig

func LoadConfig(path string) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	viper.SetDefault("chunk_size", 4*1024*1024)
	viper.SetDefault("unfinished_suffix_term", ".unfinished")
	viper.SetDefault("minimum_free_space", 256*1024*1024)
	viper.SetDefault("hash_cache_path", "./data/hashcache")
	viper.SetDefault("scan_workers", 4)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("⚠️ Could not read config file, using defaults: %v", err)
	}

	var appConfig AppConfig
	if err := viper.Unmarshal(&appConfig); err != nil {
		log.Fatalf("❌ Unable to decode config into struct: %v", err)
	}

	Config = &appConfig

	fmt.Println("✅ Configuration loaded successfully.")
}
