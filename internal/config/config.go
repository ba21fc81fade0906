package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	MySQLDSN   string `yaml:"mysql_dsn" env:"MYSQL_DSN" env-required:"true"`
	HTTPServer `yaml:"http_server"`
	WSServer   WSServer `yaml:"ws_server"`
	Watchdog   Watchdog `yaml:"watchdog"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type WSServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8081"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Watchdog struct {
	SweepInterval      time.Duration `yaml:"sweep_interval" env-default:"5s"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold" env-default:"15s"`
	DiscardThreshold   time.Duration `yaml:"discard_threshold" env-default:"60s"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/local.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}
