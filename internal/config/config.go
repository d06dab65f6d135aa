package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel           string `yaml:"log-level" env-default:"info"`
	HTTPPort           string `yaml:"http-port" env-default:"9090"`
	SocketPort         string `yaml:"socket-port" env-default:"9091"`
	Redis              Redis  `yaml:"redis"`
	SQLiteStoragePath  string `yaml:"sqlite-storage-path" env-default:"bingo.db"`
	JWTSecretKey       string `yaml:"jwt-secret-key"`
	TurnTimeoutSeconds int    `yaml:"turn-timeout-seconds" env-default:"30"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

// GetTurnTimeout returns the per-turn deadline duration.
func (that *Config) GetTurnTimeout() time.Duration {
	return time.Duration(that.TurnTimeoutSeconds) * time.Second
}
