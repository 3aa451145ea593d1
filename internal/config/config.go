// Package config 读取 YAML 配置，并允许 .env 与环境变量覆盖。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"placement-portal/internal/effects"
	"placement-portal/internal/notifier"
	"placement-portal/internal/scheduler"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server        ServerConfig     `yaml:"server"`
	Database      DatabaseConfig   `yaml:"database"`
	Notifications notifier.Config  `yaml:"notifications"`
	Effects       effects.Config   `yaml:"effects"`
	Sweeper       scheduler.Config `yaml:"sweeper"`
}

type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load 先加载 .env（不存在时忽略），再读取 CONFIG_FILE 指向的 YAML（默认 config.yaml）。
func Load(envFiles ...string) (AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load env file: %w", err)
	}
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile 读取指定 YAML，文件不存在时使用默认值；SERVER_ADDR 与 DATABASE_PATH 覆盖文件中的值。
func LoadFile(path string) (AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("SERVER_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_PATH")); v != "" {
		cfg.Database.Path = v
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == "" {
		cfg.Server.ShutdownTimeout = "5s"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "placement.db"
	}
	return cfg, nil
}
