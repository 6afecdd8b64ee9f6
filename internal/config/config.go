package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	Gemini struct {
		Endpoint  string `yaml:"endpoint"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"apiKey"`
		TimeoutMS int    `yaml:"timeoutMS"`
	} `yaml:"gemini"`

	Store struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"store"`

	Ingest struct {
		QueueSize int `yaml:"queueSize"`
	} `yaml:"ingest"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0"}
	c.Gemini.Endpoint = "https://generativelanguage.googleapis.com/v1beta"
	c.Gemini.Model = "gemini-2.0-flash"
	c.Gemini.TimeoutMS = 20000
	c.Store.Capacity = 50
	c.Ingest.QueueSize = 64
	c.Sqlite.Dsn = "db.sqlite3"
	c.Sqlite.Prefix = "confixr_"
	c.Log.Level = "debug"
	c.Log.Writer = []string{"console", "file"}
	c.Log.File = "confixr.log"
	return c
}

// Load 从文件加载配置，文件不存在时返回默认配置
func Load(path string) (*Config, error) {
	c := NewConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}
