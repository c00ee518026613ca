package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the process-level configuration. Workflow content lives in
// the workflow declaration; this covers only where the process listens,
// where it keeps state and how it talks to task handlers.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	Server  ServerConfig  `koanf:"server"  validate:"required"`
	Runtime RuntimeConfig `koanf:"runtime" validate:"required"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `koanf:"json"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RuntimeConfig struct {
	StoreDir      string        `koanf:"store_dir"     validate:"required"`
	TasksDir      string        `koanf:"tasks_dir"     validate:"required"`
	InvokeTimeout time.Duration `koanf:"invoke_timeout" validate:"gt=0"`
	PollInterval  time.Duration `koanf:"poll_interval"  validate:"gt=0"`
	BackoffBase   time.Duration `koanf:"backoff_base"   validate:"gt=0"`
}

// Default returns the built-in configuration every load starts from.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5601,
		},
		Runtime: RuntimeConfig{
			StoreDir:      ".flowgate/runs",
			TasksDir:      ".flowgate/tasks",
			InvokeTimeout: 10 * time.Minute,
			PollInterval:  250 * time.Millisecond,
			BackoffBase:   500 * time.Millisecond,
		},
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
