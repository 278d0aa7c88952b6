package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/go-core-fx/config"
)

type Config struct {
	APIBaseURL        string        `koanf:"api_base_url"`
	APIToken          string        `koanf:"api_token"`
	SocketURL         string        `koanf:"socket_url"`
	TableID           string        `koanf:"table_id"`
	MenuCategories    string        `koanf:"menu_categories"`
	Timeout           time.Duration `koanf:"timeout"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"`
	MaxReconnectDelay time.Duration `koanf:"max_reconnect_delay"`
	LogFile           string        `koanf:"log_file"`
	Debug             bool          `koanf:"debug"`
}

func New() (Config, error) {
	cfg := Config{
		APIBaseURL:        "http://localhost:8080/api",
		SocketURL:         "ws://localhost:8080/ws",
		Timeout:           15 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		LogFile:           "./table-order.log",
		Debug:             false,
	}

	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// Categories splits MenuCategories on commas, dropping blanks and repeats.
func (c Config) Categories() []string {
	parts := strings.Split(c.MenuCategories, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
