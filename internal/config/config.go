// Package config loads the engine's configuration: the normative
// NEXT_PUBLIC_WAKU_BOOTSTRAP environment variable (optionally supplied via
// a .env file), plus a non-normative local account profile file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// defaultBootstrap is used when NEXT_PUBLIC_WAKU_BOOTSTRAP is unset.
var defaultBootstrap = []string{
	"/dns4/bootstrap-01.waku.ciphera.local/tcp/443/wss",
	"/dns4/bootstrap-02.waku.ciphera.local/tcp/443/wss",
}

// Config is the engine's runtime configuration.
type Config struct {
	BootstrapAddrs []string
	HomeDir        string
	LogPath        string
	Transport      string // "redis", "ws", or "memory"
	RedisAddr      string
	GossipdURL     string
}

// Load reads .env (if present) into the process environment, then resolves
// Config fields from the environment and, if present, homeDir/config.toml.
func Load(homeDir string) (Config, error) {
	_ = godotenv.Load(filepath.Join(homeDir, ".env")) // absent .env is not an error

	cfg := Config{
		BootstrapAddrs: bootstrapAddrs(),
		HomeDir:        homeDir,
		LogPath:        filepath.Join(homeDir, "ciphera.log"),
		Transport:      "memory",
		RedisAddr:      "localhost:6379",
		GossipdURL:     "ws://localhost:8090/ws",
	}

	var profile accountProfile
	profilePath := filepath.Join(homeDir, "config.toml")
	if _, err := os.Stat(profilePath); err == nil {
		if _, err := toml.DecodeFile(profilePath, &profile); err != nil {
			return Config{}, err
		}
		if profile.Transport != "" {
			cfg.Transport = profile.Transport
		}
		if profile.RedisAddr != "" {
			cfg.RedisAddr = profile.RedisAddr
		}
		if profile.GossipdURL != "" {
			cfg.GossipdURL = profile.GossipdURL
		}
	}

	return cfg, nil
}

// accountProfile is the optional config.toml shape, grounded in the pack's
// BurntSushi/toml account-profile pattern.
type accountProfile struct {
	Transport  string `toml:"transport"`
	RedisAddr  string `toml:"redis_addr"`
	GossipdURL string `toml:"gossipd_url"`
}

func bootstrapAddrs() []string {
	raw := os.Getenv("NEXT_PUBLIC_WAKU_BOOTSTRAP")
	if raw == "" {
		return defaultBootstrap
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultBootstrap
	}
	return out
}
