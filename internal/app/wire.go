// Package app builds the dependency graph the CLI drives: configuration,
// logging, persistence, transport, and the engine itself — generalized
// from the teacher's Wire struct to this engine's ports.
package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ciphera/internal/config"
	"ciphera/internal/domain"
	"ciphera/internal/engine"
	"ciphera/internal/logging"
	"ciphera/internal/services/identity"
	"ciphera/internal/store"
	"ciphera/internal/transport"
)

// Wire holds every constructed component a CLI command needs.
type Wire struct {
	Config   config.Config
	Logger   *zap.Logger
	Stores   domain.Stores
	Transport domain.Transport
	Engine   *engine.Engine
	Identity *identity.Service
}

// NewWire loads configuration from homeDir and constructs the full
// dependency graph: file-backed stores, the configured transport (redis, a
// WebSocket connection to cmd/gossipd, or an in-process memory bus for
// local/dev use), and the engine built over them.
func NewWire(homeDir string) (*Wire, error) {
	cfg, err := config.Load(homeDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	stores, err := store.OpenFileStores(homeDir)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}

	var tp domain.Transport
	switch cfg.Transport {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		tp = transport.NewRedisBus(client, logger)
	case "ws":
		tp, err = transport.DialWSBus(cfg.GossipdURL)
		if err != nil {
			return nil, fmt.Errorf("connect gossipd: %w", err)
		}
	default:
		tp = transport.NewMemoryBus()
	}

	eng := engine.New(stores, tp, logger)

	return &Wire{
		Config:    cfg,
		Logger:    logger,
		Stores:    stores,
		Transport: tp,
		Engine:    eng,
		Identity:  identity.New(eng),
	}, nil
}
