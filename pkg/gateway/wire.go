package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sirosfoundation/go-hl7gateway/internal/config"
	"github.com/sirosfoundation/go-hl7gateway/pkg/provider"
	"github.com/sirosfoundation/go-hl7gateway/pkg/storage"
	"github.com/sirosfoundation/go-hl7gateway/pkg/storage/mongodb"
)

// NewFromConfigFile builds a fully wired Gateway from a YAML configuration
// file. The ctx bounds backend connection setup only, not the gateway's
// lifetime.
func NewFromConfigFile(ctx context.Context, path string, logger *slog.Logger) (*Gateway, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newFromConfig(ctx, cfg, logger)
}

// NewFromEnv builds a fully wired Gateway from HL7GW_* environment
// variables, for deployments that carry no config file.
func NewFromEnv(ctx context.Context, logger *slog.Logger) (*Gateway, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return newFromConfig(ctx, cfg, logger)
}

func newFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.Logging.SlogLevel(),
		}))
	}

	var store storage.LogStore
	switch cfg.Storage.Backend {
	case config.BackendMongoDB:
		mongoStore, err := mongodb.NewStore(ctx, &mongodb.Config{
			URI:        cfg.Storage.MongoDB.URI,
			Database:   cfg.Storage.MongoDB.Database,
			Collection: cfg.Storage.MongoDB.Collection,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting audit store: %w", err)
		}
		store = mongoStore
	case config.BackendMemory:
		store = storage.NewMemoryStore()
	default:
		// Load/FromEnv validate the backend, so this is unreachable in
		// practice.
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	timeouts := provider.Timeouts{
		HTTP: time.Duration(cfg.Providers.HTTPTimeoutSeconds) * time.Second,
		MLLP: time.Duration(cfg.Providers.MLLPTimeoutSeconds) * time.Second,
		SFTP: time.Duration(cfg.Providers.SFTPTimeoutSeconds) * time.Second,
	}
	factory := provider.NewFactory(provider.Dependencies{
		HTTPClient: provider.NewHTTPClient(provider.DefaultHTTPConfig()),
		Logger:     logger,
		Timeouts:   timeouts,
	})

	return New(Config{
		Factory:   factory,
		Store:     store,
		Logger:    logger,
		Retention: time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour,
		Timeouts:  timeouts,
	})
}
