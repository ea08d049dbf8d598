package cli

import (
	"github.com/dioko-ai/bob/internal/capability"
	"github.com/dioko-ai/bob/internal/config"
	"github.com/dioko-ai/bob/internal/orchestrator"
	"github.com/dioko-ai/bob/internal/session"
)

// appContext bundles the core objects a command needs: the loaded config,
// the session store, the orchestration service, and the dispatcher.
type appContext struct {
	cfg        *config.Config
	store      *session.Store
	svc        *orchestrator.Service
	dispatcher *capability.Dispatcher
}

// newAppContext loads configuration and wires the core. Config load
// failures fall back to defaults with a warning, matching the principle
// that a broken config file should not brick the CLI.
func newAppContext() (*appContext, error) {
	logger := GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load config, using defaults")
		cfg = config.Default()
	}

	store, err := session.NewStore(cfg.Storage.RootDir, nil)
	if err != nil {
		return nil, err
	}

	svc := orchestrator.New(orchestrator.Options{
		Backend:           cfg.Backend,
		RollingContextCap: cfg.Context.Cap,
		Logger:            logger,
	})

	return &appContext{
		cfg:        cfg,
		store:      store,
		svc:        svc,
		dispatcher: capability.NewDispatcher(store, svc),
	}, nil
}
