package system

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/api/rest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/api/websocket"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/config"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/interfaces"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"go.uber.org/zap"
)

// LifecycleManager owns every long-lived component of the service.
type LifecycleManager struct {
	config        *config.Config
	store         storage.DeviceStore
	deviceManager *devices.Manager
	wsHub         *websocket.Hub
	restServer    *rest.Server
	logger        *zap.Logger

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    error
	startedAt    time.Time

	hubCancel    context.CancelFunc
	shutdownOnce sync.Once
}

var _ interfaces.LifecycleManager = (*LifecycleManager)(nil)

func NewLifecycleManager(store storage.DeviceStore, cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	cat, err := catalog.Load(cfg.Catalog.StdVarsPath, cfg.Catalog.UnitsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	hub := websocket.NewHub(logger)

	deviceManager, err := devices.NewManager(
		devices.NewLoader(cat, cfg.Ingest.Limits(), cfg.Cache.ParseTTL, logger),
		devices.NewComposer(cat, logger),
		store,
		devices.ManagerOptions{
			Workers:       cfg.Ingest.Workers,
			SchemaTTL:     cfg.Cache.SchemaTTL,
			DebugValidate: cfg.Server.DebugValidate,
			Events:        hub,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create device manager: %w", err)
	}

	lm := &LifecycleManager{
		config:        cfg,
		store:         store,
		deviceManager: deviceManager,
		wsHub:         hub,
		logger:        logger,
		currentState:  StateInitializing,
	}
	lm.restServer = rest.NewServer(cfg, lm, logger, hub)

	logger.Info("Catalog loaded",
		zap.String("version", cat.Version()),
		zap.Int("standard_variables", cat.Len()))

	return lm, nil
}

func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) DeviceManager() *devices.Manager {
	return lm.deviceManager
}

func (lm *LifecycleManager) Start() error {
	lm.logger.Info("Starting OpenDeviceCatalog")

	hubCtx, cancel := context.WithCancel(context.Background())
	lm.hubCancel = cancel
	go lm.wsHub.Run(hubCtx)

	if err := lm.restServer.Start(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	lm.stateMu.Lock()
	lm.startedAt = time.Now().UTC()
	lm.stateMu.Unlock()
	lm.setState(StateRunning)

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("storage", lm.config.Database.Driver),
		zap.Int("workers", lm.config.Ingest.Workers))

	return nil
}

func (lm *LifecycleManager) GetCurrentStatus(ctx context.Context) interfaces.SystemStatus {
	lm.stateMu.RLock()
	status := interfaces.SystemStatus{
		State:            lm.currentState.String(),
		StorageDriver:    lm.config.Database.Driver,
		ConnectedClients: lm.wsHub.GetClientCount(),
		StartedAt:        lm.startedAt,
	}
	if lm.lastError != nil {
		status.Error = lm.lastError.Error()
	}
	lm.stateMu.RUnlock()

	if list, err := lm.deviceManager.List(ctx); err == nil {
		status.DeviceCount = len(list)
	} else {
		status.Error = err.Error()
	}
	return status
}

// Shutdown stops accepting requests, closes live connections and releases
// the store. Only the first call has an effect.
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		var errs []error
		if err := lm.restServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("REST server shutdown failed: %w", err))
		}
		if lm.hubCancel != nil {
			lm.hubCancel()
		}
		lm.deviceManager.Close()

		shutdownErr = errors.Join(errs...)
		if shutdownErr != nil {
			lm.setError(shutdownErr)
		}
		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) setState(state SystemState) {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, state); err != nil {
		lm.logger.Warn("Unexpected state transition", zap.Error(err))
	}
	lm.currentState = state
}

func (lm *LifecycleManager) setError(err error) {
	lm.logger.Error("System error", zap.Error(err))
	lm.stateMu.Lock()
	lm.lastError = err
	lm.stateMu.Unlock()
	lm.setState(StateError)
}
