package system

import (
	"context"
	"testing"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/config"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLifecycleStatusAndShutdown(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Database.Driver = "memory"

	lm, err := NewLifecycleManager(storage.NewMemoryStore(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, cfg, lm.Config())
	assert.NotNil(t, lm.DeviceManager())

	status := lm.GetCurrentStatus(context.Background())
	assert.Equal(t, "INITIALIZING", status.State)
	assert.Equal(t, "memory", status.StorageDriver)
	assert.Zero(t, status.DeviceCount)

	require.NoError(t, lm.Shutdown(context.Background()))
	require.NoError(t, lm.Shutdown(context.Background()))
	assert.Equal(t, "STOPPED", lm.GetCurrentStatus(context.Background()).State)
}

func TestLifecycleRejectsBadCatalogPath(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Catalog.UnitsPath = "/nonexistent/units.yaml"

	_, err = NewLifecycleManager(storage.NewMemoryStore(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StateInitializing, StateRunning))
	assert.NoError(t, ValidateTransition(StateRunning, StateStopping))
	assert.Error(t, ValidateTransition(StateStopped, StateRunning))
	assert.Equal(t, "UNKNOWN", SystemState(42).String())
}
