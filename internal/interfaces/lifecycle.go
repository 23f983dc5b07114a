package interfaces

import (
	"context"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/config"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
)

// SystemStatus is the service-level view served on /api/v1/system/status.
type SystemStatus struct {
	State            string    `json:"state"`
	StorageDriver    string    `json:"storage_driver"`
	DeviceCount      int       `json:"device_count"`
	ConnectedClients int       `json:"connected_clients"`
	StartedAt        time.Time `json:"started_at"`
	Error            string    `json:"error,omitempty"`
}

type LifecycleManager interface {
	Config() *config.Config
	DeviceManager() *devices.Manager
	GetCurrentStatus(ctx context.Context) SystemStatus
	Shutdown(ctx context.Context) error
}
