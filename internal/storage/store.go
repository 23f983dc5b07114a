package storage

import (
	"context"
	"errors"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/google/uuid"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrAssetNotFound  = errors.New("asset not found")
)

// DeviceStore persists Device aggregates. SaveDevice is all-or-nothing:
// readers never observe a partially written device.
type DeviceStore interface {
	SaveDevice(ctx context.Context, d *types.Device) error
	LoadDevice(ctx context.Context, id uuid.UUID) (*types.Device, error)
	ListDevices(ctx context.Context) ([]types.DeviceSummary, error)
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	LoadAsset(ctx context.Context, deviceID uuid.UUID, assetID string) (*types.Asset, error)
	Close()
}
