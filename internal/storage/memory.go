package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MemoryStore keeps devices in process. Devices are copied on the way in and
// out, so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*types.Device
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[uuid.UUID]*types.Device)}
}

func (m *MemoryStore) SaveDevice(ctx context.Context, d *types.Device) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("device has no id")
	}
	cp, err := CloneDevice(d)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; exists {
		return fmt.Errorf("device %s already exists", d.ID)
	}
	m.devices[d.ID] = cp
	return nil
}

func (m *MemoryStore) LoadDevice(ctx context.Context, id uuid.UUID) (*types.Device, error) {
	m.mu.RLock()
	d, ok := m.devices[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return CloneDevice(d)
}

func (m *MemoryStore) ListDevices(ctx context.Context) ([]types.DeviceSummary, error) {
	m.mu.RLock()
	out := make([]types.DeviceSummary, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, d.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.Before(out[j].ImportedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *MemoryStore) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MemoryStore) LoadAsset(ctx context.Context, deviceID uuid.UUID, assetID string) (*types.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	a, ok := d.Asset(assetID)
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	return &cp, nil
}

func (m *MemoryStore) Close() {}

// CloneDevice deep-copies through the same JSON encoding the Postgres store
// uses, so both stores hand back equal devices.
func CloneDevice(d *types.Device) (*types.Device, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal device: %w", err)
	}
	var cp types.Device
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device: %w", err)
	}
	for i := range cp.Assets {
		if i < len(d.Assets) && d.Assets[i].Data != nil {
			cp.Assets[i].Data = append([]byte(nil), d.Assets[i].Data...)
		}
	}
	return &cp, nil
}
