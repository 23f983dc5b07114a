package storage

import (
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/google/uuid"
)

// deviceRow is the devices table. Child collections live in their own tables
// keyed by (device_uuid, position).
type deviceRow struct {
	ID           uuid.UUID
	Format       string
	SourceName   string
	ContentHash  string
	VendorID     int64
	DeviceID     int64
	VendorName   string
	DeviceName   string
	Identity     []byte
	RoleMenuSets []byte
	ImportedAt   time.Time
}

// childRow is one positioned JSON definition of a datatype, parameter,
// process-data block or menu.
type childRow struct {
	Position   int
	ID         string
	Definition []byte
}

type assetRow struct {
	Position    int
	ID          string
	Role        string
	ContentType string
	Size        int
	Data        []byte
}

func (r *deviceRow) summary() types.DeviceSummary {
	return types.DeviceSummary{
		ID:          r.ID,
		Format:      types.DeviceFormat(r.Format),
		VendorName:  r.VendorName,
		DeviceName:  r.DeviceName,
		VendorID:    uint32(r.VendorID),
		DeviceID:    uint32(r.DeviceID),
		SourceName:  r.SourceName,
		ContentHash: r.ContentHash,
		ImportedAt:  r.ImportedAt,
	}
}

func (r *assetRow) asset() types.Asset {
	return types.Asset{
		ID:          r.ID,
		Role:        types.AssetRole(r.Role),
		ContentType: r.ContentType,
		Size:        r.Size,
		Data:        r.Data,
	}
}
