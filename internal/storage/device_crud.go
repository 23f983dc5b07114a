package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SaveDevice writes the whole aggregate in one transaction.
func (p *PostgresClient) SaveDevice(ctx context.Context, d *types.Device) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("device has no id")
	}

	identityJSON, err := json.Marshal(d.Identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	rolesJSON, err := json.Marshal(d.RoleMenuSets)
	if err != nil {
		return fmt.Errorf("failed to marshal role menu sets: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO devices (id, format, source_name, content_hash, vendor_id, device_id,
			vendor_name, device_name, identity, role_menu_sets, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, d.ID, string(d.Format), d.SourceName, d.ContentHash,
		int64(d.Identity.VendorID), int64(d.Identity.DeviceID),
		d.Identity.VendorName, d.Identity.DeviceName,
		identityJSON, rolesJSON, d.ImportedAt)

	for i := range d.Datatypes {
		def, err := json.Marshal(d.Datatypes[i])
		if err != nil {
			return fmt.Errorf("failed to marshal datatype %s: %w", d.Datatypes[i].ID, err)
		}
		batch.Queue(`INSERT INTO device_datatypes (device_uuid, position, id, definition) VALUES ($1, $2, $3, $4)`,
			d.ID, i, d.Datatypes[i].ID, def)
	}
	for i := range d.Parameters {
		def, err := json.Marshal(d.Parameters[i])
		if err != nil {
			return fmt.Errorf("failed to marshal parameter %s: %w", d.Parameters[i].ID, err)
		}
		batch.Queue(`INSERT INTO device_parameters (device_uuid, position, id, definition) VALUES ($1, $2, $3, $4)`,
			d.ID, i, d.Parameters[i].ID, def)
	}
	for i := range d.ProcessData {
		b := &d.ProcessData[i]
		def, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal process data %s: %w", b.ID, err)
		}
		batch.Queue(`INSERT INTO device_process_data (device_uuid, position, id, direction, definition) VALUES ($1, $2, $3, $4, $5)`,
			d.ID, i, b.ID, string(b.Direction), def)
	}
	for i := range d.Menus {
		def, err := json.Marshal(d.Menus[i])
		if err != nil {
			return fmt.Errorf("failed to marshal menu %s: %w", d.Menus[i].ID, err)
		}
		batch.Queue(`INSERT INTO device_menus (device_uuid, position, id, definition) VALUES ($1, $2, $3, $4)`,
			d.ID, i, d.Menus[i].ID, def)
	}
	for i, a := range d.Assets {
		batch.Queue(`
			INSERT INTO device_assets (device_uuid, position, id, role, content_type, size, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, d.ID, i, a.ID, string(a.Role), a.ContentType, a.Size, a.Data)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Debug("Saved device",
		zap.String("id", d.ID.String()),
		zap.Int("statements", batch.Len()))
	return nil
}

func (p *PostgresClient) LoadDevice(ctx context.Context, id uuid.UUID) (*types.Device, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var row deviceRow
	err = tx.QueryRow(ctx, `
		SELECT id, format, source_name, content_hash, vendor_id, device_id,
			vendor_name, device_name, identity, role_menu_sets, imported_at
		FROM devices WHERE id = $1
	`, id).Scan(&row.ID, &row.Format, &row.SourceName, &row.ContentHash,
		&row.VendorID, &row.DeviceID, &row.VendorName, &row.DeviceName,
		&row.Identity, &row.RoleMenuSets, &row.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	d := &types.Device{
		ID:          row.ID,
		Format:      types.DeviceFormat(row.Format),
		SourceName:  row.SourceName,
		ContentHash: row.ContentHash,
		ImportedAt:  row.ImportedAt,
		Datatypes:   []types.Datatype{},
		Parameters:  []types.Parameter{},
		ProcessData: []types.ProcessDataBlock{},
		Menus:       []types.Menu{},
		Assets:      []types.Asset{},
	}
	if err := json.Unmarshal(row.Identity, &d.Identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	if err := json.Unmarshal(row.RoleMenuSets, &d.RoleMenuSets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role menu sets: %w", err)
	}

	if err := loadChildren(ctx, tx, "device_datatypes", id, &d.Datatypes); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, tx, "device_parameters", id, &d.Parameters); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, tx, "device_process_data", id, &d.ProcessData); err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, tx, "device_menus", id, &d.Menus); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT position, id, role, content_type, size, data
		FROM device_assets WHERE device_uuid = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a assetRow
		if err := rows.Scan(&a.Position, &a.ID, &a.Role, &a.ContentType, &a.Size, &a.Data); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		d.Assets = append(d.Assets, a.asset())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assets: %w", err)
	}

	return d, nil
}

// loadChildren decodes the positioned definitions of table into out.
// table is always one of the fixed child table names.
func loadChildren[T any](ctx context.Context, tx pgx.Tx, table string, id uuid.UUID, out *[]T) error {
	rows, err := tx.Query(ctx,
		"SELECT position, id, definition FROM "+table+" WHERE device_uuid = $1 ORDER BY position", id)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c childRow
		if err := rows.Scan(&c.Position, &c.ID, &c.Definition); err != nil {
			return fmt.Errorf("failed to scan %s: %w", table, err)
		}
		var v T
		if err := json.Unmarshal(c.Definition, &v); err != nil {
			return fmt.Errorf("failed to unmarshal %s %s: %w", table, c.ID, err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

func (p *PostgresClient) ListDevices(ctx context.Context) ([]types.DeviceSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, format, source_name, content_hash, vendor_id, device_id,
			vendor_name, device_name, imported_at
		FROM devices
		ORDER BY imported_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	summaries := []types.DeviceSummary{}
	for rows.Next() {
		var row deviceRow
		if err := rows.Scan(&row.ID, &row.Format, &row.SourceName, &row.ContentHash,
			&row.VendorID, &row.DeviceID, &row.VendorName, &row.DeviceName, &row.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		summaries = append(summaries, row.summary())
	}
	return summaries, rows.Err()
}

// DeleteDevice removes the device; child rows go with it through ON DELETE
// CASCADE.
func (p *PostgresClient) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (p *PostgresClient) LoadAsset(ctx context.Context, deviceID uuid.UUID, assetID string) (*types.Asset, error) {
	var a assetRow
	err := p.pool.QueryRow(ctx, `
		SELECT position, id, role, content_type, size, data
		FROM device_assets WHERE device_uuid = $1 AND id = $2
		ORDER BY position LIMIT 1
	`, deviceID, assetID).Scan(&a.Position, &a.ID, &a.Role, &a.ContentType, &a.Size, &a.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, deviceID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to query device: %w", err)
		}
		if !exists {
			return nil, ErrDeviceNotFound
		}
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset: %w", err)
	}
	asset := a.asset()
	return &asset, nil
}
