package devices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/metrics"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/processdata"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrBlockNotFound = errors.New("process data block not found")

// EventSink is notified after the catalog changed.
type EventSink interface {
	DeviceImported(summary types.DeviceSummary, warnings int)
	DeviceDeleted(id uuid.UUID)
}

type ManagerOptions struct {
	Workers       int
	SchemaTTL     time.Duration
	DebugValidate bool
	Events        EventSink
}

// ImportResult is the outcome of one successful import. Warnings covers both
// parsing and schema composition.
type ImportResult struct {
	Device   types.DeviceSummary `json:"device"`
	Warnings []types.Issue       `json:"warnings"`
	Cached   bool                `json:"cached"`
}

type Upload struct {
	Filename string
	Data     []byte
}

type BatchResult struct {
	Filename string        `json:"filename"`
	Result   *ImportResult `json:"result,omitempty"`
	Err      error         `json:"-"`
}

// ComposedSchema holds the encoded config schema of a stored device.
type ComposedSchema struct {
	Schema   json.RawMessage `json:"schema"`
	Warnings []types.Issue   `json:"warnings"`
}

// Manager imports device descriptions into a store and serves them back,
// composed on demand.
type Manager struct {
	loader    *Loader
	composer  *Composer
	validator *Validator
	store     storage.DeviceStore
	schemas   *cache.Cache
	events    EventSink
	workers   int
	logger    *zap.Logger
}

func NewManager(loader *Loader, composer *Composer, store storage.DeviceStore, opts ManagerOptions, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.SchemaTTL <= 0 {
		opts.SchemaTTL = cache.NoExpiration
	}

	m := &Manager{
		loader:   loader,
		composer: composer,
		store:    store,
		schemas:  cache.New(opts.SchemaTTL, 10*time.Minute),
		events:   opts.Events,
		workers:  opts.Workers,
		logger:   logger,
	}

	if opts.DebugValidate {
		v, err := NewValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to create validator: %w", err)
		}
		m.validator = v
	}

	return m, nil
}

// SetEvents replaces the event sink. Call before serving requests.
func (m *Manager) SetEvents(events EventSink) {
	m.events = events
}

// Import validates, parses and stores one upload. The stored device gets a
// fresh id, so importing the same file twice yields two devices.
func (m *Manager) Import(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	loaded, err := m.loader.Load(filename, data)
	if err != nil {
		return nil, err
	}

	d, err := storage.CloneDevice(loaded.Result.Device)
	if err != nil {
		return nil, err
	}
	d.ID = uuid.New()
	d.ImportedAt = time.Now().UTC().Truncate(time.Microsecond)
	d.ContentHash = loaded.Package.Hash
	if d.SourceName == "" {
		d.SourceName = loaded.Package.Name
	}

	composed, err := m.compose(d)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.store.SaveDevice(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to store device: %w", err)
	}
	m.schemas.SetDefault(d.ID.String(), composed)

	warnings := make([]types.Issue, 0, len(loaded.Result.Warnings)+len(composed.Warnings))
	warnings = append(warnings, loaded.Result.Warnings...)
	warnings = append(warnings, composed.Warnings...)

	summary := d.Summary()
	metrics.DevicesImported.WithLabelValues(string(d.Format)).Inc()
	if m.events != nil {
		m.events.DeviceImported(summary, len(warnings))
	}

	m.logger.Info("Imported device",
		zap.String("id", d.ID.String()),
		zap.String("format", string(d.Format)),
		zap.String("vendor", d.Identity.VendorName),
		zap.String("device", d.Identity.DeviceName),
		zap.Int("warnings", len(warnings)),
		zap.Bool("cached", loaded.Cached))

	return &ImportResult{Device: summary, Warnings: warnings, Cached: loaded.Cached}, nil
}

// ImportBatch imports uploads concurrently on at most Workers goroutines.
// Results keep the order of uploads; one failure does not stop the others.
func (m *Manager) ImportBatch(ctx context.Context, uploads []Upload) []BatchResult {
	results := make([]BatchResult, len(uploads))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, u := range uploads {
		i, u := i, u
		results[i].Filename = u.Filename
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := m.Import(ctx, u.Filename, u.Data)
			results[i].Result = res
			results[i].Err = err
			if err != nil {
				m.logger.Warn("Import failed",
					zap.String("filename", u.Filename),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (m *Manager) Device(ctx context.Context, id uuid.UUID) (*types.Device, error) {
	return m.store.LoadDevice(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]types.DeviceSummary, error) {
	return m.store.ListDevices(ctx)
}

// Schema returns the composed config schema of a stored device.
func (m *Manager) Schema(ctx context.Context, id uuid.UUID) (*ComposedSchema, error) {
	if cached, ok := m.schemas.Get(id.String()); ok {
		metrics.SchemaCompositions.WithLabelValues("hit").Inc()
		return cached.(*ComposedSchema), nil
	}

	d, err := m.store.LoadDevice(ctx, id)
	if err != nil {
		return nil, err
	}

	composed, err := m.compose(d)
	if err != nil {
		return nil, err
	}
	metrics.SchemaCompositions.WithLabelValues("miss").Inc()
	m.schemas.SetDefault(id.String(), composed)
	return composed, nil
}

func (m *Manager) compose(d *types.Device) (*ComposedSchema, error) {
	data, warnings, err := m.composer.ComposeJSON(d)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		if w.Code == types.CodeDanglingMenuRef || w.Code == types.CodeDanglingVariableRef {
			metrics.UnresolvedReferences.Inc()
		}
	}

	if m.validator != nil {
		if err := m.validator.Validate(data); err != nil {
			m.logger.Error("Composed schema violates output contract",
				zap.String("device", d.Identity.DeviceName),
				zap.Error(err))
			return nil, err
		}
	}

	if warnings == nil {
		warnings = []types.Issue{}
	}
	return &ComposedSchema{Schema: data, Warnings: warnings}, nil
}

func (m *Manager) Asset(ctx context.Context, deviceID uuid.UUID, assetID string) (*types.Asset, error) {
	return m.store.LoadAsset(ctx, deviceID, assetID)
}

func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	if err := m.store.DeleteDevice(ctx, id); err != nil {
		return err
	}
	m.schemas.Delete(id.String())
	metrics.DevicesDeleted.Inc()
	if m.events != nil {
		m.events.DeviceDeleted(id)
	}

	m.logger.Info("Deleted device", zap.String("id", id.String()))
	return nil
}

// DecodeProcessData decodes raw bytes against a stored device's process-data
// layout. An empty blockID selects the first block of the direction.
func (m *Manager) DecodeProcessData(ctx context.Context, id uuid.UUID, blockID string, dir types.Direction, raw []byte) (*processdata.Result, error) {
	d, err := m.store.LoadDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	block, ok := d.ProcessDataBlock(blockID, dir)
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s)", ErrBlockNotFound, blockID, dir)
	}
	return processdata.Decode(block, raw)
}

// Close releases the store.
func (m *Manager) Close() {
	m.store.Close()
}
