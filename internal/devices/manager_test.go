package devices

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedEvents struct {
	mu       sync.Mutex
	imported []types.DeviceSummary
	deleted  []uuid.UUID
}

func (r *recordedEvents) DeviceImported(s types.DeviceSummary, warnings int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imported = append(r.imported, s)
}

func (r *recordedEvents) DeviceDeleted(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
}

func newTestManager(t *testing.T, events EventSink) *Manager {
	t.Helper()
	cat := testCatalog(t)
	logger := zap.NewNop()
	m, err := NewManager(
		NewLoader(cat, ingest.DefaultLimits(), time.Minute, logger),
		NewComposer(cat, logger),
		storage.NewMemoryStore(),
		ManagerOptions{Workers: 2, SchemaTTL: time.Minute, DebugValidate: true, Events: events},
		logger,
	)
	require.NoError(t, err)
	return m
}

func TestManagerImportLifecycle(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	m := newTestManager(t, events)

	res, err := m.Import(ctx, ioddFixture, readIODD(t))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, res.Device.ID)
	assert.Equal(t, types.FormatIODD, res.Device.Format)
	assert.Equal(t, "DS100 Distance Sensor", res.Device.DeviceName)
	assert.Len(t, res.Device.ContentHash, 32)
	assert.True(t, issueAt(res.Warnings, types.CodeDanglingVariableRef, "/menus/M_Sub/items/0"))
	assert.False(t, res.Cached)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Device, list[0])

	d, err := m.Device(ctx, res.Device.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Device.ID, d.ID)

	schema, err := m.Schema(ctx, res.Device.ID)
	require.NoError(t, err)
	var decoded types.ConfigSchema
	require.NoError(t, json.Unmarshal(schema.Schema, &decoded))
	assert.Equal(t, res.Device.ID.String(), decoded.DeviceID)
	assert.Equal(t, "M_Param", decoded.RoleMappings.Maintenance[types.CategoryParameter])

	again, err := m.Schema(ctx, res.Device.ID)
	require.NoError(t, err)
	assert.Same(t, schema, again)

	require.NoError(t, m.Delete(ctx, res.Device.ID))
	_, err = m.Schema(ctx, res.Device.ID)
	assert.ErrorIs(t, err, storage.ErrDeviceNotFound)
	assert.ErrorIs(t, m.Delete(ctx, res.Device.ID), storage.ErrDeviceNotFound)

	require.Len(t, events.imported, 1)
	assert.Equal(t, []uuid.UUID{res.Device.ID}, events.deleted)
}

func TestManagerReimportUsesParseCache(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	first, err := m.Import(ctx, ioddFixture, readIODD(t))
	require.NoError(t, err)
	second, err := m.Import(ctx, ioddFixture, readIODD(t))
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.NotEqual(t, first.Device.ID, second.Device.ID)
	assert.Equal(t, first.Device.ContentHash, second.Device.ContentHash)
	assert.Equal(t, len(first.Warnings), len(second.Warnings))

	a, err := m.Schema(ctx, first.Device.ID)
	require.NoError(t, err)
	b, err := m.Schema(ctx, second.Device.ID)
	require.NoError(t, err)
	assert.NotEqual(t, string(a.Schema), string(b.Schema), "device ids differ")
}

func TestManagerImportRejects(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Import(context.Background(), "device.pdf", []byte("%PDF"))
	assert.ErrorIs(t, err, ingest.ErrUnsupportedExtension)

	_, err = m.Import(context.Background(), "device.xml", []byte("<IODevice/>"))
	assert.ErrorIs(t, err, types.ErrMissingIdentity)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManagerImportBatch(t *testing.T) {
	m := newTestManager(t, nil)

	results := m.ImportBatch(context.Background(), []Upload{
		{Filename: ioddFixture, Data: readIODD(t)},
		{Filename: "broken.eds", Data: []byte("[File]\n")},
		{Filename: edsFixture, Data: readEDS(t)},
	})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, types.FormatIODD, results[0].Result.Device.Format)
	assert.ErrorIs(t, results[1].Err, types.ErrMissingIdentity)
	assert.Nil(t, results[1].Result)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, types.FormatEDS, results[2].Result.Device.Format)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestManagerImportBatchCancelled(t *testing.T) {
	m := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := m.ImportBatch(ctx, []Upload{{Filename: ioddFixture, Data: readIODD(t)}})
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestManagerDecodeProcessData(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	res, err := m.Import(ctx, ioddFixture, readIODD(t))
	require.NoError(t, err)

	out, err := m.DecodeProcessData(ctx, res.Device.ID, "", types.DirectionInput, []byte{0x01, 0x2C, 0x50, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "PD_In", out.BlockID)
	require.Len(t, out.Values, 3)
	assert.Equal(t, int64(300), out.Values[0].Value)
	require.NotNil(t, out.Values[0].Scaled)
	assert.InDelta(t, 30.0, *out.Values[0].Scaled, 1e-9)
	assert.Equal(t, uint64(0x50), out.Values[1].Value)
	assert.Equal(t, "On", out.Values[2].Label)

	_, err = m.DecodeProcessData(ctx, res.Device.ID, "PD_Nope", types.DirectionInput, []byte{0})
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = m.DecodeProcessData(ctx, uuid.New(), "", types.DirectionInput, []byte{0})
	assert.ErrorIs(t, err, storage.ErrDeviceNotFound)
}

func TestManagerAssets(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	res, err := m.Import(ctx, edsFixture, readEDS(t))
	require.NoError(t, err)

	a, err := m.Asset(ctx, res.Device.ID, "dev.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)
	assert.NotEmpty(t, a.Data)

	_, err = m.Asset(ctx, res.Device.ID, "other.png")
	assert.ErrorIs(t, err, storage.ErrAssetNotFound)
}
