package devices

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/eds"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/iodd"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	ioddFixture = "Acme-DS100-20240115-IODD1.1.xml"
	edsFixture  = "Acme-FS200.eds"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func readIODD(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "iodd", "testdata", ioddFixture))
	require.NoError(t, err)
	return data
}

func readEDS(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "eds", "testdata", edsFixture))
	require.NoError(t, err)
	return data
}

func parseIODD(t *testing.T) *types.Device {
	t.Helper()
	res, err := iodd.NewParser(testCatalog(t), zap.NewNop()).Parse(readIODD(t))
	require.NoError(t, err)
	return res.Device
}

func parseEDS(t *testing.T) *types.Device {
	t.Helper()
	res, err := eds.NewParser(zap.NewNop()).Parse(readEDS(t))
	require.NoError(t, err)
	return res.Device
}

func findMenu(t *testing.T, s types.ConfigSchema, id string) types.MenuView {
	t.Helper()
	for _, m := range s.Menus {
		if m.ID == id {
			return m
		}
	}
	require.Failf(t, "menu not found", "menu %s", id)
	return types.MenuView{}
}

func issueAt(ws []types.Issue, code, path string) bool {
	for _, w := range ws {
		if w.Code == code && w.Path == path {
			return true
		}
	}
	return false
}
