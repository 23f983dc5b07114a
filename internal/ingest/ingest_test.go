package ingest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ioddDoc = `<?xml version="1.0" encoding="UTF-8"?><IODevice/>`

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestOpenPlainDocument(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, ioddDoc...)
	pkg, err := Open("Acme-IODD1.1.xml", data, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, types.FormatIODD, pkg.Format)
	assert.Equal(t, "Acme-IODD1.1.xml", pkg.Name)
	assert.Equal(t, []byte(ioddDoc), pkg.Document, "BOM is stripped")
	assert.Empty(t, pkg.Assets)
	assert.Len(t, pkg.Hash, 32)
	assert.Equal(t, Hash([]byte(ioddDoc)), pkg.Hash)
}

func TestOpenRejects(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxDocumentBytes = 64

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     error
	}{
		{"extension", "device.json", []byte("{}"), ErrUnsupportedExtension},
		{"no extension", "device", []byte(ioddDoc), ErrUnsupportedExtension},
		{"too large", "device.xml", bytes.Repeat([]byte("a"), 65), ErrPayloadTooLarge},
		{"latin-1", "device.eds", []byte("[Device]\nVendName = \"M\xfcller\";\n"), ErrInvalidEncoding},
		{"broken zip", "device.zip", []byte("PK not really"), types.ErrMalformedDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := Open(tt.filename, tt.data, limits)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, pkg)
		})
	}
}

func TestOpenZipSelectsNewestIODD(t *testing.T) {
	logo := []byte{0x89, 'P', 'N', 'G'}
	data := buildZip(t, map[string][]byte{
		"Acme-DS100-20230101-IODD1.1.xml": []byte(ioddDoc + "<!-- old -->"),
		"Acme-DS100-20240115-IODD1.1.xml": []byte(ioddDoc),
		"Acme-logo.png":                   logo,
		"docs/":                           nil,
	})

	pkg, err := Open("package.zip", data, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, "Acme-DS100-20240115-IODD1.1.xml", pkg.Name)
	assert.Equal(t, types.FormatIODD, pkg.Format)
	assert.Equal(t, []byte(ioddDoc), pkg.Document)
	assert.Equal(t, logo, pkg.Assets["Acme-logo.png"])
	assert.Contains(t, pkg.Assets, "Acme-DS100-20230101-IODD1.1.xml")
	assert.NotContains(t, pkg.Assets, "Acme-DS100-20240115-IODD1.1.xml")
}

func TestOpenNestedZip(t *testing.T) {
	innermost := buildZip(t, map[string][]byte{"deep-IODD.xml": []byte(ioddDoc)})
	inner := buildZip(t, map[string][]byte{
		"Vendor-IODD1.1.xml": []byte(ioddDoc),
		"icon.png":           {1, 2, 3},
		"more.zip":           innermost,
	})
	outer := buildZip(t, map[string][]byte{"vendor/inner.zip": inner})

	pkg, err := Open("outer.zip", outer, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, "vendor/inner.zip/Vendor-IODD1.1.xml", pkg.Name)
	assert.Contains(t, pkg.Assets, "vendor/inner.zip/icon.png")
	assert.Contains(t, pkg.Assets, "vendor/inner.zip/more.zip", "archives past the depth limit stay packed")
}

func TestOpenZipDocumentSelection(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string][]byte
		want   string
		format types.DeviceFormat
		err    error
	}{
		{
			name:   "single xml",
			files:  map[string][]byte{"device.xml": []byte(ioddDoc), "readme.txt": []byte("hi")},
			want:   "device.xml",
			format: types.FormatIODD,
		},
		{
			name:   "single eds",
			files:  map[string][]byte{"device.eds": []byte("[Device]\n"), "device.ico": {0}},
			want:   "device.eds",
			format: types.FormatEDS,
		},
		{
			name:  "ambiguous xml",
			files: map[string][]byte{"a.xml": []byte(ioddDoc), "b.xml": []byte(ioddDoc)},
			err:   ErrNoDocument,
		},
		{
			name:  "nothing",
			files: map[string][]byte{"readme.txt": []byte("hi")},
			err:   ErrNoDocument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := Open("pkg.zip", buildZip(t, tt.files), DefaultLimits())
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pkg.Name)
			assert.Equal(t, tt.format, pkg.Format)
		})
	}
}

func TestOpenZipEntryTooLarge(t *testing.T) {
	limits := DefaultLimits()
	data := buildZip(t, map[string][]byte{"big-IODD.xml": bytes.Repeat([]byte(" "), 2048)})
	limits.MaxDocumentBytes = 1024

	_, err := Open("pkg.zip", data, limits)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestOpenZipPackageBudget(t *testing.T) {
	files := map[string][]byte{"Vendor-IODD1.1.xml": []byte(ioddDoc)}
	for i := 0; i < 200; i++ {
		files[fmt.Sprintf("fill/%03d.bin", i)] = make([]byte, 64<<10)
	}
	data := buildZip(t, files)

	limits := DefaultLimits()
	limits.MaxDocumentBytes = 128 << 10
	limits.MaxPackageBytes = 1 << 20
	require.Less(t, int64(len(data)), limits.MaxDocumentBytes, "upload itself is small")

	_, err := Open("pkg.zip", data, limits)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	limits.MaxPackageBytes = 16 << 20
	pkg, err := Open("pkg.zip", data, limits)
	require.NoError(t, err)
	assert.Equal(t, "Vendor-IODD1.1.xml", pkg.Name)
	assert.Len(t, pkg.Assets, 200)
}

func TestOpenZipPackageBudgetCoversNestedArchives(t *testing.T) {
	inner := buildZip(t, map[string][]byte{
		"a.bin": make([]byte, 40<<10),
		"b.bin": make([]byte, 40<<10),
	})
	outer := buildZip(t, map[string][]byte{
		"Vendor-IODD1.1.xml": []byte(ioddDoc),
		"first.zip":          inner,
		"second.zip":         inner,
	})

	limits := DefaultLimits()
	limits.MaxPackageBytes = 128 << 10

	_, err := Open("pkg.zip", outer, limits)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestOpenZipTooManyEntries(t *testing.T) {
	files := map[string][]byte{"Vendor-IODD1.1.xml": []byte(ioddDoc)}
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("icon%d.png", i)] = []byte{byte(i)}
	}
	data := buildZip(t, files)

	limits := DefaultLimits()
	limits.MaxZipEntries = 5
	_, err := Open("pkg.zip", data, limits)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	limits.MaxZipEntries = 11
	_, err = Open("pkg.zip", data, limits)
	assert.NoError(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data string
		want types.DeviceFormat
		err  bool
	}{
		{"device.IODD", "", types.FormatIODD, false},
		{"device.EDS", "", types.FormatEDS, false},
		{"blob", "  \n<IODevice/>", types.FormatIODD, false},
		{"blob", "$ comment\n[File]", types.FormatEDS, false},
		{"blob", "\x00\x01", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name, []byte(tt.data))
		if tt.err {
			assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
