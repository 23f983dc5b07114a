// Package ingest validates uploaded device descriptions and unpacks the
// packages they are delivered in, before any parsing happens.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/assets"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/zeebo/xxh3"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrInvalidEncoding      = errors.New("document is not valid UTF-8")
	ErrNoDocument           = errors.New("no device description found in package")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Limits bound a single upload. MaxDocumentBytes applies to the upload and
// to each archive entry, MaxPackageBytes and MaxZipEntries to everything
// decompressed from one archive including nested ones.
type Limits struct {
	MaxDocumentBytes  int64
	MaxPackageBytes   int64
	MaxZipEntries     int
	AllowedExtensions []string
	MaxZipDepth       int
}

func DefaultLimits() Limits {
	return Limits{
		MaxDocumentBytes:  16 << 20,
		MaxPackageBytes:   64 << 20,
		MaxZipEntries:     1000,
		AllowedExtensions: []string{".xml", ".iodd", ".zip", ".eds"},
		MaxZipDepth:       2,
	}
}

// Package is a validated upload: the main document plus every other file
// delivered with it.
type Package struct {
	Name     string
	Format   types.DeviceFormat
	Document []byte
	Assets   assets.Source
	Hash     string
}

// Open validates one upload and, for archives, selects the main document.
func Open(filename string, data []byte, limits Limits) (*Package, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !allowed(ext, limits.AllowedExtensions) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, filename)
	}
	if limits.MaxDocumentBytes > 0 && int64(len(data)) > limits.MaxDocumentBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(data), limits.MaxDocumentBytes)
	}

	pkg := &Package{Name: path.Base(filename), Document: data, Assets: assets.Source{}}
	if ext == ".zip" {
		u := &unzipper{limits: limits, files: map[string][]byte{}}
		if err := u.unzip(data, "", 1); err != nil {
			return nil, err
		}
		files := u.files
		name, err := selectDocument(files)
		if err != nil {
			return nil, err
		}
		pkg.Name = name
		pkg.Document = files[name]
		for k, v := range files {
			if k != name {
				pkg.Assets[k] = v
			}
		}
	}

	format, err := DetectFormat(pkg.Name, pkg.Document)
	if err != nil {
		return nil, err
	}
	pkg.Format = format

	pkg.Document = bytes.TrimPrefix(pkg.Document, utf8BOM)
	if !utf8.Valid(pkg.Document) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEncoding, pkg.Name)
	}
	pkg.Hash = Hash(pkg.Document)
	return pkg, nil
}

func allowed(ext string, exts []string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// DetectFormat decides by extension, falling back to the content for names
// without a known one.
func DetectFormat(name string, data []byte) (types.DeviceFormat, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".iodd":
		return types.FormatIODD, nil
	case ".eds":
		return types.FormatEDS, nil
	}

	head := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("<")):
		return types.FormatIODD, nil
	case bytes.HasPrefix(head, []byte("[")), bytes.HasPrefix(head, []byte("$")):
		return types.FormatEDS, nil
	}
	return "", fmt.Errorf("%w: cannot detect format of %q", types.ErrUnsupportedFormat, name)
}

// Hash is the content hash stored with a device and used as parse-cache key.
func Hash(data []byte) string {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:])
}

type unzipper struct {
	limits  Limits
	files   map[string][]byte
	total   int64
	entries int
}

// unzip reads every regular entry of the archive into u.files. Nested
// archives are unpacked under their own name as prefix up to
// limits.MaxZipDepth and kept as plain entries beyond it.
func (u *unzipper) unzip(data []byte, prefix string, depth int) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: invalid zip archive: %v", types.ErrMalformedDocument, err)
	}

	for _, zf := range r.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		u.entries++
		if u.limits.MaxZipEntries > 0 && u.entries > u.limits.MaxZipEntries {
			return fmt.Errorf("%w: package has more than %d entries", ErrPayloadTooLarge, u.limits.MaxZipEntries)
		}
		if u.limits.MaxDocumentBytes > 0 && zf.UncompressedSize64 > uint64(u.limits.MaxDocumentBytes) {
			return fmt.Errorf("%w: entry %s is %d bytes", ErrPayloadTooLarge, zf.Name, zf.UncompressedSize64)
		}
		content, err := u.read(zf)
		if err != nil {
			return err
		}

		name := prefix + zf.Name
		if strings.EqualFold(path.Ext(zf.Name), ".zip") && depth < u.limits.MaxZipDepth {
			if err := u.unzip(content, name+"/", depth+1); err != nil {
				return err
			}
			continue
		}
		u.files[name] = content
	}
	return nil
}

// read decompresses one entry, capped by the per-entry limit and by what is
// left of the package budget.
func (u *unzipper) read(zf *zip.File) ([]byte, error) {
	f, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open zip entry %s: %w", zf.Name, err)
	}
	defer f.Close()

	entryLimit := u.limits.MaxDocumentBytes
	packageLimit := int64(-1)
	if u.limits.MaxPackageBytes > 0 {
		packageLimit = u.limits.MaxPackageBytes - u.total
	}

	limit := entryLimit
	if packageLimit >= 0 && (limit <= 0 || packageLimit < limit) {
		limit = packageLimit
	}

	var rd io.Reader = f
	if entryLimit > 0 || packageLimit >= 0 {
		rd = io.LimitReader(f, limit+1)
	}
	content, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip entry %s: %w", zf.Name, err)
	}

	size := int64(len(content))
	if entryLimit > 0 && size > entryLimit {
		return nil, fmt.Errorf("%w: entry %s", ErrPayloadTooLarge, zf.Name)
	}
	if packageLimit >= 0 && size > packageLimit {
		return nil, fmt.Errorf("%w: package decompresses to more than %d bytes", ErrPayloadTooLarge, u.limits.MaxPackageBytes)
	}
	u.total += size
	return content, nil
}

// selectDocument picks the main document of a package: an .xml whose name
// contains "IODD" (the newest by name when several do), else the only .xml,
// else the only .eds.
func selectDocument(files map[string][]byte) (string, error) {
	var iodd, xmls, eds []string
	for name := range files {
		base := strings.ToLower(path.Base(name))
		switch path.Ext(base) {
		case ".xml":
			xmls = append(xmls, name)
			if strings.Contains(base, "iodd") {
				iodd = append(iodd, name)
			}
		case ".eds":
			eds = append(eds, name)
		}
	}

	switch {
	case len(iodd) > 0:
		sort.Slice(iodd, func(i, j int) bool {
			bi, bj := path.Base(iodd[i]), path.Base(iodd[j])
			if bi != bj {
				return bi > bj
			}
			return iodd[i] < iodd[j]
		})
		return iodd[0], nil
	case len(xmls) == 1:
		return xmls[0], nil
	case len(xmls) > 1:
		sort.Strings(xmls)
		return "", fmt.Errorf("%w: ambiguous xml documents %s", ErrNoDocument, strings.Join(xmls, ", "))
	case len(eds) == 1:
		return eds[0], nil
	case len(eds) > 1:
		sort.Strings(eds)
		return "", fmt.Errorf("%w: ambiguous eds documents %s", ErrNoDocument, strings.Join(eds, ", "))
	}
	return "", ErrNoDocument
}
