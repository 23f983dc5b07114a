// Package assets extracts the binary resources a device description refers
// to from the files delivered with it.
package assets

import (
	"mime"
	"path"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/gabriel-vasile/mimetype"
)

// Source holds the files delivered alongside a document, keyed by
// their name inside the package.
type Source map[string][]byte

// find matches by base name, ignoring case, since packages differ in
// directory layout and vendors in capitalisation. When several entries share
// the base name, the shallowest wins, then the lexically smallest path.
func (s Source) find(name string) ([]byte, bool) {
	if data, ok := s[name]; ok {
		return data, true
	}
	want := strings.ToLower(path.Base(name))
	best := ""
	found := false
	for k := range s {
		if strings.ToLower(path.Base(k)) != want {
			continue
		}
		if !found || closer(k, best) {
			best, found = k, true
		}
	}
	if !found {
		return nil, false
	}
	return s[best], true
}

func closer(a, b string) bool {
	da, db := strings.Count(a, "/"), strings.Count(b, "/")
	if da != db {
		return da < db
	}
	return a < b
}

type ref struct {
	name string
	role types.AssetRole
}

func refs(id types.Identity) []ref {
	out := make([]ref, 0, 1+2*len(id.ProductVariant))
	if id.VendorLogo != "" {
		out = append(out, ref{id.VendorLogo, types.AssetVendorLogo})
	}
	for _, v := range id.ProductVariant {
		if v.SymbolAsset != "" {
			out = append(out, ref{v.SymbolAsset, types.AssetDeviceSymbol})
		}
		if v.IconAsset != "" {
			out = append(out, ref{v.IconAsset, types.AssetDeviceIcon})
		}
	}
	return out
}

// Extract returns one Asset per distinct file the identity references, in
// reference order. Referenced files missing from src keep their metadata
// with no payload.
func Extract(id types.Identity, src Source, report *types.Report) []types.Asset {
	seen := map[string]bool{}
	assets := make([]types.Asset, 0, 4)

	for _, ref := range refs(id) {
		if seen[ref.name] {
			continue
		}
		seen[ref.name] = true

		a := types.Asset{ID: ref.name, Role: ref.role}
		if data, ok := src.find(ref.name); ok {
			a.Data = data
			a.Size = len(data)
			a.ContentType = DetectContentType(ref.name, data)
		} else {
			a.ContentType = mime.TypeByExtension(path.Ext(ref.name))
			report.AddWarning(types.Issue{
				Code:    types.CodeAssetNotBundled,
				Message: "Referenced file is not part of the package: " + ref.name,
				Path:    "/assets/" + ref.name,
				Ref:     ref.name,
			})
		}
		assets = append(assets, a)
	}
	return assets
}

// DetectContentType sniffs data, falling back to the file extension when
// the content is not recognised.
func DetectContentType(name string, data []byte) string {
	mt := mimetype.Detect(data)
	if !mt.Is("application/octet-stream") && !mt.Is("text/plain") {
		return mt.String()
	}
	if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
		return byExt
	}
	return mt.String()
}
