package iodd

import (
	"fmt"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

func extractIdentity(doc *xmlDocument, texts *textTable) (types.Identity, error) {
	if doc.ProfileBody == nil || doc.ProfileBody.DeviceIdentity == nil {
		return types.Identity{}, types.ErrMissingIdentity
	}
	di := doc.ProfileBody.DeviceIdentity

	vendorID, ok := parseUint32(di.VendorID)
	if !ok {
		return types.Identity{}, fmt.Errorf("%w: invalid vendorId %q", types.ErrMissingIdentity, di.VendorID)
	}
	deviceID, ok := parseUint32(di.DeviceID)
	if !ok {
		return types.Identity{}, fmt.Errorf("%w: invalid deviceId %q", types.ErrMissingIdentity, di.DeviceID)
	}

	const path = "/identity"
	id := types.Identity{
		VendorID:     vendorID,
		VendorName:   di.VendorName,
		VendorText:   texts.lookup(di.VendorText, path),
		VendorURL:    texts.lookup(di.VendorURL, path),
		DeviceID:     deviceID,
		DeviceName:   texts.lookup(di.DeviceName, path),
		DeviceFamily: texts.lookup(di.DeviceFamily, path),
		DocumentVer:  doc.DocumentInfo.Version,
		ReleaseDate:  doc.DocumentInfo.ReleaseDate,
		ProtocolRev:  doc.ProfileHeader.ProfileRevision,
		VendorLogo:   di.VendorLogo.Name,
		Languages:    languages(doc.ExternalTextCollection),
	}

	for i, v := range di.Variants {
		vpath := fmt.Sprintf("%s/product_variants/%d", path, i)
		id.ProductVariant = append(id.ProductVariant, types.ProductVariant{
			ProductID:   v.ProductID,
			Name:        texts.lookup(v.Name, vpath),
			Description: texts.lookup(v.Description, vpath),
			SymbolAsset: v.DeviceSymbol,
			IconAsset:   v.DeviceIcon,
		})
	}

	if id.DeviceName == "" && len(id.ProductVariant) > 0 {
		id.DeviceName = id.ProductVariant[0].Name
	}
	return id, nil
}
