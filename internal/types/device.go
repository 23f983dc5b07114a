package types

import (
	"time"

	"github.com/google/uuid"
)

type DeviceFormat string

const (
	FormatIODD DeviceFormat = "iodd"
	FormatEDS  DeviceFormat = "eds"
)

// Device is the aggregate root produced by one parse. Everything it holds is
// owned exclusively by it; cross references are by id.
type Device struct {
	ID           uuid.UUID          `json:"id"`
	Format       DeviceFormat       `json:"format"`
	SourceName   string             `json:"source_name,omitempty"`
	ContentHash  string             `json:"content_hash,omitempty"`
	ImportedAt   time.Time          `json:"imported_at"`
	Identity     Identity           `json:"identity"`
	Datatypes    []Datatype         `json:"datatypes"`
	Parameters   []Parameter        `json:"parameters"`
	ProcessData  []ProcessDataBlock `json:"process_data"`
	Menus        []Menu             `json:"menus"`
	RoleMenuSets RoleMenuSets       `json:"role_menu_sets"`
	Assets       []Asset            `json:"assets"`
}

type Identity struct {
	VendorID       uint32           `json:"vendor_id"`
	VendorName     string           `json:"vendor_name"`
	VendorText     string           `json:"vendor_text,omitempty"`
	VendorURL      string           `json:"vendor_url,omitempty"`
	DeviceID       uint32           `json:"device_id"`
	DeviceName     string           `json:"device_name"`
	DeviceFamily   string           `json:"device_family,omitempty"`
	ProductType    string           `json:"product_type,omitempty"`
	Revision       string           `json:"revision,omitempty"`
	DocumentVer    string           `json:"document_version,omitempty"`
	ReleaseDate    string           `json:"release_date,omitempty"`
	ProtocolRev    string           `json:"protocol_revision,omitempty"`
	VendorLogo     string           `json:"vendor_logo,omitempty"`
	Languages      []string         `json:"languages,omitempty"`
	ProductVariant []ProductVariant `json:"product_variants,omitempty"`
}

type ProductVariant struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	SymbolAsset string `json:"symbol_asset,omitempty"`
	IconAsset   string `json:"icon_asset,omitempty"`
}

type AccessRights string

const (
	AccessReadOnly  AccessRights = "read-only"
	AccessWriteOnly AccessRights = "write-only"
	AccessReadWrite AccessRights = "read-write"
)

// ParseAccessRights accepts the document spellings ("ro", "wo", "rw") as well
// as the normalized ones. Unknown input yields "".
func ParseAccessRights(s string) AccessRights {
	switch s {
	case "ro", "read-only":
		return AccessReadOnly
	case "wo", "write-only":
		return AccessWriteOnly
	case "rw", "read-write":
		return AccessReadWrite
	}
	return ""
}

// Parameter is one normalized variable of the device, standard or vendor
// defined.
type Parameter struct {
	ID                      string       `json:"id"`
	Index                   *uint32      `json:"index,omitempty"`
	Name                    string       `json:"name"`
	Description             string       `json:"description,omitempty"`
	DatatypeRef             string       `json:"datatype_ref,omitempty"`
	Kind                    DatatypeKind `json:"kind"`
	AccessRights            AccessRights `json:"access_rights"`
	DefaultValue            string       `json:"default_value,omitempty"`
	MinValue                string       `json:"min_value,omitempty"`
	MaxValue                string       `json:"max_value,omitempty"`
	Unit                    string       `json:"unit,omitempty"`
	EnumerationValues       Enumeration  `json:"enumeration_values,omitempty"`
	BitLength               uint32       `json:"bit_length"`
	RecordItems             []RecordItem `json:"record_items,omitempty"`
	Standard                bool         `json:"standard,omitempty"`
	Dynamic                 bool         `json:"dynamic,omitempty"`
	ExcludedFromDataStorage bool         `json:"excluded_from_data_storage,omitempty"`
}

// RecordItem is a bit-addressed field of a record datatype, a record
// parameter or a process-data block.
type RecordItem struct {
	Subindex      uint16        `json:"subindex"`
	Name          string        `json:"name"`
	BitOffset     uint32        `json:"bit_offset"`
	BitLength     uint32        `json:"bit_length"`
	DatatypeRef   string        `json:"datatype_ref,omitempty"`
	Kind          DatatypeKind  `json:"kind"`
	DefaultValue  string        `json:"default_value,omitempty"`
	AccessRights  AccessRights  `json:"access_rights,omitempty"`
	Enumeration   Enumeration   `json:"enumeration,omitempty"`
	Unit          string        `json:"unit,omitempty"`
	Gradient      *float64      `json:"gradient,omitempty"`
	Offset        *float64      `json:"offset,omitempty"`
	DisplayFormat DisplayFormat `json:"display_format,omitempty"`
}

// End is the first bit past the item.
func (r RecordItem) End() uint64 {
	return uint64(r.BitOffset) + uint64(r.BitLength)
}

type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type Condition struct {
	VariableID string  `json:"variable_id"`
	Subindex   *uint16 `json:"subindex,omitempty"`
	Value      string  `json:"value"`
}

type ProcessDataBlock struct {
	ID             string       `json:"id"`
	Name           string       `json:"name,omitempty"`
	Direction      Direction    `json:"direction"`
	TotalBitLength uint32       `json:"total_bit_length"`
	DatatypeRef    string       `json:"datatype_ref,omitempty"`
	Condition      *Condition   `json:"condition,omitempty"`
	Items          []RecordItem `json:"items"`
}

type AssetRole string

const (
	AssetVendorLogo   AssetRole = "vendor_logo"
	AssetDeviceSymbol AssetRole = "device_symbol"
	AssetDeviceIcon   AssetRole = "device_icon"
	AssetDocument     AssetRole = "document"
)

// Asset is a binary resource referenced by the document. Data is nil when
// the resource was referenced but not bundled with the document.
type Asset struct {
	ID          string    `json:"id"`
	Role        AssetRole `json:"role"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int       `json:"size"`
	Data        []byte    `json:"-"`
}

// DeviceSummary is the list view of a stored device.
type DeviceSummary struct {
	ID          uuid.UUID    `json:"id"`
	Format      DeviceFormat `json:"format"`
	VendorName  string       `json:"vendor_name"`
	DeviceName  string       `json:"device_name"`
	VendorID    uint32       `json:"vendor_id"`
	DeviceID    uint32       `json:"device_id"`
	SourceName  string       `json:"source_name,omitempty"`
	ContentHash string       `json:"content_hash,omitempty"`
	ImportedAt  time.Time    `json:"imported_at"`
}

func (d *Device) Summary() DeviceSummary {
	return DeviceSummary{
		ID:          d.ID,
		Format:      d.Format,
		VendorName:  d.Identity.VendorName,
		DeviceName:  d.Identity.DeviceName,
		VendorID:    d.Identity.VendorID,
		DeviceID:    d.Identity.DeviceID,
		SourceName:  d.SourceName,
		ContentHash: d.ContentHash,
		ImportedAt:  d.ImportedAt,
	}
}

// ParameterIndex maps variable id to its position in Parameters.
func (d *Device) ParameterIndex() map[string]*Parameter {
	idx := make(map[string]*Parameter, len(d.Parameters))
	for i := range d.Parameters {
		p := &d.Parameters[i]
		if _, dup := idx[p.ID]; !dup {
			idx[p.ID] = p
		}
	}
	return idx
}

func (d *Device) MenuIndex() map[string]*Menu {
	idx := make(map[string]*Menu, len(d.Menus))
	for i := range d.Menus {
		m := &d.Menus[i]
		if _, dup := idx[m.ID]; !dup {
			idx[m.ID] = m
		}
	}
	return idx
}

func (d *Device) DatatypeIndex() map[string]*Datatype {
	idx := make(map[string]*Datatype, len(d.Datatypes))
	for i := range d.Datatypes {
		idx[d.Datatypes[i].ID] = &d.Datatypes[i]
	}
	return idx
}

// ProcessDataBlock returns the first block matching direction and, when id is
// non-empty, id.
func (d *Device) ProcessDataBlock(id string, dir Direction) (*ProcessDataBlock, bool) {
	for i := range d.ProcessData {
		b := &d.ProcessData[i]
		if b.Direction != dir {
			continue
		}
		if id == "" || b.ID == id {
			return b, true
		}
	}
	return nil, false
}

func (d *Device) Asset(id string) (*Asset, bool) {
	for i := range d.Assets {
		if d.Assets[i].ID == id {
			return &d.Assets[i], true
		}
	}
	return nil, false
}

// ParseResult is what a front end hands back: the device and every
// data-quality issue met on the way.
type ParseResult struct {
	Device   *Device `json:"device"`
	Warnings []Issue `json:"warnings"`
}
