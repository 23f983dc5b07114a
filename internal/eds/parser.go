// Package eds parses EtherNet/IP Electronic Data Sheets into the device
// model shared with the IODD front end.
package eds

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/assets"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/processdata"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"go.uber.org/zap"
)

const descriptorReadOnly = 0x0010

type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

type parseOptions struct {
	assets     assets.Source
	sourceName string
}

type Option func(*parseOptions)

// WithAssets supplies the files packaged with the sheet, used for the
// device icon.
func WithAssets(src assets.Source) Option {
	return func(o *parseOptions) { o.assets = src }
}

func WithSourceName(name string) Option {
	return func(o *parseOptions) { o.sourceName = name }
}

// Parse reads a complete EDS file. An unterminated string and a missing
// [Device] section are fatal; everything else is reported in the result's
// warnings.
func (p *Parser) Parse(data []byte, opts ...Option) (*types.ParseResult, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	report := &types.Report{}
	doc, err := lex(data, report)
	if err != nil {
		return nil, err
	}

	identity, err := extractIdentity(doc)
	if err != nil {
		return nil, err
	}

	b := &builder{
		doc:       doc,
		report:    report,
		datatypes: map[string]bool{},
		dtOrder:   []types.Datatype{},
		params:    map[uint32]int{},
	}
	b.buildParameters()
	b.buildProcessData()
	b.buildMenus()

	src := o.assets
	if icon := doc.Section("Device").Value("IconContents"); icon != "" {
		src = withEmbeddedIcon(src, identity, icon, report)
	}

	device := &types.Device{
		Format:      types.FormatEDS,
		SourceName:  o.sourceName,
		Identity:    identity,
		Datatypes:   b.dtOrder,
		Parameters:  b.parameters,
		ProcessData: b.blocks,
		Menus:       b.menus,
		Assets:      assets.Extract(identity, src, report),
	}

	report.Finalize()
	for _, w := range report.Warnings {
		p.logger.Debug("Parse warning",
			zap.String("code", w.Code),
			zap.String("path", w.Path),
			zap.String("message", w.Message))
	}
	p.logger.Info("Parsed EDS",
		zap.String("source", o.sourceName),
		zap.String("vendor", identity.VendorName),
		zap.String("device", identity.DeviceName),
		zap.Int("parameters", len(b.parameters)),
		zap.Int("process_data_blocks", len(b.blocks)),
		zap.Int("menus", len(b.menus)),
		zap.Int("warnings", len(report.Warnings)))

	return &types.ParseResult{Device: device, Warnings: report.Warnings}, nil
}

func extractIdentity(doc *document) (types.Identity, error) {
	dev := doc.Section("Device")
	if dev == nil {
		return types.Identity{}, fmt.Errorf("%w: no [Device] section", types.ErrMissingIdentity)
	}
	vendor, ok := parseUint(dev.Value("VendCode"))
	if !ok {
		return types.Identity{}, fmt.Errorf("%w: invalid VendCode %q", types.ErrMissingIdentity, dev.Value("VendCode"))
	}
	product, ok := parseUint(dev.Value("ProdCode"))
	if !ok {
		return types.Identity{}, fmt.Errorf("%w: invalid ProdCode %q", types.ErrMissingIdentity, dev.Value("ProdCode"))
	}

	id := types.Identity{
		VendorID:     uint32(vendor),
		VendorName:   dev.Value("VendName"),
		DeviceID:     uint32(product),
		DeviceName:   dev.Value("ProdName"),
		DeviceFamily: dev.Value("ProdTypeStr"),
		ProductType:  dev.Value("ProdType"),
		ProtocolRev:  "EtherNet/IP",
	}
	if major, minor := dev.Value("MajRev"), dev.Value("MinRev"); major != "" {
		id.Revision = major
		if minor != "" {
			id.Revision += "." + minor
		}
	}
	if file := doc.Section("File"); file != nil {
		id.DocumentVer = file.Value("Revision")
		id.VendorText = file.Value("DescText")
		id.ReleaseDate = file.Value("ModDate")
		if id.ReleaseDate == "" {
			id.ReleaseDate = file.Value("CreateDate")
		}
	}

	productID := dev.Value("Catalog")
	if productID == "" {
		productID = dev.Value("ProdCode")
	}
	id.ProductVariant = []types.ProductVariant{{
		ProductID: productID,
		Name:      id.DeviceName,
		IconAsset: dev.Value("Icon"),
	}}
	return id, nil
}

// withEmbeddedIcon adds base64 IconContents to the asset source under the
// name the Icon key declares.
func withEmbeddedIcon(src assets.Source, id types.Identity, encoded string, report *types.Report) assets.Source {
	name := id.ProductVariant[0].IconAsset
	if name == "" {
		return src
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(encoded), ""))
	if err != nil {
		report.Warnf(types.CodeEDSMalformedEntry, "/Device/IconContents", "IconContents is not valid base64: %v", err)
		return src
	}
	out := make(assets.Source, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	if _, bundled := out[name]; !bundled {
		out[name] = data
	}
	return out
}

type builder struct {
	doc    *document
	report *types.Report

	datatypes  map[string]bool
	dtOrder    []types.Datatype
	parameters []types.Parameter
	params     map[uint32]int // ParamN -> index in parameters
	scaling    map[uint32]scaling
	blocks     []types.ProcessDataBlock
	menus      []types.Menu
}

type scaling struct {
	gradient *float64
	offset   *float64
}

func (b *builder) useDatatype(t cipType) {
	if b.datatypes[t.datatypeID()] {
		return
	}
	b.datatypes[t.datatypeID()] = true
	b.dtOrder = append(b.dtOrder, t.datatype())
}

// buildParameters reads ParamN entries. Fields: reserved, link path size,
// link path, descriptor, data type, data size, name, units, help, min, max,
// default, then scaling multiplier, divisor, base and offset.
func (b *builder) buildParameters() {
	sec := b.doc.Section("Params")
	enums := map[uint32]types.Enumeration{}
	for _, e := range sec.numbered("Enum") {
		enums[e.N] = parseEnum(e.entry, b.report)
	}

	b.parameters = []types.Parameter{}
	b.scaling = map[uint32]scaling{}
	for _, e := range sec.numbered("Param") {
		path := "/Params/" + e.Key
		if len(e.Fields) < 7 {
			b.report.Warnf(types.CodeEDSMalformedEntry, path, "Parameter has %d fields, at least 7 required", len(e.Fields))
			continue
		}
		if _, dup := b.params[e.N]; dup {
			b.report.Warnf(types.CodeEDSMalformedEntry, path, "Duplicate parameter number %d", e.N)
			continue
		}

		n := e.N
		param := types.Parameter{
			ID:           paramID(n),
			Index:        &n,
			Name:         e.Field(7),
			Unit:         e.Field(8),
			Description:  e.Field(9),
			MinValue:     e.Field(10),
			MaxValue:     e.Field(11),
			DefaultValue: e.Field(12),
			AccessRights: types.AccessReadWrite,
		}
		if param.Name == "" {
			param.Name = param.ID
		}
		if desc, ok := parseUint(e.Field(4)); ok && desc&descriptorReadOnly != 0 {
			param.AccessRights = types.AccessReadOnly
		}

		size, hasSize := parseUint(e.Field(6))
		code, _ := parseUint(e.Field(5))
		if t, ok := cipTypes[code]; ok {
			b.useDatatype(t)
			param.DatatypeRef = t.datatypeID()
			param.Kind = t.kind
			param.BitLength = t.bits
		} else {
			param.Kind = types.KindUnknown
			b.report.AddWarning(types.Issue{
				Code:    types.CodeEDSUnknownType,
				Message: fmt.Sprintf("Unknown CIP data type %q", e.Field(5)),
				Path:    path,
				Ref:     e.Field(5),
			})
		}
		if hasSize && size > 0 {
			if size > maxBytes {
				b.report.Warnf(types.CodeEDSMalformedEntry, path, "Data size %d bytes is out of range", size)
			} else {
				param.BitLength = uint32(size) * 8
			}
		}

		if enum, ok := enums[n]; ok && len(enum) > 0 {
			param.EnumerationValues = enum
			if param.Kind == types.KindInteger || param.Kind == types.KindUnsigned || param.Kind == types.KindBoolean {
				param.Kind = types.KindEnumerated
			}
		}

		if s, ok := parseScaling(e.entry); ok {
			b.scaling[n] = s
		}

		b.params[n] = len(b.parameters)
		b.parameters = append(b.parameters, param)
	}
}

// parseEnum reads `EnumN = value, "name", value, "name", ...;`.
func parseEnum(e entry, report *types.Report) types.Enumeration {
	if len(e.Fields)%2 != 0 {
		report.Warnf(types.CodeEDSMalformedEntry, "/Params/"+e.Key, "Enumeration has an odd number of fields; last value ignored")
	}
	out := make(types.Enumeration, 0, len(e.Fields)/2)
	for i := 0; i+1 < len(e.Fields); i += 2 {
		value := e.Fields[i]
		if v, ok := parseUint(value); ok {
			value = strconv.FormatUint(v, 10)
		}
		out = append(out, types.EnumEntry{Value: value, Name: e.Fields[i+1]})
	}
	return out
}

// parseScaling reads fields 13 to 16 (multiplier, divisor, base, offset)
// into gradient = mult*base/div and offset.
func parseScaling(e entry) (scaling, bool) {
	mult, okM := parseFloat(e.Field(13))
	div, okD := parseFloat(e.Field(14))
	base, okB := parseFloat(e.Field(15))
	off, okO := parseFloat(e.Field(16))
	if !okM && !okD && !okB && !okO {
		return scaling{}, false
	}
	if !okM {
		mult = 1
	}
	if !okD || div == 0 {
		div = 1
	}
	if !okB {
		base = 1
	}

	var s scaling
	if g := mult * base / div; g != 1 {
		s.gradient = &g
	}
	if okO && off != 0 {
		s.offset = &off
	}
	return s, s.gradient != nil || s.offset != nil
}

func paramID(n uint32) string {
	return "Param" + strconv.FormatUint(uint64(n), 10)
}

// connectionDirections maps assembly keys to the directions the connections
// use them in. O->T format (field 5) is output, T->O format (field 8) input.
func (b *builder) connectionDirections() map[string][]types.Direction {
	dirs := map[string][]types.Direction{}
	add := func(ref string, d types.Direction) {
		key := strings.ToLower(strings.TrimSpace(ref))
		if key == "" {
			return
		}
		for _, have := range dirs[key] {
			if have == d {
				return
			}
		}
		dirs[key] = append(dirs[key], d)
	}
	for _, c := range b.doc.Section("Connection Manager").numbered("Connection") {
		add(c.Field(8), types.DirectionInput)
		add(c.Field(5), types.DirectionOutput)
	}
	return dirs
}

// buildProcessData turns assemblies used by connections into process-data
// blocks. Without connections every assembly is read as input.
func (b *builder) buildProcessData() {
	b.blocks = []types.ProcessDataBlock{}
	assemblies := b.doc.Section("Assembly").numbered("Assem")
	dirs := b.connectionDirections()
	noConnections := len(dirs) == 0

	names := map[string]string{}
	for _, a := range assemblies {
		names[strings.ToLower(a.Key)] = a.Field(1)
	}

	for _, a := range assemblies {
		use := dirs[strings.ToLower(a.Key)]
		if noConnections {
			use = []types.Direction{types.DirectionInput}
		}
		for _, d := range use {
			b.blocks = append(b.blocks, b.assembly(a, d, names))
		}
	}
}

// assembly reads `AssemN = name, path, size, descriptor, reserved, reserved,
// bits, ref, bits, ref, ...;`. Member offsets run from bit 0 in declaration
// order; members with an empty ref are padding.
func (b *builder) assembly(a numberedEntry, dir types.Direction, names map[string]string) types.ProcessDataBlock {
	path := "/Assembly/" + a.Key
	blk := types.ProcessDataBlock{
		ID:        a.Key,
		Name:      a.Field(1),
		Direction: dir,
		Items:     []types.RecordItem{},
	}

	members := []string{}
	if len(a.Fields) > 6 {
		members = a.Fields[6:]
	}
	if len(members)%2 != 0 {
		b.report.Warnf(types.CodeEDSAssemblyTruncated, path, "Member list has an odd number of fields; last member ignored")
	}

	var offset uint32
	var sub uint16
	for i := 0; i+1 < len(members); i += 2 {
		sub++
		bits, ok := parseUint(members[i])
		if !ok || uint64(offset)+bits > math.MaxUint32 {
			b.report.Warnf(types.CodeEDSMalformedEntry, path, "Member %d has invalid size %q", sub, members[i])
			continue
		}
		item := types.RecordItem{
			Subindex:  sub,
			BitOffset: offset,
			BitLength: uint32(bits),
		}
		ref := strings.TrimSpace(members[i+1])
		b.fillMember(&item, ref, path, names)
		blk.Items = append(blk.Items, item)
		offset += uint32(bits)
	}

	if size, ok := parseUint(a.Field(3)); ok && size > 0 && size <= maxBytes {
		blk.TotalBitLength = uint32(size) * 8
	} else {
		blk.TotalBitLength = offset
	}

	processdata.CheckLayout(&blk, path, b.report)
	return blk
}

func (b *builder) fillMember(item *types.RecordItem, ref, path string, names map[string]string) {
	if ref == "" {
		item.Name = "Padding"
		item.Kind = types.KindOctetString
		return
	}
	if len(ref) > 5 && strings.EqualFold(ref[:5], "Param") {
		if n, ok := parseUint(ref[5:]); ok {
			if idx, ok := b.params[uint32(n)]; ok {
				p := b.parameters[idx]
				item.Name = p.Name
				item.DatatypeRef = p.DatatypeRef
				item.Kind = p.Kind
				item.AccessRights = p.AccessRights
				item.DefaultValue = p.DefaultValue
				item.Enumeration = p.EnumerationValues.Clone()
				item.Unit = p.Unit
				if s, ok := b.scaling[uint32(n)]; ok {
					item.Gradient = s.gradient
					item.Offset = s.offset
				}
				return
			}
		}
	}
	if name, ok := names[strings.ToLower(ref)]; ok {
		item.Name = name
		item.Kind = types.KindOctetString
		return
	}

	item.Name = ref
	item.Kind = types.KindUnknown
	b.report.AddWarning(types.Issue{
		Code:    types.CodeEDSUnknownParamRef,
		Message: fmt.Sprintf("Member %d references unknown entry %q", item.Subindex, ref),
		Path:    path,
		Ref:     ref,
	})
}

// buildMenus turns `GroupN = name, count, param, param, ...;` into menus of
// variable references.
func (b *builder) buildMenus() {
	b.menus = []types.Menu{}
	for _, g := range b.doc.Section("Groups").numbered("Group") {
		path := "/Groups/" + g.Key
		menu := types.Menu{ID: g.Key, Name: g.Field(1), Items: []types.MenuItem{}}

		members := []string{}
		if len(g.Fields) > 2 {
			members = g.Fields[2:]
		}
		if count, ok := parseUint(g.Field(2)); ok && int(count) != len(members) {
			b.report.Warnf(types.CodeEDSMalformedEntry, path, "Group declares %d members but lists %d", count, len(members))
		}
		for _, m := range members {
			n, ok := parseUint(m)
			if !ok {
				b.report.Warnf(types.CodeEDSMalformedEntry, path, "Invalid group member %q", m)
				continue
			}
			if _, known := b.params[uint32(n)]; !known {
				b.report.AddWarning(types.Issue{
					Code:    types.CodeEDSUnknownParamRef,
					Message: fmt.Sprintf("Group references unknown parameter %d", n),
					Path:    path,
					Ref:     paramID(uint32(n)),
				})
			}
			menu.Items = append(menu.Items, types.VariableRef{VariableID: paramID(uint32(n))})
		}
		b.menus = append(b.menus, menu)
	}
}

// parseUint accepts decimal and 0x-prefixed hexadecimal.
// maxBytes is the largest byte size whose bit length fits in uint32.
const maxBytes = math.MaxUint32 / 8

func parseUint(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	base := 10
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	return v, err == nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, ok := parseUint(s); ok {
		return float64(v), true
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
