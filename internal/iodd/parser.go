// Package iodd parses IO-Link device descriptions (IODD XML) into the
// device model.
package iodd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/assets"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"go.uber.org/zap"
)

// Parser is stateless between calls; one Parser may serve concurrent parses.
type Parser struct {
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewParser(cat *catalog.Catalog, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{catalog: cat, logger: logger}
}

type parseOptions struct {
	assets     assets.Source
	sourceName string
}

type Option func(*parseOptions)

// WithAssets supplies the files packaged with the document, used to fill in
// referenced icons and logos.
func WithAssets(src assets.Source) Option {
	return func(o *parseOptions) { o.assets = src }
}

// WithSourceName records the file name the document came from.
func WithSourceName(name string) Option {
	return func(o *parseOptions) { o.sourceName = name }
}

// Parse reads a complete IODD document. Malformed XML, a missing
// DeviceIdentity and cyclic datatype references are fatal and yield no
// Device; everything else is reported in the result's warnings.
func (p *Parser) Parse(data []byte, opts ...Option) (*types.ParseResult, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	var doc xmlDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Payloads are checked for UTF-8 before they get here; a declared legacy
	// charset on an ASCII document is read as is.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedDocument, err)
	}

	report := &types.Report{}
	texts := newTextTable(doc.ExternalTextCollection, report)

	identity, err := extractIdentity(&doc, texts)
	if err != nil {
		return nil, err
	}
	fn := &doc.ProfileBody.DeviceFunction

	resolver := newDatatypeResolver(fn.Datatypes, texts, report)
	datatypes, err := resolver.resolveAll()
	if err != nil {
		return nil, err
	}

	params, err := (&parameterExtractor{catalog: p.catalog, resolver: resolver, texts: texts, report: report}).extract(fn.Variables)
	if err != nil {
		return nil, err
	}

	blocks, err := (&processDataExtractor{resolver: resolver, texts: texts, report: report}).extract(fn.ProcessData)
	if err != nil {
		return nil, err
	}
	applyProcessDataUI(blocks, fn.UserInterface.ProcessDataRefs, p.catalog)

	mb := &menuBuilder{texts: texts, report: report}
	menus := mb.build(fn.UserInterface)
	roleSets := mb.roleMenuSets(fn.UserInterface, menus)
	applyUnits(params, menus, p.catalog)

	device := &types.Device{
		Format:       types.FormatIODD,
		SourceName:   o.sourceName,
		Identity:     identity,
		Datatypes:    datatypes,
		Parameters:   params,
		ProcessData:  blocks,
		Menus:        menus,
		RoleMenuSets: roleSets,
		Assets:       assets.Extract(identity, o.assets, report),
	}

	report.Finalize()
	for _, w := range report.Warnings {
		p.logger.Debug("Parse warning",
			zap.String("code", w.Code),
			zap.String("path", w.Path),
			zap.String("message", w.Message))
	}
	p.logger.Info("Parsed IODD",
		zap.String("source", o.sourceName),
		zap.String("vendor", identity.VendorName),
		zap.String("device", identity.DeviceName),
		zap.Int("parameters", len(params)),
		zap.Int("process_data_blocks", len(blocks)),
		zap.Int("menus", len(menus)),
		zap.Int("warnings", len(report.Warnings)))

	return &types.ParseResult{Device: device, Warnings: report.Warnings}, nil
}

func parseUint32(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func parseUint32Or(s string, def uint32) uint32 {
	if v, ok := parseUint32(s); ok {
		return v
	}
	return def
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}
