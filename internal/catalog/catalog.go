// Package catalog holds the IO-Link standard variable definitions and the
// unit-code table. Both ship embedded and can be replaced from files.
package catalog

import (
	"embed"
	"fmt"
	"os"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed tables/*.yaml
var tablesFS embed.FS

// StdVariable is the predefined shape of one standard variable.
type StdVariable struct {
	ID           string          `yaml:"id"`
	Index        uint32          `yaml:"index"`
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description"`
	Kind         string          `yaml:"kind"`
	BitLength    uint32          `yaml:"bit_length"`
	AccessRights string          `yaml:"access_rights"`
	DefaultValue string          `yaml:"default_value"`
	Min          string          `yaml:"min"`
	Max          string          `yaml:"max"`
	Enumeration  []EnumDef       `yaml:"enumeration"`
	RecordItems  []RecordItemDef `yaml:"record_items"`
}

type EnumDef struct {
	Value string `yaml:"value"`
	Name  string `yaml:"name"`
}

type RecordItemDef struct {
	Subindex  uint16 `yaml:"subindex"`
	Name      string `yaml:"name"`
	BitOffset uint32 `yaml:"bit_offset"`
	BitLength uint32 `yaml:"bit_length"`
	Kind      string `yaml:"kind"`
}

type Unit struct {
	Code   string `yaml:"code"`
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type stdVarFile struct {
	Version     string        `yaml:"version"`
	Description string        `yaml:"description"`
	Variables   []StdVariable `yaml:"variables"`
}

type unitFile struct {
	Version string `yaml:"version"`
	Units   []Unit `yaml:"units"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	version   string
	variables []StdVariable
	byID      map[string]int
	units     map[string]Unit
}

// New builds a catalog from explicit tables. Later duplicates of an id win.
func New(version string, variables []StdVariable, units []Unit) *Catalog {
	c := &Catalog{
		version:   version,
		variables: make([]StdVariable, 0, len(variables)),
		byID:      make(map[string]int, len(variables)),
		units:     make(map[string]Unit, len(units)),
	}
	for _, v := range variables {
		if i, ok := c.byID[v.ID]; ok {
			c.variables[i] = v
			continue
		}
		c.byID[v.ID] = len(c.variables)
		c.variables = append(c.variables, v)
	}
	for _, u := range units {
		c.units[u.Code] = u
	}
	return c
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Load("", "")
}

// Load reads the embedded tables, replacing either one with the file at the
// given path when it is non-empty.
func Load(stdVarsPath, unitsPath string) (*Catalog, error) {
	vdata, err := readTable(stdVarsPath, "tables/stdvars.yaml")
	if err != nil {
		return nil, err
	}
	var vf stdVarFile
	if err := yaml.Unmarshal(vdata, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse standard variable table: %w", err)
	}

	udata, err := readTable(unitsPath, "tables/units.yaml")
	if err != nil {
		return nil, err
	}
	var uf unitFile
	if err := yaml.Unmarshal(udata, &uf); err != nil {
		return nil, fmt.Errorf("failed to parse unit table: %w", err)
	}

	for _, v := range vf.Variables {
		if v.ID == "" {
			return nil, fmt.Errorf("standard variable without id in table %s", vf.Version)
		}
	}

	return New(vf.Version, vf.Variables, uf.Units), nil
}

func readTable(path, embedded string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog table %s: %w", path, err)
		}
		return data, nil
	}
	data, err := tablesFS.ReadFile(embedded)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded table %s: %w", embedded, err)
	}
	return data, nil
}

func (c *Catalog) Version() string { return c.version }

func (c *Catalog) Len() int { return len(c.variables) }

// IDs returns the variable ids in table order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.variables))
	for i, v := range c.variables {
		out[i] = v.ID
	}
	return out
}

func (c *Catalog) Lookup(id string) (StdVariable, bool) {
	i, ok := c.byID[id]
	if !ok {
		return StdVariable{}, false
	}
	return c.variables[i], true
}

// Parameter returns a fresh Parameter built from the standard definition.
// The caller owns the result and may apply overrides to it.
func (c *Catalog) Parameter(id string) (types.Parameter, bool) {
	v, ok := c.Lookup(id)
	if !ok {
		return types.Parameter{}, false
	}

	index := v.Index
	p := types.Parameter{
		ID:           v.ID,
		Index:        &index,
		Name:         v.Name,
		Description:  v.Description,
		Kind:         types.DatatypeKind(v.Kind),
		AccessRights: types.ParseAccessRights(v.AccessRights),
		DefaultValue: v.DefaultValue,
		MinValue:     v.Min,
		MaxValue:     v.Max,
		BitLength:    v.BitLength,
		Standard:     true,
	}
	if len(v.Enumeration) > 0 {
		p.EnumerationValues = make(types.Enumeration, 0, len(v.Enumeration))
		for _, e := range v.Enumeration {
			p.EnumerationValues = append(p.EnumerationValues, types.EnumEntry{Value: e.Value, Name: e.Name})
		}
	}
	for _, ri := range v.RecordItems {
		p.RecordItems = append(p.RecordItems, types.RecordItem{
			Subindex:  ri.Subindex,
			Name:      ri.Name,
			BitOffset: ri.BitOffset,
			BitLength: ri.BitLength,
			Kind:      types.DatatypeKind(ri.Kind),
		})
	}
	return p, true
}

// Unit resolves an IO-Link unit code.
func (c *Catalog) Unit(code string) (Unit, bool) {
	u, ok := c.units[code]
	return u, ok
}

// UnitSymbol returns the display symbol for code, or "" when unknown.
func (c *Catalog) UnitSymbol(code string) string {
	return c.units[code].Symbol
}
