package iodd

import (
	"fmt"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

type parameterExtractor struct {
	catalog  *catalog.Catalog
	resolver *datatypeResolver
	texts    *textTable
	report   *types.Report
}

// extract produces one Parameter per Variable or StdVariableRef, in document
// order.
func (e *parameterExtractor) extract(coll xmlVariableCollection) ([]types.Parameter, error) {
	params := make([]types.Parameter, 0, len(coll.Entries))
	for i := range coll.Entries {
		entry := &coll.Entries[i]
		path := "/parameters/" + entry.ID

		switch entry.XMLName.Local {
		case "StdVariableRef":
			params = append(params, e.fromStdRef(entry, path))
		case "Variable":
			p, err := e.fromVariable(entry, path)
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
	}
	return params, nil
}

func (e *parameterExtractor) fromStdRef(entry *xmlVariableEntry, path string) types.Parameter {
	p, ok := e.catalog.Parameter(entry.ID)
	if !ok {
		e.report.AddWarning(types.Issue{
			Code:    types.CodeUnknownStdVariable,
			Message: fmt.Sprintf("Standard variable %q is not in catalog %s", entry.ID, e.catalog.Version()),
			Path:    path,
			Ref:     entry.ID,
		})
		return types.Parameter{
			ID:       entry.ID,
			Name:     entry.ID,
			Kind:     types.KindUnknown,
			Standard: true,
		}
	}

	if entry.DefaultValue != "" {
		p.DefaultValue = entry.DefaultValue
	}
	if n, ok := parseUint32(entry.FixedLengthRestriction); ok && uint64(n)*8 < uint64(p.BitLength) {
		p.BitLength = n * 8
	}
	if parseBool(entry.ExcludedFromDataStorage) {
		p.ExcludedFromDataStorage = true
	}
	if len(entry.StdSingleValueRefs) > 0 {
		p.EnumerationValues = narrowEnumeration(p.EnumerationValues, entry.StdSingleValueRefs)
	}
	if r := entry.StdValueRangeRef; r != nil {
		p.MinValue, p.MaxValue = r.Lower, r.Upper
	}
	for _, ref := range entry.StdRecordItemRefs {
		sub, ok := parseUint32(ref.Subindex)
		if !ok {
			continue
		}
		for i := range p.RecordItems {
			item := &p.RecordItems[i]
			if uint32(item.Subindex) != sub {
				continue
			}
			if ref.DefaultValue != "" {
				item.DefaultValue = ref.DefaultValue
			}
			if len(ref.StdSingleValueRefs) > 0 {
				item.Enumeration = narrowEnumeration(item.Enumeration, ref.StdSingleValueRefs)
			}
		}
	}
	return p
}

// narrowEnumeration keeps the listed values. Values the base enumeration
// does not name are kept with the value as their name.
func narrowEnumeration(base types.Enumeration, refs []xmlStdValueRef) types.Enumeration {
	values := make([]string, 0, len(refs))
	for _, r := range refs {
		values = append(values, strings.TrimSpace(r.Value))
	}
	if len(base) == 0 {
		out := make(types.Enumeration, 0, len(values))
		for _, v := range values {
			out = append(out, types.EnumEntry{Value: v, Name: v})
		}
		return out
	}
	return base.Restrict(values)
}

func (e *parameterExtractor) fromVariable(entry *xmlVariableEntry, path string) (types.Parameter, error) {
	p := types.Parameter{
		ID:                      entry.ID,
		Name:                    e.texts.lookup(entry.Name, path),
		Description:             e.texts.lookup(entry.Description, path),
		AccessRights:            types.ParseAccessRights(entry.AccessRights),
		DefaultValue:            entry.DefaultValue,
		Dynamic:                 parseBool(entry.Dynamic),
		ExcludedFromDataStorage: parseBool(entry.ExcludedFromDataStorage),
		Kind:                    types.KindUnknown,
	}
	if p.Name == "" {
		p.Name = entry.ID
	}
	if idx, ok := parseUint32(entry.Index); ok {
		p.Index = &idx
	}

	var dt *types.Datatype
	switch {
	case entry.Datatype != nil:
		inline, err := e.resolver.resolveInline(entry.Datatype, path+"/datatype")
		if err != nil {
			return p, err
		}
		dt = &inline
	case entry.DatatypeRef != nil:
		p.DatatypeRef = entry.DatatypeRef.DatatypeID
		ref, err := e.resolver.resolveID(entry.DatatypeRef.DatatypeID)
		if err != nil {
			return p, err
		}
		dt = ref
	}

	if dt == nil {
		e.report.AddWarning(types.Issue{
			Code:    types.CodeVariableNoDatatype,
			Message: fmt.Sprintf("Variable %q has no resolvable datatype", entry.ID),
			Path:    path,
			Ref:     p.DatatypeRef,
		})
		return p, nil
	}

	p.Kind = dt.Kind
	p.BitLength = dt.BitLength
	p.MinValue = dt.Min
	p.MaxValue = dt.Max
	p.EnumerationValues = dt.Enumeration.Clone()
	if len(dt.Members) > 0 {
		p.RecordItems = make([]types.RecordItem, len(dt.Members))
		copy(p.RecordItems, dt.Members)
		for i := range p.RecordItems {
			p.RecordItems[i].Enumeration = dt.Members[i].Enumeration.Clone()
		}
		applyRecordItemInfos(p.RecordItems, entry.RecordItemInfos)
	}
	return p, nil
}

func applyRecordItemInfos(items []types.RecordItem, infos []xmlRecordItemInfo) {
	for _, info := range infos {
		sub, ok := parseUint32(info.Subindex)
		if !ok {
			continue
		}
		for i := range items {
			if uint32(items[i].Subindex) == sub && info.DefaultValue != "" {
				items[i].DefaultValue = info.DefaultValue
			}
		}
	}
}

// applyUnits gives each parameter without a unit the symbol of the first
// menu reference carrying a unit code, in menu order.
func applyUnits(params []types.Parameter, menus []types.Menu, cat *catalog.Catalog) {
	byID := make(map[string]int, len(params))
	for i := range params {
		if _, dup := byID[params[i].ID]; !dup {
			byID[params[i].ID] = i
		}
	}

	for _, m := range menus {
		for _, it := range m.Items {
			code := it.Attributes().UnitCode
			if code == "" {
				continue
			}
			symbol := cat.UnitSymbol(code)
			if symbol == "" {
				continue
			}

			switch ref := it.(type) {
			case types.VariableRef:
				if i, ok := byID[ref.VariableID]; ok && params[i].Unit == "" {
					params[i].Unit = symbol
				}
			case types.Button:
				if i, ok := byID[ref.VariableID]; ok && params[i].Unit == "" {
					params[i].Unit = symbol
				}
			case types.RecordItemRef:
				i, ok := byID[ref.VariableID]
				if !ok {
					continue
				}
				for j := range params[i].RecordItems {
					ri := &params[i].RecordItems[j]
					if ri.Subindex == ref.Subindex && ri.Unit == "" {
						ri.Unit = symbol
					}
				}
			}
		}
	}
}
