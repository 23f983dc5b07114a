package iodd

import (
	"strconv"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/catalog"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/processdata"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

type processDataExtractor struct {
	resolver *datatypeResolver
	texts    *textTable
	report   *types.Report
}

func (e *processDataExtractor) extract(coll []xmlProcessData) ([]types.ProcessDataBlock, error) {
	blocks := make([]types.ProcessDataBlock, 0, 2*len(coll))
	for i := range coll {
		pd := &coll[i]
		cond := convertCondition(pd.Condition)

		ports := []struct {
			port   *xmlProcessDataPort
			dir    types.Direction
			suffix string
		}{
			{pd.In, types.DirectionInput, "_In"},
			{pd.Out, types.DirectionOutput, "_Out"},
		}
		for _, p := range ports {
			if p.port == nil {
				continue
			}
			b, err := e.block(pd.ID+p.suffix, p.port, p.dir, cond)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

func (e *processDataExtractor) block(fallbackID string, port *xmlProcessDataPort, dir types.Direction, cond *types.Condition) (types.ProcessDataBlock, error) {
	id := port.ID
	if id == "" {
		id = fallbackID
	}
	path := "/process_data/" + id

	b := types.ProcessDataBlock{
		ID:        id,
		Name:      e.texts.lookup(port.Name, path),
		Direction: dir,
		Condition: cond,
		Items:     []types.RecordItem{},
	}

	var dt *types.Datatype
	switch {
	case port.Datatype != nil:
		inline, err := e.resolver.resolveInline(port.Datatype, path+"/datatype")
		if err != nil {
			return b, err
		}
		dt = &inline
	case port.DatatypeRef != nil:
		b.DatatypeRef = port.DatatypeRef.DatatypeID
		ref, err := e.resolver.resolveRef(port.DatatypeRef, path)
		if err != nil {
			return b, err
		}
		dt = ref
	}

	if dt != nil {
		if dt.Kind == types.KindRecord {
			b.Items = make([]types.RecordItem, len(dt.Members))
			copy(b.Items, dt.Members)
			for i := range b.Items {
				b.Items[i].Enumeration = dt.Members[i].Enumeration.Clone()
			}
		} else {
			name := b.Name
			if name == "" {
				name = id
			}
			b.Items = append(b.Items, types.RecordItem{
				Subindex:    0,
				Name:        name,
				BitOffset:   0,
				BitLength:   dt.BitLength,
				DatatypeRef: dt.ID,
				Kind:        dt.Kind,
				Enumeration: dt.Enumeration.Clone(),
			})
		}
	}

	if n, ok := parseUint32(port.BitLength); ok {
		b.TotalBitLength = n
	} else if dt != nil {
		b.TotalBitLength = dt.BitLength
	}

	processdata.CheckLayout(&b, path, e.report)
	return b, nil
}

func convertCondition(c *xmlCondition) *types.Condition {
	if c == nil || c.VariableID == "" {
		return nil
	}
	out := &types.Condition{VariableID: c.VariableID, Value: c.Value}
	if sub, ok := parseUint32(c.Subindex); ok {
		s := uint16(sub)
		out.Subindex = &s
	}
	return out
}

// applyProcessDataUI copies unit, gradient, offset and display format from
// the ProcessDataRefCollection onto the matching block items.
func applyProcessDataUI(blocks []types.ProcessDataBlock, refs []xmlProcessDataRef, cat *catalog.Catalog) {
	for _, ref := range refs {
		for bi := range blocks {
			b := &blocks[bi]
			if b.ID != ref.ProcessDataID {
				continue
			}
			if len(b.Items) == 1 && b.Items[0].Subindex == 0 {
				applyItemUI(&b.Items[0], ref.Gradient, ref.Offset, ref.UnitCode, ref.DisplayFormat, cat)
			}
			for _, info := range ref.ItemInfos {
				sub, ok := parseUint32(info.Subindex)
				if !ok {
					continue
				}
				for ii := range b.Items {
					if uint32(b.Items[ii].Subindex) == sub {
						applyItemUI(&b.Items[ii], info.Gradient, info.Offset, info.UnitCode, info.DisplayFormat, cat)
					}
				}
			}
		}
	}
}

func applyItemUI(item *types.RecordItem, gradient, offset, unitCode, format string, cat *catalog.Catalog) {
	if g, err := strconv.ParseFloat(gradient, 64); err == nil {
		item.Gradient = &g
	}
	if o, err := strconv.ParseFloat(offset, 64); err == nil {
		item.Offset = &o
	}
	if unitCode != "" {
		item.Unit = cat.UnitSymbol(unitCode)
	}
	if f := types.ParseDisplayFormat(format); f != "" {
		item.DisplayFormat = f
	}
}
