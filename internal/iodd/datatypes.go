package iodd

import (
	"fmt"
	"math"
	"strconv"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

// datatypeResolver turns the DatatypeCollection into resolved Datatypes.
// Declarations are collected first; references are then resolved on demand
// with memoization, so declaration order does not matter. A type met again
// while it is still being resolved closes a cycle.
type datatypeResolver struct {
	decls    map[string]*xmlDatatype
	order    []string
	resolved map[string]*types.Datatype
	visiting map[string]bool
	stack    []string
	texts    *textTable
	report   *types.Report
}

func newDatatypeResolver(decls []xmlDatatype, texts *textTable, report *types.Report) *datatypeResolver {
	r := &datatypeResolver{
		decls:    make(map[string]*xmlDatatype, len(decls)),
		order:    make([]string, 0, len(decls)),
		resolved: make(map[string]*types.Datatype, len(decls)),
		visiting: map[string]bool{},
		stack:    make([]string, 0, 8),
		texts:    texts,
		report:   report,
	}
	for i := range decls {
		d := &decls[i]
		if d.ID == "" {
			continue
		}
		if _, dup := r.decls[d.ID]; dup {
			continue
		}
		r.decls[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// resolveAll resolves every declared type and returns them in declaration
// order.
func (r *datatypeResolver) resolveAll() ([]types.Datatype, error) {
	out := make([]types.Datatype, 0, len(r.order))
	for _, id := range r.order {
		dt, err := r.resolveID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *dt)
	}
	return out, nil
}

// resolveID returns (nil, nil) for an undeclared id.
func (r *datatypeResolver) resolveID(id string) (*types.Datatype, error) {
	if dt, ok := r.resolved[id]; ok {
		return dt, nil
	}
	decl, ok := r.decls[id]
	if !ok {
		return nil, nil
	}
	if r.visiting[id] {
		return nil, &types.CyclicTypeReferenceError{Cycle: r.cyclePath(id)}
	}

	r.visiting[id] = true
	r.stack = append(r.stack, id)

	dt, err := r.build(id, decl, "/datatypes/"+id)

	r.stack = r.stack[:len(r.stack)-1]
	r.visiting[id] = false
	if err != nil {
		return nil, err
	}

	r.resolved[id] = &dt
	return &dt, nil
}

// resolveRef resolves a DatatypeRef and reports it when it dangles.
func (r *datatypeResolver) resolveRef(ref *xmlDatatypeRef, path string) (*types.Datatype, error) {
	dt, err := r.resolveID(ref.DatatypeID)
	if err != nil {
		return nil, err
	}
	if dt == nil {
		r.report.AddWarning(types.Issue{
			Code:    types.CodeUnresolvedDatatype,
			Message: fmt.Sprintf("Datatype reference %q does not resolve", ref.DatatypeID),
			Path:    path,
			Ref:     ref.DatatypeID,
		})
	}
	return dt, nil
}

// resolveInline builds an anonymous type declared inside a Variable or a
// process-data port.
func (r *datatypeResolver) resolveInline(x *xmlDatatype, path string) (types.Datatype, error) {
	return r.build("", x, path)
}

func (r *datatypeResolver) cyclePath(target string) []string {
	start := -1
	for i := range r.stack {
		if r.stack[i] == target {
			start = i
			break
		}
	}
	if start == -1 {
		return []string{target}
	}

	out := make([]string, 0, len(r.stack)-start+1)
	out = append(out, r.stack[start:]...)
	out = append(out, target)
	return out
}

func (r *datatypeResolver) build(id string, x *xmlDatatype, path string) (types.Datatype, error) {
	dt := types.Datatype{ID: id, SourceType: x.Type}

	switch x.Type {
	case "BooleanT":
		dt.Kind = types.KindBoolean
		dt.BitLength = 1
	case "IntegerT":
		dt.Kind = types.KindInteger
		dt.BitLength = parseUint32Or(x.BitLength, 0)
	case "UIntegerT":
		dt.Kind = types.KindUnsigned
		dt.BitLength = parseUint32Or(x.BitLength, 0)
	case "Float32T":
		dt.Kind = types.KindFloat
		dt.BitLength = 32
	case "StringT":
		dt.Kind = types.KindString
		dt.FixedLength = parseUint32Or(x.FixedLength, 0)
		dt.BitLength = r.bitLength(uint64(dt.FixedLength)*8, path)
		dt.Encoding = x.Encoding
	case "OctetStringT":
		dt.Kind = types.KindOctetString
		dt.FixedLength = parseUint32Or(x.FixedLength, 0)
		dt.BitLength = r.bitLength(uint64(dt.FixedLength)*8, path)
	case "TimeT":
		dt.Kind = types.KindTime
		dt.BitLength = 64
	case "TimeSpanT":
		dt.Kind = types.KindTimeSpan
		dt.BitLength = 64
	case "RecordT":
		dt.Kind = types.KindRecord
		members, err := r.buildRecord(x, path)
		if err != nil {
			return dt, err
		}
		dt.Members = members
		if n, ok := parseUint32(x.BitLength); ok {
			dt.BitLength = n
		} else {
			dt.BitLength = r.bitLength(recordExtent(members), path)
		}
	case "ArrayT":
		dt.Kind = types.KindArray
		if err := r.buildArray(&dt, x, path); err != nil {
			return dt, err
		}
	default:
		dt.Kind = types.KindUnknown
		dt.BitLength = parseUint32Or(x.BitLength, 0)
		r.report.AddWarning(types.Issue{
			Code:    types.CodeUnknownPrimitive,
			Message: fmt.Sprintf("Unrecognized datatype %q resolved as unknown", x.Type),
			Path:    path,
			Meta:    map[string]any{"type": x.Type},
		})
	}

	switch dt.Kind {
	case types.KindBoolean, types.KindInteger, types.KindUnsigned, types.KindFloat:
		r.applyValues(&dt, x, path)
	}
	return dt, nil
}

// applyValues attaches SingleValue names and the first ValueRange. A type
// with named values and no range is an enumeration over its primitive.
func (r *datatypeResolver) applyValues(dt *types.Datatype, x *xmlDatatype, path string) {
	if len(x.SingleValues) > 0 {
		dt.Enumeration = make(types.Enumeration, 0, len(x.SingleValues))
		for _, sv := range x.SingleValues {
			name := r.texts.lookup(sv.Name, path)
			if name == "" {
				name = sv.Value
			}
			dt.Enumeration = append(dt.Enumeration, types.EnumEntry{Value: sv.Value, Name: name})
		}
	}

	if len(x.ValueRanges) > 0 {
		dt.Min = x.ValueRanges[0].Lower
		dt.Max = x.ValueRanges[0].Upper
		return
	}

	if len(dt.Enumeration) > 0 {
		dt.BaseKind = dt.Kind
		dt.Kind = types.KindEnumerated
		return
	}

	dt.Min, dt.Max = implicitBounds(dt.Kind, dt.BitLength)
}

// implicitBounds is the value range a plain integer of n bits can hold.
func implicitBounds(kind types.DatatypeKind, n uint32) (string, string) {
	if n == 0 || n > 64 {
		return "", ""
	}
	shift := 64 - n
	switch kind {
	case types.KindInteger:
		return strconv.FormatInt(math.MinInt64>>shift, 10), strconv.FormatInt(math.MaxInt64>>shift, 10)
	case types.KindUnsigned:
		return "0", strconv.FormatUint(math.MaxUint64>>shift, 10)
	}
	return "", ""
}

// buildRecord resolves the items of a RecordT. An item without bitOffset is
// placed at the summed length of the items before it.
func (r *datatypeResolver) buildRecord(x *xmlDatatype, path string) ([]types.RecordItem, error) {
	items := make([]types.RecordItem, 0, len(x.RecordItems))
	var running uint64

	for i := range x.RecordItems {
		ri := &x.RecordItems[i]
		ipath := fmt.Sprintf("%s/record_items/%d", path, i)

		item := types.RecordItem{
			Subindex:     uint16(parseUint32Or(ri.Subindex, uint32(i+1))),
			Name:         r.texts.lookup(ri.Name, ipath),
			AccessRights: types.ParseAccessRights(ri.AccessRightRestriction),
			Kind:         types.KindUnknown,
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("Subindex %d", item.Subindex)
		}

		var member *types.Datatype
		switch {
		case ri.Simple != nil:
			m, err := r.build("", ri.Simple, ipath)
			if err != nil {
				return nil, err
			}
			member = &m
		case ri.Ref != nil:
			item.DatatypeRef = ri.Ref.DatatypeID
			m, err := r.resolveRef(ri.Ref, ipath)
			if err != nil {
				return nil, err
			}
			member = m
		}
		if member != nil {
			item.Kind = member.Kind
			item.BitLength = member.BitLength
			item.Enumeration = member.Enumeration.Clone()
		}

		if off, ok := parseUint32(ri.BitOffset); ok {
			item.BitOffset = off
		} else {
			item.BitOffset = r.bitLength(running, ipath)
		}
		running += uint64(item.BitLength)

		items = append(items, item)
	}
	return items, nil
}

func (r *datatypeResolver) buildArray(dt *types.Datatype, x *xmlDatatype, path string) error {
	dt.Count = parseUint32Or(x.Count, 0)

	var elem *types.Datatype
	switch {
	case x.Simple != nil:
		e, err := r.build("", x.Simple, path+"/element")
		if err != nil {
			return err
		}
		elem = &e
	case x.Ref != nil:
		dt.ElementRef = x.Ref.DatatypeID
		e, err := r.resolveRef(x.Ref, path+"/element")
		if err != nil {
			return err
		}
		elem = e
	}

	if elem == nil {
		dt.ElementKind = types.KindUnknown
		return nil
	}
	dt.ElementKind = elem.Kind
	dt.BitLength = r.bitLength(uint64(dt.Count)*uint64(elem.BitLength), path)
	return nil
}

// bitLength narrows a computed length to uint32, clamping with a warning
// when the document declares sizes beyond it.
func (r *datatypeResolver) bitLength(n uint64, path string) uint32 {
	if n <= math.MaxUint32 {
		return uint32(n)
	}
	r.report.AddWarning(types.Issue{
		Code:    types.CodeBitLengthOverflow,
		Message: fmt.Sprintf("Bit length %d exceeds %d, clamped", n, uint64(math.MaxUint32)),
		Path:    path,
		Meta:    map[string]any{"bit_length": n},
	})
	return math.MaxUint32
}

// recordExtent is the first bit past the highest item.
func recordExtent(items []types.RecordItem) uint64 {
	var end uint64
	for _, it := range items {
		if e := it.End(); e > end {
			end = e
		}
	}
	return end
}
