package processdata

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

var ErrShortPayload = errors.New("process data payload shorter than block")

// Value is one decoded record item.
type Value struct {
	Subindex uint16             `json:"subindex"`
	Name     string             `json:"name"`
	Kind     types.DatatypeKind `json:"kind"`
	Raw      string             `json:"raw"`
	Value    any                `json:"value"`
	Scaled   *float64           `json:"scaled,omitempty"`
	Label    string             `json:"label,omitempty"`
	Unit     string             `json:"unit,omitempty"`
}

type Result struct {
	BlockID   string          `json:"block_id"`
	Direction types.Direction `json:"direction"`
	Values    []Value         `json:"values"`
}

// Decode extracts every item of block from raw. raw is the octet stream as
// transmitted; bit offsets count from the least significant bit of its last
// octet.
func Decode(block *types.ProcessDataBlock, raw []byte) (*Result, error) {
	if uint64(len(raw))*8 < uint64(block.TotalBitLength) {
		return nil, fmt.Errorf("%w: %d bits required, %d given", ErrShortPayload, block.TotalBitLength, len(raw)*8)
	}

	res := &Result{
		BlockID:   block.ID,
		Direction: block.Direction,
		Values:    make([]Value, 0, len(block.Items)),
	}
	for _, it := range block.Items {
		if it.End() > uint64(len(raw))*8 {
			return nil, fmt.Errorf("%w: item %d ends at bit %d", ErrShortPayload, it.Subindex, it.End())
		}
		res.Values = append(res.Values, decodeItem(it, raw))
	}
	return res, nil
}

func decodeItem(it types.RecordItem, raw []byte) Value {
	bits := extractBytes(raw, it.BitOffset, it.BitLength)
	v := Value{
		Subindex: it.Subindex,
		Name:     it.Name,
		Kind:     it.Kind,
		Raw:      hex.EncodeToString(bits),
		Unit:     it.Unit,
	}

	switch it.Kind {
	case types.KindBoolean:
		b := extractUint(raw, it.BitOffset, min(it.BitLength, 64)) != 0
		v.Value = b
		v.Label, _ = it.Enumeration.Lookup(strconv.FormatBool(b))
		return v
	case types.KindString:
		v.Value = strings.TrimRight(string(bits), "\x00")
		return v
	case types.KindOctetString, types.KindRecord, types.KindArray, types.KindTime, types.KindTimeSpan:
		v.Value = v.Raw
		return v
	}

	if it.BitLength == 0 || it.BitLength > 64 {
		v.Value = v.Raw
		return v
	}

	u := extractUint(raw, it.BitOffset, it.BitLength)
	var num float64
	switch it.Kind {
	case types.KindInteger:
		s := signExtend(u, it.BitLength)
		v.Value = s
		num = float64(s)
		v.Label, _ = it.Enumeration.Lookup(strconv.FormatInt(s, 10))
	case types.KindFloat:
		f := float64(math.Float32frombits(uint32(u)))
		if it.BitLength == 64 {
			f = math.Float64frombits(u)
		}
		v.Value = f
		num = f
	default:
		v.Value = u
		num = float64(u)
		v.Label, _ = it.Enumeration.Lookup(strconv.FormatUint(u, 10))
	}

	if it.Gradient != nil || it.Offset != nil {
		g, o := 1.0, 0.0
		if it.Gradient != nil {
			g = *it.Gradient
		}
		if it.Offset != nil {
			o = *it.Offset
		}
		scaled := num*g + o
		v.Scaled = &scaled
	}
	return v
}

func bit(raw []byte, i uint32) uint64 {
	idx := len(raw) - 1 - int(i/8)
	return uint64(raw[idx]>>(i%8)) & 1
}

// extractUint reads length (at most 64) bits starting at offset.
func extractUint(raw []byte, offset, length uint32) uint64 {
	var v uint64
	for j := uint32(0); j < length; j++ {
		v |= bit(raw, offset+j) << j
	}
	return v
}

// extractBytes returns the item's bits as a big-endian octet string,
// right-aligned in its last octet.
func extractBytes(raw []byte, offset, length uint32) []byte {
	out := make([]byte, (length+7)/8)
	for j := uint32(0); j < length; j++ {
		if bit(raw, offset+j) == 1 {
			out[len(out)-1-int(j/8)] |= 1 << (j % 8)
		}
	}
	return out
}

func signExtend(u uint64, length uint32) int64 {
	if length < 64 && u&(1<<(length-1)) != 0 {
		u |= ^uint64(0) << length
	}
	return int64(u)
}
