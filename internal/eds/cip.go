package eds

import (
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
)

// cipType describes a CIP elementary data type. Strings carry their length
// in the parameter's data size field, so bits is 0 for them.
type cipType struct {
	name string
	kind types.DatatypeKind
	bits uint32
}

var cipTypes = map[uint64]cipType{
	0xC1: {"BOOL", types.KindBoolean, 8},
	0xC2: {"SINT", types.KindInteger, 8},
	0xC3: {"INT", types.KindInteger, 16},
	0xC4: {"DINT", types.KindInteger, 32},
	0xC5: {"LINT", types.KindInteger, 64},
	0xC6: {"USINT", types.KindUnsigned, 8},
	0xC7: {"UINT", types.KindUnsigned, 16},
	0xC8: {"UDINT", types.KindUnsigned, 32},
	0xC9: {"ULINT", types.KindUnsigned, 64},
	0xCA: {"REAL", types.KindFloat, 32},
	0xCB: {"LREAL", types.KindFloat, 64},
	0xCC: {"STIME", types.KindTimeSpan, 32},
	0xCD: {"DATE", types.KindTime, 16},
	0xCE: {"TIME_OF_DAY", types.KindTime, 32},
	0xCF: {"DATE_AND_TIME", types.KindTime, 48},
	0xD0: {"STRING", types.KindString, 0},
	0xD1: {"BYTE", types.KindUnsigned, 8},
	0xD2: {"WORD", types.KindUnsigned, 16},
	0xD3: {"DWORD", types.KindUnsigned, 32},
	0xD4: {"LWORD", types.KindUnsigned, 64},
	0xD5: {"STRING2", types.KindString, 0},
	0xD6: {"FTIME", types.KindTimeSpan, 32},
	0xD7: {"LTIME", types.KindTimeSpan, 64},
	0xD8: {"ITIME", types.KindTimeSpan, 16},
	0xDA: {"SHORT_STRING", types.KindString, 0},
	0xDB: {"TIME", types.KindTimeSpan, 32},
	0xDC: {"EPATH", types.KindOctetString, 0},
	0xDD: {"ENGUNIT", types.KindUnsigned, 16},
}

func (t cipType) datatypeID() string {
	return "CIP_" + t.name
}

// datatype is the table entry for t. Variable-length types have no fixed
// bit length; parameters carry their own.
func (t cipType) datatype() types.Datatype {
	dt := types.Datatype{
		ID:         t.datatypeID(),
		Kind:       t.kind,
		SourceType: t.name,
		BitLength:  t.bits,
	}
	if t.kind == types.KindString {
		dt.Encoding = "UTF-8"
	}
	return dt
}
