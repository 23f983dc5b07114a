package types

import "strings"

type DatatypeKind string

const (
	KindBoolean     DatatypeKind = "boolean"
	KindInteger     DatatypeKind = "integer"
	KindUnsigned    DatatypeKind = "unsigned-integer"
	KindFloat       DatatypeKind = "float"
	KindString      DatatypeKind = "string"
	KindOctetString DatatypeKind = "octet-string"
	KindRecord      DatatypeKind = "record"
	KindArray       DatatypeKind = "array"
	KindEnumerated  DatatypeKind = "enumerated"
	KindTime        DatatypeKind = "time"
	KindTimeSpan    DatatypeKind = "time-span"
	KindUnknown     DatatypeKind = "unknown"
)

// IsNumeric reports whether min/max bounds are meaningful for the kind.
func (k DatatypeKind) IsNumeric() bool {
	switch k {
	case KindInteger, KindUnsigned, KindFloat:
		return true
	}
	return false
}

// Datatype is one resolved entry of a device's type table. Record members and
// array elements reference other table entries by id only.
type Datatype struct {
	ID          string       `json:"id"`
	Kind        DatatypeKind `json:"kind"`
	BaseKind    DatatypeKind `json:"base_kind,omitempty"`
	SourceType  string       `json:"source_type,omitempty"`
	BitLength   uint32       `json:"bit_length"`
	FixedLength uint32       `json:"fixed_length,omitempty"`
	Encoding    string       `json:"encoding,omitempty"`
	Min         string       `json:"min,omitempty"`
	Max         string       `json:"max,omitempty"`
	Enumeration Enumeration  `json:"enumeration,omitempty"`
	Members     []RecordItem `json:"members,omitempty"`
	ElementRef  string       `json:"element_ref,omitempty"`
	ElementKind DatatypeKind `json:"element_kind,omitempty"`
	Count       uint32       `json:"count,omitempty"`
}

// Primitive returns the kind values are encoded with. Enumerated types report
// their underlying primitive.
func (d *Datatype) Primitive() DatatypeKind {
	if d.Kind == KindEnumerated && d.BaseKind != "" {
		return d.BaseKind
	}
	return d.Kind
}

// EnumEntry is one raw value → display name pair.
type EnumEntry struct {
	Value string
	Name  string
}

// Enumeration keeps declaration order; it encodes as a JSON object whose keys
// appear in that order.
type Enumeration []EnumEntry

func (e Enumeration) Lookup(value string) (string, bool) {
	for _, entry := range e {
		if entry.Value == value {
			return entry.Name, true
		}
	}
	return "", false
}

// Restrict returns the entries whose value is listed, in the original order.
func (e Enumeration) Restrict(values []string) Enumeration {
	if len(values) == 0 {
		return e
	}
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[strings.TrimSpace(v)] = struct{}{}
	}
	out := make(Enumeration, 0, len(values))
	for _, entry := range e {
		if _, ok := allowed[entry.Value]; ok {
			out = append(out, entry)
		}
	}
	return out
}

func (e Enumeration) Clone() Enumeration {
	if e == nil {
		return nil
	}
	out := make(Enumeration, len(e))
	copy(out, e)
	return out
}
