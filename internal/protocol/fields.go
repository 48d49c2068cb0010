package protocol

import "fmt"

// FieldType is the wire encoding of one layout field.
type FieldType uint8

const (
	FieldUint8 FieldType = iota + 1
	FieldUint32
	FieldUint64
	FieldString
	FieldSeq
)

func (t FieldType) String() string {
	switch t {
	case FieldUint8:
		return "u8"
	case FieldUint32:
		return "u32"
	case FieldUint64:
		return "u64"
	case FieldString:
		return "string"
	case FieldSeq:
		return "seq"
	default:
		return fmt.Sprintf("field_type(%d)", uint8(t))
	}
}

// fixedWidth returns the encoded size of fixed-width types, and the size of
// the length prefix for variable ones.
func (t FieldType) fixedWidth() int {
	switch t {
	case FieldUint8:
		return 1
	case FieldUint32, FieldString, FieldSeq:
		return 4
	case FieldUint64:
		return 8
	default:
		return 0
	}
}

// FieldSpec declares one field of a layout, in wire order.
type FieldSpec struct {
	Name string
	Type FieldType
	// Elem is the element layout of a FieldSeq.
	Elem *Layout
	// Pinned fixes a FieldUint8 to Value (instruction discriminants).
	Pinned bool
	Value  uint8
}

// Layout is the ordered field list of one record type at one schema version.
type Layout struct {
	Record  RecordType
	Version SchemaVersion
	Fields  []FieldSpec
}

// MinSize is the smallest possible encoding of the layout: every string
// empty and every sequence without elements.
func (l *Layout) MinSize() int {
	n := 0
	for _, f := range l.Fields {
		n += f.Type.fixedWidth()
	}
	return n
}

// Value is one field value in a positional record.
type Value struct {
	Type   FieldType
	Uint8  uint8
	Uint32 uint32
	Uint64 uint64
	String string
	Seq    [][]Value
}

func U8(v uint8) Value { return Value{Type: FieldUint8, Uint8: v} }
func U32(v uint32) Value { return Value{Type: FieldUint32, Uint32: v} }
func U64(v uint64) Value { return Value{Type: FieldUint64, Uint64: v} }
func Str(v string) Value { return Value{Type: FieldString, String: v} }
func Seq(v ...[]Value) Value { return Value{Type: FieldSeq, Seq: v} }
