package protocol

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Encode writes values in layout order: little-endian integers, strings and
// sequences behind a 4-byte little-endian length.
func Encode(layout *Layout, values []Value) ([]byte, error) {
	if layout == nil {
		return nil, ErrUnknownRecord
	}
	out, err := appendRecord(make([]byte, 0, layout.MinSize()), layout, values)
	if err != nil {
		log.Debug().Err(err).Str("record", layout.Record.String()).Msg("protocol.Encode failed")
		return nil, err
	}
	log.Trace().
		Str("record", layout.Record.String()).
		Str("schema", layout.Version.String()).
		Int("bytes", len(out)).
		Msg("protocol.Encode")
	return out, nil
}

func appendRecord(dst []byte, layout *Layout, values []Value) ([]byte, error) {
	if len(values) != len(layout.Fields) {
		return nil, mismatch(layout, "", "field count differs from layout")
	}
	for i, spec := range layout.Fields {
		v := values[i]
		if v.Type != spec.Type {
			return nil, mismatch(layout, spec.Name, "got "+v.Type.String()+" want "+spec.Type.String())
		}
		var err error
		dst, err = appendField(dst, layout, spec, v)
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func appendField(dst []byte, layout *Layout, spec FieldSpec, v Value) ([]byte, error) {
	switch spec.Type {
	case FieldUint8:
		if spec.Pinned && v.Uint8 != spec.Value {
			return nil, mismatch(layout, spec.Name, "pinned value differs")
		}
		return append(dst, v.Uint8), nil
	case FieldUint32:
		return binary.LittleEndian.AppendUint32(dst, v.Uint32), nil
	case FieldUint64:
		return binary.LittleEndian.AppendUint64(dst, v.Uint64), nil
	case FieldString:
		if uint64(len(v.String)) > math.MaxUint32 {
			return nil, ErrInvalidLength
		}
		if !utf8.ValidString(v.String) {
			return nil, mismatch(layout, spec.Name, "invalid utf-8")
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.String)))
		return append(dst, v.String...), nil
	case FieldSeq:
		if spec.Elem == nil {
			return nil, mismatch(layout, spec.Name, "sequence without element layout")
		}
		if uint64(len(v.Seq)) > math.MaxUint32 {
			return nil, ErrInvalidLength
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(v.Seq)))
		for _, item := range v.Seq {
			var err error
			dst, err = appendRecord(dst, spec.Elem, item)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, mismatch(layout, spec.Name, "unsupported field type "+spec.Type.String())
	}
}
