package protocol

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Decode reads one record from buf. A buffer shorter than the layout demands
// fails with ErrTruncated. Bytes after the last field are ignored because
// account storage may be padded.
func Decode(layout *Layout, buf []byte) ([]Value, error) {
	if layout == nil {
		return nil, ErrUnknownRecord
	}
	r := reader{buf: buf}
	values, err := r.record(layout)
	if err != nil {
		log.Debug().Err(err).Str("record", layout.Record.String()).Int("bytes", len(buf)).Msg("protocol.Decode failed")
		return nil, err
	}
	log.Trace().
		Str("record", layout.Record.String()).
		Str("schema", layout.Version.String()).
		Int("consumed", r.off).
		Int("trailing", len(buf)-r.off).
		Msg("protocol.Decode")
	return values, nil
}

// PeekOpcode returns the discriminant of an instruction payload.
func PeekOpcode(buf []byte) (Opcode, error) {
	if len(buf) == 0 {
		return 0, ErrTruncated
	}
	return Opcode(buf[0]), nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(layout *Layout, field string, n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, truncated(layout, field, uint64(n), r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) record(layout *Layout) ([]Value, error) {
	values := make([]Value, 0, len(layout.Fields))
	for _, spec := range layout.Fields {
		v, err := r.field(layout, spec)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (r *reader) field(layout *Layout, spec FieldSpec) (Value, error) {
	switch spec.Type {
	case FieldUint8:
		b, err := r.take(layout, spec.Name, 1)
		if err != nil {
			return Value{}, err
		}
		if spec.Pinned && b[0] != spec.Value {
			return Value{}, mismatch(layout, spec.Name, "pinned value differs")
		}
		return U8(b[0]), nil
	case FieldUint32:
		b, err := r.take(layout, spec.Name, 4)
		if err != nil {
			return Value{}, err
		}
		return U32(binary.LittleEndian.Uint32(b)), nil
	case FieldUint64:
		b, err := r.take(layout, spec.Name, 8)
		if err != nil {
			return Value{}, err
		}
		return U64(binary.LittleEndian.Uint64(b)), nil
	case FieldString:
		n, err := r.length(layout, spec.Name)
		if err != nil {
			return Value{}, err
		}
		b, err := r.take(layout, spec.Name, n)
		if err != nil {
			return Value{}, err
		}
		if !utf8.Valid(b) {
			return Value{}, mismatch(layout, spec.Name, "invalid utf-8")
		}
		return Str(string(b)), nil
	case FieldSeq:
		if spec.Elem == nil {
			return Value{}, mismatch(layout, spec.Name, "sequence without element layout")
		}
		n, err := r.length(layout, spec.Name)
		if err != nil {
			return Value{}, err
		}
		// Reject counts the buffer cannot possibly hold before allocating.
		if size := spec.Elem.MinSize(); size > 0 && n > r.remaining()/size {
			return Value{}, truncated(layout, spec.Name, uint64(n)*uint64(size), r.remaining())
		}
		items := make([][]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := r.record(spec.Elem)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Seq(items...), nil
	default:
		return Value{}, mismatch(layout, spec.Name, "unsupported field type "+spec.Type.String())
	}
}

func (r *reader) length(layout *Layout, field string) (int, error) {
	b, err := r.take(layout, field, 4)
	if err != nil {
		return 0, err
	}
	n := binary.LittleEndian.Uint32(b)
	if uint64(n) > uint64(len(r.buf)) {
		return 0, truncated(layout, field, uint64(n), r.remaining())
	}
	return int(n), nil
}
