package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrTruncated      = errors.New("protocol: truncated buffer")
	ErrSchemaMismatch = errors.New("protocol: schema mismatch")
	ErrInvalidLength  = errors.New("protocol: invalid length")
	ErrUnknownSchema  = errors.New("protocol: unknown schema version")
	ErrUnknownRecord  = errors.New("protocol: unknown record type")
)

// SchemaMismatchError reports values that do not fit the selected layout,
// or bytes that decode to something the layout forbids.
type SchemaMismatchError struct {
	Record  RecordType
	Version SchemaVersion
	Field   string
	Reason  string
}

func (e *SchemaMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("protocol: record=%s schema=%s: %s", e.Record, e.Version, e.Reason)
	}
	return fmt.Sprintf("protocol: record=%s schema=%s field=%s: %s", e.Record, e.Version, e.Field, e.Reason)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func mismatch(layout *Layout, field, reason string) error {
	return &SchemaMismatchError{
		Record:  layout.Record,
		Version: layout.Version,
		Field:   field,
		Reason:  reason,
	}
}

func truncated(layout *Layout, field string, need uint64, remain int) error {
	return fmt.Errorf("%w: record=%s field=%s need=%d remain=%d", ErrTruncated, layout.Record, field, need, remain)
}
