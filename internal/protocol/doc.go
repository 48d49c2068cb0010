// Package protocol owns the voting program wire contract.
//
// Ownership boundary:
// - field widths and little-endian primitives
// - the closed layout registry keyed by record type and schema version
// - strict decoding (short buffers fail, trailing padding is ignored)
// - typed record conversions for instructions and account snapshots
//
// A schema version is always chosen by the caller. Buffer length alone
// cannot tell a minimal record from a windowed one.
package protocol
