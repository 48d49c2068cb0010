// Package programerr maps raw failure text returned by the runtime onto the
// voting program's closed set of error kinds.
package programerr

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind is a rejection reason raised by the voting program.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotRentExempt
	KindWrongDerivedAddress
	KindStartDateInPast
	KindStartAfterEnd
	KindVotingNotStartedYet
	KindVotingExpired
)

var kindCodes = map[uint32]Kind{
	0: KindNotRentExempt,
	1: KindWrongDerivedAddress,
	2: KindStartDateInPast,
	3: KindStartAfterEnd,
	4: KindVotingNotStartedYet,
	5: KindVotingExpired,
}

// KindForCode returns the kind for a custom program error code. Codes outside
// the program's table map to KindUnknown.
func KindForCode(code uint32) Kind {
	if k, ok := kindCodes[code]; ok {
		return k
	}
	return KindUnknown
}

// Code returns the numeric program code of k. ok is false for KindUnknown.
func (k Kind) Code() (code uint32, ok bool) {
	if k == KindUnknown || k > KindVotingExpired {
		return 0, false
	}
	return uint32(k - 1), true
}

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindNotRentExempt:
		return "not_rent_exempt"
	case KindWrongDerivedAddress:
		return "wrong_derived_address"
	case KindStartDateInPast:
		return "start_date_in_past"
	case KindStartAfterEnd:
		return "start_after_end"
	case KindVotingNotStartedYet:
		return "voting_not_started_yet"
	case KindVotingExpired:
		return "voting_expired"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Class separates failures the caller handles differently.
type Class uint8

const (
	// ClassTransport means the submission failed for a reason outside the
	// program: network, signature, fee payer, simulation without a code.
	ClassTransport Class = iota + 1
	// ClassRejected means the program ran and returned a custom error.
	ClassRejected
	// ClassExpired means the validity horizon passed without confirmation.
	// The transaction may still have landed; read state before resubmitting.
	ClassExpired
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassRejected:
		return "rejected"
	case ClassExpired:
		return "expired"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Error is a classified submission failure. Message always carries the raw
// runtime text so nothing is lost when Kind is KindUnknown.
type Error struct {
	Class   Class
	Kind    Kind
	Code    uint32
	HasCode bool
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Class == ClassExpired:
		return "programerr: expired: " + e.Message
	case e.HasCode:
		return fmt.Sprintf("programerr: %s (code %d): %s", e.Kind, e.Code, e.Message)
	default:
		return fmt.Sprintf("programerr: %s: %s", e.Class, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Indeterminate reports whether the outcome of the submission is unknown.
func (e *Error) Indeterminate() bool { return e.Class == ClassExpired }

// customCode matches "custom program error: 0x5" and the decimal form. The
// number must not run into further alphanumerics.
var customCode = regexp.MustCompile(`custom program error: (?:0x([0-9a-fA-F]+)|([0-9]+))(?:$|[^0-9A-Za-z])`)

// Classify extracts a program error from raw runtime text. Text without a
// custom program code is a transport failure with KindUnknown.
func Classify(raw string) *Error {
	e := &Error{Class: ClassTransport, Kind: KindUnknown, Message: raw}
	m := customCode.FindStringSubmatch(raw)
	if m == nil {
		return e
	}
	var (
		n   uint64
		err error
	)
	if m[1] != "" {
		n, err = strconv.ParseUint(m[1], 16, 32)
	} else {
		n, err = strconv.ParseUint(m[2], 10, 32)
	}
	if err != nil {
		return e
	}
	e.Class = ClassRejected
	e.Code = uint32(n)
	e.HasCode = true
	e.Kind = KindForCode(e.Code)
	return e
}

// ClassifyError classifies err by its text and keeps it as the cause. An
// error that is already classified is returned unchanged.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	e := Classify(err.Error())
	e.Cause = err
	return e
}

// Expired builds the indeterminate failure reported when the validity
// horizon passes or the caller gives up waiting.
func Expired(signature string, cause error) *Error {
	msg := "transaction " + signature + " not confirmed before its blockhash expired"
	if cause != nil {
		msg = "transaction " + signature + " not confirmed: " + cause.Error()
	}
	return &Error{Class: ClassExpired, Kind: KindUnknown, Message: msg, Cause: cause}
}

// As unwraps err to a classified failure.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is a program rejection of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Class == ClassRejected && e.Kind == k
}
