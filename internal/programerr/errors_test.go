package programerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/danmuck/votectl/internal/testutil/testlog"
)

func TestClassifyCodes(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		raw  string
		kind Kind
		code uint32
	}{
		{"Transaction simulation failed: Error processing Instruction 0: custom program error: 0x0", KindNotRentExempt, 0},
		{"custom program error: 0x1", KindWrongDerivedAddress, 1},
		{"custom program error: 2", KindStartDateInPast, 2},
		{"Program failed: custom program error: 0x3 (log truncated)", KindStartAfterEnd, 3},
		{"custom program error: 0x4\n", KindVotingNotStartedYet, 4},
		{"custom program error: 0x5", KindVotingExpired, 5},
		{"custom program error: 0x1771", KindUnknown, 6001},
		{"custom program error: 42", KindUnknown, 42},
	}
	for _, tc := range cases {
		got := Classify(tc.raw)
		if got.Class != ClassRejected || !got.HasCode {
			t.Fatalf("%q: class=%s hasCode=%v", tc.raw, got.Class, got.HasCode)
		}
		if got.Kind != tc.kind || got.Code != tc.code {
			t.Fatalf("%q: got %s/%d want %s/%d", tc.raw, got.Kind, got.Code, tc.kind, tc.code)
		}
		if got.Message != tc.raw {
			t.Fatalf("raw message not preserved: %q", got.Message)
		}
	}
}

func TestClassifyWithoutCode(t *testing.T) {
	testlog.Start(t)
	for _, raw := range []string{
		"",
		"blockhash not found",
		"custom program error: ",
		"custom program error: 0xzz",
		"custom program error: 12abc",
		"custom program error: 99999999999",
		"Attempt to debit an account but found no record of a prior credit.",
	} {
		got := Classify(raw)
		if got.Class != ClassTransport || got.Kind != KindUnknown || got.HasCode {
			t.Fatalf("%q: got %+v", raw, got)
		}
		if got.Message != raw {
			t.Fatalf("raw message not preserved: %q", got.Message)
		}
	}
}

func TestKindCodesRoundTrip(t *testing.T) {
	testlog.Start(t)
	for code := uint32(0); code <= 5; code++ {
		k := KindForCode(code)
		if k == KindUnknown {
			t.Fatalf("code %d unmapped", code)
		}
		back, ok := k.Code()
		if !ok || back != code {
			t.Fatalf("kind %s code = %d, %v", k, back, ok)
		}
	}
	if _, ok := KindUnknown.Code(); ok {
		t.Fatalf("unknown kind must not carry a code")
	}
}

func TestClassifyErrorKeepsCause(t *testing.T) {
	testlog.Start(t)
	base := errors.New("rpc: custom program error: 0x5")
	got := ClassifyError(fmt.Errorf("send: %w", base))
	if !IsKind(got, KindVotingExpired) {
		t.Fatalf("expected voting expired, got %v", got)
	}
	if !errors.Is(got, base) {
		t.Fatalf("cause lost")
	}
	wrapped := fmt.Errorf("submit: %w", got)
	if again := ClassifyError(wrapped); again != got {
		t.Fatalf("classified error re-classified")
	}
	if ClassifyError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestExpiredIsIndeterminate(t *testing.T) {
	testlog.Start(t)
	e := Expired("sig", nil)
	if !e.Indeterminate() || e.Class != ClassExpired {
		t.Fatalf("expected expired, got %+v", e)
	}
	c := Expired("sig", context.Canceled)
	if !errors.Is(c, context.Canceled) {
		t.Fatalf("cancel cause lost")
	}
	if Classify("custom program error: 0x5").Indeterminate() {
		t.Fatalf("rejection must be determinate")
	}
}
