package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/danmuck/votectl/internal/testutil/testlog"
)

func colorRequest() CreateVotingRequest {
	return CreateVotingRequest{
		VotingID:  "color1",
		Title:     "Pick a color?",
		StartTime: 1_900_000_000,
		EndTime:   1_900_003_600,
		Options: []VoteOption{
			{OptionID: 1, Label: "red", Tally: 3},
			{OptionID: 2, Label: "blue", Tally: 4},
		},
	}
}

func TestCreateVotingWireBytes(t *testing.T) {
	testlog.Start(t)
	got, err := EncodeCreateVoting(SchemaMinimal, CreateVotingRequest{
		VotingID: "a",
		Title:    "b",
		Options:  []VoteOption{{Tally: 3, OptionID: 1, Label: "r"}},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x00,
		0x01, 0x00, 0x00, 0x00, 'a',
		0x01, 0x00, 0x00, 0x00, 'b',
		0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 'r',
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire mismatch\n got=% x\nwant=% x", got, want)
	}
}

func TestCreateVotingWindowedWireBytes(t *testing.T) {
	testlog.Start(t)
	got, err := EncodeCreateVoting(SchemaWindowed, CreateVotingRequest{
		VotingID:  "",
		Title:     "",
		StartTime: 0x0102,
		EndTime:   0x0304,
		Options:   nil,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{
		0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x02, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x04, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire mismatch\n got=% x\nwant=% x", got, want)
	}
}

func TestCastVoteWireBytes(t *testing.T) {
	testlog.Start(t)
	got, err := EncodeCastVote(CastVoteRequest{OptionID: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected vote payload % x", got)
	}
	decoded, err := DecodeCastVote(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OptionID != 2 {
		t.Fatalf("option id = %d", decoded.OptionID)
	}
}

func TestCreateVotingRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		version SchemaVersion
		req     CreateVotingRequest
	}{
		{"windowed", SchemaWindowed, colorRequest()},
		{"minimal", SchemaMinimal, func() CreateVotingRequest {
			r := colorRequest()
			r.StartTime, r.EndTime = 0, 0
			return r
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := EncodeCreateVoting(tc.version, tc.req)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeCreateVoting(tc.version, buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, tc.req) {
				t.Fatalf("round-trip mismatch\n got=%+v\nwant=%+v", got, tc.req)
			}
		})
	}
}

func TestVotingRecordRoundTripRandom(t *testing.T) {
	testlog.Start(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		for _, version := range []SchemaVersion{SchemaMinimal, SchemaWindowed} {
			rec := randomRecord(rng, version)
			buf, err := EncodeVotingRecord(version, rec)
			if err != nil {
				t.Fatalf("iteration %d %s encode: %v", i, version, err)
			}
			got, err := DecodeVotingRecord(version, buf)
			if err != nil {
				t.Fatalf("iteration %d %s decode: %v", i, version, err)
			}
			if !reflect.DeepEqual(got, rec) {
				t.Fatalf("iteration %d %s mismatch\n got=%+v\nwant=%+v", i, version, got, rec)
			}
		}
	}
}

func TestDecodeEveryShortPrefixIsTruncated(t *testing.T) {
	testlog.Start(t)
	buf, err := EncodeCreateVoting(SchemaWindowed, colorRequest())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for n := 0; n < len(buf); n++ {
		_, err := DecodeCreateVoting(SchemaWindowed, buf[:n])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("prefix %d/%d: expected ErrTruncated, got %v", n, len(buf), err)
		}
	}
}

func TestDecodeIgnoresTrailingPadding(t *testing.T) {
	testlog.Start(t)
	rec := VotingRecord(colorRequest())
	buf, err := EncodeVotingRecord(SchemaWindowed, rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	padded := append(append([]byte{}, buf...), make([]byte, 64)...)
	got, err := DecodeVotingRecord(SchemaWindowed, padded)
	if err != nil {
		t.Fatalf("decode padded: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Fatalf("padded decode mismatch: %+v", got)
	}
}

func TestDecodeOpcodeMismatch(t *testing.T) {
	testlog.Start(t)
	buf, err := EncodeCreateVoting(SchemaWindowed, colorRequest())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	buf[0] = byte(OpVote)
	_, err = DecodeCreateVoting(SchemaWindowed, buf)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) || sm.Field != FieldNameOpcode {
		t.Fatalf("expected opcode mismatch, got %v", err)
	}

	if _, err := DecodeCastVote([]byte{byte(OpCreateVoting), 1}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("vote decode: expected ErrSchemaMismatch, got %v", err)
	}
}

func TestMinimalSchemaRefusesWindow(t *testing.T) {
	testlog.Start(t)
	_, err := EncodeCreateVoting(SchemaMinimal, colorRequest())
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSchemaVersionIsNotInferred(t *testing.T) {
	testlog.Start(t)
	buf, err := EncodeVotingRecord(SchemaWindowed, VotingRecord(colorRequest()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// The low half of start_time is read as an option count.
	_, err = DecodeVotingRecord(SchemaMinimal, buf)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeHugeSequenceCount(t *testing.T) {
	testlog.Start(t)
	buf := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	buf = binary.LittleEndian.AppendUint32(buf, 0xffffffff)
	_, err := DecodeVotingRecord(SchemaMinimal, buf)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	buf := []byte{0x02, 0, 0, 0, 0xff, 0xfe, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := DecodeVotingRecord(SchemaMinimal, buf)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestSimulatedAccountKeepsReturnedTallies(t *testing.T) {
	testlog.Start(t)
	req := colorRequest()
	if _, err := EncodeCreateVoting(SchemaWindowed, req); err != nil {
		t.Fatalf("encode create: %v", err)
	}

	// The program resets tallies when it stores the account.
	stored := VotingRecord(req)
	stored.Options = []VoteOption{
		{OptionID: 1, Label: "red"},
		{OptionID: 2, Label: "blue"},
	}
	account, err := EncodeVotingRecord(SchemaWindowed, stored)
	if err != nil {
		t.Fatalf("encode account: %v", err)
	}
	got, err := DecodeVotingRecord(SchemaWindowed, account)
	if err != nil {
		t.Fatalf("decode account: %v", err)
	}
	for _, o := range got.Options {
		if o.Tally != 0 {
			t.Fatalf("option %d tally = %d, want 0", o.OptionID, o.Tally)
		}
	}
	if got.Options[0].Label != "red" || got.Options[1].Label != "blue" {
		t.Fatalf("option order changed: %+v", got.Options)
	}
}

func TestLayoutForRejectsUnknown(t *testing.T) {
	testlog.Start(t)
	if _, err := LayoutFor(RecordCreateVoting, SchemaVersion(9)); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
	if _, err := LayoutFor(RecordType(42), SchemaMinimal); !errors.Is(err, ErrUnknownRecord) {
		t.Fatalf("expected ErrUnknownRecord, got %v", err)
	}
	if _, err := ParseSchemaVersion("v3"); !errors.Is(err, ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestPeekOpcode(t *testing.T) {
	testlog.Start(t)
	vote, _ := EncodeCastVote(CastVoteRequest{OptionID: 1})
	op, err := PeekOpcode(vote)
	if err != nil || op != OpVote {
		t.Fatalf("peek = %v, %v", op, err)
	}
	if _, err := PeekOpcode(nil); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestEncodeRejectsWrongValueType(t *testing.T) {
	testlog.Start(t)
	_, err := Encode(castVoteMinimal, []Value{U8(1), U32(2)})
	var sm *SchemaMismatchError
	if !errors.As(err, &sm) || sm.Field != FieldNameOptionID {
		t.Fatalf("expected option_id mismatch, got %v", err)
	}
	if _, err := Encode(castVoteMinimal, []Value{U8(1)}); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected field count mismatch, got %v", err)
	}
}

const alphabet = "abcdefghijklmnopqrstuvwxyzäöü€ 0123456789"

func randomString(rng *rand.Rand, max int) string {
	runes := []rune(alphabet)
	n := rng.Intn(max + 1)
	out := make([]rune, n)
	for i := range out {
		out[i] = runes[rng.Intn(len(runes))]
	}
	return string(out)
}

func randomRecord(rng *rand.Rand, version SchemaVersion) VotingRecord {
	rec := VotingRecord{
		VotingID: randomString(rng, 32),
		Title:    randomString(rng, 64),
	}
	if version == SchemaWindowed {
		rec.StartTime = rng.Uint64()
		rec.EndTime = rng.Uint64()
	}
	n := rng.Intn(6)
	rec.Options = make([]VoteOption, 0, n)
	for i := 0; i < n; i++ {
		rec.Options = append(rec.Options, VoteOption{
			Tally:    rng.Uint32(),
			OptionID: uint8(i),
			Label:    randomString(rng, 16),
		})
	}
	return rec
}
