package protocol

import "fmt"

// Field names shared by the layouts below.
const (
	FieldNameOpcode    = "opcode"
	FieldNameVotingID  = "voting_id"
	FieldNameTitle     = "title"
	FieldNameStartTime = "start_time"
	FieldNameEndTime   = "end_time"
	FieldNameOptions   = "options"
	FieldNameTally     = "tally"
	FieldNameOptionID  = "option_id"
	FieldNameLabel     = "label"
)

// voteOptionLayout is shared by every schema version.
var voteOptionLayout = &Layout{
	Record: RecordVoteOption,
	Fields: []FieldSpec{
		{Name: FieldNameTally, Type: FieldUint32},
		{Name: FieldNameOptionID, Type: FieldUint8},
		{Name: FieldNameLabel, Type: FieldString},
	},
}

var (
	createVotingMinimal = &Layout{
		Record:  RecordCreateVoting,
		Version: SchemaMinimal,
		Fields: []FieldSpec{
			opcodeField(OpCreateVoting),
			{Name: FieldNameVotingID, Type: FieldString},
			{Name: FieldNameTitle, Type: FieldString},
			{Name: FieldNameOptions, Type: FieldSeq, Elem: voteOptionLayout},
		},
	}
	createVotingWindowed = &Layout{
		Record:  RecordCreateVoting,
		Version: SchemaWindowed,
		Fields: []FieldSpec{
			opcodeField(OpCreateVoting),
			{Name: FieldNameVotingID, Type: FieldString},
			{Name: FieldNameTitle, Type: FieldString},
			{Name: FieldNameStartTime, Type: FieldUint64},
			{Name: FieldNameEndTime, Type: FieldUint64},
			{Name: FieldNameOptions, Type: FieldSeq, Elem: voteOptionLayout},
		},
	}
	votingAccountMinimal = &Layout{
		Record:  RecordVotingAccount,
		Version: SchemaMinimal,
		Fields: []FieldSpec{
			{Name: FieldNameVotingID, Type: FieldString},
			{Name: FieldNameTitle, Type: FieldString},
			{Name: FieldNameOptions, Type: FieldSeq, Elem: voteOptionLayout},
		},
	}
	votingAccountWindowed = &Layout{
		Record:  RecordVotingAccount,
		Version: SchemaWindowed,
		Fields: []FieldSpec{
			{Name: FieldNameVotingID, Type: FieldString},
			{Name: FieldNameTitle, Type: FieldString},
			{Name: FieldNameStartTime, Type: FieldUint64},
			{Name: FieldNameEndTime, Type: FieldUint64},
			{Name: FieldNameOptions, Type: FieldSeq, Elem: voteOptionLayout},
		},
	}
	// The vote payload did not change between generations.
	castVoteMinimal = &Layout{
		Record:  RecordCastVote,
		Version: SchemaMinimal,
		Fields: []FieldSpec{
			opcodeField(OpVote),
			{Name: FieldNameOptionID, Type: FieldUint8},
		},
	}
	castVoteWindowed = &Layout{
		Record:  RecordCastVote,
		Version: SchemaWindowed,
		Fields:  castVoteMinimal.Fields,
	}
)

func opcodeField(op Opcode) FieldSpec {
	return FieldSpec{Name: FieldNameOpcode, Type: FieldUint8, Pinned: true, Value: uint8(op)}
}

// LayoutFor returns the layout of record at version. The registry is closed:
// any other combination is an error.
func LayoutFor(record RecordType, version SchemaVersion) (*Layout, error) {
	if version != SchemaMinimal && version != SchemaWindowed {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, version)
	}
	windowed := version == SchemaWindowed
	switch record {
	case RecordVoteOption:
		return voteOptionLayout, nil
	case RecordCreateVoting:
		if windowed {
			return createVotingWindowed, nil
		}
		return createVotingMinimal, nil
	case RecordVotingAccount:
		if windowed {
			return votingAccountWindowed, nil
		}
		return votingAccountMinimal, nil
	case RecordCastVote:
		if windowed {
			return castVoteWindowed, nil
		}
		return castVoteMinimal, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, record)
	}
}

// index returns the position of name in the layout, or -1.
func (l *Layout) index(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}
