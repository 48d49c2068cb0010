package protocol

import (
	"fmt"
	"strings"
)

// Opcode is the leading discriminant byte of every instruction payload.
type Opcode uint8

const (
	OpCreateVoting Opcode = 0
	OpVote         Opcode = 1
)

func (o Opcode) String() string {
	switch o {
	case OpCreateVoting:
		return "create_voting"
	case OpVote:
		return "vote"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(o))
	}
}

// RecordType tags a record family in the layout registry.
type RecordType uint8

const (
	RecordVoteOption RecordType = iota + 1
	RecordCreateVoting
	RecordCastVote
	RecordVotingAccount
)

func (r RecordType) String() string {
	switch r {
	case RecordVoteOption:
		return "vote_option"
	case RecordCreateVoting:
		return "create_voting"
	case RecordCastVote:
		return "cast_vote"
	case RecordVotingAccount:
		return "voting_account"
	default:
		return fmt.Sprintf("record(%d)", uint8(r))
	}
}

// SchemaVersion selects a layout generation for records that have more
// than one. The minimal generation carries no voting window.
type SchemaVersion uint8

const (
	SchemaMinimal  SchemaVersion = 1
	SchemaWindowed SchemaVersion = 2
)

func (v SchemaVersion) String() string {
	switch v {
	case SchemaMinimal:
		return "minimal"
	case SchemaWindowed:
		return "windowed"
	default:
		return fmt.Sprintf("schema(%d)", uint8(v))
	}
}

// ParseSchemaVersion maps a config/CLI name onto a SchemaVersion.
func ParseSchemaVersion(raw string) (SchemaVersion, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "minimal", "v1":
		return SchemaMinimal, nil
	case "windowed", "v2":
		return SchemaWindowed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSchema, raw)
	}
}
