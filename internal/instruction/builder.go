package instruction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/address"
	"github.com/danmuck/votectl/internal/protocol"
)

var ErrLocalValidation = errors.New("instruction: local validation failed")

// LocalValidationError is returned before any encoding happens.
type LocalValidationError struct {
	Field  string
	Reason string
}

func (e *LocalValidationError) Error() string {
	return fmt.Sprintf("instruction: invalid %s: %s", e.Field, e.Reason)
}

func (e *LocalValidationError) Is(target error) bool {
	return target == ErrLocalValidation
}

// Builder produces envelopes for one program under a fixed schema version
// and derivation mode. Building never touches the network.
type Builder struct {
	programID solana.PublicKey
	schema    protocol.SchemaVersion
	mode      address.Mode
	deriver   address.Deriver
}

func NewBuilder(programID solana.PublicKey, schema protocol.SchemaVersion, mode address.Mode) *Builder {
	return &Builder{
		programID: programID,
		schema:    schema,
		mode:      mode,
		deriver:   address.NewDeriver(programID),
	}
}

func (b *Builder) ProgramID() solana.PublicKey { return b.programID }
func (b *Builder) Schema() protocol.SchemaVersion { return b.schema }
func (b *Builder) Mode() address.Mode { return b.mode }

// VotingAddress derives the storage address of owner's voting.
func (b *Builder) VotingAddress(owner solana.PublicKey, votingID string) (address.Derived, error) {
	return b.deriver.Voting(b.mode, owner, votingID)
}

// BuildCreate checks the option list, derives the storage address and
// encodes a create request. Accounts: owner (signer, writable), voting
// address (writable), system program.
func (b *Builder) BuildCreate(owner solana.PublicKey, req protocol.CreateVotingRequest) (Envelope, error) {
	if err := validateOptions(req.Options); err != nil {
		return Envelope{}, err
	}
	derived, err := b.VotingAddress(owner, req.VotingID)
	if err != nil {
		return Envelope{}, err
	}
	data, err := protocol.EncodeCreateVoting(b.schema, req)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode create %q: %w", req.VotingID, err)
	}
	log.Debug().
		Str("voting_id", req.VotingID).
		Str("address", derived.Address.String()).
		Str("schema", b.schema.String()).
		Int("options", len(req.Options)).
		Int("bytes", len(data)).
		Msg("instruction.BuildCreate")
	return Envelope{
		ProgramID: b.programID,
		Opcode:    protocol.OpCreateVoting,
		Accounts: []AccountRef{
			{Key: owner, Signer: true, Writable: true},
			{Key: derived.Address, Writable: true},
			{Key: solana.SystemProgramID},
		},
		Data: data,
	}, nil
}

// BuildVote encodes a vote for optionID. Whether the option exists is
// decided by the program. Accounts: voter (signer), owner, voting address
// (writable).
func (b *Builder) BuildVote(storage, voter, owner solana.PublicKey, optionID uint8) (Envelope, error) {
	data, err := protocol.EncodeCastVote(protocol.CastVoteRequest{OptionID: optionID})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode vote: %w", err)
	}
	log.Debug().
		Str("address", storage.String()).
		Str("voter", voter.String()).
		Uint8("option_id", optionID).
		Msg("instruction.BuildVote")
	return Envelope{
		ProgramID: b.programID,
		Opcode:    protocol.OpVote,
		Accounts: []AccountRef{
			{Key: voter, Signer: true},
			{Key: owner},
			{Key: storage, Writable: true},
		},
		Data: data,
	}, nil
}

func validateOptions(options []protocol.VoteOption) error {
	if len(options) == 0 {
		return &LocalValidationError{Field: "options", Reason: "at least one option is required"}
	}
	seen := make(map[uint8]struct{}, len(options))
	for _, o := range options {
		if _, dup := seen[o.OptionID]; dup {
			return &LocalValidationError{
				Field:  "options",
				Reason: fmt.Sprintf("duplicate option id %d", o.OptionID),
			}
		}
		seen[o.OptionID] = struct{}{}
	}
	return nil
}
