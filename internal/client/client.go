// Package client is the high-level voting API: it builds envelopes, submits
// them through the orchestrator and decodes voting snapshots.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/address"
	"github.com/danmuck/votectl/internal/instruction"
	"github.com/danmuck/votectl/internal/protocol"
	"github.com/danmuck/votectl/internal/txn"
)

var ErrVotingNotFound = errors.New("client: voting not found")

// Options fixes the program identity and the record conventions. Schema
// and Mode must match whatever created the votings being read or voted on.
type Options struct {
	ProgramID solana.PublicKey
	Schema    protocol.SchemaVersion
	Mode      address.Mode
	Txn       txn.Config
}

type Client struct {
	transport    txn.Transport
	builder      *instruction.Builder
	orchestrator *txn.Orchestrator
}

func New(transport txn.Transport, opts Options) (*Client, error) {
	if transport == nil {
		return nil, errors.New("client: nil transport")
	}
	if opts.ProgramID.IsZero() {
		return nil, errors.New("client: program id is required")
	}
	if _, err := protocol.LayoutFor(protocol.RecordVotingAccount, opts.Schema); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if _, err := address.ParseMode(opts.Mode.String()); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return &Client{
		transport:    transport,
		builder:      instruction.NewBuilder(opts.ProgramID, opts.Schema, opts.Mode),
		orchestrator: txn.NewOrchestrator(transport, opts.Txn),
	}, nil
}

// CreateVoting creates owner's voting described by req. The owner signs and
// pays.
func (c *Client) CreateVoting(ctx context.Context, owner txn.Signer, req protocol.CreateVotingRequest) (txn.Receipt, error) {
	env, err := c.builder.BuildCreate(owner.PublicKey(), req)
	if err != nil {
		return txn.Receipt{}, err
	}
	return c.orchestrator.Submit(ctx, env, owner)
}

// Vote casts voter's ballot for optionID on owner's voting. A second vote by
// the same voter is for the program to accept or reject.
func (c *Client) Vote(ctx context.Context, owner solana.PublicKey, votingID string, voter txn.Signer, optionID uint8) (txn.Receipt, error) {
	derived, err := c.builder.VotingAddress(owner, votingID)
	if err != nil {
		return txn.Receipt{}, err
	}
	env, err := c.builder.BuildVote(derived.Address, voter.PublicKey(), owner, optionID)
	if err != nil {
		return txn.Receipt{}, err
	}
	return c.orchestrator.Submit(ctx, env, voter)
}

// ReadVoting fetches and decodes the current snapshot of owner's voting.
func (c *Client) ReadVoting(ctx context.Context, owner solana.PublicKey, votingID string) (protocol.VotingRecord, error) {
	derived, err := c.builder.VotingAddress(owner, votingID)
	if err != nil {
		return protocol.VotingRecord{}, err
	}
	data, err := c.transport.FetchAccountBytes(ctx, derived.Address)
	if errors.Is(err, txn.ErrAccountNotFound) {
		return protocol.VotingRecord{}, fmt.Errorf("%w: %q at %s", ErrVotingNotFound, votingID, derived.Address)
	}
	if err != nil {
		return protocol.VotingRecord{}, fmt.Errorf("client: fetch %s: %w", derived.Address, err)
	}
	rec, err := protocol.DecodeVotingRecord(c.builder.Schema(), data)
	if err != nil {
		return protocol.VotingRecord{}, fmt.Errorf("client: decode %s as %s: %w", derived.Address, c.builder.Schema(), err)
	}
	log.Debug().
		Str("voting_id", votingID).
		Str("address", derived.Address.String()).
		Int("options", len(rec.Options)).
		Msg("client.ReadVoting")
	return rec, nil
}

// VotingAddress exposes the derived storage address of owner's voting.
func (c *Client) VotingAddress(owner solana.PublicKey, votingID string) (address.Derived, error) {
	return c.builder.VotingAddress(owner, votingID)
}

func (c *Client) Schema() protocol.SchemaVersion { return c.builder.Schema() }
func (c *Client) Mode() address.Mode { return c.builder.Mode() }
