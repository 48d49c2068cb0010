// Package instruction composes encoded payloads and derived addresses into
// unsigned request envelopes for the voting program.
package instruction

import (
	"github.com/gagliardetto/solana-go"

	"github.com/danmuck/votectl/internal/protocol"
)

// AccountRef names one account an instruction touches. Order within an
// envelope is part of the program's contract.
type AccountRef struct {
	Key      solana.PublicKey
	Signer   bool
	Writable bool
}

// Envelope is a fully formed, not yet signed request.
type Envelope struct {
	ProgramID solana.PublicKey
	Opcode    protocol.Opcode
	Accounts  []AccountRef
	Data      []byte
}

// Instruction adapts the envelope to the ledger SDK's instruction type.
func (e Envelope) Instruction() solana.Instruction {
	metas := make(solana.AccountMetaSlice, 0, len(e.Accounts))
	for _, a := range e.Accounts {
		metas = append(metas, solana.NewAccountMeta(a.Key, a.Writable, a.Signer))
	}
	return solana.NewInstruction(e.ProgramID, metas, e.Data)
}

// Signers lists the accounts that must sign, in reference order.
func (e Envelope) Signers() []solana.PublicKey {
	var out []solana.PublicKey
	for _, a := range e.Accounts {
		if a.Signer {
			out = append(out, a.Key)
		}
	}
	return out
}

// FeePayer is the first signer, or the zero key when nothing signs.
func (e Envelope) FeePayer() solana.PublicKey {
	for _, a := range e.Accounts {
		if a.Signer {
			return a.Key
		}
	}
	return solana.PublicKey{}
}
