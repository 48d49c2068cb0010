package txn

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrAccountNotFound = errors.New("txn: account not found")
	ErrMissingSigner   = errors.New("txn: missing signer")
)

// Signer signs serialized transaction messages. solana.PrivateKey
// satisfies it.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(payload []byte) (solana.Signature, error)
}

// Horizon is the recent reference a transaction is signed against and the
// last block height at which it can still land.
type Horizon struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// SignatureStatus is one observation of a sent transaction. Found is false
// while the ledger has not seen it. Err holds the runtime failure text when
// the ledger executed and rejected it.
type SignatureStatus struct {
	Found     bool
	Confirmed bool
	Slot      uint64
	Err       string
}

// Transport is the ledger network as the orchestrator and client see it.
// Implementations must be safe for concurrent independent calls.
type Transport interface {
	ValidityHorizon(ctx context.Context) (Horizon, error)
	SubmitSigned(ctx context.Context, raw []byte) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
	BlockHeight(ctx context.Context) (uint64, error)
	// FetchAccountBytes returns ErrAccountNotFound when nothing is stored
	// at address.
	FetchAccountBytes(ctx context.Context, address solana.PublicKey) ([]byte, error)
}
