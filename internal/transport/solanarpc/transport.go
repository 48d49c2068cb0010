// Package solanarpc implements the ledger transport over a JSON-RPC
// endpoint.
package solanarpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/danmuck/votectl/internal/observability"
	"github.com/danmuck/votectl/internal/txn"
)

var (
	ErrUnknownCommitment = errors.New("solanarpc: unknown commitment")
	ErrForeignOwner      = errors.New("solanarpc: account not owned by program")
)

type Options struct {
	Endpoint   string
	ProgramID  solana.PublicKey
	Commitment rpc.CommitmentType
	// RateLimit caps requests per second; zero disables throttling.
	RateLimit float64
	Burst     int
	// SkipPreflight sends without simulation. Program errors then only
	// surface through signature status.
	SkipPreflight bool
}

// Transport talks to one endpoint. It is safe for concurrent use.
type Transport struct {
	rpc           *rpc.Client
	limiter       *rate.Limiter
	programID     solana.PublicKey
	commitment    rpc.CommitmentType
	skipPreflight bool
}

var _ txn.Transport = (*Transport)(nil)

func New(opts Options) *Transport {
	commitment := opts.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Transport{
		rpc:           rpc.New(opts.Endpoint),
		limiter:       rate.NewLimiter(limit, burst),
		programID:     opts.ProgramID,
		commitment:    commitment,
		skipPreflight: opts.SkipPreflight,
	}
}

func (t *Transport) Close() error {
	return t.rpc.Close()
}

func ParseCommitment(raw string) (rpc.CommitmentType, error) {
	switch c := rpc.CommitmentType(strings.ToLower(strings.TrimSpace(raw))); c {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommitment, raw)
	}
}

func (t *Transport) call(ctx context.Context, method string, fn func() error) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		observability.RecordRPC(method, time.Since(start), false)
		return fmt.Errorf("solanarpc: %s throttled: %w", method, err)
	}
	err := fn()
	observability.RecordRPC(method, time.Since(start), err == nil)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Msg("solanarpc.call")
	}
	return err
}

func (t *Transport) ValidityHorizon(ctx context.Context) (txn.Horizon, error) {
	var out *rpc.GetLatestBlockhashResult
	err := t.call(ctx, "getLatestBlockhash", func() (err error) {
		out, err = t.rpc.GetLatestBlockhash(ctx, t.commitment)
		return err
	})
	if err != nil {
		return txn.Horizon{}, err
	}
	if out == nil || out.Value == nil {
		return txn.Horizon{}, errors.New("solanarpc: empty blockhash response")
	}
	return txn.Horizon{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

func (t *Transport) SubmitSigned(ctx context.Context, raw []byte) (solana.Signature, error) {
	var sig solana.Signature
	err := t.call(ctx, "sendTransaction", func() (err error) {
		sig, err = t.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
			SkipPreflight:       t.skipPreflight,
			PreflightCommitment: t.commitment,
		})
		return err
	})
	return sig, err
}

func (t *Transport) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := t.call(ctx, "getBlockHeight", func() (err error) {
		height, err = t.rpc.GetBlockHeight(ctx, t.commitment)
		return err
	})
	return height, err
}

func (t *Transport) SignatureStatus(ctx context.Context, sig solana.Signature) (txn.SignatureStatus, error) {
	var out *rpc.GetSignatureStatusesResult
	err := t.call(ctx, "getSignatureStatuses", func() (err error) {
		out, err = t.rpc.GetSignatureStatuses(ctx, false, sig)
		return err
	})
	if err != nil {
		return txn.SignatureStatus{}, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return txn.SignatureStatus{}, nil
	}
	s := out.Value[0]
	status := txn.SignatureStatus{
		Found:     true,
		Slot:      s.Slot,
		Confirmed: reached(s.ConfirmationStatus, t.commitment),
	}
	if s.Err != nil {
		status.Err = describeStatusErr(s.Err)
	}
	return status, nil
}

func (t *Transport) FetchAccountBytes(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var out *rpc.GetAccountInfoResult
	err := t.call(ctx, "getAccountInfo", func() (err error) {
		out, err = t.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: t.commitment,
		})
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, txn.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, txn.ErrAccountNotFound
	}
	if !t.programID.IsZero() && out.Value.Owner != t.programID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrForeignOwner, address, out.Value.Owner)
	}
	return out.Value.Data.GetBinary(), nil
}

var commitmentRank = map[rpc.ConfirmationStatusType]int{
	rpc.ConfirmationStatusProcessed: 1,
	rpc.ConfirmationStatusConfirmed: 2,
	rpc.ConfirmationStatusFinalized: 3,
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	have := commitmentRank[status]
	switch want {
	case rpc.CommitmentProcessed:
		return have >= 1
	case rpc.CommitmentFinalized:
		return have >= 3
	default:
		return have >= 2
	}
}

// describeStatusErr renders a transaction status error in the runtime's
// log wording, so {"InstructionError":[0,{"Custom":5}]} becomes
// "Error processing Instruction 0: custom program error: 0x5".
func describeStatusErr(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if ie, ok := e["InstructionError"].([]any); ok && len(ie) == 2 {
			idx, _ := asUint(ie[0])
			return fmt.Sprintf("Error processing Instruction %d: %s", idx, describeInstructionErr(ie[1]))
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func describeInstructionErr(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if c, ok := e["Custom"]; ok {
			if code, ok := asUint(c); ok {
				return fmt.Sprintf("custom program error: 0x%x", code)
			}
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		u, err := n.Int64()
		if err != nil || u < 0 {
			return 0, false
		}
		return uint64(u), true
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	}
	return 0, false
}
