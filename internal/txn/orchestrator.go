// Package txn signs envelopes, hands them to the ledger transport and waits
// for confirmation inside the transaction's validity horizon.
package txn

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/instruction"
	"github.com/danmuck/votectl/internal/observability"
	"github.com/danmuck/votectl/internal/programerr"
)

// State is the lifecycle position of one submission.
type State uint8

const (
	StateBuilt State = iota + 1
	StateSigned
	StateSubmitted
	StateConfirmed
	StateExpired
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateExpired:
		return "expired"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateExpired || s == StateRejected
}

// Receipt describes where a submission ended. Signature is set once the
// transaction has been signed, including on expiry, so callers can check
// ledger state before deciding to resubmit.
type Receipt struct {
	SubmissionID string
	Signature    solana.Signature
	State        State
	Horizon      Horizon
}

// Orchestrator submits each envelope at most once. It never retries a send.
type Orchestrator struct {
	transport Transport
	cfg       Config
}

func NewOrchestrator(transport Transport, cfg Config) *Orchestrator {
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultConfig().MaxReadFailures
	}
	return &Orchestrator{transport: transport, cfg: cfg}
}

// Submit signs env with signers, sends it and polls until it is confirmed,
// rejected, or its horizon passes. Failures after the transport is first
// contacted are *programerr.Error.
func (o *Orchestrator) Submit(ctx context.Context, env instruction.Envelope, signers ...Signer) (Receipt, error) {
	rcpt := Receipt{SubmissionID: uuid.NewString(), State: StateBuilt}
	op := env.Opcode.String()
	logger := log.With().
		Str("submission_id", rcpt.SubmissionID).
		Str("instruction", op).
		Logger()

	byKey, err := indexSigners(env, signers)
	if err != nil {
		observability.RecordSubmission(op, "failed")
		return rcpt, err
	}

	horizon, err := o.transport.ValidityHorizon(ctx)
	if err != nil {
		observability.RecordSubmission(op, "failed")
		cerr := programerr.ClassifyError(fmt.Errorf("validity horizon: %w", err))
		logger.Warn().Err(cerr).Msg("txn.Submit horizon")
		return rcpt, cerr
	}
	rcpt.Horizon = horizon

	raw, sig, err := sign(env, horizon.Blockhash, byKey)
	if err != nil {
		observability.RecordSubmission(op, "failed")
		return rcpt, err
	}
	rcpt.Signature = sig
	rcpt.State = StateSigned
	logger = logger.With().Str("signature", sig.String()).Logger()
	logger.Debug().
		Str("state", rcpt.State.String()).
		Uint64("last_valid_block_height", horizon.LastValidBlockHeight).
		Int("bytes", len(raw)).
		Msg("txn.Submit")

	sent := time.Now()
	got, err := o.transport.SubmitSigned(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return o.expire(&rcpt, op, logger, ctx.Err())
		}
		rcpt.State = StateRejected
		cerr := programerr.ClassifyError(err)
		observability.RecordSubmission(op, rcpt.State.String())
		logger.Warn().
			Err(cerr).
			Str("state", rcpt.State.String()).
			Str("kind", cerr.Kind.String()).
			Msg("txn.Submit send")
		return rcpt, cerr
	}
	if got != sig {
		logger.Warn().Str("reported", got.String()).Msg("txn.Submit transport reported a different signature")
	}
	rcpt.State = StateSubmitted
	logger.Debug().Str("state", rcpt.State.String()).Msg("txn.Submit")

	err = o.await(ctx, &rcpt, logger)
	switch rcpt.State {
	case StateExpired:
		return o.expire(&rcpt, op, logger, err)
	case StateRejected:
		observability.RecordSubmission(op, rcpt.State.String())
		return rcpt, err
	}
	observability.RecordSubmission(op, rcpt.State.String())
	observability.RecordConfirmation(op, time.Since(sent))
	logger.Info().
		Str("state", rcpt.State.String()).
		Dur("elapsed", time.Since(sent)).
		Msg("txn.Submit")
	return rcpt, nil
}

// await polls the signature status until a terminal state. For
// StateRejected the error is the classified failure; for StateExpired it is
// the reason the wait ended early, or nil when the horizon passed.
func (o *Orchestrator) await(ctx context.Context, rcpt *Receipt, logger zerolog.Logger) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	failures := 0
	var lastReadErr error
	for attempt := 1; ; attempt++ {
		readFailed := false
		status, err := o.transport.SignatureStatus(ctx, rcpt.Signature)
		switch {
		case err != nil:
			readFailed = true
			lastReadErr = err
		case status.Err != "":
			return reject(rcpt, status.Err, logger)
		case status.Confirmed:
			rcpt.State = StateConfirmed
			return nil
		}

		height, err := o.transport.BlockHeight(ctx)
		if err != nil {
			readFailed = true
			lastReadErr = err
		} else if height > rcpt.Horizon.LastValidBlockHeight {
			// The ledger can still have landed it between the status read
			// and the height read; one final look before giving up.
			if final, ferr := o.transport.SignatureStatus(ctx, rcpt.Signature); ferr == nil {
				if final.Err != "" {
					return reject(rcpt, final.Err, logger)
				}
				if final.Confirmed {
					rcpt.State = StateConfirmed
					return nil
				}
			}
			rcpt.State = StateExpired
			return nil
		}

		// Only an iteration where every read succeeded clears the count.
		if readFailed {
			failures++
		} else {
			failures = 0
		}
		if failures >= o.cfg.MaxReadFailures {
			rcpt.State = StateExpired
			return fmt.Errorf("%d consecutive read failures: %w", failures, lastReadErr)
		}

		delay := NextBackoffDelay(o.cfg.Backoff, attempt, rng)
		logger.Trace().
			Int("attempt", attempt).
			Dur("delay", delay).
			Int("read_failures", failures).
			Msg("txn.Submit poll")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			rcpt.State = StateExpired
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reject records a ledger-side failure reported through a signature status.
// Status errors mean the transaction executed, so they are always rejected.
func reject(rcpt *Receipt, raw string, logger zerolog.Logger) error {
	rcpt.State = StateRejected
	cerr := programerr.Classify(raw)
	cerr.Class = programerr.ClassRejected
	logger.Warn().
		Err(cerr).
		Str("state", rcpt.State.String()).
		Str("kind", cerr.Kind.String()).
		Msg("txn.Submit status")
	return cerr
}

func (o *Orchestrator) expire(rcpt *Receipt, op string, logger zerolog.Logger, cause error) (Receipt, error) {
	rcpt.State = StateExpired
	observability.RecordSubmission(op, rcpt.State.String())
	cerr := programerr.Expired(rcpt.Signature.String(), cause)
	logger.Warn().Err(cerr).Str("state", rcpt.State.String()).Msg("txn.Submit")
	return *rcpt, cerr
}

func indexSigners(env instruction.Envelope, signers []Signer) (map[solana.PublicKey]Signer, error) {
	byKey := make(map[solana.PublicKey]Signer, len(signers))
	for _, s := range signers {
		if s != nil {
			byKey[s.PublicKey()] = s
		}
	}
	for _, required := range env.Signers() {
		if _, ok := byKey[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSigner, required)
		}
	}
	return byKey, nil
}

// sign compiles env into a transaction against blockhash and signs the
// message with every required key, fee payer first.
func sign(env instruction.Envelope, blockhash solana.Hash, byKey map[solana.PublicKey]Signer) ([]byte, solana.Signature, error) {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{env.Instruction()},
		blockhash,
		solana.TransactionPayer(env.FeePayer()),
	)
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("txn: compile message: %w", err)
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("txn: serialize message: %w", err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	tx.Signatures = make([]solana.Signature, 0, required)
	for _, key := range tx.Message.AccountKeys[:required] {
		signer, ok := byKey[key]
		if !ok {
			return nil, solana.Signature{}, fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		sig, err := signer.Sign(message)
		if err != nil {
			return nil, solana.Signature{}, fmt.Errorf("txn: sign with %s: %w", key, err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("txn: serialize transaction: %w", err)
	}
	return raw, tx.Signatures[0], nil
}
