package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
)

const (
	MaxSeeds   = 16
	MaxSeedLen = 32

	// VotingSeedTag is the literal domain tag of scoped voting addresses.
	VotingSeedTag = "voting"

	derivedMarker = "ProgramDerivedAddress"
)

var (
	ErrTooManySeeds        = errors.New("address: too many seeds")
	ErrSeedTooLong         = errors.New("address: seed too long")
	ErrOnCurve             = errors.New("address: derived key lies on the ed25519 curve")
	ErrDerivationExhausted = errors.New("address: no bump seed yields an off-curve address")
	ErrUnknownMode         = errors.New("address: unknown derivation mode")
)

// Mode selects how voting seeds are laid out. Mixing modes for the same
// voting yields a different address, so the record looks missing.
type Mode uint8

const (
	// ModeLegacy keys one voting per owner: seeds = owner.
	ModeLegacy Mode = iota + 1
	// ModeScoped keys many votings per owner: seeds = owner, voting id, "voting".
	ModeScoped
)

func (m Mode) String() string {
	switch m {
	case ModeLegacy:
		return "legacy"
	case ModeScoped:
		return "scoped"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "legacy":
		return ModeLegacy, nil
	case "scoped":
		return ModeScoped, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Derived is a program-owned address and the bump that produced it.
type Derived struct {
	Address solana.PublicKey
	Bump    uint8
}

// Deriver computes addresses owned by one program. It holds no state besides
// the program identity and is safe for concurrent use.
type Deriver struct {
	programID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) Deriver {
	return Deriver{programID: programID}
}

func (d Deriver) ProgramID() solana.PublicKey {
	return d.programID
}

// Derive searches bumps from 255 down to 1 and returns the first candidate
// that is not a valid ed25519 point, so no private key can sign for it.
func (d Deriver) Derive(seeds ...[]byte) (Derived, error) {
	if err := checkSeeds(len(seeds)+1, seeds); err != nil {
		return Derived{}, err
	}
	bump := []byte{0}
	for b := 255; b > 0; b-- {
		bump[0] = byte(b)
		addr, err := d.create(append(seeds[:len(seeds):len(seeds)], bump))
		if errors.Is(err, ErrOnCurve) {
			continue
		}
		if err != nil {
			return Derived{}, err
		}
		log.Trace().Str("address", addr.String()).Int("bump", b).Msg("address.Derive")
		return Derived{Address: addr, Bump: uint8(b)}, nil
	}
	return Derived{}, ErrDerivationExhausted
}

// CreateWithBump hashes seeds plus an explicit bump, failing with ErrOnCurve
// when the result could be controlled by a signer.
func (d Deriver) CreateWithBump(bump uint8, seeds ...[]byte) (solana.PublicKey, error) {
	if err := checkSeeds(len(seeds)+1, seeds); err != nil {
		return solana.PublicKey{}, err
	}
	return d.create(append(seeds[:len(seeds):len(seeds)], []byte{bump}))
}

func (d Deriver) create(seeds [][]byte) (solana.PublicKey, error) {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(d.programID[:])
	h.Write([]byte(derivedMarker))
	var out solana.PublicKey
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out[:]) {
		return solana.PublicKey{}, ErrOnCurve
	}
	return out, nil
}

func checkSeeds(count int, seeds [][]byte) error {
	if count > MaxSeeds {
		return fmt.Errorf("%w: %d > %d", ErrTooManySeeds, count, MaxSeeds)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("%w: seed[%d] is %d bytes, max %d", ErrSeedTooLong, i, len(s), MaxSeedLen)
		}
	}
	return nil
}

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// VotingSeeds lays out the seeds of a voting address for mode.
func VotingSeeds(mode Mode, owner solana.PublicKey, votingID string) ([][]byte, error) {
	switch mode {
	case ModeLegacy:
		return [][]byte{owner.Bytes()}, nil
	case ModeScoped:
		return [][]byte{owner.Bytes(), []byte(votingID), []byte(VotingSeedTag)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
}

// Voting derives the storage address of one voting record.
func (d Deriver) Voting(mode Mode, owner solana.PublicKey, votingID string) (Derived, error) {
	seeds, err := VotingSeeds(mode, owner, votingID)
	if err != nil {
		return Derived{}, err
	}
	derived, err := d.Derive(seeds...)
	if err != nil {
		return Derived{}, fmt.Errorf("derive voting %q (%s): %w", votingID, mode, err)
	}
	log.Debug().
		Str("owner", owner.String()).
		Str("voting_id", votingID).
		Str("mode", mode.String()).
		Str("address", derived.Address.String()).
		Uint8("bump", derived.Bump).
		Msg("address.Voting")
	return derived, nil
}
