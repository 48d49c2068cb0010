package address

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/danmuck/votectl/internal/testutil/testlog"
)

var testProgramID = solana.MustPublicKeyFromBase58("AYJ7F7tPhvUu6gUucew7AJqhasTEx8tH3UF9GAuyfQQz")

func randomKey(rng *rand.Rand) solana.PublicKey {
	var k solana.PublicKey
	rng.Read(k[:])
	return k
}

func TestDeriveMatchesRuntimeAlgorithm(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 32; i++ {
		owner := randomKey(rng)
		votingID := "color" + strings.Repeat("x", i%8)
		seeds, err := VotingSeeds(ModeScoped, owner, votingID)
		if err != nil {
			t.Fatalf("seeds: %v", err)
		}
		got, err := d.Derive(seeds...)
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		want, bump, err := solana.FindProgramAddress(seeds, testProgramID)
		if err != nil {
			t.Fatalf("reference derive: %v", err)
		}
		if got.Address != want || got.Bump != bump {
			t.Fatalf("owner %s: got %s/%d want %s/%d", owner, got.Address, got.Bump, want, bump)
		}
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	owner := randomKey(rand.New(rand.NewSource(3)))
	a, err := d.Voting(ModeScoped, owner, "color1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := d.Voting(ModeScoped, owner, "color1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatalf("derive not deterministic: %+v vs %+v", a, b)
	}
}

func TestDerivedAddressesAreDistinct(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	rng := rand.New(rand.NewSource(5))
	seen := make(map[solana.PublicKey]string)
	for i := 0; i < 64; i++ {
		owner := randomKey(rng)
		for _, id := range []string{"color1", "color2"} {
			derived, err := d.Voting(ModeScoped, owner, id)
			if err != nil {
				t.Fatalf("derive: %v", err)
			}
			key := owner.String() + "/" + id
			if prev, ok := seen[derived.Address]; ok {
				t.Fatalf("collision between %s and %s", prev, key)
			}
			seen[derived.Address] = key
		}
	}
}

func TestDerivedAddressIsOffCurve(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	owner := randomKey(rand.New(rand.NewSource(9)))
	derived, err := d.Voting(ModeScoped, owner, "color1")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if IsOnCurve(derived.Address[:]) {
		t.Fatalf("derived address %s is signable", derived.Address)
	}
	again, err := d.CreateWithBump(derived.Bump, owner.Bytes(), []byte("color1"), []byte(VotingSeedTag))
	if err != nil {
		t.Fatalf("create with bump: %v", err)
	}
	if again != derived.Address {
		t.Fatalf("create with bump = %s want %s", again, derived.Address)
	}
}

func TestModesYieldDifferentAddresses(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	owner := randomKey(rand.New(rand.NewSource(13)))
	legacy, err := d.Voting(ModeLegacy, owner, "color1")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	scoped, err := d.Voting(ModeScoped, owner, "color1")
	if err != nil {
		t.Fatalf("scoped: %v", err)
	}
	if legacy.Address == scoped.Address {
		t.Fatalf("legacy and scoped collide")
	}
	other, err := d.Voting(ModeLegacy, owner, "anything")
	if err != nil {
		t.Fatalf("legacy: %v", err)
	}
	if other != legacy {
		t.Fatalf("legacy mode must ignore the voting id")
	}
}

func TestSeedLimits(t *testing.T) {
	testlog.Start(t)
	d := NewDeriver(testProgramID)
	owner := randomKey(rand.New(rand.NewSource(17)))
	_, err := d.Voting(ModeScoped, owner, strings.Repeat("v", MaxSeedLen+1))
	if !errors.Is(err, ErrSeedTooLong) {
		t.Fatalf("expected ErrSeedTooLong, got %v", err)
	}
	seeds := make([][]byte, MaxSeeds)
	if _, err := d.Derive(seeds...); !errors.Is(err, ErrTooManySeeds) {
		t.Fatalf("expected ErrTooManySeeds, got %v", err)
	}
	if _, err := d.Voting(Mode(7), owner, "x"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	testlog.Start(t)
	if m, err := ParseMode(" Scoped "); err != nil || m != ModeScoped {
		t.Fatalf("ParseMode scoped = %v, %v", m, err)
	}
	if m, err := ParseMode("legacy"); err != nil || m != ModeLegacy {
		t.Fatalf("ParseMode legacy = %v, %v", m, err)
	}
	if _, err := ParseMode("pda"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}
