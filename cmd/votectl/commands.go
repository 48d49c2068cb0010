package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/auth"
	"github.com/danmuck/votectl/internal/client"
	"github.com/danmuck/votectl/internal/config"
	"github.com/danmuck/votectl/internal/identity"
	"github.com/danmuck/votectl/internal/protocol"
	"github.com/danmuck/votectl/internal/server"
	"github.com/danmuck/votectl/internal/transport/solanarpc"
)

func newClient(cfg config.Resolved) (*client.Client, *solanarpc.Transport, error) {
	tr := solanarpc.New(solanarpc.Options{
		Endpoint:   cfg.RPCEndpoint,
		ProgramID:  cfg.ProgramID,
		Commitment: cfg.Commitment,
		RateLimit:  cfg.RPCRateLimit,
		Burst:      cfg.RPCBurst,
	})
	c, err := client.New(tr, client.Options{
		ProgramID: cfg.ProgramID,
		Schema:    cfg.Schema,
		Mode:      cfg.Mode,
		Txn:       cfg.Txn,
	})
	if err != nil {
		_ = tr.Close()
		return nil, nil, err
	}
	return c, tr, nil
}

// loadSigner accepts a keygen JSON file, a file holding a base58 secret key,
// or a file holding a BIP-39 phrase.
func loadSigner(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("no keypair configured")
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return identity.LoadKeygenFile(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	if strings.ContainsAny(text, " \n\t") {
		return identity.FromMnemonic(text, os.Getenv("VOTECTL_PASSPHRASE"))
	}
	return identity.FromBase58(text)
}

// optionList collects repeated -option id:label flags.
type optionList []protocol.VoteOption

func (o *optionList) String() string {
	parts := make([]string, 0, len(*o))
	for _, opt := range *o {
		parts = append(parts, fmt.Sprintf("%d:%s", opt.OptionID, opt.Label))
	}
	return strings.Join(parts, ",")
}

func (o *optionList) Set(raw string) error {
	id, label, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(label) == "" {
		return fmt.Errorf("option %q: want id:label", raw)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 8)
	if err != nil {
		return fmt.Errorf("option %q: id must be 0-255", raw)
	}
	*o = append(*o, protocol.VoteOption{OptionID: uint8(n), Label: strings.TrimSpace(label)})
	return nil
}

// parseTime accepts unix seconds or RFC 3339. Empty means zero.
func parseTime(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("time %q: want unix seconds or RFC 3339", raw)
	}
	if t.Unix() < 0 {
		return 0, fmt.Errorf("time %q is before the epoch", raw)
	}
	return uint64(t.Unix()), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCreate(ctx context.Context, cfg config.Resolved, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	id := fs.String("id", "", "voting id (at most 32 bytes in scoped mode)")
	title := fs.String("title", "", "voting title")
	start := fs.String("start", "", "window start (unix seconds or RFC 3339)")
	end := fs.String("end", "", "window end (unix seconds or RFC 3339)")
	keypair := fs.String("keypair", cfg.KeypairPath, "owner keypair file")
	var options optionList
	fs.Var(&options, "option", "vote option as id:label (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	startTime, err := parseTime(*start)
	if err != nil {
		return err
	}
	endTime, err := parseTime(*end)
	if err != nil {
		return err
	}
	owner, err := loadSigner(*keypair)
	if err != nil {
		return fmt.Errorf("load owner keypair: %w", err)
	}
	c, tr, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	rcpt, err := c.CreateVoting(ctx, owner, protocol.CreateVotingRequest{
		VotingID:  *id,
		Title:     *title,
		StartTime: startTime,
		EndTime:   endTime,
		Options:   options,
	})
	if err != nil {
		return err
	}
	derived, _ := c.VotingAddress(owner.PublicKey(), *id)
	return printJSON(map[string]any{
		"signature":     rcpt.Signature.String(),
		"submission_id": rcpt.SubmissionID,
		"owner":         owner.PublicKey().String(),
		"address":       derived.Address.String(),
	})
}

func runVote(ctx context.Context, cfg config.Resolved, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "voting owner public key")
	id := fs.String("id", "", "voting id")
	option := fs.Uint("option", 0, "option id to vote for")
	keypair := fs.String("keypair", cfg.KeypairPath, "voter keypair file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(*ownerFlag)
	if err != nil {
		return fmt.Errorf("-owner: %w", err)
	}
	if *option > 255 {
		return fmt.Errorf("-option must be 0-255")
	}
	voter, err := loadSigner(*keypair)
	if err != nil {
		return fmt.Errorf("load voter keypair: %w", err)
	}
	c, tr, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	rcpt, err := c.Vote(ctx, owner, *id, voter, uint8(*option))
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"signature":     rcpt.Signature.String(),
		"submission_id": rcpt.SubmissionID,
		"voter":         voter.PublicKey().String(),
	})
}

func runShow(ctx context.Context, cfg config.Resolved, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "voting owner public key")
	id := fs.String("id", "", "voting id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(*ownerFlag)
	if err != nil {
		return fmt.Errorf("-owner: %w", err)
	}
	c, tr, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	rec, err := c.ReadVoting(ctx, owner, *id)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runAddress(cfg config.Resolved, args []string) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	ownerFlag := fs.String("owner", "", "voting owner public key")
	id := fs.String("id", "", "voting id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	owner, err := solana.PublicKeyFromBase58(*ownerFlag)
	if err != nil {
		return fmt.Errorf("-owner: %w", err)
	}
	c, tr, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	derived, err := c.VotingAddress(owner, *id)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"address":    derived.Address.String(),
		"bump":       derived.Bump,
		"derivation": c.Mode().String(),
	})
}

func runServe(cfg config.Resolved, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, tr, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	srv := server.New(c, *addr, cfg.CorsOrigins, auth.FromConfig(cfg.APIToken))
	log.Info().Str("addr", *addr).Str("rpc", cfg.RPCEndpoint).Msg("votectl serve")
	return srv.Serve()
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	out := fs.String("out", "", "keygen JSON file to write")
	child := fs.String("child", "", "derive a labeled child key from the recovered seed")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("keypair already exists: %s", *out)
	}
	words, err := identity.NewMnemonic()
	if err != nil {
		return err
	}
	key, err := identity.FromMnemonic(words, os.Getenv("VOTECTL_PASSPHRASE"))
	if err != nil {
		return err
	}
	if *child != "" {
		key, err = identity.DeriveChild(key[:32], *child)
		if err != nil {
			return err
		}
	}
	if err := identity.WriteKeygenFile(*out, key); err != nil {
		return err
	}
	return printJSON(map[string]any{
		"public_key": key.PublicKey().String(),
		"mnemonic":   words,
		"child":      *child,
		"path":       *out,
	})
}
