package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/votectl/internal/config"
	"github.com/danmuck/votectl/internal/logging"
	"github.com/danmuck/votectl/internal/programerr"
)

const usage = `usage: votectl [-config path] <command> [flags]

commands:
  create   create a voting owned by the configured keypair
  vote     cast a vote on an owner's voting
  show     print the current snapshot of a voting
  address  print the derived storage address of a voting
  serve    run the read-only HTTP query surface
  keygen   generate a recoverable keypair file
`

func main() {
	logging.ConfigureRuntime()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("votectl", flag.ContinueOnError)
	configPath := global.String("config", "votectl.toml", "client config path (.toml, .yaml)")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "keygen" {
		return report(cmd, runKeygen(cmdArgs))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "votectl: %v\n", err)
		return 1
	}
	var runErr error
	switch cmd {
	case "create":
		runErr = runCreate(ctx, cfg, cmdArgs)
	case "vote":
		runErr = runVote(ctx, cfg, cmdArgs)
	case "show":
		runErr = runShow(ctx, cfg, cmdArgs)
	case "address":
		runErr = runAddress(cfg, cmdArgs)
	case "serve":
		runErr = runServe(cfg, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "votectl: unknown command %q\n", cmd)
		global.Usage()
		return 2
	}
	return report(cmd, runErr)
}

// loadConfig reads the config file when present and falls back to defaults
// plus environment overrides otherwise.
func loadConfig(path string) (config.Resolved, error) {
	var (
		cfg config.ClientConfig
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = config.LoadClientConfig(path)
		if err != nil {
			return config.Resolved{}, err
		}
	} else {
		cfg = config.DefaultClientConfig()
		cfg.ApplyEnv()
		log.Debug().Str("path", path).Msg("config file not found, using defaults")
	}
	return cfg.Resolve()
}

func report(cmd string, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if perr, ok := programerr.As(err); ok {
		switch {
		case perr.Indeterminate():
			fmt.Fprintf(os.Stderr, "votectl %s: outcome unknown: %s\n", cmd, perr.Message)
			fmt.Fprintln(os.Stderr, "check the voting with `votectl show` before submitting again")
			return 3
		case perr.HasCode:
			fmt.Fprintf(os.Stderr, "votectl %s: rejected by program: %s (code %d)\n", cmd, perr.Kind, perr.Code)
			return 4
		default:
			fmt.Fprintf(os.Stderr, "votectl %s: %s failure: %s\n", cmd, perr.Class, perr.Message)
			return 4
		}
	}
	fmt.Fprintf(os.Stderr, "votectl %s: %v\n", cmd, err)
	return 1
}
