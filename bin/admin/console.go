package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bsoera/econ/game"
	"github.com/bsoera/econ/server"
	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
)

const consoleClient = "console"

// printSink writes notifications to a terminal, without colors.
type printSink struct {
	w io.Writer
}

func (p printSink) Deliver(ctx context.Context, client string, text string, color game.Color) error {
	_, err := fmt.Fprintln(p.w, text)
	return err
}

// console runs chat commands read from stdin. "as <account>" switches the acting account.
func console(ctx context.Context, config server.Config, args []string) error {
	store := storage.New(config.Resolver())
	l, err := ledger.Open(config.LedgerFile())
	if err != nil {
		return err
	}
	defer l.Close()
	audit := storage.NewAuditLogger(config.AuditLogFile(), config.AuditMaxSizeMB)
	defer audit.Close()

	settings := structs.NewServerConfig(config.AllowChaotic)
	settings.SetNegativeScores(config.NegativeScores)
	if err := store.PeekInto(ctx, structs.ServerConfigKey, settings); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	d := game.New(store, game.Options{
		Sink:   printSink{w: os.Stdout},
		Ledger: l,
		Audit:  audit,
		Config: settings,
	})

	account := structs.AnonAccount
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("%s> ", account)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		words, err := shellwords.SplitPosix(line)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		case len(words) == 0:
		case words[0] == "as":
			if len(words) != 2 {
				fmt.Fprintln(os.Stderr, "usage: as <account>")
				break
			}
			account = words[1]
		default:
			handled, err := d.Handle(ctx, game.Request{
				Client:  consoleClient,
				Account: account,
				Line:    strings.Join(words, " "),
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else if !handled {
				fmt.Fprintln(os.Stderr, "not a command, commands start with /")
			}
		}
		fmt.Printf("%s> ", account)
	}
	fmt.Println()
	return scanner.Err()
}
