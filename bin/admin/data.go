package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/server"
	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/rodaine/table"

	goccy "github.com/goccy/go-json"
)

// bundle is the content of a backup file, zstd compressed.
type bundle struct {
	Created int64        `json:"created"`
	Files   []bundleFile `json:"files"`
}

type bundleFile struct {
	Path    string           `json:"path"`
	Content goccy.RawMessage `json:"content"`
}

func backup(ctx context.Context, config server.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: backup <file>")
	}
	b := bundle{Created: time.Now().Unix(), Files: []bundleFile{}}
	store := storage.New(config.Resolver())
	if err := store.WalkFiles(ctx, func(rel string, content []byte) error {
		if !goccy.Valid(content) {
			return errors.Errorf("%s is not valid JSON", rel)
		}
		b.Files = append(b.Files, bundleFile{Path: rel, Content: content})
		return nil
	}); err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return econ.WithStack(err)
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return econ.WithStack(err)
	}
	if err := goccy.NewEncoder(enc).Encode(b); err != nil {
		enc.Close()
		return econ.WithStack(err)
	}
	if err := enc.Close(); err != nil {
		return econ.WithStack(err)
	}
	if err := f.Close(); err != nil {
		return econ.WithStack(err)
	}
	fmt.Printf("Wrote %d documents to %s\n", len(b.Files), args[0])
	return nil
}

func readBundle(path string) (*bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, econ.WithStack(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, econ.WithStack(err)
	}
	defer dec.Close()
	b := &bundle{}
	if err := goccy.NewDecoder(dec).Decode(b); err != nil {
		return nil, errors.Wrapf(err, "decoding %q", path)
	}
	return b, nil
}

// restore writes every document of a bundle, but only once all of them validate.
func restore(ctx context.Context, config server.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: restore <file>")
	}
	b, err := readBundle(args[0])
	if err != nil {
		return err
	}
	s, err := compileSchemas()
	if err != nil {
		return err
	}
	for _, f := range b.Files {
		if err := s.validate(f.Path, f.Content); err != nil {
			return errors.Wrapf(err, "validating %q", f.Path)
		}
	}

	store := storage.New(config.Resolver())
	for _, f := range b.Files {
		if err := store.RestoreFile(ctx, f.Path, f.Content); err != nil {
			return err
		}
	}
	audit := storage.NewAuditLogger(config.AuditLogFile(), config.AuditMaxSizeMB)
	defer audit.Close()
	audit.Log(ctx, "restore", storage.AuditRestore{Files: len(b.Files)})
	fmt.Printf("Restored %d documents from %s\n", len(b.Files), args[0])
	return nil
}

func check(ctx context.Context, config server.Config, args []string) error {
	s, err := compileSchemas()
	if err != nil {
		return err
	}
	store := storage.New(config.Resolver())
	checked := 0
	t := table.New("Document", "Problem").WithWriter(os.Stdout)
	problems := 0
	if err := store.WalkFiles(ctx, func(rel string, content []byte) error {
		checked++
		if err := s.validate(rel, content); err != nil {
			problems++
			t.AddRow(rel, err.Error())
		}
		return nil
	}); err != nil {
		return err
	}
	if problems > 0 {
		t.Print()
		return errors.Errorf("%d of %d documents are invalid", problems, checked)
	}
	fmt.Printf("All %d documents are valid\n", checked)
	return nil
}

func endTime(end float64) string {
	if end == 0 {
		return "never"
	}
	return structs.FromEpoch(end).Format(time.RFC3339)
}

func tops(ctx context.Context, config server.Config, args []string) error {
	store := storage.New(config.Resolver())
	tops := structs.NewTops()
	if err := store.PeekInto(ctx, structs.TopsKey, tops); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	fmt.Printf("Window ends %s\n", endTime(tops.End))
	t := table.New("#", "Account", "Points").WithWriter(os.Stdout)
	i := 0
	for account, points := range tops.Scores.Each() {
		i++
		t.AddRow(i, account, points)
	}
	t.Print()
	return nil
}

func leagues(ctx context.Context, config server.Config, args []string) error {
	store := storage.New(config.Resolver())
	leagues := structs.NewLeagues()
	if err := store.PeekInto(ctx, structs.LeaguesKey, leagues); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	leagues.Normalize()
	fmt.Printf("Season ends %s\n", endTime(leagues.End))
	t := table.New("League", "#", "Account", "Points").WithWriter(os.Stdout)
	for tier, scores := range leagues.Tiers {
		i := 0
		for account, points := range scores.Each() {
			i++
			t.AddRow(tier, i, account, points)
		}
	}
	t.Print()
	return nil
}

func ledgerReport(ctx context.Context, config server.Config, args []string) error {
	l, err := ledger.Open(config.LedgerFile())
	if err != nil {
		return err
	}
	defer l.Close()

	if len(args) == 0 {
		totals, err := l.Totals(ctx, 100)
		if err != nil {
			return err
		}
		t := table.New("Account", "Earned", "Spent", "Movements").WithWriter(os.Stdout)
		for _, total := range totals {
			t.AddRow(total.Account, total.Earned, total.Spent, total.Count)
		}
		t.Print()
		return nil
	}

	limit := 50
	if len(args) > 1 {
		if limit, err = strconv.Atoi(args[1]); err != nil {
			return econ.WithStack(err)
		}
	}
	entries, err := l.History(ctx, args[0], limit)
	if err != nil {
		return err
	}
	t := table.New("Time", "Delta", "Balance", "Reason").WithWriter(os.Stdout)
	for _, e := range entries {
		t.AddRow(e.Time().Format(time.RFC3339), e.Delta, e.Balance, e.Reason)
	}
	t.Print()
	return nil
}
