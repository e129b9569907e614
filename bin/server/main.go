package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bsoera/econ/server"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	config := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML file with server settings, overridden by flags.")
	flag.StringVar(&config.SSHAddr, "ssh", config.SSHAddr, "Where to listen to SSH connections.")
	flag.StringVar(&config.Dir, "dir", config.Dir, "Where to save keys, ledger, logs and the control socket.")
	flag.StringVar(&config.DataRoot, "data", config.DataRoot, "Root of the JSON document tree.")
	flag.StringVar(&config.SuperDir, "super", config.SuperDir, "Per-instance directory below <data>/superdata.")
	flag.BoolVar(&config.AllowChaotic, "chaotic", config.AllowChaotic, "Allow wheel spins and powerups unless persisted otherwise.")
	flag.StringVar(&config.LogFile, "log", config.LogFile, "Rotated log file, empty logs to stderr.")
	flag.StringVar(&config.AuditFile, "audit", config.AuditFile, "Audit log file, defaults to <dir>/audit.log.")
	flag.StringVar(&config.LedgerPath, "ledger", config.LedgerPath, "SQLite points ledger, defaults to <dir>/ledger.sqlite.")

	flag.Parse()

	if *configFile != "" {
		if err := config.LoadFile(*configFile); err != nil {
			log.Fatal(err)
		}
		// Flags given explicitly win over the file.
		flag.Parse()
	}

	if config.LogFile != "" {
		logger := &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			Compress:   true,
		}
		defer logger.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, config)
	if err != nil {
		log.Fatal(err)
	}

	if err := srv.Start(ctx); err != nil {
		log.Fatal(err)
	}
}
