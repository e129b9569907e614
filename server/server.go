package server

import (
	"context"
	"log"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/game"
	"github.com/bsoera/econ/lang"
	"github.com/bsoera/econ/pemfile"
	"github.com/bsoera/econ/storage"
	"github.com/bsoera/econ/storage/ledger"
	"github.com/bsoera/econ/structs"
	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	gossh "golang.org/x/crypto/ssh"
)

// Server is an SSH chat host running the economy commands.
// Every SSH session is one client controlling one player.
type Server struct {
	config     Config
	store      *storage.Store
	settings   *structs.ServerConfig
	catalog    *lang.Catalog
	ledger     *ledger.Ledger
	audit      *storage.AuditLogger
	dispatcher *game.Dispatcher
	board      *Switchboard
	signer     gossh.Signer

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func New(ctx context.Context, config Config) (*Server, error) {
	if err := os.MkdirAll(config.Dir, 0700); err != nil {
		return nil, econ.WithStack(err)
	}
	_, signer, created, err := pemfile.InDir(config.Dir).Load()
	if err != nil {
		return nil, err
	}
	if created {
		log.Printf("Generated server key pair in %q", config.Dir)
	}

	s := &Server{
		config: config,
		store:  storage.New(config.Resolver()),
		board:  NewSwitchboard(),
		signer: signer,
		rnd:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	if s.settings, err = loadSettings(ctx, s.store, config); err != nil {
		return nil, err
	}
	if s.ledger, err = ledger.Open(config.LedgerFile()); err != nil {
		return nil, err
	}
	s.audit = storage.NewAuditLogger(config.AuditLogFile(), config.AuditMaxSizeMB)
	s.catalog = lang.NewCatalog(s.store, time.Minute)
	s.dispatcher = game.New(s.store, game.Options{
		Sink:    s,
		Targets: s,
		Events:  s,
		Catalog: s.catalog,
		Ledger:  s.ledger,
		Audit:   s.audit,
		Config:  s.settings,
	})
	return s, nil
}

// loadSettings prefers the persisted runtime switches over the configured defaults.
func loadSettings(ctx context.Context, store *storage.Store, config Config) (*structs.ServerConfig, error) {
	settings := structs.NewServerConfig(config.AllowChaotic)
	settings.SetNegativeScores(config.NegativeScores)
	if err := store.PeekInto(ctx, structs.ServerConfigKey, settings); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return settings, nil
}

func (s *Server) saveSettings(ctx context.Context) error {
	return s.store.Write(ctx, structs.ServerConfigKey, s.settings)
}

func (s *Server) Dispatcher() *game.Dispatcher {
	return s.dispatcher
}

// Start serves SSH and the control socket until ctx is cancelled or either fails.
func (s *Server) Start(ctx context.Context) error {
	sshServer := &ssh.Server{
		Addr:    s.config.SSHAddr,
		Handler: s.HandleSession,
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			return true
		},
		KeyboardInteractiveHandler: func(ctx ssh.Context, challenger gossh.KeyboardInteractiveChallenge) bool {
			return true
		},
	}
	sshServer.AddHostKey(s.signer)

	socketPath := s.config.SocketPath()
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return econ.WithStack(err)
	}
	control, err := net.Listen("unix", socketPath)
	if err != nil {
		return econ.WithStack(err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listening on %q with public key %q", s.config.SSHAddr, gossh.FingerprintSHA256(s.signer.PublicKey()))
		if err := sshServer.ListenAndServe(); !errors.Is(err, ssh.ErrServerClosed) {
			return econ.WithStack(err)
		}
		return nil
	})
	g.Go(func() error {
		return s.serveControl(ctx, control)
	})
	g.Go(func() error {
		<-ctx.Done()
		sshServer.Close()
		control.Close()
		return nil
	})
	err = g.Wait()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) Close() error {
	err := s.ledger.Close()
	if aerr := s.audit.Close(); err == nil {
		err = aerr
	}
	return err
}
