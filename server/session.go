package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/game"
	"github.com/bsoera/econ/lang"
	"github.com/bsoera/econ/structs"
	"github.com/gliderlabs/ssh"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

type session struct {
	srv        *Server
	sess       ssh.Session
	term       *term.Terminal
	ctx        context.Context
	id         string
	account    string
	name       string
	spectating bool

	mu     sync.RWMutex
	badges string
}

// accountOf derives a stable account id from the client key. Keyless clients are anonymous.
func accountOf(key ssh.PublicKey) string {
	if key == nil {
		return structs.AnonAccount
	}
	return fmt.Sprintf("pk%x", sha256.Sum256(key.Marshal()))[:34]
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Target() game.Target {
	return game.Target{Client: s.id, Account: s.account, Name: s.name}
}

func (s *session) Spectating() bool {
	return s.spectating
}

func (s *session) Write(b []byte) (int, error) {
	return s.term.Write(b)
}

func (s *session) setBadges(badges string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges = badges
}

func (s *session) getBadges() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badges
}

func (srv *Server) HandleSession(sess ssh.Session) {
	s := &session{
		srv:        srv,
		sess:       sess,
		term:       term.NewTerminal(sess, "> "),
		id:         econ.NextUniqueID(),
		account:    accountOf(sess.PublicKey()),
		name:       sess.User(),
		spectating: strings.Contains(strings.Join(sess.Command(), " "), "spectate"),
	}
	s.ctx = econ.WithSessionID(sess.Context(), s.id)
	if err := s.Connect(); err != nil {
		if !errors.Is(err, io.EOF) {
			fmt.Fprintf(s.term, "InternalServerError: %v\n", err)
			log.Println(err)
			log.Println(econ.StackTrace(err))
		}
	}
}

func (s *session) Connect() error {
	online := []string{}
	for _, t := range s.srv.board.Roster() {
		online = append(online, t.Name)
	}
	fmt.Fprintf(s.term, "Welcome, %s!\n", s.name)
	if len(online) > 0 {
		fmt.Fprintf(s.term, "In game: %s\n", lang.Enumerator{}.Do(online...))
	}
	for _, line := range s.srv.board.History() {
		s.term.Write(line)
	}
	if err := s.refresh(s.ctx); err != nil {
		return err
	}
	s.srv.board.Attach(s)
	defer s.srv.board.Detach(s)
	s.srv.board.Broadcast([]byte(fmt.Sprintf("%s joined\n", s.name)))
	defer s.srv.board.Broadcast([]byte(fmt.Sprintf("%s left\n", s.name)))
	return s.Process()
}

func (s *session) Process() error {
	for {
		line, err := s.term.ReadLine()
		if err != nil {
			return econ.WithStack(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		handled, err := s.srv.dispatcher.Handle(s.ctx, game.Request{
			Client:  s.id,
			Account: s.account,
			Name:    s.name,
			Line:    line,
		})
		if err != nil {
			fmt.Fprintf(s.term, "InternalServerError: %v\n", err)
			log.Printf("%q by %q: %v\n%s", line, s.account, err, econ.StackTrace(err))
			continue
		}
		if !handled {
			s.srv.board.Broadcast([]byte(fmt.Sprintf("%s%s: %s\n", s.getBadges(), s.name, line)))
		}
	}
}

// refresh recomputes the tags shown in front of the name of the player.
func (s *session) refresh(ctx context.Context) error {
	decorations, err := s.srv.dispatcher.Decorations(ctx, s.account)
	if err != nil {
		return err
	}
	buf := &strings.Builder{}
	for _, tag := range decorations.Tags() {
		buf.WriteString(paint(tag.Text, tag.Color[:3]))
		buf.WriteString(" ")
	}
	s.setBadges(buf.String())
	return nil
}
