package server

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bsoera/econ/game"
	"github.com/bsoera/econ/lang"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
)

// renderer always emits true color sequences, whatever terminal the server itself runs in.
var renderer = func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.TrueColor)
	return r
}()

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// paint colors text with an RGB triple of [0, 1] channels.
func paint(text string, rgb []float64) string {
	if len(rgb) < 3 {
		return text
	}
	hex := fmt.Sprintf("#%02x%02x%02x", channel(rgb[0]), channel(rgb[1]), channel(rgb[2]))
	return renderer.NewStyle().Foreground(lipgloss.Color(hex)).Render(text)
}

func (srv *Server) session(client string) (*session, error) {
	c, found := srv.board.Find(client)
	if !found {
		return nil, errors.Errorf("client %q is not connected", client)
	}
	s, ok := c.(*session)
	if !ok {
		return nil, errors.Errorf("client %q is not an SSH session", client)
	}
	return s, nil
}

func (srv *Server) Deliver(ctx context.Context, client string, text string, color game.Color) error {
	s, err := srv.session(client)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.term, paint(text, color[:]))
	return err
}

func (srv *Server) ResolveTargets(ctx context.Context, scope game.Scope, client string) ([]game.Target, error) {
	srv.rndMu.Lock()
	defer srv.rndMu.Unlock()
	return game.ResolveFromRoster(srv.board.Roster(), scope, client, srv.rnd)
}

// ApplyEvent announces in-game effects to everyone, since the host has no game world.
func (srv *Server) ApplyEvent(ctx context.Context, ev game.Event, targets []game.Target) error {
	what := strings.ReplaceAll(ev.Kind, "_", " ")
	if len(ev.Args) > 0 {
		what = fmt.Sprintf("%s (%s)", what, strings.Join(ev.Args, " "))
	}
	if len(targets) == 0 {
		srv.board.Broadcast([]byte(fmt.Sprintf("* %s happens\n", what)))
		return nil
	}
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	srv.board.Broadcast([]byte(fmt.Sprintf("* %s hits %s\n", what, lang.Enumerator{}.Do(names...))))
	return nil
}

func (srv *Server) Emote(ctx context.Context, client string, emote string) error {
	s, err := srv.session(client)
	if err != nil {
		return err
	}
	srv.board.Broadcast([]byte(fmt.Sprintf("* %s %s\n", s.name, emote)))
	return nil
}

func (srv *Server) Refresh(ctx context.Context, client string) error {
	s, err := srv.session(client)
	if err != nil {
		return err
	}
	return s.refresh(ctx)
}
