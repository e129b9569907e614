package server

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/bsoera/econ"
	"github.com/bsoera/econ/game"
	"github.com/pkg/errors"
)

// controlHandler runs one control socket command and writes any output lines to w.
type controlHandler func(ctx context.Context, s *Server, w *bufio.Writer, args []string) error

type controlCommand struct {
	handler controlHandler
	help    string
}

var controlCommands = map[string]controlCommand{
	"CHAOS":       {handler: controlChaos, help: "CHAOS on|off: allow wheel spins and powerups"},
	"NEGATIVE":    {handler: controlNegative, help: "NEGATIVE on|off: allow balances below zero"},
	"RELOAD_LANG": {handler: controlReloadLang, help: "RELOAD_LANG: drop cached message templates"},
	"WHO":         {handler: controlWho, help: "WHO: list connected clients"},
	"AWARD":       {handler: controlAward, help: "AWARD <client> <points>: credit session points"},
	"AWARD_FFA":   {handler: controlAwardFFA, help: "AWARD_FFA <client>...: credit free-for-all winners, best first"},
	"AWARD_TEAM":  {handler: controlAwardTeam, help: "AWARD_TEAM <client,...> <client,...>: credit the winning team over the losing team"},
}

// serveControl answers line based admin commands on l with "OK" or "ERROR: <message>".
func (s *Server) serveControl(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return econ.WithStack(err)
		}
		go func() {
			defer conn.Close()
			if err := s.handleControl(ctx, conn); err != nil {
				log.Printf("control connection: %v", err)
			}
		}()
	}
}

func (s *Server) handleControl(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return econ.WithStack(err)
	}
	w := bufio.NewWriter(conn)
	if err := s.runControl(ctx, w, strings.Fields(line)); err != nil {
		fmt.Fprintf(w, "ERROR: %v\n", err)
	} else {
		fmt.Fprintln(w, "OK")
	}
	return econ.WithStack(w.Flush())
}

func (s *Server) runControl(ctx context.Context, w *bufio.Writer, words []string) error {
	if len(words) == 0 {
		return errors.New("empty command")
	}
	if words[0] == "HELP" {
		names := slices.Sorted(maps.Keys(controlCommands))
		for _, name := range names {
			fmt.Fprintln(w, controlCommands[name].help)
		}
		return nil
	}
	cmd, found := controlCommands[words[0]]
	if !found {
		return errors.Errorf("unknown command %q", words[0])
	}
	return cmd.handler(ctx, s, w, words[1:])
}

func parseSwitch(args []string) (bool, error) {
	if len(args) != 1 {
		return false, errors.New("expected on or off")
	}
	switch args[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, errors.Errorf("expected on or off, got %q", args[0])
}

func controlChaos(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	on, err := parseSwitch(args)
	if err != nil {
		return err
	}
	s.settings.SetAllowChaotic(on)
	return s.saveSettings(ctx)
}

func controlNegative(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	on, err := parseSwitch(args)
	if err != nil {
		return err
	}
	s.settings.SetNegativeScores(on)
	return s.saveSettings(ctx)
}

func controlReloadLang(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	s.catalog.Purge()
	return nil
}

func controlWho(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	for _, t := range s.board.Roster() {
		fmt.Fprintf(w, "%s %s %s\n", t.Client, t.Account, t.Name)
	}
	return nil
}

func (s *Server) targets(clients []string) ([]game.Target, error) {
	result := make([]game.Target, 0, len(clients))
	for _, client := range clients {
		sess, err := s.session(client)
		if err != nil {
			return nil, err
		}
		result = append(result, sess.Target())
	}
	return result, nil
}

func controlAward(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("expected client and points")
	}
	points, err := strconv.Atoi(args[1])
	if err != nil {
		return econ.WithStack(err)
	}
	targets, err := s.targets(args[:1])
	if err != nil {
		return err
	}
	return s.dispatcher.Award(ctx, []game.Placement{{Client: targets[0].Client, Account: targets[0].Account, Points: points}})
}

func controlAwardFFA(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	winners, err := s.targets(args)
	if err != nil {
		return err
	}
	return s.dispatcher.AwardFFA(ctx, winners)
}

func controlAwardTeam(ctx context.Context, s *Server, w *bufio.Writer, args []string) error {
	if len(args) != 2 {
		return errors.New("expected winning and losing clients")
	}
	winners, err := s.targets(strings.Split(args[0], ","))
	if err != nil {
		return err
	}
	losers, err := s.targets(strings.Split(args[1], ","))
	if err != nil {
		return err
	}
	return s.dispatcher.AwardTeam(ctx, winners, losers)
}
