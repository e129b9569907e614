// econ-admin administers economy servers. Live commands go through the
// server's control socket; the rest work directly on the data tree.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bsoera/econ/server"
)

// liveCommands maps admin subcommands to control socket commands.
var liveCommands = map[string]string{
	"chaos":       "CHAOS",
	"negative":    "NEGATIVE",
	"reload-lang": "RELOAD_LANG",
	"who":         "WHO",
	"award":       "AWARD",
	"award-ffa":   "AWARD_FFA",
	"award-team":  "AWARD_TEAM",
	"help":        "HELP",
}

type offlineCommand func(ctx context.Context, config server.Config, args []string) error

var offlineCommands = map[string]offlineCommand{
	"backup":  backup,
	"restore": restore,
	"check":   check,
	"tops":    tops,
	"leagues": leagues,
	"ledger":  ledgerReport,
	"console": console,
}

func main() {
	config := server.DefaultConfig()

	configFile := flag.String("config", "", "YAML file with server settings, overridden by flags.")
	flag.StringVar(&config.Dir, "dir", config.Dir, "Server directory holding the ledger, logs and the control socket.")
	flag.StringVar(&config.DataRoot, "data", config.DataRoot, "Root of the JSON document tree.")
	flag.StringVar(&config.SuperDir, "super", config.SuperDir, "Per-instance directory below <data>/superdata.")
	flag.StringVar(&config.ControlSocket, "socket", config.ControlSocket, "Control socket, defaults to <dir>/control.sock.")
	flag.StringVar(&config.LedgerPath, "ledger", config.LedgerPath, "SQLite points ledger, defaults to <dir>/ledger.sqlite.")
	flag.StringVar(&config.AuditFile, "audit", config.AuditFile, "Audit log file, defaults to <dir>/audit.log.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Live commands (need a running server):\n")
		fmt.Fprintf(os.Stderr, "  chaos on|off                    Allow wheel spins and powerups\n")
		fmt.Fprintf(os.Stderr, "  negative on|off                 Allow balances below zero\n")
		fmt.Fprintf(os.Stderr, "  reload-lang                     Drop cached message templates\n")
		fmt.Fprintf(os.Stderr, "  who                             List connected clients\n")
		fmt.Fprintf(os.Stderr, "  award <client> <points>         Credit session points\n")
		fmt.Fprintf(os.Stderr, "  award-ffa <client>...           Credit free-for-all winners, best first\n")
		fmt.Fprintf(os.Stderr, "  award-team <c,c,...> <c,c,...>  Credit the winners over the losers\n")
		fmt.Fprintf(os.Stderr, "  help                            List the server's control commands\n")
		fmt.Fprintf(os.Stderr, "\nData commands:\n")
		fmt.Fprintf(os.Stderr, "  backup <file>                   Write a compressed bundle of every document\n")
		fmt.Fprintf(os.Stderr, "  restore <file>                  Validate and restore a bundle\n")
		fmt.Fprintf(os.Stderr, "  check                           Validate every document\n")
		fmt.Fprintf(os.Stderr, "  tops                            Show the top players window\n")
		fmt.Fprintf(os.Stderr, "  leagues                         Show the league ladder\n")
		fmt.Fprintf(os.Stderr, "  ledger [account]                Show point totals, or the history of account\n")
		fmt.Fprintf(os.Stderr, "  console                         Run chat commands from stdin, with the server stopped\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *configFile != "" {
		if err := config.LoadFile(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		flag.Parse()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if live, found := liveCommands[args[0]]; found {
		err = printControl(config.SocketPath(), append([]string{live}, args[1:]...))
	} else if offline, found := offlineCommands[args[0]]; found {
		err = offline(ctx, config, args[1:])
	} else {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printControl(socketPath string, words []string) error {
	lines, err := control(socketPath, strings.Join(words, " "))
	for _, line := range lines {
		fmt.Println(line)
	}
	return err
}

// control sends one command line and returns the output lines preceding "OK".
func control(socketPath string, line string) ([]string, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to control socket %s: %w", socketPath, err)
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	output := []string{}
	reader := bufio.NewReader(conn)
	for {
		response, err := reader.ReadString('\n')
		if err != nil {
			return output, fmt.Errorf("failed to read response: %w", err)
		}
		response = strings.TrimRight(response, "\n")
		if response == "OK" {
			return output, nil
		}
		if strings.HasPrefix(response, "ERROR:") {
			return output, fmt.Errorf("%s", strings.TrimSpace(strings.TrimPrefix(response, "ERROR:")))
		}
		output = append(output, response)
	}
}
