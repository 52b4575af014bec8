package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sessioncast/sessioncast-cli/internal/agent"
	"github.com/sessioncast/sessioncast-cli/internal/cli"
	"github.com/sessioncast/sessioncast-cli/internal/config"
	"github.com/sessioncast/sessioncast-cli/internal/tmux"
	"github.com/sessioncast/sessioncast-cli/internal/version"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.LogLevel != "" {
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	args, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}

	if len(args) > 0 {
		switch args[0] {
		case "auth":
			return cli.AuthCommand(cfg)
		case "sessions":
			return cli.SessionsCommand(cfg)
		case "send-keys":
			return sendKeysCommand(cfg, args[1:])
		case "agent":
			return agentCommand(cfg)
		case "help", "--help", "-h":
			printUsage()
			return nil
		case "version", "--version", "-v":
			fmt.Printf("sessioncast %s\n", version.Version)
			return nil
		default:
			printUsage()
			return fmt.Errorf("unknown command %q", args[0])
		}
	}

	return agentCommand(cfg)
}

func agentCommand(cfg *config.Config) error {
	t := tmux.New(cfg.TmuxBin)
	if !t.IsAvailable() {
		return fmt.Errorf("tmux not found; install tmux or set SESSIONCAST_TMUX_BIN")
	}
	if v, ok := t.Version(); ok {
		logger.Debugf("tmux version %s", v)
	}

	switch cli.CheckTokenFreshness(cfg.AuthToken) {
	case cli.TokenExpired:
		logger.Warnf("access token is expired; run `sessioncast auth` to re-pair")
	case cli.TokenExpiringSoon:
		logger.Warnf("access token expires soon; run `sessioncast auth` to refresh")
	}

	orch, err := agent.New(cfg, t)
	if err != nil {
		return err
	}

	logger.Infof("sessioncast agent %s starting (machine %s, relay %s)",
		version.Version, cfg.MachineID, cfg.RelayURL)
	orch.Start()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infof("received %s, shutting down", sig)
		orch.Stop()
		return nil
	case meta := <-orch.Fatal():
		orch.Stop()
		fmt.Fprint(os.Stderr, agent.FormatLimitNotice(meta))
		os.Exit(1)
		return nil
	}
}

func sendKeysCommand(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("send-keys", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	enter := fs.Bool("enter", false, "Press Enter after the keys")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) != 2 {
		return fmt.Errorf("usage: sessioncast send-keys [--enter] <session-id> <keys>")
	}
	return cli.SendKeysCommand(cfg, rest[0], rest[1], *enter)
}

func parseFlags(cfg *config.Config, args []string) ([]string, error) {
	fs := flag.NewFlagSet("sessioncast", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	relayURL := fs.String("relay-url", "", "Relay websocket URL")
	apiURL := fs.String("api-url", "", "Relay HTTP API URL")
	logLevel := fs.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *relayURL != "" {
		cfg.RelayURL = *relayURL
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}
	if *logLevel != "" {
		level, err := logger.ParseLevel(*logLevel)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}

	return fs.Args(), nil
}

func printUsage() {
	fmt.Println(`sessioncast - mirror local tmux sessions to the sessioncast relay

Usage:
  sessioncast                         Run the agent (default)
  sessioncast agent                   Run the agent
  sessioncast auth                    Pair this machine via QR code
  sessioncast sessions                List live sessions for this machine
  sessioncast send-keys <id> <keys>   Send keys to a remote session
  sessioncast version                 Show version information
  sessioncast help                    Show this help message

Environment Variables:
  SESSIONCAST_RELAY_URL   Relay websocket URL
  SESSIONCAST_API_URL     Relay HTTP API URL
  SESSIONCAST_HOME_DIR    Config directory (default: ~/.sessioncast)
  SESSIONCAST_MACHINE_ID  Override the stored machine id
  SESSIONCAST_TMUX_BIN    Path to the tmux executable
  SESSIONCAST_LOG_LEVEL   Log level (trace|debug|info|warn|error)
  SESSIONCAST_AUTH_TOKEN  Override the stored access token

Flags:
  --relay-url   Relay websocket URL
  --api-url     Relay HTTP API URL
  --log-level   Log level
  --enter       (send-keys) press Enter after the keys

Examples:
  # Pair this machine
  sessioncast auth

  # Run the agent against a local relay
  SESSIONCAST_RELAY_URL=ws://localhost:8080/v1/agent sessioncast`)
}
