package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sessioncast/sessioncast-cli/internal/api"
	"github.com/sessioncast/sessioncast-cli/internal/config"
)

// SessionsCommand lists the live sessions the relay knows for this machine.
func SessionsCommand(cfg *config.Config) error {
	client, err := authedClient(cfg)
	if err != nil {
		return err
	}

	sessions, err := client.ListSessions(context.Background(), cfg.MachineID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No live sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tID")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\n", s.Name, s.SessionID)
	}
	return w.Flush()
}

// SendKeysCommand injects a one-off keystroke sequence into a remote
// session through the relay API.
func SendKeysCommand(cfg *config.Config, sessionID, keys string, enter bool) error {
	if sessionID == "" || keys == "" {
		return fmt.Errorf("usage: sessioncast send-keys <session-id> <keys>")
	}

	client, err := authedClient(cfg)
	if err != nil {
		return err
	}
	if err := client.SendKeys(context.Background(), sessionID, keys, enter); err != nil {
		return err
	}
	fmt.Printf("Keys sent to %s\n", sessionID)
	return nil
}

func authedClient(cfg *config.Config) (*api.Client, error) {
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("not authenticated; run `sessioncast auth` first")
	}
	if CheckTokenFreshness(cfg.AuthToken) == TokenExpired {
		return nil, fmt.Errorf("access token is expired; run `sessioncast auth` again")
	}
	return api.New(cfg.APIURL, cfg.AuthToken), nil
}
