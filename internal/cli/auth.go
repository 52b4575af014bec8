package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/sessioncast/sessioncast-cli/internal/api"
	"github.com/sessioncast/sessioncast-cli/internal/config"
	"github.com/sessioncast/sessioncast-cli/internal/storage"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

const (
	// pairingPollInterval is how often we ask whether the user approved.
	pairingPollInterval = 2 * time.Second
	// pairingTimeout bounds the whole approval wait.
	pairingTimeout = 5 * time.Minute
)

// AuthCommand runs the pairing flow: register a pairing request at the
// relay API, show the approval URL as a terminal QR code, poll until the
// user approves from another device, then persist the issued token.
func AuthCommand(cfg *config.Config) error {
	client := api.New(cfg.APIURL, "")

	hostname, _ := os.Hostname()
	pairing, err := client.StartPairing(context.Background(), api.PairingRequest{
		MachineID: cfg.MachineID,
		Label:     hostname,
	})
	if err != nil {
		return err
	}

	fmt.Println("Scan this QR code with the sessioncast app to link this machine:")
	printQRCode(pairing.URL)
	fmt.Printf("Or open this URL on another device:\n  %s\n\n", pairing.URL)
	fmt.Println("Waiting for approval...")

	token, err := waitForPairing(client, pairing.ID)
	if err != nil {
		return err
	}

	if err := storage.SaveToken(cfg.AccessKeyPath, token); err != nil {
		return err
	}
	fmt.Printf("Linked. Token saved to %s\n", cfg.AccessKeyPath)
	return nil
}

func waitForPairing(client *api.Client, id string) (string, error) {
	deadline := time.After(pairingTimeout)
	ticker := time.NewTicker(pairingPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return "", fmt.Errorf("pairing timed out after %s", pairingTimeout)
		case <-ticker.C:
			status, err := client.PollPairing(context.Background(), id)
			if err != nil {
				logger.Debugf("pairing poll: %v", err)
				continue
			}
			if status.Status != "authorized" {
				continue
			}
			if status.Token == "" {
				return "", fmt.Errorf("pairing authorized but no token returned")
			}
			return status.Token, nil
		}
	}
}

func printQRCode(data string) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		logger.Warnf("failed to render QR code: %v", err)
		return
	}
	fmt.Println(qr.ToSmallString(false))
}
