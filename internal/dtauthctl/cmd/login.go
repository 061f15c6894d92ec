package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthctl/config"
)

func newLoginCmd() *cobra.Command {
	var deviceName string
	var deviceType string
	var deviceID string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate this machine via the device flow",
		Long: `login starts a device authorization flow, prints the user code and
verification URL, then polls until the device is approved. The resulting
session token is stored in the current context.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}

			if deviceName == "" {
				host, err := os.Hostname()
				if err != nil {
					host = "unknown-host"
				}
				deviceName = "dtauthctl on " + host
			}

			initiated, err := c.InitiateDeviceAuth(cmd.Context(), deviceName, deviceType, deviceID)
			if err != nil {
				return fmt.Errorf("error starting device flow: %w", err)
			}

			fmt.Printf("To authorize this device, visit:\n\n  %s\n\nand enter code: %s\n\n", initiated.VerificationURI, initiated.UserCode)
			fmt.Println("Waiting for approval...")

			token, err := c.WaitForApproval(cmd.Context(), initiated.DeviceCode, initiated.PollInterval)
			if err != nil {
				return fmt.Errorf("device approval failed: %w", err)
			}

			context, err := cfg.GetCurrentContext()
			if err != nil {
				context = &config.Context{Server: "http://localhost:8080"}
				cfg.AddContext("default", context)
				cfg.CurrentContext = "default"
			}
			context.Token = token

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("error saving session token: %w", err)
			}

			fmt.Println("Device authorized. Session token saved.")
			return nil
		},
	}

	cmd.Flags().StringVar(&deviceName, "device-name", "", "Device name shown during approval")
	cmd.Flags().StringVar(&deviceType, "device-type", "cli", "Device type label")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "Stable device identifier")

	return cmd
}
