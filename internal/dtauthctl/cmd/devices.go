package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Manage authorized devices",
	}

	cmd.AddCommand(newDevicesListCmd())
	cmd.AddCommand(newDevicesRevokeCmd())
	cmd.AddCommand(newDevicesConfirmCmd())

	return cmd
}

func newDevicesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your authorized devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}

			devices, err := c.ListDevices(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing devices: %w", err)
			}

			if len(devices) == 0 {
				fmt.Println("No authorized devices.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCREATED\tLAST SEEN")
			for _, d := range devices {
				lastSeen := "-"
				if d.LastSeenAt != nil {
					lastSeen = d.LastSeenAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.ID,
					d.DeviceName,
					d.DeviceType,
					d.CreatedAt.Format("2006-01-02 15:04"),
					lastSeen,
				)
			}
			return w.Flush()
		},
	}
}

func newDevicesRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <device-id>",
		Short: "Revoke an authorized device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}

			if err := c.RevokeDevice(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("error revoking device: %w", err)
			}

			fmt.Printf("Device %s revoked.\n", args[0])
			return nil
		},
	}
}

func newDevicesConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <device-code>",
		Short: "Approve a pending device authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}

			device, err := c.ConfirmDevice(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("error confirming device: %w", err)
			}

			fmt.Printf("Device %q approved.\n", device.DeviceName)
			return nil
		},
	}
}
