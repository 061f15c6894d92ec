package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired device authorization records",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getClient()
			if err != nil {
				return err
			}

			deleted, err := c.Cleanup(cmd.Context())
			if err != nil {
				return fmt.Errorf("error running cleanup: %w", err)
			}

			fmt.Printf("Deleted %d expired records.\n", deleted)
			return nil
		},
	}
}
