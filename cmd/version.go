package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetd/internal/client"
)

// newVersionCmd creates the Cobra command for displaying the application
// version. It also reports whether a local supervisor is reachable, the
// fleetd analogue of the teacher's MCP-handshake server-version check.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fleetd CLI version and supervisor reachability",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fleetd version %s\n", rootCmd.Version)

			c, err := client.Dial(socketPath())
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "supervisor: not running (%s)\n", socketPath())
				return
			}
			defer c.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "supervisor: running (%s)\n", socketPath())
		},
	}
}
