package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fleetd/internal/client"
)

// statusCmd prints the running topology (each component's version and
// current state) followed by the known local deployments and their status.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current running topology and recent deployments",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	components, err := c.ListComponents()
	if err != nil {
		return fmt.Errorf("listing components: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Components:")
	ct := table.NewWriter()
	ct.SetOutputMirror(out)
	ct.SetStyle(table.StyleRounded)
	ct.AppendHeader(table.Row{"NAME", "VERSION", "STATE"})
	for _, comp := range components {
		ct.AppendRow(table.Row{comp.Name, comp.Version, comp.State})
	}
	ct.Render()

	deployments, err := c.ListLocalDeployments()
	if err != nil {
		return fmt.Errorf("listing deployments: %w", err)
	}
	fmt.Fprintln(out, "\nDeployments:")
	dt := table.NewWriter()
	dt.SetOutputMirror(out)
	dt.SetStyle(table.StyleRounded)
	dt.AppendHeader(table.Row{"ID", "GROUP", "STATUS"})
	for _, d := range deployments {
		dt.AppendRow(table.Row{d.DeploymentID, d.GroupName, d.Status})
	}
	dt.Render()
	return nil
}
