package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fleetd/internal/client"
	fstrings "fleetd/pkg/strings"
)

// componentsCmd groups the local-IPC component inspection and control
// subcommands: list, get, restart, stop.
var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "Inspect and control components running under the local supervisor",
}

var componentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every component in the running topology",
	Args:  cobra.NoArgs,
	RunE:  runComponentsList,
}

var componentsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show details for one component",
	Args:  cobra.ExactArgs(1),
	RunE:  runComponentsGet,
}

var componentsRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a component's run stage without a new deployment",
	Args:  cobra.ExactArgs(1),
	RunE:  runComponentsRestart,
}

var componentsStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a component's run stage",
	Args:  cobra.ExactArgs(1),
	RunE:  runComponentsStop,
}

func runComponentsList(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	list, err := c.ListComponents()
	if err != nil {
		return fmt.Errorf("listing components: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "VERSION", "STATE"})
	for _, comp := range list {
		t.AppendRow(table.Row{comp.Name, comp.Version, comp.State})
	}
	t.Render()
	return nil
}

func runComponentsGet(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	details, err := c.GetComponentDetails(args[0])
	if err != nil {
		return fmt.Errorf("getting component %s: %w", args[0], err)
	}
	if details.LastError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "last error: %s\n", fstrings.TruncateDescription(details.LastError, 120))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(details)
}

func runComponentsRestart(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.RestartComponent(args[0]); err != nil {
		return fmt.Errorf("restarting %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restarted %s\n", args[0])
	return nil
}

func runComponentsStop(cmd *cobra.Command, args []string) error {
	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.StopComponent(args[0]); err != nil {
		return fmt.Errorf("stopping %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
	return nil
}

func init() {
	componentsCmd.AddCommand(componentsListCmd)
	componentsCmd.AddCommand(componentsGetCmd)
	componentsCmd.AddCommand(componentsRestartCmd)
	componentsCmd.AddCommand(componentsStopCmd)
}
