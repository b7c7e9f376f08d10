package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"fleetd/internal/client"
	"fleetd/internal/deployment"
	"fleetd/internal/lifecycle"
)

var (
	deployFile         string
	deployWait         bool
	deployWatch        bool
	deployPollInterval time.Duration
	deployWaitTimeout  time.Duration
)

// deployCmd submits a deployment document via the local IPC surface (the
// CLI producer of §4.5) and optionally waits for a terminal result.
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Submit a deployment document to the running supervisor",
	Args:  cobra.NoArgs,
	RunE:  runDeploy,
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if deployFile == "" {
		return fmt.Errorf("--file is required")
	}

	if deployWatch {
		return watchAndDeploy(cmd)
	}
	return submitOnce(cmd)
}

func submitOnce(cmd *cobra.Command) error {
	doc, err := loadDeploymentDocument(deployFile)
	if err != nil {
		return err
	}

	c, err := client.Dial(socketPath())
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.CreateLocalDeployment(doc)
	if err != nil {
		return fmt.Errorf("submitting deployment: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deployment %s submitted for group %s\n", id, doc.GroupName)

	if !deployWait {
		return nil
	}

	out := cmd.OutOrStdout()
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = out
	s.Suffix = fmt.Sprintf(" waiting for deployment %s...", id)
	s.Start()
	result, err := c.AwaitDeployment(id, deployPollInterval, deployWaitTimeout)
	s.Stop()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deployment %s finished: %s\n", id, result.Status)
	if result.Err != nil {
		return fmt.Errorf("deployment %s: %s: %w", id, result.Status, result.Err)
	}
	return nil
}

// watchAndDeploy resubmits deployFile every time it changes on disk,
// convenient for iterating on a deployment document locally.
func watchAndDeploy(cmd *cobra.Command) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(deployFile); err != nil {
		return fmt.Errorf("watching %s: %w", deployFile, err)
	}

	out := cmd.OutOrStdout()
	if err := submitOnce(cmd); err != nil {
		fmt.Fprintf(out, "initial submission failed: %v\n", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Fprintf(out, "%s changed, resubmitting\n", deployFile)
			if err := submitOnce(cmd); err != nil {
				fmt.Fprintf(out, "resubmission failed: %v\n", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "watch error: %v\n", err)
		}
	}
}

func loadDeploymentDocument(path string) (deployment.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return deployment.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc deployment.Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return deployment.Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.FailureHandlingPolicy == "" {
		doc.FailureHandlingPolicy = lifecycle.PolicyRollback
	}
	return doc, nil
}

func init() {
	deployCmd.Flags().StringVarP(&deployFile, "file", "f", "", "path to a deployment document (YAML or JSON)")
	deployCmd.Flags().BoolVar(&deployWait, "wait", false, "wait for the deployment to reach a terminal status")
	deployCmd.Flags().BoolVar(&deployWatch, "watch", false, "resubmit the deployment document whenever it changes on disk")
	deployCmd.Flags().DurationVar(&deployPollInterval, "poll-interval", time.Second, "status poll interval when --wait is set")
	deployCmd.Flags().DurationVar(&deployWaitTimeout, "wait-timeout", 10*time.Minute, "maximum time to wait when --wait is set")
}
