package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "fleetd" {
		t.Errorf("Expected Use to be 'fleetd', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}

	testCmd.SetVersionTemplate(`{{printf "fleetd version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)

	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	output := buf.String()
	expected := "fleetd version 1.0.0\n"
	if output != expected {
		t.Errorf("Expected version output %q, got %q", expected, output)
	}
}

func TestSubcommands(t *testing.T) {
	commands := rootCmd.Commands()

	expectedCommands := []string{"version", "serve", "deploy", "components", "status"}
	foundCommands := make(map[string]bool)

	for _, cmd := range commands {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestSocketPathDefaultsUnderRoot(t *testing.T) {
	originalRoot, originalSocket := rootDir, clientSocketPath
	defer func() { rootDir, clientSocketPath = originalRoot, originalSocket }()

	rootDir = "/tmp/fleetd-test-root"
	clientSocketPath = ""

	got := socketPath()
	if !strings.HasPrefix(got, rootDir) {
		t.Errorf("expected socket path under root dir %s, got %s", rootDir, got)
	}
}

func TestSocketPathHonorsOverride(t *testing.T) {
	originalRoot, originalSocket := rootDir, clientSocketPath
	defer func() { rootDir, clientSocketPath = originalRoot, originalSocket }()

	rootDir = "/tmp/fleetd-test-root"
	clientSocketPath = "/tmp/custom.sock"

	if got := socketPath(); got != "/tmp/custom.sock" {
		t.Errorf("expected override to win, got %s", got)
	}
}
