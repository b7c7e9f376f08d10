package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	if versionCmd.Use != "version" {
		t.Errorf("Expected Use to be 'version', got %s", versionCmd.Use)
	}

	if versionCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if versionCmd.Run == nil {
		t.Error("Expected Run function to be set")
	}
}

func TestVersionCommandExecutionReportsCLIVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	originalSocket := clientSocketPath
	defer func() {
		rootCmd.Version = originalVersion
		clientSocketPath = originalSocket
	}()
	rootCmd.Version = "1.2.3-test"
	clientSocketPath = "/tmp/fleetd-version-test-does-not-exist.sock"

	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)

	versionCmd.Run(versionCmd, []string{})

	output := buf.String()
	if !strings.Contains(output, "fleetd version 1.2.3-test") {
		t.Errorf("expected CLI version line, got %q", output)
	}
	if !strings.Contains(output, "supervisor: not running") {
		t.Errorf("expected unreachable supervisor to be reported, got %q", output)
	}
}
