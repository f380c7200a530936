package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd == nil {
		t.Fatal("Root command should not be nil")
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "yarascope") {
		t.Errorf("Help text should contain 'yarascope', got: %s", output)
	}
	if !strings.Contains(output, "YARA") {
		t.Errorf("Help text should mention YARA, got: %s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "yarascope" {
		t.Errorf("Expected Use to be 'yarascope', got '%s'", cmd.Use)
	}

	wanted := map[string]bool{"scan": false, "rules": false, "history": false}
	for _, sub := range cmd.Commands() {
		name := strings.Fields(sub.Use)[0]
		if _, ok := wanted[name]; ok {
			wanted[name] = true
		}
	}
	for name, found := range wanted {
		if !found {
			t.Errorf("Expected subcommand %q to be registered", name)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	cmd := NewRootCommand()

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(buf.String(), "version") {
		t.Errorf("Version output should contain 'version', got: %s", buf.String())
	}
}
