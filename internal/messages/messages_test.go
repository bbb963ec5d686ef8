package messages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGet_SubstitutesPlaceholders(t *testing.T) {
	c := Defaults()
	got := c.Get("register.success", "player", "Steve", "qq", "20001")
	if !strings.Contains(got, "Steve") || !strings.Contains(got, "20001") {
		t.Fatalf("got %q", got)
	}
}

func TestGet_MissingKeyRendersKey(t *testing.T) {
	c := Defaults()
	if got := c.Get("no.such.key"); got != "no.such.key" {
		t.Fatalf("got %q", got)
	}
}

func TestLoad_FileOverridesKeyByKey(t *testing.T) {
	p := filepath.Join(t.TempDir(), "messages.yaml")
	err := os.WriteFile(p, []byte(`
templates:
  bind.success: "custom {player}"
help:
  header: "commands:"
`), 0o644)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.Get("bind.success", "player", "Steve"); got != "custom Steve" {
		t.Fatalf("got %q", got)
	}
	// Untouched keys keep their defaults.
	if got := c.Get("bind.invalid_code"); got == "bind.invalid_code" {
		t.Fatal("default lost")
	}
	if !strings.HasPrefix(c.HelpText(), "commands:") {
		t.Fatalf("help = %q", c.HelpText())
	}
}

func TestHelpText_JoinsHeaderAndLines(t *testing.T) {
	c := Defaults()
	lines := strings.Split(c.HelpText(), "\n")
	if len(lines) != len(c.Help.Lines)+1 {
		t.Fatalf("got %d lines", len(lines))
	}
}
