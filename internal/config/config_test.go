package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "authgate.yaml")
	err := os.WriteFile(p, []byte(`
onebot:
  addr: ":9000"
  token: secret
  allowed_groups: [10001, 10002]
  allow_private: false
binding:
  max_accounts_per_qq: 3
  max_bots_per_player: -1
  code_length: 4
  binding_groups: [10001]
guest_mode:
  restricted_actions: [chat]
whitelist: [Admin]
`), 0o644)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OneBot.Addr != ":9000" || cfg.OneBot.Token != "secret" {
		t.Fatalf("onebot: %+v", cfg.OneBot)
	}
	if cfg.OneBot.Path != "/onebot/v11/ws" {
		t.Fatalf("default path lost: %q", cfg.OneBot.Path)
	}
	if cfg.Binding.MaxAccountsPerQQ != 3 || cfg.Binding.MaxBotsPerPlayer != -1 {
		t.Fatalf("binding: %+v", cfg.Binding)
	}
	if cfg.Binding.CodeLength != 4 {
		t.Fatalf("code length: %d", cfg.Binding.CodeLength)
	}
	if len(cfg.GuestMode.RestrictedActions) != 1 {
		t.Fatalf("guest mode: %+v", cfg.GuestMode)
	}
	if len(cfg.Whitelist) != 1 || cfg.Whitelist[0] != "Admin" {
		t.Fatalf("whitelist: %v", cfg.Whitelist)
	}
}

func TestLoad_ClampsBadValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "authgate.yaml")
	err := os.WriteFile(p, []byte(`
onebot:
  log_level: 9
binding:
  code_length: 99
  code_expiration_sec: -5
  max_accounts_per_qq: 0
`), 0o644)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OneBot.LogLevel != LogCommands {
		t.Fatalf("log level: %d", cfg.OneBot.LogLevel)
	}
	if cfg.Binding.CodeLength != 6 || cfg.Binding.CodeExpirationSec != 300 {
		t.Fatalf("binding: %+v", cfg.Binding)
	}
	if cfg.Binding.MaxAccountsPerQQ != 1 {
		t.Fatalf("max accounts: %d", cfg.Binding.MaxAccountsPerQQ)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err = %v", err)
	}
	if cfg.OneBot.Path != "/onebot/v11/ws" {
		t.Fatalf("defaults not returned: %+v", cfg)
	}
}

func TestRosterGroups_FallsBackToAllowedGroups(t *testing.T) {
	cfg := Defaults()
	cfg.OneBot.AllowedGroups = []int64{1, 2}
	if got := cfg.RosterGroups(); len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	cfg.Binding.BindingGroups = []int64{3}
	if got := cfg.RosterGroups(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestGroupAllowed(t *testing.T) {
	cfg := Defaults()
	if !cfg.GroupAllowed(42) {
		t.Fatal("empty allow-list must allow everything")
	}
	cfg.OneBot.AllowedGroups = []int64{10001}
	if !cfg.GroupAllowed(10001) || cfg.GroupAllowed(42) {
		t.Fatal("allow-list not enforced")
	}
}
