package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Log levels for the OneBot server.
const (
	LogCommands = 1 // only command execution
	LogAll      = 2 // everything (connections, raw frames)
	LogNone     = 3 // silent
)

type Config struct {
	Server    Server    `yaml:"server"`
	OneBot    OneBot    `yaml:"onebot"`
	Binding   Binding   `yaml:"binding"`
	GuestMode GuestMode `yaml:"guest_mode"`
	Whitelist []string  `yaml:"whitelist"`
}

// Server configures the REST collaborator endpoints.
type Server struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Token   string `yaml:"token"`
}

type OneBot struct {
	Addr          string  `yaml:"addr"`
	Path          string  `yaml:"path"`
	Token         string  `yaml:"token"` // empty means no handshake auth
	LogLevel      int     `yaml:"log_level"`
	AllowedGroups []int64 `yaml:"allowed_groups"`
	AllowPrivate  bool    `yaml:"allow_private"`
}

type Binding struct {
	MaxAccountsPerQQ  int     `yaml:"max_accounts_per_qq"`
	MaxBotsPerPlayer  int     `yaml:"max_bots_per_player"` // 0 disabled, <0 unlimited
	CodeLength        int     `yaml:"code_length"`
	CodeExpirationSec int     `yaml:"code_expiration_sec"`
	BotNamePrefix     string  `yaml:"bot_name_prefix"`
	ForceGroupBinding bool    `yaml:"force_group_binding"`
	BindingGroups     []int64 `yaml:"binding_groups"`
}

type GuestMode struct {
	RestrictedActions []string `yaml:"restricted_actions"`
	AllowedCommands   []string `yaml:"allowed_commands"`
}

func Defaults() Config {
	return Config{
		Server: Server{
			Enabled: true,
			Addr:    ":8081",
			Token:   "changeme",
		},
		OneBot: OneBot{
			Addr:         ":8080",
			Path:         "/onebot/v11/ws",
			LogLevel:     LogCommands,
			AllowPrivate: true,
		},
		Binding: Binding{
			MaxAccountsPerQQ:  1,
			MaxBotsPerPlayer:  0,
			CodeLength:        6,
			CodeExpirationSec: 300,
		},
		GuestMode: GuestMode{
			RestrictedActions: []string{"chat", "command"},
			AllowedCommands:   []string{"/bind", "/绑定", "/help", "/帮助"},
		},
	}
}

func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	c.normalize()
	return c, nil
}

func (c *Config) normalize() {
	if c.OneBot.Path == "" {
		c.OneBot.Path = "/onebot/v11/ws"
	}
	if c.OneBot.LogLevel < LogCommands || c.OneBot.LogLevel > LogNone {
		c.OneBot.LogLevel = LogCommands
	}
	if c.Binding.CodeLength < 4 || c.Binding.CodeLength > 8 {
		c.Binding.CodeLength = 6
	}
	if c.Binding.CodeExpirationSec <= 0 {
		c.Binding.CodeExpirationSec = 300
	}
	if c.Binding.MaxAccountsPerQQ <= 0 {
		c.Binding.MaxAccountsPerQQ = 1
	}
}

// RosterGroups returns the groups whose membership is mirrored: the explicit
// binding_groups list, falling back to the message allow-list.
func (c Config) RosterGroups() []int64 {
	if len(c.Binding.BindingGroups) > 0 {
		return c.Binding.BindingGroups
	}
	return c.OneBot.AllowedGroups
}

// GroupAllowed reports whether messages from a group are processed at all.
// An empty allow-list allows every group.
func (c Config) GroupAllowed(groupID int64) bool {
	if len(c.OneBot.AllowedGroups) == 0 {
		return true
	}
	for _, g := range c.OneBot.AllowedGroups {
		if g == groupID {
			return true
		}
	}
	return false
}
