package onebot

import (
	"regexp"
	"strconv"
	"strings"
)

// Command is a parsed chat instruction. The router only recognizes syntax;
// permission and state checks belong to the handler.
type Command interface{ commandName() string }

// RegisterCmd is an admin binding a player on someone's behalf:
// 登记 <QQ|@mention> <player>.
type RegisterCmd struct {
	TargetQQ  int64
	HasTarget bool // false when the target token is neither digits nor a mention
	Player    string
}

// BindCodeCmd is a player redeeming a verification code: 绑定<digits>.
type BindCodeCmd struct{ Code string }

// BotBindCmd creates a derived identity: /绑定假人 <name>.
type BotBindCmd struct{ Name string }

// BotUnbindCmd removes a derived identity: /解绑假人 <name>.
type BotUnbindCmd struct{ Name string }

// BotListCmd lists the sender's derived identities: /假人列表.
type BotListCmd struct{}

// HelpCmd prints the command summary: /帮助 or /help.
type HelpCmd struct{}

func (RegisterCmd) commandName() string  { return "register" }
func (BindCodeCmd) commandName() string  { return "bind" }
func (BotBindCmd) commandName() string   { return "bot-bind" }
func (BotUnbindCmd) commandName() string { return "bot-unbind" }
func (BotListCmd) commandName() string   { return "bot-list" }
func (HelpCmd) commandName() string      { return "help" }

var (
	bindCodeRe    = regexp.MustCompile(`^绑定\s*([0-9]+)$`)
	trailingPunct = regexp.MustCompile(`[。．.！!？?]+$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Normalize prepares free text for matching: trim, collapse internal
// whitespace runs, strip a trailing run of sentence punctuation. IME clients
// routinely append 。 or ！ to commands.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = trailingPunct.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

type rule struct {
	name  string
	match func(text string, fields []string, mention int64, hasMention bool) (Command, bool)
}

// Rules are ordered: first match wins.
var rules = []rule{
	{"register", func(_ string, f []string, mention int64, hasMention bool) (Command, bool) {
		if len(f) < 2 || f[0] != "登记" {
			return nil, false
		}
		// The mention form arrives as two fields: the at-segment renders
		// as no text, so the target rides out of band. The last field is
		// always the player name.
		cmd := RegisterCmd{Player: f[len(f)-1]}
		if len(f) >= 3 {
			if qq, err := strconv.ParseInt(f[1], 10, 64); err == nil && qq > 0 {
				cmd.TargetQQ, cmd.HasTarget = qq, true
			}
		}
		if !cmd.HasTarget && hasMention {
			cmd.TargetQQ, cmd.HasTarget = mention, true
		}
		return cmd, true
	}},
	{"bind", func(text string, _ []string, _ int64, _ bool) (Command, bool) {
		m := bindCodeRe.FindStringSubmatch(text)
		if m == nil {
			return nil, false
		}
		return BindCodeCmd{Code: m[1]}, true
	}},
	{"bot-bind", func(_ string, f []string, _ int64, _ bool) (Command, bool) {
		if len(f) != 2 || f[0] != "/绑定假人" {
			return nil, false
		}
		return BotBindCmd{Name: f[1]}, true
	}},
	{"bot-unbind", func(_ string, f []string, _ int64, _ bool) (Command, bool) {
		if len(f) != 2 || f[0] != "/解绑假人" {
			return nil, false
		}
		return BotUnbindCmd{Name: f[1]}, true
	}},
	{"bot-list", func(text string, _ []string, _ int64, _ bool) (Command, bool) {
		if text != "/假人列表" {
			return nil, false
		}
		return BotListCmd{}, true
	}},
	{"help", func(text string, _ []string, _ int64, _ bool) (Command, bool) {
		if text != "/帮助" && !strings.EqualFold(text, "/help") {
			return nil, false
		}
		return HelpCmd{}, true
	}},
}

// Parse matches normalized text against the rule table. The mention, if any,
// comes from the message's segment array and substitutes for a digit target
// in 登记.
func Parse(text string, mention int64, hasMention bool) (Command, bool) {
	text = Normalize(text)
	if text == "" {
		return nil, false
	}
	fields := strings.Fields(text)
	for _, r := range rules {
		if cmd, ok := r.match(text, fields, mention, hasMention); ok {
			return cmd, true
		}
	}
	return nil, false
}

// LooksLikeCommand reports whether unmatched text was probably an attempted
// command, so misses get logged instead of silently dropped.
func LooksLikeCommand(text string) bool {
	text = Normalize(text)
	return strings.HasPrefix(text, "绑定") ||
		strings.HasPrefix(text, "登记") ||
		strings.HasPrefix(text, "/")
}
