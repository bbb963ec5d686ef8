// Package messages holds the user-facing text catalog. Wording lives in a yaml
// file so operators can reword replies without rebuilding; code refers to keys.
package messages

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Catalog struct {
	Templates map[string]string `yaml:"templates"`
	Help      Help              `yaml:"help"`
}

type Help struct {
	Header string   `yaml:"header"`
	Lines  []string `yaml:"lines"`
}

func Load(path string) (*Catalog, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	var file Catalog
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return c, err
	}
	// File entries override defaults key by key.
	for k, v := range file.Templates {
		c.Templates[k] = v
	}
	if file.Help.Header != "" {
		c.Help.Header = file.Help.Header
	}
	if len(file.Help.Lines) > 0 {
		c.Help.Lines = file.Help.Lines
	}
	return c, nil
}

// Get renders a template with {placeholder} substitution from alternating
// key/value pairs. A missing template key renders as the key itself so broken
// catalogs are visible instead of silent.
func (c *Catalog) Get(key string, kv ...string) string {
	t, ok := c.Templates[key]
	if !ok {
		t = key
	}
	for i := 0; i+1 < len(kv); i += 2 {
		t = strings.ReplaceAll(t, "{"+kv[i]+"}", kv[i+1])
	}
	return t
}

// HelpText renders the full help reply.
func (c *Catalog) HelpText() string {
	parts := append([]string{c.Help.Header}, c.Help.Lines...)
	return strings.Join(parts, "\n")
}

func Defaults() *Catalog {
	return &Catalog{
		Templates: map[string]string{
			"common.error": "处理命令时发生错误，请稍后重试",

			"register.no_permission":    "只有群管理员可以使用登记命令",
			"register.usage":            "用法：登记 <QQ号或@成员> <玩家名>",
			"register.target_not_found": "无法识别登记目标，请提供 QQ 号或 @ 目标成员",
			"register.player_not_found": "找不到玩家：{player}",
			"register.already_same":     "玩家 {player} 已登记到 QQ {qq}",
			"register.already_other":    "玩家 {player} 已绑定其他 QQ（{qq}），请先处理原绑定",
			"register.limit_reached":    "QQ {qq} 绑定数量已达上限（{max} 个账号）",
			"register.success":          "登记成功：{player} ↔ QQ {qq}",

			"bind.invalid_code":  "验证码无效或已过期，请进入服务器获取新验证码",
			"bind.already_same":  "账号 {player} 已绑定到你的 QQ，无需重复绑定",
			"bind.already_other": "该账号已绑定到其他 QQ",
			"bind.limit_reached": "绑定失败：你的 QQ 最多可绑定 {max} 个账号",
			"bind.not_in_group":  "绑定失败：请先加入服务器群",
			"bind.success":       "绑定成功！玩家：{player}",

			"bot.not_bound":      "你尚未绑定账号，请先使用「绑定 <验证码>」",
			"bot.disabled":       "假人功能已禁用",
			"bot.limit_reached":  "假人数量已达上限（{count}/{max}）",
			"bot.name_taken":     "假人名称已被使用：{name}",
			"bot.bad_prefix":     "假人名称必须以 {prefix} 开头",
			"bot.bind_success":   "假人绑定成功：{name}（{summary}）",
			"bot.not_found":      "找不到名为「{name}」的假人",
			"bot.not_owner":      "假人「{name}」不属于你",
			"bot.unbind_success": "假人解绑成功：{name}",
			"bot.list_header":    "假人列表（{summary}）：",
			"bot.list_empty":     "暂无假人，使用「/绑定假人 <名称>」添加",
			"bot.summary":        "共 {count}/{max} 个",
			"bot.unlimited":      "共 {count} 个 | 无限制",

			"guest.welcome":      "欢迎回来，{player}",
			"guest.join_prompt":  "请绑定你的QQ，在群内发送：绑定 {code}",
			"guest.prompt":       "绑定后才能进行该操作，验证码：{code}",
			"guest.bind_success": "绑定成功，限制已解除",
		},
		Help: Help{
			Header: "支持的命令：",
			Lines: []string{
				"绑定 <验证码> — 使用验证码绑定账号",
				"/绑定假人 <名称> — 绑定一个假人",
				"/解绑假人 <名称> — 解绑指定假人",
				"/假人列表 — 查看已绑定的假人",
				"/帮助 — 显示此帮助",
			},
		},
	}
}
