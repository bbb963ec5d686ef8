package onebot

import (
	"context"
	"log"
	"strconv"
	"time"

	"authgate.gg/internal/auth"
	"authgate.gg/internal/messages"
	"authgate.gg/internal/protocol"
)

// Handler turns parsed commands into service calls and renders the outcome
// through the message catalog.
type Handler struct {
	svc     *auth.Service
	cat     *messages.Catalog
	log     *log.Logger
	timeout time.Duration
}

func NewHandler(svc *auth.Service, cat *messages.Catalog, logger *log.Logger) *Handler {
	return &Handler{svc: svc, cat: cat, log: logger, timeout: 10 * time.Second}
}

// Handle executes cmd for the message's sender. The returned text is the
// chat reply; empty means nothing to say.
func (h *Handler) Handle(ctx context.Context, ev protocol.MessageEvent, cmd Command) string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	switch c := cmd.(type) {
	case RegisterCmd:
		return h.register(ctx, ev, c)
	case BindCodeCmd:
		res, err := h.svc.BindByCode(ctx, ev.UserID, c.Code)
		if err != nil {
			return h.renderErr(err)
		}
		if res.AlreadyBound {
			return h.cat.Get("bind.already_same", "player", res.PlayerName)
		}
		return h.cat.Get("bind.success", "player", res.PlayerName)
	case BotBindCmd:
		res, err := h.svc.BindBot(ctx, ev.UserID, c.Name)
		if err != nil {
			return h.renderErr(err)
		}
		return h.cat.Get("bot.bind_success",
			"name", res.Name,
			"summary", h.quotaSummary(res.Count, res.Limit))
	case BotUnbindCmd:
		if err := h.svc.UnbindBot(ctx, ev.UserID, c.Name); err != nil {
			return h.renderErr(err)
		}
		return h.cat.Get("bot.unbind_success", "name", c.Name)
	case BotListCmd:
		res, err := h.svc.ListBots(ctx, ev.UserID)
		if err != nil {
			return h.renderErr(err)
		}
		return h.renderBotList(res)
	case HelpCmd:
		return h.cat.HelpText()
	}
	return ""
}

func (h *Handler) register(ctx context.Context, ev protocol.MessageEvent, c RegisterCmd) string {
	// Group admins only. Private chats carry no role, so the gate also
	// keeps 登记 out of private conversations.
	if ev.MessageType != protocol.MessageGroup || !ev.Sender.IsAdmin() {
		return h.cat.Get("register.no_permission")
	}
	if !c.HasTarget {
		return h.cat.Get("register.target_not_found")
	}
	res, err := h.svc.RegisterByAdmin(ctx, c.TargetQQ, c.Player)
	if err != nil {
		return h.renderErr(err)
	}
	if res.AlreadyBound {
		return h.cat.Get("register.already_same",
			"player", res.PlayerName, "qq", strconv.FormatInt(c.TargetQQ, 10))
	}
	return h.cat.Get("register.success",
		"player", res.PlayerName, "qq", strconv.FormatInt(c.TargetQQ, 10))
}

func (h *Handler) renderErr(err error) string {
	if v, ok := auth.AsValidation(err); ok {
		return h.cat.Get(v.Key, v.Placeholders...)
	}
	h.log.Printf("[onebot] command failed: %v", err)
	return h.cat.Get("common.error")
}

func (h *Handler) renderBotList(res auth.BotListResult) string {
	if len(res.Names) == 0 {
		return h.cat.Get("bot.list_empty")
	}
	out := h.cat.Get("bot.list_header",
		"summary", h.quotaSummary(len(res.Names), res.Limit))
	for i, name := range res.Names {
		out += "\n" + strconv.Itoa(i+1) + ". " + name
	}
	return out
}

func (h *Handler) quotaSummary(count, limit int) string {
	if limit < 0 {
		return h.cat.Get("bot.unlimited", "count", strconv.Itoa(count))
	}
	return h.cat.Get("bot.summary",
		"count", strconv.Itoa(count), "max", strconv.Itoa(limit))
}
