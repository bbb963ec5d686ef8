package auth

import (
	"strings"

	"github.com/google/uuid"
)

// ActionCategory classifies an in-world action for restriction checks.
type ActionCategory string

const (
	ActionChat        ActionCategory = "chat"
	ActionInteract    ActionCategory = "interact"
	ActionCommand     ActionCategory = "command"
	ActionWorldChange ActionCategory = "world_change"
)

// Effects is implemented by the host environment to present guest-mode
// transitions. The core decides when; the host decides how it looks.
type Effects interface {
	// ApplyGuest puts a freshly joined unbound player into restriction-mode
	// presentation and shows their verification code.
	ApplyGuest(player uuid.UUID, name, code string)
	// ClearGuest reverses restriction-mode presentation and shows the
	// bind-success notice.
	ClearGuest(player uuid.UUID)
	// Welcome greets a joining player who is already bound.
	Welcome(player uuid.UUID, name string)
	// Prompt is surfaced when a restricted action is vetoed.
	Prompt(player uuid.UUID, code string)
}

// NopEffects discards all presentation.
type NopEffects struct{}

func (NopEffects) ApplyGuest(uuid.UUID, string, string) {}
func (NopEffects) ClearGuest(uuid.UUID)                 {}
func (NopEffects) Welcome(uuid.UUID, string)            {}
func (NopEffects) Prompt(uuid.UUID, string)             {}

// guests is the process-lifetime set of currently-unbound players plus the
// restriction rules. Only the authority touches it.
type guests struct {
	members         map[uuid.UUID]bool
	restricted      map[ActionCategory]bool
	allowedCommands []string
}

func newGuests(restrictedActions, allowedCommands []string) *guests {
	g := &guests{
		members:    make(map[uuid.UUID]bool),
		restricted: make(map[ActionCategory]bool, len(restrictedActions)),
	}
	for _, a := range restrictedActions {
		g.restricted[ActionCategory(strings.ToLower(a))] = true
	}
	for _, c := range allowedCommands {
		g.allowedCommands = append(g.allowedCommands, strings.ToLower(c))
	}
	return g
}

func (g *guests) add(player uuid.UUID)           { g.members[player] = true }
func (g *guests) remove(player uuid.UUID)        { delete(g.members, player) }
func (g *guests) contains(player uuid.UUID) bool { return g.members[player] }
func (g *guests) count() int                     { return len(g.members) }

// vetoes decides whether a guest's action is blocked. Command attempts whose
// text starts with an allow-listed prefix pass regardless of the restricted
// category set.
func (g *guests) vetoes(player uuid.UUID, cat ActionCategory, text string) bool {
	if !g.members[player] {
		return false
	}
	if cat == ActionCommand {
		lower := strings.ToLower(text)
		for _, prefix := range g.allowedCommands {
			if strings.HasPrefix(lower, prefix) {
				return false
			}
		}
	}
	return g.restricted[cat]
}
