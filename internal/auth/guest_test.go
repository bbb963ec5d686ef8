package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestGuests_VetoesOnlyMembers(t *testing.T) {
	g := newGuests([]string{"chat", "command"}, []string{"/bind", "/绑定"})
	guest := uuid.New()
	bound := uuid.New()
	g.add(guest)

	if !g.vetoes(guest, ActionChat, "hi") {
		t.Fatal("guest chat should be vetoed")
	}
	if g.vetoes(bound, ActionChat, "hi") {
		t.Fatal("non-guest chat should pass")
	}
	if g.vetoes(guest, ActionInteract, "") {
		t.Fatal("unrestricted category should pass")
	}
}

func TestGuests_AllowedCommandPrefixes(t *testing.T) {
	g := newGuests([]string{"command"}, []string{"/bind", "/绑定"})
	guest := uuid.New()
	g.add(guest)

	if g.vetoes(guest, ActionCommand, "/BIND 123456") {
		t.Fatal("allow-listed prefix should pass case-insensitively")
	}
	if g.vetoes(guest, ActionCommand, "/绑定 123456") {
		t.Fatal("allow-listed prefix should pass")
	}
	if !g.vetoes(guest, ActionCommand, "/home") {
		t.Fatal("other commands should be vetoed")
	}
}

func TestGuests_RemoveClears(t *testing.T) {
	g := newGuests([]string{"chat"}, nil)
	p := uuid.New()
	g.add(p)
	g.remove(p)
	if g.contains(p) || g.count() != 0 {
		t.Fatal("removal did not clear membership")
	}
	if g.vetoes(p, ActionChat, "hi") {
		t.Fatal("removed player should not be vetoed")
	}
}
