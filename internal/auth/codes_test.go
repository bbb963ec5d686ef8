package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCodes_ReusedWhileFresh(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newCodes(6, 5*time.Minute, func() time.Time { return now })
	player := uuid.New()

	code := c.OrCreate(player)
	if len(code) != 6 {
		t.Fatalf("code %q length %d", code, len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q is not numeric", code)
		}
	}
	if again := c.OrCreate(player); again != code {
		t.Fatalf("fresh code regenerated: %q then %q", code, again)
	}

	got, ok := c.FindPlayer(code)
	if !ok || got != player {
		t.Fatalf("FindPlayer(%q) = %v, %v", code, got, ok)
	}
}

func TestCodes_ExpiryMintsNew(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newCodes(6, 5*time.Minute, func() time.Time { return now })
	player := uuid.New()

	code := c.OrCreate(player)
	now = now.Add(5 * time.Minute)

	if _, ok := c.FindPlayer(code); ok {
		t.Fatal("expired code resolved")
	}
	if again := c.OrCreate(player); again == code {
		// A fresh mint can collide by chance, but the entry must be new.
		if _, ok := c.FindPlayer(again); !ok {
			t.Fatal("replacement code not registered")
		}
	}
}

func TestCodes_InvalidateConsumes(t *testing.T) {
	c := newCodes(6, 5*time.Minute, time.Now)
	player := uuid.New()

	code := c.OrCreate(player)
	c.Invalidate(player)
	if _, ok := c.FindPlayer(code); ok {
		t.Fatal("consumed code resolved")
	}
}

func TestCodes_EmptyNeverMatches(t *testing.T) {
	c := newCodes(6, 5*time.Minute, time.Now)
	if _, ok := c.FindPlayer(""); ok {
		t.Fatal("empty code matched")
	}
}
