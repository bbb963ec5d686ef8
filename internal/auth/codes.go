package auth

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// codes is the ephemeral verification-code table. A player keeps the same code
// while it is fresh; codes expire after ttl and are consumed exactly once by a
// successful bind. Not safe for concurrent use: only the authority touches it.
type codes struct {
	length   int
	ttl      time.Duration
	byPlayer map[uuid.UUID]codeEntry
	now      func() time.Time
}

type codeEntry struct {
	code   string
	issued time.Time
}

func newCodes(length int, ttl time.Duration, now func() time.Time) *codes {
	return &codes{
		length:   length,
		ttl:      ttl,
		byPlayer: make(map[uuid.UUID]codeEntry),
		now:      now,
	}
}

// OrCreate returns the player's current code, minting a new one if absent or
// expired.
func (c *codes) OrCreate(player uuid.UUID) string {
	if e, ok := c.byPlayer[player]; ok && c.now().Sub(e.issued) < c.ttl {
		return e.code
	}
	code := c.generate()
	c.byPlayer[player] = codeEntry{code: code, issued: c.now()}
	return code
}

// FindPlayer resolves an unexpired code to its player.
func (c *codes) FindPlayer(code string) (uuid.UUID, bool) {
	if code == "" {
		return uuid.Nil, false
	}
	for player, e := range c.byPlayer {
		if e.code != code {
			continue
		}
		if c.now().Sub(e.issued) >= c.ttl {
			return uuid.Nil, false
		}
		return player, true
	}
	return uuid.Nil, false
}

// Invalidate consumes a player's code. A consumed code can never bind again.
func (c *codes) Invalidate(player uuid.UUID) {
	delete(c.byPlayer, player)
}

func (c *codes) generate() string {
	buf := make([]byte, c.length)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = '0' + buf[i]%10
	}
	return string(buf)
}
