package onebot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"authgate.gg/internal/protocol"
)

// ErrNoConnection is returned when an action is issued with no bot attached.
var ErrNoConnection = errors.New("onebot: no active connection")

// Correlator matches action replies back to their callers by echo. Every
// in-flight action owns one pending slot; the slot is removed exactly once,
// either by the reply or by the caller giving up.
type Correlator struct {
	mu      sync.Mutex
	seq     uint64
	pending map[string]chan protocol.ActionReply
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]chan protocol.ActionReply)}
}

func (c *Correlator) nextEcho() string {
	c.seq++
	return fmt.Sprintf("authgate-%d-%d", c.seq, time.Now().UnixNano())
}

// Call sends an action frame and waits for the matching reply. The send
// function is the connection's outbound path; ctx bounds the wait.
func (c *Correlator) Call(ctx context.Context, send func([]byte) error, action string, params any) (protocol.ActionReply, error) {
	ch := make(chan protocol.ActionReply, 1)

	c.mu.Lock()
	echo := c.nextEcho()
	c.pending[echo] = ch
	c.mu.Unlock()

	b, err := json.Marshal(protocol.ActionFrame{Action: action, Params: params, Echo: echo})
	if err != nil {
		c.remove(echo)
		return protocol.ActionReply{}, fmt.Errorf("marshal %s: %w", action, err)
	}
	if err := send(b); err != nil {
		c.remove(echo)
		return protocol.ActionReply{}, err
	}

	select {
	case <-ctx.Done():
		c.remove(echo)
		return protocol.ActionReply{}, fmt.Errorf("%s: %w", action, ctx.Err())
	case reply := <-ch:
		return reply, nil
	}
}

// Resolve delivers a reply to its waiter. Unknown or already-resolved echoes
// are silent no-ops; the return value exists for the caller's logging.
func (c *Correlator) Resolve(reply protocol.ActionReply) bool {
	c.mu.Lock()
	ch, ok := c.pending[reply.Echo]
	if ok {
		delete(c.pending, reply.Echo)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- reply
	return true
}

func (c *Correlator) remove(echo string) {
	c.mu.Lock()
	delete(c.pending, echo)
	c.mu.Unlock()
}

// Pending is the number of in-flight actions, for metrics.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
