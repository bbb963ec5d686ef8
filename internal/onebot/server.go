package onebot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"authgate.gg/internal/config"
	"authgate.gg/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 90 * time.Second
	workerCount  = 4
	workQueue    = 64
)

// Server accepts reverse-websocket connections from a OneBot client and
// routes its frames: action replies to the correlator, messages through the
// command router, notices to the roster.
type Server struct {
	cfg     config.Config
	corr    *Correlator
	handler *Handler
	roster  *Roster
	log     *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	curr *connection

	work chan func()

	commands  atomic.Int64
	dropped   atomic.Int64
	unmatched atomic.Int64
}

type connection struct {
	conn   *websocket.Conn
	out    chan []byte
	cancel context.CancelFunc
}

func NewServer(cfg config.Config, corr *Correlator, handler *Handler, roster *Roster, logger *log.Logger) *Server {
	return &Server{
		cfg:     cfg,
		corr:    corr,
		handler: handler,
		roster:  roster,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		work: make(chan func(), workQueue),
	}
}

// Run starts the command workers and blocks until ctx is done. Commands run
// off the reader goroutine so a slow authority call never stalls frame
// intake.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case fn := <-s.work:
					fn()
				}
			}
		}()
	}
	wg.Wait()
}

// Handler serves the OneBot endpoint. Token mismatches are rejected after
// the upgrade with close code 1008, which is what OneBot clients expect.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.authorized(r) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad access token"),
				time.Now().Add(time.Second))
			s.log.Printf("[onebot] rejected connection from %s: bad token", r.RemoteAddr)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &connection{conn: conn, out: make(chan []byte, 256), cancel: cancel}
		s.attach(c)
		defer s.detach(c)

		s.log.Printf("[onebot] bot connected from %s", r.RemoteAddr)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Fresh connection means the membership snapshot may be stale.
		go s.roster.RefreshAll(ctx, s)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.dispatch(ctx, c, msg)
		}

		s.log.Printf("[onebot] bot disconnected from %s", r.RemoteAddr)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	want := s.cfg.OneBot.Token
	if want == "" {
		return true
	}
	got := r.URL.Query().Get("access_token")
	if got == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			got = strings.TrimPrefix(h, "Bearer ")
		}
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (s *Server) dispatch(ctx context.Context, c *connection, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}

	if base.IsActionReply() {
		var reply protocol.ActionReply
		if err := json.Unmarshal(msg, &reply); err != nil {
			return
		}
		if !s.corr.Resolve(reply) {
			s.unmatched.Add(1)
			if s.cfg.OneBot.LogLevel == config.LogAll {
				s.log.Printf("[onebot] reply with unknown echo %q dropped", reply.Echo)
			}
		}
		return
	}

	switch base.PostType {
	case protocol.PostMessage:
		var ev protocol.MessageEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return
		}
		s.handleMessage(ctx, c, ev)
	case protocol.PostNotice:
		var ev protocol.NoticeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return
		}
		s.roster.HandleNotice(ev)
	}
}

func (s *Server) handleMessage(ctx context.Context, c *connection, ev protocol.MessageEvent) {
	switch ev.MessageType {
	case protocol.MessageGroup:
		if !s.cfg.GroupAllowed(ev.GroupID) {
			return
		}
	case protocol.MessagePrivate:
		if !s.cfg.OneBot.AllowPrivate {
			return
		}
	default:
		return
	}

	text := protocol.ExtractText(ev.Message)
	mention, hasMention := protocol.MentionedUser(ev.Message)

	cmd, ok := Parse(text, mention, hasMention)
	if !ok {
		if LooksLikeCommand(text) && s.cfg.OneBot.LogLevel != config.LogNone {
			s.log.Printf("[onebot] unrecognized command from %d: %q", ev.UserID, Normalize(text))
		}
		return
	}

	if s.cfg.OneBot.LogLevel != config.LogNone {
		s.log.Printf("[onebot] %s from %d in %s", cmd.commandName(), ev.UserID, ev.MessageType)
	}

	job := func() {
		s.commands.Add(1)
		if reply := s.handler.Handle(ctx, ev, cmd); reply != "" {
			s.reply(c, ev, reply)
		}
	}
	select {
	case s.work <- job:
	default:
		s.dropped.Add(1)
		s.log.Printf("[onebot] work queue full, dropping %s from %d", cmd.commandName(), ev.UserID)
	}
}

// reply sends a chat message back to where the command came from. Replies
// are fire-and-forget: no echo, no pending slot.
func (s *Server) reply(c *connection, ev protocol.MessageEvent, text string) {
	var frame protocol.ActionFrame
	if ev.MessageType == protocol.MessageGroup {
		frame = protocol.ActionFrame{
			Action: protocol.ActionSendGroupMsg,
			Params: protocol.SendGroupMsgParams{GroupID: ev.GroupID, Message: text},
		}
	} else {
		frame = protocol.ActionFrame{
			Action: protocol.ActionSendPrivateMsg,
			Params: protocol.SendPrivateMsgParams{UserID: ev.UserID, Message: text},
		}
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	if err := c.send(b); err != nil {
		s.log.Printf("[onebot] reply dropped: %v", err)
	}
}

func (c *connection) send(b []byte) error {
	select {
	case c.out <- b:
		return nil
	default:
		return errors.New("onebot: outbound queue full")
	}
}

func (s *Server) attach(c *connection) {
	s.mu.Lock()
	prev := s.curr
	s.curr = c
	s.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}
}

func (s *Server) detach(c *connection) {
	s.mu.Lock()
	if s.curr == c {
		s.curr = nil
	}
	s.mu.Unlock()
}

// Connected reports whether a bot is currently attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curr != nil
}

// Call issues an action over the current connection.
func (s *Server) Call(ctx context.Context, action string, params any) (protocol.ActionReply, error) {
	s.mu.Lock()
	c := s.curr
	s.mu.Unlock()
	if c == nil {
		return protocol.ActionReply{}, ErrNoConnection
	}
	return s.corr.Call(ctx, c.send, action, params)
}

// Stats is a snapshot of the server's counters, for /metrics.
type Stats struct {
	Connected        bool
	PendingActions   int
	CommandsHandled  int64
	CommandsDropped  int64
	UnmatchedReplies int64
}

func (s *Server) Stats() Stats {
	return Stats{
		Connected:        s.Connected(),
		PendingActions:   s.corr.Pending(),
		CommandsHandled:  s.commands.Load(),
		CommandsDropped:  s.dropped.Load(),
		UnmatchedReplies: s.unmatched.Load(),
	}
}
