// Command qqsim impersonates a OneBot client against a running server: it
// connects, answers member-list requests with a canned roster, forwards a
// message event from the command line, and prints whatever the server sends
// back. Handy for poking at the command grammar without a real bot.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"authgate.gg/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/onebot/v11/ws", "ws url (append ?access_token=... when the server requires one)")
		groupID = flag.Int64("group", 10001, "group id for the sent message")
		userID  = flag.Int64("user", 20001, "sender qq")
		role    = flag.String("role", "member", "sender role (member, admin, owner)")
		text    = flag.String("text", "/帮助", "message text to send")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[qqsim] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	msg, _ := json.Marshal(*text)
	ev := protocol.MessageEvent{
		PostType:    protocol.PostMessage,
		MessageType: protocol.MessageGroup,
		UserID:      *userID,
		GroupID:     *groupID,
		Message:     msg,
		Sender:      protocol.Sender{Nickname: "qqsim", Role: *role},
	}
	if err := conn.WriteJSON(ev); err != nil {
		logger.Fatalf("send message event: %v", err)
	}
	logger.Printf("sent %q as %d in group %d", *text, *userID, *groupID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame protocol.ActionFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Action == "" {
			logger.Printf("<- %s", raw)
			continue
		}
		switch frame.Action {
		case protocol.ActionGroupMemberList:
			// Canned roster so the server's refresh succeeds.
			reply(conn, frame.Echo, []protocol.GroupMember{{UserID: *userID}})
			logger.Printf("answered %s", frame.Action)
		case protocol.ActionSendGroupMsg, protocol.ActionSendPrivateMsg:
			params, _ := json.Marshal(frame.Params)
			logger.Printf("<- %s %s", frame.Action, params)
		default:
			logger.Printf("<- %s", raw)
		}
	}
}

func reply(conn *websocket.Conn, echo string, data any) {
	raw, _ := json.Marshal(data)
	_ = conn.WriteJSON(protocol.ActionReply{Status: "ok", Data: raw, Echo: echo})
}
