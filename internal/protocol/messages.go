package protocol

import (
	"encoding/json"
	"strings"
)

// ActionFrame (server -> client): a OneBot API call. Echo correlates the reply.
type ActionFrame struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo,omitempty"`
}

type SendGroupMsgParams struct {
	GroupID int64  `json:"group_id"`
	Message string `json:"message"`
}

type SendPrivateMsgParams struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type GroupMemberListParams struct {
	GroupID int64 `json:"group_id"`
}

// ActionReply (client -> server): response to an ActionFrame, matched by echo.
type ActionReply struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data,omitempty"`
	Echo    string          `json:"echo"`
}

func (r ActionReply) OK() bool { return strings.EqualFold(r.Status, "ok") }

// GroupMember is one entry of a get_group_member_list reply.
type GroupMember struct {
	UserID int64 `json:"user_id"`
}

// MessageEvent (client -> server): a group or private chat message.
// Message is either a plain string or an array of typed segments.
type MessageEvent struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	UserID      int64           `json:"user_id"`
	GroupID     int64           `json:"group_id,omitempty"`
	Message     json.RawMessage `json:"message"`
	Sender      Sender          `json:"sender,omitempty"`
}

type Sender struct {
	Nickname string `json:"nickname,omitempty"`
	Role     string `json:"role,omitempty"`
}

// IsAdmin reports whether the sender holds an elevated role in the group.
func (s Sender) IsAdmin() bool {
	return strings.EqualFold(s.Role, "admin") || strings.EqualFold(s.Role, "owner")
}

// NoticeEvent (client -> server): group membership change.
type NoticeEvent struct {
	PostType   string `json:"post_type"`
	NoticeType string `json:"notice_type"`
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
}
