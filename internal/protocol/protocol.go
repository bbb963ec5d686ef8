package protocol

import "encoding/json"

// OneBot v11 post types.
const (
	PostMessage = "message"
	PostNotice  = "notice"
)

// Message types.
const (
	MessageGroup   = "group"
	MessagePrivate = "private"
)

// Notice types handled by this service.
const (
	NoticeGroupIncrease = "group_increase"
	NoticeGroupDecrease = "group_decrease"
)

// Actions issued by this service.
const (
	ActionSendGroupMsg    = "send_group_msg"
	ActionSendPrivateMsg  = "send_private_msg"
	ActionGroupMemberList = "get_group_member_list"
)

// BaseEvent lets us route unknown inbound frames: an API action reply carries
// an echo but no post_type, events carry a post_type.
type BaseEvent struct {
	PostType string `json:"post_type,omitempty"`
	Echo     string `json:"echo,omitempty"`
}

func DecodeBase(b []byte) (BaseEvent, error) {
	var e BaseEvent
	err := json.Unmarshal(b, &e)
	return e, err
}

// IsActionReply reports whether a frame is an action reply rather than an event.
func (e BaseEvent) IsActionReply() bool {
	return e.Echo != "" && e.PostType == ""
}
