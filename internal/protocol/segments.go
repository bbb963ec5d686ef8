package protocol

import (
	"encoding/json"
	"strconv"
)

// Segment is one element of an array-format message (CQ-code style).
type Segment struct {
	Type string      `json:"type"`
	Data SegmentData `json:"data"`
}

type SegmentData struct {
	Text string `json:"text,omitempty"`
	QQ   string `json:"qq,omitempty"`
}

const (
	SegmentText = "text"
	SegmentAt   = "at"
)

// ExtractText returns the plain text of a message field. String-format messages
// are returned as-is; array-format messages contribute only their text segments.
func ExtractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b []byte
	for _, p := range parts {
		var seg Segment
		if err := json.Unmarshal(p, &seg); err == nil && seg.Type == SegmentText {
			b = append(b, seg.Data.Text...)
			continue
		}
		// Tolerate bare strings inside the array.
		var lit string
		if err := json.Unmarshal(p, &lit); err == nil {
			b = append(b, lit...)
		}
	}
	return string(b)
}

// MentionedUser returns the user id of the first at-segment, if any.
// String-format messages never carry a structural mention.
func MentionedUser(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var parts []Segment
	if err := json.Unmarshal(raw, &parts); err != nil {
		return 0, false
	}
	for _, seg := range parts {
		if seg.Type != SegmentAt || seg.Data.QQ == "" {
			continue
		}
		id, err := strconv.ParseInt(seg.Data.QQ, 10, 64)
		if err != nil {
			continue // "all" and other non-numeric targets
		}
		return id, true
	}
	return 0, false
}
