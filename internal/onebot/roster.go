package onebot

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"authgate.gg/internal/config"
	"authgate.gg/internal/protocol"
	"authgate.gg/internal/store"
)

const rosterTimeout = 10 * time.Second

// Caller issues a correlated action and waits for its reply.
type Caller interface {
	Call(ctx context.Context, action string, params any) (protocol.ActionReply, error)
}

// Roster mirrors the membership of the configured groups into the store.
// Refreshes replace a group's rows wholesale; a failed fetch leaves the
// previous snapshot in place.
type Roster struct {
	store *store.Store
	cfg   config.Config
	log   *log.Logger
}

func NewRoster(st *store.Store, cfg config.Config, logger *log.Logger) *Roster {
	return &Roster{store: st, cfg: cfg, log: logger}
}

// RefreshAll fetches every configured group's member list. Called on bot
// attach.
func (r *Roster) RefreshAll(ctx context.Context, c Caller) {
	for _, groupID := range r.cfg.RosterGroups() {
		r.refresh(ctx, c, groupID)
	}
}

func (r *Roster) refresh(ctx context.Context, c Caller, groupID int64) {
	ctx, cancel := context.WithTimeout(ctx, rosterTimeout)
	defer cancel()

	reply, err := c.Call(ctx, protocol.ActionGroupMemberList,
		protocol.GroupMemberListParams{GroupID: groupID})
	if err != nil {
		r.log.Printf("[roster] group %d: fetch failed: %v", groupID, err)
		return
	}
	if !reply.OK() {
		r.log.Printf("[roster] group %d: bot returned status=%s retcode=%d", groupID, reply.Status, reply.RetCode)
		return
	}
	var members []protocol.GroupMember
	if err := json.Unmarshal(reply.Data, &members); err != nil {
		r.log.Printf("[roster] group %d: bad member list: %v", groupID, err)
		return
	}
	qqs := make([]int64, 0, len(members))
	for _, m := range members {
		qqs = append(qqs, m.UserID)
	}
	if err := r.store.ReplaceGroupMembers(groupID, qqs); err != nil {
		r.log.Printf("[roster] group %d: store: %v", groupID, err)
		return
	}
	r.log.Printf("[roster] group %d: %d members", groupID, len(qqs))
}

// HandleNotice applies a single membership change. Notices for groups not in
// the configured set are ignored.
func (r *Roster) HandleNotice(ev protocol.NoticeEvent) {
	if !r.tracked(ev.GroupID) {
		return
	}
	switch ev.NoticeType {
	case protocol.NoticeGroupIncrease:
		if err := r.store.UpsertGroupMember(ev.GroupID, ev.UserID); err != nil {
			r.log.Printf("[roster] group %d: add %d: %v", ev.GroupID, ev.UserID, err)
		}
	case protocol.NoticeGroupDecrease:
		if err := r.store.RemoveGroupMember(ev.GroupID, ev.UserID); err != nil {
			r.log.Printf("[roster] group %d: remove %d: %v", ev.GroupID, ev.UserID, err)
		}
	}
}

func (r *Roster) tracked(groupID int64) bool {
	for _, g := range r.cfg.RosterGroups() {
		if g == groupID {
			return true
		}
	}
	return false
}
