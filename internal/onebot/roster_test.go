package onebot

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"authgate.gg/internal/config"
	"authgate.gg/internal/protocol"
	"authgate.gg/internal/store"
)

func testRoster(t *testing.T, groups []int64) (*Roster, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Defaults()
	cfg.OneBot.AllowedGroups = groups
	return NewRoster(st, cfg, log.New(io.Discard, "", 0)), st
}

// fixedCaller answers every action with the same reply.
type fixedCaller struct {
	reply protocol.ActionReply
	err   error
}

func (f fixedCaller) Call(context.Context, string, any) (protocol.ActionReply, error) {
	return f.reply, f.err
}

func TestRefreshAll_ReplacesSnapshot(t *testing.T) {
	r, st := testRoster(t, []int64{10001})

	data, _ := json.Marshal([]protocol.GroupMember{{UserID: 1}, {UserID: 2}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.RefreshAll(ctx, fixedCaller{reply: protocol.ActionReply{Status: "ok", Data: data}})

	if n, _ := st.GroupMemberCount(10001); n != 2 {
		t.Fatalf("members = %d", n)
	}
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	r, st := testRoster(t, []int64{10001})

	if err := st.ReplaceGroupMembers(10001, []int64{7}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.RefreshAll(ctx, fixedCaller{reply: protocol.ActionReply{Status: "failed", RetCode: 100}})

	if n, _ := st.GroupMemberCount(10001); n != 1 {
		t.Fatalf("failed refresh clobbered snapshot: members = %d", n)
	}

	// A fetch error is the same no-clobber story.
	r.RefreshAll(ctx, fixedCaller{err: context.DeadlineExceeded})
	if n, _ := st.GroupMemberCount(10001); n != 1 {
		t.Fatalf("fetch error clobbered snapshot: members = %d", n)
	}
}

func TestHandleNotice_TrackedGroupsOnly(t *testing.T) {
	r, st := testRoster(t, []int64{10001})

	r.HandleNotice(protocol.NoticeEvent{
		PostType: protocol.PostNotice, NoticeType: protocol.NoticeGroupIncrease,
		GroupID: 10001, UserID: 5,
	})
	r.HandleNotice(protocol.NoticeEvent{
		PostType: protocol.PostNotice, NoticeType: protocol.NoticeGroupIncrease,
		GroupID: 99999, UserID: 5,
	})
	if n, _ := st.GroupMemberCount(10001); n != 1 {
		t.Fatalf("members = %d", n)
	}
	if n, _ := st.GroupMemberCount(99999); n != 0 {
		t.Fatal("untracked group recorded")
	}

	r.HandleNotice(protocol.NoticeEvent{
		PostType: protocol.PostNotice, NoticeType: protocol.NoticeGroupDecrease,
		GroupID: 10001, UserID: 5,
	})
	if n, _ := st.GroupMemberCount(10001); n != 0 {
		t.Fatalf("members = %d after decrease", n)
	}
}
