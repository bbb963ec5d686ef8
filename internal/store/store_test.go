package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPlayers_UpsertAndLookup(t *testing.T) {
	st := openTest(t)
	now := time.Now()

	id := OfflineUUID("Steve")
	if err := st.UpsertPlayer("Steve", id, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Name lookups are case-insensitive.
	p, found, err := st.PlayerByName("steve")
	if err != nil || !found {
		t.Fatalf("lookup: %v found=%v", err, found)
	}
	if p.Name != "Steve" || p.UUID != id || p.QQ != 0 {
		t.Fatalf("got %+v", p)
	}

	p, found, err = st.PlayerByUUID(id)
	if err != nil || !found {
		t.Fatalf("uuid lookup: %v found=%v", err, found)
	}
	if p.Name != "Steve" {
		t.Fatalf("got %+v", p)
	}

	if _, found, _ = st.PlayerByName("nobody"); found {
		t.Fatal("unknown player found")
	}
}

func TestPlayers_RejoinKeepsBinding(t *testing.T) {
	st := openTest(t)
	now := time.Now()

	id := OfflineUUID("Steve")
	if err := st.UpsertPlayer("Steve", id, now); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.SetBinding(id, 20001); err != nil {
		t.Fatalf("bind: %v", err)
	}
	// A rejoin upserts the same row; the binding must survive.
	if err := st.UpsertPlayer("Steve", id, now.Add(time.Hour)); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	p, _, err := st.PlayerByName("Steve")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if p.QQ != 20001 {
		t.Fatalf("qq = %d after rejoin", p.QQ)
	}
}

func TestPlayers_BindingQueries(t *testing.T) {
	st := openTest(t)
	now := time.Now()

	for _, name := range []string{"a", "b", "c"} {
		if err := st.EnsurePlayer(name, now); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}
	if err := st.SetBindingByName("a", 20001); err != nil {
		t.Fatalf("bind a: %v", err)
	}
	if err := st.SetBindingByName("b", 20001); err != nil {
		t.Fatalf("bind b: %v", err)
	}

	if n, err := st.CountByQQ(20001); err != nil || n != 2 {
		t.Fatalf("count = %d err=%v", n, err)
	}
	p, found, err := st.FirstPlayerByQQ(20001)
	if err != nil || !found {
		t.Fatalf("first: %v found=%v", err, found)
	}
	if p.Name != "a" && p.Name != "b" {
		t.Fatalf("got %+v", p)
	}

	all, err := st.AllPlayers()
	if err != nil || len(all) != 3 {
		t.Fatalf("all = %d err=%v", len(all), err)
	}
}

func TestBots_CRUD(t *testing.T) {
	st := openTest(t)
	now := time.Now()

	if err := st.CreateBot("Bot-miner", "Alice", now); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.CreateBot("Bot-farmer", "Alice", now.Add(time.Second)); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Primary key is NOCASE: same name in a different case must fail.
	if err := st.CreateBot("bot-MINER", "Bob", now); err == nil {
		t.Fatal("duplicate bot name accepted")
	}

	b, found, err := st.BotByName("bot-miner")
	if err != nil || !found {
		t.Fatalf("lookup: %v found=%v", err, found)
	}
	if b.OwnerName != "Alice" {
		t.Fatalf("owner = %q", b.OwnerName)
	}
	if b.UUID != BotUUID("Bot-miner") {
		t.Fatal("bot uuid not derived from name")
	}

	if ok, err := st.IsBot(BotUUID("Bot-miner")); err != nil || !ok {
		t.Fatalf("isbot: %v %v", ok, err)
	}

	bots, err := st.BotsByOwner("ALICE")
	if err != nil || len(bots) != 2 {
		t.Fatalf("bots = %d err=%v", len(bots), err)
	}
	if bots[0].Name != "Bot-miner" {
		t.Fatalf("creation order lost: %v", bots)
	}
	if n, _ := st.CountBotsByOwner("Alice"); n != 2 {
		t.Fatalf("count = %d", n)
	}

	if err := st.DeleteBot("Bot-miner"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := st.BotByName("Bot-miner"); found {
		t.Fatal("deleted bot found")
	}
}

func TestRoster_ReplaceAndIncremental(t *testing.T) {
	st := openTest(t)

	if err := st.ReplaceGroupMembers(10001, []int64{1, 2, 3}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n, _ := st.GroupMemberCount(10001); n != 3 {
		t.Fatalf("count = %d", n)
	}

	if err := st.UpsertGroupMember(10001, 4); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := st.UpsertGroupMember(10001, 4); err != nil {
		t.Fatalf("re-add must be idempotent: %v", err)
	}
	if err := st.RemoveGroupMember(10001, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n, _ := st.GroupMemberCount(10001); n != 3 {
		t.Fatalf("count = %d", n)
	}

	ok, err := st.IsMemberOfAny(2, []int64{10001, 10002})
	if err != nil || !ok {
		t.Fatalf("member: %v %v", ok, err)
	}
	ok, err = st.IsMemberOfAny(1, []int64{10001})
	if err != nil || ok {
		t.Fatalf("removed member still present: %v %v", ok, err)
	}
	if ok, _ := st.IsMemberOfAny(2, nil); ok {
		t.Fatal("empty group list matched")
	}

	// A wholesale replace discards the old snapshot.
	if err := st.ReplaceGroupMembers(10001, []int64{9}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n, _ := st.GroupMemberCount(10001); n != 1 {
		t.Fatalf("count = %d", n)
	}
}
