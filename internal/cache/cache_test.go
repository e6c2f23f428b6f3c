package cache

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

func ev(name string, p protocol.Payload) protocol.Event {
	return protocol.Event{Op: protocol.OpDispatch, Name: name, Payload: p}
}

func sf(s string) model.Snowflake { return model.Snowflake(s) }

func sfp(s string) *model.Snowflake {
	v := model.Snowflake(s)
	return &v
}

func strp(s string) *string { return &s }

func testGuild() model.Guild {
	return model.Guild{
		ID:          "10",
		Name:        "guild",
		MemberCount: 1,
		Roles:       []model.Role{{ID: "10", Name: "@everyone"}, {ID: "11", Name: "mod"}},
		Channels:    []model.Channel{{ID: "20", Name: strp("general")}},
		Members: []model.Member{
			{User: &model.User{ID: "1", Username: "alice"}, Roles: []model.Snowflake{"11"}},
		},
		GuildScheduledEvents: []model.ScheduledEvent{{ID: "30", GuildID: "10", Name: "meetup"}},
	}
}

func newTestCache(t *testing.T, cfg Config, opts ...Option) *Cache {
	t.Helper()
	return New(cfg, nil, opts...)
}

func snapshotJSON(t *testing.T, c *Cache) []byte {
	t.Helper()
	data, err := c.MarshalSnapshot()
	if err != nil {
		t.Fatalf("MarshalSnapshot() error = %v", err)
	}
	return data
}

func TestApply_GuildCreateIdempotent(t *testing.T) {
	c := newTestCache(t, DefaultConfig())

	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))
	first := snapshotJSON(t, c)

	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))
	second := snapshotJSON(t, c)

	if !bytes.Equal(first, second) {
		t.Errorf("snapshot changed after repeated GUILD_CREATE:\n%s\n%s", first, second)
	}
	if got := len(c.Guilds()); got != 1 {
		t.Errorf("len(Guilds()) = %d, want 1", got)
	}

	ch, ok := c.Channel("20")
	if !ok {
		t.Fatal("Channel(20) not found")
	}
	if ch.GuildID == nil || *ch.GuildID != "10" {
		t.Errorf("channel GuildID = %v, want 10", ch.GuildID)
	}
}

func TestApply_UpdateBeforeCreateIsNoop(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	before := snapshotJSON(t, c)

	events := []protocol.Event{
		ev("MESSAGE_UPDATE", &protocol.MessageUpdate{ID: "1", ChannelID: "2", Content: strp("edited")}),
		ev("GUILD_MEMBER_ADD", &protocol.GuildMemberAdd{GuildID: "99", Member: model.Member{User: &model.User{ID: "1"}}}),
		ev("GUILD_ROLE_CREATE", &protocol.GuildRoleCreate{GuildID: "99", Role: model.Role{ID: "5"}}),
		ev("GUILD_UPDATE", &protocol.GuildUpdate{Guild: model.Guild{ID: "99", Name: "x"}}),
		ev("MESSAGE_REACTION_ADD", &protocol.MessageReactionAdd{ChannelID: "2", MessageID: "1", UserID: "3", Emoji: model.Emoji{Name: strp("x")}}),
		ev("THREAD_DELETE", &protocol.ThreadDelete{ID: "4", GuildID: "99"}),
		ev("CHANNEL_PINS_UPDATE", &protocol.ChannelPinsUpdate{GuildID: sfp("99"), ChannelID: "4"}),
	}
	for _, e := range events {
		if c.Apply(e) {
			t.Errorf("Apply(%s) = true, want false", e.Name)
		}
	}

	if after := snapshotJSON(t, c); !bytes.Equal(before, after) {
		t.Errorf("snapshot changed:\n%s\n%s", before, after)
	}
}

func TestApply_EvictionKeepsNewest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = ItemsLimit{Custom: map[Collection]int{CollectionMessages: 100}}
	c := newTestCache(t, cfg)

	for i := 1; i <= 150; i++ {
		id := sf(strconv.Itoa(i))
		c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: id, ChannelID: "7"}}))
	}

	msgs := c.Messages("7")
	if len(msgs) != 100 {
		t.Fatalf("len(Messages) = %d, want 100", len(msgs))
	}
	if msgs[0].ID != "51" {
		t.Errorf("oldest kept = %s, want 51", msgs[0].ID)
	}
	if msgs[99].ID != "150" {
		t.Errorf("newest kept = %s, want 150", msgs[99].ID)
	}
}

func TestApply_NoopEventsAdvanceEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = ItemsLimit{Custom: map[Collection]int{CollectionMessages: 5}}
	c := newTestCache(t, cfg)
	if c.evictEvery != 1 {
		t.Fatalf("evictEvery = %d, want 1", c.evictEvery)
	}

	// Overfill directly so no trim pass has run yet.
	o := newOrdered[model.Message]()
	for i := 1; i <= 8; i++ {
		id := sf(strconv.Itoa(i))
		o.put(id, model.Message{ID: id, ChannelID: "7"})
	}
	c.st.messages["7"] = o

	// Deleting an unknown message changes nothing but still counts.
	if c.Apply(ev("MESSAGE_DELETE", &protocol.MessageDelete{ID: "999", ChannelID: "7"})) {
		t.Fatal("Apply(unknown delete) = true, want false")
	}

	msgs := c.Messages("7")
	if len(msgs) != 5 {
		t.Fatalf("len(Messages) = %d, want 5", len(msgs))
	}
	if msgs[0].ID != "4" {
		t.Errorf("oldest kept = %s, want 4", msgs[0].ID)
	}
	if s := c.Stats(); s.Applied != 0 {
		t.Errorf("Applied = %d, want 0", s.Applied)
	}
}

func TestTrim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits = NoLimit()
	c := newTestCache(t, cfg)

	for i := 1; i <= 30; i++ {
		c.Apply(ev("GUILD_AUDIT_LOG_ENTRY_CREATE", &protocol.GuildAuditLogEntryCreate{
			AuditLogEntry: model.AuditLogEntry{ID: sf(strconv.Itoa(i)), GuildID: "10"},
		}))
	}
	if evicted := c.Trim(); len(evicted) != 0 {
		t.Errorf("Trim() with NoLimit = %v, want nothing", evicted)
	}

	c.cfg.Limits = ConstantLimit(10)
	evicted := c.Trim()
	if evicted[CollectionAuditLogs] != 20 {
		t.Errorf("evicted audit logs = %d, want 20", evicted[CollectionAuditLogs])
	}
	logs := c.AuditLogs("10")
	if len(logs) != 10 {
		t.Fatalf("len(AuditLogs) = %d, want 10", len(logs))
	}
	if logs[0].ID != "21" {
		t.Errorf("oldest kept = %s, want 21", logs[0].ID)
	}
}

func TestItemsLimit_EvictEvery(t *testing.T) {
	tests := []struct {
		name  string
		limit ItemsLimit
		want  uint64
	}{
		{"no limit", NoLimit(), 0},
		{"unbounded default", ItemsLimit{}, 0},
		{"small", ConstantLimit(5), 1},
		{"hundred", ConstantLimit(100), 10},
		{"large", ConstantLimit(50000), 1000},
		{"smallest custom", ItemsLimit{Default: 1000, Custom: map[Collection]int{CollectionBans: 40}}, 4},
		{"custom disables", ItemsLimit{Default: 0, Custom: map[Collection]int{CollectionBans: -1}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limit.evictEvery(); got != tt.want {
				t.Errorf("evictEvery() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMessagePolicy_ShouldCache(t *testing.T) {
	tests := []struct {
		name    string
		policy  MessagePolicy
		guild   *model.Snowflake
		channel model.Snowflake
		want    bool
	}{
		{"default caches all", MessagePolicy{}, sfp("1"), "2", true},
		{"disabled", MessagePolicy{Disabled: true}, sfp("1"), "2", false},
		{"guild listed", MessagePolicy{Guilds: []model.Snowflake{"1"}}, sfp("1"), "2", true},
		{"guild not listed", MessagePolicy{Guilds: []model.Snowflake{"1"}}, sfp("3"), "2", false},
		{"dm with guild filter", MessagePolicy{Guilds: []model.Snowflake{"1"}}, nil, "2", false},
		{"channel listed", MessagePolicy{Channels: []model.Snowflake{"2"}}, nil, "2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.ShouldCache(tt.guild, tt.channel); got != tt.want {
				t.Errorf("ShouldCache() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApply_MessageLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Messages.KeepEdits = true
	cfg.Messages.KeepDeleted = true
	c := newTestCache(t, cfg)
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))

	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{
		ID: "100", ChannelID: "20", GuildID: sfp("10"), Content: "hello", Pinned: false,
		Embeds: []model.Embed{{Title: strp("e")}},
	}}))

	ch, _ := c.Channel("20")
	if ch.LastMessageID == nil || *ch.LastMessageID != "100" {
		t.Errorf("LastMessageID = %v, want 100", ch.LastMessageID)
	}

	pinned := true
	if !c.Apply(ev("MESSAGE_UPDATE", &protocol.MessageUpdate{
		ID: "100", ChannelID: "20", GuildID: sfp("10"), Content: strp("hello, world"), Pinned: &pinned,
	})) {
		t.Fatal("Apply(MESSAGE_UPDATE) = false, want true")
	}

	m, ok := c.Message("20", "100")
	if !ok {
		t.Fatal("Message not found")
	}
	if m.Content != "hello, world" || !m.Pinned {
		t.Errorf("merged message = %q pinned=%v, want %q pinned=true", m.Content, m.Pinned, "hello, world")
	}
	if len(m.Embeds) != 1 {
		t.Errorf("len(Embeds) = %d, want 1 (not carried by the update)", len(m.Embeds))
	}
	history := c.EditHistory("20", "100")
	if len(history) != 1 || history[0].Content != "hello" {
		t.Errorf("EditHistory = %+v, want the original version", history)
	}

	c.Apply(ev("MESSAGE_DELETE", &protocol.MessageDelete{ID: "100", ChannelID: "20", GuildID: sfp("10")}))

	if _, ok := c.Message("20", "100"); ok {
		t.Error("message still cached after delete")
	}
	if h := c.EditHistory("20", "100"); len(h) != 0 {
		t.Errorf("EditHistory after delete = %d entries, want 0", len(h))
	}
	deleted := c.DeletedMessages("20")
	if len(deleted) != 1 {
		t.Fatalf("len(DeletedMessages) = %d, want 1", len(deleted))
	}
	if deleted[0].Message.Content != "hello, world" || len(deleted[0].History) != 1 {
		t.Errorf("tombstone = %+v, want last version plus one edit", deleted[0])
	}

	if c.Apply(ev("MESSAGE_DELETE", &protocol.MessageDelete{ID: "100", ChannelID: "20"})) {
		t.Error("second delete = true, want false")
	}
}

func TestApply_MessageDeleteBulk(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	for _, id := range []string{"1", "2", "3"} {
		c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: sf(id), ChannelID: "5"}}))
	}

	c.Apply(ev("MESSAGE_DELETE_BULK", &protocol.MessageDeleteBulk{IDs: []model.Snowflake{"1", "3", "9"}, ChannelID: "5"}))

	msgs := c.Messages("5")
	if len(msgs) != 1 || msgs[0].ID != "2" {
		t.Errorf("Messages = %+v, want only 2", msgs)
	}
	if got := c.DeletedMessages("5"); len(got) != 0 {
		t.Errorf("DeletedMessages without KeepDeleted = %d, want 0", len(got))
	}
}

func TestApply_Reactions(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("READY", &protocol.Ready{User: model.User{ID: "900"}}))
	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "1", ChannelID: "5"}}))

	thumbs := model.Emoji{Name: strp("👍")}
	custom := model.Emoji{ID: sfp("77"), Name: strp("party")}

	c.Apply(ev("MESSAGE_REACTION_ADD", &protocol.MessageReactionAdd{ChannelID: "5", MessageID: "1", UserID: "2", Emoji: thumbs}))
	c.Apply(ev("MESSAGE_REACTION_ADD", &protocol.MessageReactionAdd{ChannelID: "5", MessageID: "1", UserID: "900", Emoji: thumbs}))
	c.Apply(ev("MESSAGE_REACTION_ADD", &protocol.MessageReactionAdd{ChannelID: "5", MessageID: "1", UserID: "3", Emoji: custom, Burst: true}))

	m, _ := c.Message("5", "1")
	if len(m.Reactions) != 2 {
		t.Fatalf("len(Reactions) = %d, want 2", len(m.Reactions))
	}
	r := m.Reactions[0]
	if r.Count != 2 || r.CountDetails.Normal != 2 || !r.Me {
		t.Errorf("thumbs = %+v, want count 2, normal 2, me", r)
	}
	if b := m.Reactions[1]; b.Count != 1 || b.CountDetails.Burst != 1 || b.MeBurst {
		t.Errorf("custom = %+v, want count 1, burst 1, not me", b)
	}

	c.Apply(ev("MESSAGE_REACTION_REMOVE", &protocol.MessageReactionRemove{ChannelID: "5", MessageID: "1", UserID: "900", Emoji: thumbs}))
	m, _ = c.Message("5", "1")
	if r := m.Reactions[0]; r.Count != 1 || r.Me {
		t.Errorf("after own removal = %+v, want count 1, not me", r)
	}

	c.Apply(ev("MESSAGE_REACTION_REMOVE", &protocol.MessageReactionRemove{ChannelID: "5", MessageID: "1", UserID: "2", Emoji: thumbs}))
	m, _ = c.Message("5", "1")
	if len(m.Reactions) != 1 || m.Reactions[0].Emoji.Key() != "77" {
		t.Errorf("Reactions = %+v, want only the custom emoji", m.Reactions)
	}

	c.Apply(ev("MESSAGE_REACTION_REMOVE_EMOJI", &protocol.MessageReactionRemoveEmoji{ChannelID: "5", MessageID: "1", Emoji: custom}))
	m, _ = c.Message("5", "1")
	if len(m.Reactions) != 0 {
		t.Errorf("Reactions after remove emoji = %+v, want none", m.Reactions)
	}
}

func TestApply_ScheduledEventUsers(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))

	add := &protocol.GuildScheduledEventUserAdd{GuildScheduledEventID: "30", UserID: "1", GuildID: "10"}
	remove := &protocol.GuildScheduledEventUserRemove{GuildScheduledEventID: "30", UserID: "1", GuildID: "10"}

	tests := []struct {
		name      string
		event     protocol.Event
		changed   bool
		wantCount int
		wantUsers int
	}{
		{"add", ev("GUILD_SCHEDULED_EVENT_USER_ADD", add), true, 1, 1},
		{"duplicate add", ev("GUILD_SCHEDULED_EVENT_USER_ADD", add), false, 1, 1},
		{"remove", ev("GUILD_SCHEDULED_EVENT_USER_REMOVE", remove), true, 0, 0},
		{"remove absent", ev("GUILD_SCHEDULED_EVENT_USER_REMOVE", remove), false, 0, 0},
	}

	for _, tt := range tests {
		if got := c.Apply(tt.event); got != tt.changed {
			t.Errorf("%s: Apply() = %v, want %v", tt.name, got, tt.changed)
		}
		g, _ := c.Guild("10")
		se := g.GuildScheduledEvents[0]
		if se.UserCount == nil || *se.UserCount != tt.wantCount {
			t.Errorf("%s: UserCount = %v, want %d", tt.name, se.UserCount, tt.wantCount)
		}
		if len(se.UserIDs) != tt.wantUsers {
			t.Errorf("%s: len(UserIDs) = %d, want %d", tt.name, len(se.UserIDs), tt.wantUsers)
		}
	}

	c.Apply(ev("GUILD_SCHEDULED_EVENT_USER_ADD", add))
	c.Apply(ev("GUILD_SCHEDULED_EVENT_UPDATE", &protocol.GuildScheduledEventUpdate{
		ScheduledEvent: model.ScheduledEvent{ID: "30", GuildID: "10", Name: "renamed"},
	}))
	g, _ := c.Guild("10")
	if se := g.GuildScheduledEvents[0]; se.Name != "renamed" || len(se.UserIDs) != 1 {
		t.Errorf("after update = %+v, want renamed with subscribers kept", se)
	}
}

func TestApply_GuildPatches(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))

	c.Apply(ev("GUILD_MEMBER_ADD", &protocol.GuildMemberAdd{GuildID: "10", Member: model.Member{User: &model.User{ID: "2"}}}))
	c.Apply(ev("GUILD_ROLE_DELETE", &protocol.GuildRoleDelete{GuildID: "10", RoleID: "11"}))
	c.Apply(ev("GUILD_UPDATE", &protocol.GuildUpdate{Guild: model.Guild{ID: "10", Name: "renamed"}}))
	c.Apply(ev("VOICE_STATE_UPDATE", &protocol.VoiceStateUpdate{VoiceState: model.VoiceState{GuildID: sfp("10"), ChannelID: sfp("20"), UserID: "1"}}))

	g, _ := c.Guild("10")
	if g.Name != "renamed" {
		t.Errorf("Name = %q, want renamed", g.Name)
	}
	if g.MemberCount != 2 || len(g.Members) != 2 {
		t.Errorf("members = %d (count %d), want 2 (count 2)", len(g.Members), g.MemberCount)
	}
	if len(g.Roles) != 1 {
		t.Errorf("len(Roles) = %d, want 1", len(g.Roles))
	}
	if m, _ := c.Member("10", "1"); len(m.Roles) != 0 {
		t.Errorf("member roles = %v, want deleted role stripped", m.Roles)
	}
	if len(g.Channels) != 1 || len(g.VoiceStates) != 1 {
		t.Errorf("nested collections lost: channels=%d voice=%d", len(g.Channels), len(g.VoiceStates))
	}

	c.Apply(ev("VOICE_STATE_UPDATE", &protocol.VoiceStateUpdate{VoiceState: model.VoiceState{GuildID: sfp("10"), UserID: "1"}}))
	c.Apply(ev("GUILD_MEMBER_REMOVE", &protocol.GuildMemberRemove{GuildID: "10", User: model.User{ID: "2"}}))
	g, _ = c.Guild("10")
	if len(g.VoiceStates) != 0 || len(g.Members) != 1 || g.MemberCount != 1 {
		t.Errorf("after leave: voice=%d members=%d count=%d, want 0 1 1", len(g.VoiceStates), len(g.Members), g.MemberCount)
	}
}

func TestApply_GuildDelete(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))
	c.Apply(ev("GUILD_BAN_ADD", &protocol.GuildBanAdd{GuildID: "10", User: model.User{ID: "3"}}))
	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "1", ChannelID: "20", GuildID: sfp("10")}}))
	c.Apply(ev("INVITE_CREATE", &protocol.InviteCreate{Invite: model.Invite{Code: "abc", GuildID: sfp("10"), ChannelID: "20"}}))

	c.Apply(ev("GUILD_DELETE", &protocol.GuildDelete{UnavailableGuild: model.UnavailableGuild{ID: "10", Unavailable: true}}))
	g, ok := c.Guild("10")
	if !ok || !g.Unavailable || len(g.Channels) != 1 {
		t.Fatalf("outage: guild = %+v, ok = %v, want kept and unavailable", g, ok)
	}

	c.Apply(ev("GUILD_DELETE", &protocol.GuildDelete{UnavailableGuild: model.UnavailableGuild{ID: "10"}}))
	if _, ok := c.Guild("10"); ok {
		t.Error("guild still cached after leaving")
	}
	if len(c.Bans("10")) != 0 || len(c.Messages("20")) != 0 || len(c.Invites(sfp("10"), "20")) != 0 {
		t.Error("guild-keyed collections not cleared")
	}
}

func TestApply_ThreadListSync(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	g := testGuild()
	g.Threads = []model.Channel{
		{ID: "40", ParentID: sfp("20")},
		{ID: "41", ParentID: sfp("21")},
	}
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: g}))

	c.Apply(ev("THREAD_LIST_SYNC", &protocol.ThreadListSync{
		GuildID:    "10",
		ChannelIDs: []model.Snowflake{"20"},
		Threads:    []model.Channel{{ID: "42", ParentID: sfp("20")}},
	}))

	got, _ := c.Guild("10")
	ids := make([]model.Snowflake, 0, len(got.Threads))
	for _, th := range got.Threads {
		ids = append(ids, th.ID)
	}
	if len(ids) != 2 || ids[0] != "41" || ids[1] != "42" {
		t.Errorf("threads = %v, want [41 42]", ids)
	}
}

type fakeRequester struct {
	reqs []protocol.RequestGuildMembers
	err  error
}

func (f *fakeRequester) RequestGuildMembers(req protocol.RequestGuildMembers) error {
	f.reqs = append(f.reqs, req)
	return f.err
}

func TestApply_MemberRequestPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy MemberRequestPolicy
		guild  model.Guild
		want   int
	}{
		{"none", MemberRequestPolicy{Mode: MemberRequestNone}, testGuild(), 0},
		{"all", MemberRequestPolicy{Mode: MemberRequestAll, Presences: true}, testGuild(), 1},
		{"listed guild", MemberRequestPolicy{Mode: MemberRequestGuilds, Guilds: []model.Snowflake{"10"}}, testGuild(), 1},
		{"unlisted guild", MemberRequestPolicy{Mode: MemberRequestGuilds, Guilds: []model.Snowflake{"11"}}, testGuild(), 0},
		{"unavailable", MemberRequestPolicy{Mode: MemberRequestAll}, model.Guild{ID: "10", Unavailable: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &fakeRequester{err: errors.New("not connected")}
			cfg := DefaultConfig()
			cfg.MemberRequests = tt.policy
			c := newTestCache(t, cfg, WithMemberRequester(req))

			if !c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: tt.guild})) {
				t.Error("Apply(GUILD_CREATE) = false, want true")
			}
			if len(req.reqs) != tt.want {
				t.Fatalf("requests = %d, want %d", len(req.reqs), tt.want)
			}
			if tt.want == 0 {
				return
			}
			got := req.reqs[0]
			if got.GuildID != "10" || got.Query == nil || *got.Query != "" || got.Limit != 0 {
				t.Errorf("request = %+v, want all members of guild 10", got)
			}
			if got.Presences != tt.policy.Presences {
				t.Errorf("Presences = %v, want %v", got.Presences, tt.policy.Presences)
			}
		})
	}
}

func TestApply_IntentsFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Intents = model.NewBitField(model.IntentGuilds, model.IntentDirectMessages)
	c := newTestCache(t, cfg)

	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))

	if c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "1", ChannelID: "20", GuildID: sfp("10")}})) {
		t.Error("guild message applied without the guild messages intent")
	}
	if !c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "2", ChannelID: "50"}})) {
		t.Error("direct message dropped with the direct messages intent")
	}
	if c.Apply(ev("PRESENCE_UPDATE", &protocol.PresenceUpdate{Presence: model.Presence{User: model.PartialUser{ID: "1"}, GuildID: sfp("10")}})) {
		t.Error("presence applied without the presences intent")
	}
	if !c.Apply(ev("GUILD_MEMBERS_CHUNK", &protocol.GuildMembersChunk{GuildID: "10", Members: []model.Member{{User: &model.User{ID: "5"}}}})) {
		t.Error("member chunk dropped; chunks are not gated by intents")
	}
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Messages.KeepDeleted = true
	c := newTestCache(t, cfg)

	c.Apply(ev("READY", &protocol.Ready{User: model.User{ID: "900", Username: "bot"}, Application: model.Application{ID: "901"}}))
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))
	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "1", ChannelID: "20", GuildID: sfp("10")}}))
	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "2", ChannelID: "20", GuildID: sfp("10")}}))
	c.Apply(ev("MESSAGE_DELETE", &protocol.MessageDelete{ID: "1", ChannelID: "20", GuildID: sfp("10")}))
	c.Apply(ev("MESSAGE_POLL_VOTE_ADD", &protocol.MessagePollVoteAdd{UserID: "3", ChannelID: "20", MessageID: "2", AnswerID: 1}))
	c.Apply(ev("ENTITLEMENT_CREATE", &protocol.EntitlementCreate{Entitlement: model.Entitlement{ID: "60"}}))
	c.Apply(ev("AUTO_MODERATION_RULE_CREATE", &protocol.AutoModerationRuleCreate{AutoModerationRule: model.AutoModerationRule{ID: "70", GuildID: "10"}}))

	data := snapshotJSON(t, c)
	s, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot() error = %v", err)
	}

	restored := newTestCache(t, cfg, WithSnapshot(s))
	if got := snapshotJSON(t, restored); !bytes.Equal(got, data) {
		t.Errorf("restored snapshot differs:\n%s\n%s", got, data)
	}
	if u, ok := restored.CurrentUser(); !ok || u.Username != "bot" {
		t.Errorf("CurrentUser() = %+v, %v, want bot", u, ok)
	}
	if votes := restored.PollVotes("20", "2"); len(votes) != 1 {
		t.Errorf("PollVotes = %v, want 1 vote", votes)
	}

	if _, err := UnmarshalSnapshot([]byte(`{"guilds": [], "future_field": 1}`)); err != nil {
		t.Errorf("UnmarshalSnapshot() with unknown field error = %v", err)
	}
}

func TestSnapshot_IsDetached(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))

	s := c.Snapshot()
	s.Guilds[0].Roles[0].Name = "changed"
	s.Guilds[0].Members[0].Roles[0] = "99"

	g, _ := c.Guild("10")
	g.Channels[0].Position = 42

	got, _ := c.Guild("10")
	if got.Roles[0].Name != "@everyone" {
		t.Errorf("role name = %q, snapshot mutation leaked", got.Roles[0].Name)
	}
	if got.Members[0].Roles[0] != "11" {
		t.Errorf("member role = %s, snapshot mutation leaked", got.Members[0].Roles[0])
	}
	if got.Channels[0].Position != 0 {
		t.Errorf("channel position = %d, accessor mutation leaked", got.Channels[0].Position)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	c.Apply(ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()}))
	c.Apply(ev("MESSAGE_CREATE", &protocol.MessageCreate{Message: model.Message{ID: "1", ChannelID: "20", GuildID: sfp("10")}}))
	c.Apply(ev("TYPING_START", &protocol.TypingStart{ChannelID: "20", UserID: "1"}))

	s := c.Stats()
	if s.Applied != 2 {
		t.Errorf("Applied = %d, want 2", s.Applied)
	}
	if s.Sizes[CollectionGuilds] != 1 || s.Sizes[CollectionMessages] != 1 || s.Sizes[CollectionMembers] != 1 {
		t.Errorf("Sizes = %v, want 1 guild, 1 message, 1 member", s.Sizes)
	}
}

func TestRun(t *testing.T) {
	c := newTestCache(t, DefaultConfig())
	events := make(chan protocol.Event, 2)
	events <- ev("GUILD_CREATE", &protocol.GuildCreate{Guild: testGuild()})
	events <- ev("CHANNEL_CREATE", &protocol.ChannelCreate{Channel: model.Channel{ID: "50", Type: 1}})
	close(events)

	if err := c.Run(context.Background(), events); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, ok := c.Channel("50"); !ok {
		t.Error("DM channel not cached")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx, make(chan protocol.Event)); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want %v", err, context.DeadlineExceeded)
	}
}
