package cache

import (
	"slices"

	"github.com/rickgao/gateway-cache/internal/model"
)

// Storage is the serialisable form of the cache. Lists are oldest first.
type Storage struct {
	CurrentUser                   *model.User                                             `json:"current_user,omitempty"`
	CurrentApplication            *model.Application                                      `json:"current_application,omitempty"`
	Guilds                        []model.Guild                                           `json:"guilds"`
	Channels                      []model.Channel                                         `json:"channels"`
	Messages                      map[model.Snowflake][]model.Message                     `json:"messages"`
	EditedMessages                map[model.Snowflake]map[model.Snowflake][]model.Message `json:"edited_messages"`
	DeletedMessages               map[model.Snowflake][]DeletedMessage                    `json:"deleted_messages"`
	Integrations                  map[model.Snowflake][]model.Integration                 `json:"integrations"`
	AutoModerationRules           map[model.Snowflake][]model.AutoModerationRule          `json:"auto_moderation_rules"`
	AutoModerationExecutions      map[model.Snowflake][]model.AutoModerationExecution     `json:"auto_moderation_executions,omitempty"`
	AuditLogs                     map[model.Snowflake][]model.AuditLogEntry               `json:"audit_logs"`
	Bans                          map[model.Snowflake][]model.Ban                         `json:"bans,omitempty"`
	Invites                       map[string][]model.Invite                               `json:"invites"`
	Entitlements                  []model.Entitlement                                     `json:"entitlements"`
	PollVotes                     map[model.Snowflake]map[model.Snowflake][]PollVote      `json:"poll_votes"`
	ApplicationCommandPermissions []model.CommandPermissions                              `json:"application_command_permissions,omitempty"`
}

// DeletedMessage is a tombstone: the last known version and its edit history.
type DeletedMessage struct {
	Message model.Message   `json:"message"`
	History []model.Message `json:"history,omitempty"`
}

// PollVote is one user's vote for one answer.
type PollVote struct {
	UserID   model.Snowflake `json:"user_id"`
	AnswerID int             `json:"answer_id"`
}

// InviteKey keys the Invites collection as "guild/channel"; DM invites use an empty guild.
func InviteKey(guildID *model.Snowflake, channelID model.Snowflake) string {
	g := ""
	if guildID != nil {
		g = string(*guildID)
	}
	return g + "/" + string(channelID)
}

// ordered is an insertion-ordered map. Replacing a value keeps its position.
type ordered[V any] struct {
	keys  []model.Snowflake
	items map[model.Snowflake]*V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{items: make(map[model.Snowflake]*V)}
}

func (o *ordered[V]) get(k model.Snowflake) (*V, bool) {
	v, ok := o.items[k]
	return v, ok
}

func (o *ordered[V]) put(k model.Snowflake, v V) {
	if p, ok := o.items[k]; ok {
		*p = v
		return
	}
	o.keys = append(o.keys, k)
	o.items[k] = &v
}

func (o *ordered[V]) remove(k model.Snowflake) (V, bool) {
	p, ok := o.items[k]
	if !ok {
		var zero V
		return zero, false
	}
	delete(o.items, k)
	if i := slices.Index(o.keys, k); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
	return *p, true
}

func (o *ordered[V]) len() int {
	return len(o.keys)
}

// trim drops the oldest entries beyond limit and returns how many went.
func (o *ordered[V]) trim(limit int) int {
	n := len(o.keys) - limit
	if n <= 0 {
		return 0
	}
	for _, k := range o.keys[:n] {
		delete(o.items, k)
	}
	o.keys = append([]model.Snowflake(nil), o.keys[n:]...)
	return n
}

func (o *ordered[V]) values(clone func(V) V) []V {
	out := make([]V, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, clone(*o.items[k]))
	}
	return out
}

// store is the live state behind a Cache.
type store struct {
	currentUser        *model.User
	currentApplication *model.Application

	guilds       *ordered[model.Guild]
	channels     *ordered[model.Channel]
	entitlements *ordered[model.Entitlement]
	commandPerms *ordered[model.CommandPermissions]

	messages  map[model.Snowflake]*ordered[model.Message]
	edits     map[model.Snowflake]map[model.Snowflake][]model.Message
	deleted   map[model.Snowflake][]DeletedMessage
	pollVotes map[model.Snowflake]map[model.Snowflake][]PollVote

	integrations map[model.Snowflake][]model.Integration
	autoModRules map[model.Snowflake][]model.AutoModerationRule
	autoModExecs map[model.Snowflake][]model.AutoModerationExecution
	auditLogs    map[model.Snowflake][]model.AuditLogEntry
	bans         map[model.Snowflake][]model.Ban
	invites      map[string][]model.Invite
}

func newStore() *store {
	return &store{
		guilds:       newOrdered[model.Guild](),
		channels:     newOrdered[model.Channel](),
		entitlements: newOrdered[model.Entitlement](),
		commandPerms: newOrdered[model.CommandPermissions](),
		messages:     make(map[model.Snowflake]*ordered[model.Message]),
		edits:        make(map[model.Snowflake]map[model.Snowflake][]model.Message),
		deleted:      make(map[model.Snowflake][]DeletedMessage),
		pollVotes:    make(map[model.Snowflake]map[model.Snowflake][]PollVote),
		integrations: make(map[model.Snowflake][]model.Integration),
		autoModRules: make(map[model.Snowflake][]model.AutoModerationRule),
		autoModExecs: make(map[model.Snowflake][]model.AutoModerationExecution),
		auditLogs:    make(map[model.Snowflake][]model.AuditLogEntry),
		bans:         make(map[model.Snowflake][]model.Ban),
		invites:      make(map[string][]model.Invite),
	}
}

// storeFrom rebuilds live state from a snapshot. The snapshot is not retained.
func storeFrom(s *Storage) *store {
	st := newStore()
	if s == nil {
		return st
	}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		st.currentUser = &u
	}
	if s.CurrentApplication != nil {
		a := *s.CurrentApplication
		st.currentApplication = &a
	}
	for _, g := range s.Guilds {
		st.guilds.put(g.ID, cloneGuild(g))
	}
	for _, c := range s.Channels {
		st.channels.put(c.ID, cloneChannel(c))
	}
	for _, e := range s.Entitlements {
		st.entitlements.put(e.ID, e)
	}
	for _, p := range s.ApplicationCommandPermissions {
		st.commandPerms.put(p.ID, cloneCommandPermissions(p))
	}
	for ch, msgs := range s.Messages {
		o := newOrdered[model.Message]()
		for _, m := range msgs {
			o.put(m.ID, cloneMessage(m))
		}
		st.messages[ch] = o
	}
	for ch, byMsg := range s.EditedMessages {
		st.edits[ch] = cloneNested(byMsg, cloneMessages)
	}
	for ch, v := range s.DeletedMessages {
		st.deleted[ch] = cloneDeleted(v)
	}
	for ch, byMsg := range s.PollVotes {
		st.pollVotes[ch] = cloneNested(byMsg, slices.Clone[[]PollVote])
	}
	copyKeyed(st.integrations, s.Integrations)
	copyKeyed(st.autoModRules, s.AutoModerationRules)
	copyKeyed(st.autoModExecs, s.AutoModerationExecutions)
	copyKeyed(st.auditLogs, s.AuditLogs)
	copyKeyed(st.bans, s.Bans)
	copyKeyed(st.invites, s.Invites)
	return st
}

// storage copies live state into its serialisable form.
func (st *store) storage() *Storage {
	s := &Storage{
		Guilds:                        st.guilds.values(cloneGuild),
		Channels:                      st.channels.values(cloneChannel),
		Entitlements:                  st.entitlements.values(identity[model.Entitlement]),
		ApplicationCommandPermissions: st.commandPerms.values(cloneCommandPermissions),
		Messages:                      make(map[model.Snowflake][]model.Message, len(st.messages)),
		EditedMessages:                make(map[model.Snowflake]map[model.Snowflake][]model.Message, len(st.edits)),
		DeletedMessages:               make(map[model.Snowflake][]DeletedMessage, len(st.deleted)),
		PollVotes:                     make(map[model.Snowflake]map[model.Snowflake][]PollVote, len(st.pollVotes)),
		Integrations:                  make(map[model.Snowflake][]model.Integration, len(st.integrations)),
		AutoModerationRules:           make(map[model.Snowflake][]model.AutoModerationRule, len(st.autoModRules)),
		AutoModerationExecutions:      make(map[model.Snowflake][]model.AutoModerationExecution, len(st.autoModExecs)),
		AuditLogs:                     make(map[model.Snowflake][]model.AuditLogEntry, len(st.auditLogs)),
		Bans:                          make(map[model.Snowflake][]model.Ban, len(st.bans)),
		Invites:                       make(map[string][]model.Invite, len(st.invites)),
	}
	if st.currentUser != nil {
		u := *st.currentUser
		s.CurrentUser = &u
	}
	if st.currentApplication != nil {
		a := *st.currentApplication
		s.CurrentApplication = &a
	}
	for ch, o := range st.messages {
		s.Messages[ch] = o.values(cloneMessage)
	}
	for ch, byMsg := range st.edits {
		s.EditedMessages[ch] = cloneNested(byMsg, cloneMessages)
	}
	for ch, v := range st.deleted {
		s.DeletedMessages[ch] = cloneDeleted(v)
	}
	for ch, byMsg := range st.pollVotes {
		s.PollVotes[ch] = cloneNested(byMsg, slices.Clone[[]PollVote])
	}
	copyKeyed(s.Integrations, st.integrations)
	copyKeyed(s.AutoModerationRules, st.autoModRules)
	copyKeyed(s.AutoModerationExecutions, st.autoModExecs)
	copyKeyed(s.AuditLogs, st.auditLogs)
	copyKeyed(s.Bans, st.bans)
	copyKeyed(s.Invites, st.invites)
	return s
}

// -----------------------------------------------------------------------------
// Copy helpers
// -----------------------------------------------------------------------------

// Apply replaces values and slice elements in place but never writes through
// pointers held by entities, so copying every slice is enough to detach a
// reader's view from later mutations.

func identity[V any](v V) V { return v }

func copyKeyed[K comparable, V any](dst, src map[K][]V) {
	for k, v := range src {
		dst[k] = slices.Clone(v)
	}
}

func cloneNested[V any](src map[model.Snowflake]V, clone func(V) V) map[model.Snowflake]V {
	out := make(map[model.Snowflake]V, len(src))
	for k, v := range src {
		out[k] = clone(v)
	}
	return out
}

func cloneGuild(g model.Guild) model.Guild {
	g.Features = slices.Clone(g.Features)
	g.Roles = slices.Clone(g.Roles)
	g.Emojis = slices.Clone(g.Emojis)
	g.Stickers = slices.Clone(g.Stickers)
	g.Channels = cloneChannels(g.Channels)
	g.Threads = cloneChannels(g.Threads)
	g.Members = cloneMembers(g.Members)
	g.VoiceStates = slices.Clone(g.VoiceStates)
	g.Presences = slices.Clone(g.Presences)
	g.StageInstances = slices.Clone(g.StageInstances)
	g.GuildScheduledEvents = cloneScheduledEvents(g.GuildScheduledEvents)
	g.SoundboardSounds = slices.Clone(g.SoundboardSounds)
	return g
}

func cloneChannel(c model.Channel) model.Channel {
	c.Recipients = slices.Clone(c.Recipients)
	return c
}

func cloneChannels(cs []model.Channel) []model.Channel {
	if cs == nil {
		return nil
	}
	out := make([]model.Channel, len(cs))
	for i, c := range cs {
		out[i] = cloneChannel(c)
	}
	return out
}

func cloneMember(m model.Member) model.Member {
	m.Roles = slices.Clone(m.Roles)
	return m
}

func cloneMembers(ms []model.Member) []model.Member {
	if ms == nil {
		return nil
	}
	out := make([]model.Member, len(ms))
	for i, m := range ms {
		out[i] = cloneMember(m)
	}
	return out
}

func cloneScheduledEvents(es []model.ScheduledEvent) []model.ScheduledEvent {
	if es == nil {
		return nil
	}
	out := make([]model.ScheduledEvent, len(es))
	for i, e := range es {
		e.UserIDs = slices.Clone(e.UserIDs)
		out[i] = e
	}
	return out
}

func cloneMessage(m model.Message) model.Message {
	m.Mentions = slices.Clone(m.Mentions)
	m.MentionRoles = slices.Clone(m.MentionRoles)
	m.Attachments = slices.Clone(m.Attachments)
	m.Embeds = slices.Clone(m.Embeds)
	m.Reactions = slices.Clone(m.Reactions)
	return m
}

func cloneMessages(ms []model.Message) []model.Message {
	if ms == nil {
		return nil
	}
	out := make([]model.Message, len(ms))
	for i, m := range ms {
		out[i] = cloneMessage(m)
	}
	return out
}

func cloneDeleted(ds []DeletedMessage) []DeletedMessage {
	if ds == nil {
		return nil
	}
	out := make([]DeletedMessage, len(ds))
	for i, d := range ds {
		out[i] = DeletedMessage{Message: cloneMessage(d.Message), History: cloneMessages(d.History)}
	}
	return out
}

func cloneCommandPermissions(p model.CommandPermissions) model.CommandPermissions {
	p.Permissions = slices.Clone(p.Permissions)
	return p
}

// -----------------------------------------------------------------------------
// Slice helpers
// -----------------------------------------------------------------------------

// upsert replaces the first element matching v's key or appends v.
func upsert[T any, K comparable](list []T, v T, key func(T) K) []T {
	k := key(v)
	for i := range list {
		if key(list[i]) == k {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

// removeKey drops every element with key k and reports whether any matched.
func removeKey[T any, K comparable](list []T, k K, key func(T) K) ([]T, bool) {
	n := len(list)
	list = slices.DeleteFunc(list, func(v T) bool { return key(v) == k })
	return list, len(list) != n
}

// trimOldest keeps the newest limit elements.
func trimOldest[T any](list []T, limit int) ([]T, int) {
	n := len(list) - limit
	if n <= 0 {
		return list, 0
	}
	return append([]T(nil), list[n:]...), n
}

func roleKey(r model.Role) model.Snowflake { return r.ID }
func channelKey(c model.Channel) model.Snowflake { return c.ID }
func memberKey(m model.Member) model.Snowflake { return m.UserID() }
func voiceStateKey(v model.VoiceState) model.Snowflake { return v.UserID }
func presenceKey(p model.Presence) model.Snowflake { return p.User.ID }
func stageKey(s model.StageInstance) model.Snowflake { return s.ID }
func scheduledEventKey(e model.ScheduledEvent) model.Snowflake { return e.ID }
func integrationKey(i model.Integration) model.Snowflake { return i.ID }
func ruleKey(r model.AutoModerationRule) model.Snowflake { return r.ID }
func auditLogKey(e model.AuditLogEntry) model.Snowflake { return e.ID }
func banKey(b model.Ban) model.Snowflake { return b.User.ID }
func inviteKey(i model.Invite) string { return i.Code }
func reactionKey(r model.Reaction) string { return r.Emoji.Key() }
func pollVoteKey(v PollVote) PollVote { return v }
