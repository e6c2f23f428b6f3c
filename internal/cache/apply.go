package cache

import (
	"slices"
	"strings"

	"github.com/rickgao/gateway-cache/internal/model"
	"github.com/rickgao/gateway-cache/internal/protocol"
)

// apply mutates the store under c.mu. Stored values never alias payload
// slices: other subscribers hold the same payload.
func (c *Cache) apply(p protocol.Payload) (bool, *protocol.RequestGuildMembers) {
	st := c.st

	switch e := p.(type) {
	case *protocol.Ready:
		u, a := e.User, e.Application
		st.currentUser, st.currentApplication = &u, &a
		for _, ug := range e.Guilds {
			if _, ok := st.guilds.get(ug.ID); !ok {
				st.guilds.put(ug.ID, model.Guild{ID: ug.ID, Unavailable: true})
			}
		}
		return true, nil
	case *protocol.UserUpdate:
		u := e.User
		st.currentUser = &u
		return true, nil

	case *protocol.GuildCreate:
		return true, c.guildCreate(e.Guild)
	case *protocol.GuildUpdate:
		return c.guildUpdate(e.Guild), nil
	case *protocol.GuildDelete:
		return c.guildDelete(e.UnavailableGuild), nil
	}

	return c.applyGuildScoped(p) || c.applyChannelScoped(p) || c.applyMessage(p) || c.applyOther(p), nil
}

// -----------------------------------------------------------------------------
// Guild lifecycle
// -----------------------------------------------------------------------------

func (c *Cache) guildCreate(in model.Guild) *protocol.RequestGuildMembers {
	g := cloneGuild(in)
	id := g.ID
	for i := range g.Channels {
		g.Channels[i].GuildID = &id
	}
	for i := range g.Threads {
		g.Threads[i].GuildID = &id
	}
	c.st.guilds.put(id, g)

	if g.Unavailable || !c.cfg.MemberRequests.ShouldRequest(id) {
		return nil
	}
	query := ""
	return &protocol.RequestGuildMembers{
		GuildID:   id,
		Query:     &query,
		Limit:     0,
		Presences: c.cfg.MemberRequests.Presences,
	}
}

// guildUpdate replaces top-level fields and keeps the nested collections
// that GUILD_UPDATE does not carry.
func (c *Cache) guildUpdate(in model.Guild) bool {
	g, ok := c.st.guilds.get(in.ID)
	if !ok {
		return false
	}
	old := *g
	ng := cloneGuild(in)
	ng.Channels = old.Channels
	ng.Threads = old.Threads
	ng.Members = old.Members
	ng.VoiceStates = old.VoiceStates
	ng.Presences = old.Presences
	ng.StageInstances = old.StageInstances
	ng.GuildScheduledEvents = old.GuildScheduledEvents
	ng.SoundboardSounds = old.SoundboardSounds
	ng.MemberCount = old.MemberCount
	ng.Large = old.Large
	if ng.Roles == nil {
		ng.Roles = old.Roles
	}
	if ng.Emojis == nil {
		ng.Emojis = old.Emojis
	}
	if ng.Stickers == nil {
		ng.Stickers = old.Stickers
	}
	*g = ng
	return true
}

// guildDelete marks the guild unavailable during an outage and forgets it,
// with every guild-keyed collection, when the bot left.
func (c *Cache) guildDelete(in model.UnavailableGuild) bool {
	st := c.st
	if in.Unavailable {
		if g, ok := st.guilds.get(in.ID); ok {
			g.Unavailable = true
		} else {
			st.guilds.put(in.ID, model.Guild{ID: in.ID, Unavailable: true})
		}
		return true
	}

	g, ok := st.guilds.remove(in.ID)
	if ok {
		for _, ch := range slices.Concat(g.Channels, g.Threads) {
			c.forgetChannel(ch.ID)
		}
	}
	delete(st.integrations, in.ID)
	delete(st.autoModRules, in.ID)
	delete(st.autoModExecs, in.ID)
	delete(st.auditLogs, in.ID)
	delete(st.bans, in.ID)
	prefix := string(in.ID) + "/"
	for k := range st.invites {
		if strings.HasPrefix(k, prefix) {
			delete(st.invites, k)
		}
	}
	return ok
}

// forgetChannel drops the live messages, edit history and votes of a channel.
// Tombstones are kept.
func (c *Cache) forgetChannel(id model.Snowflake) {
	delete(c.st.messages, id)
	delete(c.st.edits, id)
	delete(c.st.pollVotes, id)
}

// -----------------------------------------------------------------------------
// Guild-scoped patches. A missing guild makes every patch a no-op.
// -----------------------------------------------------------------------------

func (c *Cache) applyGuildScoped(p protocol.Payload) bool {
	st := c.st

	switch e := p.(type) {
	case *protocol.GuildAuditLogEntryCreate:
		st.auditLogs[e.GuildID] = upsert(st.auditLogs[e.GuildID], e.AuditLogEntry, auditLogKey)
		return true
	case *protocol.GuildBanAdd:
		st.bans[e.GuildID] = upsert(st.bans[e.GuildID], model.Ban{User: e.User}, banKey)
		return true
	case *protocol.GuildBanRemove:
		var removed bool
		st.bans[e.GuildID], removed = removeKey(st.bans[e.GuildID], e.User.ID, banKey)
		return removed
	}

	var guildID model.Snowflake
	switch e := p.(type) {
	case *protocol.GuildEmojisUpdate:
		guildID = e.GuildID
	case *protocol.GuildStickersUpdate:
		guildID = e.GuildID
	case *protocol.GuildMemberAdd:
		guildID = e.GuildID
	case *protocol.GuildMemberUpdate:
		guildID = e.GuildID
	case *protocol.GuildMemberRemove:
		guildID = e.GuildID
	case *protocol.GuildMembersChunk:
		guildID = e.GuildID
	case *protocol.GuildRoleCreate:
		guildID = e.GuildID
	case *protocol.GuildRoleUpdate:
		guildID = e.GuildID
	case *protocol.GuildRoleDelete:
		guildID = e.GuildID
	case *protocol.GuildScheduledEventCreate:
		guildID = e.GuildID
	case *protocol.GuildScheduledEventUpdate:
		guildID = e.GuildID
	case *protocol.GuildScheduledEventDelete:
		guildID = e.GuildID
	case *protocol.GuildScheduledEventUserAdd:
		guildID = e.GuildID
	case *protocol.GuildScheduledEventUserRemove:
		guildID = e.GuildID
	case *protocol.StageInstanceCreate:
		guildID = e.GuildID
	case *protocol.StageInstanceUpdate:
		guildID = e.GuildID
	case *protocol.StageInstanceDelete:
		guildID = e.GuildID
	case *protocol.PresenceUpdate:
		if e.GuildID == nil {
			return false
		}
		guildID = *e.GuildID
	case *protocol.VoiceStateUpdate:
		if e.GuildID == nil {
			return false
		}
		guildID = *e.GuildID
	default:
		return false
	}

	g, ok := st.guilds.get(guildID)
	if !ok {
		return false
	}
	return patchGuild(g, p)
}

func patchGuild(g *model.Guild, p protocol.Payload) bool {
	var removed bool

	switch e := p.(type) {
	case *protocol.GuildEmojisUpdate:
		g.Emojis = slices.Clone(e.Emojis)
	case *protocol.GuildStickersUpdate:
		g.Stickers = slices.Clone(e.Stickers)

	case *protocol.GuildMemberAdd:
		if !slices.ContainsFunc(g.Members, func(m model.Member) bool { return m.UserID() == e.UserID() }) {
			g.MemberCount++
		}
		g.Members = upsert(g.Members, cloneMember(e.Member), memberKey)
	case *protocol.GuildMemberUpdate:
		g.Members = upsert(g.Members, cloneMember(e.Member), memberKey)
	case *protocol.GuildMemberRemove:
		g.Members, _ = removeKey(g.Members, e.User.ID, memberKey)
		if g.MemberCount > 0 {
			g.MemberCount--
		}
	case *protocol.GuildMembersChunk:
		for _, m := range e.Members {
			g.Members = upsert(g.Members, cloneMember(m), memberKey)
		}
		for _, pr := range e.Presences {
			g.Presences = upsert(g.Presences, pr, presenceKey)
		}

	case *protocol.GuildRoleCreate:
		g.Roles = upsert(g.Roles, e.Role, roleKey)
	case *protocol.GuildRoleUpdate:
		g.Roles = upsert(g.Roles, e.Role, roleKey)
	case *protocol.GuildRoleDelete:
		g.Roles, removed = removeKey(g.Roles, e.RoleID, roleKey)
		for i := range g.Members {
			g.Members[i].Roles = slices.DeleteFunc(g.Members[i].Roles, func(id model.Snowflake) bool {
				return id == e.RoleID
			})
		}
		return removed

	case *protocol.GuildScheduledEventCreate:
		ev := e.ScheduledEvent
		ev.UserIDs = slices.Clone(ev.UserIDs)
		g.GuildScheduledEvents = upsert(g.GuildScheduledEvents, ev, scheduledEventKey)
	case *protocol.GuildScheduledEventUpdate:
		ev := e.ScheduledEvent
		ev.UserIDs = slices.Clone(ev.UserIDs)
		if old := findScheduledEvent(g, ev.ID); old != nil {
			if ev.UserIDs == nil {
				ev.UserIDs = old.UserIDs
			}
			if ev.UserCount == nil {
				ev.UserCount = old.UserCount
			}
		}
		g.GuildScheduledEvents = upsert(g.GuildScheduledEvents, ev, scheduledEventKey)
	case *protocol.GuildScheduledEventDelete:
		g.GuildScheduledEvents, removed = removeKey(g.GuildScheduledEvents, e.ID, scheduledEventKey)
		return removed
	case *protocol.GuildScheduledEventUserAdd:
		ev := findScheduledEvent(g, e.GuildScheduledEventID)
		if ev == nil || slices.Contains(ev.UserIDs, e.UserID) {
			return false
		}
		ev.UserIDs = append(ev.UserIDs, e.UserID)
		n := 1
		if ev.UserCount != nil {
			n += *ev.UserCount
		}
		ev.UserCount = &n
	case *protocol.GuildScheduledEventUserRemove:
		ev := findScheduledEvent(g, e.GuildScheduledEventID)
		if ev == nil {
			return false
		}
		ev.UserIDs, removed = removeKey(ev.UserIDs, e.UserID, identity[model.Snowflake])
		if !removed {
			return false
		}
		n := 0
		if ev.UserCount != nil && *ev.UserCount > 0 {
			n = *ev.UserCount - 1
		}
		ev.UserCount = &n

	case *protocol.StageInstanceCreate:
		g.StageInstances = upsert(g.StageInstances, e.StageInstance, stageKey)
	case *protocol.StageInstanceUpdate:
		g.StageInstances = upsert(g.StageInstances, e.StageInstance, stageKey)
	case *protocol.StageInstanceDelete:
		g.StageInstances, removed = removeKey(g.StageInstances, e.ID, stageKey)
		return removed

	case *protocol.PresenceUpdate:
		g.Presences = upsert(g.Presences, e.Presence, presenceKey)
	case *protocol.VoiceStateUpdate:
		if e.ChannelID == nil {
			g.VoiceStates, removed = removeKey(g.VoiceStates, e.UserID, voiceStateKey)
			return removed
		}
		g.VoiceStates = upsert(g.VoiceStates, e.VoiceState, voiceStateKey)

	default:
		return false
	}
	return true
}

func findScheduledEvent(g *model.Guild, id model.Snowflake) *model.ScheduledEvent {
	for i := range g.GuildScheduledEvents {
		if g.GuildScheduledEvents[i].ID == id {
			return &g.GuildScheduledEvents[i]
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Channels and threads
// -----------------------------------------------------------------------------

// findChannel searches a guild's channels and then its threads.
func findChannel(g *model.Guild, id model.Snowflake) (*model.Channel, bool) {
	for i := range g.Channels {
		if g.Channels[i].ID == id {
			return &g.Channels[i], true
		}
	}
	for i := range g.Threads {
		if g.Threads[i].ID == id {
			return &g.Threads[i], true
		}
	}
	return nil, false
}

// channelRef returns the stored channel, nested in its guild when guildID is set.
func (c *Cache) channelRef(guildID *model.Snowflake, id model.Snowflake) (*model.Channel, bool) {
	if guildID == nil {
		return c.st.channels.get(id)
	}
	g, ok := c.st.guilds.get(*guildID)
	if !ok {
		return nil, false
	}
	return findChannel(g, id)
}

func (c *Cache) applyChannelScoped(p protocol.Payload) bool {
	st := c.st
	var removed bool

	switch e := p.(type) {
	case *protocol.ChannelCreate:
		return c.putChannel(e.Channel)
	case *protocol.ChannelUpdate:
		return c.putChannel(e.Channel)
	case *protocol.ChannelDelete:
		if e.GuildID == nil {
			_, removed = st.channels.remove(e.ID)
		} else if g, ok := st.guilds.get(*e.GuildID); ok {
			g.Channels, removed = removeKey(g.Channels, e.ID, channelKey)
		}
		c.forgetChannel(e.ID)
		return removed
	case *protocol.ChannelPinsUpdate:
		ch, ok := c.channelRef(e.GuildID, e.ChannelID)
		if !ok {
			return false
		}
		ch.LastPinTimestamp = e.LastPinTimestamp
		return true

	case *protocol.ThreadCreate:
		return c.putThread(e.Channel)
	case *protocol.ThreadUpdate:
		return c.putThread(e.Channel)
	case *protocol.ThreadDelete:
		g, ok := st.guilds.get(e.GuildID)
		if !ok {
			return false
		}
		g.Threads, removed = removeKey(g.Threads, e.ID, channelKey)
		c.forgetChannel(e.ID)
		return removed
	case *protocol.ThreadListSync:
		g, ok := st.guilds.get(e.GuildID)
		if !ok {
			return false
		}
		if len(e.ChannelIDs) == 0 {
			g.Threads = nil
		} else {
			g.Threads = slices.DeleteFunc(g.Threads, func(t model.Channel) bool {
				return t.ParentID != nil && slices.Contains(e.ChannelIDs, *t.ParentID)
			})
		}
		id := e.GuildID
		for _, t := range e.Threads {
			t = cloneChannel(t)
			t.GuildID = &id
			g.Threads = upsert(g.Threads, t, channelKey)
		}
		return true
	case *protocol.ThreadMembersUpdate:
		g, ok := st.guilds.get(e.GuildID)
		if !ok {
			return false
		}
		for i := range g.Threads {
			if g.Threads[i].ID == e.ID {
				g.Threads[i].MemberCount = e.MemberCount
				return true
			}
		}
		return false
	}
	return false
}

func (c *Cache) putChannel(ch model.Channel) bool {
	ch = cloneChannel(ch)
	if ch.GuildID == nil {
		c.st.channels.put(ch.ID, ch)
		return true
	}
	g, ok := c.st.guilds.get(*ch.GuildID)
	if !ok {
		return false
	}
	g.Channels = upsert(g.Channels, ch, channelKey)
	return true
}

func (c *Cache) putThread(t model.Channel) bool {
	if t.GuildID == nil {
		return false
	}
	g, ok := c.st.guilds.get(*t.GuildID)
	if !ok {
		return false
	}
	g.Threads = upsert(g.Threads, cloneChannel(t), channelKey)
	return true
}

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

func (c *Cache) message(channelID, id model.Snowflake) (*model.Message, bool) {
	o, ok := c.st.messages[channelID]
	if !ok {
		return nil, false
	}
	return o.get(id)
}

func (c *Cache) applyMessage(p protocol.Payload) bool {
	st := c.st

	switch e := p.(type) {
	case *protocol.MessageCreate:
		changed := c.bumpLastMessage(e.GuildID, e.ChannelID, e.ID)
		if !c.cfg.Messages.ShouldCache(e.GuildID, e.ChannelID) {
			return changed
		}
		o, ok := st.messages[e.ChannelID]
		if !ok {
			o = newOrdered[model.Message]()
			st.messages[e.ChannelID] = o
		}
		o.put(e.ID, cloneMessage(e.Message))
		return true
	case *protocol.MessageUpdate:
		return c.messageUpdate(e)
	case *protocol.MessageDelete:
		return c.deleteMessage(e.ChannelID, e.ID)
	case *protocol.MessageDeleteBulk:
		changed := false
		for _, id := range e.IDs {
			if c.deleteMessage(e.ChannelID, id) {
				changed = true
			}
		}
		return changed

	case *protocol.MessageReactionAdd:
		m, ok := c.message(e.ChannelID, e.MessageID)
		if !ok {
			return false
		}
		c.addReaction(m, e)
		return true
	case *protocol.MessageReactionRemove:
		m, ok := c.message(e.ChannelID, e.MessageID)
		if !ok {
			return false
		}
		return c.removeReaction(m, e)
	case *protocol.MessageReactionRemoveAll:
		m, ok := c.message(e.ChannelID, e.MessageID)
		if !ok || len(m.Reactions) == 0 {
			return false
		}
		m.Reactions = nil
		return true
	case *protocol.MessageReactionRemoveEmoji:
		m, ok := c.message(e.ChannelID, e.MessageID)
		if !ok {
			return false
		}
		var removed bool
		m.Reactions, removed = removeKey(m.Reactions, e.Emoji.Key(), reactionKey)
		return removed

	case *protocol.MessagePollVoteAdd:
		byMsg, ok := st.pollVotes[e.ChannelID]
		if !ok {
			byMsg = make(map[model.Snowflake][]PollVote)
			st.pollVotes[e.ChannelID] = byMsg
		}
		v := PollVote{UserID: e.UserID, AnswerID: e.AnswerID}
		if slices.Contains(byMsg[e.MessageID], v) {
			return false
		}
		byMsg[e.MessageID] = append(byMsg[e.MessageID], v)
		return true
	case *protocol.MessagePollVoteRemove:
		byMsg := st.pollVotes[e.ChannelID]
		if byMsg == nil {
			return false
		}
		var removed bool
		byMsg[e.MessageID], removed = removeKey(byMsg[e.MessageID], PollVote{UserID: e.UserID, AnswerID: e.AnswerID}, pollVoteKey)
		if len(byMsg[e.MessageID]) == 0 {
			delete(byMsg, e.MessageID)
		}
		return removed
	}
	return false
}

// bumpLastMessage advances the channel's last_message_id and a thread's message count.
func (c *Cache) bumpLastMessage(guildID *model.Snowflake, channelID, messageID model.Snowflake) bool {
	ch, ok := c.channelRef(guildID, channelID)
	if !ok {
		return false
	}
	id := messageID
	ch.LastMessageID = &id
	if ch.ThreadMetadata != nil {
		ch.MessageCount++
	}
	return true
}

// messageUpdate merges only the fields the update carries. Updates for
// messages that are not cached are dropped.
func (c *Cache) messageUpdate(e *protocol.MessageUpdate) bool {
	m, ok := c.message(e.ChannelID, e.ID)
	if !ok {
		return false
	}

	if c.cfg.Messages.KeepEdits {
		byMsg, ok := c.st.edits[e.ChannelID]
		if !ok {
			byMsg = make(map[model.Snowflake][]model.Message)
			c.st.edits[e.ChannelID] = byMsg
		}
		byMsg[e.ID] = append(byMsg[e.ID], cloneMessage(*m))
	}

	if e.Author != nil {
		u := *e.Author
		m.Author = &u
	}
	if e.Content != nil {
		m.Content = *e.Content
	}
	if e.EditedTimestamp != nil {
		m.EditedTimestamp = e.EditedTimestamp
	}
	if e.Mentions != nil {
		m.Mentions = slices.Clone(*e.Mentions)
	}
	if e.MentionRoles != nil {
		m.MentionRoles = slices.Clone(*e.MentionRoles)
	}
	if e.Attachments != nil {
		m.Attachments = slices.Clone(*e.Attachments)
	}
	if e.Embeds != nil {
		m.Embeds = slices.Clone(*e.Embeds)
	}
	if e.Pinned != nil {
		m.Pinned = *e.Pinned
	}
	if e.Flags != nil {
		f := *e.Flags
		m.Flags = &f
	}
	if e.Poll != nil {
		m.Poll = e.Poll
	}
	if e.Reactions != nil {
		m.Reactions = slices.Clone(*e.Reactions)
	}
	if e.Reference != nil {
		m.MessageReference = e.Reference
	}
	return true
}

// deleteMessage removes a message and, with KeepDeleted, keeps a tombstone
// carrying its edit history.
func (c *Cache) deleteMessage(channelID, id model.Snowflake) bool {
	st := c.st
	history := st.edits[channelID][id]
	if byMsg, ok := st.edits[channelID]; ok {
		delete(byMsg, id)
	}
	if byMsg, ok := st.pollVotes[channelID]; ok {
		delete(byMsg, id)
	}

	o, ok := st.messages[channelID]
	if !ok {
		return false
	}
	m, ok := o.remove(id)
	if !ok {
		return false
	}
	if c.cfg.Messages.KeepDeleted {
		st.deleted[channelID] = append(st.deleted[channelID], DeletedMessage{Message: m, History: history})
	}
	return true
}

func (c *Cache) isCurrentUser(id model.Snowflake) bool {
	return c.st.currentUser != nil && c.st.currentUser.ID == id
}

func (c *Cache) addReaction(m *model.Message, e *protocol.MessageReactionAdd) {
	key := e.Emoji.Key()
	i := slices.IndexFunc(m.Reactions, func(r model.Reaction) bool { return r.Emoji.Key() == key })
	if i < 0 {
		m.Reactions = append(m.Reactions, model.Reaction{
			Emoji:       e.Emoji,
			BurstColors: slices.Clone(e.BurstColors),
		})
		i = len(m.Reactions) - 1
	}

	r := &m.Reactions[i]
	r.Count++
	me := c.isCurrentUser(e.UserID)
	if e.Burst {
		r.CountDetails.Burst++
		r.MeBurst = r.MeBurst || me
	} else {
		r.CountDetails.Normal++
		r.Me = r.Me || me
	}
}

func (c *Cache) removeReaction(m *model.Message, e *protocol.MessageReactionRemove) bool {
	key := e.Emoji.Key()
	i := slices.IndexFunc(m.Reactions, func(r model.Reaction) bool { return r.Emoji.Key() == key })
	if i < 0 {
		return false
	}

	r := &m.Reactions[i]
	r.Count--
	me := c.isCurrentUser(e.UserID)
	if e.Burst {
		r.CountDetails.Burst = max(r.CountDetails.Burst-1, 0)
		r.MeBurst = r.MeBurst && !me
	} else {
		r.CountDetails.Normal = max(r.CountDetails.Normal-1, 0)
		r.Me = r.Me && !me
	}
	if r.Count <= 0 {
		m.Reactions = slices.Delete(m.Reactions, i, i+1)
	}
	return true
}

// -----------------------------------------------------------------------------
// Guild-keyed and global collections
// -----------------------------------------------------------------------------

func (c *Cache) applyOther(p protocol.Payload) bool {
	st := c.st
	var removed bool

	switch e := p.(type) {
	case *protocol.AutoModerationRuleCreate:
		st.autoModRules[e.GuildID] = upsert(st.autoModRules[e.GuildID], cloneRule(e.AutoModerationRule), ruleKey)
	case *protocol.AutoModerationRuleUpdate:
		st.autoModRules[e.GuildID] = upsert(st.autoModRules[e.GuildID], cloneRule(e.AutoModerationRule), ruleKey)
	case *protocol.AutoModerationRuleDelete:
		st.autoModRules[e.GuildID], removed = removeKey(st.autoModRules[e.GuildID], e.ID, ruleKey)
		return removed
	case *protocol.AutoModerationActionExecution:
		st.autoModExecs[e.GuildID] = append(st.autoModExecs[e.GuildID], e.AutoModerationExecution)

	case *protocol.EntitlementCreate:
		st.entitlements.put(e.ID, e.Entitlement)
	case *protocol.EntitlementUpdate:
		st.entitlements.put(e.ID, e.Entitlement)
	case *protocol.EntitlementDelete:
		_, removed = st.entitlements.remove(e.ID)
		return removed

	case *protocol.IntegrationCreate:
		return c.putIntegration(e.Integration)
	case *protocol.IntegrationUpdate:
		return c.putIntegration(e.Integration)
	case *protocol.IntegrationDelete:
		st.integrations[e.GuildID], removed = removeKey(st.integrations[e.GuildID], e.ID, integrationKey)
		return removed

	case *protocol.InviteCreate:
		key := InviteKey(e.GuildID, e.ChannelID)
		st.invites[key] = upsert(st.invites[key], e.Invite, inviteKey)
	case *protocol.InviteDelete:
		key := InviteKey(e.GuildID, e.ChannelID)
		st.invites[key], removed = removeKey(st.invites[key], e.Code, inviteKey)
		return removed

	case *protocol.ApplicationCommandPermissionsUpdate:
		st.commandPerms.put(e.ID, cloneCommandPermissions(e.CommandPermissions))

	default:
		return false
	}
	return true
}

func (c *Cache) putIntegration(in model.Integration) bool {
	if in.GuildID == nil {
		return false
	}
	id := *in.GuildID
	c.st.integrations[id] = upsert(c.st.integrations[id], in, integrationKey)
	return true
}

func cloneRule(r model.AutoModerationRule) model.AutoModerationRule {
	r.ExemptRoles = slices.Clone(r.ExemptRoles)
	return r
}
