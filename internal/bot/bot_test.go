package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"guildkeeper/internal/bugs"
	"guildkeeper/internal/leveling"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voiceUpdate(userID, channelID string, before *discordgo.VoiceState) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState:   &discordgo.VoiceState{GuildID: "g1", UserID: userID, ChannelID: channelID},
		BeforeUpdate: before,
	}
}

func TestVoiceEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ev, ok := voiceEvent(voiceUpdate("u1", "c2", &discordgo.VoiceState{ChannelID: "c1"}), "tracked", "afk", at)
	require.True(t, ok)
	assert.Equal(t, "c1", ev.OldChannelID)
	assert.Equal(t, "c2", ev.NewChannelID)
	assert.Equal(t, "afk", ev.AFKChannelID)
	assert.Equal(t, "g1", ev.GuildID)
	assert.Equal(t, at, ev.At)

	ev, ok = voiceEvent(voiceUpdate("u1", "", nil), "c3", "", at)
	require.True(t, ok)
	assert.Equal(t, "c3", ev.OldChannelID, "tracked channel stands in for a missing previous state")
	assert.Empty(t, ev.NewChannelID)

	bot := voiceUpdate("u2", "c1", nil)
	bot.Member = &discordgo.Member{User: &discordgo.User{ID: "u2", Bot: true}}
	_, ok = voiceEvent(bot, "", "", at)
	assert.False(t, ok)

	_, ok = voiceEvent(&discordgo.VoiceStateUpdate{}, "", "", at)
	assert.False(t, ok)
}

func TestStateResolverVoiceChannel(t *testing.T) {
	ctx := context.Background()
	state := discordgo.NewState()
	resolver := &stateResolver{state: state}

	_, _, err := resolver.VoiceChannel(ctx, "g1", "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, discordgo.ErrStateNotFound)

	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "g1", AfkChannelID: "afk"}))
	channelID, afkChannelID, err := resolver.VoiceChannel(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, channelID)
	assert.Equal(t, "afk", afkChannelID)

	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID:           "g2",
		AfkChannelID: "afk",
		VoiceStates:  []*discordgo.VoiceState{{GuildID: "g2", UserID: "u1", ChannelID: "talk"}},
	}))
	channelID, afkChannelID, err = resolver.VoiceChannel(ctx, "g2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "talk", channelID)
	assert.Equal(t, "afk", afkChannelID)
}

func TestPrestigeRoleSwap(t *testing.T) {
	prestigeRoles := []string{"p1", "p2", "p3"}

	add, remove := prestigeRoleSwap(prestigeRoles, "p2", []string{"member", "p1"})
	assert.Equal(t, "p2", add)
	assert.Equal(t, []string{"p1"}, remove)

	add, remove = prestigeRoleSwap(prestigeRoles, "p2", []string{"p2", "p3"})
	assert.Empty(t, add)
	assert.Equal(t, []string{"p3"}, remove)

	add, remove = prestigeRoleSwap(prestigeRoles, "", []string{"p1"})
	assert.Empty(t, add)
	assert.Equal(t, []string{"p1"}, remove)
}

func TestLevelUpEmbed(t *testing.T) {
	user := &discordgo.User{ID: "u1", Username: "alice"}
	levelUp := leveling.LevelUp{UserID: "u1", OldLevel: 4, NewLevel: 5, XP: 1234, NextRequiredXP: 1500, At: time.Now()}

	embed := levelUpEmbed(user, levelUp, nil, nil, 0x3498DB)
	assert.Equal(t, 0x3498DB, embed.Color)
	assert.Contains(t, embed.Description, "**5**")
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "1,234 / 1,500", embed.Fields[0].Value)

	change := &leveling.PrestigeChange{UserID: "u1", OldPrestige: 0, NewPrestige: 1, Tier: storage.PrestigeTier{Name: "Bronze", Color: "#CD7F32", XPBoost: 0.05}}
	embed = levelUpEmbed(user, levelUp, []string{"r1", "r2"}, change, 0x3498DB)
	assert.Equal(t, 0xCD7F32, embed.Color)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "<@&r1>, <@&r2>", embed.Fields[1].Value)
	assert.Contains(t, embed.Fields[2].Value, "Bronze Prestige")
	assert.Contains(t, embed.Fields[2].Value, "+5%")
}

func TestLeaderboardText(t *testing.T) {
	assert.Equal(t, "No users found in the leaderboard yet.", leaderboardText(nil, storage.PrestigeSettings{}))

	prestiges := storage.PrestigeSettings{Prestiges: map[int]storage.PrestigeTier{1: {Name: "Bronze"}}}
	entries := []leveling.LeaderboardEntry{
		{UserID: "a", Level: 12, XP: 4000, Prestige: 1},
		{UserID: "b", Level: 10, XP: 3000},
		{UserID: "c", Level: 9, XP: 2500},
		{UserID: "d", Level: 3, XP: 700},
	}
	lines := strings.Split(leaderboardText(entries, prestiges), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "🥇 <@a> • Level 12 • 4,000 XP • ⭐ Bronze", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "🥈 <@b>"))
	assert.True(t, strings.HasPrefix(lines[2], "🥉 <@c>"))
	assert.Equal(t, "`#4` <@d> • Level 3 • 700 XP", lines[3])
}

func TestOptionSet(t *testing.T) {
	options := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name: "set",
			Type: discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "level", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
				{Name: "xp_boost", Type: discordgo.ApplicationCommandOptionNumber, Value: 0.1},
				{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "Gold"},
				{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "r9"},
				{Name: "flag", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
			},
		},
	}

	name, opts := subcommand(options)
	assert.Equal(t, "set", name)

	level, ok := opts.integer("level")
	assert.True(t, ok)
	assert.Equal(t, int64(3), level)

	boost, ok := opts.number("xp_boost")
	assert.True(t, ok)
	assert.InDelta(t, 0.1, boost, 1e-9)

	str, _ := opts.str("name")
	assert.Equal(t, "Gold", str)

	role, ok := opts.id("role")
	assert.True(t, ok)
	assert.Equal(t, "r9", role)

	flag, ok := opts.boolean("flag")
	assert.True(t, ok)
	assert.True(t, flag)

	_, ok = opts.str("missing")
	assert.False(t, ok)

	name, _ = subcommand(nil)
	assert.Empty(t, name)
}

func TestHasPermission(t *testing.T) {
	withPerms := func(perms int64) *discordgo.InteractionCreate {
		return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: "m"}, Permissions: perms},
		}}
	}

	assert.True(t, isAdmin(withPerms(discordgo.PermissionAdministrator)))
	assert.False(t, isAdmin(withPerms(discordgo.PermissionBanMembers)))
	assert.True(t, canModerate(withPerms(discordgo.PermissionKickMembers)))
	assert.True(t, canModerate(withPerms(discordgo.PermissionAdministrator)))
	assert.False(t, canModerate(withPerms(discordgo.PermissionSendMessages)))
	assert.False(t, hasPermission(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}, discordgo.PermissionBanMembers))

	assert.True(t, isModerator(discordgo.PermissionModerateMembers))
	assert.False(t, isModerator(discordgo.PermissionSendMessages))
}

func TestSmallFormatters(t *testing.T) {
	assert.Equal(t, "45m", formatMinutes(45))
	assert.Equal(t, "2h 5m", formatMinutes(125))

	color, ok := hexColorInt("#FF8800")
	assert.True(t, ok)
	assert.Equal(t, 0xFF8800, color)
	_, ok = hexColorInt("nope")
	assert.False(t, ok)

	assert.Equal(t, "No reason provided", reasonOrDefault("  "))
	assert.Equal(t, "spam", reasonOrDefault("spam"))
}

func TestCommandDefinitions(t *testing.T) {
	defs := commandDefinitions()
	require.Len(t, defs, 18)

	seen := make(map[string]bool)
	for _, def := range defs {
		assert.False(t, seen[def.Name], "duplicate command %s", def.Name)
		seen[def.Name] = true
		assert.NotEmpty(t, def.Description, def.Name)
	}
	for _, name := range []string{"rank", "leaderboard", "ranks", "prestige", "stats", "help", "echo", "warn", "mute", "unmute", "kick", "ban", "unban", "infractions", "modsettings", "bug", "bug-stats", "set-bug-channel"} {
		assert.True(t, seen[name], "missing command %s", name)
	}

	help := helpEmbed(defs, 0x5865F2)
	require.Len(t, help.Fields, len(defs))
	assert.Equal(t, "/rank", help.Fields[0].Name)
}

func TestBugReportEmbedAndButtons(t *testing.T) {
	report := storage.BugReport{
		ID:          "abc",
		Title:       "Crash",
		Description: "It crashed",
		Steps:       bugs.NoSteps,
		ReporterID:  "u1",
		Status:      bugs.StatusUnderReview,
		Links:       []string{"https://example.com/a"},
		CreatedAt:   time.Now(),
	}
	status, err := bugs.Lookup(bugs.StatusUnderReview)
	require.NoError(t, err)

	embed := bugReportEmbed(report, status, "alice", "")
	assert.Equal(t, "Bug Report: Crash", embed.Title)
	assert.Equal(t, 0xFF0000, embed.Color)
	require.Len(t, embed.Fields, 5)
	assert.Equal(t, "alice (u1)", embed.Fields[2].Value)
	assert.Equal(t, "🔍 Under Review", embed.Fields[3].Value)
	assert.Equal(t, "Links", embed.Fields[4].Name)

	fixed, _ := bugs.Lookup(bugs.StatusFixed)
	embed = bugReportEmbed(report, fixed, "alice", "bob at now")
	assert.Equal(t, 0x2ECC71, embed.Color)
	assert.Equal(t, "Resolution By", embed.Fields[len(embed.Fields)-1].Name)

	rows := bugButtons("abc")
	require.Len(t, rows, 1)
	row, ok := rows[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 4)
	first := row.Components[0].(discordgo.Button)
	assert.Equal(t, bugs.ButtonID(bugs.StatusInProgress, "abc"), first.CustomID)
	assert.Equal(t, discordgo.PrimaryButton, first.Style)

	statusKey, reportID, err := bugs.ParseButtonID(first.CustomID)
	require.NoError(t, err)
	assert.Equal(t, bugs.StatusInProgress, statusKey)
	assert.Equal(t, "abc", reportID)
}

func TestBugStatsEmbed(t *testing.T) {
	stats := bugs.Stats{Total: 4, ByStatus: map[string]int{bugs.StatusFixed: 3, bugs.StatusUnderReview: 1}}
	embed := bugStatsEmbed(stats)
	require.Len(t, embed.Fields, 1+len(bugs.AllStatuses))
	assert.Equal(t, "4", embed.Fields[0].Value)
	assert.Equal(t, "1 (25%)", embed.Fields[1].Value)
	assert.Equal(t, "3 (75%)", embed.Fields[3].Value)
}

func TestModalValues(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		CustomID: bugs.ModalID,
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: bugs.FieldTitle, Value: "T"}}},
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{&discordgo.TextInput{CustomID: bugs.FieldDescription, Value: "D"}}},
		},
	}
	values := modalValues(data)
	assert.Equal(t, "T", values[bugs.FieldTitle])
	assert.Equal(t, "D", values[bugs.FieldDescription])
	assert.Empty(t, values[bugs.FieldSteps])
}

func TestInfractionEmbeds(t *testing.T) {
	user := &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"}
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	var list []storage.Infraction
	for i := 0; i < 23; i++ {
		list = append(list, storage.Infraction{ID: fmt.Sprintf("id%d", i), UserID: "u1", Type: moderation.TypeWarn, ModeratorID: "m1", CreatedAt: created, Active: true})
	}
	counts := moderation.Counts{Total: 23, Warn: 23, Active: 23}

	embeds := infractionEmbeds(user, list, counts, moderation.Filter{Type: "all"})
	require.Len(t, embeds, 4)
	assert.Equal(t, "23", embeds[0].Fields[0].Value)
	assert.Len(t, embeds[1].Fields, 10)
	assert.Len(t, embeds[3].Fields, 3)
	assert.Contains(t, embeds[1].Fields[0].Name, "Warn")
	assert.Contains(t, embeds[1].Fields[0].Name, "🔴 Active")
	assert.Contains(t, embeds[1].Fields[0].Value, "No reason provided")

	assert.Equal(t, "alice has no active mute.", noInfractionsText(user, moderation.Filter{Type: "mute", ActiveOnly: true}))
	assert.Equal(t, "alice has no infraction history.", noInfractionsText(user, moderation.Filter{Type: "all"}))
}

func TestAuditEmbed(t *testing.T) {
	entry := audit.Entry{
		Action:       moderation.TypeMute,
		UserID:       "u1",
		ModeratorID:  "m1",
		Reason:       "spam",
		InfractionID: "inf1",
		Duration:     2 * time.Hour,
		CreatedAt:    time.Now(),
	}
	embed := auditEmbed(entry)
	assert.Equal(t, "Moderation Action: Mute", embed.Title)
	assert.Equal(t, moderation.Color(moderation.TypeMute), embed.Color)
	assert.Equal(t, "<@m1>", embed.Fields[1].Value)
	assert.Equal(t, "Infraction ID", embed.Fields[len(embed.Fields)-1].Name)

	entry.Automatic = true
	entry.Duration = 0
	embed = auditEmbed(entry)
	assert.Equal(t, "Automatic", embed.Fields[1].Value)
}
