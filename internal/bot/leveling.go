package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"sort"
	"strconv"
	"strings"
	"time"

	"guildkeeper/internal/analytics"
	"guildkeeper/internal/leveling"
	"guildkeeper/internal/rankcard"
	"guildkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if !b.inScope(msg.GuildID) {
		return
	}

	ctx := context.Background()
	now := time.Now()
	if b.analytics != nil {
		if err := b.analytics.RecordMessage(ctx, msg.Author.ID, now); err != nil {
			b.storeError("record message", err, zap.String("user_id", msg.Author.ID))
		}
	}

	levelUp, err := b.leveling.AwardMessageXP(ctx, msg.Author.ID, now)
	if err != nil {
		b.storeError("award message xp", err, zap.String("user_id", msg.Author.ID))
		return
	}
	if levelUp == nil {
		return
	}

	granted, change := b.applyLevelRewards(ctx, msg.GuildID, msg.Author.ID, levelUp.NewLevel)
	if !b.cfg.Leveling.LevelUpNotifications {
		return
	}
	embed := levelUpEmbed(msg.Author, *levelUp, granted, change, b.cfg.EmbedColors.LevelUp)
	if _, err := session.ChannelMessageSendEmbed(msg.ChannelID, embed); err != nil {
		b.logger.Warn("failed to send level up message", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

// applyLevelRewards grants the level's role rewards the member lacks and swaps
// the prestige role when a new tier is reached. It returns the roles granted
// and the prestige change, if any.
func (b *Bot) applyLevelRewards(ctx context.Context, guildID, userID string, level int) ([]string, *leveling.PrestigeChange) {
	member, err := b.member(guildID, userID)
	if err != nil {
		b.logger.Warn("member lookup failed, rewards skipped", zap.String("user_id", userID), zap.Error(err))
		return nil, nil
	}

	var granted []string
	rewards, err := b.leveling.ResolveRoleRewards(ctx, userID, level)
	if err != nil {
		b.storeError("resolve role rewards", err, zap.String("user_id", userID))
	}
	for _, roleID := range leveling.MissingRoles(rewards, member.Roles) {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
			b.logger.Warn("failed to grant reward role", zap.String("user_id", userID), zap.String("role_id", roleID), zap.Error(err))
			continue
		}
		granted = append(granted, roleID)
	}

	change, err := b.leveling.ResolvePrestige(ctx, userID, level)
	if err != nil {
		b.storeError("resolve prestige", err, zap.String("user_id", userID))
		return granted, nil
	}
	if change == nil {
		return granted, nil
	}

	prestiges, err := b.leveling.PrestigeSettings(ctx)
	if err != nil {
		b.storeError("load prestige settings", err)
		return granted, change
	}
	add, remove := prestigeRoleSwap(leveling.PrestigeRoleIDs(prestiges), change.Tier.RoleID, member.Roles)
	for _, roleID := range remove {
		if err := b.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
			b.logger.Warn("failed to remove old prestige role", zap.String("user_id", userID), zap.String("role_id", roleID), zap.Error(err))
		}
	}
	if add != "" {
		if err := b.session.GuildMemberRoleAdd(guildID, userID, add); err != nil {
			b.logger.Warn("failed to grant prestige role", zap.String("user_id", userID), zap.String("role_id", add), zap.Error(err))
		}
	}
	return granted, change
}

// prestigeRoleSwap returns the prestige role to add and the other prestige
// roles the member holds that must go.
func prestigeRoleSwap(prestigeRoles []string, newRoleID string, current []string) (string, []string) {
	isPrestige := make(map[string]struct{}, len(prestigeRoles))
	for _, id := range prestigeRoles {
		isPrestige[id] = struct{}{}
	}

	hasNew := false
	var remove []string
	for _, id := range current {
		if id == newRoleID && id != "" {
			hasNew = true
			continue
		}
		if _, ok := isPrestige[id]; ok {
			remove = append(remove, id)
		}
	}
	if hasNew || newRoleID == "" {
		return "", remove
	}
	return newRoleID, remove
}

func (b *Bot) member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := b.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return b.session.GuildMember(guildID, userID)
}

func levelUpEmbed(user *discordgo.User, levelUp leveling.LevelUp, granted []string, change *leveling.PrestigeChange, color int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎉 Level Up!",
		Description: fmt.Sprintf("Congratulations, you've reached level **%d**!", levelUp.NewLevel),
		Color:       color,
		Author:      &discordgo.MessageEmbedAuthor{Name: user.Username, IconURL: user.AvatarURL("")},
		Timestamp:   levelUp.At.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "XP", Value: rankcard.FormatNumber(levelUp.XP) + " / " + rankcard.FormatNumber(levelUp.NextRequiredXP), Inline: true},
		},
	}
	if len(granted) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "🏆 Unlocked Roles",
			Value:  mentionRoles(granted),
			Inline: true,
		})
	}
	if change != nil {
		if color, ok := hexColorInt(change.Tier.Color); ok {
			embed.Color = color
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⭐ New Prestige",
			Value: fmt.Sprintf("You've achieved **%s Prestige**!\nXP Boost: +%d%%", change.Tier.Name, int(change.Tier.XPBoost*100)),
		})
	}
	return embed
}

func (b *Bot) handleRank(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	user := interactionUser(interaction)
	if id, ok := opts.id("user"); ok {
		user = b.resolvedUser(interaction, id)
	}
	if user.Bot {
		b.respondError(session, interaction, "Bots don't have ranks.")
		return
	}

	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.logger.Warn("failed to defer rank response", zap.Error(err))
		return
	}

	card, err := b.rankCard(ctx, user)
	if err != nil {
		b.storeError("render rank card", err, zap.String("user_id", user.ID))
		b.followup(interaction, &discordgo.WebhookParams{Content: "There was an error generating the rank card."})
		return
	}
	b.followup(interaction, &discordgo.WebhookParams{
		Files: []*discordgo.File{{Name: "rank-card.png", ContentType: "image/png", Reader: bytes.NewReader(card)}},
	})
}

func (b *Bot) rankCard(ctx context.Context, user *discordgo.User) ([]byte, error) {
	progress, calc, err := b.leveling.Progress(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	position, err := b.leveling.Position(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	prestiges, err := b.leveling.PrestigeSettings(ctx)
	if err != nil {
		return nil, err
	}

	card := rankcard.Card{
		Username: user.Username,
		Level:    progress.Level,
		XP:       progress.XP,
		Rank:     position,
		Prestige: progress.Prestige,
		Progress: rankcard.Progress(progress.XP, progress.Level, calc),
		Avatar:   b.avatar(user),
	}
	if tier, ok := prestiges.Prestiges[progress.Prestige]; ok && progress.Prestige > 0 {
		card.PrestigeName = tier.Name
		card.AccentColor = tier.Color
	}
	return b.cards.Render(card)
}

func (b *Bot) avatar(user *discordgo.User) image.Image {
	img, err := b.session.UserAvatarDecode(user)
	if err != nil {
		b.logger.Debug("avatar download failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}
	return img
}

func (b *Bot) followup(interaction *discordgo.InteractionCreate, params *discordgo.WebhookParams) {
	if _, err := b.session.FollowupMessageCreate(interaction.Interaction, true, params); err != nil {
		b.logger.Warn("followup message failed", zap.Error(err))
	}
}

func (b *Bot) handleLeaderboard(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	limit := leveling.DefaultLeaderboardLimit
	if value, ok := opts.integer("limit"); ok {
		limit = int(value)
	}
	entries, err := b.leveling.Leaderboard(ctx, limit)
	if err != nil {
		b.storeError("leaderboard", err)
		b.respondError(session, interaction, "There was an error loading the leaderboard.")
		return
	}
	prestiges, err := b.leveling.PrestigeSettings(ctx)
	if err != nil {
		b.storeError("load prestige settings", err)
	}
	embed := commandEmbed("🏆 Leaderboard", leaderboardText(entries, prestiges), b.cfg.EmbedColors.Primary, nil)
	if len(entries) > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Top %d users by rank", len(entries))}
	}
	b.respondEmbed(session, interaction, embed, false)
}

func leaderboardText(entries []leveling.LeaderboardEntry, prestiges storage.PrestigeSettings) string {
	if len(entries) == 0 {
		return "No users found in the leaderboard yet."
	}
	medals := []string{"🥇", "🥈", "🥉"}
	var sb strings.Builder
	for i, entry := range entries {
		position := fmt.Sprintf("`#%d`", i+1)
		if i < len(medals) {
			position = medals[i]
		}
		fmt.Fprintf(&sb, "%s <@%s> • Level %d • %s XP", position, entry.UserID, entry.Level, rankcard.FormatNumber(entry.XP))
		if tier, ok := prestiges.Prestiges[entry.Prestige]; ok && entry.Prestige > 0 {
			fmt.Fprintf(&sb, " • ⭐ %s", tier.Name)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) handleRanks(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(interaction) {
		b.respondError(session, interaction, "You need Administrator permission to manage ranks.")
		return
	}
	name, opts := subcommand(options)
	switch name {
	case "list":
		settings, err := b.leveling.RankSettings(ctx)
		if err != nil {
			b.storeError("load rank settings", err)
			b.respondError(session, interaction, "There was an error loading the rank settings.")
			return
		}
		b.respondEmbed(session, interaction, ranksEmbed(settings, b.cfg.EmbedColors.Primary), false)
	case "add":
		level, _ := opts.integer("level")
		roleID, _ := opts.id("role")
		if err := b.leveling.SetRoleReward(ctx, int(level), roleID); err != nil {
			b.settingsError(session, interaction, "set role reward", err)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Role <@&%s> will now be awarded at level %d.", roleID, level), false)
	case "remove":
		level, _ := opts.integer("level")
		roleID, err := b.leveling.RemoveRoleReward(ctx, int(level))
		if err != nil {
			b.settingsError(session, interaction, "remove role reward", err)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Removed the role reward <@&%s> from level %d.", roleID, level), false)
	case "settings":
		var rankOpts leveling.RankOptions
		if v, ok := opts.integer("text_xp"); ok {
			rankOpts.TextBaseAmount = &v
		}
		if v, ok := opts.integer("text_cooldown"); ok {
			cooldown := int(v)
			rankOpts.TextCooldown = &cooldown
		}
		if v, ok := opts.integer("voice_xp"); ok {
			rankOpts.VoicePerMinute = &v
		}
		if v, ok := opts.boolean("afk_disabled"); ok {
			rankOpts.AFKDisabled = &v
		}
		changes, err := b.leveling.UpdateRankOptions(ctx, rankOpts)
		if err != nil {
			b.settingsError(session, interaction, "update rank settings", err)
			return
		}
		b.respondEmbed(session, interaction, commandEmbed("Rank Settings Updated", strings.Join(changes, "\n"), b.cfg.EmbedColors.Success, nil), false)
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

func ranksEmbed(settings storage.RankSettings, color int) *discordgo.MessageEmbed {
	levels := make([]int, 0, len(settings.Roles))
	for level := range settings.Roles {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	description := "No role rewards configured."
	if len(levels) > 0 {
		lines := make([]string, 0, len(levels))
		for _, level := range levels {
			lines = append(lines, fmt.Sprintf("Level %d: <@&%s>", level, settings.Roles[level]))
		}
		description = strings.Join(lines, "\n")
	}
	return commandEmbed("Rank Rewards", description, color, []*discordgo.MessageEmbedField{
		{Name: "Text XP", Value: fmt.Sprintf("%d (+0-%d) every %ds", settings.TextXP.BaseAmount, settings.TextXP.RandomBonus, settings.TextXP.Cooldown), Inline: true},
		{Name: "Voice XP", Value: fmt.Sprintf("%d per minute", settings.VoiceXP.PerMinute), Inline: true},
		{Name: "AFK XP Disabled", Value: yesNo(settings.VoiceXP.AFKDisabled), Inline: true},
	})
}

func (b *Bot) handlePrestige(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(interaction) {
		b.respondError(session, interaction, "You need Administrator permission to manage prestige.")
		return
	}
	name, opts := subcommand(options)
	switch name {
	case "list":
		prestiges, err := b.leveling.PrestigeSettings(ctx)
		if err != nil {
			b.storeError("load prestige settings", err)
			b.respondError(session, interaction, "There was an error loading the prestige settings.")
			return
		}
		b.respondEmbed(session, interaction, prestigeEmbed(prestiges, b.cfg.EmbedColors.Primary), false)
	case "set":
		tier, _ := opts.integer("level")
		var prestigeOpts leveling.PrestigeOptions
		if v, ok := opts.str("name"); ok {
			prestigeOpts.Name = &v
		}
		if v, ok := opts.integer("required_level"); ok {
			level := int(v)
			prestigeOpts.RequiredLevel = &level
		}
		if v, ok := opts.str("color"); ok {
			prestigeOpts.Color = &v
		}
		if v, ok := opts.id("role"); ok {
			prestigeOpts.RoleID = &v
		}
		if v, ok := opts.number("xp_boost"); ok {
			prestigeOpts.XPBoost = &v
		}
		changes, err := b.leveling.UpdatePrestigeTier(ctx, int(tier), prestigeOpts)
		if err != nil {
			b.settingsError(session, interaction, "update prestige tier", err)
			return
		}
		b.respondEmbed(session, interaction, commandEmbed(fmt.Sprintf("Prestige %d Updated", tier), strings.Join(changes, "\n"), b.cfg.EmbedColors.Success, nil), false)
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
	}
}

func prestigeEmbed(prestiges storage.PrestigeSettings, color int) *discordgo.MessageEmbed {
	tiers := make([]int, 0, len(prestiges.Prestiges))
	for tier := range prestiges.Prestiges {
		tiers = append(tiers, tier)
	}
	sort.Ints(tiers)

	embed := commandEmbed("Prestige Levels", "The following prestige levels are configured:", color, nil)
	if len(tiers) == 0 {
		embed.Description = "No prestige levels configured."
		return embed
	}
	for _, number := range tiers {
		tier := prestiges.Prestiges[number]
		role := "None"
		if tier.RoleID != "" {
			role = "<@&" + tier.RoleID + ">"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: fmt.Sprintf("%d. %s", number, tier.Name),
			Value: fmt.Sprintf("Required Level: %d\nColor: %s\nRole: %s\nXP Boost: +%d%%",
				tier.RequiredLevel, tier.Color, role, int(tier.XPBoost*100)),
			Inline: true,
		})
	}
	return embed
}

func (b *Bot) settingsError(session *discordgo.Session, interaction *discordgo.InteractionCreate, op string, err error) {
	switch {
	case errors.Is(err, leveling.ErrNoChanges):
		b.respondError(session, interaction, "No settings were provided to update.")
	case errors.Is(err, leveling.ErrInvalidColor), errors.Is(err, leveling.ErrInvalidValue):
		b.respondError(session, interaction, err.Error())
	case errors.Is(err, leveling.ErrNoRoleReward):
		b.respondError(session, interaction, "There is no role reward for that level.")
	default:
		b.storeError(op, err)
		b.respondError(session, interaction, "There was an error saving the settings.")
	}
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	user := interactionUser(interaction)
	if id, ok := opts.id("user"); ok {
		user = b.resolvedUser(interaction, id)
	}
	days := analytics.DefaultRecentDays
	if v, ok := opts.integer("days"); ok {
		days = int(v)
	}

	report, err := b.analytics.Recent(ctx, user.ID, days, time.Now())
	if err != nil {
		b.storeError("load statistics", err, zap.String("user_id", user.ID))
		b.respondError(session, interaction, "There was an error loading the statistics.")
		return
	}
	progress, _, err := b.leveling.Progress(ctx, user.ID)
	if err != nil {
		b.storeError("load progress", err, zap.String("user_id", user.ID))
		b.respondError(session, interaction, "There was an error loading the statistics.")
		return
	}
	b.respondEmbed(session, interaction, statsEmbed(user, progress, report, b.cfg.EmbedColors.Primary), false)
}

func statsEmbed(user *discordgo.User, progress storage.UserProgress, report analytics.Report, color int) *discordgo.MessageEmbed {
	embed := commandEmbed(user.Username+"'s Statistics", fmt.Sprintf("Statistics for the last %d days", report.Days), color, []*discordgo.MessageEmbedField{
		{Name: "Level", Value: strconv.Itoa(progress.Level), Inline: true},
		{Name: "Total XP", Value: rankcard.FormatNumber(progress.XP), Inline: true},
		{Name: "Prestige", Value: strconv.Itoa(progress.Prestige), Inline: true},
		{Name: "Messages Sent", Value: rankcard.FormatNumber(report.Messages), Inline: true},
		{Name: "Voice Time", Value: formatMinutes(report.VoiceMinutes), Inline: true},
		{Name: "Commands Used", Value: rankcard.FormatNumber(report.TotalCommands), Inline: true},
	})
	embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("")}

	var daily strings.Builder
	for i := len(report.MessagesByDay) - 1; i >= 0; i-- {
		messages := report.MessagesByDay[i]
		minutes := report.VoiceByDay[i]
		if messages.Count == 0 && minutes.Count == 0 {
			continue
		}
		fmt.Fprintf(&daily, "`%s` %d messages, %s voice\n", messages.Day, messages.Count, formatMinutes(minutes.Count))
	}
	if daily.Len() > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Daily Activity", Value: daily.String()})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "All Time",
		Value: fmt.Sprintf("%s messages, %s voice", rankcard.FormatNumber(report.TotalMessages), formatMinutes(report.TotalVoiceMinutes)),
	})
	if report.TopCommand != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Most used command: /" + report.TopCommand}
	}
	return embed
}

func formatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func mentionRoles(ids []string) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, "<@&"+id+">")
	}
	return strings.Join(mentions, ", ")
}

func hexColorInt(hex string) (int, bool) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, false
	}
	value, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	return int(value), true
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
