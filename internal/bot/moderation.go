package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"guildkeeper/internal/moderation"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	infractionsPerPage = 10
	maxEmbedsPerReply  = 10
)

func (b *Bot) handleModerationCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, name string, opts optionSet) {
	var allowed bool
	switch name {
	case "kick":
		allowed = hasPermission(interaction, discordgo.PermissionKickMembers)
	case "ban", "unban":
		allowed = hasPermission(interaction, discordgo.PermissionBanMembers)
	case "unmute":
		allowed = hasPermission(interaction, discordgo.PermissionModerateMembers)
	default:
		allowed = canModerate(interaction)
	}
	if !allowed {
		b.respondError(session, interaction, "You do not have permission to use this command.")
		return
	}

	switch name {
	case "warn":
		b.handleWarn(ctx, session, interaction, opts)
	case "mute":
		b.handleMute(ctx, session, interaction, opts)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, opts)
	case "kick":
		b.handleKick(ctx, session, interaction, opts)
	case "ban":
		b.handleBan(ctx, session, interaction, opts)
	case "unban":
		b.handleUnban(ctx, session, interaction, opts)
	case "infractions":
		b.handleInfractions(ctx, session, interaction, opts)
	}
}

// checkTarget rejects bots, the invoking moderator and other moderators. It
// returns the user for a valid target.
func (b *Bot) checkTarget(session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet, verb string) (*discordgo.User, bool) {
	targetID, ok := opts.id("user")
	if !ok {
		b.respondError(session, interaction, "A user is required.")
		return nil, false
	}
	target := b.resolvedUser(interaction, targetID)
	if target.Bot {
		b.respondError(session, interaction, fmt.Sprintf("You cannot %s bot users.", verb))
		return nil, false
	}
	if moderator := interactionUser(interaction); moderator != nil && moderator.ID == target.ID {
		b.respondError(session, interaction, fmt.Sprintf("You cannot %s yourself.", verb))
		return nil, false
	}
	if member := resolvedMember(interaction, target.ID); member != nil && isModerator(member.Permissions) {
		b.respondError(session, interaction, fmt.Sprintf("You cannot %s other moderators.", verb))
		return nil, false
	}
	return target, true
}

func isModerator(perms int64) bool {
	const mask = discordgo.PermissionAdministrator | discordgo.PermissionModerateMembers | discordgo.PermissionBanMembers | discordgo.PermissionKickMembers
	return perms&mask != 0
}

// recordInfraction stores the infraction, writes it to the audit log and
// notifies the user when DM notifications are on.
func (b *Bot) recordInfraction(ctx context.Context, in moderation.NewInfraction) (storage.Infraction, error) {
	infraction, err := b.moderation.Create(ctx, in)
	if err != nil {
		return storage.Infraction{}, err
	}
	b.audit.LogInfraction(ctx, infraction, false)

	settings, err := b.moderation.Settings(ctx)
	if err != nil {
		b.storeError("load moderation settings", err)
		return infraction, nil
	}
	if settings.DMNotifications {
		b.directMessage(infraction.UserID, infractionDMEmbed(infraction))
	}
	return infraction, nil
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	target, ok := b.checkTarget(session, interaction, opts, "warn")
	if !ok {
		return
	}
	reason, _ := opts.str("reason")
	_, err := b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      target.ID,
		Type:        moderation.TypeWarn,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
	})
	if err != nil {
		b.storeError("warn", err, zap.String("user_id", target.ID))
		b.respondError(session, interaction, "There was an error executing the warn command.")
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully warned %s for: %s", target.String(), reason), false)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	target, ok := b.checkTarget(session, interaction, opts, "mute")
	if !ok {
		return
	}
	rawDuration, _ := opts.str("duration")
	duration, err := moderation.ParseDuration(rawDuration)
	if err != nil {
		b.respondError(session, interaction, "Invalid duration format. Please use formats like 1h, 1d, 7d, etc.")
		return
	}
	settings, err := b.moderation.Settings(ctx)
	if err != nil {
		b.storeError("load moderation settings", err)
		b.respondError(session, interaction, "There was an error executing the mute command.")
		return
	}
	if settings.MuteRoleID == "" {
		b.respondError(session, interaction, "Mute role is not set up. Please use the /modsettings command to set it up.")
		return
	}
	if err := session.GuildMemberRoleAdd(interaction.GuildID, target.ID, settings.MuteRoleID); err != nil {
		b.logger.Warn("failed to add mute role", zap.String("user_id", target.ID), zap.Error(err))
		b.respondError(session, interaction, "Failed to add mute role. Please check my permissions and role hierarchy.")
		return
	}

	reason, _ := opts.str("reason")
	_, err = b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      target.ID,
		Type:        moderation.TypeMute,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
		Duration:    duration,
	})
	if err != nil {
		b.storeError("mute", err, zap.String("user_id", target.ID))
		b.respondError(session, interaction, "The user was muted but the infraction could not be saved.")
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully muted %s for %s. Reason: %s", target.String(), moderation.FormatDuration(duration), reason), false)
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	targetID, _ := opts.id("user")
	target := b.resolvedUser(interaction, targetID)
	reason, _ := opts.str("reason")

	settings, err := b.moderation.Settings(ctx)
	if err != nil {
		b.storeError("load moderation settings", err)
		b.respondError(session, interaction, "There was an error executing the unmute command.")
		return
	}
	if settings.MuteRoleID == "" {
		b.respondError(session, interaction, "Mute role is not set up. Please use the /modsettings command to set it up.")
		return
	}
	if err := session.GuildMemberRoleRemove(interaction.GuildID, target.ID, settings.MuteRoleID); err != nil {
		b.logger.Warn("failed to remove mute role", zap.String("user_id", target.ID), zap.Error(err))
		b.respondError(session, interaction, "Failed to remove mute role. Please check my permissions and role hierarchy.")
		return
	}

	if _, err := b.moderation.Deactivate(ctx, target.ID, moderation.TypeMute); err != nil {
		b.storeError("deactivate mutes", err, zap.String("user_id", target.ID))
	}
	if _, err := b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      target.ID,
		Type:        moderation.TypeUnmute,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
		Closed:      true,
	}); err != nil {
		b.storeError("unmute", err, zap.String("user_id", target.ID))
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully unmuted %s. Reason: %s", target.String(), reason), false)
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	target, ok := b.checkTarget(session, interaction, opts, "kick")
	if !ok {
		return
	}
	reason, _ := opts.str("reason")

	// Record first so the DM goes out while the user still shares the guild.
	infraction, err := b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      target.ID,
		Type:        moderation.TypeKick,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
		Closed:      true,
	})
	if err != nil {
		b.storeError("kick", err, zap.String("user_id", target.ID))
		b.respondError(session, interaction, "There was an error executing the kick command.")
		return
	}
	if err := session.GuildMemberDeleteWithReason(interaction.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("kick failed", zap.String("user_id", target.ID), zap.String("infraction_id", infraction.ID), zap.Error(err))
		b.respondError(session, interaction, "Failed to kick the user. Please check my permissions and role hierarchy.")
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully kicked %s. Reason: %s", target.String(), reason), false)
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	target, ok := b.checkTarget(session, interaction, opts, "ban")
	if !ok {
		return
	}
	reason, _ := opts.str("reason")

	var duration time.Duration
	if raw, ok := opts.str("duration"); ok && raw != "" {
		parsed, err := moderation.ParseDuration(raw)
		if err != nil {
			b.respondError(session, interaction, "Invalid duration format. Please use formats like 1h, 1d, 7d, etc.")
			return
		}
		duration = parsed
	}
	deleteDays := 0
	if days, ok := opts.integer("delete_days"); ok {
		deleteDays = int(min(max(days, 0), 7))
	}

	infraction, err := b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      target.ID,
		Type:        moderation.TypeBan,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
		Duration:    duration,
	})
	if err != nil {
		b.storeError("ban", err, zap.String("user_id", target.ID))
		b.respondError(session, interaction, "There was an error executing the ban command.")
		return
	}
	if err := session.GuildBanCreateWithReason(interaction.GuildID, target.ID, reason, deleteDays); err != nil {
		b.logger.Warn("ban failed", zap.String("user_id", target.ID), zap.Error(err))
		if serr := b.moderation.SetActive(ctx, infraction.ID, false); serr != nil {
			b.storeError("close failed ban", serr, zap.String("infraction_id", infraction.ID))
		}
		b.respondError(session, interaction, "Failed to ban the user. Please check my permissions and role hierarchy.")
		return
	}

	length := "permanently"
	if duration > 0 {
		length = "for " + moderation.FormatDuration(duration)
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully banned %s %s. Reason: %s", target.String(), length, reason), false)
}

func (b *Bot) handleUnban(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	userID, _ := opts.str("user_id")
	userID = strings.TrimSpace(userID)
	reason, _ := opts.str("reason")
	if userID == "" {
		b.respondError(session, interaction, "A user ID is required.")
		return
	}

	if err := session.GuildBanDelete(interaction.GuildID, userID); err != nil {
		b.logger.Warn("unban failed", zap.String("user_id", userID), zap.Error(err))
		b.respondError(session, interaction, "Failed to unban the user. They may not be banned.")
		return
	}
	if _, err := b.moderation.Deactivate(ctx, userID, moderation.TypeBan); err != nil {
		b.storeError("deactivate bans", err, zap.String("user_id", userID))
	}
	if _, err := b.recordInfraction(ctx, moderation.NewInfraction{
		UserID:      userID,
		Type:        moderation.TypeUnban,
		Reason:      reason,
		ModeratorID: interactionUser(interaction).ID,
		Closed:      true,
	}); err != nil {
		b.storeError("unban", err, zap.String("user_id", userID))
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully unbanned <@%s>. Reason: %s", userID, reason), false)
}

func (b *Bot) handleInfractions(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	targetID, _ := opts.id("user")
	target := b.resolvedUser(interaction, targetID)
	filter := moderation.Filter{Type: "all"}
	if kind, ok := opts.str("type"); ok {
		filter.Type = kind
	}
	filter.ActiveOnly, _ = opts.boolean("active_only")

	list, err := b.moderation.ForUser(ctx, target.ID, filter)
	if err != nil {
		b.storeError("list infractions", err, zap.String("user_id", target.ID))
		b.respondError(session, interaction, "There was an error executing the infractions command.")
		return
	}
	if len(list) == 0 {
		b.respond(session, interaction, noInfractionsText(target, filter), false)
		return
	}
	counts, err := b.moderation.Counts(ctx, target.ID)
	if err != nil {
		b.storeError("count infractions", err, zap.String("user_id", target.ID))
	}

	embeds := infractionEmbeds(target, list, counts, filter)
	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: embeds},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func filterLabel(filter moderation.Filter) string {
	label := "infractions"
	if filter.Type != "" && filter.Type != "all" {
		label = filter.Type
	}
	if filter.ActiveOnly {
		label = "active " + label
	}
	return label
}

func noInfractionsText(user *discordgo.User, filter moderation.Filter) string {
	if (filter.Type == "" || filter.Type == "all") && !filter.ActiveOnly {
		return user.String() + " has no infraction history."
	}
	return fmt.Sprintf("%s has no %s.", user.String(), filterLabel(filter))
}

// infractionEmbeds builds a summary embed followed by pages of infractions.
// Pages beyond what one reply can carry are dropped and noted in the summary.
func infractionEmbeds(user *discordgo.User, list []storage.Infraction, counts moderation.Counts, filter moderation.Filter) []*discordgo.MessageEmbed {
	summary := commandEmbed("Infraction History: "+user.String(), "**User ID:** "+user.ID, 0x5865F2, []*discordgo.MessageEmbedField{
		{Name: "Total Infractions", Value: fmt.Sprint(counts.Total), Inline: true},
		{Name: "Warnings", Value: fmt.Sprint(counts.Warn), Inline: true},
		{Name: "Mutes", Value: fmt.Sprint(counts.Mute), Inline: true},
		{Name: "Kicks", Value: fmt.Sprint(counts.Kick), Inline: true},
		{Name: "Bans", Value: fmt.Sprint(counts.Ban), Inline: true},
		{Name: "Active Infractions", Value: fmt.Sprint(counts.Active), Inline: true},
	})
	summary.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("")}

	shown := min(len(list), (maxEmbedsPerReply-1)*infractionsPerPage)
	footer := fmt.Sprintf("Showing %d %s", shown, filterLabel(filter))
	if shown < len(list) {
		footer += fmt.Sprintf(" of %d", len(list))
	}
	summary.Footer = &discordgo.MessageEmbedFooter{Text: footer}

	embeds := []*discordgo.MessageEmbed{summary}
	for start := 0; start < shown; start += infractionsPerPage {
		end := min(start+infractionsPerPage, shown)
		page := commandEmbed(fmt.Sprintf("Infractions for %s (Page %d)", user.String(), start/infractionsPerPage+1), "", 0x5865F2, nil)
		for _, infraction := range list[start:end] {
			page.Fields = append(page.Fields, infractionField(infraction))
		}
		embeds = append(embeds, page)
	}
	return embeds
}

func infractionField(infraction storage.Infraction) *discordgo.MessageEmbedField {
	status := "⚪ Inactive"
	if infraction.Active {
		status = "🔴 Active"
	}
	value := fmt.Sprintf("**ID:** %s\n**Reason:** %s\n**Moderator:** <@%s>", infraction.ID, reasonOrDefault(infraction.Reason), infraction.ModeratorID)
	if infraction.ExpiresAt != nil {
		value += fmt.Sprintf("\nExpires: <t:%d:f>", infraction.ExpiresAt.Unix())
	}
	return &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("%s - <t:%d:d> - %s", moderation.Title(infraction.Type), infraction.CreatedAt.Unix(), status),
		Value: value,
	}
}

func infractionDMEmbed(infraction storage.Infraction) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     "You have received a " + moderation.Title(infraction.Type),
		Color:     moderation.Color(infraction.Type),
		Timestamp: infraction.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: reasonOrDefault(infraction.Reason)},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "If you believe this action was made in error, please contact a server administrator."},
	}
	if infraction.Duration > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: moderation.FormatDuration(infraction.Duration)})
	}
	return embed
}

func auditEmbed(entry audit.Entry) *discordgo.MessageEmbed {
	moderator := "<@" + entry.ModeratorID + ">"
	if entry.Automatic {
		moderator = "Automatic"
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Moderation Action: " + moderation.Title(entry.Action),
		Color:     moderation.Color(entry.Action),
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (%s)", entry.UserID, entry.UserID), Inline: true},
			{Name: "Moderator", Value: moderator, Inline: true},
			{Name: "Reason", Value: reasonOrDefault(entry.Reason)},
		},
	}
	if entry.Duration > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: moderation.FormatDuration(entry.Duration), Inline: true})
	}
	if entry.InfractionID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Infraction ID", Value: entry.InfractionID, Inline: true})
	}
	return embed
}

func reasonOrDefault(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "No reason provided"
	}
	return reason
}

// notifyAudit posts an audit entry to the configured mod-log channel.
func (b *Bot) notifyAudit(ctx context.Context, entry audit.Entry) {
	settings, err := b.moderation.Settings(ctx)
	if err != nil {
		b.storeError("load moderation settings", err)
		return
	}
	if settings.LogChannelID == "" {
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(settings.LogChannelID, auditEmbed(entry)); err != nil {
		b.logger.Warn("failed to post mod log", zap.String("channel_id", settings.LogChannelID), zap.Error(err))
	}
}

func (b *Bot) handleModSettings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if !isAdmin(interaction) {
		b.respondError(session, interaction, "You do not have permission to use this command. It requires Administrator permission.")
		return
	}

	name, opts := subcommand(options)
	var (
		settings storage.ModerationSettings
		message  string
		err      error
	)
	switch name {
	case "view":
		settings, err = b.moderation.Settings(ctx)
		if err == nil {
			b.respondEmbed(session, interaction, modSettingsEmbed(settings, b.cfg.EmbedColors.Primary), false)
			return
		}
	case "set_log_channel":
		channelID, _ := opts.id("channel")
		settings, err = b.moderation.UpdateSettings(ctx, func(s *storage.ModerationSettings) { s.LogChannelID = channelID })
		message = fmt.Sprintf("Moderation logs will now be sent to <#%s>.", channelID)
	case "set_mute_role":
		roleID, _ := opts.id("role")
		settings, err = b.moderation.UpdateSettings(ctx, func(s *storage.ModerationSettings) { s.MuteRoleID = roleID })
		message = fmt.Sprintf("The mute role has been set to <@&%s>.", roleID)
	case "toggle_dm_notifications":
		settings, err = b.moderation.UpdateSettings(ctx, func(s *storage.ModerationSettings) { s.DMNotifications = !s.DMNotifications })
		state := "disabled"
		if settings.DMNotifications {
			state = "enabled"
		}
		message = "DM notifications for moderation actions have been " + state + "."
	default:
		b.respondError(session, interaction, "Unknown subcommand.")
		return
	}
	if err != nil {
		b.storeError("moderation settings", err)
		b.respondError(session, interaction, "There was an error executing the modsettings command.")
		return
	}
	b.respond(session, interaction, message, false)
}

func modSettingsEmbed(settings storage.ModerationSettings, color int) *discordgo.MessageEmbed {
	logChannel := "Not set"
	if settings.LogChannelID != "" {
		logChannel = "<#" + settings.LogChannelID + ">"
	}
	muteRole := "Not set"
	if settings.MuteRoleID != "" {
		muteRole = "<@&" + settings.MuteRoleID + ">"
	}
	dm := "Disabled"
	if settings.DMNotifications {
		dm = "Enabled"
	}
	return commandEmbed("Moderation Settings", "", color, []*discordgo.MessageEmbedField{
		{Name: "Log Channel", Value: logChannel},
		{Name: "Mute Role", Value: muteRole},
		{Name: "DM Notifications", Value: dm},
	})
}

func (b *Bot) startExpiryLoop(ctx context.Context) {
	interval := time.Duration(b.cfg.Moderation.ExpiryCheckSeconds) * time.Second
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				b.expireInfractions(ctx, now)
				if b.bugs != nil {
					b.bugs.PruneRateLimits(now)
				}
			}
		}
	}()
}

// expireInfractions lifts temporary mutes and bans whose time is up and
// records the automatic unmute or unban.
func (b *Bot) expireInfractions(ctx context.Context, now time.Time) {
	expired, err := b.moderation.Expire(ctx, now)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			b.storeError("expire infractions", err)
		}
		return
	}
	if len(expired) == 0 {
		return
	}

	settings, err := b.moderation.Settings(ctx)
	if err != nil {
		b.storeError("load moderation settings", err)
		return
	}
	botID := ""
	if b.session.State.User != nil {
		botID = b.session.State.User.ID
	}

	for _, infraction := range expired {
		var (
			kind   string
			reason string
			lifted bool
		)
		switch infraction.Type {
		case moderation.TypeMute:
			kind, reason = moderation.TypeUnmute, "Temporary mute expired"
			lifted = b.liftMute(infraction.UserID, settings.MuteRoleID)
		case moderation.TypeBan:
			kind, reason = moderation.TypeUnban, "Temporary ban expired"
			lifted = b.liftBan(infraction.UserID)
		default:
			continue
		}
		if !lifted {
			continue
		}

		record, err := b.moderation.Create(ctx, moderation.NewInfraction{
			UserID:      infraction.UserID,
			Type:        kind,
			Reason:      reason,
			ModeratorID: botID,
			Closed:      true,
		})
		if err != nil {
			b.storeError("record expiry", err, zap.String("infraction_id", infraction.ID))
			continue
		}
		b.audit.LogInfraction(ctx, record, true)
	}
}

func (b *Bot) liftMute(userID, muteRoleID string) bool {
	if muteRoleID == "" {
		return false
	}
	lifted := false
	for _, guildID := range b.guildIDs() {
		member, err := b.member(guildID, userID)
		if err != nil || !containsString(member.Roles, muteRoleID) {
			continue
		}
		if err := b.session.GuildMemberRoleRemove(guildID, userID, muteRoleID); err != nil {
			b.logger.Warn("failed to lift expired mute", zap.String("user_id", userID), zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		lifted = true
	}
	return lifted
}

func (b *Bot) liftBan(userID string) bool {
	lifted := false
	for _, guildID := range b.guildIDs() {
		if err := b.session.GuildBanDelete(guildID, userID); err != nil {
			b.logger.Warn("failed to lift expired ban", zap.String("user_id", userID), zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		lifted = true
	}
	return lifted
}

// guildIDs lists the guilds the bot acts in.
func (b *Bot) guildIDs() []string {
	if b.cfg.GuildID != "" {
		return []string{b.cfg.GuildID}
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	ids := make([]string, 0, len(b.session.State.Guilds))
	for _, guild := range b.session.State.Guilds {
		if guild != nil {
			ids = append(ids, guild.ID)
		}
	}
	return ids
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
