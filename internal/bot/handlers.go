package bot

import (
	"context"

	"guildkeeper/internal/bugs"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionModalSubmit:
		if interaction.ModalSubmitData().CustomID == bugs.ModalID {
			b.handleBugModal(ctx, session, interaction)
		}
	case discordgo.InteractionMessageComponent:
		if bugs.IsButtonID(interaction.MessageComponentData().CustomID) {
			b.handleBugButton(ctx, session, interaction)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	user := interactionUser(interaction)
	if user == nil {
		return
	}
	if !b.inScope(interaction.GuildID) {
		b.respondError(session, interaction, "This command can only be used in the server.")
		return
	}

	if b.analytics != nil {
		if err := b.analytics.RecordCommand(ctx, user.ID, data.Name); err != nil {
			b.storeError("record command", err, zap.String("command", data.Name))
		}
	}
	b.logger.Debug("command received", zap.String("command", data.Name), zap.String("user_id", user.ID))

	opts := newOptionSet(data.Options)
	switch data.Name {
	case "rank":
		b.handleRank(ctx, session, interaction, opts)
	case "leaderboard":
		b.handleLeaderboard(ctx, session, interaction, opts)
	case "ranks":
		b.handleRanks(ctx, session, interaction, data.Options)
	case "prestige":
		b.handlePrestige(ctx, session, interaction, data.Options)
	case "stats":
		b.handleStats(ctx, session, interaction, opts)
	case "help":
		b.respondEmbed(session, interaction, helpEmbed(commandDefinitions(), b.cfg.EmbedColors.Primary), true)
	case "echo":
		input, _ := opts.str("input")
		ephemeral, _ := opts.boolean("ephemeral")
		b.respond(session, interaction, input, ephemeral)
	case "warn", "mute", "unmute", "kick", "ban", "unban", "infractions":
		b.handleModerationCommand(ctx, session, interaction, data.Name, opts)
	case "modsettings":
		b.handleModSettings(ctx, session, interaction, data.Options)
	case "bug":
		b.openBugModal(session, interaction)
	case "bug-stats":
		b.handleBugStats(ctx, session, interaction)
	case "set-bug-channel":
		b.handleSetBugChannel(ctx, session, interaction, opts)
	default:
		b.respondError(session, interaction, "Unknown command.")
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func hasPermission(interaction *discordgo.InteractionCreate, perms ...int64) bool {
	if interaction.Member == nil {
		return false
	}
	granted := interaction.Member.Permissions
	if granted&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, perm := range perms {
		if granted&perm != 0 {
			return true
		}
	}
	return false
}

func canModerate(interaction *discordgo.InteractionCreate) bool {
	return hasPermission(interaction, discordgo.PermissionModerateMembers, discordgo.PermissionBanMembers, discordgo.PermissionKickMembers)
}

func isAdmin(interaction *discordgo.InteractionCreate) bool {
	return hasPermission(interaction)
}

// optionSet indexes command options by name.
type optionSet map[string]*discordgo.ApplicationCommandInteractionDataOption

func newOptionSet(opts []*discordgo.ApplicationCommandInteractionDataOption) optionSet {
	set := make(optionSet, len(opts))
	for _, opt := range opts {
		if opt != nil {
			set[opt.Name] = opt
		}
	}
	return set
}

// subcommand returns the invoked subcommand and its options.
func subcommand(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, optionSet) {
	for _, opt := range opts {
		if opt != nil && opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			return opt.Name, newOptionSet(opt.Options)
		}
	}
	return "", optionSet{}
}

func (o optionSet) str(name string) (string, bool) {
	opt, ok := o[name]
	if !ok {
		return "", false
	}
	value, ok := opt.Value.(string)
	return value, ok
}

func (o optionSet) integer(name string) (int64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	value, ok := opt.Value.(float64)
	return int64(value), ok
}

func (o optionSet) number(name string) (float64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	value, ok := opt.Value.(float64)
	return value, ok
}

func (o optionSet) boolean(name string) (bool, bool) {
	opt, ok := o[name]
	if !ok {
		return false, false
	}
	value, ok := opt.Value.(bool)
	return value, ok
}

// id returns the snowflake of a user, role or channel option.
func (o optionSet) id(name string) (string, bool) {
	value, ok := o.str(name)
	return value, ok && value != ""
}

// resolvedUser finds the user behind a user option, preferring the payload's
// resolved data over a REST lookup.
func (b *Bot) resolvedUser(interaction *discordgo.InteractionCreate, userID string) *discordgo.User {
	data := interaction.ApplicationCommandData()
	if data.Resolved != nil {
		if user, ok := data.Resolved.Users[userID]; ok && user != nil {
			return user
		}
	}
	user, err := b.session.User(userID)
	if err != nil {
		return &discordgo.User{ID: userID, Username: userID}
	}
	return user
}

// resolvedMember returns the guild member payload sent with a user option.
func resolvedMember(interaction *discordgo.InteractionCreate, userID string) *discordgo.Member {
	data := interaction.ApplicationCommandData()
	if data.Resolved == nil {
		return nil
	}
	return data.Resolved.Members[userID]
}
