package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func permissions(perm int64) *int64 {
	return &perm
}

func floatPtr(v float64) *float64 {
	return &v
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "rank",
			Description: "Shows your rank card or the rank card of another user",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to show the rank card for (defaults to yourself)", false),
			},
		},
		{
			Name:        "leaderboard",
			Description: "Shows the server rank leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "Number of users to show (default: 10, max: 25)",
					MinValue:    floatPtr(5),
					MaxValue:    25,
				},
			},
		},
		{
			Name:                     "ranks",
			Description:              "Manage the rank system settings",
			DefaultMemberPermissions: permissions(discordgo.PermissionAdministrator),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the current rank rewards",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a role reward for a level",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "level",
							Description: "The level required to earn this role",
							MinValue:    floatPtr(1),
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The role to award",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a role reward for a level",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "level",
							Description: "The level to remove the role reward from",
							MinValue:    floatPtr(1),
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "settings",
					Description: "Adjust rank system settings",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "text_xp",
							Description: "Base XP awarded for text messages",
							MinValue:    floatPtr(1),
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "text_cooldown",
							Description: "Cooldown in seconds between XP awards for messages",
							MinValue:    floatPtr(0),
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "voice_xp",
							Description: "XP awarded per minute in voice chat",
							MinValue:    floatPtr(1),
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "afk_disabled",
							Description: "Whether XP should be disabled for AFK users",
						},
					},
				},
			},
		},
		{
			Name:                     "prestige",
			Description:              "Manage the prestige system settings",
			DefaultMemberPermissions: permissions(discordgo.PermissionAdministrator),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List the current prestige levels",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Configure a prestige level",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "level",
							Description: "The prestige level to configure (1-5)",
							MinValue:    floatPtr(1),
							MaxValue:    5,
							Required:    true,
						},
						stringOption("name", "The name for this prestige level", false),
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "required_level",
							Description: "The level required to reach this prestige",
							MinValue:    floatPtr(1),
						},
						stringOption("color", "The color for this prestige (hex code, e.g., #FF0000)", false),
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The role for this prestige",
						},
						{
							Type:        discordgo.ApplicationCommandOptionNumber,
							Name:        "xp_boost",
							Description: "XP boost as a decimal (e.g., 0.05 for 5%)",
							MinValue:    floatPtr(0),
							MaxValue:    0.5,
						},
					},
				},
			},
		},
		{
			Name:        "stats",
			Description: "Shows your activity statistics",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to show statistics for (defaults to yourself)", false),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Number of days to show (default: 7, max: 30)",
					MinValue:    floatPtr(1),
					MaxValue:    30,
				},
			},
		},
		{
			Name:        "help",
			Description: "Lists all available commands",
		},
		{
			Name:        "echo",
			Description: "Echoes your input",
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("input", "The input to echo back", true),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "ephemeral",
					Description: "Whether or not the echo should be ephemeral",
				},
			},
		},
		{
			Name:                     "warn",
			Description:              "Warn a user",
			DefaultMemberPermissions: permissions(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to warn", true),
				stringOption("reason", "The reason for the warning", true),
			},
		},
		{
			Name:                     "mute",
			Description:              "Mute a user for a specified duration",
			DefaultMemberPermissions: permissions(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to mute", true),
				stringOption("duration", "Duration of the mute (e.g. 1h, 1d, 7d)", true),
				stringOption("reason", "The reason for the mute", true),
			},
		},
		{
			Name:                     "unmute",
			Description:              "Unmute a user",
			DefaultMemberPermissions: permissions(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to unmute", true),
				stringOption("reason", "The reason for unmuting", true),
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a user from the server",
			DefaultMemberPermissions: permissions(discordgo.PermissionKickMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to kick", true),
				stringOption("reason", "The reason for kicking", true),
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user from the server",
			DefaultMemberPermissions: permissions(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to ban", true),
				stringOption("reason", "The reason for banning", true),
				stringOption("duration", "Duration of the ban (e.g. 1h, 1d, 7d) - leave empty for permanent", false),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete_days",
					Description: "Number of days of messages to delete (0-7)",
					MinValue:    floatPtr(0),
					MaxValue:    7,
				},
			},
		},
		{
			Name:                     "unban",
			Description:              "Unban a user from the server",
			DefaultMemberPermissions: permissions(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				stringOption("user_id", "The user ID to unban", true),
				stringOption("reason", "The reason for unbanning", true),
			},
		},
		{
			Name:                     "infractions",
			Description:              "View a user's infractions",
			DefaultMemberPermissions: permissions(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "The user to get infractions for", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Filter by infraction type",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "All", Value: "all"},
						{Name: "Warnings", Value: "warn"},
						{Name: "Mutes", Value: "mute"},
						{Name: "Kicks", Value: "kick"},
						{Name: "Bans", Value: "ban"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "active_only",
					Description: "Show only active infractions",
				},
			},
		},
		{
			Name:                     "modsettings",
			Description:              "Configure moderation settings",
			DefaultMemberPermissions: permissions(discordgo.PermissionAdministrator),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "View current moderation settings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set_log_channel",
					Description: "Set the channel for moderation logs",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "channel",
							Description:  "The channel to log moderation actions",
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
							Required:     true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set_mute_role",
					Description: "Set the role to use for muted users",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionRole,
							Name:        "role",
							Description: "The role to assign to muted users",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "toggle_dm_notifications",
					Description: "Toggle whether users receive DMs about moderation actions against them",
				},
			},
		},
		{
			Name:        "bug",
			Description: "Report a bug to the development team",
		},
		{
			Name:                     "bug-stats",
			Description:              "Show statistics about bug reports",
			DefaultMemberPermissions: permissions(discordgo.PermissionAdministrator),
		},
		{
			Name:                     "set-bug-channel",
			Description:              "Set the channel where bug reports will be sent",
			DefaultMemberPermissions: permissions(discordgo.PermissionAdministrator),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "The channel to send bug reports to",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					Required:     true,
				},
			},
		},
	}
}

// registerCommands syncs the command set for the configured guild, or
// globally when no guild is set. Commands that are no longer defined are
// removed.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()
	appID := b.session.State.User.ID
	guildID := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		b.logger.Warn("failed to list application commands, overwriting", zap.Error(err))
		_, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, commands)
		return err
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{}, len(commands))
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return fmt.Errorf("edit command %s: %w", cmd.Name, err)
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			b.logger.Warn("failed to delete stale command", zap.String("command", cmd.Name), zap.Error(err))
		}
	}

	b.logger.Info("application commands registered",
		zap.Int("commands", len(commands)),
		zap.String("guild_id", guildID),
	)
	return nil
}

func helpEmbed(commands []*discordgo.ApplicationCommand, color int) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(commands))
	for _, cmd := range commands {
		description := cmd.Description
		if description == "" {
			description = "No description provided"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "/" + cmd.Name, Value: description})
	}
	return commandEmbed("Available Commands", "Here are all the commands you can use:", color, fields)
}
