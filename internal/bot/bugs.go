package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/bugs"
	"guildkeeper/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const bugChannelPermissions = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks

func (b *Bot) openBugModal(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: bugs.ModalID,
			Title:    "Report a Bug",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    bugs.FieldTitle,
						Label:       "Bug Title",
						Placeholder: "Brief description of the bug",
						Style:       discordgo.TextInputShort,
						Required:    true,
						MaxLength:   bugs.MaxTitleLength,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    bugs.FieldDescription,
						Label:       "Bug Description",
						Placeholder: "Detailed explanation of what happened",
						Style:       discordgo.TextInputParagraph,
						Required:    true,
						MaxLength:   bugs.MaxDescriptionLength,
					},
				}},
				discordgo.ActionsRow{Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    bugs.FieldSteps,
						Label:       "Steps to Reproduce",
						Placeholder: "Steps to reproduce the bug (if applicable)",
						Style:       discordgo.TextInputParagraph,
						Required:    false,
						MaxLength:   bugs.MaxStepsLength,
					},
				}},
			},
		},
	})
	if err != nil {
		b.logger.Warn("failed to open bug modal", zap.Error(err))
	}
}

// modalValues collects text input values by custom ID.
func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, component := range data.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if input, ok := inner.(*discordgo.TextInput); ok {
				values[input.CustomID] = input.Value
			}
		}
	}
	return values
}

func (b *Bot) handleBugModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	reporter := interactionUser(interaction)
	if reporter == nil {
		return
	}

	channelID, err := b.bugs.ChannelID(ctx)
	if err != nil {
		b.storeError("load bug channel", err)
		b.respond(session, interaction, "There was an error while submitting your bug report. Please try again later.", true)
		return
	}
	if channelID == "" {
		b.respond(session, interaction, "Error: The bug reports channel has not been configured. Please contact an administrator.", true)
		return
	}

	values := modalValues(interaction.ModalSubmitData())
	report, err := b.bugs.Submit(ctx, bugs.Submission{
		Title:       values[bugs.FieldTitle],
		Description: values[bugs.FieldDescription],
		Steps:       values[bugs.FieldSteps],
		ReporterID:  reporter.ID,
	})
	switch {
	case errors.Is(err, bugs.ErrRateLimited):
		b.respond(session, interaction, "You are submitting bug reports too quickly. Please wait a few minutes and try again.", true)
		return
	case errors.Is(err, bugs.ErrMissingField), errors.Is(err, bugs.ErrTooLong):
		b.respond(session, interaction, "Your bug report is incomplete or too long. Please check the fields and try again.", true)
		return
	case err != nil:
		b.storeError("submit bug report", err, zap.String("reporter_id", reporter.ID))
		b.respond(session, interaction, "There was an error while submitting your bug report. Please try again later.", true)
		return
	}

	status, _ := bugs.Lookup(report.Status)
	message, err := session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{bugReportEmbed(report, status, reporter.String(), "")},
		Components: bugButtons(report.ID),
	})
	if err != nil {
		b.logger.Warn("failed to post bug report", zap.String("channel_id", channelID), zap.String("report_id", report.ID), zap.Error(err))
		if derr := b.bugs.Discard(ctx, report.ID); derr != nil {
			b.storeError("discard bug report", derr, zap.String("report_id", report.ID))
		}
		b.respond(session, interaction, "Error: Could not post to the bug reports channel. Please contact an administrator.", true)
		return
	}
	if err := b.bugs.AttachMessage(ctx, report.ID, channelID, message.ID); err != nil {
		b.storeError("attach bug message", err, zap.String("report_id", report.ID))
	}

	b.respond(session, interaction, "Thank you for your bug report! Our team will investigate the issue and you will be notified when there is an update.", true)
}

func (b *Bot) handleBugButton(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !isAdmin(interaction) {
		b.respond(session, interaction, "You do not have permission to manage bug reports.", true)
		return
	}
	statusKey, reportID, err := bugs.ParseButtonID(interaction.MessageComponentData().CustomID)
	if err != nil {
		b.respond(session, interaction, "Error: Unknown bug report action.", true)
		return
	}

	resolver := interactionUser(interaction)
	report, status, err := b.bugs.Transition(ctx, reportID, statusKey, resolver.ID)
	if err != nil {
		if errors.Is(err, bugs.ErrNotFound) {
			b.respond(session, interaction, "Error: Could not find the bug report.", true)
			return
		}
		b.storeError("transition bug report", err, zap.String("report_id", reportID))
		b.respond(session, interaction, "There was an error while updating the bug report status.", true)
		return
	}

	reporterTag := "<@" + report.ReporterID + ">"
	if reporter, err := session.User(report.ReporterID); err == nil {
		reporterTag = reporter.String()
	}
	resolution := fmt.Sprintf("%s at <t:%d:f>", resolver.String(), report.ResolvedAt.Unix())

	err = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{bugReportEmbed(report, status, reporterTag, resolution)},
			Components: bugButtons(report.ID),
		},
	})
	if err != nil {
		b.logger.Warn("failed to update bug report message", zap.String("report_id", report.ID), zap.Error(err))
	}

	b.directMessage(report.ReporterID, bugUpdateEmbed(report, status))
}

// bugReportEmbed renders a report as posted in the bug channel. resolution is
// left out while empty.
func bugReportEmbed(report storage.BugReport, status bugs.Status, reporterTag, resolution string) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Description", Value: report.Description},
		{Name: "Steps to Reproduce", Value: report.Steps},
		{Name: "Reported By", Value: fmt.Sprintf("%s (%s)", reporterTag, report.ReporterID)},
		{Name: "Status", Value: status.Label},
	}
	if len(report.Links) > 0 {
		links := ""
		for _, link := range report.Links {
			links += "• " + link + "\n"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Links", Value: links})
	}
	if resolution != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Resolution By", Value: resolution})
	}
	return &discordgo.MessageEmbed{
		Title:     "Bug Report: " + report.Title,
		Color:     status.Color,
		Fields:    fields,
		Timestamp: report.CreatedAt.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Report ID: " + report.ID},
	}
}

func bugUpdateEmbed(report storage.BugReport, status bugs.Status) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Bug Report Status Update",
		Description: "Your bug report has been updated!",
		Color:       status.Color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Bug", Value: report.Title},
			{Name: "New Status", Value: status.Label},
			{Name: "Message", Value: status.Notification},
		},
	}
}

var bugButtonStyles = map[string]discordgo.ButtonStyle{
	bugs.StatusInProgress: discordgo.PrimaryButton,
	bugs.StatusFixed:      discordgo.SuccessButton,
	bugs.StatusInvalid:    discordgo.DangerButton,
	bugs.StatusWontFix:    discordgo.SecondaryButton,
}

func bugButtons(reportID string) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(bugs.ActionStatuses))
	for _, key := range bugs.ActionStatuses {
		status, _ := bugs.Lookup(key)
		buttons = append(buttons, discordgo.Button{
			CustomID: bugs.ButtonID(key, reportID),
			Label:    status.Label,
			Style:    bugButtonStyles[key],
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func (b *Bot) handleBugStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !isAdmin(interaction) {
		b.respondError(session, interaction, "You do not have permission to use this command.")
		return
	}
	channelID, err := b.bugs.ChannelID(ctx)
	if err != nil {
		b.storeError("load bug channel", err)
		b.respond(session, interaction, "There was an error while generating bug statistics. Please try again later.", true)
		return
	}
	if channelID == "" {
		b.respond(session, interaction, "Error: The bug reports channel has not been configured. Use `/set-bug-channel` to set it up.", true)
		return
	}
	stats, err := b.bugs.Stats(ctx)
	if err != nil {
		b.storeError("bug statistics", err)
		b.respond(session, interaction, "There was an error while generating bug statistics. Please try again later.", true)
		return
	}
	b.respondEmbed(session, interaction, bugStatsEmbed(stats), true)
}

func bugStatsEmbed(stats bugs.Stats) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Total Bug Reports", Value: fmt.Sprint(stats.Total), Inline: true},
	}
	for _, key := range bugs.AllStatuses {
		status, _ := bugs.Lookup(key)
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   status.Label,
			Value:  fmt.Sprintf("%d (%d%%)", stats.ByStatus[key], stats.Percent(key)),
			Inline: true,
		})
	}
	return commandEmbed("Bug Report Statistics", fmt.Sprintf("Statistics for %d bug reports:", stats.Total), 0x3498DB, fields)
}

func (b *Bot) handleSetBugChannel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, opts optionSet) {
	if !isAdmin(interaction) {
		b.respondError(session, interaction, "You do not have permission to use this command.")
		return
	}
	channelID, ok := opts.id("channel")
	if !ok {
		b.respondError(session, interaction, "A channel is required.")
		return
	}

	if session.State.User != nil {
		perms, err := session.State.UserChannelPermissions(session.State.User.ID, channelID)
		if err == nil && perms&bugChannelPermissions != bugChannelPermissions {
			b.respond(session, interaction, "I don't have permission to send messages in that channel. Please give me the required permissions.", true)
			return
		}
	}

	changed, err := b.bugs.SetChannel(ctx, channelID)
	if err != nil {
		b.storeError("set bug channel", err)
		b.respond(session, interaction, "There was an error while setting the bug report channel.", true)
		return
	}
	if !changed {
		b.respond(session, interaction, "This channel is already configured for bug reports.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Successfully set <#%s> as the bug report channel!", channelID), true)
}
