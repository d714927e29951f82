package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guildkeeper/internal/analytics"
	"guildkeeper/internal/leveling"
	"guildkeeper/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// recordingAccruer credits voice XP and, once that succeeded, adds the minutes
// to the user's statistics. AFK minutes are counted in statistics even when
// they earn no XP.
type recordingAccruer struct {
	engine *leveling.Engine
	stats  *analytics.Service
	logger *zap.Logger
}

func (a *recordingAccruer) AccrueVoiceXP(ctx context.Context, userID string, minutes int64, isAFK bool, now time.Time) (*leveling.LevelUp, error) {
	levelUp, err := a.engine.AccrueVoiceXP(ctx, userID, minutes, isAFK, now)
	if err != nil {
		return nil, err
	}
	if a.stats != nil {
		if err := a.stats.RecordVoice(ctx, userID, minutes, now); err != nil {
			a.logger.Warn("failed to record voice statistics", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return levelUp, nil
}

// stateResolver answers voice lookups from the gateway state cache.
type stateResolver struct {
	state *discordgo.State
}

func (r *stateResolver) VoiceChannel(ctx context.Context, guildID, userID string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	// A guild missing from the cache says nothing about the member, so the
	// session is left for a later sweep instead of being closed.
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return "", "", fmt.Errorf("guild %s not in state: %w", guildID, err)
	}
	afkChannelID := guild.AfkChannelID

	vs, err := r.state.VoiceState(guildID, userID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return "", afkChannelID, nil
		}
		return "", "", err
	}
	return vs.ChannelID, afkChannelID, nil
}

// voiceEvent converts a gateway voice update into a tracker event. When the
// previous state is unknown the channel of the tracked session stands in.
func voiceEvent(update *discordgo.VoiceStateUpdate, trackedChannelID, afkChannelID string, at time.Time) (voice.Event, bool) {
	if update == nil || update.VoiceState == nil || update.UserID == "" {
		return voice.Event{}, false
	}
	if update.Member != nil && update.Member.User != nil && update.Member.User.Bot {
		return voice.Event{}, false
	}

	oldChannelID := trackedChannelID
	if update.BeforeUpdate != nil {
		oldChannelID = update.BeforeUpdate.ChannelID
	}
	return voice.Event{
		GuildID:      update.GuildID,
		UserID:       update.UserID,
		OldChannelID: oldChannelID,
		NewChannelID: update.ChannelID,
		AFKChannelID: afkChannelID,
		At:           at,
	}, true
}

func (b *Bot) afkChannel(guildID string) string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return guild.AfkChannelID
}

func (b *Bot) onVoiceStateUpdate(session *discordgo.Session, update *discordgo.VoiceStateUpdate) {
	if update.VoiceState == nil || !b.inScope(update.GuildID) {
		return
	}
	if session.State.User != nil && update.UserID == session.State.User.ID {
		return
	}

	tracked := ""
	if current, ok := b.tracker.Session(update.UserID); ok {
		tracked = current.ChannelID
	}
	ev, ok := voiceEvent(update, tracked, b.afkChannel(update.GuildID), time.Now())
	if !ok {
		return
	}

	ctx := context.Background()
	accrual, err := b.tracker.Handle(ctx, ev)
	if err != nil {
		b.storeError("voice accrual", err, zap.String("user_id", ev.UserID))
		return
	}
	if accrual != nil {
		b.handleVoiceAccrual(ctx, *accrual)
	}
}

// handleVoiceAccrual applies role and prestige rewards for voice level-ups.
// Voice level-ups are not announced.
func (b *Bot) handleVoiceAccrual(ctx context.Context, accrual voice.Accrual) {
	b.logger.Debug("voice time credited",
		zap.String("user_id", accrual.UserID),
		zap.String("channel_id", accrual.ChannelID),
		zap.Int64("minutes", accrual.Minutes),
		zap.Bool("afk", accrual.AFK),
	)
	if accrual.LevelUp == nil {
		return
	}
	b.applyLevelRewards(ctx, accrual.GuildID, accrual.UserID, accrual.LevelUp.NewLevel)
}

func (b *Bot) startVoiceSweep(ctx context.Context) {
	interval := time.Duration(b.cfg.Leveling.SweepIntervalMinutes) * time.Minute
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.tracker.Run(ctx, interval, b.handleVoiceAccrual)
	}()
}

// seedVoiceSessions starts sessions for members already connected when the
// guild becomes available. Users with a tracked session are left alone.
func (b *Bot) seedVoiceSessions(guild *discordgo.Guild) {
	if guild == nil || !b.inScope(guild.ID) {
		return
	}
	now := time.Now()
	seeded := 0
	for _, vs := range guild.VoiceStates {
		if vs == nil || vs.ChannelID == "" {
			continue
		}
		if b.session.State.User != nil && vs.UserID == b.session.State.User.ID {
			continue
		}
		if member, err := b.session.State.Member(guild.ID, vs.UserID); err == nil && member.User != nil && member.User.Bot {
			continue
		}
		if _, ok := b.tracker.Session(vs.UserID); ok {
			continue
		}
		b.tracker.Join(context.Background(), voice.Event{
			GuildID:      guild.ID,
			UserID:       vs.UserID,
			NewChannelID: vs.ChannelID,
			AFKChannelID: guild.AfkChannelID,
			At:           now,
		})
		seeded++
	}
	if seeded > 0 {
		b.logger.Info("voice sessions seeded", zap.String("guild_id", guild.ID), zap.Int("sessions", seeded))
	}
}

func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	b.seedVoiceSessions(event.Guild)
}

// flushVoiceSessions credits every open session as if the user left now.
func (b *Bot) flushVoiceSessions(ctx context.Context) {
	now := time.Now()
	for userID, session := range b.tracker.Sessions() {
		_, err := b.tracker.Leave(ctx, voice.Event{
			GuildID:      session.GuildID,
			UserID:       userID,
			OldChannelID: session.ChannelID,
			AFKChannelID: b.afkChannel(session.GuildID),
			At:           now,
		})
		if err != nil {
			b.logger.Warn("failed to credit voice session on shutdown", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// inScope limits the bot to the configured guild when one is set.
func (b *Bot) inScope(guildID string) bool {
	if guildID == "" {
		return false
	}
	return b.cfg.GuildID == "" || b.cfg.GuildID == guildID
}
