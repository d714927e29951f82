package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"guildkeeper/internal/analytics"
	"guildkeeper/internal/bugs"
	"guildkeeper/internal/config"
	"guildkeeper/internal/leveling"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/rankcard"
	"guildkeeper/internal/storage"
	"guildkeeper/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Services groups the domain services the bot dispatches to.
type Services struct {
	Store      *storage.Store
	Leveling   *leveling.Engine
	Analytics  *analytics.Service
	Moderation *moderation.Service
	Audit      *audit.Logger
	Bugs       *bugs.Service
	Cards      *rankcard.Renderer
}

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	leveling   *leveling.Engine
	tracker    *voice.Tracker
	analytics  *analytics.Service
	moderation *moderation.Service
	audit      *audit.Logger
	bugs       *bugs.Service
	cards      *rankcard.Renderer
	session    *discordgo.Session
	startedAt  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.Config, logger *zap.Logger, svc Services) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates
	session.State.TrackVoice = true

	if svc.Cards == nil {
		svc.Cards = rankcard.NewRenderer(logger)
	}

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      svc.Store,
		leveling:   svc.Leveling,
		analytics:  svc.Analytics,
		moderation: svc.Moderation,
		audit:      svc.Audit,
		bugs:       svc.Bugs,
		cards:      svc.Cards,
		session:    session,
	}

	accruer := &recordingAccruer{engine: svc.Leveling, stats: svc.Analytics, logger: logger}
	b.tracker = voice.NewTracker(accruer, &stateResolver{state: session.State}, logger)
	b.tracker.WithSweepGap(time.Duration(cfg.Leveling.SweepMinMinutes) * time.Minute)

	if b.audit != nil {
		b.audit.SetNotifier(b.notifyAudit)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onVoiceStateUpdate)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.startedAt = time.Now()

	if b.cfg.Leveling.RegisterCommands {
		if err := b.registerCommands(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.startVoiceSweep(ctx)
	b.startExpiryLoop(ctx)

	return nil
}

// Close stops the background loops, credits every open voice session and
// disconnects from the gateway.
func (b *Bot) Close(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("background loops did not stop before shutdown deadline")
	}

	b.flushVoiceSessions(ctx)

	if b.session != nil {
		_ = b.session.Close()
	}
}

// VoiceSessions reports how many voice sessions are tracked.
func (b *Bot) VoiceSessions() int {
	return b.tracker.Len()
}

func (b *Bot) Uptime() time.Duration {
	if b.startedAt.IsZero() {
		return 0
	}
	return time.Since(b.startedAt)
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)),
	)
	if err := session.UpdateListeningStatus("/help"); err != nil {
		b.logger.Debug("failed to set presence", zap.Error(err))
	}
}

// storeError logs a persistence failure. Corrupt documents are moved aside so
// the next access starts from defaults.
func (b *Bot) storeError(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	file, corrupt := storage.CorruptFile(err)
	if !corrupt {
		if errors.Is(err, context.Canceled) {
			b.logger.Debug("operation canceled", fields...)
			return
		}
		b.logger.Error("storage operation failed", fields...)
		return
	}

	b.logger.Error("corrupt data file", append(fields, zap.String("file", file))...)
	target, qerr := b.store.Quarantine(file)
	if qerr != nil {
		b.logger.Error("failed to quarantine data file", zap.String("file", file), zap.Error(qerr))
		return
	}
	b.logger.Warn("data file quarantined, defaults restored",
		zap.String("file", file),
		zap.String("moved_to", target),
	)
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, message string) {
	b.respondEmbed(session, interaction, commandEmbed("Error", message, b.cfg.EmbedColors.Error, nil), true)
}

// directMessage sends an embed to a user's DMs. Closed DMs are common and only
// logged at debug.
func (b *Bot) directMessage(userID string, embed *discordgo.MessageEmbed) {
	if userID == "" || embed == nil {
		return
	}
	channel, err := b.session.UserChannelCreate(userID)
	if err != nil {
		b.logger.Debug("failed to open DM channel", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := b.session.ChannelMessageSendEmbed(channel.ID, embed); err != nil {
		b.logger.Debug("failed to send DM", zap.String("user_id", userID), zap.Error(err))
	}
}

func commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
