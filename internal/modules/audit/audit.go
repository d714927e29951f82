package audit

import (
	"context"
	"time"

	"guildkeeper/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Entry is one moderation action as it appears in the mod log.
type Entry struct {
	Level        string
	Action       string
	UserID       string
	ModeratorID  string
	Reason       string
	InfractionID string
	Duration     time.Duration
	Automatic    bool
	CreatedAt    time.Time
}

// Logger writes moderation actions to zap and, once a notifier is set, to the
// guild's mod-log channel.
type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, entry Entry) {
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", entry.Level),
		zap.String("action", entry.Action),
		zap.String("user_id", entry.UserID),
		zap.String("moderator_id", entry.ModeratorID),
		zap.String("infraction_id", entry.InfractionID),
		zap.String("reason", entry.Reason),
		zap.Duration("duration", entry.Duration),
		zap.Bool("automatic", entry.Automatic),
	)
}

// LogInfraction records a stored infraction. Bans and kicks are logged as
// warnings so they stand out in the process log.
func (l *Logger) LogInfraction(ctx context.Context, infraction storage.Infraction, automatic bool) {
	level := LevelInfo
	switch infraction.Type {
	case "ban", "kick":
		level = LevelWarn
	}
	l.Log(ctx, Entry{
		Level:        level,
		Action:       infraction.Type,
		UserID:       infraction.UserID,
		ModeratorID:  infraction.ModeratorID,
		Reason:       infraction.Reason,
		InfractionID: infraction.ID,
		Duration:     infraction.Duration,
		Automatic:    automatic,
		CreatedAt:    infraction.CreatedAt,
	})
}
