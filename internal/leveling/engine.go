package leveling

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"guildkeeper/internal/storage"
	"guildkeeper/internal/utils"

	"go.uber.org/zap"
)

// Store is the persistence the engine needs. *storage.Store satisfies it.
type Store interface {
	GetUserProgress(ctx context.Context, userID string) (storage.UserProgress, error)
	SaveUserProgress(ctx context.Context, userID string, progress storage.UserProgress) error
	AllUserProgress(ctx context.Context) (map[string]storage.UserProgress, error)
	GetRankSettings(ctx context.Context) (storage.RankSettings, error)
	GetPrestigeSettings(ctx context.Context) (storage.PrestigeSettings, error)
	UpdateRankSettings(ctx context.Context, fn func(*storage.RankSettings) error) error
	UpdatePrestigeSettings(ctx context.Context, fn func(*storage.PrestigeSettings) error) error
}

// LevelUp is reported when an accrual moves a user to a higher level.
type LevelUp struct {
	UserID         string
	OldLevel       int
	NewLevel       int
	XP             int64
	NextRequiredXP int64
	At             time.Time
}

type Engine struct {
	store  Store
	logger *zap.Logger
	locks  *utils.KeyedMutex
	// randN returns a value in [0, n).
	randN func(n int64) int64
}

func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		logger: logger,
		locks:  utils.NewKeyedMutex(),
		randN:  rand.Int63n,
	}
}

func (e *Engine) WithRand(randN func(n int64) int64) {
	e.randN = randN
}

// AwardMessageXP grants text XP once the user's cooldown has passed. While the
// cooldown is active it returns nil without touching storage.
func (e *Engine) AwardMessageXP(ctx context.Context, userID string, now time.Time) (*LevelUp, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	ranks, err := e.store.GetRankSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rank settings: %w", err)
	}
	progress, err := e.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	cooldown := int64(ranks.TextXP.Cooldown) * int64(time.Second/time.Millisecond)
	if now.UnixMilli()-progress.LastMessageTimestamp < cooldown {
		return nil, nil
	}

	gain := ranks.TextXP.BaseAmount
	if ranks.TextXP.RandomBonus > 0 {
		gain += e.randN(ranks.TextXP.RandomBonus + 1)
	}
	gain, err = e.boost(ctx, gain, progress.Prestige)
	if err != nil {
		return nil, err
	}
	// Hand-edited rates can go negative; a message never costs XP.
	gain = max(gain, 0)

	oldLevel := progress.Level
	progress.XP += gain
	progress.TotalTextXP += gain
	progress.LastMessageTimestamp = now.UnixMilli()

	return e.commit(ctx, userID, oldLevel, progress, ranks, now)
}

// AccrueVoiceXP converts voice minutes into XP. AFK minutes are dropped when
// the settings disable AFK XP; they are not retried later.
func (e *Engine) AccrueVoiceXP(ctx context.Context, userID string, minutes int64, isAFK bool, now time.Time) (*LevelUp, error) {
	if minutes <= 0 {
		return nil, nil
	}

	unlock := e.locks.Lock(userID)
	defer unlock()

	ranks, err := e.store.GetRankSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rank settings: %w", err)
	}
	if isAFK && ranks.VoiceXP.AFKDisabled {
		e.logger.Debug("afk voice time skipped", zap.String("user_id", userID), zap.Int64("minutes", minutes))
		return nil, nil
	}

	progress, err := e.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	gain, err := e.boost(ctx, minutes*ranks.VoiceXP.PerMinute, progress.Prestige)
	if err != nil {
		return nil, err
	}
	gain = max(gain, 0)

	oldLevel := progress.Level
	progress.XP += gain
	progress.TotalVoiceXP += gain

	return e.commit(ctx, userID, oldLevel, progress, ranks, now)
}

// Progress returns the stored record together with the calculator for the
// current formula.
func (e *Engine) Progress(ctx context.Context, userID string) (storage.UserProgress, Calculator, error) {
	ranks, err := e.store.GetRankSettings(ctx)
	if err != nil {
		return storage.UserProgress{}, Calculator{}, fmt.Errorf("load rank settings: %w", err)
	}
	progress, err := e.store.GetUserProgress(ctx, userID)
	if err != nil {
		return storage.UserProgress{}, Calculator{}, fmt.Errorf("load progress: %w", err)
	}
	return progress, NewCalculator(ranks.Formula), nil
}

func (e *Engine) Calculator(ctx context.Context) (Calculator, error) {
	ranks, err := e.store.GetRankSettings(ctx)
	if err != nil {
		return Calculator{}, fmt.Errorf("load rank settings: %w", err)
	}
	return NewCalculator(ranks.Formula), nil
}

func (e *Engine) boost(ctx context.Context, gain int64, tier int) (int64, error) {
	if tier <= 0 {
		return gain, nil
	}
	prestiges, err := e.store.GetPrestigeSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("load prestige settings: %w", err)
	}
	return ApplyPrestigeBoost(gain, tier, prestiges), nil
}

func (e *Engine) commit(ctx context.Context, userID string, oldLevel int, progress storage.UserProgress, ranks storage.RankSettings, now time.Time) (*LevelUp, error) {
	calc := NewCalculator(ranks.Formula)
	progress.Level = calc.LevelFromXP(progress.XP)

	if err := e.store.SaveUserProgress(ctx, userID, progress); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}
	if progress.Level <= oldLevel {
		return nil, nil
	}

	e.logger.Info("level up",
		zap.String("user_id", userID),
		zap.Int("old_level", oldLevel),
		zap.Int("new_level", progress.Level),
		zap.Int64("xp", progress.XP),
	)
	return &LevelUp{
		UserID:         userID,
		OldLevel:       oldLevel,
		NewLevel:       progress.Level,
		XP:             progress.XP,
		NextRequiredXP: calc.RequiredXP(progress.Level + 1),
		At:             now,
	}, nil
}
