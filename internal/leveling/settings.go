package leveling

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"guildkeeper/internal/storage"
)

var (
	ErrNoChanges    = errors.New("no settings provided")
	ErrInvalidColor = errors.New("color must be a hex code like #FF0000")
	ErrNoRoleReward = errors.New("no role reward configured for level")
	ErrInvalidValue = errors.New("invalid setting value")
)

const maxPrestigeBoost = 0.5

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// RankOptions carries optional edits to RankSettings; nil fields are left as
// they are.
type RankOptions struct {
	TextBaseAmount *int64
	TextCooldown   *int
	VoicePerMinute *int64
	AFKDisabled    *bool
}

func (o RankOptions) empty() bool {
	return o.TextBaseAmount == nil && o.TextCooldown == nil && o.VoicePerMinute == nil && o.AFKDisabled == nil
}

// PrestigeOptions carries optional edits to a single prestige tier.
type PrestigeOptions struct {
	Name          *string
	RequiredLevel *int
	Color         *string
	RoleID        *string
	XPBoost       *float64
}

func (o PrestigeOptions) empty() bool {
	return o.Name == nil && o.RequiredLevel == nil && o.Color == nil && o.RoleID == nil && o.XPBoost == nil
}

func (e *Engine) RankSettings(ctx context.Context) (storage.RankSettings, error) {
	return e.store.GetRankSettings(ctx)
}

func (e *Engine) PrestigeSettings(ctx context.Context) (storage.PrestigeSettings, error) {
	return e.store.GetPrestigeSettings(ctx)
}

func (e *Engine) SetRoleReward(ctx context.Context, level int, roleID string) error {
	if level < 1 || roleID == "" {
		return ErrInvalidValue
	}
	return e.store.UpdateRankSettings(ctx, func(s *storage.RankSettings) error {
		s.Roles[level] = roleID
		return nil
	})
}

// RemoveRoleReward deletes the reward for level and returns the role it held.
func (e *Engine) RemoveRoleReward(ctx context.Context, level int) (string, error) {
	var removed string
	err := e.store.UpdateRankSettings(ctx, func(s *storage.RankSettings) error {
		roleID, ok := s.Roles[level]
		if !ok {
			return fmt.Errorf("%w %d", ErrNoRoleReward, level)
		}
		removed = roleID
		delete(s.Roles, level)
		return nil
	})
	return removed, err
}

// UpdateRankOptions applies opts and returns a human readable list of the
// changes made.
func (e *Engine) UpdateRankOptions(ctx context.Context, opts RankOptions) ([]string, error) {
	if opts.empty() {
		return nil, ErrNoChanges
	}
	var changes []string
	err := e.store.UpdateRankSettings(ctx, func(s *storage.RankSettings) error {
		changes = changes[:0]
		if opts.TextBaseAmount != nil {
			if *opts.TextBaseAmount < 1 {
				return fmt.Errorf("%w: text xp must be at least 1", ErrInvalidValue)
			}
			s.TextXP.BaseAmount = *opts.TextBaseAmount
			changes = append(changes, fmt.Sprintf("Text XP: %d", *opts.TextBaseAmount))
		}
		if opts.TextCooldown != nil {
			if *opts.TextCooldown < 0 {
				return fmt.Errorf("%w: cooldown cannot be negative", ErrInvalidValue)
			}
			s.TextXP.Cooldown = *opts.TextCooldown
			changes = append(changes, fmt.Sprintf("Text Cooldown: %d seconds", *opts.TextCooldown))
		}
		if opts.VoicePerMinute != nil {
			if *opts.VoicePerMinute < 1 {
				return fmt.Errorf("%w: voice xp must be at least 1", ErrInvalidValue)
			}
			s.VoiceXP.PerMinute = *opts.VoicePerMinute
			changes = append(changes, fmt.Sprintf("Voice XP: %d per minute", *opts.VoicePerMinute))
		}
		if opts.AFKDisabled != nil {
			s.VoiceXP.AFKDisabled = *opts.AFKDisabled
			changes = append(changes, "AFK Disabled: "+yesNo(*opts.AFKDisabled))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// UpdatePrestigeTier edits tier, creating it from the stock template when it
// does not exist yet.
func (e *Engine) UpdatePrestigeTier(ctx context.Context, tier int, opts PrestigeOptions) ([]string, error) {
	if tier < 1 {
		return nil, fmt.Errorf("%w: tier must be at least 1", ErrInvalidValue)
	}
	if opts.empty() {
		return nil, ErrNoChanges
	}
	if opts.Color != nil && !hexColorPattern.MatchString(*opts.Color) {
		return nil, ErrInvalidColor
	}
	if opts.XPBoost != nil && (*opts.XPBoost < 0 || *opts.XPBoost > maxPrestigeBoost) {
		return nil, fmt.Errorf("%w: xp boost must be between 0 and %.1f", ErrInvalidValue, maxPrestigeBoost)
	}
	if opts.RequiredLevel != nil && *opts.RequiredLevel < 1 {
		return nil, fmt.Errorf("%w: required level must be at least 1", ErrInvalidValue)
	}

	var changes []string
	err := e.store.UpdatePrestigeSettings(ctx, func(s *storage.PrestigeSettings) error {
		changes = changes[:0]
		config, ok := s.Prestiges[tier]
		if !ok {
			config = storage.PrestigeTier{
				Name:          fmt.Sprintf("Prestige %d", tier),
				RequiredLevel: tier * 100,
				XPBoost:       float64(tier) * 0.05,
			}
		}
		if opts.Name != nil {
			config.Name = strings.TrimSpace(*opts.Name)
			changes = append(changes, "Name: "+config.Name)
		}
		if opts.RequiredLevel != nil {
			config.RequiredLevel = *opts.RequiredLevel
			changes = append(changes, fmt.Sprintf("Required Level: %d", config.RequiredLevel))
		}
		if opts.Color != nil {
			config.Color = strings.ToUpper(*opts.Color)
			changes = append(changes, "Color: "+config.Color)
		}
		if opts.RoleID != nil {
			config.RoleID = *opts.RoleID
			changes = append(changes, "Role: <@&"+config.RoleID+">")
		}
		if opts.XPBoost != nil {
			config.XPBoost = *opts.XPBoost
			changes = append(changes, fmt.Sprintf("XP Boost: +%d%%", int(config.XPBoost*100)))
		}
		s.Prestiges[tier] = config
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
