package leveling

import (
	"context"
	"fmt"
	"sort"

	"guildkeeper/internal/storage"

	"go.uber.org/zap"
)

type RoleReward struct {
	Level  int
	RoleID string
}

type PrestigeChange struct {
	UserID      string
	OldPrestige int
	NewPrestige int
	Tier        storage.PrestigeTier
}

// ResolveRoleRewards lists every configured role whose level threshold is at
// most newLevel, ordered by level. It does not look at the member's roles;
// callers filter with MissingRoles before granting.
func (e *Engine) ResolveRoleRewards(ctx context.Context, userID string, newLevel int) ([]RoleReward, error) {
	ranks, err := e.store.GetRankSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rank settings: %w", err)
	}
	return RewardsForLevel(ranks.Roles, newLevel), nil
}

func RewardsForLevel(roles map[int]string, level int) []RoleReward {
	rewards := make([]RoleReward, 0, len(roles))
	for threshold, roleID := range roles {
		if roleID == "" || threshold > level {
			continue
		}
		rewards = append(rewards, RoleReward{Level: threshold, RoleID: roleID})
	}
	sort.Slice(rewards, func(i, j int) bool {
		return rewards[i].Level < rewards[j].Level
	})
	return rewards
}

// MissingRoles returns the reward role IDs not present in current, without
// duplicates.
func MissingRoles(rewards []RoleReward, current []string) []string {
	have := make(map[string]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	missing := make([]string, 0, len(rewards))
	for _, reward := range rewards {
		if _, ok := have[reward.RoleID]; ok {
			continue
		}
		have[reward.RoleID] = struct{}{}
		missing = append(missing, reward.RoleID)
	}
	return missing
}

// ResolvePrestige promotes the user to the highest tier unlocked by newLevel.
// Prestige never decreases; nil means no change.
func (e *Engine) ResolvePrestige(ctx context.Context, userID string, newLevel int) (*PrestigeChange, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	prestiges, err := e.store.GetPrestigeSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load prestige settings: %w", err)
	}
	progress, err := e.store.GetUserProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	best, tier, ok := HighestTier(prestiges, newLevel)
	if !ok || best <= progress.Prestige {
		return nil, nil
	}

	change := &PrestigeChange{
		UserID:      userID,
		OldPrestige: progress.Prestige,
		NewPrestige: best,
		Tier:        tier,
	}
	progress.Prestige = best
	if err := e.store.SaveUserProgress(ctx, userID, progress); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	e.logger.Info("prestige reached",
		zap.String("user_id", userID),
		zap.Int("old_prestige", change.OldPrestige),
		zap.Int("new_prestige", change.NewPrestige),
		zap.String("tier", tier.Name),
	)
	return change, nil
}

// HighestTier returns the highest tier number whose required level is at most
// level.
func HighestTier(prestiges storage.PrestigeSettings, level int) (int, storage.PrestigeTier, bool) {
	best := 0
	var tier storage.PrestigeTier
	for number, config := range prestiges.Prestiges {
		if number <= 0 || config.RequiredLevel > level {
			continue
		}
		if number > best {
			best = number
			tier = config
		}
	}
	return best, tier, best > 0
}

// PrestigeRoleIDs lists every configured prestige role, sorted and unique.
func PrestigeRoleIDs(prestiges storage.PrestigeSettings) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(prestiges.Prestiges))
	for _, config := range prestiges.Prestiges {
		if config.RoleID == "" {
			continue
		}
		if _, ok := seen[config.RoleID]; ok {
			continue
		}
		seen[config.RoleID] = struct{}{}
		ids = append(ids, config.RoleID)
	}
	sort.Strings(ids)
	return ids
}
