package leveling

import (
	"context"
	"fmt"
	"sort"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 25
)

type LeaderboardEntry struct {
	UserID   string
	XP       int64
	Level    int
	Prestige int
}

// Leaderboard ranks users by prestige, then level, then XP. Ties fall back to
// the user ID so the order is stable between calls.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	entries, err := e.rankedEntries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Position returns the 1-based leaderboard position of userID, or 0 when the
// user has no stored record.
func (e *Engine) Position(ctx context.Context, userID string) (int, error) {
	entries, err := e.rankedEntries(ctx)
	if err != nil {
		return 0, err
	}
	for i, entry := range entries {
		if entry.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (e *Engine) rankedEntries(ctx context.Context) ([]LeaderboardEntry, error) {
	users, err := e.store.AllUserProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for userID, progress := range users {
		entries = append(entries, LeaderboardEntry{
			UserID:   userID,
			XP:       progress.XP,
			Level:    progress.Level,
			Prestige: progress.Prestige,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return rankedBefore(entries[i], entries[j])
	})
	return entries, nil
}

func rankedBefore(a, b LeaderboardEntry) bool {
	if a.Prestige != b.Prestige {
		return a.Prestige > b.Prestige
	}
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if a.XP != b.XP {
		return a.XP > b.XP
	}
	return a.UserID < b.UserID
}
