package storage

import (
	"context"
	"fmt"
)

// UserProgress is the persisted leveling record of one user.
type UserProgress struct {
	XP                   int64 `json:"xp"`
	Level                int   `json:"level"`
	Prestige             int   `json:"prestige"`
	LastMessageTimestamp int64 `json:"lastMessageTimestamp"`
	TotalTextXP          int64 `json:"totalTextXp"`
	TotalVoiceXP         int64 `json:"totalVoiceXp"`
}

func DefaultUserProgress() UserProgress {
	return UserProgress{Level: 1}
}

// GetUserProgress returns the stored record, or the default when the user has
// never been seen. The default is not written.
func (s *Store) GetUserProgress(ctx context.Context, userID string) (UserProgress, error) {
	if err := checkContext(ctx); err != nil {
		return UserProgress{}, err
	}
	users, err := s.users.read()
	if err != nil {
		return UserProgress{}, err
	}
	progress, ok := users[userID]
	if !ok {
		return DefaultUserProgress(), nil
	}
	if progress.Level < 1 {
		progress.Level = 1
	}
	return progress, nil
}

func (s *Store) SaveUserProgress(ctx context.Context, userID string, progress UserProgress) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("save progress: empty user id")
	}
	return s.users.update(func(users *map[string]UserProgress) error {
		(*users)[userID] = progress
		return nil
	})
}

func (s *Store) AllUserProgress(ctx context.Context) (map[string]UserProgress, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	return s.users.read()
}
