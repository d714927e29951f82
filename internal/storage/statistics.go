package storage

import (
	"context"
)

// Counters holds a running total and bucketed counts keyed by period label.
type Counters struct {
	Total   int64            `json:"total"`
	Daily   map[string]int64 `json:"daily"`
	Weekly  map[string]int64 `json:"weekly"`
	Monthly map[string]int64 `json:"monthly"`
}

type CommandCounters struct {
	Total int64            `json:"total"`
	Types map[string]int64 `json:"types"`
}

type UserStatistics struct {
	Messages Counters        `json:"messages"`
	Voice    Counters        `json:"voice"`
	Commands CommandCounters `json:"commands"`
}

func DefaultUserStatistics() UserStatistics {
	stats := UserStatistics{}
	stats.normalize()
	return stats
}

func (u *UserStatistics) normalize() {
	u.Messages.normalize()
	u.Voice.normalize()
	if u.Commands.Types == nil {
		u.Commands.Types = map[string]int64{}
	}
}

func (c *Counters) normalize() {
	if c.Daily == nil {
		c.Daily = map[string]int64{}
	}
	if c.Weekly == nil {
		c.Weekly = map[string]int64{}
	}
	if c.Monthly == nil {
		c.Monthly = map[string]int64{}
	}
}

func (s *Store) GetUserStatistics(ctx context.Context, userID string) (UserStatistics, error) {
	if err := checkContext(ctx); err != nil {
		return UserStatistics{}, err
	}
	all, err := s.statistics.read()
	if err != nil {
		return UserStatistics{}, err
	}
	stats, ok := all[userID]
	if !ok {
		return DefaultUserStatistics(), nil
	}
	stats.normalize()
	return stats, nil
}

// UpdateUserStatistics runs fn against the user's statistics and persists the
// result. A user without statistics starts from empty counters.
func (s *Store) UpdateUserStatistics(ctx context.Context, userID string, fn func(*UserStatistics) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.statistics.update(func(all *map[string]UserStatistics) error {
		stats, ok := (*all)[userID]
		if !ok {
			stats = DefaultUserStatistics()
		}
		stats.normalize()
		if err := fn(&stats); err != nil {
			return err
		}
		(*all)[userID] = stats
		return nil
	})
}
