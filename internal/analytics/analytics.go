package analytics

import (
	"context"
	"fmt"
	"time"

	"guildkeeper/internal/storage"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"

	keepDays   = 30
	keepWeeks  = 12
	keepMonths = 12

	DefaultRecentDays = 7
	MaxRecentDays     = 30
)

// Store is the slice of storage the statistics service uses.
type Store interface {
	GetUserStatistics(ctx context.Context, userID string) (storage.UserStatistics, error)
	UpdateUserStatistics(ctx context.Context, userID string, fn func(*storage.UserStatistics) error) error
}

type Service struct {
	store    Store
	location *time.Location
}

func New(store Store) *Service {
	return &Service{store: store, location: time.Local}
}

// WithLocation sets the zone used to bucket days, weeks and months.
func (s *Service) WithLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

type DayCount struct {
	Day   string
	Count int64
}

// Report summarises the last N days of activity for one user, newest first.
type Report struct {
	Days          int
	Messages      int64
	VoiceMinutes  int64
	MessagesByDay []DayCount
	VoiceByDay    []DayCount

	TotalMessages     int64
	TotalVoiceMinutes int64
	TotalCommands     int64
	TopCommand        string
}

func (s *Service) RecordMessage(ctx context.Context, userID string, now time.Time) error {
	return s.record(ctx, userID, now, 1, func(stats *storage.UserStatistics) *storage.Counters {
		return &stats.Messages
	})
}

func (s *Service) RecordVoice(ctx context.Context, userID string, minutes int64, now time.Time) error {
	if minutes <= 0 {
		return nil
	}
	return s.record(ctx, userID, now, minutes, func(stats *storage.UserStatistics) *storage.Counters {
		return &stats.Voice
	})
}

func (s *Service) RecordCommand(ctx context.Context, userID, name string) error {
	err := s.store.UpdateUserStatistics(ctx, userID, func(stats *storage.UserStatistics) error {
		stats.Commands.Total++
		stats.Commands.Types[name]++
		return nil
	})
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, userID string, now time.Time, delta int64, pick func(*storage.UserStatistics) *storage.Counters) error {
	now = now.In(s.location)
	err := s.store.UpdateUserStatistics(ctx, userID, func(stats *storage.UserStatistics) error {
		counters := pick(stats)
		counters.Total += delta
		counters.Daily[DayKey(now)] += delta
		counters.Weekly[WeekKey(now)] += delta
		counters.Monthly[MonthKey(now)] += delta
		Prune(counters, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Recent builds a report over the last days days including today.
func (s *Service) Recent(ctx context.Context, userID string, days int, now time.Time) (Report, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	if days > MaxRecentDays {
		days = MaxRecentDays
	}

	stats, err := s.store.GetUserStatistics(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("load statistics: %w", err)
	}

	now = now.In(s.location)
	report := Report{
		Days:              days,
		TotalMessages:     stats.Messages.Total,
		TotalVoiceMinutes: stats.Voice.Total,
		TotalCommands:     stats.Commands.Total,
		TopCommand:        topCommand(stats.Commands.Types),
	}
	for i := 0; i < days; i++ {
		day := DayKey(now.AddDate(0, 0, -i))
		messages := stats.Messages.Daily[day]
		minutes := stats.Voice.Daily[day]
		report.Messages += messages
		report.VoiceMinutes += minutes
		report.MessagesByDay = append(report.MessagesByDay, DayCount{Day: day, Count: messages})
		report.VoiceByDay = append(report.VoiceByDay, DayCount{Day: day, Count: minutes})
	}
	return report, nil
}

func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// WeekKey returns the ISO 8601 week label, e.g. 2024-W01.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// Prune drops buckets older than 30 days, 12 weeks and 12 months. The labels
// sort lexically in time order, so a string comparison against the cutoff is
// enough.
func Prune(c *storage.Counters, now time.Time) {
	dayCutoff := DayKey(now.AddDate(0, 0, -keepDays))
	for key := range c.Daily {
		if key < dayCutoff {
			delete(c.Daily, key)
		}
	}
	weekCutoff := WeekKey(now.AddDate(0, 0, -7*keepWeeks))
	for key := range c.Weekly {
		if key < weekCutoff {
			delete(c.Weekly, key)
		}
	}
	monthCutoff := MonthKey(now.AddDate(0, -keepMonths, 0))
	for key := range c.Monthly {
		if key < monthCutoff {
			delete(c.Monthly, key)
		}
	}
}

func topCommand(types map[string]int64) string {
	best := ""
	var bestCount int64
	for name, count := range types {
		if count > bestCount || (count == bestCount && name < best) {
			best = name
			bestCount = count
		}
	}
	return best
}
