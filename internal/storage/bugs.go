package storage

import (
	"context"
	"time"
)

type BugReport struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Steps       string     `json:"steps"`
	ReporterID  string     `json:"reporterId"`
	Status      string     `json:"status"`
	Links       []string   `json:"links,omitempty"`
	ChannelID   string     `json:"channelId,omitempty"`
	MessageID   string     `json:"messageId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

type BugData struct {
	ChannelID string               `json:"channelId"`
	Reports   map[string]BugReport `json:"reports"`
}

func DefaultBugData() BugData {
	return BugData{Reports: map[string]BugReport{}}
}

func normalizeBugData(d *BugData) {
	if d.Reports == nil {
		d.Reports = map[string]BugReport{}
	}
}

func (s *Store) GetBugData(ctx context.Context) (BugData, error) {
	if err := checkContext(ctx); err != nil {
		return BugData{}, err
	}
	return s.bugs.read()
}

func (s *Store) UpdateBugData(ctx context.Context, fn func(*BugData) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.bugs.update(fn)
}
