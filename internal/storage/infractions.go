package storage

import (
	"context"
	"time"
)

type Infraction struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Type        string        `json:"type"`
	Reason      string        `json:"reason"`
	ModeratorID string        `json:"moderatorId"`
	CreatedAt   time.Time     `json:"createdAt"`
	Duration    time.Duration `json:"duration,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	Active      bool          `json:"active"`
}

type ModerationSettings struct {
	LogChannelID    string `json:"logChannelId"`
	DMNotifications bool   `json:"dmNotifications"`
	MuteRoleID      string `json:"muteRoleId"`
}

// ModerationData is the content of moderation.json. Infractions are grouped
// by user in the order they were issued.
type ModerationData struct {
	Infractions map[string][]Infraction `json:"infractions"`
	Settings    ModerationSettings      `json:"settings"`
}

func DefaultModerationData() ModerationData {
	return ModerationData{
		Infractions: map[string][]Infraction{},
		Settings:    ModerationSettings{DMNotifications: true},
	}
}

func normalizeModerationData(d *ModerationData) {
	if d.Infractions == nil {
		d.Infractions = map[string][]Infraction{}
	}
}

func (s *Store) GetModerationData(ctx context.Context) (ModerationData, error) {
	if err := checkContext(ctx); err != nil {
		return ModerationData{}, err
	}
	return s.moderation.read()
}

func (s *Store) UpdateModerationData(ctx context.Context, fn func(*ModerationData) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.moderation.update(fn)
}
