package moderation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"guildkeeper/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeWarn   = "warn"
	TypeMute   = "mute"
	TypeKick   = "kick"
	TypeBan    = "ban"
	TypeUnmute = "unmute"
	TypeUnban  = "unban"
)

var (
	ErrNotFound    = errors.New("infraction not found")
	ErrUnknownType = errors.New("unknown infraction type")
)

type Store interface {
	GetModerationData(ctx context.Context) (storage.ModerationData, error)
	UpdateModerationData(ctx context.Context, fn func(*storage.ModerationData) error) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store  Store
	logger *zap.Logger
	clock  Clock
	newID  func() string
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		clock:  realClock{},
		newID:  uuid.NewString,
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// NewInfraction is the input to Create. A zero Duration means permanent.
type NewInfraction struct {
	UserID      string
	Type        string
	Reason      string
	ModeratorID string
	Duration    time.Duration
	// Closed records the action as already finished, as for unmute and unban.
	Closed bool
}

type Filter struct {
	Type       string
	ActiveOnly bool
}

type Counts struct {
	Total  int
	Warn   int
	Mute   int
	Kick   int
	Ban    int
	Active int
}

func validType(kind string) bool {
	switch kind {
	case TypeWarn, TypeMute, TypeKick, TypeBan, TypeUnmute, TypeUnban:
		return true
	}
	return false
}

func (s *Service) Create(ctx context.Context, in NewInfraction) (storage.Infraction, error) {
	kind := strings.ToLower(in.Type)
	if !validType(kind) {
		return storage.Infraction{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	if in.UserID == "" {
		return storage.Infraction{}, fmt.Errorf("create infraction: empty user id")
	}

	now := s.clock.Now()
	infraction := storage.Infraction{
		ID:          s.newID(),
		UserID:      in.UserID,
		Type:        kind,
		Reason:      strings.TrimSpace(in.Reason),
		ModeratorID: in.ModeratorID,
		CreatedAt:   now,
		Active:      !in.Closed,
	}
	if in.Duration > 0 {
		expires := now.Add(in.Duration)
		infraction.Duration = in.Duration
		infraction.ExpiresAt = &expires
	}

	err := s.store.UpdateModerationData(ctx, func(data *storage.ModerationData) error {
		data.Infractions[in.UserID] = append(data.Infractions[in.UserID], infraction)
		return nil
	})
	if err != nil {
		return storage.Infraction{}, fmt.Errorf("save infraction: %w", err)
	}

	s.logger.Info("infraction created",
		zap.String("id", infraction.ID),
		zap.String("user_id", infraction.UserID),
		zap.String("type", infraction.Type),
		zap.String("moderator_id", infraction.ModeratorID),
		zap.Duration("duration", infraction.Duration),
	)
	return infraction, nil
}

// ForUser returns the user's infractions, newest first.
func (s *Service) ForUser(ctx context.Context, userID string, filter Filter) ([]storage.Infraction, error) {
	data, err := s.store.GetModerationData(ctx)
	if err != nil {
		return nil, fmt.Errorf("load moderation data: %w", err)
	}

	kind := strings.ToLower(filter.Type)
	out := make([]storage.Infraction, 0, len(data.Infractions[userID]))
	for _, infraction := range data.Infractions[userID] {
		if kind != "" && kind != "all" && infraction.Type != kind {
			continue
		}
		if filter.ActiveOnly && !infraction.Active {
			continue
		}
		out = append(out, infraction)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) ByID(ctx context.Context, id string) (storage.Infraction, error) {
	data, err := s.store.GetModerationData(ctx)
	if err != nil {
		return storage.Infraction{}, fmt.Errorf("load moderation data: %w", err)
	}
	for _, list := range data.Infractions {
		for _, infraction := range list {
			if infraction.ID == id {
				return infraction, nil
			}
		}
	}
	return storage.Infraction{}, ErrNotFound
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.UpdateModerationData(ctx, func(data *storage.ModerationData) error {
		for userID, list := range data.Infractions {
			for i := range list {
				if list[i].ID == id {
					data.Infractions[userID][i].Active = active
					return nil
				}
			}
		}
		return ErrNotFound
	})
}

// Deactivate closes every active infraction of kind for the user and returns
// how many were closed.
func (s *Service) Deactivate(ctx context.Context, userID, kind string) (int, error) {
	closed := 0
	err := s.store.UpdateModerationData(ctx, func(data *storage.ModerationData) error {
		closed = 0
		list := data.Infractions[userID]
		for i := range list {
			if list[i].Type == kind && list[i].Active {
				list[i].Active = false
				closed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deactivate %s: %w", kind, err)
	}
	return closed, nil
}

func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	list, err := s.ForUser(ctx, userID, Filter{})
	if err != nil {
		return Counts{}, err
	}
	counts := Counts{Total: len(list)}
	for _, infraction := range list {
		switch infraction.Type {
		case TypeWarn:
			counts.Warn++
		case TypeMute:
			counts.Mute++
		case TypeKick:
			counts.Kick++
		case TypeBan:
			counts.Ban++
		}
		if infraction.Active {
			counts.Active++
		}
	}
	return counts, nil
}

// Expire marks every active infraction whose expiry is at or before now as
// inactive and returns them so the caller can lift the punishment.
func (s *Service) Expire(ctx context.Context, now time.Time) ([]storage.Infraction, error) {
	var expired []storage.Infraction
	err := s.store.UpdateModerationData(ctx, func(data *storage.ModerationData) error {
		expired = expired[:0]
		for userID, list := range data.Infractions {
			for i := range list {
				item := &data.Infractions[userID][i]
				if !item.Active || item.ExpiresAt == nil || item.ExpiresAt.After(now) {
					continue
				}
				item.Active = false
				expired = append(expired, *item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expire infractions: %w", err)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt)
	})
	return expired, nil
}

func (s *Service) Settings(ctx context.Context) (storage.ModerationSettings, error) {
	data, err := s.store.GetModerationData(ctx)
	if err != nil {
		return storage.ModerationSettings{}, fmt.Errorf("load moderation data: %w", err)
	}
	return data.Settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, fn func(*storage.ModerationSettings)) (storage.ModerationSettings, error) {
	var settings storage.ModerationSettings
	err := s.store.UpdateModerationData(ctx, func(data *storage.ModerationData) error {
		fn(&data.Settings)
		settings = data.Settings
		return nil
	})
	if err != nil {
		return storage.ModerationSettings{}, fmt.Errorf("update moderation settings: %w", err)
	}
	return settings, nil
}

// Color is the embed colour used for an infraction type.
func Color(kind string) int {
	switch strings.ToLower(kind) {
	case TypeWarn:
		return 0xFFD700
	case TypeMute:
		return 0xFF8C00
	case TypeKick:
		return 0xFF4500
	case TypeBan:
		return 0xFF0000
	default:
		return 0x7289DA
	}
}

// Title capitalises an infraction type for display.
func Title(kind string) string {
	if kind == "" {
		return ""
	}
	kind = strings.ToLower(kind)
	return strings.ToUpper(kind[:1]) + kind[1:]
}
