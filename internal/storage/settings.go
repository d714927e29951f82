package storage

import (
	"context"
)

type TextXPSettings struct {
	BaseAmount int64 `json:"baseAmount"`
	// Cooldown is in seconds.
	Cooldown    int   `json:"cooldown"`
	RandomBonus int64 `json:"randomBonus"`
}

type VoiceXPSettings struct {
	PerMinute   int64 `json:"perMinute"`
	AFKDisabled bool  `json:"afkDisabled"`
}

// Formula defines RequiredXP(level) = floor(BaseXP * level^Exponent).
type Formula struct {
	BaseXP   float64 `json:"baseXp"`
	Exponent float64 `json:"exponent"`
}

type RankSettings struct {
	Roles   map[int]string  `json:"roles"`
	TextXP  TextXPSettings  `json:"textXp"`
	VoiceXP VoiceXPSettings `json:"voiceXp"`
	Formula Formula         `json:"formula"`
}

type PrestigeTier struct {
	Name          string  `json:"name"`
	RequiredLevel int     `json:"requiredLevel"`
	Color         string  `json:"color"`
	RoleID        string  `json:"roleId"`
	XPBoost       float64 `json:"xpBoost"`
}

type PrestigeSettings struct {
	Prestiges map[int]PrestigeTier `json:"prestiges"`
}

func DefaultRankSettings() RankSettings {
	return RankSettings{
		Roles: map[int]string{},
		TextXP: TextXPSettings{
			BaseAmount:  15,
			Cooldown:    60,
			RandomBonus: 5,
		},
		VoiceXP: VoiceXPSettings{
			PerMinute:   10,
			AFKDisabled: true,
		},
		Formula: Formula{
			BaseXP:   100,
			Exponent: 1.5,
		},
	}
}

func DefaultPrestigeSettings() PrestigeSettings {
	return PrestigeSettings{
		Prestiges: map[int]PrestigeTier{
			1: {Name: "Bronze", RequiredLevel: 100, Color: "#CD7F32", XPBoost: 0.05},
			2: {Name: "Silver", RequiredLevel: 200, Color: "#C0C0C0", XPBoost: 0.10},
			3: {Name: "Gold", RequiredLevel: 300, Color: "#FFD700", XPBoost: 0.15},
			4: {Name: "Platinum", RequiredLevel: 400, Color: "#E5E4E2", XPBoost: 0.20},
			5: {Name: "Diamond", RequiredLevel: 500, Color: "#B9F2FF", XPBoost: 0.25},
		},
	}
}

// normalizeRankSettings fills sections that are absent from an older file.
// Values that are present are kept as written, even when they look odd; the
// calculator decides how to treat a degenerate formula.
func normalizeRankSettings(s *RankSettings) {
	if s.Roles == nil {
		s.Roles = map[int]string{}
	}
	defaults := DefaultRankSettings()
	if s.TextXP == (TextXPSettings{}) {
		s.TextXP = defaults.TextXP
	}
	if s.VoiceXP == (VoiceXPSettings{}) {
		s.VoiceXP = defaults.VoiceXP
	}
	if s.Formula == (Formula{}) {
		s.Formula = defaults.Formula
	}
}

func normalizePrestigeSettings(s *PrestigeSettings) {
	if s.Prestiges == nil {
		s.Prestiges = map[int]PrestigeTier{}
	}
}

func (s *Store) GetRankSettings(ctx context.Context) (RankSettings, error) {
	if err := checkContext(ctx); err != nil {
		return RankSettings{}, err
	}
	return s.ranks.read()
}

func (s *Store) SaveRankSettings(ctx context.Context, settings RankSettings) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	normalizeRankSettings(&settings)
	return s.ranks.write(settings)
}

// UpdateRankSettings applies fn to the current settings and saves the result
// while holding the file lock.
func (s *Store) UpdateRankSettings(ctx context.Context, fn func(*RankSettings) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.ranks.update(fn)
}

func (s *Store) GetPrestigeSettings(ctx context.Context) (PrestigeSettings, error) {
	if err := checkContext(ctx); err != nil {
		return PrestigeSettings{}, err
	}
	return s.prestiges.read()
}

func (s *Store) SavePrestigeSettings(ctx context.Context, settings PrestigeSettings) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	normalizePrestigeSettings(&settings)
	return s.prestiges.write(settings)
}

func (s *Store) UpdatePrestigeSettings(ctx context.Context, fn func(*PrestigeSettings) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	return s.prestiges.update(fn)
}
