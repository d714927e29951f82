package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	UsersFile      = "users.json"
	RanksFile      = "ranks.json"
	PrestigesFile  = "prestiges.json"
	StatisticsFile = "statistics.json"
	ModerationFile = "moderation.json"
	BugsFile       = "bugs.json"
)

// Store is the flat-file JSON persistence layer. Each file is an independent
// document; there are no transactions across files.
type Store struct {
	dir        string
	users      *document[map[string]UserProgress]
	ranks      *document[RankSettings]
	prestiges  *document[PrestigeSettings]
	statistics *document[map[string]UserStatistics]
	moderation *document[ModerationData]
	bugs       *document[BugData]
}

func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	return &Store{
		dir:        dir,
		users:      newDocument(dir, UsersFile, emptyMap[UserProgress], normalizeMap[UserProgress]),
		ranks:      newDocument(dir, RanksFile, DefaultRankSettings, normalizeRankSettings),
		prestiges:  newDocument(dir, PrestigesFile, DefaultPrestigeSettings, normalizePrestigeSettings),
		statistics: newDocument(dir, StatisticsFile, emptyMap[UserStatistics], normalizeMap[UserStatistics]),
		moderation: newDocument(dir, ModerationFile, DefaultModerationData, normalizeModerationData),
		bugs:       newDocument(dir, BugsFile, DefaultBugData, normalizeBugData),
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Init writes every document that does not exist yet with its defaults.
func (s *Store) Init() error {
	steps := []func() error{
		s.users.ensure,
		s.ranks.ensure,
		s.prestiges.ensure,
		s.statistics.ensure,
		s.moderation.ensure,
		s.bugs.ensure,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Quarantine renames a corrupt document aside. The next read of that document
// returns its defaults.
func (s *Store) Quarantine(name string) (string, error) {
	suffix := strconv.FormatInt(time.Now().Unix(), 10)
	switch name {
	case UsersFile:
		return s.users.quarantine(suffix)
	case RanksFile:
		return s.ranks.quarantine(suffix)
	case PrestigesFile:
		return s.prestiges.quarantine(suffix)
	case StatisticsFile:
		return s.statistics.quarantine(suffix)
	case ModerationFile:
		return s.moderation.quarantine(suffix)
	case BugsFile:
		return s.bugs.quarantine(suffix)
	default:
		return "", fmt.Errorf("unknown document %q", name)
	}
}

func emptyMap[V any]() map[string]V {
	return make(map[string]V)
}

func normalizeMap[V any](m *map[string]V) {
	if *m == nil {
		*m = make(map[string]V)
	}
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
