package leveling

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"guildkeeper/internal/storage"

	"go.uber.org/zap"
)

type failingStore struct {
	*storage.Store
	saveErr error
}

func (f *failingStore) SaveUserProgress(ctx context.Context, userID string, progress storage.UserProgress) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveUserProgress(ctx, userID, progress)
}

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := NewEngine(store, zap.NewNop())
	engine.WithRand(func(n int64) int64 { return n - 1 })
	return engine, store
}

func mustProgress(t *testing.T, store *storage.Store, userID string) storage.UserProgress {
	t.Helper()
	progress, err := store.GetUserProgress(context.Background(), userID)
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	return progress
}

func TestAwardMessageXPCooldown(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	if _, err := engine.AwardMessageXP(ctx, "u1", start); err != nil {
		t.Fatalf("first award: %v", err)
	}
	first := mustProgress(t, store, "u1")
	if first.XP != 20 {
		t.Fatalf("expected 20 xp (15 base + 5 bonus), got %d", first.XP)
	}
	if first.LastMessageTimestamp != start.UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", start.UnixMilli(), first.LastMessageTimestamp)
	}

	levelUp, err := engine.AwardMessageXP(ctx, "u1", start.Add(30*time.Second))
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if levelUp != nil {
		t.Fatalf("expected no level up during cooldown")
	}
	if got := mustProgress(t, store, "u1"); got != first {
		t.Fatalf("expected no mutation during cooldown, got %+v", got)
	}

	if _, err := engine.AwardMessageXP(ctx, "u1", start.Add(60*time.Second)); err != nil {
		t.Fatalf("third award: %v", err)
	}
	if got := mustProgress(t, store, "u1"); got.XP != 40 || got.TotalTextXP != 40 {
		t.Fatalf("expected 40 text xp, got %+v", got)
	}
}

func TestAwardMessageXPRandomBonusRange(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	var asked []int64
	engine.WithRand(func(n int64) int64 {
		asked = append(asked, n)
		return 0
	})
	if _, err := engine.AwardMessageXP(ctx, "u1", time.Unix(1_700_000_000, 0)); err != nil {
		t.Fatalf("award: %v", err)
	}
	if len(asked) != 1 || asked[0] != 6 {
		t.Fatalf("expected a draw from [0, 6), got %v", asked)
	}
	if got := mustProgress(t, store, "u1"); got.XP != 15 {
		t.Fatalf("expected 15 xp, got %d", got.XP)
	}
}

func TestAwardMessageXPLevelUp(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	if err := store.SaveUserProgress(ctx, "u1", storage.UserProgress{XP: 270, Level: 1, TotalTextXP: 270}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	levelUp, err := engine.AwardMessageXP(ctx, "u1", time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if levelUp == nil {
		t.Fatalf("expected level up")
	}
	if levelUp.OldLevel != 1 || levelUp.NewLevel != 2 || levelUp.XP != 290 || levelUp.NextRequiredXP != 519 {
		t.Fatalf("unexpected level up: %+v", levelUp)
	}
}

func TestAccrueVoiceXPAFKSuppressed(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	levelUp, err := engine.AccrueVoiceXP(ctx, "u1", 10, true, time.Now())
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if levelUp != nil {
		t.Fatalf("expected no level up for afk time")
	}
	all, err := store.AllUserProgress(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no write for afk time, got %v", all)
	}
}

func TestAccrueVoiceXPAFKAllowedWhenEnabled(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	afk := false
	if _, err := engine.UpdateRankOptions(ctx, RankOptions{AFKDisabled: &afk}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if _, err := engine.AccrueVoiceXP(ctx, "u1", 3, true, time.Now()); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if got := mustProgress(t, store, "u1"); got.XP != 30 || got.TotalVoiceXP != 30 {
		t.Fatalf("expected 30 voice xp, got %+v", got)
	}
}

func TestAccrueVoiceXPLevelUpAndBoost(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	levelUp, err := engine.AccrueVoiceXP(ctx, "u1", 30, false, time.Now())
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if levelUp == nil || levelUp.OldLevel != 1 || levelUp.NewLevel != 2 || levelUp.XP != 300 {
		t.Fatalf("unexpected level up: %+v", levelUp)
	}

	progress := mustProgress(t, store, "u1")
	progress.Prestige = 1
	if err := store.SaveUserProgress(ctx, "u1", progress); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := engine.AccrueVoiceXP(ctx, "u1", 10, false, time.Now()); err != nil {
		t.Fatalf("accrue boosted: %v", err)
	}
	if got := mustProgress(t, store, "u1"); got.XP != 405 || got.TotalVoiceXP != 405 {
		t.Fatalf("expected boosted total 405, got %+v", got)
	}
}

func TestTextAndVoiceXPSumToTotal(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	var lastXP int64
	lastLevel := 1
	for i := 0; i < 40; i++ {
		now = now.Add(45 * time.Second)
		if i%3 == 0 {
			if _, err := engine.AccrueVoiceXP(ctx, "u1", int64(i%7), i%2 == 0, now); err != nil {
				t.Fatalf("accrue: %v", err)
			}
		} else {
			if _, err := engine.AwardMessageXP(ctx, "u1", now); err != nil {
				t.Fatalf("award: %v", err)
			}
		}
		got := mustProgress(t, store, "u1")
		if got.TotalTextXP+got.TotalVoiceXP != got.XP {
			t.Fatalf("partition broken at step %d: %+v", i, got)
		}
		if got.XP < lastXP || got.Level < lastLevel {
			t.Fatalf("progress went backwards at step %d: %+v", i, got)
		}
		lastXP, lastLevel = got.XP, got.Level
	}
}

// newEngineWithRanks starts an engine over a data dir whose ranks.json was
// written by hand, bypassing SaveRankSettings.
func newEngineWithRanks(t *testing.T, ranksJSON string) (*Engine, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storage.RanksFile), []byte(ranksJSON), 0o644); err != nil {
		t.Fatalf("write ranks: %v", err)
	}
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := NewEngine(store, zap.NewNop())
	engine.WithRand(func(n int64) int64 { return n - 1 })
	return engine, store
}

const negativeRanksJSON = `{
  "roles": {},
  "textXp": {"baseAmount": -50, "cooldown": 0, "randomBonus": 0},
  "voiceXp": {"perMinute": -10, "afkDisabled": false},
  "formula": {"baseXp": 100, "exponent": 1.5}
}`

func TestNegativeRatesNeverRemoveXP(t *testing.T) {
	engine, store := newEngineWithRanks(t, negativeRanksJSON)
	ctx := context.Background()
	if err := store.SaveUserProgress(ctx, "u1", storage.UserProgress{XP: 300, Level: 2, TotalTextXP: 300}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	levelUp, err := engine.AwardMessageXP(ctx, "u1", time.Unix(1_700_000_000, 0))
	if err != nil || levelUp != nil {
		t.Fatalf("award: %+v %v", levelUp, err)
	}
	if _, err := engine.AccrueVoiceXP(ctx, "u1", 10, false, time.Unix(1_700_000_600, 0)); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	got := mustProgress(t, store, "u1")
	if got.XP != 300 || got.Level != 2 || got.TotalTextXP != 300 || got.TotalVoiceXP != 0 {
		t.Fatalf("negative rates must not remove xp, got %+v", got)
	}
	if got.LastMessageTimestamp != time.Unix(1_700_000_000, 0).UnixMilli() {
		t.Fatalf("message still counts against the cooldown, got %+v", got)
	}
}

func TestMixedAccrualIsMonotonic(t *testing.T) {
	settings := map[string]string{
		"default":  `{}`,
		"negative": negativeRanksJSON,
	}
	for name, ranksJSON := range settings {
		t.Run(name, func(t *testing.T) {
			engine, store := newEngineWithRanks(t, ranksJSON)
			ctx := context.Background()
			if err := store.SaveUserProgress(ctx, "u1", storage.UserProgress{XP: 300, Level: 2, TotalTextXP: 300}); err != nil {
				t.Fatalf("seed: %v", err)
			}

			now := time.Unix(1_700_000_000, 0)
			lastXP, lastLevel := int64(300), 2
			lastText, lastVoice := int64(300), int64(0)
			for i := 0; i < 60; i++ {
				now = now.Add(time.Duration(20+i%4*25) * time.Second)
				if i%2 == 0 {
					if _, err := engine.AccrueVoiceXP(ctx, "u1", int64(i%5), i%3 == 0, now); err != nil {
						t.Fatalf("accrue: %v", err)
					}
				} else if _, err := engine.AwardMessageXP(ctx, "u1", now); err != nil {
					t.Fatalf("award: %v", err)
				}

				got := mustProgress(t, store, "u1")
				if got.XP < lastXP || got.Level < lastLevel || got.TotalTextXP < lastText || got.TotalVoiceXP < lastVoice {
					t.Fatalf("progress went backwards at step %d: %+v", i, got)
				}
				if got.TotalTextXP+got.TotalVoiceXP != got.XP {
					t.Fatalf("partition broken at step %d: %+v", i, got)
				}
				lastXP, lastLevel = got.XP, got.Level
				lastText, lastVoice = got.TotalTextXP, got.TotalVoiceXP
			}
		})
	}
}

func TestConcurrentAccrualDoesNotLoseUpdates(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := engine.AccrueVoiceXP(ctx, "u1", 1, false, start); err != nil {
				t.Errorf("accrue: %v", err)
			}
		}()
		go func(i int) {
			defer wg.Done()
			at := start.Add(time.Duration(i) * 2 * time.Minute)
			if _, err := engine.AwardMessageXP(ctx, "u1", at); err != nil {
				t.Errorf("award: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got := mustProgress(t, store, "u1")
	if got.TotalVoiceXP != 250 {
		t.Fatalf("expected 250 voice xp, got %d", got.TotalVoiceXP)
	}
	if got.TotalTextXP+got.TotalVoiceXP != got.XP {
		t.Fatalf("partition broken: %+v", got)
	}
}

func TestSaveFailureReturnsError(t *testing.T) {
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	boom := errors.New("disk full")
	engine := NewEngine(&failingStore{Store: store, saveErr: boom}, zap.NewNop())

	if _, err := engine.AccrueVoiceXP(context.Background(), "u1", 5, false, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected save error, got %v", err)
	}
	if got := mustProgress(t, store, "u1"); got.XP != 0 {
		t.Fatalf("expected no mutation, got %+v", got)
	}
}
