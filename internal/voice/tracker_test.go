package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guildkeeper/internal/leveling"

	"go.uber.org/zap"
)

type accrueCall struct {
	userID  string
	minutes int64
	afk     bool
}

type fakeAccruer struct {
	mu    sync.Mutex
	calls []accrueCall
	err   error
}

func (f *fakeAccruer) AccrueVoiceXP(_ context.Context, userID string, minutes int64, isAFK bool, _ time.Time) (*leveling.LevelUp, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, accrueCall{userID: userID, minutes: minutes, afk: isAFK})
	return nil, nil
}

type liveState struct {
	channel string
	afk     string
}

type fakeResolver struct {
	mu     sync.Mutex
	state  map[string]liveState
	err    error
	guilds []string
}

func (f *fakeResolver) VoiceChannel(_ context.Context, guildID, userID string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guilds = append(f.guilds, guildID)
	if f.err != nil {
		return "", "", f.err
	}
	live := f.state[guildID+":"+userID]
	return live.channel, live.afk, nil
}

func newTestTracker() (*Tracker, *fakeAccruer, *fakeResolver) {
	accruer := &fakeAccruer{}
	resolver := &fakeResolver{state: map[string]liveState{}}
	return NewTracker(accruer, resolver, zap.NewNop()), accruer, resolver
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSessionLifecycle(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	if _, err := tracker.Handle(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if tracker.Len() != 1 {
		t.Fatalf("expected tracked session")
	}

	accrual, err := tracker.Handle(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", NewChannelID: "c2", At: t0.Add(3*time.Minute + 20*time.Second)})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if accrual == nil || accrual.Minutes != 3 || accrual.ChannelID != "c1" {
		t.Fatalf("unexpected move accrual: %+v", accrual)
	}
	session, ok := tracker.Session("u1")
	if !ok || session.ChannelID != "c2" || !session.JoinTime.Equal(t0) {
		t.Fatalf("unexpected session after move: %+v", session)
	}

	accrual, err = tracker.Handle(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c2", At: t0.Add(6*time.Minute + 40*time.Second)})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if accrual == nil || accrual.Minutes != 3 {
		t.Fatalf("unexpected leave accrual: %+v", accrual)
	}

	if len(accruer.calls) != 2 {
		t.Fatalf("expected 2 accrual calls, got %d", len(accruer.calls))
	}
	for _, call := range accruer.calls {
		if call.minutes != 3 || call.afk {
			t.Fatalf("unexpected call: %+v", call)
		}
	}
	if tracker.Len() != 0 {
		t.Fatalf("expected session to be gone")
	}
}

func TestLeaveUsesOldChannelAFKStatus(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "afk", At: t0})
	if _, err := tracker.Leave(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "afk", AFKChannelID: "afk", At: t0.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if len(accruer.calls) != 1 || !accruer.calls[0].afk || accruer.calls[0].minutes != 10 {
		t.Fatalf("expected one afk accrual of 10 minutes, got %+v", accruer.calls)
	}
}

func TestMoveIntoAFKCreditsOldChannel(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	if _, err := tracker.Move(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", NewChannelID: "afk", AFKChannelID: "afk", At: t0.Add(4 * time.Minute)}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := tracker.Leave(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "afk", AFKChannelID: "afk", At: t0.Add(9 * time.Minute)}); err != nil {
		t.Fatalf("leave: %v", err)
	}

	want := []accrueCall{{userID: "u1", minutes: 4, afk: false}, {userID: "u1", minutes: 5, afk: true}}
	if len(accruer.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, accruer.calls)
	}
	for i := range want {
		if accruer.calls[i] != want[i] {
			t.Fatalf("call %d: expected %+v, got %+v", i, want[i], accruer.calls[i])
		}
	}
}

func TestShortStayAccruesNothing(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	accrual, err := tracker.Leave(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", At: t0.Add(59 * time.Second)})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if accrual != nil || len(accruer.calls) != 0 {
		t.Fatalf("expected no accrual, got %+v / %v", accrual, accruer.calls)
	}
	if tracker.Len() != 0 {
		t.Fatalf("expected session removed")
	}
}

func TestLeaveWithoutSessionIsNoop(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	accrual, err := tracker.Leave(context.Background(), Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", At: t0})
	if err != nil || accrual != nil || len(accruer.calls) != 0 {
		t.Fatalf("expected no-op, got %+v %v %v", accrual, err, accruer.calls)
	}
}

func TestMoveWithoutSessionStartsFresh(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	if _, err := tracker.Move(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", NewChannelID: "c2", At: t0}); err != nil {
		t.Fatalf("move: %v", err)
	}
	session, ok := tracker.Session("u1")
	if !ok || session.ChannelID != "c2" || !session.JoinTime.Equal(t0) || !session.LastAccrualTime.Equal(t0) {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(accruer.calls) != 0 {
		t.Fatalf("expected no accrual for recovered session")
	}
}

func TestJoinWhileConnectedOverwrites(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c2", At: t0.Add(10 * time.Minute)})

	session, _ := tracker.Session("u1")
	if session.ChannelID != "c2" || !session.LastAccrualTime.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("expected overwritten session, got %+v", session)
	}
	if len(accruer.calls) != 0 {
		t.Fatalf("expected no credit for overwritten span")
	}
}

func TestSameChannelUpdateIgnored(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	accrual, err := tracker.Handle(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c1", NewChannelID: "c1", At: t0.Add(20 * time.Minute)})
	if err != nil || accrual != nil || len(accruer.calls) != 0 {
		t.Fatalf("expected mute/deafen update to be ignored")
	}
	session, _ := tracker.Session("u1")
	if !session.LastAccrualTime.Equal(t0) {
		t.Fatalf("expected checkpoint unchanged")
	}
}

func TestSweepDropsDepartedUserWithoutCredit(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	accruals, err := tracker.Sweep(ctx, t0.Add(12*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(accruals) != 0 || len(accruer.calls) != 0 {
		t.Fatalf("expected zero accrual for departed user")
	}
	if tracker.Len() != 0 {
		t.Fatalf("expected session deleted")
	}
}

func TestSweepCreditsConnectedUsers(t *testing.T) {
	tracker, accruer, resolver := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	tracker.Join(ctx, Event{GuildID: "g2", UserID: "u2", NewChannelID: "c9", At: t0})
	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u3", NewChannelID: "c1", At: t0.Add(8 * time.Minute)})
	resolver.state["g1:u1"] = liveState{channel: "c3"}
	resolver.state["g2:u2"] = liveState{channel: "afk", afk: "afk"}
	resolver.state["g1:u3"] = liveState{channel: "c1"}

	now := t0.Add(10 * time.Minute)
	accruals, err := tracker.Sweep(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(accruals) != 2 {
		t.Fatalf("expected 2 accruals, got %+v", accruals)
	}
	if accruals[0].UserID != "u1" || accruals[0].Minutes != 10 || accruals[0].AFK {
		t.Fatalf("unexpected u1 accrual: %+v", accruals[0])
	}
	if accruals[1].UserID != "u2" || !accruals[1].AFK || accruals[1].GuildID != "g2" {
		t.Fatalf("unexpected u2 accrual: %+v", accruals[1])
	}

	session, _ := tracker.Session("u1")
	if session.ChannelID != "c3" || !session.LastAccrualTime.Equal(now) {
		t.Fatalf("expected session moved to live channel, got %+v", session)
	}
	session, _ = tracker.Session("u3")
	if !session.LastAccrualTime.Equal(t0.Add(8 * time.Minute)) {
		t.Fatalf("recent session should not be swept: %+v", session)
	}
	for _, guild := range resolver.guilds {
		if guild != "g1" && guild != "g2" {
			t.Fatalf("unexpected guild lookup %q", guild)
		}
	}
	if len(resolver.guilds) != 2 {
		t.Fatalf("expected 2 lookups, got %v", resolver.guilds)
	}

	if _, err := tracker.Leave(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "c3", At: now.Add(2 * time.Minute)}); err != nil {
		t.Fatalf("leave: %v", err)
	}
	last := accruer.calls[len(accruer.calls)-1]
	if last.minutes != 2 {
		t.Fatalf("leave should only credit time since the sweep, got %d", last.minutes)
	}
}

func TestSweepLookupFailureKeepsSession(t *testing.T) {
	tracker, accruer, resolver := newTestTracker()
	ctx := context.Background()
	resolver.err = errors.New("gateway unavailable")

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	_, err := tracker.Sweep(ctx, t0.Add(6*time.Minute))
	if err == nil {
		t.Fatalf("expected lookup error")
	}
	session, ok := tracker.Session("u1")
	if !ok || !session.LastAccrualTime.Equal(t0) {
		t.Fatalf("expected untouched session, got %+v", session)
	}
	if len(accruer.calls) != 0 {
		t.Fatalf("expected no accrual")
	}
}

func TestSweepAccrualFailureKeepsCheckpoint(t *testing.T) {
	tracker, accruer, resolver := newTestTracker()
	ctx := context.Background()
	accruer.err = errors.New("disk full")
	resolver.state["g1:u1"] = liveState{channel: "c1"}

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "c1", At: t0})
	if _, err := tracker.Sweep(ctx, t0.Add(6*time.Minute)); err == nil {
		t.Fatalf("expected accrual error")
	}
	session, _ := tracker.Session("u1")
	if !session.LastAccrualTime.Equal(t0) {
		t.Fatalf("checkpoint must not advance on failure, got %+v", session)
	}
}

func TestMoveAccrualFailureStillFollowsUser(t *testing.T) {
	tracker, accruer, _ := newTestTracker()
	ctx := context.Background()

	tracker.Join(ctx, Event{GuildID: "g1", UserID: "u1", NewChannelID: "afk", AFKChannelID: "afk", At: t0})
	accruer.err = errors.New("disk full")
	if _, err := tracker.Move(ctx, Event{GuildID: "g1", UserID: "u1", OldChannelID: "afk", NewChannelID: "talk", AFKChannelID: "afk", At: t0.Add(60 * time.Minute)}); err == nil {
		t.Fatalf("expected accrual error")
	}

	session, ok := tracker.Session("u1")
	if !ok {
		t.Fatalf("session must survive a failed move")
	}
	if session.ChannelID != "talk" || !session.LastAccrualTime.Equal(t0.Add(60*time.Minute)) {
		t.Fatalf("session must follow the user after a failed move, got %+v", session)
	}

	accruer.err = nil
	accrual, err := tracker.Leave(ctx, Event{GuildID: "g1", UserID: "u1", AFKChannelID: "afk", At: t0.Add(61 * time.Minute)})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if accrual == nil || accrual.ChannelID != "talk" {
		t.Fatalf("expected accrual in talk, got %+v", accrual)
	}
	want := []accrueCall{{userID: "u1", minutes: 1, afk: false}}
	if len(accruer.calls) != 1 || accruer.calls[0] != want[0] {
		t.Fatalf("expected %v, got %v", want, accruer.calls)
	}
}

func TestSweepNeverCreatesSessions(t *testing.T) {
	tracker, _, resolver := newTestTracker()
	resolver.state["g1:u1"] = liveState{channel: "c1"}

	if _, err := tracker.Sweep(context.Background(), t0); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if tracker.Len() != 0 {
		t.Fatalf("sweep must not create sessions")
	}
}

func TestWithSweepGapHasFloor(t *testing.T) {
	tracker, _, _ := newTestTracker()
	tracker.WithSweepGap(time.Minute)
	if tracker.sweepGap != DefaultSweepGap {
		t.Fatalf("expected floor of %v, got %v", DefaultSweepGap, tracker.sweepGap)
	}
}
