package voice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"guildkeeper/internal/leveling"
	"guildkeeper/internal/utils"

	"go.uber.org/zap"
)

// DefaultSweepGap is the minimum time since the last accrual before the sweep
// re-checks a session.
const DefaultSweepGap = 5 * time.Minute

// Session is the in-memory record of a user currently in a voice channel.
type Session struct {
	GuildID         string
	ChannelID       string
	JoinTime        time.Time
	LastAccrualTime time.Time
}

// Event is a normalised voice state change. An empty OldChannelID means the
// user joined; an empty NewChannelID means the user left.
type Event struct {
	GuildID      string
	UserID       string
	OldChannelID string
	NewChannelID string
	AFKChannelID string
	At           time.Time
}

// Accrual describes one checkpoint at which voice time was converted to XP.
type Accrual struct {
	UserID    string
	GuildID   string
	ChannelID string
	Minutes   int64
	AFK       bool
	LevelUp   *leveling.LevelUp
	At        time.Time
}

type Accruer interface {
	AccrueVoiceXP(ctx context.Context, userID string, minutes int64, isAFK bool, now time.Time) (*leveling.LevelUp, error)
}

// GuildResolver looks up live voice state. An empty channelID with a nil error
// means the user is not connected.
type GuildResolver interface {
	VoiceChannel(ctx context.Context, guildID, userID string) (channelID, afkChannelID string, err error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    *utils.KeyedMutex

	accruer  Accruer
	resolver GuildResolver
	logger   *zap.Logger
	clock    Clock
	sweepGap time.Duration
}

func NewTracker(accruer Accruer, resolver GuildResolver, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		sessions: make(map[string]*Session),
		locks:    utils.NewKeyedMutex(),
		accruer:  accruer,
		resolver: resolver,
		logger:   logger,
		clock:    realClock{},
		sweepGap: DefaultSweepGap,
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// WithSweepGap changes how stale a session must be before the sweep checks it.
// Values below DefaultSweepGap are raised to it.
func (t *Tracker) WithSweepGap(gap time.Duration) {
	if gap < DefaultSweepGap {
		gap = DefaultSweepGap
	}
	t.sweepGap = gap
}

// Handle routes a voice state change. Updates that keep the user in the same
// channel (mute, deafen, stream) are ignored.
func (t *Tracker) Handle(ctx context.Context, ev Event) (*Accrual, error) {
	switch {
	case ev.OldChannelID == ev.NewChannelID:
		return nil, nil
	case ev.OldChannelID == "":
		t.Join(ctx, ev)
		return nil, nil
	case ev.NewChannelID == "":
		return t.Leave(ctx, ev)
	default:
		return t.Move(ctx, ev)
	}
}

// Join starts a session. A session that already exists is replaced without
// credit, since the newer event is the one to trust.
func (t *Tracker) Join(ctx context.Context, ev Event) {
	unlock := t.locks.Lock(ev.UserID)
	defer unlock()

	if existing := t.get(ev.UserID); existing != nil {
		t.logger.Warn("voice join for user already tracked",
			zap.String("user_id", ev.UserID),
			zap.String("guild_id", ev.GuildID),
			zap.String("tracked_channel", existing.ChannelID),
			zap.String("new_channel", ev.NewChannelID),
		)
	}
	t.put(ev.UserID, &Session{
		GuildID:         ev.GuildID,
		ChannelID:       ev.NewChannelID,
		JoinTime:        ev.At,
		LastAccrualTime: ev.At,
	})
}

// Leave credits the time since the last checkpoint at the AFK status of the
// channel being left and ends the session. The session is removed even when
// the accrual fails.
func (t *Tracker) Leave(ctx context.Context, ev Event) (*Accrual, error) {
	unlock := t.locks.Lock(ev.UserID)
	defer unlock()

	session := t.get(ev.UserID)
	if session == nil {
		return nil, nil
	}
	t.remove(ev.UserID)

	channelID := ev.OldChannelID
	if channelID == "" {
		channelID = session.ChannelID
	}
	return t.accrue(ctx, ev.UserID, session, channelID, isAFK(channelID, ev.AFKChannelID), ev.At)
}

// Move credits the time spent in the old channel and continues the session in
// the new one. A move for an untracked user starts a fresh session.
func (t *Tracker) Move(ctx context.Context, ev Event) (*Accrual, error) {
	unlock := t.locks.Lock(ev.UserID)
	defer unlock()

	session := t.get(ev.UserID)
	if session == nil {
		t.logger.Debug("voice move for untracked user, starting session",
			zap.String("user_id", ev.UserID),
			zap.String("guild_id", ev.GuildID),
			zap.String("channel_id", ev.NewChannelID),
		)
		t.put(ev.UserID, &Session{
			GuildID:         ev.GuildID,
			ChannelID:       ev.NewChannelID,
			JoinTime:        ev.At,
			LastAccrualTime: ev.At,
		})
		return nil, nil
	}

	accrual, err := t.accrue(ctx, ev.UserID, session, ev.OldChannelID, isAFK(ev.OldChannelID, ev.AFKChannelID), ev.At)

	// The user is in the new channel whether or not the credit landed. Time in
	// the old channel is forfeited on failure rather than billed at the new
	// channel's AFK status later.
	next := *session
	next.GuildID = ev.GuildID
	next.ChannelID = ev.NewChannelID
	next.LastAccrualTime = ev.At
	t.put(ev.UserID, &next)
	if err != nil {
		return nil, err
	}
	return accrual, nil
}

// Sweep reconciles every session idle for at least the sweep gap against live
// guild state. Users who are gone lose the unverified time; users still
// connected are credited at their current AFK status. Lookup and accrual
// failures leave the session as it was.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) ([]Accrual, error) {
	var (
		accruals []Accrual
		errs     []error
	)
	for _, userID := range t.userIDs() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		accrual, err := t.sweepUser(ctx, userID, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if accrual != nil {
			accruals = append(accruals, *accrual)
		}
	}
	return accruals, errors.Join(errs...)
}

func (t *Tracker) sweepUser(ctx context.Context, userID string, now time.Time) (*Accrual, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	session := t.get(userID)
	if session == nil || now.Sub(session.LastAccrualTime) < t.sweepGap {
		return nil, nil
	}

	channelID, afkChannelID, err := t.resolver.VoiceChannel(ctx, session.GuildID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve voice state for %s: %w", userID, err)
	}
	if channelID == "" {
		t.remove(userID)
		t.logger.Info("voice session dropped, user no longer connected",
			zap.String("user_id", userID),
			zap.String("guild_id", session.GuildID),
			zap.Time("last_accrual", session.LastAccrualTime),
		)
		return nil, nil
	}

	accrual, err := t.accrue(ctx, userID, session, channelID, isAFK(channelID, afkChannelID), now)
	if err != nil {
		return nil, err
	}

	next := *session
	next.ChannelID = channelID
	next.LastAccrualTime = now
	t.put(userID, &next)
	return accrual, nil
}

// Run sweeps on every tick until ctx is done and hands each accrual to handle.
func (t *Tracker) Run(ctx context.Context, interval time.Duration, handle func(context.Context, Accrual)) {
	if interval < DefaultSweepGap {
		interval = DefaultSweepGap
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accruals, err := t.Sweep(ctx, t.clock.Now())
			if err != nil && ctx.Err() == nil {
				t.logger.Warn("voice sweep incomplete", zap.Error(err))
			}
			if handle == nil {
				continue
			}
			for _, accrual := range accruals {
				handle(ctx, accrual)
			}
		}
	}
}

// Sessions returns a copy of the tracked sessions keyed by user ID.
func (t *Tracker) Sessions() map[string]Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Session, len(t.sessions))
	for userID, session := range t.sessions {
		out[userID] = *session
	}
	return out
}

func (t *Tracker) Session(userID string) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	session, ok := t.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// accrue credits whole minutes since session.LastAccrualTime. The remainder
// below one minute is dropped by the caller advancing the checkpoint.
func (t *Tracker) accrue(ctx context.Context, userID string, session *Session, channelID string, afk bool, now time.Time) (*Accrual, error) {
	minutes := int64(now.Sub(session.LastAccrualTime) / time.Minute)
	if minutes <= 0 {
		return nil, nil
	}

	levelUp, err := t.accruer.AccrueVoiceXP(ctx, userID, minutes, afk, now)
	if err != nil {
		return nil, fmt.Errorf("accrue voice xp for %s: %w", userID, err)
	}
	return &Accrual{
		UserID:    userID,
		GuildID:   session.GuildID,
		ChannelID: channelID,
		Minutes:   minutes,
		AFK:       afk,
		LevelUp:   levelUp,
		At:        now,
	}, nil
}

func (t *Tracker) get(userID string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[userID]
}

func (t *Tracker) put(userID string, session *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[userID] = session
}

func (t *Tracker) remove(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, userID)
}

func (t *Tracker) userIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.sessions))
	for userID := range t.sessions {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

func isAFK(channelID, afkChannelID string) bool {
	return afkChannelID != "" && channelID == afkChannelID
}
