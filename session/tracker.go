package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docforensics/custodia/audit"
	"github.com/docforensics/custodia/internal/metrics"
	"github.com/docforensics/custodia/logging"
)

// Options configures a Tracker.
type Options struct {
	// StorePath is the SQLite file holding session history, e.g.
	// <dataDir>/sessions.db. Empty uses an in-memory database.
	StorePath string
	// Store overrides StorePath with an already-open store (tests).
	Store Store
	// Trail receives session_start/session_end/activity events. Optional.
	Trail *audit.Trail
	// Timeout is the idle duration after which a session counts as ended.
	// Zero means DefaultTimeout.
	Timeout    time.Duration
	Thresholds Thresholds
	Logger     logging.Logger
}

// Tracker owns the active session set and the session history store.
// Expiry of idle sessions happens lazily on StartSession and lookups; there
// is no background timer.
type Tracker struct {
	mu     sync.Mutex
	active map[string]*Session

	store      Store
	trail      *audit.Trail
	timeout    time.Duration
	thresholds Thresholds
	log        logging.Logger

	// now is a test seam.
	now func() time.Time
}

// NewTracker opens the session store and returns a ready tracker.
func NewTracker(ctx context.Context, opts Options) (*Tracker, error) {
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	store := opts.Store
	if store == nil {
		dsn := opts.StorePath
		if dsn == "" {
			dsn = ":memory:"
		}
		var err error
		if store, err = OpenStore(ctx, dsn); err != nil {
			return nil, err
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		active:     map[string]*Session{},
		store:      store,
		trail:      opts.Trail,
		timeout:    timeout,
		thresholds: opts.Thresholds.withDefaults(),
		log:        log,
		now:        time.Now,
	}, nil
}

// Close releases the session store.
func (t *Tracker) Close() error { return t.store.Close() }

// StartSession creates an active session for the user and forwards a
// session_start event to the audit trail. Idle sessions past the timeout
// are expired on the way in.
func (t *Tracker) StartSession(ctx context.Context, userID, ip, userAgent string) (string, error) {
	now := t.now().UTC()

	t.mu.Lock()
	t.sweepLocked(ctx, now)
	s := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		IP:           ip,
		UserAgent:    userAgent,
		StartTime:    now,
		LastActivity: now,
		IsActive:     true,
	}
	t.active[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(t.active)))
	snapshot := s.clone()
	t.mu.Unlock()

	if err := t.store.Upsert(ctx, snapshot); err != nil {
		// History is best-effort; the in-memory session stays usable.
		t.log.Error(ctx, "session store upsert failed", "session_id", s.ID, "error", err)
	}

	if t.trail != nil {
		t.trail.Record(ctx, audit.Event{
			Action:    "session_start",
			UserID:    userID,
			IP:        ip,
			UserAgent: userAgent,
			Details:   map[string]any{"session_id": s.ID},
		})
	}
	return s.ID, nil
}

// TrackActivity appends an activity to an active session and forwards it to
// the audit trail. It returns false when the session is unknown, already
// ended, or idle past the timeout — synchronously, without blocking.
func (t *Tracker) TrackActivity(ctx context.Context, sessionID, action, documentID string, details map[string]any) bool {
	now := t.now().UTC()

	t.mu.Lock()
	s, ok := t.active[sessionID]
	if ok && t.expiredLocked(s, now) {
		t.endLocked(ctx, s, s.LastActivity, "session_timeout")
		ok = false
	}
	if !ok {
		t.mu.Unlock()
		return false
	}
	a := Activity{Timestamp: now, Action: action, DocumentID: documentID, Details: details}
	s.Activities = append(s.Activities, a)
	s.ActivityCount++
	s.LastActivity = now
	userID, ip := s.UserID, s.IP
	t.mu.Unlock()

	if err := t.store.AddActivity(ctx, sessionID, a); err != nil {
		t.log.Error(ctx, "session activity not persisted", "session_id", sessionID, "error", err)
	}

	if t.trail != nil {
		auditDetails := map[string]any{"session_id": sessionID}
		for k, v := range details {
			auditDetails[k] = v
		}
		t.trail.Record(ctx, audit.Event{
			Action:     action,
			UserID:     userID,
			DocumentID: documentID,
			Details:    auditDetails,
			IP:         ip,
		})
	}
	return true
}

// EndSession finalizes an active session and forwards session_end. Returns
// false when the session is not active.
func (t *Tracker) EndSession(ctx context.Context, sessionID string) bool {
	now := t.now().UTC()

	t.mu.Lock()
	s, ok := t.active[sessionID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	t.endLocked(ctx, s, now, "session_end")
	t.mu.Unlock()
	return true
}

// endLocked finalizes s, persists the terminal state and forwards the
// lifecycle event. Callers hold t.mu.
func (t *Tracker) endLocked(ctx context.Context, s *Session, at time.Time, event string) {
	end := at
	s.EndTime = &end
	s.IsActive = false
	delete(t.active, s.ID)
	metrics.ActiveSessions.Set(float64(len(t.active)))

	if err := t.store.Upsert(ctx, s.clone()); err != nil {
		t.log.Error(ctx, "session store upsert failed", "session_id", s.ID, "error", err)
	}

	if t.trail != nil {
		t.trail.Record(ctx, audit.Event{
			Action: event,
			UserID: s.UserID,
			Details: map[string]any{
				"session_id":       s.ID,
				"duration_seconds": s.Duration().Seconds(),
				"activity_count":   s.ActivityCount,
			},
			IP: s.IP,
		})
	}
}

func (t *Tracker) expiredLocked(s *Session, now time.Time) bool {
	return now.Sub(s.LastActivity) > t.timeout
}

// sweepLocked lazily expires idle sessions. Callers hold t.mu.
func (t *Tracker) sweepLocked(ctx context.Context, now time.Time) {
	for _, s := range t.active {
		if t.expiredLocked(s, now) {
			t.endLocked(ctx, s, s.LastActivity, "session_timeout")
		}
	}
}

// Get returns a snapshot of the session, active or not. The second result
// is false when the id is unknown. Lookup also lazily expires the session
// if it idled past the timeout.
func (t *Tracker) Get(ctx context.Context, sessionID string) (*Session, bool) {
	now := t.now().UTC()

	t.mu.Lock()
	if s, ok := t.active[sessionID]; ok {
		if t.expiredLocked(s, now) {
			t.endLocked(ctx, s, s.LastActivity, "session_timeout")
		} else {
			out := s.clone()
			t.mu.Unlock()
			return out, true
		}
	}
	t.mu.Unlock()

	// Ended sessions are served from history.
	s, err := t.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.log.Error(ctx, "session lookup failed", "session_id", sessionID, "error", err)
		}
		return nil, false
	}
	if s.Activities, err = t.store.Activities(ctx, sessionID); err != nil {
		t.log.Error(ctx, "session activity lookup failed", "session_id", sessionID, "error", err)
	}
	return s, true
}

// ActiveSessions returns snapshots of all currently active sessions, after
// expiring idle ones.
func (t *Tracker) ActiveSessions(ctx context.Context) []*Session {
	now := t.now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked(ctx, now)
	out := make([]*Session, 0, len(t.active))
	for _, s := range t.active {
		out = append(out, s.clone())
	}
	return out
}

// ActiveCount returns the number of active sessions for one user (or all
// users when userID is empty).
func (t *Tracker) ActiveCount(ctx context.Context, userID string) int {
	count := 0
	for _, s := range t.ActiveSessions(ctx) {
		if userID == "" || s.UserID == userID {
			count++
		}
	}
	return count
}

// UserSessions returns the user's session history, newest first, with the
// activity logs attached. limit <= 0 returns everything.
func (t *Tracker) UserSessions(ctx context.Context, userID string, limit int) ([]*Session, error) {
	sessions, err := t.store.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Activities, err = t.store.Activities(ctx, s.ID); err != nil {
			return nil, fmt.Errorf("session: load activities: %w", err)
		}
	}
	return sessions, nil
}
