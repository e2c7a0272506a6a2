package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// mockConfigStore implements domain.ConfigStore in memory
type mockConfigStore struct {
	mu      sync.Mutex
	cfg     domain.Config
	loadErr error
	saveErr error
	saves   int
}

func newMockConfigStore(cfg domain.Config) *mockConfigStore {
	return &mockConfigStore{cfg: cfg}
}

func (m *mockConfigStore) Load() (domain.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.DefaultConfig(), m.loadErr
	}
	return domain.Config{DurationMinutes: m.cfg.DurationMinutes, Blocklist: m.cfg.Blocklist.Clone()}, nil
}

func (m *mockConfigStore) Save(cfg domain.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.cfg = domain.Config{DurationMinutes: cfg.DurationMinutes, Blocklist: cfg.Blocklist.Clone()}
	return nil
}

func (m *mockConfigStore) Path() string { return "/mock/config.txt" }

func (m *mockConfigStore) saved() domain.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *mockConfigStore) set(cfg domain.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// mockHostBlocker tracks which domains currently have redirect entries
type mockHostBlocker struct {
	mu         sync.Mutex
	present    map[string]bool
	blockErr   error
	unblockErr error
	blocks     int
	unblocks   int
}

func newMockHostBlocker() *mockHostBlocker {
	return &mockHostBlocker{present: make(map[string]bool)}
}

func (m *mockHostBlocker) Block(b domain.Blocklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks++
	if m.blockErr != nil {
		return m.blockErr
	}
	for _, d := range b {
		m.present[d] = true
	}
	return nil
}

func (m *mockHostBlocker) Unblock(b domain.Blocklist) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unblocks++
	if m.unblockErr != nil {
		return m.unblockErr
	}
	for _, d := range b {
		delete(m.present, d)
	}
	return nil
}

func (m *mockHostBlocker) Path() string { return "/mock/hosts" }

func (m *mockHostBlocker) has(d string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present[d]
}

func (m *mockHostBlocker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.present)
}

func (m *mockHostBlocker) setErrs(blockErr, unblockErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockErr = blockErr
	m.unblockErr = unblockErr
}

// mockNotifier records notifications
type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (m *mockNotifier) Notify(n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// recordingSurface keeps every published snapshot
type recordingSurface struct {
	mu    sync.Mutex
	snaps []domain.Snapshot
}

func (r *recordingSurface) Publish(s domain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recordingSurface) all() []domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

// mockSessionStore implements domain.SessionStore in memory
type mockSessionStore struct {
	mu       sync.Mutex
	sessions []domain.Session
	beginErr error
}

func (m *mockSessionStore) Begin(s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beginErr != nil {
		return m.beginErr
	}
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *mockSessionStore) Complete(id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			m.sessions[i].Completed = true
			m.sessions[i].EndedAt = endedAt
			return nil
		}
	}
	return errors.New("not found")
}

func (m *mockSessionStore) List(limit int) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Session, 0, len(m.sessions))
	for i := len(m.sessions) - 1; i >= 0; i-- {
		out = append(out, m.sessions[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockSessionStore) Close() error { return nil }

type harness struct {
	ctrl     *Controller
	config   *mockConfigStore
	hosts    *mockHostBlocker
	notifier *mockNotifier
	surface  *recordingSurface
	history  *mockSessionStore
}

func newHarness(t *testing.T, tick time.Duration, setup func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		config:   newMockConfigStore(domain.DefaultConfig()),
		hosts:    newMockHostBlocker(),
		notifier: &mockNotifier{},
		surface:  &recordingSurface{},
		history:  &mockSessionStore{},
	}
	if setup != nil {
		setup(h)
	}
	h.ctrl = NewController(Deps{
		Config:   h.config,
		Hosts:    h.hosts,
		Notifier: h.notifier,
		Surface:  h.surface,
		History:  h.history,
		Logger:   zap.NewNop(),
	}, WithTickInterval(tick))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func (h *harness) snapshot(t *testing.T) domain.Snapshot {
	t.Helper()
	s, err := h.ctrl.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func TestController_StartupBlocksAndHides(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	s := h.snapshot(t)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Equal(t, domain.TimerIdle, s.TimerState)
	assert.Equal(t, "00:00", s.Remaining)
	assert.Equal(t, "15", s.DurationMinutes)
	assert.Equal(t, domain.DefaultDomains(), s.Domains)
	assert.False(t, s.Visible)
	assert.Empty(t, s.LastError)
	for _, d := range domain.DefaultDomains() {
		assert.True(t, h.hosts.has(d), d)
	}
}

func TestController_StartupConfigErrorUsesDefaults(t *testing.T) {
	h := newHarness(t, time.Hour, func(h *harness) {
		h.config.loadErr = errors.New("permission denied")
	})

	s := h.snapshot(t)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Equal(t, domain.DefaultDomains(), s.Domains)
}

func TestController_StartupBlockFailureIsSurfaced(t *testing.T) {
	h := newHarness(t, time.Hour, func(h *harness) {
		h.hosts.blockErr = errors.New("read-only file system")
	})

	s := h.snapshot(t)
	assert.Equal(t, domain.StateUnblocked, s.BlockState, "state follows the file")
	assert.Contains(t, s.LastError, "read-only file system")
}

func TestController_AddDomain(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	ctx := context.Background()

	added, err := h.ctrl.AddDomain(ctx, "x.com")
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, h.hosts.has("x.com"), "blocked immediately")
	assert.True(t, h.config.saved().Blocklist.Contains("x.com"), "persisted")

	before := len(h.snapshot(t).Domains)
	added, err = h.ctrl.AddDomain(ctx, "x.com")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, h.snapshot(t).Domains, before)

	for _, blank := range []string{"", "   ", "\t"} {
		added, err = h.ctrl.AddDomain(ctx, blank)
		require.NoError(t, err)
		assert.False(t, added)
	}

	domains := h.snapshot(t).Domains
	assert.Equal(t, "x.com", domains[len(domains)-1], "appended in order")
}

func TestController_AddDomainBlockFailureReturned(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	require.Equal(t, domain.StateBlocked, h.snapshot(t).BlockState)
	h.hosts.setErrs(errors.New("disk full"), nil)

	added, err := h.ctrl.AddDomain(context.Background(), "x.com")
	assert.True(t, added)
	assert.Error(t, err)
	assert.True(t, h.config.saved().Blocklist.Contains("x.com"), "config still saved")
	assert.Contains(t, h.snapshot(t).LastError, "disk full")
}

func TestController_RecoversAfterFailedStartupBlock(t *testing.T) {
	h := newHarness(t, time.Hour, func(h *harness) {
		h.hosts.blockErr = errors.New("locked")
	})
	require.Equal(t, domain.StateUnblocked, h.snapshot(t).BlockState)
	h.hosts.setErrs(nil, nil)

	added, err := h.ctrl.AddDomain(context.Background(), "x.com")
	require.NoError(t, err)
	assert.True(t, added)

	s := h.snapshot(t)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Empty(t, s.LastError)
	assert.True(t, h.hosts.has("x.com"))
	assert.True(t, h.hosts.has("youtube.com"))
}

func TestController_ReloadRecoversAfterFailedStartupBlock(t *testing.T) {
	h := newHarness(t, time.Hour, func(h *harness) {
		h.hosts.blockErr = errors.New("locked")
	})
	require.Equal(t, domain.StateUnblocked, h.snapshot(t).BlockState)
	h.hosts.setErrs(nil, nil)

	h.config.set(domain.Config{DurationMinutes: "15", Blocklist: domain.Blocklist{"reddit.com"}})
	require.NoError(t, h.ctrl.Reload(context.Background()))

	s := h.snapshot(t)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.True(t, h.hosts.has("reddit.com"))
}

func TestController_StartTimerTrimsWhitespace(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	require.NoError(t, h.ctrl.StartTimer(context.Background(), " 5\n"))

	s := h.snapshot(t)
	assert.Equal(t, domain.TimerRunning, s.TimerState)
	assert.Equal(t, 300, s.RemainingSeconds)
	assert.Equal(t, "5", s.DurationMinutes)
	assert.Equal(t, "5", h.config.saved().DurationMinutes)
}

func TestController_StartTimerRejectsInvalidDuration(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	for _, in := range []string{"", "   ", "-5", "abc", "1.5", "1 5", "+3"} {
		err := h.ctrl.StartTimer(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidDuration, in)
	}

	s := h.snapshot(t)
	assert.Equal(t, domain.TimerIdle, s.TimerState)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Equal(t, "15", s.DurationMinutes)
	assert.Equal(t, 0, h.hosts.unblocks)
}

func TestController_StartTimerUnblocksAndSavesDuration(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	require.NoError(t, h.ctrl.StartTimer(context.Background(), "25"))

	s := h.snapshot(t)
	assert.Equal(t, domain.TimerRunning, s.TimerState)
	assert.Equal(t, domain.StateUnblocked, s.BlockState)
	assert.Equal(t, "25:00", s.Remaining)
	assert.Equal(t, "25", s.DurationMinutes)
	assert.Equal(t, 0, h.hosts.count(), "no redirect entries while unblocked")
	assert.Equal(t, "25", h.config.saved().DurationMinutes)

	sessions, err := h.ctrl.History(0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1500, sessions[0].DurationSeconds)
	assert.NotEmpty(t, sessions[0].ID)
}

func TestController_StartTimerWhileRunningIsRejected(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	require.NoError(t, h.ctrl.StartTimer(context.Background(), "10"))
	before := h.snapshot(t)

	err := h.ctrl.StartTimer(context.Background(), "3")
	assert.ErrorIs(t, err, ErrTimerRunning)

	after := h.snapshot(t)
	assert.Equal(t, before.TimerState, after.TimerState)
	assert.Equal(t, before.Remaining, after.Remaining)
	assert.Equal(t, "10", after.DurationMinutes)
}

func TestController_StartTimerUnblockFailureKeepsIdle(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	h.hosts.setErrs(nil, errors.New("permission denied"))

	err := h.ctrl.StartTimer(context.Background(), "5")
	require.Error(t, err)

	s := h.snapshot(t)
	assert.Equal(t, domain.TimerIdle, s.TimerState)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Contains(t, s.LastError, "permission denied")
}

func TestController_CountdownExpiryReblocksAndNotifies(t *testing.T) {
	h := newHarness(t, time.Millisecond, nil)

	require.NoError(t, h.ctrl.StartTimer(context.Background(), "1"))

	require.Eventually(t, func() bool {
		return h.snapshot(t).TimerState == domain.TimerIdle
	}, 5*time.Second, 5*time.Millisecond)

	s := h.snapshot(t)
	assert.Equal(t, domain.StateBlocked, s.BlockState)
	assert.Equal(t, "00:00", s.Remaining)
	for _, d := range domain.DefaultDomains() {
		assert.True(t, h.hosts.has(d), d)
	}

	require.Eventually(t, func() bool { return h.notifier.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ExpiryNotification, h.notifier.sent[0])
	assert.Equal(t, "Focus", h.notifier.sent[0].Title)
	assert.Equal(t, 10*time.Second, h.notifier.sent[0].Timeout)

	sessions, err := h.ctrl.History(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Completed)
}

func TestController_CountdownPublishesEverySecond(t *testing.T) {
	h := newHarness(t, time.Millisecond, nil)
	require.NoError(t, h.ctrl.StartTimer(context.Background(), "1"))
	require.Eventually(t, func() bool {
		return h.snapshot(t).TimerState == domain.TimerIdle
	}, 5*time.Second, 5*time.Millisecond)

	var seen []string
	for _, s := range h.surface.all() {
		if s.TimerState != domain.TimerRunning && s.Remaining != "00:00" {
			continue
		}
		if len(seen) == 0 || seen[len(seen)-1] != s.Remaining {
			seen = append(seen, s.Remaining)
		}
	}
	// Startup publishes "00:00" before the timer starts.
	require.Greater(t, len(seen), 1)
	seen = seen[1:]

	require.Len(t, seen, 61)
	assert.Equal(t, "01:00", seen[0])
	assert.Equal(t, "00:59", seen[1])
	assert.Equal(t, "00:01", seen[59])
	assert.Equal(t, "00:00", seen[60])
}

func TestController_ZeroMinutesExpiresImmediately(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	require.NoError(t, h.ctrl.StartTimer(context.Background(), "0"))

	require.Eventually(t, func() bool {
		s := h.snapshot(t)
		return s.TimerState == domain.TimerIdle && s.BlockState == domain.StateBlocked
	}, time.Second, 5*time.Millisecond)
}

func TestController_AddDomainWhileUnblockedAppliesAtExpiry(t *testing.T) {
	h := newHarness(t, 2*time.Millisecond, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartTimer(ctx, "1"))

	added, err := h.ctrl.AddDomain(ctx, "reddit.com")
	require.NoError(t, err)
	assert.True(t, added)
	if h.snapshot(t).TimerState == domain.TimerRunning {
		assert.False(t, h.hosts.has("reddit.com"), "deferred until expiry")
	}

	require.Eventually(t, func() bool {
		return h.snapshot(t).TimerState == domain.TimerIdle
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, h.hosts.has("reddit.com"))
}

func TestController_ShowHide(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, h.ctrl.Show(ctx))
	assert.True(t, h.snapshot(t).Visible)

	savesBefore := h.config.saves
	require.NoError(t, h.ctrl.Hide(ctx))
	assert.False(t, h.snapshot(t).Visible)
	assert.Greater(t, h.config.saves, savesBefore, "hide persists config")
}

func TestController_QuitReblocksAndStops(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartTimer(ctx, "30"))
	require.Equal(t, 0, h.hosts.count())

	require.NoError(t, h.ctrl.Quit(ctx))

	select {
	case <-h.ctrl.Done():
	case <-time.After(time.Second):
		t.Fatal("controller did not stop")
	}
	for _, d := range domain.DefaultDomains() {
		assert.True(t, h.hosts.has(d), d)
	}
	assert.Equal(t, "30", h.config.saved().DurationMinutes)

	_, err := h.ctrl.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, h.ctrl.Quit(ctx), ErrStopped)
	assert.Equal(t, 0, h.notifier.count(), "abandoned countdown does not notify")
}

func TestController_ContextCancelReblocks(t *testing.T) {
	hosts := newMockHostBlocker()
	ctrl := NewController(Deps{
		Config: newMockConfigStore(domain.DefaultConfig()),
		Hosts:  hosts,
	}, WithTickInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = ctrl.Run(ctx) }()
	require.NoError(t, ctrl.StartTimer(context.Background(), "5"))
	require.Equal(t, 0, hosts.count())

	cancel()
	<-ctrl.Done()
	assert.Equal(t, len(domain.DefaultDomains()), hosts.count())
}

func TestController_Reload(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	ctx := context.Background()

	h.config.set(domain.Config{
		DurationMinutes: "20",
		Blocklist:       domain.Blocklist{"youtube.com", "x.com"},
	})
	require.NoError(t, h.ctrl.Reload(ctx))

	s := h.snapshot(t)
	assert.Equal(t, []string{"youtube.com", "x.com"}, s.Domains)
	assert.Equal(t, "20", s.DurationMinutes)
	assert.True(t, h.hosts.has("x.com"))
	assert.True(t, h.hosts.has("youtube.com"))
	assert.False(t, h.hosts.has("instagram.com"), "removed domain unblocked")
}

func TestController_ReloadErrorKeepsConfig(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	h.config.mu.Lock()
	h.config.loadErr = errors.New("bad read")
	h.config.mu.Unlock()

	assert.Error(t, h.ctrl.Reload(context.Background()))
	assert.Equal(t, domain.DefaultDomains(), h.snapshot(t).Domains)
}

func TestController_HistoryUnavailable(t *testing.T) {
	ctrl := NewController(Deps{Config: newMockConfigStore(domain.DefaultConfig()), Hosts: newMockHostBlocker()})
	_, err := ctrl.History(10)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"1", 60, false},
		{"15", 900, false},
		{"007", 420, false},
		{"", 0, true},
		{"-5", 0, true},
		{"5m", 0, true},
		{"99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMinutes(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
