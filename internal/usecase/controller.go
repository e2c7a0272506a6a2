package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

var (
	// ErrTimerRunning is returned by StartTimer while a countdown is active.
	ErrTimerRunning = errors.New("unblock timer already running")
	// ErrInvalidDuration is returned for durations that are not a non-negative integer.
	ErrInvalidDuration = errors.New("duration must be a non-negative whole number of minutes")
	// ErrStopped is returned once the controller has shut down.
	ErrStopped = errors.New("controller stopped")
	// ErrNoHistory is returned when no session store is configured.
	ErrNoHistory = errors.New("session history unavailable")
)

// ExpiryNotification is sent when a temporary unblock ends.
var ExpiryNotification = domain.Notification{
	Title:   "Focus",
	Message: "Unblock time is over. Focus mode is back on!",
	AppName: "Focus",
	Timeout: 10 * time.Second,
}

// Deps are the collaborators of a Controller. Config and Hosts are required.
type Deps struct {
	Config   domain.ConfigStore
	Hosts    domain.HostBlocker
	Notifier domain.Notifier     // nil disables notifications
	Surface  domain.Surface      // nil discards snapshots
	History  domain.SessionStore // nil disables history
	Logger   *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithTickInterval shortens the countdown second (for tests).
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) { c.countdown = NewCountdown(d) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns block state, timer state and the blocklist. All state is
// confined to the goroutine running Run; public methods enqueue a command and
// wait for it to finish.
type Controller struct {
	deps      Deps
	logger    *zap.Logger
	countdown *Countdown
	now       func() time.Time

	cmds chan func()
	done chan struct{}

	// Loop-owned state.
	cfg         domain.Config
	block       domain.BlockState
	timer       domain.TimerState
	remaining   int
	visible     bool
	lastErr     string
	session     *domain.Session
	generation  int
	stopTimer   context.CancelFunc
	quitting    bool
	notifyGroup sync.WaitGroup
}

// NewController creates a controller. Call Run to start it.
func NewController(deps Deps, opts ...Option) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		deps:      deps,
		logger:    logger,
		countdown: NewCountdown(DefaultTickInterval),
		now:       time.Now,
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		block:     domain.StateUnblocked,
		timer:     domain.TimerIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs startup (load config, force Block, hidden surface) and then
// serves commands until Quit or ctx is cancelled. Cancellation runs the same
// shutdown as Quit.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.startup()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			c.notifyGroup.Wait()
			return nil
		case fn := <-c.cmds:
			fn()
			if c.quitting {
				c.notifyGroup.Wait()
				return nil
			}
		}
	}
}

// Done is closed after Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// AddDomain appends name to the blocklist and persists it. Outside a countdown
// the hosts file is updated immediately; during one the new entry is applied
// when the countdown expires. Returns false for blank or duplicate names.
func (c *Controller) AddDomain(ctx context.Context, name string) (bool, error) {
	var (
		added bool
		err   error
	)
	callErr := c.do(ctx, func() {
		if !c.cfg.Blocklist.Add(name) {
			return
		}
		added = true
		c.persist()
		if c.timer != domain.TimerRunning {
			err = c.applyBlock()
		}
		c.publish()
	})
	if callErr != nil {
		return false, callErr
	}
	return added, err
}

// StartTimer lifts the block for minutes and starts the countdown. The
// duration is saved as the new default. If unblocking fails the timer is not
// started and the error is returned.
func (c *Controller) StartTimer(ctx context.Context, minutes string) error {
	minutes = strings.TrimSpace(minutes)
	seconds, err := parseMinutes(minutes)
	if err != nil {
		return err
	}

	var startErr error
	callErr := c.do(ctx, func() {
		if c.timer == domain.TimerRunning {
			startErr = ErrTimerRunning
			return
		}

		c.cfg.DurationMinutes = minutes
		c.persist()

		if err := c.deps.Hosts.Unblock(c.cfg.Blocklist); err != nil {
			c.recordErr("unblock", err)
			c.publish()
			startErr = err
			return
		}
		c.block = domain.StateUnblocked
		c.lastErr = ""
		c.timer = domain.TimerRunning
		c.remaining = seconds
		c.beginSession(seconds)
		c.startCountdown(seconds)
		c.publish()
	})
	if callErr != nil {
		return callErr
	}
	return startErr
}

// Show marks the interactive surface visible.
func (c *Controller) Show(ctx context.Context) error {
	return c.do(ctx, func() {
		c.visible = true
		c.publish()
	})
}

// Hide persists config and marks the surface hidden. The process keeps running.
func (c *Controller) Hide(ctx context.Context) error {
	return c.do(ctx, func() {
		c.persist()
		c.visible = false
		c.publish()
	})
}

// Quit persists config, forces the blocked state and stops the controller.
// A running countdown is abandoned. The returned error is the Block failure, if any.
func (c *Controller) Quit(ctx context.Context) error {
	var blockErr error
	callErr := c.do(ctx, func() {
		blockErr = c.shutdown()
	})
	if callErr != nil {
		return callErr
	}
	return blockErr
}

// Reload re-reads the config file. Outside a countdown, domains dropped from
// the file are unblocked and the new list is applied.
func (c *Controller) Reload(ctx context.Context) error {
	var reloadErr error
	callErr := c.do(ctx, func() {
		cfg, err := c.deps.Config.Load()
		if err != nil {
			c.logger.Warn("config reload failed, keeping current config", zap.Error(err))
			reloadErr = err
			return
		}
		if cfg.Blocklist.Equal(c.cfg.Blocklist) && cfg.DurationMinutes == c.cfg.DurationMinutes {
			return
		}

		removed := domain.Blocklist{}
		for _, d := range c.cfg.Blocklist {
			if !cfg.Blocklist.Contains(d) {
				removed = append(removed, d)
			}
		}
		changed := !cfg.Blocklist.Equal(c.cfg.Blocklist)
		c.cfg = cfg
		c.logger.Info("config reloaded",
			zap.Int("domains", len(cfg.Blocklist)),
			zap.Int("removed", len(removed)))

		if changed && c.timer != domain.TimerRunning {
			if len(removed) > 0 {
				if err := c.deps.Hosts.Unblock(removed); err != nil {
					c.recordErr("unblock removed domains", err)
					reloadErr = err
				}
			}
			if err := c.applyBlock(); err != nil {
				reloadErr = err
			}
		}
		c.publish()
	})
	if callErr != nil {
		return callErr
	}
	return reloadErr
}

// Snapshot returns the current display state.
func (c *Controller) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := c.do(ctx, func() {
		snap = c.snapshot()
	})
	return snap, err
}

// History returns recent sessions, most recent first.
func (c *Controller) History(limit int) ([]domain.Session, error) {
	if c.deps.History == nil {
		return nil, ErrNoHistory
	}
	return c.deps.History.List(limit)
}

// do runs fn on the controller goroutine and waits for it.
func (c *Controller) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// An accepted command always runs to completion before the loop exits.
	<-finished
	return nil
}

// post enqueues fn from a background goroutine without waiting.
// Returns false if the controller or the timer context is gone.
func (c *Controller) post(ctx context.Context, fn func()) bool {
	select {
	case c.cmds <- fn:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) startup() {
	cfg, err := c.deps.Config.Load()
	if err != nil {
		bestEffort(c.logger, "load config", err)
	}
	c.cfg = cfg
	c.visible = false

	if err := c.applyBlock(); err != nil {
		c.logger.Error("initial block failed", zap.Error(err))
	}
	c.logger.Info("controller started",
		zap.String("config", c.deps.Config.Path()),
		zap.String("hosts", c.deps.Hosts.Path()),
		zap.Int("domains", len(c.cfg.Blocklist)),
		zap.String("block_state", string(c.block)))
	c.publish()
}

func (c *Controller) shutdown() error {
	if c.quitting {
		return nil
	}
	c.quitting = true

	c.persist()
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.timer = domain.TimerIdle
	c.remaining = 0
	c.visible = false

	err := c.applyBlock()
	c.publish()
	c.logger.Info("controller stopped", zap.String("block_state", string(c.block)))
	return err
}

func (c *Controller) startCountdown(seconds int) {
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(context.Background())
	c.stopTimer = cancel

	go func() {
		_ = c.countdown.Run(ctx, seconds, func(remaining int) {
			c.post(ctx, func() { c.onTick(gen, remaining) })
		})
	}()
}

func (c *Controller) onTick(gen, remaining int) {
	if gen != c.generation || c.timer != domain.TimerRunning {
		return
	}
	c.remaining = remaining
	if remaining > 0 {
		c.publish()
		return
	}
	c.onExpiry()
}

func (c *Controller) onExpiry() {
	c.timer = domain.TimerIdle
	c.remaining = 0
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}

	if err := c.applyBlock(); err != nil {
		c.logger.Error("re-block after countdown failed", zap.Error(err))
	}
	c.completeSession()
	c.notify()
	c.logger.Info("unblock period over", zap.String("block_state", string(c.block)))
	c.publish()
}

// applyBlock writes the blocklist and flips to Blocked only on success.
func (c *Controller) applyBlock() error {
	if err := c.deps.Hosts.Block(c.cfg.Blocklist); err != nil {
		c.recordErr("block", err)
		return err
	}
	c.block = domain.StateBlocked
	c.lastErr = ""
	return nil
}

func (c *Controller) recordErr(op string, err error) {
	c.lastErr = fmt.Sprintf("%s: %v", op, err)
	c.logger.Error("hosts file update failed", zap.String("op", op), zap.Error(err))
}

func (c *Controller) persist() {
	bestEffort(c.logger, "save config", c.deps.Config.Save(c.cfg))
}

func (c *Controller) beginSession(seconds int) {
	s := domain.Session{
		ID:              uuid.NewString(),
		StartedAt:       c.now(),
		DurationSeconds: seconds,
	}
	c.session = &s
	if c.deps.History != nil {
		bestEffort(c.logger, "record session", c.deps.History.Begin(s))
	}
}

func (c *Controller) completeSession() {
	if c.session == nil {
		return
	}
	id := c.session.ID
	c.session = nil
	if c.deps.History != nil {
		bestEffort(c.logger, "complete session", c.deps.History.Complete(id, c.now()))
	}
}

// notify delivers the expiry notification without blocking the loop.
func (c *Controller) notify() {
	if c.deps.Notifier == nil {
		return
	}
	n := c.deps.Notifier
	c.notifyGroup.Add(1)
	go func() {
		defer c.notifyGroup.Done()
		bestEffort(c.logger, "notify", n.Notify(ExpiryNotification))
	}()
}

func (c *Controller) publish() {
	if c.deps.Surface != nil {
		c.deps.Surface.Publish(c.snapshot())
	}
}

func (c *Controller) snapshot() domain.Snapshot {
	return domain.Snapshot{
		BlockState:       c.block,
		TimerState:       c.timer,
		Remaining:        domain.FormatClock(c.remaining),
		RemainingSeconds: c.remaining,
		DurationMinutes:  c.cfg.DurationMinutes,
		Domains:          c.cfg.Blocklist.Clone(),
		Visible:          c.visible,
		LastError:        c.lastErr,
		UpdatedAt:        c.now(),
	}
}

// parseMinutes accepts a non-empty string of ASCII digits and returns seconds.
// Callers trim surrounding whitespace first.
func parseMinutes(s string) (int, error) {
	if s == "" {
		return 0, ErrInvalidDuration
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidDuration
		}
	}
	minutes, err := strconv.Atoi(s)
	if err != nil || minutes > math.MaxInt32/60 {
		return 0, ErrInvalidDuration
	}
	return minutes * 60, nil
}

// bestEffort logs a failed side effect and carries on.
func bestEffort(logger *zap.Logger, op string, err error) {
	if err != nil {
		logger.Warn("best-effort operation failed", zap.String("op", op), zap.Error(err))
	}
}
