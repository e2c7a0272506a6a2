// Package daemon implements the resident sitemon process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/config"
	"github.com/eliteGoblin/focusd/site_mon/internal/control"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

// ErrAlreadyRunning is returned when another live resident is registered.
var ErrAlreadyRunning = errors.New("sitemon is already running")

// DefaultReloadDebounce collapses bursts of config file events into one reload.
const DefaultReloadDebounce = 200 * time.Millisecond

// ResidentDeps are the collaborators of a Resident.
type ResidentDeps struct {
	Config   domain.ConfigStore
	Hosts    domain.HostBlocker
	Notifier domain.Notifier     // nil disables notifications
	History  domain.SessionStore // nil disables history
	Registry domain.InstanceRegistry
	Process  domain.ProcessManager
	Tray     Tray
}

// Resident wires the controller, the control server, the tray and the
// config watcher together and keeps them running until quit.
type Resident struct {
	settings config.Settings
	version  string
	deps     ResidentDeps
	logger   *zap.Logger

	debounce time.Duration
	ctrlOpts []usecase.Option
}

// NewResident builds a resident from settings with the real infrastructure.
// A session store that cannot be opened is logged and skipped.
func NewResident(settings config.Settings, version string, logger *zap.Logger) *Resident {
	if logger == nil {
		logger = zap.NewNop()
	}
	pm := infra.NewProcessManager()

	deps := ResidentDeps{
		Config:   infra.NewTextConfigStore(settings.ConfigFile),
		Hosts:    infra.NewHostsFileBlocker(settings.HostsFile, settings.RedirectIP, domain.MatchMode(settings.MatchMode), logger),
		Registry: infra.NewFileRegistry(settings.DataDir, pm),
		Process:  pm,
		Tray:     NewSignalTray(logger),
	}
	if settings.Notify {
		deps.Notifier = infra.NewCommandNotifier()
	}

	history, err := infra.OpenHistory(settings.DataDir)
	if err != nil {
		logger.Warn("session history unavailable", zap.Error(err))
	} else {
		deps.History = history
	}

	return NewResidentWithDeps(settings, version, deps, logger)
}

// NewResidentWithDeps creates a resident with explicit collaborators (for testing).
func NewResidentWithDeps(settings config.Settings, version string, deps ResidentDeps, logger *zap.Logger) *Resident {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resident{
		settings: settings,
		version:  version,
		deps:     deps,
		logger:   logger,
		debounce: DefaultReloadDebounce,
	}
}

// WithControllerOptions passes options through to the controller.
func (r *Resident) WithControllerOptions(opts ...usecase.Option) *Resident {
	r.ctrlOpts = append(r.ctrlOpts, opts...)
	return r
}

// WithReloadDebounce overrides the config reload debounce.
func (r *Resident) WithReloadDebounce(d time.Duration) *Resident {
	r.debounce = d
	return r
}

// Run starts the resident and blocks until it is quit or ctx is cancelled.
// Either way the hosts file is left blocked.
func (r *Resident) Run(ctx context.Context) error {
	pid := r.deps.Process.GetCurrentPID()
	if err := r.checkSingleInstance(pid); err != nil {
		return err
	}

	if err := r.deps.Registry.Register(domain.InstanceEntry{
		PID:        pid,
		Socket:     r.settings.Socket,
		AppVersion: r.version,
	}); err != nil {
		r.logger.Error("failed to register resident", zap.Error(err))
		return err
	}
	defer func() {
		if err := r.deps.Registry.Clear(); err != nil {
			r.logger.Warn("failed to clear registry", zap.Error(err))
		}
	}()
	if r.deps.History != nil {
		defer r.deps.History.Close()
	}

	board := control.NewBoard()
	ctrl := usecase.NewController(usecase.Deps{
		Config:   r.deps.Config,
		Hosts:    r.deps.Hosts,
		Notifier: r.deps.Notifier,
		Surface:  board,
		History:  r.deps.History,
		Logger:   r.logger.Named("controller"),
	}, r.ctrlOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go ctrl.Run(runCtx)

	// Startup has published once the first command is served.
	if _, err := ctrl.Snapshot(runCtx); err != nil {
		cancel()
		<-ctrl.Done()
		return err
	}

	handler := control.NewHandler(ctrl, board, control.Status{
		PID:        pid,
		AppVersion: r.version,
		HostsFile:  r.deps.Hosts.Path(),
		ConfigFile: r.deps.Config.Path(),
	}, r.logger)
	server := control.NewServer(r.settings.Socket, control.NewRouter(handler, r.logger.Named("control")), r.logger)

	ln, err := server.Listen()
	if err != nil {
		r.logger.Error("control server failed to start", zap.Error(err))
		cancel()
		<-ctrl.Done()
		return err
	}

	var wg sync.WaitGroup

	watcher := NewConfigWatcher(r.deps.Config.Path(), ctrl, r.debounce, r.logger)
	if err := watcher.Watch(); err != nil {
		r.logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(runCtx); err != nil {
				r.logger.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Serve(runCtx, ln); err != nil {
			r.logger.Error("control server stopped with error", zap.Error(err))
		}
	}()

	if r.deps.Tray != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.deps.Tray.Run(runCtx, ctrl)
		}()
	}

	r.logger.Info("resident started",
		zap.Int("pid", pid),
		zap.String("socket", r.settings.Socket),
		zap.String("version", r.version))

	select {
	case <-ctrl.Done():
		r.logger.Info("resident quitting")
	case <-ctx.Done():
		r.logger.Info("resident stopping", zap.Error(ctx.Err()))
	}

	cancel()
	<-ctrl.Done()
	wg.Wait()

	r.logger.Info("resident stopped")
	return nil
}

// checkSingleInstance refuses to start when another registered resident is alive.
func (r *Resident) checkSingleInstance(pid int) error {
	entry, err := r.deps.Registry.Get()
	if err != nil {
		r.logger.Warn("unreadable registry, replacing it", zap.Error(err))
		return nil
	}
	if entry == nil || entry.PID == pid {
		return nil
	}
	alive, err := r.deps.Registry.IsAlive()
	if err != nil || !alive {
		r.logger.Info("replacing stale registry entry", zap.Int("stale_pid", entry.PID))
		return nil
	}
	return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, entry.PID)
}
