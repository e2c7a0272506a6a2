package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const trayActionTimeout = 10 * time.Second

// TrayActions are the two tray menu entries.
type TrayActions interface {
	Show(ctx context.Context) error
	Quit(ctx context.Context) error
}

// Tray is the background presence loop of the resident.
type Tray interface {
	// Run dispatches tray actions until ctx is cancelled or quit is chosen.
	Run(ctx context.Context, actions TrayActions)
}

// SignalTray maps process signals to tray actions: SIGUSR1 is "show",
// SIGINT and SIGTERM are "quit".
type SignalTray struct {
	signals <-chan os.Signal
	logger  *zap.Logger
}

// NewSignalTray creates a tray listening for process signals.
func NewSignalTray(logger *zap.Logger) *SignalTray {
	return &SignalTray{logger: orNop(logger)}
}

// NewSignalTrayWithChannel creates a tray reading from ch instead of the
// process signal set (for testing).
func NewSignalTrayWithChannel(ch <-chan os.Signal, logger *zap.Logger) *SignalTray {
	return &SignalTray{signals: ch, logger: orNop(logger)}
}

func (t *SignalTray) Run(ctx context.Context, actions TrayActions) {
	signals := t.signals
	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGUSR1, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == syscall.SIGUSR1 {
				t.logger.Info("tray: show")
				t.act(ctx, "show", actions.Show)
				continue
			}
			t.logger.Info("tray: quit", zap.String("signal", sig.String()))
			t.act(ctx, "quit", actions.Quit)
			return
		}
	}
}

func (t *SignalTray) act(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, trayActionTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		t.logger.Warn("tray action failed", zap.String("action", name), zap.Error(err))
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
