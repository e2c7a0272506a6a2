// Package main is the CLI entry point for sitemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/site_mon/internal/config"
	"github.com/eliteGoblin/focusd/site_mon/internal/control"
	"github.com/eliteGoblin/focusd/site_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/policy"
	"github.com/eliteGoblin/focusd/site_mon/internal/ui"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const requestTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitemon",
	Short: "Website blocker with a temporary unblock timer",
	Long: `sitemon blocks distracting websites by redirecting them in the hosts
file. A resident process keeps the block in place; 'sitemon unblock'
lifts it for a few minutes and the block comes back on its own.

Editing the hosts file usually needs root: run 'sudo sitemon up'.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the resident process in the background",
	Long: `Starts the resident process. On start it loads the config, blocks
every listed domain and waits in the background for commands.`,
	RunE: runUp,
}

// Hidden daemon command - used for self-exec by 'up'
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Open the interactive window",
	Long:  `Opens the timer and config view. Closing it (esc) hides it again and saves the config.`,
	RunE:  runShow,
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Re-block everything and stop the resident process",
	RunE:  runQuit,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock [minutes]",
	Short: "Temporarily unblock for a number of minutes",
	Long:  `Lifts the block for the given minutes, or the saved duration when omitted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUnblock,
}

var addCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the blocklist",
	Long:  `Adds domains to the blocklist. Use --preset to add a whole category (see 'sitemon presets').`,
	RunE:  runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked domains",
	RunE:  runList,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List domain presets",
	Run:   runPresets,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show block and timer state",
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent temporary unblocks",
	RunE:  runHistory,
}

var autostartCmd = &cobra.Command{
	Use:       "autostart [enable|disable|status]",
	Short:     "Start sitemon automatically at login (or boot, as root)",
	Long:      `Installs a launchd job on macOS or a systemd unit on Linux that runs the resident.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"enable", "disable", "status"},
	RunE:      runAutostart,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	jsonOutput   bool
	presetID     string
	historyLimit int
)

func init() {
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	addCmd.Flags().StringVar(&presetID, "preset", "", "Add every domain of a preset")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to show (0 for all)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(quitCmd)
	rootCmd.AddCommand(unblockCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadSettings() (*config.Settings, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func runUp(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	execMode := infra.DetectExecMode()
	fmt.Printf("Execution mode: %s\n", execMode.Mode)

	registry := infra.NewFileRegistry(settings.DataDir, infra.NewProcessManager())
	if alive, _ := registry.IsAlive(); alive {
		fmt.Println("sitemon is already running")
		return nil
	}

	if err := daemon.StartResident(); err != nil {
		return fmt.Errorf("failed to start resident: %w", err)
	}

	client := control.NewClient(settings.Socket)
	deadline := time.Now().Add(3 * time.Second)
	for {
		ctx, cancel := requestContext()
		status, err := client.Health(ctx)
		cancel()
		if err == nil {
			fmt.Println("\n=== sitemon Started ===")
			fmt.Printf("Hosts file: %s\n", status.HostsFile)
			fmt.Printf("Config: %s\n", status.ConfigFile)
			fmt.Println("Status: BLOCKING")
			fmt.Println("=======================")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("resident did not come up; see %s", settings.LogFile)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(settings.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := createLogger(settings)
	defer func() { _ = logger.Sync() }()

	// SIGINT/SIGTERM reach the resident through its tray.
	resident := daemon.NewResident(*settings, Version, logger)
	if err := resident.Run(context.Background()); err != nil {
		logger.Error("resident exited with error", zap.Error(err))
		return err
	}
	return nil
}

// createLogger writes JSON logs to the settings' log files.
func createLogger(settings *config.Settings) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{settings.LogFile}
	cfg.ErrorOutputPaths = []string{settings.ErrorLogFile()}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if level, err := zapcore.ParseLevel(settings.LogLevel); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runShow(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	client := control.NewClient(settings.Socket)

	ctx, cancel := requestContext()
	_, err = client.Show(ctx)
	cancel()
	if err != nil {
		return notRunning(err)
	}

	return ui.Run(context.Background(), client, Version)
}

func runQuit(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	client := control.NewClient(settings.Socket)

	ctx, cancel := requestContext()
	defer cancel()
	_, err = client.Quit(ctx)
	if err == nil {
		fmt.Println("sitemon stopped; all domains blocked")
		return nil
	}

	if !errors.Is(err, control.ErrUnreachable) {
		return err
	}

	// Socket did not answer: signal the registered process instead.
	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(settings.DataDir, pm)
	entry, getErr := registry.Get()
	if getErr != nil || entry == nil || !pm.IsRunning(entry.PID) {
		fmt.Println("sitemon is not running")
		return nil
	}
	if err := pm.Terminate(entry.PID); err != nil {
		return fmt.Errorf("failed to stop resident: %w", err)
	}
	fmt.Println("sitemon asked to stop")
	return nil
}

func runUnblock(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	minutes := ""
	if len(args) == 1 {
		minutes = args[0]
	}

	ctx, cancel := requestContext()
	defer cancel()
	snap, err := control.NewClient(settings.Socket).StartTimer(ctx, minutes)
	if err != nil {
		return notRunning(err)
	}
	fmt.Printf("Unblocked for %s (until the countdown ends)\n", snap.Remaining)
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	domains := args
	if presetID != "" {
		preset, err := policy.NewRegistry().Lookup(presetID)
		if err != nil {
			return err
		}
		domains = append(domains, preset.Domains()...)
	}
	if len(domains) == 0 {
		return fmt.Errorf("nothing to add: pass domains or --preset")
	}

	ctx, cancel := requestContext()
	defer cancel()
	res, err := control.NewClient(settings.Socket).AddDomains(ctx, domains...)
	if err != nil {
		if !errors.Is(err, control.ErrUnreachable) {
			return err
		}
		return addOffline(settings, domains)
	}

	printAdded(res.Added, len(domains))
	if res.Warning != "" {
		fmt.Printf("Warning: saved, but %s\n", res.Warning)
	}
	return nil
}

// addOffline edits the config file directly; the resident applies it on start.
func addOffline(settings *config.Settings, domains []string) error {
	store := infra.NewTextConfigStore(settings.ConfigFile)
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var added []string
	for _, d := range domains {
		if cfg.Blocklist.Add(d) {
			added = append(added, d)
		}
	}
	if len(added) > 0 {
		if err := os.MkdirAll(settings.DataDir, 0700); err != nil {
			return err
		}
		if err := store.Save(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	printAdded(added, len(domains))
	fmt.Println("(sitemon is not running; changes apply on next 'sitemon up')")
	return nil
}

func printAdded(added []string, requested int) {
	for _, d := range added {
		fmt.Printf("  + %s\n", d)
	}
	if skipped := requested - len(added); skipped > 0 {
		fmt.Printf("%d already blocked\n", skipped)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	var domains []string
	ctx, cancel := requestContext()
	defer cancel()
	if snap, err := control.NewClient(settings.Socket).State(ctx); err == nil {
		domains = snap.Domains
	} else {
		cfg, err := infra.NewTextConfigStore(settings.ConfigFile).Load()
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		domains = cfg.Blocklist
	}

	fmt.Println("\n=== Blocked Domains ===")
	for _, d := range domains {
		fmt.Printf("  - %s\n", d)
	}
	fmt.Println("=======================")
	return nil
}

func runPresets(cmd *cobra.Command, args []string) {
	fmt.Println("\n=== Presets ===")
	for _, p := range policy.NewRegistry().GetAll() {
		fmt.Printf("\n[%s] %s\n", p.ID(), p.Name())
		for _, d := range p.Domains() {
			fmt.Printf("  - %s\n", d)
		}
	}
	fmt.Println("\n===============")
}

func runStatus(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	fmt.Println("\n=== sitemon Status ===")

	ctx, cancel := requestContext()
	defer cancel()
	client := control.NewClient(settings.Socket)
	health, err := client.Health(ctx)
	if err != nil {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'sitemon up' to start blocking.")
		fmt.Println("======================")
		return nil
	}
	snap, err := client.State(ctx)
	if err != nil {
		return err
	}

	fmt.Print(formatStatus(snap, health))
	fmt.Println("======================")
	return nil
}

func formatStatus(snap domain.Snapshot, health *control.Status) string {
	s := fmt.Sprintf("Status: RUNNING (pid %d, %s)\n", health.PID, health.AppVersion)
	s += fmt.Sprintf("Block state: %s\n", snap.BlockState)
	if snap.TimerState == domain.TimerRunning {
		s += fmt.Sprintf("Timer: running, %s left\n", snap.Remaining)
	} else {
		s += fmt.Sprintf("Timer: idle (duration %s min)\n", snap.DurationMinutes)
	}
	s += fmt.Sprintf("Domains: %d\n", len(snap.Domains))
	s += fmt.Sprintf("Hosts file: %s\n", health.HostsFile)
	if snap.LastError != "" {
		s += fmt.Sprintf("Last error: %s\n", snap.LastError)
	}
	return s
}

func runHistory(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()
	sessions, err := control.NewClient(settings.Socket).History(ctx, historyLimit)
	if err != nil {
		if !errors.Is(err, control.ErrUnreachable) {
			return err
		}
		// Resident not running: read the database directly.
		history, openErr := infra.OpenHistory(settings.DataDir)
		if openErr != nil {
			return fmt.Errorf("history unavailable: %w", openErr)
		}
		defer history.Close()
		if sessions, err = history.List(historyLimit); err != nil {
			return err
		}
	}

	fmt.Println("\n=== Unblock History ===")
	if len(sessions) == 0 {
		fmt.Println("No sessions yet.")
	}
	for _, s := range sessions {
		fmt.Println(formatSession(s))
	}
	fmt.Println("=======================")
	return nil
}

func formatSession(s domain.Session) string {
	line := fmt.Sprintf("  %s  %s", s.StartedAt.Local().Format("2006-01-02 15:04"), domain.FormatClock(s.DurationSeconds))
	if s.Completed {
		return line + "  completed"
	}
	return line + "  not completed"
}

func runAutostart(cmd *cobra.Command, args []string) error {
	execMode := infra.DetectExecMode()
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return applyAutostart(cmd.OutOrStdout(), infra.NewServiceAutostart(execMode), args[0], executable, execMode.Mode)
}

func applyAutostart(w io.Writer, autostart domain.AutostartManager, action, executable string, mode infra.ExecMode) error {
	switch action {
	case "enable":
		if autostart.IsInstalled() && !autostart.NeedsUpdate(executable) {
			fmt.Fprintf(w, "Autostart already enabled (%s)\n", autostart.Path())
			return nil
		}
		if err := autostart.Install(executable); err != nil {
			return fmt.Errorf("failed to enable autostart: %w", err)
		}
		fmt.Fprintf(w, "Autostart enabled for %s mode: %s\n", mode, autostart.Path())
	case "disable":
		if err := autostart.Uninstall(); err != nil {
			return fmt.Errorf("failed to disable autostart: %w", err)
		}
		fmt.Fprintln(w, "Autostart disabled")
	default:
		if autostart.IsInstalled() {
			fmt.Fprintf(w, "Autostart: enabled (%s)\n", autostart.Path())
		} else {
			fmt.Fprintln(w, "Autostart: disabled")
		}
	}
	return nil
}

func notRunning(err error) error {
	if errors.Is(err, control.ErrUnreachable) {
		return fmt.Errorf("%w\nRun 'sitemon up' first", err)
	}
	return err
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":%s,"commit":%s,"build_time":%s}`+"\n",
			strconv.Quote(Version), strconv.Quote(Commit), strconv.Quote(BuildTime))
	} else {
		fmt.Printf("sitemon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
