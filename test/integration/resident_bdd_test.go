//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/config"
	"github.com/eliteGoblin/focusd/site_mon/internal/control"
	"github.com/eliteGoblin/focusd/site_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/site_mon/test/fixtures"
)

var _ = Describe("Resident process", func() {
	var (
		tmpDir   string
		hosts    *fixtures.FakeHosts
		client   *control.Client
		history  *infra.EncryptedHistory
		registry domain.InstanceRegistry
		errCh    chan error
	)

	BeforeEach(func() {
		var err error
		// Short path: unix socket names are length-limited.
		tmpDir, err = os.MkdirTemp("", "sm-*")
		Expect(err).NotTo(HaveOccurred())

		hosts, err = fixtures.NewFakeHosts(tmpDir, fixtures.DefaultHostsContent)
		Expect(err).NotTo(HaveOccurred())

		history, err = infra.OpenHistory(hosts.DataDir)
		Expect(err).NotTo(HaveOccurred())

		settings := config.Settings{
			HostsFile:  hosts.Path,
			DataDir:    hosts.DataDir,
			ConfigFile: hosts.ConfigPath(),
			Socket:     filepath.Join(hosts.DataDir, "s.sock"),
			RedirectIP: infra.DefaultRedirectIP,
			MatchMode:  string(domain.MatchHostname),
			LogLevel:   "info",
		}

		pm := infra.NewProcessManager()
		registry = infra.NewFileRegistry(hosts.DataDir, pm)
		resident := daemon.NewResidentWithDeps(settings, "it", daemon.ResidentDeps{
			Config:   infra.NewTextConfigStore(settings.ConfigFile),
			Hosts:    infra.NewHostsFileBlocker(settings.HostsFile, settings.RedirectIP, domain.MatchHostname, zap.NewNop()),
			History:  history,
			Registry: registry,
			Process:  pm,
			Tray:     daemon.NewSignalTrayWithChannel(make(chan os.Signal), nil),
		}, zap.NewNop()).
			WithControllerOptions(usecase.WithTickInterval(tick)).
			WithReloadDebounce(20 * time.Millisecond)

		errCh = make(chan error, 1)
		go func() { errCh <- resident.Run(context.Background()) }()

		client = control.NewClient(settings.Socket)
		Eventually(func() error {
			_, err := client.Health(context.Background())
			return err
		}, 5*time.Second).Should(Succeed())
	})

	AfterEach(func() {
		_, _ = client.Quit(context.Background())
		Eventually(errCh, 5*time.Second).Should(Receive())
		os.RemoveAll(tmpDir)
	})

	It("should register itself for CLI discovery", func() {
		entry, err := registry.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).NotTo(BeNil())
		Expect(entry.PID).To(Equal(os.Getpid()))
		Expect(entry.AppVersion).To(Equal("it"))

		alive, err := registry.IsAlive()
		Expect(err).NotTo(HaveOccurred())
		Expect(alive).To(BeTrue())
	})

	It("should run a full unblock session and record it", func() {
		snap, err := client.StartTimer(context.Background(), "1")
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.TimerState).To(Equal(domain.TimerRunning))
		Expect(hosts.MustRead()).To(Equal(hosts.Initial))

		Eventually(func() domain.TimerState {
			s, _ := client.State(context.Background())
			return s.TimerState
		}, 5*time.Second).Should(Equal(domain.TimerIdle))
		Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")).To(BeTrue())

		sessions, err := client.History(context.Background(), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(sessions).To(HaveLen(1))
		Expect(sessions[0].DurationSeconds).To(Equal(60))
		Expect(sessions[0].Completed).To(BeTrue())
	})

	It("should reject bad durations over the API", func() {
		_, err := client.StartTimer(context.Background(), "abc")
		var apiErr *control.APIError
		Expect(err).To(BeAssignableToTypeOf(apiErr))
		Expect(err.(*control.APIError).Code).To(Equal("invalid_duration"))
		Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")).To(BeTrue())
	})

	It("should add domains and pick up external config edits", func() {
		res, err := client.AddDomains(context.Background(), "reddit.com", "youtube.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Added).To(Equal([]string{"reddit.com"}))
		Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "reddit.com")).To(BeTrue())

		Expect(hosts.WriteConfig("20", "reddit.com", "twitter.com")).To(Succeed())
		Eventually(func() bool {
			return hosts.IsBlocked(infra.DefaultRedirectIP, "twitter.com") &&
				!hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")
		}, 5*time.Second).Should(BeTrue())

		snap, err := client.State(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.DurationMinutes).To(Equal("20"))
	})

	It("should re-block and clean up on quit", func() {
		_, err := client.StartTimer(context.Background(), "30")
		Expect(err).NotTo(HaveOccurred())

		_, err = client.Quit(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Eventually(errCh, 5*time.Second).Should(Receive(BeNil()))
		errCh <- nil // satisfy AfterEach

		Expect(hosts.IsBlocked(infra.DefaultRedirectIP, "youtube.com")).To(BeTrue())
		entry, err := registry.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).To(BeNil())

		_, err = client.State(context.Background())
		Expect(err).To(MatchError(ContainSubstring("resident not reachable")))
	})
})
